// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generator

import (
	"context"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultTool is the remote MCP tool called by MCPClient.
const DefaultTool = "generate_rotation"

// MCPClient calls a rotation tool on a remote MCP server over the
// streamable HTTP transport. The tool receives the Request as its
// arguments and answers with a Response as JSON text content.
type MCPClient struct {
	Endpoint   string
	Tool       string
	HTTPClient *http.Client
	Version    string
}

// NewMCPClient returns an MCPClient for endpoint.
func NewMCPClient(endpoint string) *MCPClient {
	return &MCPClient{Endpoint: endpoint, Tool: DefaultTool}
}

// Generate implements Client.
func (c *MCPClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.Endpoint == "" {
		return nil, genErr(KindTransport, nil, "generator endpoint not configured")
	}
	tool := c.Tool
	if tool == "" {
		tool = DefaultTool
	}
	version := c.Version
	if version == "" {
		version = "dev"
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "lineupkeeper", Version: version}, nil)
	transport := &mcp.StreamableClientTransport{Endpoint: c.Endpoint, HTTPClient: c.HTTPClient}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, genErr(KindTransport, err, "connecting to %s: %v", c.Endpoint, err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: req})
	if err != nil {
		return nil, genErr(KindTransport, err, "calling %s: %v", tool, err)
	}
	text := toolText(res)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, genErr(KindDeclined, nil, "%s", text)
	}
	if text == "" {
		return nil, genErr(KindMalformed, nil, "tool returned no text content")
	}
	return parseResponse([]byte(text))
}

func toolText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "")
}
