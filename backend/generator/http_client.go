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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const maxResponseSize = 1 << 20

// HTTPClient posts the request as JSON to an AI-backed endpoint. 5xx and
// 429 responses are retried with exponential backoff.
type HTTPClient struct {
	Endpoint   string
	APIKey     string
	Model      string
	MaxRetries int
	HTTPClient *http.Client

	once   sync.Once
	client *retryablehttp.Client
}

type httpRequest struct {
	Model   string  `json:"model,omitempty"`
	Prompt  string  `json:"prompt"`
	Request Request `json:"request"`
}

type httpResponse struct {
	Response
	// Output carries the response as text when the endpoint wraps a raw
	// model completion.
	Output string `json:"output,omitempty"`
}

// NewHTTPClient returns an HTTPClient for endpoint.
func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, APIKey: apiKey, MaxRetries: 2}
}

func (c *HTTPClient) retrying() *retryablehttp.Client {
	c.once.Do(func() {
		rc := retryablehttp.NewClient()
		rc.RetryMax = c.MaxRetries
		rc.RetryWaitMin = 100 * time.Millisecond
		rc.RetryWaitMax = 2 * time.Second
		rc.Logger = nil
		if c.HTTPClient != nil {
			rc.HTTPClient = c.HTTPClient
		}
		c.client = rc
	})
	return c.client
}

// Generate implements Client.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.Endpoint == "" {
		return nil, genErr(KindTransport, nil, "generator endpoint not configured")
	}
	body, err := json.Marshal(httpRequest{Model: c.Model, Prompt: BuildPrompt(req), Request: req})
	if err != nil {
		return nil, genErr(KindMalformed, err, "encoding request: %v", err)
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return nil, genErr(KindTransport, err, "building request: %v", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.retrying().Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, genErr(KindTransport, err, "%v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, genErr(KindTransport, err, "reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, genErr(KindTransport, nil, "generator returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return parseResponse(data)
}

func parseResponse(data []byte) (*Response, error) {
	var hr httpResponse
	if err := json.Unmarshal(data, &hr); err != nil {
		return nil, genErr(KindMalformed, err, "invalid JSON response: %v", err)
	}
	if hr.Output == "" {
		return &hr.Response, nil
	}
	var inner Response
	if err := json.Unmarshal([]byte(stripFences(hr.Output)), &inner); err != nil {
		return nil, genErr(KindMalformed, err, "invalid JSON in output: %v", err)
	}
	return &inner, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (c *HTTPClient) String() string {
	return fmt.Sprintf("http(%s)", c.Endpoint)
}
