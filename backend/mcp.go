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

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

type gameToolArgs struct {
	GameID string `json:"game_id" jsonschema:"Game id (UUID)"`
}

type summarizePlayerArgs struct {
	GameID   string `json:"game_id" jsonschema:"Game id (UUID)"`
	PlayerID string `json:"player_id,omitempty" jsonschema:"Roster player id (empty = every player)"`
}

type autofillArgs struct {
	GameID string `json:"game_id" jsonschema:"Game id (UUID)"`
	Inning int    `json:"inning,omitempty" jsonschema:"Inning to fill (0 = every inning)"`
}

type copyInningArgs struct {
	GameID string `json:"game_id" jsonschema:"Game id (UUID)"`
	Inning int    `json:"inning" jsonschema:"Inning to overwrite with the previous inning"`
}

type teamAnalyticsArgs struct {
	TeamID string `json:"team_id" jsonschema:"Team id (UUID)"`
	Query  string `json:"query,omitempty" jsonschema:"Game filter, e.g. opponent:tigers date:>=2025-04-01"`
}

func toolJSON(v any) *mcp.CallToolResult {
	b, _ := json.MarshalIndent(v, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}

// mcpHandler serves the MCP tools over streamable HTTP. Every request gets
// a server bound to the authenticated user.
func (a *api) mcpHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return a.newMCPServer(getUserID(r))
	}, &mcp.StreamableHTTPOptions{JSONResponse: true, Stateless: true})
}

func (a *api) newMCPServer(userId string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lineupkeeper",
		Version: CurrentAppVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_rotation",
		Description: "Check a game's fielding rotation for missing positions, duplicate players, repeated positions and consecutive innings in the same zone.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args gameToolArgs) (*mcp.CallToolResult, any, error) {
		g, t, err := a.loadGameFor(userId, args.GameID, AccessRead)
		if err != nil {
			return toolError(err), nil, nil
		}
		report, err := ValidateGame(g, t, nil)
		if err != nil {
			return toolError(err), nil, nil
		}
		a.metrics.ObserveReport(report)
		return toolJSON(newValidationResult(report)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_player",
		Description: "Count infield, outfield and bench innings and per-position appearances for one player or the whole roster in a game.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args summarizePlayerArgs) (*mcp.CallToolResult, any, error) {
		g, t, err := a.loadGameFor(userId, args.GameID, AccessRead)
		if err != nil {
			return toolError(err), nil, nil
		}
		players, err := SummarizeGame(g, t, lineup.PlayerID(args.PlayerID))
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(players), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "autofill_rotation",
		Description: "Fill the empty positions of one inning, or of every inning, with available players. Existing assignments are kept.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args autofillArgs) (*mcp.CallToolResult, any, error) {
		e := Edit{Type: EditAutofillAll}
		if args.Inning != 0 {
			e = Edit{Type: EditAutofillInning, Inning: args.Inning}
		}
		return a.mcpEdit(ctx, userId, args.GameID, e), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "copy_inning",
		Description: "Replace an inning's assignments with a copy of the previous inning.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args copyInningArgs) (*mcp.CallToolResult, any, error) {
		return a.mcpEdit(ctx, userId, args.GameID, Edit{Type: EditCopyInning, Inning: args.Inning}), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "team_analytics",
		Description: "Season report for a team: games by month and weekday, batting order history and fielding time per player, optionally over games matching a query.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args teamAnalyticsArgs) (*mcp.CallToolResult, any, error) {
		t, err := a.loadTeamFor(userId, args.TeamID, AccessRead)
		if err != nil {
			return toolError(err), nil, nil
		}
		report, err := TeamReport(t, a.teamGames(t.ID), args.Query)
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(report), nil, nil
	})

	return server
}

// mcpEdit applies e through the game's hub like the HTTP edit endpoints.
func (a *api) mcpEdit(ctx context.Context, userId, gameId string, e Edit) *mcp.CallToolResult {
	g, _, err := a.loadGameFor(userId, gameId, AccessWrite)
	if err != nil {
		return toolError(err)
	}
	if err := ValidateEdit(e, g.InningCount()); err != nil {
		return toolError(err)
	}
	resp, err := a.hubDo(ctx, g.ID, HubRequest{Type: ReqTypeEdit, UserId: userId, Edit: e})
	if err != nil {
		return toolError(err)
	}
	return toolJSON(newLineupResponse(resp))
}
