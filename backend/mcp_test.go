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
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

func (e *testEnv) mcpSession(t *testing.T, user string) *mcp.ClientSession {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse(e.srv.URL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: mockAuthCookie, Value: user}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "lineupkeeper-test", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   e.srv.URL + e.opts.MCPPath,
		HTTPClient: &http.Client{Jar: jar},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	if out != nil && !res.IsError {
		text, ok := res.Content[0].(*mcp.TextContent)
		require.True(t, ok, "content is %T", res.Content[0])
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}
	return res
}

func TestMCPTools(t *testing.T) {
	e := newTestEnv(t, nil)
	team, game := e.createTeamAndGame(t)

	session := e.mcpSession(t, testCoach)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"validate_rotation", "summarize_player", "autofill_rotation", "copy_inning", "team_analytics"}, names)

	var v ValidationResult
	res := callTool(t, session, "validate_rotation", map[string]any{"game_id": game.ID}, &v)
	require.False(t, res.IsError)
	assert.Equal(t, 6*lineup.NumPositions, v.StructuralCount)

	var lr lineupResponse
	res = callTool(t, session, "autofill_rotation", map[string]any{"game_id": game.ID, "inning": 1}, &lr)
	require.False(t, res.IsError)
	assert.Equal(t, lineup.NumPositions, lr.Lineup.Rotation[1].Filled())
	assert.Empty(t, lr.Lineup.Rotation[2])

	res = callTool(t, session, "copy_inning", map[string]any{"game_id": game.ID, "inning": 2}, &lr)
	require.False(t, res.IsError)
	assert.Equal(t, lr.Lineup.Rotation[1], lr.Lineup.Rotation[2])

	var players []PlayerSummary
	res = callTool(t, session, "summarize_player", map[string]any{"game_id": game.ID, "player_id": "p1"}, &players)
	require.False(t, res.IsError)
	require.Len(t, players, 1)
	assert.Equal(t, 6, players[0].Innings())

	var report struct {
		TeamID string `json:"teamId"`
	}
	res = callTool(t, session, "team_analytics", map[string]any{"team_id": team.ID}, &report)
	require.False(t, res.IsError)
	assert.Equal(t, team.ID, report.TeamID)

	// Input errors come back as tool errors.
	res = callTool(t, session, "copy_inning", map[string]any{"game_id": game.ID, "inning": 9}, nil)
	assert.True(t, res.IsError)
	res = callTool(t, session, "summarize_player", map[string]any{"game_id": game.ID, "player_id": "ghost"}, nil)
	assert.True(t, res.IsError)
}

func TestMCPAccess(t *testing.T) {
	e := newTestEnv(t, nil)
	_, game := e.createTeamAndGame(t)

	viewer := e.mcpSession(t, testViewer)
	res := callTool(t, viewer, "validate_rotation", map[string]any{"game_id": game.ID}, nil)
	assert.False(t, res.IsError)
	res = callTool(t, viewer, "autofill_rotation", map[string]any{"game_id": game.ID}, nil)
	assert.True(t, res.IsError, "viewers cannot edit")

	stranger := e.mcpSession(t, testOther)
	res = callTool(t, stranger, "validate_rotation", map[string]any{"game_id": game.ID}, nil)
	assert.True(t, res.IsError)
}
