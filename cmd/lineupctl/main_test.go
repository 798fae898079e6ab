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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ttbt-io/lineupkeeper/backend"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

func setupData(t *testing.T) (dir, teamId, gameId string) {
	t.Helper()
	t.Setenv("LK_MASTER_KEY", "")
	dir = t.TempDir()
	s, _, err := backend.OpenStorage(dir, "")
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	var roster []lineup.Player
	for i := 1; i <= 11; i++ {
		roster = append(roster, lineup.Player{ID: lineup.PlayerID(fmt.Sprintf("p%d", i)), Name: fmt.Sprintf("Player %d", i)})
	}
	teamId, gameId = uuid.NewString(), uuid.NewString()
	if err := backend.NewTeamStore(dir, s).SaveTeam(&backend.Team{ID: teamId, Name: "Owls", Roster: roster}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	if err := backend.NewGameStore(dir, s).SaveGame(&backend.Game{ID: gameId, TeamID: teamId, Opponent: "Tigers", Date: "2025-04-12", Innings: 4}); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	return dir, teamId, gameId
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"lineupctl"}, args...))
	return out.String(), err
}

func TestLineupctl(t *testing.T) {
	dir, teamId, gameId := setupData(t)

	if _, err := run(t, "--data-dir", dir, "validate", "--game", gameId); err == nil || !strings.Contains(err.Error(), "structural") {
		t.Fatalf("validate on an empty rotation = %v, want structural violations", err)
	}

	// Without --write nothing is stored.
	out, err := run(t, "--data-dir", dir, "autofill", "--game", gameId, "--inning", "2")
	if err != nil {
		t.Fatalf("autofill: %v", err)
	}
	var rot lineup.Rotation
	if err := json.Unmarshal([]byte(out), &rot); err != nil {
		t.Fatalf("autofill output: %v\n%s", err, out)
	}
	if got := rot[2].Filled(); got != lineup.NumPositions {
		t.Errorf("inning 2 has %d positions filled", got)
	}
	if _, err := run(t, "--data-dir", dir, "validate", "--game", gameId); err == nil {
		t.Fatal("autofill without --write changed the stored rotation")
	}

	if _, err := run(t, "--data-dir", dir, "autofill", "--game", gameId, "--write"); err != nil {
		t.Fatalf("autofill --write: %v", err)
	}
	out, err = run(t, "--data-dir", dir, "validate", "--game", gameId)
	if err != nil {
		t.Fatalf("validate after autofill: %v\n%s", err, out)
	}
	var report lineup.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("validate output: %v", err)
	}
	if report.StructuralCount() != 0 {
		t.Errorf("StructuralCount = %d", report.StructuralCount())
	}

	out, err = run(t, "--data-dir", dir, "summary", "--game", gameId, "--player", "p1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var players []backend.PlayerSummary
	if err := json.Unmarshal([]byte(out), &players); err != nil {
		t.Fatalf("summary output: %v", err)
	}
	if len(players) != 1 || players[0].Innings() != 4 {
		t.Errorf("summary = %+v", players)
	}

	out, err = run(t, "--data-dir", dir, "analytics", "--team", teamId, "--q", "opponent:tigers")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	var season struct {
		TeamID string `json:"teamId"`
	}
	if err := json.Unmarshal([]byte(out), &season); err != nil || season.TeamID != teamId {
		t.Errorf("analytics output = %s (%v)", out, err)
	}
}

func TestLineupctlErrors(t *testing.T) {
	dir, _, _ := setupData(t)

	if _, err := run(t, "--data-dir", dir, "validate", "--game", uuid.NewString()); err == nil {
		t.Error("validate of an unknown game succeeded")
	}
	if _, err := run(t, "--data-dir", dir, "validate"); err == nil {
		t.Error("validate without --game succeeded")
	}
	if _, err := run(t, "--data-dir", dir, "analytics", "--team", uuid.NewString()); err == nil {
		t.Error("analytics of an unknown team succeeded")
	}
}
