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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

func testRoster(n int) []lineup.Player {
	roster := make([]lineup.Player, n)
	for i := range roster {
		roster[i] = lineup.Player{
			ID:     lineup.PlayerID(fmt.Sprintf("p%d", i+1)),
			Name:   fmt.Sprintf("Player %d", i+1),
			Number: fmt.Sprint(i + 1),
		}
	}
	return roster
}

func TestDecodeTeam(t *testing.T) {
	validUUID := "aaaaaaaa-aaaa-4aaa-aaaa-aaaaaaaaaaaa"

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "Valid", body: fmt.Sprintf(`{"id":"%s","name":"Owls","roster":[{"id":"p1","name":"A"}]}`, validUUID)},
		{name: "Missing ID is generated", body: `{"name":"Owls"}`},
		{name: "Malformed JSON", body: `{"name":`, wantErr: true},
		{name: "Invalid ID", body: `{"id":"team-1"}`, wantErr: true},
		{name: "Long name", body: fmt.Sprintf(`{"name":"%s"}`, strings.Repeat("x", maxNameLen+1)), wantErr: true},
		{name: "Duplicate player", body: `{"roster":[{"id":"p1"},{"id":"p1"}]}`, wantErr: true},
		{name: "Padded player id", body: `{"roster":[{"id":" p1"}]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			team, err := decodeTeam([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeTeam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if !isValidUUID(team.ID) {
					t.Errorf("team id %q is not a UUID", team.ID)
				}
				if team.SchemaVersion != CurrentSchemaVersion {
					t.Errorf("SchemaVersion = %d", team.SchemaVersion)
				}
			}
		})
	}
}

func TestDecodeGame(t *testing.T) {
	teamId := "bbbbbbbb-bbbb-4bbb-bbbb-bbbbbbbbbbbb"

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "Valid", body: fmt.Sprintf(`{"teamId":"%s","opponent":"Tigers","date":"2025-04-12","innings":7}`, teamId)},
		{name: "Missing team", body: `{"opponent":"Tigers"}`, wantErr: true},
		{name: "Bad date", body: fmt.Sprintf(`{"teamId":"%s","date":"04/12/2025"}`, teamId), wantErr: true},
		{name: "Too many innings", body: fmt.Sprintf(`{"teamId":"%s","innings":10}`, teamId), wantErr: true},
		{name: "Lineup ignored", body: fmt.Sprintf(`{"teamId":"%s","lineup":{"battingOrder":["p1"]}}`, teamId)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := decodeGame([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeGame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(g.Lineup.BattingOrder) != 0 {
				t.Errorf("lineup was not dropped: %+v", g.Lineup)
			}
		})
	}
}

func TestValidateEdit(t *testing.T) {
	tests := []struct {
		name string
		edit Edit
		kind error
	}{
		{name: "Assign", edit: Edit{Type: EditAssign, Inning: 1, Position: lineup.Pitcher, PlayerID: "p1"}},
		{name: "Assign bad inning", edit: Edit{Type: EditAssign, Inning: 7, Position: lineup.Pitcher, PlayerID: "p1"}, kind: lineup.ErrInvalidInning},
		{name: "Assign bad position", edit: Edit{Type: EditAssign, Inning: 1, Position: "DH", PlayerID: "p1"}, kind: lineup.ErrInvalidPosition},
		{name: "Assign empty player", edit: Edit{Type: EditAssign, Inning: 1, Position: lineup.Pitcher}, kind: lineup.ErrInvalidPlayer},
		{name: "Clear", edit: Edit{Type: EditClear, Inning: 6, Position: lineup.RightCenter}},
		{name: "Copy first inning", edit: Edit{Type: EditCopyInning, Inning: 0}, kind: lineup.ErrInvalidInning},
		{name: "Autofill all", edit: Edit{Type: EditAutofillAll}},
		{name: "Batting order twice", edit: Edit{Type: EditSetBattingOrder, BattingOrder: lineup.BattingOrder{"p1", "p1"}}, kind: lineup.ErrInvalidPlayer},
		{name: "Rotation inning out of range", edit: Edit{Type: EditReplaceRotation, Rotation: lineup.Rotation{9: {}}}, kind: lineup.ErrInvalidInning},
		{name: "Unknown", edit: Edit{Type: "SWAP"}, kind: ErrUnknownEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEdit(tt.edit, 6)
			if tt.kind == nil {
				if err != nil {
					t.Fatalf("ValidateEdit() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.kind) || !lineup.IsInputError(err) {
				t.Errorf("ValidateEdit() = %v, want input error %v", err, tt.kind)
			}
		})
	}
}

func TestApplyEdit(t *testing.T) {
	roster := testRoster(12)
	var l Lineup
	l.normalize()

	if err := ApplyEdit(&l, Edit{Type: EditAssign, Inning: 1, Position: lineup.Pitcher, PlayerID: "p1"}, roster, 6); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	// Moving a player clears their old position in that inning.
	if err := ApplyEdit(&l, Edit{Type: EditAssign, Inning: 1, Position: lineup.Catcher, PlayerID: "p1"}, roster, 6); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got := l.Rotation[1]; got[lineup.Pitcher] != "" || got[lineup.Catcher] != "p1" {
		t.Errorf("inning 1 = %v", got)
	}
	if err := ApplyEdit(&l, Edit{Type: EditAssign, Inning: 1, Position: lineup.Pitcher, PlayerID: "stranger"}, roster, 6); !lineup.IsInputError(err) {
		t.Errorf("Assign off-roster player = %v, want input error", err)
	}

	if err := ApplyEdit(&l, Edit{Type: EditCopyInning, Inning: 2}, roster, 6); err != nil {
		t.Fatalf("CopyInning: %v", err)
	}
	if l.Rotation[2][lineup.Catcher] != "p1" {
		t.Errorf("inning 2 = %v, want a copy of inning 1", l.Rotation[2])
	}

	avail := []lineup.Availability{{PlayerID: "p10", Available: false}}
	if err := ApplyEdit(&l, Edit{Type: EditSetAvailability, Availability: avail}, roster, 6); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	if err := ApplyEdit(&l, Edit{Type: EditAutofillAll}, roster, 6); err != nil {
		t.Fatalf("AutofillAll: %v", err)
	}
	for inning := 1; inning <= 6; inning++ {
		a := l.Rotation[inning]
		if a.Filled() != lineup.NumPositions {
			t.Errorf("inning %d has %d positions filled", inning, a.Filled())
		}
		if _, ok := a.PositionOf("p10"); ok {
			t.Errorf("inning %d: unavailable player placed", inning)
		}
	}

	if err := ApplyEdit(&l, Edit{Type: EditSetBattingOrder, BattingOrder: lineup.BattingOrder{"p2", "p1"}}, roster, 6); err != nil {
		t.Fatalf("SetBattingOrder: %v", err)
	}
	if len(l.BattingOrder) != 2 || l.BattingOrder[0] != "p2" {
		t.Errorf("BattingOrder = %v", l.BattingOrder)
	}

	if err := ApplyEdit(&l, Edit{Type: EditReplaceRotation, Rotation: lineup.Rotation{1: {lineup.Pitcher: "ghost"}}}, roster, 6); !lineup.IsInputError(err) {
		t.Errorf("ReplaceRotation with unknown player = %v, want input error", err)
	}
}

func TestMergeAvailability(t *testing.T) {
	current := []lineup.Availability{
		{PlayerID: "p1", Available: true},
		{PlayerID: "p2", Available: true},
	}
	got := mergeAvailability(current, []lineup.Availability{
		{PlayerID: "p2", Available: false},
		{PlayerID: "p3", Available: true, CanPlayCatcher: true},
	})
	want := []lineup.Availability{
		{PlayerID: "p1", Available: true},
		{PlayerID: "p2", Available: false},
		{PlayerID: "p3", Available: true, CanPlayCatcher: true},
	}
	if len(got) != len(want) {
		t.Fatalf("mergeAvailability = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mergeAvailability[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !current[1].Available {
		t.Error("mergeAvailability modified its input")
	}
}
