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
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// isValidUUID checks if the string is a canonical 36 character UUID.
func isValidUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// newID returns a fresh random id for teams and games created without one.
func newID() string {
	return uuid.NewString()
}

// isValidEmail checks if the string is a valid email address.
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

const (
	CurrentSchemaVersion = 1
	CurrentAppVersion    = "0.1.0"

	dateLayout = "2006-01-02"

	maxNameLen     = 100
	maxNumberLen   = 10
	maxRosterSize  = 40
	maxPlayerIDLen = 64
	maxMembers     = 100
)

// Edit types accepted by the hub, the HTTP API and the MCP tools.
const (
	EditAssign          = "ASSIGN"
	EditClear           = "CLEAR"
	EditCopyInning      = "COPY_INNING"
	EditAutofillInning  = "AUTOFILL_INNING"
	EditAutofillAll     = "AUTOFILL_ALL"
	EditSetAvailability = "SET_AVAILABILITY"
	EditSetBattingOrder = "SET_BATTING_ORDER"
	EditReplaceRotation = "REPLACE_ROTATION"
)

var (
	// ErrUnknownEdit is the input error kind for an unrecognized edit type.
	ErrUnknownEdit = errors.New("unknown edit type")

	// ErrInvalidID is the input error kind for a malformed team or game id.
	ErrInvalidID = errors.New("invalid id")
)

// checkID rejects anything but a canonical UUID.
func checkID(field, id string) error {
	if !isValidUUID(id) {
		return &lineup.InputError{Kind: ErrInvalidID, Field: field, Value: id}
	}
	return nil
}

// Edit is one change to a game's lineup.
type Edit struct {
	Type         string                `json:"type"`
	Inning       int                   `json:"inning,omitempty"`
	Position     lineup.Position       `json:"position,omitempty"`
	PlayerID     lineup.PlayerID       `json:"playerId,omitempty"`
	Availability []lineup.Availability `json:"availability,omitempty"`
	BattingOrder lineup.BattingOrder   `json:"battingOrder,omitempty"`
	Rotation     lineup.Rotation       `json:"rotation,omitempty"`
}

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if len(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

func validateRoster(roster []lineup.Player) error {
	if len(roster) > maxRosterSize {
		return fmt.Errorf("roster too large (max %d players)", maxRosterSize)
	}
	seen := make(map[lineup.PlayerID]bool, len(roster))
	for _, p := range roster {
		if err := lineup.CheckPlayerID(p.ID); err != nil {
			return err
		}
		if err := validateStringLen(string(p.ID), maxPlayerIDLen, "player id"); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate player id %q", p.ID)
		}
		seen[p.ID] = true
		if err := validateStringLen(p.Name, maxNameLen, "player name"); err != nil {
			return err
		}
		if err := validateStringLen(p.Number, maxNumberLen, "player number"); err != nil {
			return err
		}
	}
	return nil
}

// decodeTeam parses and validates a team body. A missing id is generated.
func decodeTeam(data []byte) (*Team, error) {
	var t Team
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("malformed team JSON: %w", err)
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if !isValidUUID(t.ID) {
		return nil, fmt.Errorf("invalid team ID format: %s", t.ID)
	}
	if err := validateStringLen(t.Name, maxNameLen, "team name"); err != nil {
		return nil, err
	}
	if err := validateRoster(t.Roster); err != nil {
		return nil, err
	}
	if n := len(t.Roles.Admins) + len(t.Roles.Coaches) + len(t.Roles.Viewers); n > maxMembers {
		return nil, fmt.Errorf("too many members (max %d)", maxMembers)
	}
	t.normalize()
	return &t, nil
}

// decodeGame parses and validates a game body. The lineup document is
// ignored; it is only written through the lineup endpoints.
func decodeGame(data []byte) (*Game, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("malformed game JSON: %w", err)
	}
	if g.ID == "" {
		g.ID = newID()
	}
	if !isValidUUID(g.ID) {
		return nil, fmt.Errorf("invalid game ID format: %s", g.ID)
	}
	if !isValidUUID(g.TeamID) {
		return nil, fmt.Errorf("invalid team ID format: %s", g.TeamID)
	}
	if err := validateStringLen(g.Opponent, maxNameLen, "opponent"); err != nil {
		return nil, err
	}
	if err := validateStringLen(g.Location, maxNameLen, "location"); err != nil {
		return nil, err
	}
	if g.Date != "" {
		if _, err := time.Parse(dateLayout, g.Date); err != nil {
			return nil, fmt.Errorf("invalid date format (want YYYY-MM-DD): %v", err)
		}
	}
	if g.Innings != 0 {
		if err := lineup.CheckInnings(g.Innings); err != nil {
			return nil, err
		}
	}
	g.Lineup = Lineup{}
	g.normalize()
	return &g, nil
}

// ValidateEdit checks the shape of e against a game with the given number
// of innings.
func ValidateEdit(e Edit, innings int) error {
	switch e.Type {
	case EditAssign:
		if err := lineup.CheckInning(e.Inning, innings); err != nil {
			return err
		}
		if !e.Position.Valid() {
			return &lineup.InputError{Kind: lineup.ErrInvalidPosition, Field: "position", Value: e.Position, Reason: "unknown position"}
		}
		return lineup.CheckPlayerID(e.PlayerID)
	case EditClear:
		if err := lineup.CheckInning(e.Inning, innings); err != nil {
			return err
		}
		if !e.Position.Valid() {
			return &lineup.InputError{Kind: lineup.ErrInvalidPosition, Field: "position", Value: e.Position, Reason: "unknown position"}
		}
		return nil
	case EditCopyInning, EditAutofillInning:
		return lineup.CheckInning(e.Inning, innings)
	case EditAutofillAll:
		return nil
	case EditSetAvailability:
		for _, a := range e.Availability {
			if err := lineup.CheckPlayerID(a.PlayerID); err != nil {
				return err
			}
		}
		return nil
	case EditSetBattingOrder:
		seen := make(map[lineup.PlayerID]bool, len(e.BattingOrder))
		for _, id := range e.BattingOrder {
			if err := lineup.CheckPlayerID(id); err != nil {
				return err
			}
			if seen[id] {
				return &lineup.InputError{Kind: lineup.ErrInvalidPlayer, Field: "battingOrder", Value: id, Reason: "player listed twice"}
			}
			seen[id] = true
		}
		return nil
	case EditReplaceRotation:
		for inning := range e.Rotation {
			if err := lineup.CheckInning(inning, innings); err != nil {
				return err
			}
		}
		return nil
	default:
		return &lineup.InputError{Kind: ErrUnknownEdit, Field: "type", Value: e.Type}
	}
}

// ApplyEdit validates e and applies it to l. Players must be on roster.
// Autofill draws from the batting order first, then the rest of the roster.
func ApplyEdit(l *Lineup, e Edit, roster []lineup.Player, innings int) error {
	if err := ValidateEdit(e, innings); err != nil {
		return err
	}
	onRoster := make(map[lineup.PlayerID]bool, len(roster))
	for _, p := range roster {
		onRoster[p.ID] = true
	}
	requireRoster := func(id lineup.PlayerID, field string) error {
		if !onRoster[id] {
			return &lineup.InputError{Kind: lineup.ErrInvalidPlayer, Field: field, Value: id, Reason: "player is not on the roster"}
		}
		return nil
	}
	if l.Rotation == nil {
		l.Rotation = make(lineup.Rotation)
	}

	switch e.Type {
	case EditAssign:
		if err := requireRoster(e.PlayerID, "playerId"); err != nil {
			return err
		}
		return l.Rotation.Assign(e.Inning, e.Position, e.PlayerID)
	case EditClear:
		return l.Rotation.Clear(e.Inning, e.Position)
	case EditCopyInning:
		rot, err := lineup.CopyFromPreviousInning(l.Rotation, e.Inning, innings)
		if err != nil {
			return err
		}
		l.Rotation = rot
	case EditAutofillInning:
		a := lineup.AutoAssignInning(l.Rotation.Inning(e.Inning), l.pool(roster), l.availability())
		rot := l.Rotation.Clone()
		rot[e.Inning] = a
		l.Rotation = rot
	case EditAutofillAll:
		rot, err := lineup.AutoAssignAllInnings(l.Rotation, l.pool(roster), l.availability(), innings)
		if err != nil {
			return err
		}
		l.Rotation = rot
	case EditSetAvailability:
		for _, a := range e.Availability {
			if err := requireRoster(a.PlayerID, "availability"); err != nil {
				return err
			}
		}
		l.Availability = mergeAvailability(l.Availability, e.Availability)
	case EditSetBattingOrder:
		for _, id := range e.BattingOrder {
			if err := requireRoster(id, "battingOrder"); err != nil {
				return err
			}
		}
		l.BattingOrder = append(lineup.BattingOrder(nil), e.BattingOrder...)
	case EditReplaceRotation:
		for _, a := range e.Rotation {
			for _, id := range a {
				if id == "" {
					continue
				}
				if err := requireRoster(id, "rotation"); err != nil {
					return err
				}
			}
		}
		l.Rotation = e.Rotation.Clone()
	}
	return nil
}

// mergeAvailability replaces records for the same player and keeps the rest.
func mergeAvailability(current, updates []lineup.Availability) []lineup.Availability {
	idx := make(map[lineup.PlayerID]int, len(current))
	out := append([]lineup.Availability(nil), current...)
	for i, a := range out {
		idx[a.PlayerID] = i
	}
	for _, a := range updates {
		if i, ok := idx[a.PlayerID]; ok {
			out[i] = a
			continue
		}
		idx[a.PlayerID] = len(out)
		out = append(out, a)
	}
	return out
}
