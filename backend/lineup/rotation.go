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

package lineup

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultInnings = 6
	MinInnings     = 1
	MaxInnings     = 9
)

// PlayerID identifies a player on a team roster.
type PlayerID string

// Player is a roster entry.
type Player struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	Number string   `json:"number,omitempty"`
}

// Game is the schedule entry a lineup belongs to.
type Game struct {
	ID       string     `json:"id"`
	TeamID   string     `json:"teamId"`
	Opponent string     `json:"opponent,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Innings  int        `json:"innings,omitempty"`
}

// InningCount returns the number of innings, DefaultInnings when unset.
func (g Game) InningCount() int {
	if g.Innings == 0 {
		return DefaultInnings
	}
	return g.Innings
}

// Availability is the per-game record for one player.
type Availability struct {
	PlayerID       PlayerID `json:"playerId"`
	Available      bool     `json:"available"`
	CanPlayCatcher bool     `json:"canPlayCatcher"`
}

// AvailabilityMap indexes availability records by player. A player without
// a record is available and cannot catch.
type AvailabilityMap map[PlayerID]Availability

// NewAvailabilityMap indexes records. Later records win.
func NewAvailabilityMap(records []Availability) AvailabilityMap {
	m := make(AvailabilityMap, len(records))
	for _, a := range records {
		m[a.PlayerID] = a
	}
	return m
}

func (m AvailabilityMap) IsAvailable(id PlayerID) bool {
	a, ok := m[id]
	return !ok || a.Available
}

func (m AvailabilityMap) CanPlayCatcher(id PlayerID) bool {
	return m[id].CanPlayCatcher
}

// AvailablePlayers filters roster down to the players that can play.
func (m AvailabilityMap) AvailablePlayers(roster []Player) []Player {
	out := make([]Player, 0, len(roster))
	for _, p := range roster {
		if m.IsAvailable(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// BattingOrder lists player ids; batting position is index+1.
type BattingOrder []PlayerID

// InningAssignment maps positions to players for one inning. A position
// without an entry, or with an empty id, is unfilled.
type InningAssignment map[Position]PlayerID

// Clone returns a structural copy.
func (a InningAssignment) Clone() InningAssignment {
	out := make(InningAssignment, len(a))
	for p, id := range a {
		out[p] = id
	}
	return out
}

// Filled returns the number of valid positions holding a player.
func (a InningAssignment) Filled() int {
	n := 0
	for _, p := range positions {
		if a[p] != "" {
			n++
		}
	}
	return n
}

// Index builds the player to positions reverse index, positions in
// canonical order. More than one position for a player is a duplicate.
func (a InningAssignment) Index() map[PlayerID][]Position {
	idx := make(map[PlayerID][]Position, len(a))
	for _, p := range positions {
		if id := a[p]; id != "" {
			idx[id] = append(idx[id], p)
		}
	}
	return idx
}

// PositionOf returns the first position, in canonical order, held by id.
func (a InningAssignment) PositionOf(id PlayerID) (Position, bool) {
	for _, p := range positions {
		if a[p] == id && id != "" {
			return p, true
		}
	}
	return "", false
}

// Rotation maps inning numbers (1-based) to that inning's assignment.
type Rotation map[int]InningAssignment

// Clone returns a deep copy.
func (r Rotation) Clone() Rotation {
	out := make(Rotation, len(r))
	for i, a := range r {
		out[i] = a.Clone()
	}
	return out
}

// Inning returns the assignment for inning i, nil when absent.
func (r Rotation) Inning(i int) InningAssignment {
	return r[i]
}

// Assign places player at pos in inning, first clearing whatever position
// the player held in that inning. Inputs are checked before anything
// changes.
func (r Rotation) Assign(inning int, pos Position, player PlayerID) error {
	if err := CheckInning(inning, MaxInnings); err != nil {
		return err
	}
	if !pos.Valid() {
		return &InputError{Kind: ErrInvalidPosition, Field: "position", Value: string(pos)}
	}
	if err := CheckPlayerID(player); err != nil {
		return err
	}
	a := r[inning]
	if a == nil {
		a = make(InningAssignment, NumPositions)
		r[inning] = a
	}
	for p, id := range a {
		if id == player {
			delete(a, p)
		}
	}
	a[pos] = player
	return nil
}

// Clear removes whoever holds pos in inning.
func (r Rotation) Clear(inning int, pos Position) error {
	if err := CheckInning(inning, MaxInnings); err != nil {
		return err
	}
	if !pos.Valid() {
		return &InputError{Kind: ErrInvalidPosition, Field: "position", Value: string(pos)}
	}
	delete(r[inning], pos)
	return nil
}

// Players returns every distinct player id appearing anywhere in r.
func (r Rotation) Players() map[PlayerID]bool {
	out := make(map[PlayerID]bool)
	for _, a := range r {
		for _, id := range a {
			if id != "" {
				out[id] = true
			}
		}
	}
	return out
}

// CheckInnings rejects an inning count outside MinInnings..MaxInnings.
func CheckInnings(n int) error {
	if n < MinInnings || n > MaxInnings {
		return &InputError{Kind: ErrInvalidInnings, Field: "innings", Value: n, Reason: fmt.Sprintf("must be between %d and %d", MinInnings, MaxInnings)}
	}
	return nil
}

// CheckInning rejects an inning outside 1..innings.
func CheckInning(inning, innings int) error {
	if inning < 1 || inning > innings {
		return &InputError{Kind: ErrInvalidInning, Field: "inning", Value: inning, Reason: fmt.Sprintf("must be between 1 and %d", innings)}
	}
	return nil
}

// CheckPlayerID rejects empty or whitespace-padded ids.
func CheckPlayerID(id PlayerID) error {
	if id == "" || strings.TrimSpace(string(id)) != string(id) {
		return &InputError{Kind: ErrInvalidPlayer, Field: "playerId", Value: string(id)}
	}
	return nil
}
