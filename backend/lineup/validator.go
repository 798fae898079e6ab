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
)

// DuplicateAssignment is a player holding more than one position in the
// same inning.
type DuplicateAssignment struct {
	PlayerID  PlayerID   `json:"playerId"`
	Positions []Position `json:"positions"`
}

// InningViolations are the structural findings for one inning.
type InningViolations struct {
	Inning     int                   `json:"inning"`
	Missing    []Position            `json:"missing,omitempty"`
	Duplicates []DuplicateAssignment `json:"duplicates,omitempty"`
}

// RepeatedPosition is a position a player held in Count innings (Count > 1).
type RepeatedPosition struct {
	Position Position `json:"position"`
	Count    int      `json:"count"`
}

// ConsecutiveZone is a pair of adjacent innings played in the same zone.
type ConsecutiveZone struct {
	FromInning int      `json:"fromInning"`
	ToInning   int      `json:"toInning"`
	Zone       Zone     `json:"zone"`
	From       Position `json:"from"`
	To         Position `json:"to"`
}

// PlayerViolations are the fairness findings for one player.
type PlayerViolations struct {
	PlayerID    PlayerID           `json:"playerId"`
	Name        string             `json:"name,omitempty"`
	Repeated    []RepeatedPosition `json:"repeated,omitempty"`
	Consecutive []ConsecutiveZone  `json:"consecutive,omitempty"`
}

// Report is the result of Validate. Only innings and players with findings
// are listed, innings ascending and players in the order given.
type Report struct {
	Innings []InningViolations `json:"innings"`
	Players []PlayerViolations `json:"players"`
}

// HasViolations reports whether anything was found.
func (r *Report) HasViolations() bool {
	return len(r.Innings) > 0 || len(r.Players) > 0
}

// StructuralCount counts missing positions and duplicate players.
func (r *Report) StructuralCount() int {
	n := 0
	for _, iv := range r.Innings {
		n += len(iv.Missing) + len(iv.Duplicates)
	}
	return n
}

// FairnessCount counts repeated positions and consecutive-zone pairs.
func (r *Report) FairnessCount() int {
	n := 0
	for _, pv := range r.Players {
		n += len(pv.Repeated) + len(pv.Consecutive)
	}
	return n
}

// Lines renders one human-readable line per finding.
func (r *Report) Lines() []string {
	var out []string
	for _, iv := range r.Innings {
		if len(iv.Missing) > 0 {
			codes := make([]string, len(iv.Missing))
			for i, p := range iv.Missing {
				codes[i] = string(p)
			}
			out = append(out, fmt.Sprintf("Inning %d: missing %s", iv.Inning, strings.Join(codes, ", ")))
		}
		for _, d := range iv.Duplicates {
			codes := make([]string, len(d.Positions))
			for i, p := range d.Positions {
				codes[i] = string(p)
			}
			out = append(out, fmt.Sprintf("Inning %d: %s assigned to %s", iv.Inning, d.PlayerID, strings.Join(codes, ", ")))
		}
	}
	for _, pv := range r.Players {
		who := pv.Name
		if who == "" {
			who = string(pv.PlayerID)
		}
		for _, rp := range pv.Repeated {
			out = append(out, fmt.Sprintf("%s plays %s %d times", who, rp.Position.Name(), rp.Count))
		}
		for _, cz := range pv.Consecutive {
			out = append(out, fmt.Sprintf("%s plays %s in innings %d and %d", who, cz.Zone, cz.FromInning, cz.ToInning))
		}
	}
	return out
}

// Summary joins Lines, or reports a clean rotation.
func (r *Report) Summary() string {
	lines := r.Lines()
	if len(lines) == 0 {
		return "No violations"
	}
	return strings.Join(lines, "\n")
}

// Validate checks rot over innings 1..innings for missing positions,
// duplicate players, repeated positions and consecutive same-zone innings.
// An incomplete or inconsistent rotation is a finding, not an error; only
// an out-of-range inning count is rejected. rot is not modified.
func Validate(rot Rotation, available []Player, innings int) (*Report, error) {
	if err := CheckInnings(innings); err != nil {
		return nil, err
	}
	idx := indexRotation(rot, innings)
	report := &Report{
		Innings: make([]InningViolations, 0),
		Players: make([]PlayerViolations, 0),
	}

	for i := 1; i <= innings; i++ {
		iv := InningViolations{Inning: i}
		a := rot[i]
		for _, p := range positions {
			if a[p] == "" {
				iv.Missing = append(iv.Missing, p)
			}
		}
		// Walk positions, not the map, so duplicates come out in a stable order.
		seen := make(map[PlayerID]bool)
		for _, p := range positions {
			id := a[p]
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if held := idx[i][id]; len(held) > 1 {
				iv.Duplicates = append(iv.Duplicates, DuplicateAssignment{PlayerID: id, Positions: held})
			}
		}
		if len(iv.Missing) > 0 || len(iv.Duplicates) > 0 {
			report.Innings = append(report.Innings, iv)
		}
	}

	for _, player := range available {
		at := idx.lookup(player.ID)
		pv := PlayerViolations{PlayerID: player.ID, Name: player.Name}

		s := tally(player.ID, innings, at)
		for _, p := range positions {
			if n := s.PositionCounts[p]; n > 1 {
				pv.Repeated = append(pv.Repeated, RepeatedPosition{Position: p, Count: n})
			}
		}

		for i := 1; i < innings; i++ {
			from, ok1 := at(i)
			to, ok2 := at(i + 1)
			if !ok1 || !ok2 {
				continue
			}
			if z := from.Zone(); z == to.Zone() {
				pv.Consecutive = append(pv.Consecutive, ConsecutiveZone{
					FromInning: i,
					ToInning:   i + 1,
					Zone:       z,
					From:       from,
					To:         to,
				})
			}
		}

		if len(pv.Repeated) > 0 || len(pv.Consecutive) > 0 {
			report.Players = append(report.Players, pv)
		}
	}
	return report, nil
}
