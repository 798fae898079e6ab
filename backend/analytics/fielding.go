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

package analytics

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// PlayerFielding sums a player's fielding time over a season.
type PlayerFielding struct {
	PlayerID         lineup.PlayerID         `json:"playerId"`
	Name             string                  `json:"name,omitempty"`
	GamesAvailable   int                     `json:"gamesAvailable"`
	GamesUnavailable int                     `json:"gamesUnavailable"`
	InfieldInnings   int                     `json:"infieldInnings"`
	OutfieldInnings  int                     `json:"outfieldInnings"`
	BenchInnings     int                     `json:"benchInnings"`
	PositionCounts   map[lineup.Position]int `json:"positionCounts"`
}

// HasData is true iff the player held a position in at least one inning of
// at least one rotation.
func (p PlayerFielding) HasData() bool {
	return p.InfieldInnings+p.OutfieldInnings > 0
}

func (p PlayerFielding) MarshalJSON() ([]byte, error) {
	type plain PlayerFielding
	return json.Marshal(struct {
		plain
		HasData bool `json:"hasData"`
	}{plain(p), p.HasData()})
}

// FieldingAnalytics sums lineup.Summarize over every game that has a
// rotation, so the season totals always equal the per-game summaries.
// Availability is counted over all games, defaulting to available. Players
// off the roster get a row when they hold a position within a game's
// innings; assignments past a game's inning count are ignored. A game whose
// inning count is out of range is an input error.
func FieldingAnalytics(games []lineup.Game, rotations map[string]lineup.Rotation, availability map[string][]lineup.Availability, roster []lineup.Player) ([]PlayerFielding, error) {
	byPlayer := make(map[lineup.PlayerID]*PlayerFielding)
	out := make([]*PlayerFielding, 0, len(roster))
	get := func(id lineup.PlayerID, name string) *PlayerFielding {
		if pf, ok := byPlayer[id]; ok {
			return pf
		}
		pf := &PlayerFielding{PlayerID: id, Name: name, PositionCounts: make(map[lineup.Position]int)}
		byPlayer[id] = pf
		out = append(out, pf)
		return pf
	}
	for _, p := range roster {
		get(p.ID, p.Name)
	}
	nRoster := len(out)

	// Players who only show up in a rotation still get a row.
	for _, g := range games {
		rot := rotations[g.ID]
		seen := make(map[lineup.PlayerID]bool)
		for i := 1; i <= g.InningCount(); i++ {
			for _, id := range rot.Inning(i) {
				if _, ok := byPlayer[id]; !ok && id != "" {
					seen[id] = true
				}
			}
		}
		ids := make([]string, 0, len(seen))
		for id := range seen {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		for _, id := range ids {
			get(lineup.PlayerID(id), "")
		}
	}

	for _, g := range games {
		innings := g.InningCount()
		if err := lineup.CheckInnings(innings); err != nil {
			return nil, fmt.Errorf("game %s: %w", g.ID, err)
		}
		avail := lineup.NewAvailabilityMap(availability[g.ID])
		rot, hasRotation := rotations[g.ID]

		for _, pf := range out {
			available := avail.IsAvailable(pf.PlayerID)
			if available {
				pf.GamesAvailable++
			} else {
				pf.GamesUnavailable++
			}
			if !hasRotation {
				continue
			}
			s, err := lineup.Summarize(rot, pf.PlayerID, innings)
			if err != nil {
				return nil, fmt.Errorf("game %s: %w", g.ID, err)
			}
			pf.InfieldInnings += s.Infield
			pf.OutfieldInnings += s.Outfield
			pf.BenchInnings += s.Bench
			for p, n := range s.PositionCounts {
				pf.PositionCounts[p] += n
			}
		}
	}

	extras := out[nRoster:]
	sort.SliceStable(extras, func(i, j int) bool { return extras[i].PlayerID < extras[j].PlayerID })

	result := make([]PlayerFielding, len(out))
	for i, pf := range out {
		result[i] = *pf
	}
	return result, nil
}
