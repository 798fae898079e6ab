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

// Package analytics derives season statistics from stored games, batting
// orders, rotations and availability. Nothing here is persisted; every
// result is recomputed from the inputs and HasData is always derived from
// the aggregated collections.
package analytics

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// TeamStats counts dated games by month and weekday.
type TeamStats struct {
	TotalGames   int            `json:"totalGames"`
	GamesByMonth map[string]int `json:"gamesByMonth"`
	GamesByDay   map[string]int `json:"gamesByDay"`
}

// HasData is true iff at least one dated game was counted into a bucket.
func (s TeamStats) HasData() bool {
	if s.TotalGames == 0 {
		return false
	}
	for _, n := range s.GamesByMonth {
		if n > 0 {
			return true
		}
	}
	for _, n := range s.GamesByDay {
		if n > 0 {
			return true
		}
	}
	return false
}

func (s TeamStats) MarshalJSON() ([]byte, error) {
	type plain TeamStats
	return json.Marshal(struct {
		plain
		HasData bool `json:"hasData"`
	}{plain(s), s.HasData()})
}

// TeamAnalytics buckets the dated games by "YYYY-MM" and by weekday name.
// Undated games are not counted. All seven weekdays are always present.
func TeamAnalytics(games []lineup.Game) TeamStats {
	s := TeamStats{
		GamesByMonth: make(map[string]int),
		GamesByDay:   make(map[string]int, 7),
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		s.GamesByDay[d.String()] = 0
	}
	for _, g := range games {
		if g.Date == nil {
			continue
		}
		s.TotalGames++
		s.GamesByMonth[g.Date.Format("2006-01")]++
		s.GamesByDay[g.Date.Weekday().String()]++
	}
	return s
}

// BattingEntry is one game's batting slot for a player.
type BattingEntry struct {
	GameID   string     `json:"gameId"`
	Opponent string     `json:"opponent,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Position int        `json:"position"`
}

// PlayerBatting is a player's batting order history.
type PlayerBatting struct {
	PlayerID           lineup.PlayerID `json:"playerId"`
	Name               string          `json:"name,omitempty"`
	AvgBattingPosition float64         `json:"avgBattingPosition"`
	PositionHistory    []BattingEntry  `json:"positionHistory"`
}

func (p PlayerBatting) HasData() bool {
	return len(p.PositionHistory) > 0
}

func (p PlayerBatting) MarshalJSON() ([]byte, error) {
	type plain PlayerBatting
	return json.Marshal(struct {
		plain
		HasData bool `json:"hasData"`
	}{plain(p), p.HasData()})
}

// BattingAnalytics collects every (game, slot) pair for each player from
// orders, keyed by game id. History is in date order with undated games
// last. Roster players come first in roster order; anyone found only in a
// batting order follows, sorted by id.
func BattingAnalytics(games []lineup.Game, orders map[string]lineup.BattingOrder, roster []lineup.Player) []PlayerBatting {
	byPlayer := make(map[lineup.PlayerID]*PlayerBatting)
	out := make([]*PlayerBatting, 0, len(roster))
	get := func(id lineup.PlayerID, name string) *PlayerBatting {
		if pb, ok := byPlayer[id]; ok {
			return pb
		}
		pb := &PlayerBatting{PlayerID: id, Name: name, PositionHistory: make([]BattingEntry, 0)}
		byPlayer[id] = pb
		out = append(out, pb)
		return pb
	}
	for _, p := range roster {
		get(p.ID, p.Name)
	}
	nRoster := len(out)

	for _, g := range chronological(games) {
		order, ok := orders[g.ID]
		if !ok {
			continue
		}
		for i, id := range order {
			if id == "" {
				continue
			}
			pb := get(id, "")
			pb.PositionHistory = append(pb.PositionHistory, BattingEntry{
				GameID:   g.ID,
				Opponent: g.Opponent,
				Date:     g.Date,
				Position: i + 1,
			})
		}
	}

	extras := out[nRoster:]
	sort.Slice(extras, func(i, j int) bool { return extras[i].PlayerID < extras[j].PlayerID })

	result := make([]PlayerBatting, 0, len(out))
	for _, pb := range out {
		if n := len(pb.PositionHistory); n > 0 {
			sum := 0
			for _, e := range pb.PositionHistory {
				sum += e.Position
			}
			pb.AvgBattingPosition = float64(sum) / float64(n)
		}
		result = append(result, *pb)
	}
	return result
}

// chronological returns games sorted by date, undated last, ties in input
// order.
func chronological(games []lineup.Game) []lineup.Game {
	out := make([]lineup.Game, len(games))
	copy(out, games)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Date, out[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out
}
