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
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// GameData is everything stored for one game that the season report reads.
type GameData struct {
	Game         lineup.Game
	BattingOrder lineup.BattingOrder
	Rotation     lineup.Rotation
	Availability []lineup.Availability
}

// SeasonReport bundles the three analytics views for one team.
type SeasonReport struct {
	TeamID   string           `json:"teamId"`
	Team     TeamStats        `json:"team"`
	Batting  []PlayerBatting  `json:"batting"`
	Fielding []PlayerFielding `json:"fielding"`
}

// BuildSeasonReport splits data into the per-game maps the individual
// aggregations take and runs all three. Games without a batting order or
// rotation simply contribute nothing to that view.
func BuildSeasonReport(teamID string, roster []lineup.Player, data []GameData) (*SeasonReport, error) {
	games := make([]lineup.Game, 0, len(data))
	orders := make(map[string]lineup.BattingOrder)
	rotations := make(map[string]lineup.Rotation)
	availability := make(map[string][]lineup.Availability)
	for _, d := range data {
		games = append(games, d.Game)
		if len(d.BattingOrder) > 0 {
			orders[d.Game.ID] = d.BattingOrder
		}
		if len(d.Rotation) > 0 {
			rotations[d.Game.ID] = d.Rotation
		}
		if len(d.Availability) > 0 {
			availability[d.Game.ID] = d.Availability
		}
	}

	fielding, err := FieldingAnalytics(games, rotations, availability, roster)
	if err != nil {
		return nil, err
	}
	return &SeasonReport{
		TeamID:   teamID,
		Team:     TeamAnalytics(games),
		Batting:  BattingAnalytics(games, orders, roster),
		Fielding: fielding,
	}, nil
}
