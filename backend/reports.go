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
	"github.com/ttbt-io/lineupkeeper/backend/analytics"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
	"github.com/ttbt-io/lineupkeeper/backend/search"
)

// PlayerSummary is a roster player's fielding summary for one game.
type PlayerSummary struct {
	lineup.Summary
	Name            string `json:"name"`
	Number          string `json:"number,omitempty"`
	Available       bool   `json:"available"`
	BattingPosition int    `json:"battingPosition,omitempty"`
}

// ValidationResult is the validation report together with its rendering.
type ValidationResult struct {
	Report          *lineup.Report `json:"report"`
	StructuralCount int            `json:"structuralCount"`
	FairnessCount   int            `json:"fairnessCount"`
	Lines           []string       `json:"lines"`
}

func newValidationResult(r *lineup.Report) ValidationResult {
	lines := r.Lines()
	if lines == nil {
		lines = []string{}
	}
	return ValidationResult{
		Report:          r,
		StructuralCount: r.StructuralCount(),
		FairnessCount:   r.FairnessCount(),
		Lines:           lines,
	}
}

// ValidateGame validates rot, or the stored rotation when rot is nil,
// against the players available for g.
func ValidateGame(g *Game, team *Team, rot lineup.Rotation) (*lineup.Report, error) {
	if rot == nil {
		rot = g.Lineup.Rotation
	}
	return lineup.Validate(rot, g.Lineup.available(team.Roster), g.InningCount())
}

// SummarizeGame summarizes every roster player for g, or only playerId
// when it is set.
func SummarizeGame(g *Game, team *Team, playerId lineup.PlayerID) ([]PlayerSummary, error) {
	roster := team.Roster
	if playerId != "" {
		if err := lineup.CheckPlayerID(playerId); err != nil {
			return nil, err
		}
		roster = nil
		for _, p := range team.Roster {
			if p.ID == playerId {
				roster = append(roster, p)
			}
		}
		if len(roster) == 0 {
			return nil, &lineup.InputError{Kind: lineup.ErrInvalidPlayer, Field: "playerId", Value: playerId, Reason: "player is not on the roster"}
		}
	}
	summaries, err := lineup.SummarizeAll(g.Lineup.Rotation, roster, g.InningCount())
	if err != nil {
		return nil, err
	}
	avail := g.Lineup.availability()
	out := make([]PlayerSummary, len(summaries))
	for i, s := range summaries {
		out[i] = PlayerSummary{
			Summary:   s,
			Name:      roster[i].Name,
			Number:    roster[i].Number,
			Available: avail.IsAvailable(s.PlayerID),
		}
		if pos, ok := lineup.SummarizeBatting(g.Lineup.BattingOrder, s.PlayerID); ok {
			out[i].BattingPosition = pos
		}
	}
	return out, nil
}

// TeamReport builds the season report of team over the live games matching
// query. An empty query keeps every game.
func TeamReport(team *Team, games []*Game, query string) (*analytics.SeasonReport, error) {
	q := search.Parse(query)
	data := make([]analytics.GameData, 0, len(games))
	for _, g := range games {
		if g.Status == "deleted" || g.TeamID != team.ID {
			continue
		}
		lg := g.LineupGame()
		if !q.Empty() && !search.MatchGame(lg, q) {
			continue
		}
		data = append(data, analytics.GameData{
			Game:         lg,
			BattingOrder: g.Lineup.BattingOrder,
			Rotation:     g.Lineup.Rotation,
			Availability: g.Lineup.Availability,
		})
	}
	return analytics.BuildSeasonReport(team.ID, team.Roster, data)
}
