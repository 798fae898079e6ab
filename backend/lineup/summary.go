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

// Summary is one player's fielding time over a game.
type Summary struct {
	PlayerID       PlayerID         `json:"playerId"`
	Infield        int              `json:"infield"`
	Outfield       int              `json:"outfield"`
	Bench          int              `json:"bench"`
	PositionCounts map[Position]int `json:"positionCounts"`
}

// Innings returns Infield+Outfield+Bench.
func (s Summary) Innings() int {
	return s.Infield + s.Outfield + s.Bench
}

// Add accumulates o into s.
func (s *Summary) Add(o Summary) {
	s.Infield += o.Infield
	s.Outfield += o.Outfield
	s.Bench += o.Bench
	if s.PositionCounts == nil {
		s.PositionCounts = make(map[Position]int)
	}
	for p, n := range o.PositionCounts {
		s.PositionCounts[p] += n
	}
}

// positionLookup answers "where is the player in inning i".
type positionLookup func(inning int) (Position, bool)

// tally is shared by Summarize and the validator so both agree on what a
// player did in each inning.
func tally(player PlayerID, innings int, at positionLookup) Summary {
	s := Summary{PlayerID: player, PositionCounts: make(map[Position]int)}
	for i := 1; i <= innings; i++ {
		p, ok := at(i)
		if !ok {
			s.Bench++
			continue
		}
		switch p.Zone() {
		case ZoneInfield:
			s.Infield++
		case ZoneOutfield:
			s.Outfield++
		}
		s.PositionCounts[p]++
	}
	return s
}

// Summarize counts the innings player spent in the infield, in the
// outfield and on the bench, plus how often each position was played.
// Infield+Outfield+Bench always equals innings.
func Summarize(rot Rotation, player PlayerID, innings int) (Summary, error) {
	if err := CheckInnings(innings); err != nil {
		return Summary{}, err
	}
	if err := CheckPlayerID(player); err != nil {
		return Summary{}, err
	}
	return tally(player, innings, func(i int) (Position, bool) {
		return rot[i].PositionOf(player)
	}), nil
}

// SummarizeAll summarizes every player in roster, in roster order.
func SummarizeAll(rot Rotation, roster []Player, innings int) ([]Summary, error) {
	if err := CheckInnings(innings); err != nil {
		return nil, err
	}
	idx := indexRotation(rot, innings)
	out := make([]Summary, 0, len(roster))
	for _, p := range roster {
		if err := CheckPlayerID(p.ID); err != nil {
			return nil, err
		}
		out = append(out, tally(p.ID, innings, idx.lookup(p.ID)))
	}
	return out, nil
}

// SummarizeBatting returns player's 1-indexed slot in order.
func SummarizeBatting(order BattingOrder, player PlayerID) (int, bool) {
	for i, id := range order {
		if id == player {
			return i + 1, true
		}
	}
	return 0, false
}

// rotationIndex holds one reverse index per inning; slot 0 is unused.
type rotationIndex []map[PlayerID][]Position

func indexRotation(rot Rotation, innings int) rotationIndex {
	idx := make(rotationIndex, innings+1)
	for i := 1; i <= innings; i++ {
		idx[i] = rot[i].Index()
	}
	return idx
}

func (idx rotationIndex) lookup(player PlayerID) positionLookup {
	return func(i int) (Position, bool) {
		if i < 1 || i >= len(idx) {
			return "", false
		}
		ps := idx[i][player]
		if len(ps) == 0 {
			return "", false
		}
		return ps[0], true
	}
}
