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

package search

import (
	"strings"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// MatchGame reports whether g satisfies every criterion of q. Free text
// matches the opponent or the game id. Unknown filter keys are ignored.
// Undated games never match a date or month filter.
func MatchGame(g lineup.Game, q Query) bool {
	for _, token := range q.FreeText {
		if !containsLower(g.Opponent, token) && !containsLower(g.ID, token) {
			return false
		}
	}
	for _, f := range q.Filters {
		switch f.Key {
		case "opponent", "vs":
			if !containsLower(g.Opponent, f.Value) {
				return false
			}
		case "date":
			if g.Date == nil || !MatchOrdered(g.Date.Format("2006-01-02"), f) {
				return false
			}
		case "month":
			if g.Date == nil || !MatchOrdered(g.Date.Format("2006-01"), f) {
				return false
			}
		}
	}
	return true
}

// MatchOrdered applies f to a lexically ordered value such as an ISO date.
// Equality and range bounds are prefix matches, so "2025-03" covers every
// day in March.
func MatchOrdered(val string, f Filter) bool {
	switch f.Operator {
	case OpEqual:
		return strings.HasPrefix(val, f.Value)
	case OpGreater:
		return val > f.Value && !strings.HasPrefix(val, f.Value)
	case OpGreaterOrEqual:
		return val >= f.Value
	case OpLess:
		return val < f.Value
	case OpLessOrEqual:
		return val <= f.Value || strings.HasPrefix(val, f.Value)
	case OpRange:
		return val >= f.Value && val <= f.MaxValue+"~"
	}
	return true
}

func containsLower(s, substrLower string) bool {
	return strings.Contains(strings.ToLower(s), substrLower)
}
