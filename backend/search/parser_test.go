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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Query
	}{
		{
			input:    "Tigers",
			expected: Query{FreeText: []string{"tigers"}},
		},
		{
			input:    "opponent:Tigers",
			expected: Query{Filters: []Filter{{Key: "opponent", Value: "tigers", Operator: OpEqual}}},
		},
		{
			input: "opponent:\"Red Sox\" month:2025-04",
			expected: Query{Filters: []Filter{
				{Key: "opponent", Value: "red sox", Operator: OpEqual},
				{Key: "month", Value: "2025-04", Operator: OpEqual},
			}},
		},
		{
			input:    "date:>=\"2025-04-01\"",
			expected: Query{Filters: []Filter{{Key: "date", Value: "2025-04-01", Operator: OpGreaterOrEqual}}},
		},
		{
			input:    "DATE:<2026",
			expected: Query{Filters: []Filter{{Key: "date", Value: "2026", Operator: OpLess}}},
		},
		{
			input:    "date:<=2025-05-31 date:>2025-03",
			expected: Query{Filters: []Filter{
				{Key: "date", Value: "2025-05-31", Operator: OpLessOrEqual},
				{Key: "date", Value: "2025-03", Operator: OpGreater},
			}},
		},
		{
			input:    "date:2025-03..2025-05",
			expected: Query{Filters: []Filter{{Key: "date", Value: "2025-03", MaxValue: "2025-05", Operator: OpRange}}},
		},
		{
			input: "home game \"Blue Jays\" vs:Cubs",
			expected: Query{
				Filters:  []Filter{{Key: "vs", Value: "cubs", Operator: OpEqual}},
				FreeText: []string{"home", "game", "blue jays"},
			},
		},
		{
			input:    "broken:range:..",
			expected: Query{FreeText: []string{"broken:range:.."}},
		},
		{
			input:    "opponent:",
			expected: Query{FreeText: []string{"opponent:"}},
		},
		{
			input:    "time:12:00",
			expected: Query{FreeText: []string{"time:12:00"}},
		},
		{
			input:    "time:\"12:00\"",
			expected: Query{Filters: []Filter{{Key: "time", Value: "12:00", Operator: OpEqual}}},
		},
		{
			input:    "   ",
			expected: Query{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Parse(tt.input)
			if diff := cmp.Diff(tt.expected, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}

	if !Parse("").Empty() {
		t.Error("empty input should produce an empty query")
	}
}

func TestMatchGame(t *testing.T) {
	day := func(s string) *time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatal(err)
		}
		return &d
	}
	april := lineup.Game{ID: "g-april", Opponent: "Red Sox", Date: day("2025-04-12")}
	march := lineup.Game{ID: "g-march", Opponent: "Tigers", Date: day("2025-03-30")}
	undated := lineup.Game{ID: "g-none", Opponent: "Tigers"}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"g-april", "g-march", "g-none"}},
		{"tigers", []string{"g-march", "g-none"}},
		{"g-april", []string{"g-april"}},
		{"opponent:sox", []string{"g-april"}},
		{"month:2025-03", []string{"g-march"}},
		{"date:2025-04", []string{"g-april"}},
		{"date:>=2025-04-01", []string{"g-april"}},
		{"date:<2025-04", []string{"g-march"}},
		{"date:>2025-03", []string{"g-april"}},
		{"date:<=2025-03", []string{"g-march"}},
		{"date:2025-03..2025-04", []string{"g-april", "g-march"}},
		{"month:2025-01..2025-03", []string{"g-march"}},
		{"tigers date:2025", []string{"g-march"}},
		{"unknown:whatever", []string{"g-april", "g-march", "g-none"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q := Parse(tt.query)
			var got []string
			for _, g := range []lineup.Game{april, march, undated} {
				if MatchGame(g, q) {
					got = append(got, g.ID)
				}
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("MatchGame(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}
