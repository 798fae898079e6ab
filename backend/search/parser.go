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

// Package search parses the game filter language used by the analytics and
// game list endpoints, e.g. `opponent:"Red Sox" date:>=2025-04-01 tigers`.
package search

import (
	"strings"
	"unicode"
)

// Operator defines the type of comparison for a filter.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpRange          Operator = ".." // date:2025-03..2025-05
)

// prefixOps is checked in order; two-character operators come first.
var prefixOps = []Operator{OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess}

// Filter is one key:value criterion.
type Filter struct {
	Key      string   // e.g. "opponent", "date", "month"
	Value    string   // e.g. "Tigers", "2025-04-01"
	MaxValue string   // Used only for OpRange
	Operator Operator // e.g. "=", ">="
}

// Query represents the parsed search query.
type Query struct {
	Filters  []Filter
	FreeText []string
}

// Empty reports whether the query has no criteria at all.
func (q Query) Empty() bool {
	return len(q.Filters) == 0 && len(q.FreeText) == 0
}

// Parse parses a search query string. It understands quoted strings
// (key:"value with spaces"), key:value pairs, comparison prefixes
// (date:>=2025-04-01) and ranges (date:2025-03..2025-05). Anything else is
// free text. Free text and non-date values are lower-cased.
func Parse(input string) Query {
	q := Query{
		Filters:  make([]Filter, 0),
		FreeText: make([]string, 0),
	}

	for _, token := range tokenize(input) {
		key, val, ok := strings.Cut(token, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		// "foo:", ":bar" and values with a second unquoted colon are free text.
		if !ok || key == "" || val == "" || (strings.Contains(val, ":") && !isQuoted(val)) {
			q.FreeText = append(q.FreeText, strings.ToLower(removeQuotes(token)))
			continue
		}
		q.Filters = append(q.Filters, parseFilter(key, val))
	}
	return q
}

func parseFilter(key, val string) Filter {
	lower := func(s string) string {
		if key == "date" || key == "month" {
			return s
		}
		return strings.ToLower(s)
	}
	if lo, hi, ok := strings.Cut(val, ".."); ok && !isQuoted(val) {
		return Filter{Key: key, Value: lower(removeQuotes(lo)), MaxValue: lower(removeQuotes(hi)), Operator: OpRange}
	}
	for _, op := range prefixOps {
		if rest, ok := strings.CutPrefix(val, string(op)); ok {
			return Filter{Key: key, Value: lower(removeQuotes(rest)), Operator: op}
		}
	}
	return Filter{Key: key, Value: lower(removeQuotes(val)), Operator: OpEqual}
}

// tokenize splits the string by spaces, respecting quotes.
func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	quote := rune(0)

	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case unicode.IsSpace(r):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		case r == '"' || r == '\'':
			quote = r
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isQuoted(s string) bool {
	return strings.HasPrefix(s, "\"") || strings.HasPrefix(s, "'")
}

func removeQuotes(s string) string {
	if len(s) >= 2 {
		first := s[0]
		last := s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
