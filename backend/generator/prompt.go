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

package generator

import (
	"fmt"
	"strings"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// BuildPrompt renders req as the instruction text sent to text-oriented
// generators. The output is deterministic for a given request.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a fielding rotation for a %d-inning youth baseball game.\n", req.Innings)
	b.WriteString("\nPositions that must be filled every inning:\n")
	b.WriteString("  " + joinPositions(req.RequiredPositions) + "\n")
	b.WriteString("Infield zone: " + joinPositions(req.InfieldPositions) + "\n")
	b.WriteString("Outfield zone: " + joinPositions(req.OutfieldPositions) + "\n")

	b.WriteString("\nPlayers:\n")
	for _, p := range req.Players {
		var notes []string
		if !p.Available {
			notes = append(notes, "unavailable, do not assign")
		}
		if p.CanPlayCatcher {
			notes = append(notes, "can catch")
		}
		line := fmt.Sprintf("  - id=%s name=%q jersey=%q", p.ID, p.Name, p.Jersey)
		if len(notes) > 0 {
			line += " (" + strings.Join(notes, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}

	if len(req.Goals) > 0 {
		b.WriteString("\nGoals:\n")
		for i, g := range req.Goals {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, g)
		}
	}

	b.WriteString("\nRespond with JSON only, in the form\n")
	b.WriteString(`  {"rotation": {"1": {"P": "<player id>", "C": "<player id>", ...}, "2": {...}}}` + "\n")
	b.WriteString("using the position codes above and inning numbers 1.." + fmt.Sprint(req.Innings) + ".\n")
	b.WriteString(`If no rotation is possible respond {"declined": true, "reason": "<why>"}.` + "\n")
	return b.String()
}

func joinPositions(ps []lineup.Position) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
