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

// Package lineup holds the fielding rotation model and the pure functions
// that validate, summarize and auto-fill it.
package lineup

import (
	"fmt"
	"strings"
)

// Position is one of the ten field positions. The zero value is not a
// position; a player without a position in an inning is on the bench.
type Position string

const (
	Pitcher     Position = "P"
	Catcher     Position = "C"
	FirstBase   Position = "1B"
	SecondBase  Position = "2B"
	ThirdBase   Position = "3B"
	Shortstop   Position = "SS"
	LeftField   Position = "LF"
	RightField  Position = "RF"
	LeftCenter  Position = "LC"
	RightCenter Position = "RC"
)

// Zone classifies a position. Bench is not a zone of any position, it only
// shows up in per-inning summaries.
type Zone string

const (
	ZoneInfield  Zone = "infield"
	ZoneOutfield Zone = "outfield"
	ZoneBench    Zone = "bench"
)

// positions is the canonical order used for every report.
var positions = [...]Position{
	Pitcher, Catcher, FirstBase, SecondBase, ThirdBase,
	Shortstop, LeftField, RightField, LeftCenter, RightCenter,
}

// Catcher counts as outfield in this league's rotation rules.
var (
	infield  = [...]Position{Pitcher, FirstBase, SecondBase, ThirdBase, Shortstop}
	outfield = [...]Position{Catcher, LeftField, RightField, LeftCenter, RightCenter}
)

var positionNames = map[Position]string{
	Pitcher:     "Pitcher",
	Catcher:     "Catcher",
	FirstBase:   "First Base",
	SecondBase:  "Second Base",
	ThirdBase:   "Third Base",
	Shortstop:   "Shortstop",
	LeftField:   "Left Field",
	RightField:  "Right Field",
	LeftCenter:  "Left Center",
	RightCenter: "Right Center",
}

// NumPositions is the number of positions that must be filled every inning.
const NumPositions = len(positions)

// AllPositions returns the ten positions in canonical order.
func AllPositions() []Position {
	out := make([]Position, len(positions))
	copy(out, positions[:])
	return out
}

// InfieldPositions returns the infield set.
func InfieldPositions() []Position {
	out := make([]Position, len(infield))
	copy(out, infield[:])
	return out
}

// OutfieldPositions returns the outfield set, Catcher included.
func OutfieldPositions() []Position {
	out := make([]Position, len(outfield))
	copy(out, outfield[:])
	return out
}

// Valid reports whether p is one of the ten positions.
func (p Position) Valid() bool {
	_, ok := positionNames[p]
	return ok
}

// Zone returns the zone of p. Invalid positions report ZoneBench.
func (p Position) Zone() Zone {
	for _, q := range infield {
		if p == q {
			return ZoneInfield
		}
	}
	for _, q := range outfield {
		if p == q {
			return ZoneOutfield
		}
	}
	return ZoneBench
}

// Name returns the long display name of p.
func (p Position) Name() string {
	if n, ok := positionNames[p]; ok {
		return n
	}
	return string(p)
}

func (p Position) String() string {
	return string(p)
}

// MarshalText implements encoding.TextMarshaler.
func (p Position) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, &InputError{Kind: ErrInvalidPosition, Field: "position", Value: string(p), Reason: "unknown position"}
	}
	return []byte(p), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so that unknown
// position keys are rejected while decoding stored or posted rotations.
func (p *Position) UnmarshalText(b []byte) error {
	v, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePosition accepts a canonical code ("SS") or a long name
// ("Shortstop"), case-insensitively.
func ParsePosition(s string) (Position, error) {
	v := strings.TrimSpace(s)
	up := Position(strings.ToUpper(v))
	if up.Valid() {
		return up, nil
	}
	for p, name := range positionNames {
		if strings.EqualFold(name, v) || strings.EqualFold(strings.ReplaceAll(name, " ", ""), v) {
			return p, nil
		}
	}
	return "", &InputError{Kind: ErrInvalidPosition, Field: "position", Value: s, Reason: fmt.Sprintf("must be one of %s", strings.Join(positionCodes(), ", "))}
}

func positionCodes() []string {
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		out = append(out, string(p))
	}
	return out
}
