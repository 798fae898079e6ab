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

// Package generator asks an external, AI-backed service for a complete
// fielding rotation. Whatever comes back is only a candidate: it is decoded
// into a lineup.Rotation and must still go through lineup.Validate before
// anyone saves it.
package generator

import (
	"context"
	"fmt"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// Goals is what the generator is asked to achieve. The adapter does not
// check any of them.
var Goals = []string{
	"Every position is filled in every inning.",
	"No player plays the same position more than once in the game.",
	"No player plays the infield, or the outfield, in two consecutive innings.",
	"Playing time is balanced as evenly as possible across players.",
}

// PlayerInput is one player in the pool sent to the generator.
type PlayerInput struct {
	ID             lineup.PlayerID `json:"id"`
	Name           string          `json:"name"`
	Jersey         string          `json:"jersey"`
	Available      bool            `json:"available"`
	CanPlayCatcher bool            `json:"canPlayCatcher"`
}

// Request is the full constraint set for one game.
type Request struct {
	Players           []PlayerInput     `json:"players"`
	Innings           int               `json:"innings"`
	RequiredPositions []lineup.Position `json:"requiredPositions"`
	InfieldPositions  []lineup.Position `json:"infieldPositions"`
	OutfieldPositions []lineup.Position `json:"outfieldPositions"`
	Goals             []string          `json:"goals,omitempty"`
}

// NewRequest builds a Request for roster using the shared position sets.
func NewRequest(roster []lineup.Player, avail lineup.AvailabilityMap, innings int) (Request, error) {
	if err := lineup.CheckInnings(innings); err != nil {
		return Request{}, err
	}
	players := make([]PlayerInput, 0, len(roster))
	for _, p := range roster {
		if err := lineup.CheckPlayerID(p.ID); err != nil {
			return Request{}, err
		}
		players = append(players, PlayerInput{
			ID:             p.ID,
			Name:           p.Name,
			Jersey:         p.Number,
			Available:      avail.IsAvailable(p.ID),
			CanPlayCatcher: avail.CanPlayCatcher(p.ID),
		})
	}
	return Request{
		Players:           players,
		Innings:           innings,
		RequiredPositions: lineup.AllPositions(),
		InfieldPositions:  lineup.InfieldPositions(),
		OutfieldPositions: lineup.OutfieldPositions(),
		Goals:             Goals,
	}, nil
}

// Response is the generator's answer: inning number -> position code ->
// player id, or a refusal.
type Response struct {
	Rotation map[string]map[string]string `json:"rotation"`
	Declined bool                         `json:"declined,omitempty"`
	Reason   string                       `json:"reason,omitempty"`
}

// Client is the external generator capability.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ErrorKind classifies a GenerationError.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindTransport ErrorKind = "transport"
	KindMalformed ErrorKind = "malformed"
	KindDeclined  ErrorKind = "declined"
)

// GenerationError is returned for every failed generation. Nothing is
// applied when it is returned.
type GenerationError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("rotation generation failed (%s): %s", e.Kind, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func genErr(kind ErrorKind, err error, format string, args ...any) *GenerationError {
	return &GenerationError{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}
