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
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// DefaultTimeout bounds every generation attempt.
const DefaultTimeout = 60 * time.Second

const tracerName = "github.com/ttbt-io/lineupkeeper/backend/generator"

// Adapter wraps a Client with a timeout, tracing and strict decoding of the
// candidate rotation.
type Adapter struct {
	client  Client
	timeout time.Duration
	tracer  trace.Tracer
	debug   bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithTracer sets the tracer used for generation spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Adapter) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithDebug enables verbose logging.
func WithDebug(debug bool) Option {
	return func(a *Adapter) {
		a.debug = debug
	}
}

// NewAdapter returns an Adapter for client.
func NewAdapter(client Client, opts ...Option) *Adapter {
	a := &Adapter{
		client:  client,
		timeout: DefaultTimeout,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Timeout returns the effective timeout.
func (a *Adapter) Timeout() time.Duration {
	return a.timeout
}

// Generate asks the client for a full rotation and decodes it. On failure
// the returned rotation is always nil and the error is a *GenerationError
// (or an input error when req itself is invalid).
func (a *Adapter) Generate(ctx context.Context, req Request) (lineup.Rotation, error) {
	if err := lineup.CheckInnings(req.Innings); err != nil {
		return nil, err
	}
	ctx, span := a.tracer.Start(ctx, "generator.Generate", trace.WithAttributes(
		attribute.Int("lineup.innings", req.Innings),
		attribute.Int("lineup.players", len(req.Players)),
	))
	defer span.End()

	rot, err := a.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var gerr *GenerationError
		if errors.As(err, &gerr) {
			span.SetAttributes(attribute.String("generator.error_kind", string(gerr.Kind)))
		}
		log.Printf("[GEN] generation failed: %v", err)
		return nil, err
	}
	if a.debug {
		log.Printf("[GEN] generated rotation for %d innings", req.Innings)
	}
	return rot, nil
}

func (a *Adapter) generate(ctx context.Context, req Request) (lineup.Rotation, error) {
	if a.client == nil {
		return nil, genErr(KindTransport, nil, "no generator configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		resp *Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := a.client.Generate(ctx, req)
		ch <- result{resp, err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, classifyContext(ctx.Err(), a.timeout)
	}
	if res.err != nil {
		var gerr *GenerationError
		if errors.As(res.err, &gerr) {
			return nil, gerr
		}
		if ctx.Err() != nil {
			return nil, classifyContext(ctx.Err(), a.timeout)
		}
		return nil, genErr(KindTransport, res.err, "%v", res.err)
	}
	if res.resp == nil {
		return nil, genErr(KindMalformed, nil, "empty response")
	}
	if res.resp.Declined {
		reason := res.resp.Reason
		if reason == "" {
			reason = "generator declined to produce a rotation"
		}
		return nil, genErr(KindDeclined, nil, "%s", reason)
	}
	return Decode(res.resp, req)
}

func classifyContext(err error, timeout time.Duration) *GenerationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return genErr(KindTimeout, err, "no response within %s", timeout)
	}
	return genErr(KindTransport, err, "request canceled")
}

// Decode converts resp into a rotation for req. It rejects unknown
// positions and players, innings out of range, a player placed twice in the
// same inning, unavailable players, and any inning that is not completely
// filled.
func Decode(resp *Response, req Request) (lineup.Rotation, error) {
	if resp == nil || len(resp.Rotation) == 0 {
		return nil, genErr(KindMalformed, nil, "response has no rotation")
	}
	players := make(map[lineup.PlayerID]PlayerInput, len(req.Players))
	for _, p := range req.Players {
		players[p.ID] = p
	}
	required := make(map[lineup.Position]bool, len(req.RequiredPositions))
	for _, p := range req.RequiredPositions {
		required[p] = true
	}
	if len(required) == 0 {
		for _, p := range lineup.AllPositions() {
			required[p] = true
		}
	}

	rot := make(lineup.Rotation, req.Innings)
	for key, assignments := range resp.Rotation {
		inning, err := strconv.Atoi(key)
		if err != nil {
			return nil, genErr(KindMalformed, err, "inning key %q is not a number", key)
		}
		if inning < 1 || inning > req.Innings {
			return nil, genErr(KindMalformed, nil, "inning %d out of range 1..%d", inning, req.Innings)
		}
		a := make(lineup.InningAssignment, len(assignments))
		seen := make(map[lineup.PlayerID]lineup.Position, len(assignments))
		for code, id := range assignments {
			pos, err := lineup.ParsePosition(code)
			if err != nil {
				return nil, genErr(KindMalformed, err, "inning %d: unknown position %q", inning, code)
			}
			if !required[pos] {
				return nil, genErr(KindMalformed, nil, "inning %d: position %s was not requested", inning, pos)
			}
			if _, dup := a[pos]; dup {
				return nil, genErr(KindMalformed, nil, "inning %d: position %s assigned twice", inning, pos)
			}
			pid := lineup.PlayerID(id)
			p, ok := players[pid]
			if !ok {
				return nil, genErr(KindMalformed, nil, "inning %d: unknown player %q", inning, id)
			}
			if !p.Available {
				return nil, genErr(KindMalformed, nil, "inning %d: player %q is not available", inning, id)
			}
			if prev, dup := seen[pid]; dup {
				return nil, genErr(KindMalformed, nil, "inning %d: player %q placed at both %s and %s", inning, id, prev, pos)
			}
			seen[pid] = pos
			a[pos] = pid
		}
		rot[inning] = a
	}

	for inning := 1; inning <= req.Innings; inning++ {
		a, ok := rot[inning]
		if !ok {
			return nil, genErr(KindMalformed, nil, "partial response: inning %d missing", inning)
		}
		if len(a) != len(required) {
			return nil, genErr(KindMalformed, nil, "partial response: inning %d has %d of %d positions", inning, len(a), len(required))
		}
	}
	return rot, nil
}

// String renders the kind for logs and metrics labels.
func (k ErrorKind) String() string {
	return string(k)
}
