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
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ttbt-io/lineupkeeper/backend/generator"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

var (
	// ErrGenerationInProgress rejects a generate request while another one
	// for the same game is outstanding.
	ErrGenerationInProgress = errors.New("rotation generation already in progress")

	// ErrStructuralViolations rejects an unforced lineup save whose
	// rotation breaks a structural rule. The response carries the report.
	ErrStructuralViolations = errors.New("rotation has structural violations")
)

const defaultIdleTimeout = 5 * time.Minute

const hubTracerName = "github.com/ttbt-io/lineupkeeper/backend/hub"

// HubRequest types
const (
	ReqTypeRegister     = "REGISTER"
	ReqTypeUnregister   = "UNREGISTER"
	ReqTypeJoin         = "JOIN"
	ReqTypeLoad         = "LOAD"
	ReqTypeEdit         = "EDIT"
	ReqTypeSave         = "SAVE"
	ReqTypeUpdateGame   = "UPDATE_GAME"
	ReqTypeDelete       = "DELETE"
	ReqTypeGenerate     = "GENERATE"
	ReqTypeGenerateDone = "GENERATE_DONE"
)

// HubRequest represents a request to the Hub
type HubRequest struct {
	Type   string
	Client *wsClient // For WS requests
	UserId string

	Edit   Edit    // For Edit
	Lineup *Lineup // For Save
	Force  bool    // For Save: keep a rotation with structural violations
	Game   *Game   // For UpdateGame

	Ctx      context.Context // For Generate
	Rotation lineup.Rotation // For GenerateDone
	Err      error           // For GenerateDone

	Reply chan HubResponse
}

// HubResponse represents a response from the Hub
type HubResponse struct {
	Game   *Game
	Team   *Team
	Report *lineup.Report
	Error  error

	// Candidate marks a generated lineup that was not stored.
	Candidate bool
}

// Hub owns one game. Every change to the game goes through its goroutine,
// so edits are applied one at a time and at most one generation is
// outstanding.
type Hub struct {
	gameId string

	// Registered clients. The value is true once the client joined.
	clients map[*wsClient]bool

	// Inbound requests
	requests chan HubRequest

	game       *Game
	generating bool

	hm *HubManager
}

func newHub(id string, hm *HubManager) *Hub {
	return &Hub{
		gameId:   id,
		clients:  make(map[*wsClient]bool),
		requests: make(chan HubRequest, 64),
		hm:       hm,
	}
}

func (h *Hub) run() {
	idleTimer := time.NewTicker(h.hm.idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case req := <-h.requests:
			h.handle(req)
		case <-idleTimer.C:
			if len(h.clients) == 0 && !h.generating && h.hm.removeIfIdle(h) {
				if err := h.hm.gs.Flush(h.gameId); err != nil {
					log.Printf("[HUB] Error flushing game %s: %v", h.gameId, err)
				}
				h.hm.debugf("[HUB] Game %s idle, hub removed", h.gameId)
				return
			}
		}
	}
}

func (h *Hub) handle(req HubRequest) {
	switch req.Type {
	case ReqTypeRegister:
		h.clients[req.Client] = false
		return
	case ReqTypeUnregister:
		if _, ok := h.clients[req.Client]; ok {
			delete(h.clients, req.Client)
			close(req.Client.send)
		}
		return
	case ReqTypeGenerateDone:
		h.generating = false
	}

	if err := h.ensureLoaded(); err != nil {
		reply(req, HubResponse{Error: err})
		if req.Client != nil {
			req.Client.sendJSON(Message{Type: MsgTypeError, GameId: h.gameId, Error: "Game not available"})
		}
		return
	}

	switch req.Type {
	case ReqTypeJoin:
		if _, ok := h.clients[req.Client]; ok {
			h.handleJoin(req.Client)
		}
	case ReqTypeLoad:
		h.handleLoad(req)
	case ReqTypeEdit:
		h.handleEdit(req)
	case ReqTypeSave:
		h.handleSave(req)
	case ReqTypeUpdateGame:
		h.handleUpdateGame(req)
	case ReqTypeDelete:
		h.handleDelete(req)
	case ReqTypeGenerate:
		h.handleGenerate(req)
	case ReqTypeGenerateDone:
		h.handleGenerateDone(req)
	default:
		log.Printf("[HUB] Unknown request type %q for game %s", req.Type, h.gameId)
	}
}

func reply(req HubRequest, resp HubResponse) {
	if req.Reply != nil {
		req.Reply <- resp
	}
}

func (h *Hub) ensureLoaded() error {
	if h.game != nil {
		return nil
	}
	g, err := h.hm.gs.LoadGame(h.gameId)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[HUB] Error loading game %s: %v", h.gameId, err)
		}
		return err
	}
	if g.Status == "deleted" {
		return os.ErrNotExist
	}
	h.game = g
	return nil
}

func (h *Hub) loadTeam() (*Team, error) {
	t, err := h.hm.ts.LoadTeam(h.game.TeamID)
	if err != nil {
		return nil, err
	}
	if t.Status == "deleted" {
		return nil, os.ErrNotExist
	}
	return t, nil
}

// validate checks the current rotation against the players available for
// this game.
func (h *Hub) validate(team *Team) *lineup.Report {
	report, err := ValidateGame(h.game, team, nil)
	if err != nil {
		log.Printf("[HUB] Validation of game %s failed: %v", h.gameId, err)
		return nil
	}
	h.hm.metrics.ObserveReport(report)
	return report
}

// commit replaces the lineup. Unless flush is set the game is only marked
// dirty and reaches disk when the hub goes idle or the server stops.
func (h *Hub) commit(l Lineup, flush bool) error {
	l.UpdatedAt = time.Now().UnixNano()
	g := *h.game
	g.Lineup = l
	g.UpdatedAt = l.UpdatedAt
	if err := h.hm.gs.SaveGameInMemory(&g, flush); err != nil {
		return err
	}
	h.game = &g
	h.hm.r.UpdateGame(g)
	return nil
}

func (h *Hub) snapshot() *Game {
	g := *h.game
	g.Lineup = h.game.Lineup.Clone()
	return &g
}

func (h *Hub) handleJoin(c *wsClient) {
	team, _ := h.loadTeam()
	if GetGameAccess(c.userId, *h.game, team) < AccessRead {
		log.Printf("[HUB] Forbidden: User %s attempted to join game %s without permissions", maskEmail(c.userId), h.gameId)
		c.sendJSON(Message{Type: MsgTypeError, GameId: h.gameId, Error: "Forbidden: You do not have access to this game"})
		return
	}
	h.clients[c] = true
	msg := Message{Type: MsgTypeRotation, GameId: h.gameId, Rotation: h.game.Lineup.Rotation.Clone()}
	if team != nil {
		msg.Report = h.validate(team)
	}
	c.sendJSON(msg)
}

func (h *Hub) handleLoad(req HubRequest) {
	team, err := h.loadTeam()
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	reply(req, HubResponse{Game: h.snapshot(), Team: team, Report: h.validate(team)})
}

func (h *Hub) handleEdit(req HubRequest) {
	team, err := h.loadTeam()
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	l := h.game.Lineup.Clone()
	if err := ApplyEdit(&l, req.Edit, team.Roster, h.game.InningCount()); err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	switch req.Edit.Type {
	case EditAutofillInning:
		h.hm.metrics.ObserveAutofill("inning")
	case EditAutofillAll:
		h.hm.metrics.ObserveAutofill("all")
	}
	if err := h.commit(l, false); err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	h.hm.debugf("[HUB] Game %s: %s by %s", h.gameId, req.Edit.Type, maskEmail(req.UserId))
	h.publish(team, req)
}

// publish validates the committed lineup, broadcasts it and replies.
func (h *Hub) publish(team *Team, req HubRequest) {
	report := h.validate(team)
	h.broadcast(Message{Type: MsgTypeRotation, GameId: h.gameId, Rotation: h.game.Lineup.Rotation.Clone(), Report: report})
	reply(req, HubResponse{Game: h.snapshot(), Team: team, Report: report})
}

// handleSave replaces the whole lineup document. Unless forced, a rotation
// with structural violations is rejected and nothing is stored.
func (h *Hub) handleSave(req HubRequest) {
	team, err := h.loadTeam()
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	if req.Lineup == nil {
		reply(req, HubResponse{Error: errors.New("missing lineup")})
		return
	}
	var l Lineup
	innings := h.game.InningCount()
	for _, e := range []Edit{
		{Type: EditSetAvailability, Availability: req.Lineup.Availability},
		{Type: EditSetBattingOrder, BattingOrder: req.Lineup.BattingOrder},
		{Type: EditReplaceRotation, Rotation: req.Lineup.Rotation},
	} {
		if err := ApplyEdit(&l, e, team.Roster, innings); err != nil {
			reply(req, HubResponse{Error: err})
			return
		}
	}
	l.normalize()

	report, err := lineup.Validate(l.Rotation, l.available(team.Roster), innings)
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	if !req.Force && report.StructuralCount() > 0 {
		h.hm.metrics.ObserveReport(report)
		reply(req, HubResponse{Game: h.snapshot(), Team: team, Report: report, Error: ErrStructuralViolations})
		return
	}
	if err := h.commit(l, true); err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	h.publish(team, req)
}

// handleUpdateGame replaces the game's schedule fields and keeps its lineup.
func (h *Hub) handleUpdateGame(req HubRequest) {
	if req.Game == nil {
		reply(req, HubResponse{Error: errors.New("missing game")})
		return
	}
	g := *req.Game
	g.ID = h.gameId
	g.OwnerID = h.game.OwnerID
	g.Lineup = h.game.Lineup.Clone()
	g.UpdatedAt = time.Now().UnixNano()
	if err := h.hm.gs.SaveGame(&g); err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	if g.TeamID != h.game.TeamID {
		log.Printf("[HUB] Game %s moved from team %s to %s", h.gameId, h.game.TeamID, g.TeamID)
	}
	h.game = &g
	h.hm.r.UpdateGame(g)
	reply(req, HubResponse{Game: h.snapshot()})
}

func (h *Hub) handleDelete(req HubRequest) {
	if err := h.hm.gs.DeleteGame(h.gameId); err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	h.hm.r.DeleteGame(h.gameId)
	h.game = nil
	h.broadcast(Message{Type: MsgTypeDeleted, GameId: h.gameId})
	reply(req, HubResponse{})
}

// handleGenerate starts a generation off the hub goroutine. The result
// comes back as a GenerateDone request and is never applied by the hub.
func (h *Hub) handleGenerate(req HubRequest) {
	if h.generating {
		reply(req, HubResponse{Error: ErrGenerationInProgress})
		return
	}
	team, err := h.loadTeam()
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	greq, err := generator.NewRequest(team.Roster, h.game.Lineup.availability(), h.game.InningCount())
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	h.generating = true

	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	adapter, metrics, tracer := h.hm.gen, h.hm.metrics, h.hm.tracer
	go func() {
		ctx, span := tracer.Start(ctx, "hub.Generate", trace.WithAttributes(
			attribute.String("lineup.game_id", h.gameId),
		))
		defer span.End()

		start := time.Now()
		rot, err := adapter.Generate(ctx, greq)
		metrics.ObserveGenerate(err, time.Since(start))
		if err != nil {
			span.RecordError(err)
		}
		h.requests <- HubRequest{Type: ReqTypeGenerateDone, UserId: req.UserId, Rotation: rot, Err: err, Reply: req.Reply}
	}()
}

// handleGenerateDone validates the candidate and returns it in place of the
// current rotation. Nothing is stored; the caller saves the candidate with
// a regular lineup save.
func (h *Hub) handleGenerateDone(req HubRequest) {
	if req.Err != nil {
		reply(req, HubResponse{Error: req.Err})
		return
	}
	team, err := h.loadTeam()
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	g := h.snapshot()
	g.Lineup.Rotation = req.Rotation
	report, err := lineup.Validate(g.Lineup.Rotation, g.Lineup.available(team.Roster), g.InningCount())
	if err != nil {
		reply(req, HubResponse{Error: err})
		return
	}
	h.hm.metrics.ObserveReport(report)
	h.hm.debugf("[GEN] Game %s: candidate rotation for %s, %d structural violations", h.gameId, maskEmail(req.UserId), report.StructuralCount())
	reply(req, HubResponse{Game: g, Team: team, Report: report, Candidate: true})
}

func (h *Hub) broadcast(msg Message) {
	for client, joined := range h.clients {
		if !joined {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// Too slow. Dropping the connection ends both pumps.
			client.conn.Close()
			delete(h.clients, client)
		}
	}
}

// HubManager manages the hubs of all active games.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.Mutex

	gs      *GameStore
	ts      *TeamStore
	r       *Registry
	gen     *generator.Adapter
	metrics *Metrics
	tracer  trace.Tracer

	idleTimeout time.Duration
	debug       bool
}

func NewHubManager(gs *GameStore, ts *TeamStore, r *Registry, gen *generator.Adapter, metrics *Metrics, debug bool) *HubManager {
	if gen == nil {
		gen = generator.NewAdapter(nil)
	}
	return &HubManager{
		hubs:        make(map[string]*Hub),
		gs:          gs,
		ts:          ts,
		r:           r,
		gen:         gen,
		metrics:     metrics,
		tracer:      otel.Tracer(hubTracerName),
		idleTimeout: defaultIdleTimeout,
		debug:       debug,
	}
}

func (hm *HubManager) debugf(format string, args ...any) {
	if hm.debug {
		log.Printf(format, args...)
	}
}

func (hm *HubManager) getHubLocked(id string) *Hub {
	if hub, ok := hm.hubs[id]; ok {
		return hub
	}
	hub := newHub(id, hm)
	hm.hubs[id] = hub
	go hub.run()
	return hub
}

// Send queues req on the hub of gameId, starting the hub if needed. It
// returns false when the hub's queue is full.
func (hm *HubManager) Send(gameId string, req HubRequest) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	select {
	case hm.getHubLocked(gameId).requests <- req:
		return true
	default:
		log.Printf("[HUB] Warning: Hub channel full, rejecting %s for game %s", req.Type, gameId)
		return false
	}
}

// register attaches c to the hub of its game.
func (hm *HubManager) register(c *wsClient) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hub := hm.getHubLocked(c.gameId)
	select {
	case hub.requests <- HubRequest{Type: ReqTypeRegister, Client: c}:
		c.hub = hub
		return true
	default:
		return false
	}
}

// removeIfIdle drops h unless a request was queued since it went idle.
func (hm *HubManager) removeIfIdle(h *Hub) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if len(h.requests) > 0 {
		return false
	}
	if hm.hubs[h.gameId] == h {
		delete(hm.hubs, h.gameId)
	}
	return true
}

// ActiveHubs returns the number of running hubs.
func (hm *HubManager) ActiveHubs() int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return len(hm.hubs)
}
