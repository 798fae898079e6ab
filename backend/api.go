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
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ttbt-io/lineupkeeper/backend/generator"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
	"github.com/ttbt-io/lineupkeeper/backend/search"
)

const maxBodySize = 1 << 20

var (
	// ErrForbidden is returned when the user lacks the access an operation
	// needs.
	ErrForbidden = errors.New("forbidden")

	errHubBusy = errors.New("hub busy")
)

// api holds the collaborators shared by the HTTP handlers and MCP tools.
type api struct {
	gs       *GameStore
	ts       *TeamStore
	registry *Registry
	hubs     *HubManager
	metrics  *Metrics
	limiter  *userRateLimiter
	debug    bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// writeCachedJSON serves v with an ETag and honors If-None-Match.
func writeCachedJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling response: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	etag := generateETag(data)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// writeError maps err to an HTTP status.
func writeError(w http.ResponseWriter, err error, retryAfter string) {
	var gerr *generator.GenerationError
	switch {
	case errors.Is(err, errHubBusy):
		hubBusyResponse(w, retryAfter)
	case errors.As(err, &gerr):
		status := http.StatusBadGateway
		if gerr.Kind == generator.KindTimeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]string{"error": gerr.Error(), "kind": gerr.Kind.String()})
	case lineup.IsInputError(err):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, os.ErrNotExist):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "Forbidden: You do not have access to this resource", http.StatusForbidden)
	case errors.Is(err, ErrGenerationInProgress):
		http.Error(w, "Conflict: "+err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled):
		http.Error(w, "Request canceled", http.StatusServiceUnavailable)
	default:
		log.Printf("Internal Server Error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		http.Error(w, "Bad Request: Malformed JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil {
			offset = val
		}
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// loadTeamFor loads a live team and checks userId has at least need on it.
func (a *api) loadTeamFor(userId, teamId string, need AccessLevel) (*Team, error) {
	if err := checkID("teamId", teamId); err != nil {
		return nil, err
	}
	t, err := a.ts.LoadTeam(teamId)
	if err != nil {
		return nil, err
	}
	if t.Status == "deleted" {
		return nil, os.ErrNotExist
	}
	if GetTeamAccess(userId, *t) < need {
		return nil, ErrForbidden
	}
	return t, nil
}

// loadGameFor loads a live game with its team and checks userId has at
// least need on it.
func (a *api) loadGameFor(userId, gameId string, need AccessLevel) (*Game, *Team, error) {
	if err := checkID("gameId", gameId); err != nil {
		return nil, nil, err
	}
	g, err := a.gs.LoadGame(gameId)
	if err != nil {
		return nil, nil, err
	}
	if g.Status == "deleted" {
		return nil, nil, os.ErrNotExist
	}
	t, err := a.ts.LoadTeam(g.TeamID)
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}
	if GetGameAccess(userId, *g, t) < need {
		return nil, nil, ErrForbidden
	}
	if t == nil || t.Status == "deleted" {
		return nil, nil, os.ErrNotExist
	}
	return g, t, nil
}

// teamGames loads the live games of a team in date order.
func (a *api) teamGames(teamId string) []*Game {
	ids := a.registry.GamesForTeam(teamId)
	out := make([]*Game, 0, len(ids))
	for _, id := range ids {
		g, err := a.gs.LoadGame(id)
		if err != nil {
			log.Printf("Error loading game %s of team %s: %v", id, teamId, err)
			continue
		}
		out = append(out, g)
	}
	return out
}

// hubDo sends req to the game's hub and waits for the reply.
func (a *api) hubDo(ctx context.Context, gameId string, req HubRequest) (HubResponse, error) {
	req.Reply = make(chan HubResponse, 1)
	if !a.hubs.Send(gameId, req) {
		return HubResponse{}, errHubBusy
	}
	select {
	case resp := <-req.Reply:
		return resp, resp.Error
	case <-ctx.Done():
		return HubResponse{}, ctx.Err()
	}
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)
	if userId == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": userId})
}

type teamListEntry struct {
	TeamMetadata
	Access string `json:"access"`
}

func (a *api) listTeams(w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)
	if userId == "" {
		writeError(w, ErrForbidden, "")
		return
	}
	limit, offset := parsePagination(r)
	ids := a.registry.ListTeams(userId, r.URL.Query().Get("q"))

	teams := make([]teamListEntry, 0, len(ids))
	for _, id := range page(ids, limit, offset) {
		t, err := a.ts.LoadTeam(id)
		if err != nil {
			log.Printf("Error loading team %s: %v", id, err)
			continue
		}
		teams = append(teams, teamListEntry{TeamMetadata: t.Metadata(), Access: GetTeamAccess(userId, *t).String()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams, "total": len(ids)})
}

func (a *api) saveTeam(w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)
	if userId == "" || !isValidEmail(userId) {
		http.Error(w, "Forbidden: Invalid User ID", http.StatusForbidden)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	t, err := decodeTeam(data)
	if err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := a.ts.LoadTeam(t.ID)
	switch {
	case err == nil && existing.Status == "deleted":
		http.Error(w, "Conflict: Team has been deleted", http.StatusConflict)
		return
	case err == nil:
		level := GetTeamAccess(userId, *existing)
		if level < AccessWrite {
			writeError(w, ErrForbidden, "")
			return
		}
		t.OwnerID = existing.OwnerID
		if level < AccessAdmin {
			t.Roles = existing.Roles
		}
	case errors.Is(err, os.ErrNotExist):
		t.OwnerID = userId
	default:
		writeError(w, err, "")
		return
	}

	t.UpdatedAt = time.Now().UnixNano()
	if err := a.ts.SaveTeam(t); err != nil {
		writeError(w, err, "")
		return
	}
	a.registry.UpdateTeam(*t)
	writeJSON(w, http.StatusOK, t)
}

func (a *api) getTeam(w http.ResponseWriter, r *http.Request) {
	t, err := a.loadTeamFor(getUserID(r), r.PathValue("teamId"), AccessRead)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeCachedJSON(w, r, t)
}

func (a *api) deleteTeam(w http.ResponseWriter, r *http.Request) {
	t, err := a.loadTeamFor(getUserID(r), r.PathValue("teamId"), AccessAdmin)
	if err != nil {
		writeError(w, err, "")
		return
	}
	for _, gameId := range a.registry.GamesForTeam(t.ID) {
		if _, err := a.hubDo(r.Context(), gameId, HubRequest{Type: ReqTypeDelete}); err != nil && !errors.Is(err, os.ErrNotExist) {
			writeError(w, err, retryAfterEdit)
			return
		}
	}
	if err := a.ts.DeleteTeam(t.ID); err != nil {
		writeError(w, err, "")
		return
	}
	a.registry.DeleteTeam(t.ID)
	writeJSON(w, http.StatusOK, map[string]string{"id": t.ID, "status": "deleted"})
}

type gameListEntry struct {
	ID          string `json:"id"`
	Opponent    string `json:"opponent,omitempty"`
	Date        string `json:"date,omitempty"`
	Location    string `json:"location,omitempty"`
	Innings     int    `json:"innings"`
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
	HasRotation bool   `json:"hasRotation"`
}

func (a *api) listGames(w http.ResponseWriter, r *http.Request) {
	t, err := a.loadTeamFor(getUserID(r), r.PathValue("teamId"), AccessRead)
	if err != nil {
		writeError(w, err, "")
		return
	}
	limit, offset := parsePagination(r)
	q := search.Parse(r.URL.Query().Get("q"))

	var games []gameListEntry
	for _, g := range a.teamGames(t.ID) {
		if !q.Empty() && !search.MatchGame(g.LineupGame(), q) {
			continue
		}
		games = append(games, gameListEntry{
			ID:          g.ID,
			Opponent:    g.Opponent,
			Date:        g.Date,
			Location:    g.Location,
			Innings:     g.InningCount(),
			UpdatedAt:   g.UpdatedAt,
			HasRotation: len(g.Lineup.Rotation) > 0,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": page(games, limit, offset), "total": len(games)})
}

func (a *api) teamAnalytics(w http.ResponseWriter, r *http.Request) {
	t, err := a.loadTeamFor(getUserID(r), r.PathValue("teamId"), AccessRead)
	if err != nil {
		writeError(w, err, "")
		return
	}
	report, err := TeamReport(t, a.teamGames(t.ID), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) saveGame(w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)
	if userId == "" || !isValidEmail(userId) {
		http.Error(w, "Forbidden: Invalid User ID", http.StatusForbidden)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	g, err := decodeGame(data)
	if err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := a.loadTeamFor(userId, g.TeamID, AccessWrite); err != nil {
		writeError(w, err, "")
		return
	}

	existing, err := a.gs.LoadGame(g.ID)
	switch {
	case err == nil && existing.Status == "deleted":
		http.Error(w, "Conflict: Game has been deleted", http.StatusConflict)
		return
	case err == nil:
		if _, _, err := a.loadGameFor(userId, g.ID, AccessWrite); err != nil {
			writeError(w, err, "")
			return
		}
		resp, err := a.hubDo(r.Context(), g.ID, HubRequest{Type: ReqTypeUpdateGame, UserId: userId, Game: g})
		if err != nil {
			writeError(w, err, retryAfterEdit)
			return
		}
		writeJSON(w, http.StatusOK, resp.Game)
	case errors.Is(err, os.ErrNotExist):
		g.OwnerID = userId
		g.UpdatedAt = time.Now().UnixNano()
		if err := a.gs.SaveGame(g); err != nil {
			writeError(w, err, "")
			return
		}
		a.registry.UpdateGame(*g)
		writeJSON(w, http.StatusOK, g)
	default:
		writeError(w, err, "")
	}
}

func (a *api) getGame(w http.ResponseWriter, r *http.Request) {
	g, _, err := a.loadGameFor(getUserID(r), r.PathValue("gameId"), AccessRead)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeCachedJSON(w, r, g)
}

func (a *api) deleteGame(w http.ResponseWriter, r *http.Request) {
	g, _, err := a.loadGameFor(getUserID(r), r.PathValue("gameId"), AccessAdmin)
	if err != nil {
		writeError(w, err, "")
		return
	}
	if _, err := a.hubDo(r.Context(), g.ID, HubRequest{Type: ReqTypeDelete, UserId: getUserID(r)}); err != nil {
		writeError(w, err, retryAfterEdit)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": g.ID, "status": "deleted"})
}

// lineupResponse is returned by every endpoint that reads or changes a
// lineup.
type lineupResponse struct {
	GameID     string            `json:"gameId"`
	Innings    int               `json:"innings"`
	Lineup     Lineup            `json:"lineup"`
	Validation *ValidationResult `json:"validation,omitempty"`

	// Candidate is set when Lineup holds an unsaved generated rotation.
	Candidate bool `json:"candidate,omitempty"`
}

func newLineupResponse(resp HubResponse) lineupResponse {
	out := lineupResponse{
		GameID:    resp.Game.ID,
		Innings:   resp.Game.InningCount(),
		Lineup:    resp.Game.Lineup,
		Candidate: resp.Candidate,
	}
	if resp.Report != nil {
		v := newValidationResult(resp.Report)
		out.Validation = &v
	}
	return out
}

func (a *api) getLineup(w http.ResponseWriter, r *http.Request) {
	g, _, err := a.loadGameFor(getUserID(r), r.PathValue("gameId"), AccessRead)
	if err != nil {
		writeError(w, err, "")
		return
	}
	resp, err := a.hubDo(r.Context(), g.ID, HubRequest{Type: ReqTypeLoad})
	if err != nil {
		writeError(w, err, retryAfterLoad)
		return
	}
	writeCachedJSON(w, r, newLineupResponse(resp))
}

// putLineup replaces the lineup document. With force=false a rotation with
// structural violations is refused with 409 and the report; otherwise it is
// saved and the report returned.
func (a *api) putLineup(w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)
	g, _, err := a.loadGameFor(userId, r.PathValue("gameId"), AccessWrite)
	if err != nil {
		writeError(w, err, "")
		return
	}
	force := true
	if v := r.URL.Query().Get("force"); v != "" {
		if force, err = strconv.ParseBool(v); err != nil {
			http.Error(w, "Bad Request: invalid force parameter", http.StatusBadRequest)
			return
		}
	}
	var l Lineup
	if !decodeBody(w, r, &l) {
		return
	}
	resp, err := a.hubDo(r.Context(), g.ID, HubRequest{Type: ReqTypeSave, UserId: userId, Lineup: &l, Force: force})
	if errors.Is(err, ErrStructuralViolations) {
		v := newValidationResult(resp.Report)
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "validation": v})
		return
	}
	if err != nil {
		writeError(w, err, retryAfterEdit)
		return
	}
	writeJSON(w, http.StatusOK, newLineupResponse(resp))
}

func (a *api) applyEdit(w http.ResponseWriter, r *http.Request, e Edit) {
	userId := getUserID(r)
	g, _, err := a.loadGameFor(userId, r.PathValue("gameId"), AccessWrite)
	if err != nil {
		writeError(w, err, "")
		return
	}
	if err := ValidateEdit(e, g.InningCount()); err != nil {
		writeError(w, err, "")
		return
	}
	resp, err := a.hubDo(r.Context(), g.ID, HubRequest{Type: ReqTypeEdit, UserId: userId, Edit: e})
	if err != nil {
		writeError(w, err, retryAfterEdit)
		return
	}
	writeJSON(w, http.StatusOK, newLineupResponse(resp))
}

func (a *api) edit(w http.ResponseWriter, r *http.Request) {
	var e Edit
	if !decodeBody(w, r, &e) {
		return
	}
	a.applyEdit(w, r, e)
}

func (a *api) assign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Inning   int             `json:"inning"`
		Position lineup.Position `json:"position"`
		PlayerID lineup.PlayerID `json:"playerId"`
		Clear    bool            `json:"clear"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	e := Edit{Type: EditAssign, Inning: body.Inning, Position: body.Position, PlayerID: body.PlayerID}
	if body.Clear || body.PlayerID == "" {
		e = Edit{Type: EditClear, Inning: body.Inning, Position: body.Position}
	}
	a.applyEdit(w, r, e)
}

func (a *api) copyInning(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Inning int `json:"inning"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	a.applyEdit(w, r, Edit{Type: EditCopyInning, Inning: body.Inning})
}

func (a *api) autofill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Inning int  `json:"inning"`
		All    bool `json:"all"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	e := Edit{Type: EditAutofillInning, Inning: body.Inning}
	if body.All || body.Inning == 0 {
		e = Edit{Type: EditAutofillAll}
	}
	a.applyEdit(w, r, e)
}

// generate asks the external generator for a full rotation and returns it
// with its validation report. The stored lineup is not changed; the caller
// saves the candidate with PUT .../lineup.
func (a *api) generate(w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)
	g, _, err := a.loadGameFor(userId, r.PathValue("gameId"), AccessWrite)
	if err != nil {
		writeError(w, err, "")
		return
	}
	if !a.limiter.Allow(userId) {
		w.Header().Set("Retry-After", retryAfterGenerate)
		http.Error(w, "Too Many Requests: generation rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	resp, err := a.hubDo(r.Context(), g.ID, HubRequest{Type: ReqTypeGenerate, UserId: userId, Ctx: r.Context()})
	if err != nil {
		writeError(w, err, retryAfterGenerate)
		return
	}
	writeJSON(w, http.StatusOK, newLineupResponse(resp))
}

// validateRotation validates the posted rotation, or the stored one when
// the body is empty. Nothing is saved.
func (a *api) validateRotation(w http.ResponseWriter, r *http.Request) {
	g, t, err := a.loadGameFor(getUserID(r), r.PathValue("gameId"), AccessRead)
	if err != nil {
		writeError(w, err, "")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	var rot lineup.Rotation
	if len(data) > 0 {
		var body struct {
			Rotation lineup.Rotation `json:"rotation"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			http.Error(w, "Bad Request: Malformed JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := ValidateEdit(Edit{Type: EditReplaceRotation, Rotation: body.Rotation}, g.InningCount()); err != nil {
			writeError(w, err, "")
			return
		}
		rot = body.Rotation
		if rot == nil {
			rot = lineup.Rotation{}
		}
	}
	report, err := ValidateGame(g, t, rot)
	if err != nil {
		writeError(w, err, "")
		return
	}
	a.metrics.ObserveReport(report)
	writeJSON(w, http.StatusOK, newValidationResult(report))
}

func (a *api) summary(w http.ResponseWriter, r *http.Request) {
	g, t, err := a.loadGameFor(getUserID(r), r.PathValue("gameId"), AccessRead)
	if err != nil {
		writeError(w, err, "")
		return
	}
	players, err := SummarizeGame(g, t, lineup.PlayerID(r.URL.Query().Get("playerId")))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gameId": g.ID, "innings": g.InningCount(), "players": players})
}
