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
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const tombstoneTTL = 30 * 24 * time.Hour
const gcInterval = 12 * time.Hour

// Registry is the in-memory index of teams, their games and their members.
// It is rebuilt from the stores at startup and kept current on every save
// and delete.
type Registry struct {
	gameStore *GameStore
	teamStore *TeamStore

	mu sync.RWMutex

	// Metadata cache for sorting and filtering. Also holds tombstones
	// (Status="deleted").
	gameMetadata *lru.Cache[string, GameMetadata]
	teamMetadata *lru.Cache[string, TeamMetadata]

	teamGames map[string]map[string]bool        // teamId -> gameIds
	userTeams map[string]map[string]AccessLevel // userId -> teamId -> level

	gameCount int
	teamCount int

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a Registry, indexes everything in the stores and
// starts the tombstone collector.
func NewRegistry(gs *GameStore, ts *TeamStore) *Registry {
	gmCache, _ := lru.New[string, GameMetadata](5000)
	tmCache, _ := lru.New[string, TeamMetadata](2000)

	r := &Registry{
		gameStore:    gs,
		teamStore:    ts,
		gameMetadata: gmCache,
		teamMetadata: tmCache,
		teamGames:    make(map[string]map[string]bool),
		userTeams:    make(map[string]map[string]AccessLevel),
		stopChan:     make(chan struct{}),
	}
	r.Rebuild()
	r.StartGC()
	return r
}

// StartGC starts the background tombstone garbage collector.
func (r *Registry) StartGC() {
	go func() {
		ticker := time.NewTicker(gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.PurgeOldTombstones()
			case <-r.stopChan:
				return
			}
		}
	}()
}

// StopGC stops the background tombstone garbage collector.
func (r *Registry) StopGC() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

func expired(status string, deletedAt, cutoff int64) bool {
	return status == "deleted" && deletedAt > 0 && deletedAt < cutoff
}

// PurgeOldTombstones permanently deletes expired tombstones from disk.
func (r *Registry) PurgeOldTombstones() {
	cutoff := time.Now().Add(-tombstoneTTL).UnixNano()
	var purgedTeams, purgedGames int

	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err == nil && expired(t.Status, t.DeletedAt, cutoff) {
			if err := r.teamStore.PurgeTeam(t.ID); err == nil {
				r.teamMetadata.Remove(t.ID)
				purgedTeams++
			}
		}
	}
	for g, err := range r.gameStore.ListAllGameMetadata() {
		if err == nil && expired(g.Status, g.DeletedAt, cutoff) {
			if err := r.gameStore.PurgeGame(g.ID); err == nil {
				r.gameMetadata.Remove(g.ID)
				purgedGames++
			}
		}
	}
	if purgedTeams > 0 || purgedGames > 0 {
		log.Printf("Registry: GC complete. Purged %d games, %d teams.", purgedGames, purgedTeams)
	}
}

// Rebuild reconstructs the entire index by scanning the underlying stores.
func (r *Registry) Rebuild() {
	r.mu.Lock()
	r.teamGames = make(map[string]map[string]bool)
	r.userTeams = make(map[string]map[string]AccessLevel)
	r.gameCount = 0
	r.teamCount = 0
	r.mu.Unlock()
	r.gameMetadata.Purge()
	r.teamMetadata.Purge()

	cutoff := time.Now().Add(-tombstoneTTL).UnixNano()
	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing teams: %v", err)
			break
		}
		if expired(t.Status, t.DeletedAt, cutoff) {
			r.teamStore.PurgeTeam(t.ID)
			continue
		}
		r.indexTeam(t)
	}
	for g, err := range r.gameStore.ListAllGameMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing games: %v", err)
			break
		}
		if expired(g.Status, g.DeletedAt, cutoff) {
			r.gameStore.PurgeGame(g.ID)
			continue
		}
		r.indexGame(g)
	}

	log.Printf("Registry: Rebuild complete. Indexed %d games, %d teams.", r.CountTotalGames(), r.CountTotalTeams())
}

func teamLevels(t TeamMetadata) map[string]AccessLevel {
	levels := make(map[string]AccessLevel)
	set := func(users []string, level AccessLevel) {
		for _, u := range users {
			u = normalizeEmail(u)
			if u != "" && level > levels[u] {
				levels[u] = level
			}
		}
	}
	set(t.Roles.Viewers, AccessRead)
	set(t.Roles.Coaches, AccessWrite)
	set(t.Roles.Admins, AccessAdmin)
	set([]string{t.OwnerID}, AccessAdmin)
	return levels
}

func (r *Registry) indexTeam(t TeamMetadata) {
	prev, existed := r.teamMetadata.Peek(t.ID)
	r.teamMetadata.Add(t.ID, t)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, teams := range r.userTeams {
		delete(teams, t.ID)
	}
	live := t.Status != "deleted"
	wasLive := existed && prev.Status != "deleted"
	switch {
	case live && !wasLive:
		r.teamCount++
	case !live && wasLive:
		r.teamCount--
	}
	if !live {
		delete(r.teamGames, t.ID)
		return
	}
	for u, level := range teamLevels(t) {
		if r.userTeams[u] == nil {
			r.userTeams[u] = make(map[string]AccessLevel)
		}
		r.userTeams[u][t.ID] = level
	}
}

func (r *Registry) indexGame(g GameMetadata) {
	prev, existed := r.gameMetadata.Peek(g.ID)
	r.gameMetadata.Add(g.ID, g)

	r.mu.Lock()
	defer r.mu.Unlock()

	live := g.Status != "deleted"
	wasLive := existed && prev.Status != "deleted"
	switch {
	case live && !wasLive:
		r.gameCount++
	case !live && wasLive:
		r.gameCount--
	}
	if existed && prev.TeamID != g.TeamID {
		delete(r.teamGames[prev.TeamID], g.ID)
	}
	if !live || g.TeamID == "" {
		delete(r.teamGames[g.TeamID], g.ID)
		return
	}
	if r.teamGames[g.TeamID] == nil {
		r.teamGames[g.TeamID] = make(map[string]bool)
	}
	r.teamGames[g.TeamID][g.ID] = true
}

// UpdateTeam indexes a saved team.
func (r *Registry) UpdateTeam(t Team) {
	r.indexTeam(t.Metadata())
}

// UpdateGame indexes a saved game.
func (r *Registry) UpdateGame(g Game) {
	r.indexGame(g.Metadata())
}

// DeleteGame marks a game deleted in the index.
func (r *Registry) DeleteGame(gameId string) {
	m, ok := r.gameMetadata.Peek(gameId)
	if !ok {
		m = GameMetadata{ID: gameId}
		if g, err := r.gameStore.LoadGame(gameId); err == nil {
			m = g.Metadata()
		}
	}
	m.Status = "deleted"
	m.DeletedAt = time.Now().UnixNano()
	r.indexGame(m)
}

// DeleteTeam marks a team deleted in the index.
func (r *Registry) DeleteTeam(teamId string) {
	m, ok := r.teamMetadata.Peek(teamId)
	if !ok {
		m = TeamMetadata{ID: teamId}
	}
	m.Status = "deleted"
	m.DeletedAt = time.Now().UnixNano()
	r.indexTeam(m)
}

func (r *Registry) gameMeta(id string) (GameMetadata, bool) {
	if m, ok := r.gameMetadata.Get(id); ok {
		return m, true
	}
	g, err := r.gameStore.LoadGame(id)
	if err != nil {
		return GameMetadata{}, false
	}
	m := g.Metadata()
	r.gameMetadata.Add(id, m)
	return m, true
}

func (r *Registry) teamMeta(id string) (TeamMetadata, bool) {
	if m, ok := r.teamMetadata.Get(id); ok {
		return m, true
	}
	t, err := r.teamStore.LoadTeam(id)
	if err != nil {
		return TeamMetadata{}, false
	}
	m := t.Metadata()
	r.teamMetadata.Add(id, m)
	return m, true
}

// GameExists reports whether a live game with id exists.
func (r *Registry) GameExists(id string) bool {
	m, ok := r.gameMeta(id)
	return ok && m.Status != "deleted"
}

// TeamExists reports whether a live team with id exists.
func (r *Registry) TeamExists(id string) bool {
	m, ok := r.teamMeta(id)
	return ok && m.Status != "deleted"
}

// TeamForGame returns the team a live game belongs to.
func (r *Registry) TeamForGame(gameId string) (string, bool) {
	m, ok := r.gameMeta(gameId)
	if !ok || m.Status == "deleted" {
		return "", false
	}
	return m.TeamID, true
}

// TeamAccess returns the indexed access level of userId on teamId.
func (r *Registry) TeamAccess(userId, teamId string) AccessLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userTeams[normalizeEmail(userId)][teamId]
}

// GamesForTeam returns the ids of a team's live games ordered by date,
// undated games last.
func (r *Registry) GamesForTeam(teamId string) []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.teamGames[teamId]))
	for id := range r.teamGames[teamId] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	metas := make(map[string]GameMetadata, len(ids))
	for _, id := range ids {
		metas[id], _ = r.gameMeta(id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := metas[ids[i]], metas[ids[j]]
		if (a.Date == "") != (b.Date == "") {
			return b.Date == ""
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ListTeams returns the teams userId can read whose name contains query,
// ordered by name.
func (r *Registry) ListTeams(userId, query string) []string {
	r.mu.RLock()
	var ids []string
	for id := range r.userTeams[normalizeEmail(userId)] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	names := make(map[string]string, len(ids))
	out := ids[:0]
	for _, id := range ids {
		m, ok := r.teamMeta(id)
		if !ok || m.Status == "deleted" {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.Name), query) {
			continue
		}
		names[id] = m.Name
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if names[out[i]] != names[out[j]] {
			return names[out[i]] < names[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func (r *Registry) CountTotalGames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameCount
}

func (r *Registry) CountTotalTeams() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teamCount
}
