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
	"encoding/json"
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// Lineup is the per-game lineup document.
type Lineup struct {
	BattingOrder lineup.BattingOrder   `json:"battingOrder"`
	Rotation     lineup.Rotation       `json:"rotation"`
	Availability []lineup.Availability `json:"availability"`
	UpdatedAt    int64                 `json:"updatedAt,omitempty"`
}

func (l *Lineup) normalize() {
	if l.BattingOrder == nil {
		l.BattingOrder = make(lineup.BattingOrder, 0)
	}
	if l.Rotation == nil {
		l.Rotation = make(lineup.Rotation)
	}
	if l.Availability == nil {
		l.Availability = make([]lineup.Availability, 0)
	}
}

// Clone returns a deep copy.
func (l Lineup) Clone() Lineup {
	out := Lineup{
		BattingOrder: append(lineup.BattingOrder(nil), l.BattingOrder...),
		Rotation:     l.Rotation.Clone(),
		Availability: append([]lineup.Availability(nil), l.Availability...),
		UpdatedAt:    l.UpdatedAt,
	}
	out.normalize()
	return out
}

func (l *Lineup) availability() lineup.AvailabilityMap {
	return lineup.NewAvailabilityMap(l.Availability)
}

// pool orders the roster for autofill: batting order first, then everyone
// else in roster order.
func (l *Lineup) pool(roster []lineup.Player) []lineup.Player {
	byID := make(map[lineup.PlayerID]lineup.Player, len(roster))
	for _, p := range roster {
		byID[p.ID] = p
	}
	out := make([]lineup.Player, 0, len(roster))
	used := make(map[lineup.PlayerID]bool, len(roster))
	for _, id := range l.BattingOrder {
		if p, ok := byID[id]; ok && !used[id] {
			out = append(out, p)
			used[id] = true
		}
	}
	for _, p := range roster {
		if !used[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// available returns the roster players marked available for this game.
func (l *Lineup) available(roster []lineup.Player) []lineup.Player {
	return l.availability().AvailablePlayers(roster)
}

// Game is one scheduled game of a team together with its lineup.
type Game struct {
	ID            string `json:"id"`
	SchemaVersion int    `json:"schemaVersion"`
	TeamID        string `json:"teamId"`
	Opponent      string `json:"opponent,omitempty"`
	Date          string `json:"date,omitempty"` // YYYY-MM-DD
	Location      string `json:"location,omitempty"`
	Innings       int    `json:"innings,omitempty"`
	OwnerID       string `json:"ownerId"`
	Status        string `json:"status,omitempty"`
	UpdatedAt     int64  `json:"updatedAt,omitempty"`

	// DeletedAt is the timestamp (Unix Nano) when the game was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`

	Lineup Lineup `json:"lineup"`
}

func (g *Game) normalize() {
	if g.SchemaVersion == 0 {
		g.SchemaVersion = CurrentSchemaVersion
	}
	g.Lineup.normalize()
}

// InningCount returns the scheduled innings, lineup.DefaultInnings when unset.
func (g *Game) InningCount() int {
	return g.LineupGame().InningCount()
}

// LineupGame converts g to the core game type. An unparsable date is
// treated as undated.
func (g *Game) LineupGame() lineup.Game {
	lg := lineup.Game{
		ID:       g.ID,
		TeamID:   g.TeamID,
		Opponent: g.Opponent,
		Innings:  g.Innings,
	}
	if g.Date != "" {
		if d, err := time.Parse(dateLayout, g.Date); err == nil {
			lg.Date = &d
		}
	}
	return lg
}

// Metadata returns the fields the registry indexes.
func (g *Game) Metadata() GameMetadata {
	return GameMetadata{
		ID:        g.ID,
		TeamID:    g.TeamID,
		OwnerID:   g.OwnerID,
		Opponent:  g.Opponent,
		Date:      g.Date,
		Status:    g.Status,
		DeletedAt: g.DeletedAt,
	}
}

// GameMetadata contains only the fields needed for indexing.
type GameMetadata struct {
	ID        string `json:"id"`
	TeamID    string `json:"teamId"`
	OwnerID   string `json:"ownerId"`
	Opponent  string `json:"opponent"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	DeletedAt int64  `json:"deletedAt"`
}

// GameStore manages game persistence to disk.
type GameStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage
	mu      sync.Map // Stores *sync.RWMutex for each gameId to protect writes and reads
	cache   sync.Map // Stores the latest JSON for each gameId

	dirtyMu sync.Mutex
	dirty   map[string]bool
}

// NewGameStore creates a new GameStore.
func NewGameStore(dataDir string, s *storage.Storage) *GameStore {
	return &GameStore{
		DataDir: dataDir,
		storage: s,
		dirty:   make(map[string]bool),
	}
}

func (gs *GameStore) lock(gameId string) *sync.RWMutex {
	m, _ := gs.mu.LoadOrStore(gameId, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

func gameFilenames(gameId string) (string, string) {
	encoded := url.PathEscape(gameId)
	return filepath.Join("games", fmt.Sprintf("%s.json", encoded)),
		filepath.Join("games", fmt.Sprintf("%s.meta.json", encoded))
}

// SaveGame saves the game data atomically, along with its metadata sidecar.
func (gs *GameStore) SaveGame(game *Game) error {
	mutex := gs.lock(game.ID)
	mutex.Lock()
	defer mutex.Unlock()

	game.normalize()
	filename, metaFilename := gameFilenames(game.ID)
	if err := gs.storage.SaveDataFile(filename, game); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}

	meta := game.Metadata()
	if err := gs.storage.SaveDataFile(metaFilename, &meta); err != nil {
		// Non-fatal, listing falls back to the main file.
		log.Printf("Warning: Failed to save metadata sidecar for game %s: %v", game.ID, err)
	}

	if jsonBytes, err := json.Marshal(game); err == nil {
		gs.cache.Store(game.ID, jsonBytes)
	}

	gs.dirtyMu.Lock()
	delete(gs.dirty, game.ID)
	gs.dirtyMu.Unlock()
	return nil
}

// SaveGameInMemory updates the in-memory cache and marks the game as dirty.
// If forceSync is true, it writes to disk immediately (behaving like SaveGame).
func (gs *GameStore) SaveGameInMemory(game *Game, forceSync bool) error {
	if forceSync {
		return gs.SaveGame(game)
	}
	game.normalize()
	jsonBytes, err := json.Marshal(game)
	if err != nil {
		return err
	}
	gs.cache.Store(game.ID, jsonBytes)

	gs.dirtyMu.Lock()
	gs.dirty[game.ID] = true
	gs.dirtyMu.Unlock()
	return nil
}

// IsDirty reports whether gameId has unsaved in-memory changes.
func (gs *GameStore) IsDirty(gameId string) bool {
	gs.dirtyMu.Lock()
	defer gs.dirtyMu.Unlock()
	return gs.dirty[gameId]
}

// Flush persists a specific game to disk if it is dirty.
func (gs *GameStore) Flush(gameId string) error {
	if !gs.IsDirty(gameId) {
		return nil
	}

	val, ok := gs.cache.Load(gameId)
	if !ok {
		gs.dirtyMu.Lock()
		delete(gs.dirty, gameId)
		gs.dirtyMu.Unlock()
		return fmt.Errorf("game %s marked dirty but not found in cache", gameId)
	}

	var g Game
	if err := json.Unmarshal(val.([]byte), &g); err != nil {
		return fmt.Errorf("failed to unmarshal game from cache for flush: %w", err)
	}
	// SaveGame clears the dirty flag.
	return gs.SaveGame(&g)
}

// FlushAll persists all dirty games to disk.
func (gs *GameStore) FlushAll() error {
	gs.dirtyMu.Lock()
	dirtyIds := make([]string, 0, len(gs.dirty))
	for id := range gs.dirty {
		dirtyIds = append(dirtyIds, id)
	}
	gs.dirtyMu.Unlock()

	for _, id := range dirtyIds {
		if err := gs.Flush(id); err != nil {
			return fmt.Errorf("failed to flush game %s: %w", id, err)
		}
	}
	return nil
}

// LoadGame loads the game data by game ID.
func (gs *GameStore) LoadGame(gameId string) (*Game, error) {
	if val, ok := gs.cache.Load(gameId); ok {
		var g Game
		if err := json.Unmarshal(val.([]byte), &g); err == nil {
			if gs.Debug {
				log.Printf("[CACHE] Hit for game %s", gameId)
			}
			g.normalize()
			return &g, nil
		}
		gs.cache.Delete(gameId)
	}
	if gs.Debug {
		log.Printf("[CACHE] Miss for game %s", gameId)
	}

	mutex := gs.lock(gameId)
	mutex.RLock()
	defer mutex.RUnlock()

	filename, _ := gameFilenames(gameId)
	var g Game
	if err := gs.storage.ReadDataFile(filename, &g); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if g.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("game %s has unsupported schema version %d", gameId, g.SchemaVersion)
	}
	g.normalize()

	if jsonBytes, err := json.Marshal(&g); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}
	return &g, nil
}

// SaveLineup replaces the lineup document of an existing game.
func (gs *GameStore) SaveLineup(gameId string, l Lineup) error {
	g, err := gs.LoadGame(gameId)
	if err != nil {
		return err
	}
	if g.Status == "deleted" {
		return os.ErrNotExist
	}
	l.normalize()
	l.UpdatedAt = time.Now().UnixNano()
	g.Lineup = l
	g.UpdatedAt = l.UpdatedAt
	return gs.SaveGame(g)
}

// LoadLineup returns the lineup document of a game.
func (gs *GameStore) LoadLineup(gameId string) (*Lineup, error) {
	g, err := gs.LoadGame(gameId)
	if err != nil {
		return nil, err
	}
	if g.Status == "deleted" {
		return nil, os.ErrNotExist
	}
	return &g.Lineup, nil
}

// DeleteGame deletes a specific game by overwriting it with a tombstone.
func (gs *GameStore) DeleteGame(gameId string) error {
	g, err := gs.LoadGame(gameId)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	mutex := gs.lock(gameId)
	mutex.Lock()
	defer mutex.Unlock()

	tombstone := &Game{
		ID:            gameId,
		SchemaVersion: CurrentSchemaVersion,
		TeamID:        g.TeamID,
		Status:        "deleted",
		OwnerID:       g.OwnerID,
		DeletedAt:     time.Now().UnixNano(),
	}
	filename, metaFilename := gameFilenames(gameId)
	if err := gs.storage.SaveDataFile(filename, tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}
	meta := tombstone.Metadata()
	if err := gs.storage.SaveDataFile(metaFilename, &meta); err != nil {
		log.Printf("Warning: Failed to save metadata tombstone for game %s: %v", gameId, err)
	}

	if jsonBytes, err := json.Marshal(tombstone); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}
	gs.dirtyMu.Lock()
	delete(gs.dirty, gameId)
	gs.dirtyMu.Unlock()
	return nil
}

// PurgeGame permanently deletes the game file.
func (gs *GameStore) PurgeGame(gameId string) error {
	mutex := gs.lock(gameId)
	mutex.Lock()
	defer mutex.Unlock()

	gs.cache.Delete(gameId)

	filename, metaFilename := gameFilenames(gameId)
	if err := os.Remove(filepath.Join(gs.DataDir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not purge game file: %w", err)
	}
	if err := os.Remove(filepath.Join(gs.DataDir, metaFilename)); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not purge meta file for game %s: %v", gameId, err)
	}
	return nil
}

// gameIDsOnDisk lists the ids of all game files, noting which have a
// metadata sidecar.
func (gs *GameStore) gameIDsOnDisk() (ids []string, hasMeta map[string]bool, err error) {
	files, err := os.ReadDir(filepath.Join(gs.DataDir, "games"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("could not read games directory: %w", err)
	}
	hasMeta = make(map[string]bool)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() {
			continue
		}
		if encoded, ok := strings.CutSuffix(name, ".meta.json"); ok {
			if id, err := url.PathUnescape(encoded); err == nil {
				hasMeta[id] = true
			}
			continue
		}
		if encoded, ok := strings.CutSuffix(name, ".json"); ok {
			if id, err := url.PathUnescape(encoded); err == nil {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, hasMeta, nil
}

// ListAllGameMetadata returns metadata for all games, reading the sidecar
// when present and the full game otherwise. Dirty in-memory games are
// reported from the cache.
func (gs *GameStore) ListAllGameMetadata() iter.Seq2[GameMetadata, error] {
	return func(yield func(GameMetadata, error) bool) {
		ids, hasMeta, err := gs.gameIDsOnDisk()
		if err != nil {
			yield(GameMetadata{}, err)
			return
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			seen[id] = true
			if hasMeta[id] && !gs.IsDirty(id) {
				_, metaFilename := gameFilenames(id)
				var meta GameMetadata
				err := gs.storage.ReadDataFile(metaFilename, &meta)
				if err == nil {
					if !yield(meta, nil) {
						return
					}
					continue
				}
				log.Printf("Registry Warning: failed to load metadata for %s: %v. Falling back to main file.", id, err)
			}
			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Registry Warning: failed to load game %s from disk: %v", id, err)
				continue
			}
			if !yield(g.Metadata(), nil) {
				return
			}
		}

		for _, id := range gs.dirtyIDs() {
			if seen[id] {
				continue
			}
			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}
			if !yield(g.Metadata(), nil) {
				return
			}
		}
	}
}

// ListAllGames returns an iterator over all games, including dirty games
// not yet on disk.
func (gs *GameStore) ListAllGames() iter.Seq2[*Game, error] {
	return func(yield func(*Game, error) bool) {
		ids, _, err := gs.gameIDsOnDisk()
		if err != nil {
			yield(nil, err)
			return
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			seen[id] = true
			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Warning: could not load game '%s': %v", id, err)
				continue
			}
			if !yield(g, nil) {
				return
			}
		}
		for _, id := range gs.dirtyIDs() {
			if seen[id] {
				continue
			}
			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}
			if !yield(g, nil) {
				return
			}
		}
	}
}

// ListGamesForTeam returns the live games of a team ordered by date, undated
// games last.
func (gs *GameStore) ListGamesForTeam(teamId string) ([]*Game, error) {
	var out []*Game
	for g, err := range gs.ListAllGames() {
		if err != nil {
			return nil, err
		}
		if g.TeamID == teamId && g.Status != "deleted" {
			out = append(out, g)
		}
	}
	sortGames(out)
	return out, nil
}

func (gs *GameStore) dirtyIDs() []string {
	gs.dirtyMu.Lock()
	defer gs.dirtyMu.Unlock()
	ids := make([]string, 0, len(gs.dirty))
	for id := range gs.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortGames orders games by date then id, undated games last.
func sortGames(games []*Game) {
	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i], games[j]
		if (a.Date == "") != (b.Date == "") {
			return b.Date == ""
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.ID < b.ID
	})
}
