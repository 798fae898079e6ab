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
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// TeamRoles defines the members of a team by their role.
type TeamRoles struct {
	Admins  []string `json:"admins"`
	Coaches []string `json:"coaches"`
	Viewers []string `json:"viewers"`
}

func (r *TeamRoles) normalize() {
	if r.Admins == nil {
		r.Admins = make([]string, 0)
	}
	if r.Coaches == nil {
		r.Coaches = make([]string, 0)
	}
	if r.Viewers == nil {
		r.Viewers = make([]string, 0)
	}
}

// Team is a persistent roster and its permissions.
type Team struct {
	ID            string          `json:"id"`
	SchemaVersion int             `json:"schemaVersion"`
	Name          string          `json:"name,omitempty"`
	Roster        []lineup.Player `json:"roster,omitempty"`
	OwnerID       string          `json:"ownerId"`
	Roles         TeamRoles       `json:"roles"`
	UpdatedAt     int64           `json:"updatedAt,omitempty"`

	// Status can be "active" (default/empty) or "deleted"
	Status string `json:"status,omitempty"`
	// DeletedAt is the timestamp (Unix Nano) when the team was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`
}

func (t *Team) normalize() {
	if t.SchemaVersion == 0 {
		t.SchemaVersion = CurrentSchemaVersion
	}
	if t.Roster == nil {
		t.Roster = make([]lineup.Player, 0)
	}
	t.Roles.normalize()
}

// Metadata returns the fields the registry indexes.
func (t *Team) Metadata() TeamMetadata {
	return TeamMetadata{
		ID:        t.ID,
		Name:      t.Name,
		OwnerID:   t.OwnerID,
		Roles:     t.Roles,
		UpdatedAt: t.UpdatedAt,
		Status:    t.Status,
		DeletedAt: t.DeletedAt,
	}
}

// TeamStore manages team persistence to disk.
type TeamStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.Mutex for each teamId to protect writes
}

// NewTeamStore creates a new TeamStore.
func NewTeamStore(dataDir string, s *storage.Storage) *TeamStore {
	return &TeamStore{
		DataDir: dataDir,
		storage: s,
	}
}

func (ts *TeamStore) lock(teamId string) func() {
	m, _ := ts.mu.LoadOrStore(teamId, &sync.Mutex{})
	mutex := m.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

func teamFilename(teamId string) string {
	return filepath.Join("teams", fmt.Sprintf("%s.json", url.PathEscape(teamId)))
}

// SaveTeam saves the team data atomically.
func (ts *TeamStore) SaveTeam(team *Team) error {
	defer ts.lock(team.ID)()

	team.normalize()
	if team.UpdatedAt == 0 {
		team.UpdatedAt = time.Now().UnixNano()
	}
	if err := ts.storage.SaveDataFile(teamFilename(team.ID), team); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// LoadTeam loads the team data by ID.
func (ts *TeamStore) LoadTeam(teamId string) (*Team, error) {
	var t Team
	if err := ts.storage.ReadDataFile(teamFilename(teamId), &t); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if t.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("team %s has unsupported schema version %d", teamId, t.SchemaVersion)
	}
	t.normalize()
	return &t, nil
}

// TeamMetadata contains only the fields needed for indexing.
type TeamMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Roles     TeamRoles `json:"roles"`
	UpdatedAt int64     `json:"updatedAt"`
	Status    string    `json:"status"`
	DeletedAt int64     `json:"deletedAt"`
}

// ListAllTeamMetadata returns an iterator over metadata for all teams.
func (ts *TeamStore) ListAllTeamMetadata() iter.Seq2[TeamMetadata, error] {
	return func(yield func(TeamMetadata, error) bool) {
		for t, err := range ts.ListAllTeams() {
			if err != nil {
				yield(TeamMetadata{}, err)
				return
			}
			if !yield(t.Metadata(), nil) {
				return
			}
		}
	}
}

// ListAllTeams returns an iterator over all teams found in the flat teams directory.
func (ts *TeamStore) ListAllTeams() iter.Seq2[*Team, error] {
	return func(yield func(*Team, error) bool) {
		teamsDir := filepath.Join(ts.DataDir, "teams")
		files, err := os.ReadDir(teamsDir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(nil, fmt.Errorf("could not read teams directory: %w", err))
			}
			return
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			teamId, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
			if err != nil {
				continue
			}
			t, err := ts.LoadTeam(teamId)
			if err != nil {
				log.Printf("Warning: could not load team '%s': %v", teamId, err)
				continue
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// DeleteTeam deletes a specific team by overwriting it with a tombstone.
func (ts *TeamStore) DeleteTeam(teamId string) error {
	// Load first to keep the owner on the tombstone.
	t, err := ts.LoadTeam(teamId)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	defer ts.lock(teamId)()

	tombstone := &Team{
		ID:            teamId,
		SchemaVersion: CurrentSchemaVersion,
		OwnerID:       t.OwnerID,
		Status:        "deleted",
		DeletedAt:     time.Now().UnixNano(),
	}
	if err := ts.storage.SaveDataFile(teamFilename(teamId), tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}
	return nil
}

// PurgeTeam permanently deletes the team file.
func (ts *TeamStore) PurgeTeam(teamId string) error {
	defer ts.lock(teamId)()

	fullPath := filepath.Join(ts.DataDir, teamFilename(teamId))
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already gone
		}
		return fmt.Errorf("could not purge team file: %w", err)
	}
	return nil
}
