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
	"net/http"
	"strings"
)

type contextKey struct{}

// userIDKey is the context key for the authenticated user's ID (email).
// The associated value is always a string.
var userIDKey contextKey

// getUserID returns the UserID from the request context, if present.
func getUserID(r *http.Request) string {
	if val := r.Context().Value(userIDKey); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// normalizeEmail ensures consistent casing and whitespace for User IDs.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail obscures an email address for safe logging.
// e.g. "user@example.com" -> "u***@example.com"
func maskEmail(email string) string {
	if email == "" {
		return "<empty>"
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) < 1 {
		return "****"
	}
	return string(parts[0][0]) + "***@" + parts[1]
}

type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
	AccessAdmin
)

func (l AccessLevel) String() string {
	switch l {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessAdmin:
		return "admin"
	}
	return "none"
}

func hasMember(list []string, userId string) bool {
	for _, u := range list {
		if normalizeEmail(u) == userId {
			return true
		}
	}
	return false
}

// GetTeamAccess calculates the effective access level for a user on a team.
// Coaches edit lineups, viewers only read them.
func GetTeamAccess(userId string, team Team) AccessLevel {
	userId = normalizeEmail(userId)
	if userId == "" || team.Status == "deleted" {
		return AccessNone
	}
	switch {
	case normalizeEmail(team.OwnerID) == userId, hasMember(team.Roles.Admins, userId):
		return AccessAdmin
	case hasMember(team.Roles.Coaches, userId):
		return AccessWrite
	case hasMember(team.Roles.Viewers, userId):
		return AccessRead
	}
	return AccessNone
}

// GetGameAccess calculates the effective access level for a user on a game.
// The game's creator is an admin; everyone else inherits from the team.
func GetGameAccess(userId string, game Game, team *Team) AccessLevel {
	userId = normalizeEmail(userId)
	if userId == "" || game.Status == "deleted" {
		return AccessNone
	}
	if normalizeEmail(game.OwnerID) == userId {
		return AccessAdmin
	}
	if team == nil || team.ID != game.TeamID {
		log.Printf("[AUTH] game %s has no loadable team %s", game.ID, game.TeamID)
		return AccessNone
	}
	return GetTeamAccess(userId, *team)
}
