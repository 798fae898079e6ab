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
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"golang.org/x/time/rate"

	"github.com/ttbt-io/lineupkeeper/backend/generator"
)

func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

func hubBusyResponse(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	http.Error(w, "Too Many Requests: Server is busy", http.StatusTooManyRequests)
}

// Options represent server options.
type Options struct {
	Addr        string
	Cert        *tls.Certificate
	DataDir     string
	UseMockAuth bool
	Debug       bool
	GameStore   *GameStore
	TeamStore   *TeamStore
	Storage     *storage.Storage
	Registry    *Registry
	Listener    net.Listener

	// Auth Options
	AuthCookieName string
	AuthJWKSURL    string

	// Generator runs rotation generation. Without one, generate requests
	// fail with a transport error.
	Generator *generator.Adapter

	// Per user limit on generate requests. Zero disables the limit.
	GenerateRate  rate.Limit
	GenerateBurst int

	// MCPPath is where the MCP endpoint is served. Empty disables it.
	MCPPath string

	// MetricsPath is where Prometheus metrics are served. Empty disables it.
	MetricsPath string
}

const (
	retryAfterLoad     = "2"
	retryAfterEdit     = "5"
	retryAfterGenerate = "30"
)

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	gameStore  *GameStore
	registry   *Registry
}

// Shutdown gracefully shuts down the server and flushes pending edits.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []string

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("http: %v", err))
	}
	s.registry.StopGC()
	if err := s.gameStore.FlushAll(); err != nil {
		errs = append(errs, fmt.Sprintf("flush: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	opts.setDefaults()
	_, handler := NewServerHandler(opts)

	httpServer := &http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	go func() {
		var err error
		switch {
		case opts.Listener != nil && opts.Cert != nil:
			log.Printf("Starting HTTPS server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.ServeTLS(opts.Listener, "", "")
		case opts.Listener != nil:
			log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.Serve(opts.Listener)
		case opts.Cert != nil:
			log.Printf("Starting HTTPS server on %s...", opts.Addr)
			err = httpServer.ListenAndServeTLS("", "")
		default:
			log.Printf("Starting HTTP server on %s...", opts.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return &Server{
		httpServer: httpServer,
		gameStore:  opts.GameStore,
		registry:   opts.Registry,
	}, nil
}

func (opts *Options) setDefaults() {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}
	if opts.GameStore == nil {
		opts.GameStore = NewGameStore(opts.DataDir, opts.Storage)
	}
	if opts.TeamStore == nil {
		opts.TeamStore = NewTeamStore(opts.DataDir, opts.Storage)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(opts.GameStore, opts.TeamStore)
	}
	if opts.Generator == nil {
		opts.Generator = generator.NewAdapter(nil, generator.WithDebug(opts.Debug))
	}
	opts.GameStore.Debug = opts.Debug
}

// NewServerHandler creates and configures the HTTP handler for the server.
func NewServerHandler(opts Options) (*HubManager, http.Handler) {
	opts.setDefaults()

	var metrics *Metrics
	if opts.MetricsPath != "" {
		metrics = NewMetrics(opts.Registry.CountTotalTeams, opts.Registry.CountTotalGames)
	}
	hm := NewHubManager(opts.GameStore, opts.TeamStore, opts.Registry, opts.Generator, metrics, opts.Debug)

	a := &api{
		gs:       opts.GameStore,
		ts:       opts.TeamStore,
		registry: opts.Registry,
		hubs:     hm,
		metrics:  metrics,
		debug:    opts.Debug,
	}
	if opts.GenerateRate > 0 {
		burst := opts.GenerateBurst
		if burst < 1 {
			burst = 1
		}
		a.limiter = newUserRateLimiter(opts.GenerateRate, burst)
	}

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, metrics.instrument(pattern, h))
	}

	handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"teams":  opts.Registry.CountTotalTeams(),
			"games":  opts.Registry.CountTotalGames(),
			"hubs":   hm.ActiveHubs(),
		})
	})
	if metrics != nil {
		mux.Handle("GET "+opts.MetricsPath, metrics.Handler())
	}

	handle("GET /api/me", a.me)
	handle("GET /api/teams", a.listTeams)
	handle("POST /api/teams", a.saveTeam)
	handle("GET /api/teams/{teamId}", a.getTeam)
	handle("DELETE /api/teams/{teamId}", a.deleteTeam)
	handle("GET /api/teams/{teamId}/games", a.listGames)
	handle("GET /api/teams/{teamId}/analytics", a.teamAnalytics)

	handle("POST /api/games", a.saveGame)
	handle("GET /api/games/{gameId}", a.getGame)
	handle("DELETE /api/games/{gameId}", a.deleteGame)
	handle("GET /api/games/{gameId}/lineup", a.getLineup)
	handle("PUT /api/games/{gameId}/lineup", a.putLineup)
	handle("POST /api/games/{gameId}/edit", a.edit)
	handle("POST /api/games/{gameId}/rotation/validate", a.validateRotation)
	handle("POST /api/games/{gameId}/rotation/assign", a.assign)
	handle("POST /api/games/{gameId}/rotation/copy", a.copyInning)
	handle("POST /api/games/{gameId}/rotation/autofill", a.autofill)
	handle("POST /api/games/{gameId}/rotation/generate", a.generate)
	handle("GET /api/games/{gameId}/summary", a.summary)

	mux.HandleFunc("GET /api/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hm, metrics, w, r)
	})

	if opts.MCPPath != "" {
		mux.Handle(opts.MCPPath, a.mcpHandler())
	}

	handler := http.Handler(mux)
	if opts.UseMockAuth {
		handler = mockAuthMiddleware(handler)
	} else {
		handler = jwtAuthMiddleware(opts, handler)
	}
	handler = loggingMiddleware(opts.Debug, handler)
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)

	return hm, handler
}

// cacheControlMiddleware keeps API responses out of shared caches.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		} else {
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs the method and URL path of every incoming HTTP
// request in debug mode.
func loggingMiddleware(debug bool, next http.Handler) http.Handler {
	if !debug {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

const (
	limiterCleanupThreshold = 500
	limiterMaxIdleAge       = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userRateLimiter hands out one token bucket per user and prunes idle ones.
type userRateLimiter struct {
	users map[string]*limiterEntry
	mu    sync.Mutex
	r     rate.Limit
	b     int
}

func newUserRateLimiter(r rate.Limit, b int) *userRateLimiter {
	return &userRateLimiter{
		users: make(map[string]*limiterEntry),
		r:     r,
		b:     b,
	}
}

// Allow consumes one token of userId's bucket.
func (l *userRateLimiter) Allow(userId string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.users) > limiterCleanupThreshold {
		cutoff := now.Add(-limiterMaxIdleAge)
		for k, e := range l.users {
			if e.lastSeen.Before(cutoff) {
				delete(l.users, k)
			}
		}
	}
	e, ok := l.users[userId]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.users[userId] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// PerMinute converts a requests-per-minute setting to a rate.Limit.
func PerMinute(n float64) rate.Limit {
	if n <= 0 {
		return 0
	}
	return rate.Limit(n / 60)
}
