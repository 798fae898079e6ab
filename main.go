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

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ttbt-io/lineupkeeper/backend"
)

var (
	configFile     = flag.String("config", "", "Optional YAML configuration file")
	addr           = flag.String("addr", ":8080", "The TCP address to listen to")
	useMockAuth    = flag.Bool("use-mock-auth", false, "Use Mock Authentication. For testing purposes only.")
	debugMode      = flag.Bool("debug", false, "Enable debug mode")
	dataDir        = flag.String("data-dir", "data", "Directory for game and team data")
	tlsCert        = flag.String("tls-cert", "", "Path to main HTTP TLS certificate")
	tlsKey         = flag.String("tls-key", "", "Path to main HTTP TLS key")
	authCookieName = flag.String("auth-cookie-name", "lineupkeeper_auth", "Name of the cookie containing the JWT")
	authJWKSURL    = flag.String("auth-jwks-url", "", "URL of the JWKS endpoint used to verify JWTs")
	mcpPath        = flag.String("mcp-path", "/mcp", "Path of the MCP endpoint (empty to disable)")
)

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cfg *backend.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "data-dir":
			cfg.Server.DataDir = *dataDir
		case "debug":
			cfg.Server.Debug = *debugMode
		case "mcp-path":
			cfg.Server.MCPPath = *mcpPath
		case "use-mock-auth":
			cfg.Auth.UseMock = *useMockAuth
		case "auth-cookie-name":
			cfg.Auth.CookieName = *authCookieName
		case "auth-jwks-url":
			cfg.Auth.JWKSURL = *authJWKSURL
		}
	})
}

// main starts the web server and registers the API handlers.
func main() {
	flag.Parse()

	cfg, err := backend.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)

	var mainTLSCert *tls.Certificate
	if *tlsCert != "" && *tlsKey != "" {
		cert, err := tls.LoadX509KeyPair(*tlsCert, *tlsKey)
		if err != nil {
			log.Fatalf("Failed to load main TLS cert/key: %v", err)
		}
		mainTLSCert = &cert
	}

	store, _, err := backend.OpenStorage(cfg.Server.DataDir, cfg.MasterKeyPassphrase)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	if cfg.Generator.Mode == "" {
		log.Println("Warning: No rotation generator configured. Generate requests will fail.")
	} else {
		log.Printf("Using %s rotation generator at %s (timeout %s)", cfg.Generator.Mode, cfg.Generator.URL, cfg.Generator.Timeout)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	server, err := backend.StartServer(backend.Options{
		Addr:           cfg.Server.Addr,
		Cert:           mainTLSCert,
		DataDir:        cfg.Server.DataDir,
		UseMockAuth:    cfg.Auth.UseMock,
		Debug:          cfg.Server.Debug,
		Storage:        store,
		AuthCookieName: cfg.Auth.CookieName,
		AuthJWKSURL:    cfg.Auth.JWKSURL,
		Generator:      cfg.Generator.NewAdapter(cfg.Server.Debug),
		GenerateRate:   backend.PerMinute(cfg.Generator.RatePerMinute),
		GenerateBurst:  cfg.Generator.Burst,
		MCPPath:        cfg.Server.MCPPath,
		MetricsPath:    metricsPath,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	} else {
		log.Println("Gracefully stopped.")
	}
}
