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
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"gopkg.in/yaml.v3"

	"github.com/ttbt-io/lineupkeeper/backend/generator"
)

// Config is the optional YAML configuration file. Environment variables
// override the file; command line flags override both.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Generator GeneratorConfig `yaml:"generator"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// MasterKeyPassphrase comes from LK_MASTER_KEY only.
	MasterKeyPassphrase string `yaml:"-"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`
	Debug   bool   `yaml:"debug"`
	MCPPath string `yaml:"mcp_path"`
}

type AuthConfig struct {
	UseMock    bool   `yaml:"use_mock"`
	JWKSURL    string `yaml:"jwks_url"`
	CookieName string `yaml:"cookie_name"`
}

// GeneratorConfig selects the external rotation generator. Mode is "http",
// "mcp" or empty for none.
type GeneratorConfig struct {
	Mode       string        `yaml:"mode"`
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Tool       string        `yaml:"tool"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`

	// Per user limit on generate requests.
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			DataDir: "data",
			MCPPath: "/mcp",
		},
		Auth: AuthConfig{
			CookieName: defaultAuthCookie,
		},
		Generator: GeneratorConfig{
			Timeout:       generator.DefaultTimeout,
			MaxRetries:    2,
			RatePerMinute: 6,
			Burst:         2,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig reads filename over the defaults and applies environment
// overrides. An empty filename skips the file.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LK_MASTER_KEY"); v != "" {
		c.MasterKeyPassphrase = v
	}
	if v := os.Getenv("LK_GENERATOR_URL"); v != "" {
		c.Generator.URL = v
	}
	if v := os.Getenv("LK_GENERATOR_API_KEY"); v != "" {
		c.Generator.APIKey = v
	}
	if v := os.Getenv("LK_GENERATOR_MODE"); v != "" {
		c.Generator.Mode = v
	}
	if v := os.Getenv("LK_GENERATOR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			// Plain seconds are accepted too.
			secs, serr := strconv.Atoi(v)
			if serr != nil {
				return fmt.Errorf("invalid LK_GENERATOR_TIMEOUT %q: %w", v, err)
			}
			d = time.Duration(secs) * time.Second
		}
		c.Generator.Timeout = d
	}
	return nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	switch c.Generator.Mode {
	case "":
	case "http", "mcp":
		if c.Generator.URL == "" {
			return fmt.Errorf("generator mode %q requires a url", c.Generator.Mode)
		}
	default:
		return fmt.Errorf("unknown generator mode %q (want http or mcp)", c.Generator.Mode)
	}
	if c.Generator.Timeout < 0 {
		return errors.New("generator timeout must not be negative")
	}
	if c.Generator.RatePerMinute < 0 || c.Generator.Burst < 0 {
		return errors.New("generator rate limit must not be negative")
	}
	return nil
}

// NewClient builds the generator client for the configured mode, nil when
// no generator is configured.
func (g GeneratorConfig) NewClient() generator.Client {
	switch g.Mode {
	case "http":
		c := generator.NewHTTPClient(g.URL, g.APIKey)
		c.Model = g.Model
		c.MaxRetries = g.MaxRetries
		return c
	case "mcp":
		c := generator.NewMCPClient(g.URL)
		if g.Tool != "" {
			c.Tool = g.Tool
		}
		return c
	}
	return nil
}

// NewAdapter wraps NewClient with the configured timeout.
func (g GeneratorConfig) NewAdapter(debug bool) *generator.Adapter {
	return generator.NewAdapter(g.NewClient(), generator.WithTimeout(g.Timeout), generator.WithDebug(debug))
}

// OpenStorage opens the data directory. With a passphrase the master key in
// dataDir/master.key is loaded, or created on first use. Without one, an
// existing key file is an error so encrypted data is never read as plain.
func OpenStorage(dataDir, passphrase string) (*storage.Storage, crypto.MasterKey, error) {
	var masterKey crypto.MasterKey
	keyFile := filepath.Join(dataDir, "master.key")
	if passphrase != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, nil, err
		}
		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("failed to read master key: %w", err)
			}
			log.Println("Initializing new master encryption key...")
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				return nil, nil, fmt.Errorf("failed to create master key: %w", err)
			}
			if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
				return nil, nil, fmt.Errorf("failed to save master key: %w", err)
			}
		} else {
			log.Println("Loaded master encryption key.")
		}
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			return nil, nil, fmt.Errorf("%s exists but LK_MASTER_KEY is not set; refusing to start unencrypted", keyFile)
		}
		log.Println("Warning: No LK_MASTER_KEY provided. Data will be stored UNENCRYPTED.")
	}

	s := storage.New(dataDir, masterKey)
	s.EnableCompression(true)
	return s, masterKey, nil
}
