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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/lineupkeeper/backend/generator"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/mcp", cfg.Server.MCPPath)
	assert.Equal(t, defaultAuthCookie, cfg.Auth.CookieName)
	assert.Equal(t, generator.DefaultTimeout, cfg.Generator.Timeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Nil(t, cfg.Generator.NewClient())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  data_dir: /var/lib/lineupkeeper
  debug: true
auth:
  jwks_url: https://auth.example.com/.well-known/jwks.json
generator:
  mode: http
  url: https://generator.example.com/v1/rotation
  model: rotation-small
  timeout: 45s
  max_retries: 4
  rate_per_minute: 3
metrics:
  enabled: false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/lineupkeeper", cfg.Server.DataDir)
	assert.True(t, cfg.Server.Debug)
	// Unset keys keep their defaults.
	assert.Equal(t, "/mcp", cfg.Server.MCPPath)
	assert.Equal(t, 2, cfg.Generator.Burst)
	assert.Equal(t, 45*time.Second, cfg.Generator.Timeout)
	assert.False(t, cfg.Metrics.Enabled)

	c, ok := cfg.Generator.NewClient().(*generator.HTTPClient)
	require.True(t, ok)
	assert.Equal(t, "rotation-small", c.Model)
	assert.Equal(t, 4, c.MaxRetries)
	assert.Equal(t, 45*time.Second, cfg.Generator.NewAdapter(false).Timeout())
}

func TestLoadConfigEnv(t *testing.T) {
	path := writeConfig(t, "generator:\n  mode: http\n  url: https://file.example.com\n")
	t.Setenv("LK_GENERATOR_MODE", "mcp")
	t.Setenv("LK_GENERATOR_URL", "https://env.example.com/mcp")
	t.Setenv("LK_GENERATOR_TIMEOUT", "90")
	t.Setenv("LK_MASTER_KEY", "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.MasterKeyPassphrase)
	assert.Equal(t, 90*time.Second, cfg.Generator.Timeout)

	c, ok := cfg.Generator.NewClient().(*generator.MCPClient)
	require.True(t, ok)
	assert.Equal(t, "https://env.example.com/mcp", c.Endpoint)
	assert.Equal(t, generator.DefaultTool, c.Tool)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  string
	}{
		{name: "Unknown mode", yaml: "generator:\n  mode: grpc\n  url: x\n"},
		{name: "Mode without url", yaml: "generator:\n  mode: http\n"},
		{name: "Negative rate", yaml: "generator:\n  rate_per_minute: -1\n"},
		{name: "Bad yaml", yaml: "server: [\n"},
		{name: "Bad timeout env", yaml: "", env: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("LK_GENERATOR_TIMEOUT", tt.env)
			}
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOpenStorage(t *testing.T) {
	dir := t.TempDir()

	s, mk, err := OpenStorage(dir, "passphrase")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, mk)
	_, err = os.Stat(filepath.Join(dir, "master.key"))
	require.NoError(t, err)

	// The same passphrase reopens the key.
	_, _, err = OpenStorage(dir, "passphrase")
	require.NoError(t, err)

	// An existing key without a passphrase is refused.
	_, _, err = OpenStorage(dir, "")
	assert.Error(t, err)

	plain, mk, err := OpenStorage(t.TempDir(), "")
	require.NoError(t, err)
	assert.NotNil(t, plain)
	assert.Nil(t, mk)
}
