package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-bridge/server"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("BRIDGE_TEST_TOKEN", "s3cret")
	var testCases = []struct {
		description string
		content     string
		expect      *Config
		expectErr   bool
	}{
		{
			description: "full config",
			content: `command: node build/index.js --stdio
dir: /srv/mcp
env:
  - API_TOKEN=${BRIDGE_TEST_TOKEN}
addr: 0.0.0.0:4000
path: /rpc
timeoutMs: 60000
shutdownGraceMs: 500
logLevel: debug
logFormat: json
cors:
  allowOrigins:
    - http://localhost:6274
`,
			expect: &Config{
				Command:         "node build/index.js --stdio",
				Dir:             "/srv/mcp",
				Env:             []string{"API_TOKEN=s3cret"},
				Addr:            "0.0.0.0:4000",
				Path:            "/rpc",
				TimeoutMs:       60000,
				ShutdownGraceMs: 500,
				LogLevel:        "debug",
				LogFormat:       "json",
				Cors:            &server.Cors{AllowOrigins: []string{"http://localhost:6274"}},
			},
		},
		{
			description: "empty file",
			content:     "",
			expect:      &Config{},
		},
		{
			description: "unknown field",
			content:     "comand: cat\n",
			expectErr:   true,
		},
		{
			description: "malformed yaml",
			content:     "command: [cat\n",
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		location := filepath.Join(t.TempDir(), "bridge.yaml")
		require.NoError(t, os.WriteFile(location, []byte(testCase.content), 0o644), testCase.description)
		config, err := LoadConfig(context.Background(), location)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, config, testCase.description)
	}
}

func TestConfig_Apply(t *testing.T) {
	config := &Config{Command: "file-command", Addr: "0.0.0.0:4000", TimeoutMs: 1000, Env: []string{"A=file"}}
	options := &Options{Timeout: 2500, Env: []string{"A=flag"}, Origins: []string{"http://localhost:6274"}}
	options.Args.Command = "flag-command"
	config.Apply(options)
	config.Init()

	assert.Equal(t, "flag-command", config.Command)
	assert.Equal(t, "0.0.0.0:4000", config.Addr)
	assert.Equal(t, 2500*time.Millisecond, config.Timeout())
	assert.Equal(t, []string{"A=file", "A=flag"}, config.Env)
	assert.Equal(t, []string{"http://localhost:6274"}, config.Cors.AllowOrigins)
	assert.Equal(t, server.DefaultPath, config.Path)
	assert.Equal(t, "console", config.LogFormat)
	assert.Equal(t, 2*time.Second, config.ShutdownGrace())
	assert.NoError(t, config.Validate())
	assert.Contains(t, config.YAML(), "command: flag-command")
}

func TestConfig_Defaults(t *testing.T) {
	config := &Config{Command: "cat"}
	config.Init()
	assert.Equal(t, "127.0.0.1:3001", config.Addr)
	assert.Equal(t, "/mcp", config.Path)
	assert.Equal(t, 30*time.Second, config.Timeout())
}
