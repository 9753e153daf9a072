package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/mcp-bridge/server"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimeoutMs       = 30000
	defaultShutdownGraceMs = 2000
	defaultLogFormat       = "console"
)

// Config represents bridge configuration
type Config struct {
	Command         string       `yaml:"command"`
	Dir             string       `yaml:"dir"`
	Env             []string     `yaml:"env"`
	Addr            string       `yaml:"addr"`
	Path            string       `yaml:"path"`
	TimeoutMs       int          `yaml:"timeoutMs"`
	ShutdownGraceMs int          `yaml:"shutdownGraceMs"`
	LogLevel        string       `yaml:"logLevel"`
	LogFormat       string       `yaml:"logFormat"`
	Cors            *server.Cors `yaml:"cors"`
}

// LoadConfig downloads a YAML config from URL, expanding ${VAR} references before decoding
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	expanded := os.ExpandEnv(string(data))
	ret := &Config{}
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(ret); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	return ret, nil
}

// Apply overrides config with every option set on the command line
func (c *Config) Apply(options *Options) {
	if options.Args.Command != "" {
		c.Command = options.Args.Command
	}
	if options.Dir != "" {
		c.Dir = options.Dir
	}
	// later entries win for duplicate keys
	c.Env = append(c.Env, options.Env...)
	if options.Addr != "" {
		c.Addr = options.Addr
	}
	if options.Path != "" {
		c.Path = options.Path
	}
	if options.Timeout != 0 {
		c.TimeoutMs = options.Timeout
	}
	if options.LogLevel != "" {
		c.LogLevel = options.LogLevel
	}
	if options.LogFormat != "" {
		c.LogFormat = options.LogFormat
	}
	if len(options.Origins) > 0 {
		if c.Cors == nil {
			c.Cors = server.DefaultCors()
		}
		c.Cors.AllowOrigins = options.Origins
	}
}

// Init fills in defaults
func (c *Config) Init() {
	if c.Addr == "" {
		c.Addr = server.DefaultAddr
	}
	if c.Path == "" {
		c.Path = server.DefaultPath
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = defaultTimeoutMs
	}
	if c.ShutdownGraceMs == 0 {
		c.ShutdownGraceMs = defaultShutdownGraceMs
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
}

// Validate checks if config is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return errors.New("command was empty")
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("invalid timeout: %v", c.TimeoutMs)
	}
	for _, pair := range c.Env {
		if !strings.Contains(pair, "=") || strings.HasPrefix(pair, "=") {
			return fmt.Errorf("invalid env entry %q: expected KEY=VALUE", pair)
		}
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (expected console or json)", c.LogFormat)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Timeout returns the per request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ShutdownGrace returns how long the subprocess may take to exit after stdin is closed
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMs) * time.Millisecond
}

// YAML renders the effective config
func (c *Config) YAML() string {
	buf := &bytes.Buffer{}
	encoder := yaml.NewEncoder(buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return err.Error()
	}
	return buf.String()
}
