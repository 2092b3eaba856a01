// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the server configuration from YAML, dotenv files and
// the process environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener and the advertised agent card.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RPCPath         string        `yaml:"rpc_path"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	Version         string        `yaml:"version"`
	URL             string        `yaml:"url"`
	Streaming       bool          `yaml:"streaming"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// DSN is the data source name of the sqlite, postgres and mysql backends.
	DSN string `yaml:"dsn"`
	// Dir is the directory of the file backend.
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
	Table string `yaml:"table"`
}

// RuntimeConfig tunes task execution.
type RuntimeConfig struct {
	QueueCapacity        int           `yaml:"queue_capacity"`
	StrictArtifactAppend bool          `yaml:"strict_artifact_append"`
	EchoDelay            time.Duration `yaml:"echo_delay"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RPCPath:         "/",
			Name:            "echo-agent",
			Description:     "Echoes every message back as an artifact",
			Version:         "1.0.0",
			URL:             "http://localhost:8080/",
			Streaming:       true,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Table:   "tasks",
		},
		Runtime: RuntimeConfig{
			QueueCapacity: 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr:      ":9090",
			Namespace: "a2a",
		},
	}
}

// Load reads path over the defaults. Variables from envFiles are loaded into
// the environment first without overriding variables already set; missing env
// files are skipped. An empty path yields the defaults.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-(.*?)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// ExpandEnv replaces ${VAR} and ${VAR:-default} with values from the environment.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
	return envBraced.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envBraced.FindStringSubmatch(match)[1])
	})
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if !strings.HasPrefix(c.Server.RPCPath, "/") {
		errs = append(errs, fmt.Errorf("server.rpc_path %q must start with /", c.Server.RPCPath))
	}
	if c.Server.Name == "" {
		errs = append(errs, errors.New("server.name is required"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout cannot be negative"))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required by the file backend"))
		}
	case BackendSQLite, BackendPostgres, BackendMySQL:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required by the %s backend", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	if c.Store.Watch && c.Store.Backend != BackendFile {
		errs = append(errs, errors.New("store.watch is only supported by the file backend"))
	}

	if c.Runtime.QueueCapacity <= 0 {
		errs = append(errs, errors.New("runtime.queue_capacity must be positive"))
	}
	if c.Runtime.EchoDelay < 0 {
		errs = append(errs, errors.New("runtime.echo_delay cannot be negative"))
	}

	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q", l.Level)
	}
	return level, nil
}

// NewLogger returns a logger writing to w in the configured format and level.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
