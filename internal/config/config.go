// Package config loads syncbridge settings from YAML and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/syncbridge/internal/syncable"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// StoreConfig holds record store settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OutboxConfig holds the outbound queue settings.
type OutboxConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig holds propagation settings.
type SyncConfig struct {
	// DeviceID is the encoded identifier stamped on outbound records.
	DeviceID string `yaml:"device_id"`
	// Policy is "strict" or "tolerant".
	Policy string `yaml:"policy"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// Config is the top-level configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Outbox  OutboxConfig  `yaml:"outbox"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	dir := DataDir()
	return &Config{
		Store:  StoreConfig{Path: filepath.Join(dir, "records.db")},
		Outbox: OutboxConfig{Path: filepath.Join(dir, "outbox.db")},
		Sync:   SyncConfig{DeviceID: "0", Policy: "strict"},
		Logging: LoggingConfig{
			Level:  "warn",
			Output: "stderr",
			File:   filepath.Join(dir, "syncbridge.log"),
		},
	}
}

// DataDir is the directory holding the default databases.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syncbridge"
	}
	return filepath.Join(home, ".syncbridge")
}

// Load reads YAML from r on top of the defaults. A nil reader or empty
// input yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// ApplyEnv overrides settings from SYNCBRIDGE_* variables using lookup,
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("SYNCBRIDGE_DB", &c.Store.Path)
	set("SYNCBRIDGE_OUTBOX", &c.Outbox.Path)
	set("SYNCBRIDGE_DEVICE_ID", &c.Sync.DeviceID)
	set("SYNCBRIDGE_POLICY", &c.Sync.Policy)
	set("SYNCBRIDGE_LOG_LEVEL", &c.Logging.Level)
	set("SYNCBRIDGE_LOG_OUTPUT", &c.Logging.Output)
}

// Validate checks the values that are parsed later.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Outbox.Path == "" {
		return fmt.Errorf("outbox.path is required")
	}
	if _, err := c.DeviceID(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// DeviceID decodes sync.device_id. Empty means no device identifier.
func (c *Config) DeviceID() (syncid.ID, error) {
	if strings.TrimSpace(c.Sync.DeviceID) == "" {
		return nil, nil
	}
	id, err := syncid.DecodeStrict(c.Sync.DeviceID, 0)
	if err != nil {
		return nil, fmt.Errorf("sync.device_id: %w", err)
	}
	return id, nil
}

// Policy parses sync.policy.
func (c *Config) Policy() (syncable.Policy, error) {
	p, err := syncable.ParsePolicy(strings.ToLower(c.Sync.Policy))
	if err != nil {
		return p, fmt.Errorf("sync.policy: %w", err)
	}
	return p, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a text logger from cfg. The returned closer releases the
// log file, if one was opened.
func NewLogger(cfg LoggingConfig) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer
	var closer io.Closer = nopCloser{}
	switch strings.ToLower(cfg.Output) {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	case "none":
		output = io.Discard
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output, closer = f, f
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}
