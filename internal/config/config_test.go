package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/syncbridge/internal/syncable"
	"github.com/rcliao/syncbridge/internal/syncid"
)

func TestLoadPartial(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
store:
  path: /tmp/records.db
sync:
  device_id: "3,1"
  policy: tolerant
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/records.db", cfg.Store.Path)
	assert.Equal(t, Default().Outbox.Path, cfg.Outbox.Path, "unset keys keep defaults")
	assert.Equal(t, "warn", cfg.Logging.Level)

	id, err := cfg.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, syncid.ID{3, 1}, id)

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, syncable.PolicyTolerant, p)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEmptyAndMissing(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(strings.NewReader("store: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"SYNCBRIDGE_DB":        "/data/r.db",
		"SYNCBRIDGE_POLICY":    "tolerant",
		"SYNCBRIDGE_DEVICE_ID": "",
	}
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "/data/r.db", cfg.Store.Path)
	assert.Equal(t, "tolerant", cfg.Sync.Policy)
	assert.Equal(t, "0", cfg.Sync.DeviceID, "empty values are ignored")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Sync.DeviceID = "1,x"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Sync.Policy = "lenient"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Sync.DeviceID = ""
	require.NoError(t, cfg.Validate())
	id, err := cfg.DeviceID()
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestNewLogger(t *testing.T) {
	logger, closer, err := NewLogger(LoggingConfig{Level: "error", Output: "none"})
	require.NoError(t, err)
	defer closer.Close()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))

	file := filepath.Join(t.TempDir(), "logs", "sb.log")
	logger, closer, err = NewLogger(LoggingConfig{Level: "info", Output: "file", File: file})
	require.NoError(t, err)
	logger.Info("hello", "k", "v")
	require.NoError(t, closer.Close())
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello k=v")

	_, _, err = NewLogger(LoggingConfig{Level: "info", Output: "file"})
	assert.Error(t, err)
	_, _, err = NewLogger(LoggingConfig{Level: "info", Output: "syslog"})
	assert.Error(t, err)
}
