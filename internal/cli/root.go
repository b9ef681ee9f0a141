// Package cli implements the syncbridge CLI commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/config"
	"github.com/rcliao/syncbridge/internal/entity"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncable"
	"github.com/rcliao/syncbridge/internal/synclog"
)

var (
	configPath string
	dbPath     string
	outboxPath string
	deviceFlag string
	policyFlag string
	dryRun     bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "syncbridge",
	Short: "Local record store that mirrors changes to a sync log",
	Long: "Bookmarks and history in a local SQLite store. Every change to a synced record " +
		"is queued in an outbox for the sync service before it is committed locally.",
	SilenceUsage: true,
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default: $SYNCBRIDGE_CONFIG or ~/.syncbridge/config.yaml)")
	pf.StringVarP(&dbPath, "db", "d", "", "Record database path (overrides store.path)")
	pf.StringVar(&outboxPath, "outbox", "", "Outbox database path (overrides outbox.path)")
	pf.StringVar(&deviceFlag, "device-id", "", "Encoded device identifier stamped on outbound records")
	pf.StringVar(&policyFlag, "policy", "", "Propagation failure policy: strict or tolerant")
	pf.BoolVar(&dryRun, "dry-run", false, "Write outbound change records to stderr instead of the outbox")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("SYNCBRIDGE_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(config.DataDir(), "config.yaml")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(getConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if outboxPath != "" {
		cfg.Outbox.Path = outboxPath
	}
	if deviceFlag != "" {
		cfg.Sync.DeviceID = deviceFlag
	}
	if policyFlag != "" {
		cfg.Sync.Policy = policyFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is everything a command needs, opened from config.
type env struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	sc         *store.Context
	outbox     *synclog.Outbox
	propagator *syncable.Propagator
	closers    []io.Closer
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	s, err := store.Open(cfg.Store.Path, store.WithLogger(logger), store.WithKinds(entity.KindNames()...))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.store = s
	e.closers = append(e.closers, s)
	e.sc = s.NewContext("cli")
	e.closers = append(e.closers, e.sc)

	var log syncable.Log
	if dryRun {
		log = synclog.NewWriterLog(os.Stderr)
	} else {
		o, err := synclog.OpenOutbox(cfg.Outbox.Path, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.outbox = o
		e.closers = append(e.closers, o)
		log = o
	}

	deviceID, _ := cfg.DeviceID()
	policy, _ := cfg.Policy()
	e.propagator = syncable.NewPropagator(log,
		syncable.WithDeviceID(deviceID),
		syncable.WithPolicy(policy),
		syncable.WithLogger(logger),
	)
	return e, nil
}

// Close releases resources in reverse order of opening.
func (e *env) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func mustOpenEnv() *env {
	e, err := openEnv()
	if err != nil {
		exitErr("open", err)
	}
	return e
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
