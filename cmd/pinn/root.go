package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maruel/pinn/internal/cloudsync"
	"github.com/maruel/pinn/internal/storage"
)

var (
	profileDir string
	verbose    bool

	app struct {
		cfg    *storage.AppConfig
		kv     *storage.KVStore
		picker *terminalPicker
		dirs   *storage.DirManager
		store  *storage.FileStore
		notes  *storage.NoteService
		engine *cloudsync.Engine
	}
)

var rootCmd = &cobra.Command{
	Use:   "pinn",
	Short: "Local-first notes with best-effort cloud sync",
	Long: `Pinn keeps notes, folders and flows as pretty-printed JSON files in a
directory you choose, falls back to a per-profile key-value store when no
directory is configured, and syncs both against a remote JSON document store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func setup() error {
	if profileDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("failed to locate config directory: %w", err)
		}
		profileDir = filepath.Join(base, "pinn")
	}
	cfg, err := storage.LoadAppConfig(profileDir)
	if err != nil {
		return err
	}
	app.cfg = cfg

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	kv, err := storage.NewKVStore(profileDir)
	if err != nil {
		return err
	}
	app.kv = kv
	app.picker = &terminalPicker{}
	app.dirs = storage.NewDirManager(kv, profileDir, app.picker)
	app.store = storage.NewFileStore(app.dirs, kv)
	app.notes = storage.NewNoteService(app.store)

	deviceID, err := kv.DeviceID()
	if err != nil {
		return err
	}
	app.engine = cloudsync.NewEngine(app.store, deviceID)
	return nil
}

// snapshot commits the managed directory's current state when history
// snapshots are enabled. Never fatal.
func snapshot(message string) {
	if !app.cfg.Snapshots {
		return
	}
	h := app.dirs.Current()
	if h == nil {
		return
	}
	s, err := storage.OpenSnapshot(h.Path)
	if err != nil {
		slog.Warn("Snapshot unavailable", "err", err)
		return
	}
	if err := s.Commit(message); err != nil {
		slog.Warn("Snapshot commit failed", "err", err)
	}
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileDir, "profile", "", "profile directory (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
