// Package main implements the jellycord daemon, which polls a Jellyfin server
// for what one user is watching and mirrors it into Discord Rich Presence.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	rootpkg "tools.zach/dev/jellycord"
	"tools.zach/dev/jellycord/internal/atomicfile"
	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/jellyfin"
	"tools.zach/dev/jellycord/internal/logger"
	"tools.zach/dev/jellycord/internal/paths"
	"tools.zach/dev/jellycord/internal/presence"
	"tools.zach/dev/jellycord/internal/update"
)

// DataPaths aliases [paths.DataDir] for the daemon's path helpers.
type DataPaths = paths.DataDir

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=0.3.0" ./cmd/jellycord
//
// Without ldflags, resolveVersion derives a "dev+<hash>" tag from the VCS
// info the Go toolchain embeds.
var version = "dev"

// resolveVersion returns the build version string.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token that proves ownership
// of the PID file, so [removePID] only deletes a file this instance wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID opens the PID file, takes the advisory lock, and writes
// "PID:TOKEN". The returned file must stay open while the daemon runs.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the lock and removes the PID file if it still carries
// token.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another instance holds the PID file lock.
// A file whose lock can be taken belongs to a dead instance and is removed.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Setup Helpers
// ///////////////////////////////////////////////

// defaultDataDir returns ~/.jellycord, or ./.jellycord when the home
// directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// seedConfig writes the embedded default config on first run.
func seedConfig(dp DataPaths) error {
	created, err := atomicfile.Seed(dp.Config(), rootpkg.DefaultConfigTOML, 0o644)
	if err != nil {
		return err
	}
	if created {
		slog.Info("wrote default config", "path", dp.Config())
	}
	return nil
}

// newJellyfinClient builds the session client for cfg.
func newJellyfinClient(cfg *config.Config, ver string) *jellyfin.Client {
	return jellyfin.NewClient(jellyfin.Options{
		URL:       cfg.Jellyfin.URL,
		APIKey:    cfg.Jellyfin.APIKey,
		Timeout:   time.Duration(cfg.Jellyfin.RequestTimeoutSeconds) * time.Second,
		RetryMax:  cfg.Jellyfin.RetryMax,
		UserAgent: paths.BinaryName + "/" + ver,
	})
}

// reloadSettings re-reads the config and queues the display, privacy, and
// behavior settings on ctrl. Connection settings keep their startup values.
// A config that fails to load leaves the running settings untouched.
func reloadSettings(dp DataPaths, lookup config.LookupFunc, username string, ctrl *presence.Controller) {
	cfg, err := config.Load(dp.Root, lookup)
	if err != nil {
		slog.Warn("config reload failed, keeping previous settings", "error", err)
		return
	}
	s := presence.SettingsFromConfig(cfg)
	s.Username = username
	ctrl.Update(s)
	slog.Info("config reloaded", "path", dp.Config())
}

// watchConfig reloads settings on every config file change until ctx is done.
func watchConfig(ctx context.Context, w *config.Watcher, reload func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Events():
			reload()
		}
	}
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, PID file, and logs")
	flag.Parse()

	os.Exit(run(DataPaths{Root: *dataDir}))
}

// run starts the daemon and returns the process exit code.
func run(dp DataPaths) int {
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		return 1
	}

	if alive, pid := checkStalePID(dp); alive {
		fmt.Fprintf(os.Stderr, "jellycord already running (pid %d)\n", pid)
		return 1
	}

	if err := seedConfig(dp); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, err := config.Load(dp.Root, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		if errors.Is(err, config.ErrMissingAppID) {
			fmt.Fprintf(os.Stderr, "set %s or discord.app_id in %s\n", config.EnvDiscordAppID, dp.Config())
		}
		return 1
	}

	log, logCloser, err := logger.NewLogger(logger.Options{
		Path:         dp.Log(),
		Level:        logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB:    cfg.Log.MaxSizeMB,
		Console:      os.Stderr,
		ConsoleLevel: logger.LevelWarn,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("jellycord starting", "version", ver, "data_dir", dp.Root,
		"jellyfin_url", cfg.Jellyfin.URL, "username", cfg.Jellyfin.Username)
	if cfg.Jellyfin.Username == "" {
		slog.Warn("no Jellyfin username configured, presence stays idle", "env", config.EnvJellyfinUser)
	}

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		return 1
	}
	defer removePID(dp, token, pidFile)

	ctx, stop := shutdownContext(context.Background())
	defer stop()

	// Background tasks stop with ctx and are joined before the PID file goes.
	var bg conc.WaitGroup
	defer func() {
		stop()
		if r := bg.WaitAndRecover(); r != nil {
			slog.Error("background task panic", "error", r.AsError())
		}
	}()

	bg.Go(func() { update.Check(ctx, ver) })

	ctrl := presence.New(presence.Options{
		Channel:  discord.NewClient(cfg.Discord.AppID),
		Prober:   newJellyfinClient(cfg, ver),
		Settings: presence.SettingsFromConfig(cfg),
		Out:      os.Stdout,
	})

	watcher, err := config.NewWatcher(dp.Config())
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		defer watcher.Close()
		if watcher.Polling() {
			slog.Info("using polling mode for config watching")
		}
		username := cfg.Jellyfin.Username
		bg.Go(func() {
			watchConfig(ctx, watcher, func() {
				reloadSettings(dp, os.LookupEnv, username, ctrl)
			})
		})
	}

	err = ctrl.Run(ctx)
	var fatal *presence.FatalError
	switch {
	case errors.As(err, &fatal):
		logger.Fail(log, "presence channel failed", "op", fatal.Op, "error", fatal.Err)
		return 1
	case err != nil && ctx.Err() == nil:
		slog.Error("presence loop stopped", "error", err)
		return 1
	}
	slog.Info("jellycord stopped")
	return 0
}
