package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	rootpkg "tools.zach/dev/jellycord"
	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/media"
	"tools.zach/dev/jellycord/internal/presence"
)

// ///////////////////////////////////////////////
// resolveVersion Tests
// ///////////////////////////////////////////////

func TestResolveVersionWithLdflags(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Errorf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestResolveVersionDev(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "dev"
	got := resolveVersion()
	// Either "dev" (no VCS info in test binaries) or "dev+<hash>[.dirty]".
	if !strings.HasPrefix(got, "dev") {
		t.Errorf("resolveVersion() = %q, expected to start with 'dev'", got)
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir := defaultDataDir()
	if !strings.HasSuffix(dir, ".jellycord") {
		t.Errorf("defaultDataDir() = %q, want path ending in .jellycord", dir)
	}
}

// ///////////////////////////////////////////////
// PID Tests
// ///////////////////////////////////////////////

func TestPidToken(t *testing.T) {
	a, b := pidToken(), pidToken()
	if a == b {
		t.Errorf("pidToken() returned the same value twice: %q", a)
	}
	if len(a) != 16 {
		t.Errorf("pidToken() length = %d, want 16", len(a))
	}
}

func TestWritePID_FileContainsPID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}
	defer func() {
		_ = unlockFile(f)
		f.Close()
	}()

	// Read through the open handle; on Windows the lock blocks os.ReadFile.
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	data := make([]byte, 256)
	n, err := f.Read(data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	want := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if string(data[:n]) != want {
		t.Errorf("PID file content = %q, want %q", string(data[:n]), want)
	}
}

func TestRemovePID(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantExists bool
	}{
		{"matching token", "", false},
		{"mismatched token", "wrong-token", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dp := DataPaths{Root: t.TempDir()}
			token := pidToken()
			f, err := writePID(dp, token)
			if err != nil {
				t.Fatalf("writePID() error: %v", err)
			}

			remove := token
			if tt.token != "" {
				remove = tt.token
			}
			removePID(dp, remove, f)

			_, statErr := os.Stat(dp.PID())
			if exists := statErr == nil; exists != tt.wantExists {
				t.Errorf("PID file exists = %v, want %v", exists, tt.wantExists)
			}
		})
	}
}

func TestRemovePID_NilFile(t *testing.T) {
	removePID(DataPaths{Root: t.TempDir()}, "any-token", nil)
}

func TestCheckStalePID_NoFile(t *testing.T) {
	alive, pid := checkStalePID(DataPaths{Root: t.TempDir()})
	if alive || pid != 0 {
		t.Errorf("checkStalePID() = (%v, %d), want (false, 0)", alive, pid)
	}
}

func TestCheckStalePID_StalePID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	if err := os.WriteFile(dp.PID(), []byte("99999:staletoken"), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	alive, pid := checkStalePID(dp)
	if alive || pid != 0 {
		t.Errorf("checkStalePID() = (%v, %d), want (false, 0) for stale file", alive, pid)
	}
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("stale PID file should have been removed")
	}
}

// ///////////////////////////////////////////////
// Setup Tests
// ///////////////////////////////////////////////

func TestSeedConfig(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	if err := seedConfig(dp); err != nil {
		t.Fatalf("seedConfig: %v", err)
	}
	data, err := os.ReadFile(dp.Config())
	if err != nil {
		t.Fatalf("reading seeded config: %v", err)
	}
	if string(data) != string(rootpkg.DefaultConfigTOML) {
		t.Error("seeded config differs from embedded default")
	}

	custom := []byte("[discord]\napp_id = \"42\"\n")
	if err := os.WriteFile(dp.Config(), custom, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := seedConfig(dp); err != nil {
		t.Fatalf("second seedConfig: %v", err)
	}
	data, _ = os.ReadFile(dp.Config())
	if string(data) != string(custom) {
		t.Error("seedConfig overwrote an existing config")
	}
}

func TestNewJellyfinClient(t *testing.T) {
	var gotUA, gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		gotKey.Store(r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `[{"UserName":"alice","NowPlayingItem":{"Name":"Arrival","Type":"Movie"}}]`)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Jellyfin.URL = srv.URL + "/"
	cfg.Jellyfin.APIKey = "secret"

	snap, err := newJellyfinClient(cfg, "1.2.3").Probe(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if snap.Kind != media.KindMovie || snap.Title != "Arrival" {
		t.Errorf("snapshot = %v", snap)
	}
	if ua := gotUA.Load(); ua != "jellycord/1.2.3" {
		t.Errorf("User-Agent = %v, want jellycord/1.2.3", ua)
	}
	if key := gotKey.Load(); key != "secret" {
		t.Errorf("api_key = %v, want secret", key)
	}
}

// ///////////////////////////////////////////////
// Reload Tests
// ///////////////////////////////////////////////

type recordingChannel struct {
	activities []*discord.Activity
}

func (r *recordingChannel) Connect() error { return nil }
func (r *recordingChannel) Close() error   { return nil }
func (r *recordingChannel) SetActivity(a *discord.Activity) error {
	r.activities = append(r.activities, a)
	return nil
}

type staticProber struct {
	snap media.Snapshot
	user atomic.Value
}

func (s *staticProber) Probe(_ context.Context, username string) (media.Snapshot, error) {
	s.user.Store(username)
	return s.snap, nil
}

func TestReloadSettings(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	content := `
[discord]
app_id = "42"
[jellyfin]
username = "someone-else"
[display]
episode_numbers = "padded"
`
	if err := os.WriteFile(dp.Config(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ch := &recordingChannel{}
	prober := &staticProber{snap: media.Episode("Lost", "Pilot", 1, 1)}
	ctrl := presence.New(presence.Options{
		Channel:  ch,
		Prober:   prober,
		Settings: presence.DefaultSettings(),
		Sleep:    func(context.Context, time.Duration) error { return nil },
	})

	reloadSettings(dp, nil, "alice", ctrl)
	if _, err := ctrl.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if len(ch.activities) != 1 || ch.activities[0].State != "S01E01 Pilot" {
		t.Fatalf("activities = %+v, want padded episode numbers", ch.activities)
	}
	if u := prober.user.Load(); u != "alice" {
		t.Errorf("probed user = %v, want startup username alice", u)
	}
}

func TestReloadSettingsKeepsPreviousOnError(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	if err := os.WriteFile(dp.Config(), []byte("[display\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ch := &recordingChannel{}
	ctrl := presence.New(presence.Options{
		Channel:  ch,
		Prober:   &staticProber{snap: media.Episode("Lost", "Pilot", 1, 1)},
		Settings: func() presence.Settings { s := presence.DefaultSettings(); s.Username = "alice"; return s }(),
		Sleep:    func(context.Context, time.Duration) error { return nil },
	})

	reloadSettings(dp, nil, "alice", ctrl)
	if _, err := ctrl.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if ch.activities[0].State != "S1E1 Pilot" {
		t.Errorf("state = %q, want default raw numbering", ch.activities[0].State)
	}
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	w, err := config.NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	reloads := make(chan struct{}, 4)
	done := make(chan struct{})
	go func() {
		watchConfig(ctx, w, func() { reloads <- struct{}{} })
		close(done)
	}()

	if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config write")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchConfig did not return after cancel")
	}
}

// ///////////////////////////////////////////////
// run Tests
// ///////////////////////////////////////////////

func TestRunMissingAppID(t *testing.T) {
	t.Setenv(config.EnvDiscordAppID, "")
	dp := DataPaths{Root: filepath.Join(t.TempDir(), "data")}

	if code := run(dp); code != 1 {
		t.Errorf("run() = %d, want 1 without an application ID", code)
	}
	if _, err := os.Stat(dp.Config()); err != nil {
		t.Errorf("default config not seeded: %v", err)
	}
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("PID file left behind after startup failure")
	}
}
