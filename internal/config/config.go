// Package config loads daemon settings from a TOML file in the data directory
// and applies environment overrides on top.
//
// Precedence, lowest to highest: [DefaultConfig], config.toml, environment.
// The environment carries the connection settings (Discord application ID,
// Jellyfin URL, API key, username) so they can live outside the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/jellycord/internal/paths"
)

// Environment variable names read by [ApplyEnv].
const (
	EnvDiscordAppID   = "DISCORD_APPLICATION_ID"
	EnvJellyfinURL    = "JELLYFIN_URL"
	EnvJellyfinAPIKey = "JELLYFIN_API_KEY"
	EnvJellyfinUser   = "JELLYFIN_USERNAME"
)

// Default large image and hover text for the presence card.
const (
	DefaultLargeImage = "https://i.redd.it/uybguvnj1p821.png"
	DefaultLargeText  = "https://github.com/Radiicall/jellyfin-rpc"
)

// ErrMissingAppID is returned by [Config.Validate] when no Discord application
// ID is configured. The daemon cannot build a presence client without one.
var ErrMissingAppID = errors.New("discord application ID is not set")

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config is the top-level configuration.
type Config struct {
	Discord  DiscordConfig  `toml:"discord"`
	Jellyfin JellyfinConfig `toml:"jellyfin"`
	Display  DisplayConfig  `toml:"display"`
	Privacy  PrivacyConfig  `toml:"privacy"`
	Behavior BehaviorConfig `toml:"behavior"`
	Log      LogConfig      `toml:"log"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// AppID is the Discord application ID used in the IPC handshake.
	AppID string `toml:"app_id"`
}

// JellyfinConfig holds the media server connection settings.
type JellyfinConfig struct {
	// URL is the server base URL, e.g. "http://jellyfin.lan:8096".
	URL string `toml:"url"`
	// APIKey is an API key created in the Jellyfin dashboard.
	APIKey string `toml:"api_key"`
	// Username is the Jellyfin user whose playback is mirrored.
	Username string `toml:"username"`
	// RequestTimeoutSeconds bounds each session fetch attempt.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	// RetryMax is how many times a failed fetch is retried within one poll.
	RetryMax int `toml:"retry_max"`
}

// DisplayConfig holds presence card text and assets.
type DisplayConfig struct {
	// MovieDetails is the top line for movies. Supports {title}.
	MovieDetails string `toml:"movie_details"`
	// MovieState is the bottom line for movies. Supports {title}.
	MovieState string `toml:"movie_state"`
	// EpisodeDetails is the top line for episodes.
	// Supports {series}, {episode_title}, {season}, {episode}.
	EpisodeDetails string `toml:"episode_details"`
	// EpisodeState is the bottom line for episodes. Same variables as EpisodeDetails.
	EpisodeState string `toml:"episode_state"`
	// EpisodeNumbers is "raw" (S1E1) or "padded" (S01E01).
	EpisodeNumbers string `toml:"episode_numbers"`
	// Assets holds the large image settings.
	Assets AssetsConfig `toml:"assets"`
	// Buttons holds the optional link button.
	Buttons ButtonsConfig `toml:"buttons"`
}

// AssetsConfig holds the large image shown on the presence card.
type AssetsConfig struct {
	// LargeImage is an asset key or an https image URL.
	LargeImage string `toml:"large_image"`
	// LargeText is the hover text for the large image.
	LargeText string `toml:"large_text"`
}

// ButtonsConfig holds an optional custom button. Both fields must be set.
type ButtonsConfig struct {
	CustomButtonLabel string `toml:"custom_button_label,omitempty"`
	CustomButtonURL   string `toml:"custom_button_url,omitempty"`
}

// PrivacyConfig holds rules for hiding playback.
type PrivacyConfig struct {
	// Ignore lists doublestar glob patterns matched against the playing
	// item's library path. A match hides presence as if nothing were playing.
	Ignore []string `toml:"ignore"`
}

// BehaviorConfig holds poll loop timing, all in seconds.
type BehaviorConfig struct {
	// PollIntervalSeconds is the delay between poll cycles.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// ReconnectIntervalSeconds is the delay between Discord connect attempts.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// SettleSeconds is the pause after closing the Discord connection.
	SettleSeconds int `toml:"settle_seconds"`
	// CooldownSeconds is the extra pause after a content change teardown.
	CooldownSeconds int `toml:"cooldown_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the log file size that triggers rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() *Config {
	return &Config{
		Jellyfin: JellyfinConfig{
			RequestTimeoutSeconds: 10,
			RetryMax:              2,
		},
		Display: DisplayConfig{
			MovieDetails:   "{title}",
			MovieState:     "",
			EpisodeDetails: "Watching {series}",
			EpisodeState:   "S{season}E{episode} {episode_title}",
			EpisodeNumbers: "raw",
			Assets: AssetsConfig{
				LargeImage: DefaultLargeImage,
				LargeText:  DefaultLargeText,
			},
		},
		Privacy: PrivacyConfig{
			Ignore: []string{},
		},
		Behavior: BehaviorConfig{
			PollIntervalSeconds:      18,
			ReconnectIntervalSeconds: 10,
			SettleSeconds:            8,
			CooldownSeconds:          18,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// LookupFunc matches the signature of [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// Load reads dataDir/config.toml over the defaults, applies environment
// overrides through lookup, and validates the result. A missing file is not
// an error. A nil lookup skips environment overrides.
func Load(dataDir string, lookup LookupFunc) (*Config, error) {
	cfg, err := LoadFile(filepath.Join(dataDir, paths.ConfigFile))
	if err != nil {
		return nil, err
	}
	if lookup != nil {
		cfg.ApplyEnv(lookup)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes the TOML file at path over [DefaultConfig] without
// validating. Unknown keys are logged and otherwise ignored.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "key", key.String())
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings with non-empty environment values.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Discord.AppID, EnvDiscordAppID)
	set(&c.Jellyfin.URL, EnvJellyfinURL)
	set(&c.Jellyfin.APIKey, EnvJellyfinAPIKey)
	set(&c.Jellyfin.Username, EnvJellyfinUser)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all values are usable. Jellyfin connection fields are
// not checked: a bad URL or key only makes every probe come back idle.
func (c *Config) Validate() error {
	if c.Discord.AppID == "" {
		return ErrMissingAppID
	}
	if !isDigits(c.Discord.AppID) {
		return fmt.Errorf("invalid discord.app_id %q: must be a numeric application ID", c.Discord.AppID)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	switch c.Display.EpisodeNumbers {
	case "raw", "padded":
	default:
		return fmt.Errorf("invalid display.episode_numbers %q: must be raw or padded", c.Display.EpisodeNumbers)
	}
	if c.Display.MovieDetails == "" || c.Display.EpisodeDetails == "" {
		return fmt.Errorf("display.movie_details and display.episode_details must not be empty")
	}
	if (c.Display.Buttons.CustomButtonLabel == "") != (c.Display.Buttons.CustomButtonURL == "") {
		return fmt.Errorf("display.buttons: custom_button_label and custom_button_url must be set together")
	}

	for _, p := range c.Privacy.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid privacy.ignore pattern %q", p)
		}
	}

	b := c.Behavior
	for name, v := range map[string]int{
		"poll_interval_seconds":      b.PollIntervalSeconds,
		"reconnect_interval_seconds": b.ReconnectIntervalSeconds,
	} {
		if v <= 0 {
			return fmt.Errorf("behavior.%s must be > 0, got %d", name, v)
		}
	}
	if b.SettleSeconds < 0 || b.CooldownSeconds < 0 {
		return fmt.Errorf("behavior.settle_seconds and behavior.cooldown_seconds must be >= 0")
	}

	if c.Jellyfin.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("jellyfin.request_timeout_seconds must be > 0, got %d", c.Jellyfin.RequestTimeoutSeconds)
	}
	if c.Jellyfin.RetryMax < 0 {
		return fmt.Errorf("jellyfin.retry_max must be >= 0, got %d", c.Jellyfin.RetryMax)
	}
	return nil
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

// IsIgnored reports whether an item at libraryPath matches any ignore pattern.
// Items without a path are never ignored.
func (c *Config) IsIgnored(libraryPath string) bool {
	return MatchAny(c.Privacy.Ignore, libraryPath)
}

// MatchAny reports whether p matches one of patterns. Paths are normalized to
// forward slashes first so Windows library paths match the same globs.
func MatchAny(patterns []string, p string) bool {
	if p == "" {
		return false
	}
	p = filepath.ToSlash(strings.ReplaceAll(p, `\`, "/"))
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, p)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
