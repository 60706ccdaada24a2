package presence

import (
	"time"

	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/media"
)

// ///////////////////////////////////////////////
// Settings
// ///////////////////////////////////////////////

// Settings is everything the controller reads from configuration. A new value
// may be handed to [Controller.Update] at any time and takes effect at the
// start of the next cycle.
type Settings struct {
	// Username is the Jellyfin user whose playback is mirrored.
	Username string
	Format   media.Format

	LargeImage string
	LargeText  string
	// Button is optional; nil means no button.
	Button *discord.Button

	// Ignore holds glob patterns matched against the playing item's path.
	Ignore []string

	PollInterval      time.Duration
	ReconnectInterval time.Duration
	Settle            time.Duration
	Cooldown          time.Duration
}

// DefaultSettings returns settings equivalent to [config.DefaultConfig] with
// no username.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.DefaultConfig())
}

// SettingsFromConfig converts a loaded configuration into controller settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	d := cfg.Display
	s := Settings{
		Username: cfg.Jellyfin.Username,
		Format: media.Format{
			MovieDetails:   d.MovieDetails,
			MovieState:     d.MovieState,
			EpisodeDetails: d.EpisodeDetails,
			EpisodeState:   d.EpisodeState,
			Numbering:      media.Numbering(d.EpisodeNumbers),
		},
		LargeImage:        d.Assets.LargeImage,
		LargeText:         d.Assets.LargeText,
		Ignore:            append([]string(nil), cfg.Privacy.Ignore...),
		PollInterval:      seconds(cfg.Behavior.PollIntervalSeconds),
		ReconnectInterval: seconds(cfg.Behavior.ReconnectIntervalSeconds),
		Settle:            seconds(cfg.Behavior.SettleSeconds),
		Cooldown:          seconds(cfg.Behavior.CooldownSeconds),
	}
	if d.Buttons.CustomButtonLabel != "" && d.Buttons.CustomButtonURL != "" {
		s.Button = &discord.Button{Label: d.Buttons.CustomButtonLabel, URL: d.Buttons.CustomButtonURL}
	}
	return s
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// activity builds the payload pushed to Discord for p.
func (s Settings) activity(p media.Presentation, start time.Time) *discord.Activity {
	a := &discord.Activity{
		Details:    p.Details,
		State:      p.State,
		Timestamps: &discord.Timestamps{Start: start.Unix()},
	}
	if s.LargeImage != "" || s.LargeText != "" {
		a.Assets = &discord.Assets{LargeImage: s.LargeImage, LargeText: s.LargeText}
	}
	if s.Button != nil {
		a.Buttons = []discord.Button{*s.Button}
	}
	return a
}
