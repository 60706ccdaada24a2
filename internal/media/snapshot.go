// Package media models what a Jellyfin user is currently watching and turns
// it into the two lines of text shown on the presence card.
//
// A [Snapshot] is a tagged variant: [KindIdle], [KindMovie], or [KindEpisode].
// The constructors never produce a partially filled variant; a movie or
// episode missing a required field collapses to [Idle].
package media

import "fmt"

// ///////////////////////////////////////////////
// Kind
// ///////////////////////////////////////////////

// Kind identifies which variant a [Snapshot] holds.
type Kind int

const (
	// KindIdle means nothing qualifying is playing for the configured user.
	KindIdle Kind = iota
	// KindMovie is a feature film.
	KindMovie
	// KindEpisode is a single episode of a series.
	KindEpisode
)

// String returns the lowercase variant name.
func (k Kind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindEpisode:
		return "episode"
	default:
		return "idle"
	}
}

// ///////////////////////////////////////////////
// Snapshot
// ///////////////////////////////////////////////

// Snapshot is the normalized result of one probe of the session list.
// Only the fields belonging to Kind are meaningful.
type Snapshot struct {
	Kind Kind

	// Title is the movie title (KindMovie).
	Title string

	// Series, EpisodeTitle, Season and Episode describe a KindEpisode.
	Series       string
	EpisodeTitle string
	Season       int
	Episode      int

	// Path is the item's library file path, if the server reported one.
	// It is only consulted by ignore rules and never displayed.
	Path string
}

// Idle returns the empty snapshot.
func Idle() Snapshot {
	return Snapshot{Kind: KindIdle}
}

// Movie returns a movie snapshot, or [Idle] when title is empty.
func Movie(title string) Snapshot {
	if title == "" {
		return Idle()
	}
	return Snapshot{Kind: KindMovie, Title: title}
}

// Episode returns an episode snapshot, or [Idle] when series or title is empty.
// Season and episode numbers are copied as given.
func Episode(series, title string, season, episode int) Snapshot {
	if series == "" || title == "" {
		return Idle()
	}
	return Snapshot{
		Kind:         KindEpisode,
		Series:       series,
		EpisodeTitle: title,
		Season:       season,
		Episode:      episode,
	}
}

// WithPath returns a copy of s carrying the library path p.
func (s Snapshot) WithPath(p string) Snapshot {
	if s.Kind == KindIdle {
		return s
	}
	s.Path = p
	return s
}

// IsIdle reports whether s is the idle variant.
func (s Snapshot) IsIdle() bool {
	return s.Kind == KindIdle
}

// String implements [fmt.Stringer] for log output.
func (s Snapshot) String() string {
	switch s.Kind {
	case KindMovie:
		return fmt.Sprintf("movie %q", s.Title)
	case KindEpisode:
		return fmt.Sprintf("episode %q S%dE%d %q", s.Series, s.Season, s.Episode, s.EpisodeTitle)
	default:
		return "idle"
	}
}
