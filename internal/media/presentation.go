package media

import (
	"fmt"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// Presentation
// ///////////////////////////////////////////////

// Presentation is the display-ready text for a playing item. Details is the
// top line of the presence card, State the bottom line (empty for movies by
// default).
type Presentation struct {
	Details string
	State   string
}

// Numbering controls how season and episode numbers are rendered.
type Numbering string

const (
	// NumberingRaw renders numbers as given: S1E1.
	NumberingRaw Numbering = "raw"
	// NumberingPadded zero-pads to two digits: S01E01.
	NumberingPadded Numbering = "padded"
)

// Format holds the templates used by [Present].
//
// Movie templates accept {title}. Episode templates accept {series},
// {episode_title}, {season}, and {episode}.
type Format struct {
	MovieDetails   string
	MovieState     string
	EpisodeDetails string
	EpisodeState   string
	Numbering      Numbering
}

// DefaultFormat returns the built-in templates:
//
//	movie:   details "{title}"
//	episode: details "Watching {series}", state "S{season}E{episode} {episode_title}"
func DefaultFormat() Format {
	return Format{
		MovieDetails:   "{title}",
		MovieState:     "",
		EpisodeDetails: "Watching {series}",
		EpisodeState:   "S{season}E{episode} {episode_title}",
		Numbering:      NumberingRaw,
	}
}

// Present derives the presentation for s. The second result is false for an
// idle snapshot, which has no presentation. Present is pure: equal inputs
// always yield identical text.
func Present(s Snapshot, f Format) (Presentation, bool) {
	switch s.Kind {
	case KindMovie:
		r := strings.NewReplacer("{title}", s.Title)
		return Presentation{
			Details: r.Replace(f.MovieDetails),
			State:   r.Replace(f.MovieState),
		}, true
	case KindEpisode:
		r := strings.NewReplacer(
			"{series}", s.Series,
			"{episode_title}", s.EpisodeTitle,
			"{season}", formatNumber(s.Season, f.Numbering),
			"{episode}", formatNumber(s.Episode, f.Numbering),
		)
		return Presentation{
			Details: r.Replace(f.EpisodeDetails),
			State:   r.Replace(f.EpisodeState),
		}, true
	default:
		return Presentation{}, false
	}
}

// formatNumber renders a season or episode number.
func formatNumber(n int, mode Numbering) string {
	if mode == NumberingPadded {
		return fmt.Sprintf("%02d", n)
	}
	return strconv.Itoa(n)
}
