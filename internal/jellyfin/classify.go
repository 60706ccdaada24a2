package jellyfin

import "tools.zach/dev/jellycord/internal/media"

// Jellyfin item types the probe understands.
const (
	TypeEpisode = "Episode"
	TypeMovie   = "Movie"
)

// Classify picks the first session owned by username that has a playing item
// and converts that item to a snapshot. Usernames compare exactly. Any other
// item type, or an item missing a required field, yields [media.Idle].
func Classify(sessions []Session, username string) media.Snapshot {
	if username == "" {
		return media.Idle()
	}
	for _, s := range sessions {
		if s.UserName != username || s.NowPlayingItem == nil {
			continue
		}
		return classifyItem(s.NowPlayingItem)
	}
	return media.Idle()
}

// classifyItem maps a single playing item.
func classifyItem(item *NowPlayingItem) media.Snapshot {
	switch item.Type {
	case TypeEpisode:
		if item.ParentIndexNumber == nil || item.IndexNumber == nil {
			return media.Idle()
		}
		return media.Episode(item.SeriesName, item.Name, *item.ParentIndexNumber, *item.IndexNumber).
			WithPath(item.Path)
	case TypeMovie:
		return media.Movie(item.Name).WithPath(item.Path)
	default:
		return media.Idle()
	}
}
