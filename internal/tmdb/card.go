package tmdb

import "regexp"

// MovieCard is the normalized external movie representation surfaced to
// clients. Built per request, never persisted.
type MovieCard struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	PosterURL   string   `json:"poster,omitempty"`
	Overview    string   `json:"overview"`
	Rating      float64  `json:"rating,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	Genres      []string `json:"genres"`
	WatchLink   string   `json:"watch_link,omitempty"`
	SourceURL   string   `json:"tmdb_url"`
}

var blockedPattern = regexp.MustCompile(`(?i)\b(sex|porn|xxx|erotic)\b`)

// IsBlocked reports whether a title/overview pair trips the content filter.
func IsBlocked(title, overview string) bool {
	return blockedPattern.MatchString(title + " " + overview)
}
