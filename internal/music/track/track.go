// /internal/music/track/track.go
package track

import (
	"fmt"
	"strings"
	"time"
)

// searchPrefix marks a track whose URL has not been resolved yet and still
// holds a free-text search query.
const searchPrefix = "ytsearch:"

// Track is a unit of playback. URL is either a direct media page or a
// search marker (see SearchMarker). Duration is zero when unknown.
type Track struct {
	Title       string
	URL         string
	Duration    time.Duration
	RequestedBy string
}

func (t Track) IsDeferred() bool {
	return IsSearchMarker(t.URL)
}

func SearchMarker(query string) string {
	return searchPrefix + query
}

func IsSearchMarker(url string) bool {
	return strings.HasPrefix(url, searchPrefix)
}

// SearchQuery returns the query held by a marker, or "" when url is not one.
func SearchQuery(url string) string {
	if !IsSearchMarker(url) {
		return ""
	}
	return strings.TrimPrefix(url, searchPrefix)
}

// Result is what a resolver returns for a single user input.
type Result interface {
	isResult()
}

// Single is one resolved track.
type Single struct {
	Track Track
}

// List is a named collection of resolved tracks, never empty.
type List struct {
	Title  string
	Tracks []Track
}

// Miss means nothing playable was found. Title is the query or collection
// name to report back to the user.
type Miss struct {
	Title string
}

func (Single) isResult() {}
func (List) isResult()   {}
func (Miss) isResult()   {}

// Tracks flattens a result into a slice, empty for Miss.
func Tracks(r Result) []Track {
	switch v := r.(type) {
	case Single:
		return []Track{v.Track}
	case List:
		return v.Tracks
	}
	return nil
}

// FormatDuration renders d as m:ss or h:mm:ss, and "live" for zero.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "live"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
