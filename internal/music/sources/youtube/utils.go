package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// VideoID extracts the 11 character id from any of the common link shapes:
// watch?v=, youtu.be/, /shorts/, /live/ and /embed/.
func VideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}

	var id string
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"/shorts/", "/live/", "/embed/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id = strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
				break
			}
		}
	}

	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("no video id in %q", raw)
	}
	return id, nil
}

// WatchURL is the canonical page for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// CleanVideoURL drops tracking and playlist parameters, keeping only the
// video itself. Inputs without a recognisable id are returned unchanged.
func CleanVideoURL(raw string) string {
	id, err := VideoID(raw)
	if err != nil {
		return raw
	}
	return WatchURL(id)
}
