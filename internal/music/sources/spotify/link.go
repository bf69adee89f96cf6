package spotify

import (
	"fmt"
	"net/url"
	"strings"
)

// LinkKind is the catalog entity a link points at.
type LinkKind string

const (
	LinkTrack    LinkKind = "track"
	LinkAlbum    LinkKind = "album"
	LinkPlaylist LinkKind = "playlist"
	LinkArtist   LinkKind = "artist"
)

type Link struct {
	Kind LinkKind
	ID   string
}

// Single reports whether the entity resolves to exactly one track.
func (l Link) Single() bool {
	return l.Kind == LinkTrack
}

// ParseLink reads the entity kind and id from a catalog web link, such as
// https://open.spotify.com/intl-de/album/<id>?si=... Locale prefixes and
// query strings are ignored.
func ParseLink(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("parse link: %w", err)
	}

	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return Link{}, fmt.Errorf("link %q has no entity", raw)
	}

	kind := LinkKind(strings.ToLower(parts[0]))
	switch kind {
	case LinkTrack, LinkAlbum, LinkPlaylist, LinkArtist:
	default:
		return Link{}, fmt.Errorf("unsupported entity %q", parts[0])
	}

	id := parts[1]
	if id == "" {
		return Link{}, fmt.Errorf("link %q has no id", raw)
	}
	return Link{Kind: kind, ID: id}, nil
}
