// /internal/music/sources/youtube/youtube.go
package youtube

import (
	"context"
	"fmt"
	"net/http"

	kkdai "github.com/kkdai/youtube/v2"

	"github.com/keshon/songbird/internal/music/track"
)

// Metadata reads video details straight from the platform.
type Metadata struct {
	client *kkdai.Client
}

func NewMetadata(httpClient *http.Client) *Metadata {
	return &Metadata{client: &kkdai.Client{HTTPClient: httpClient}}
}

// Client exposes the underlying library client for stream opening.
func (m *Metadata) Client() *kkdai.Client {
	return m.client
}

// Video returns a track with the canonical watch URL, title and duration.
func (m *Metadata) Video(ctx context.Context, link string) (track.Track, error) {
	id, err := VideoID(link)
	if err != nil {
		return track.Track{}, err
	}
	v, err := m.client.GetVideoContext(ctx, id)
	if err != nil {
		return track.Track{}, fmt.Errorf("video %s: %w", id, err)
	}
	return track.Track{
		Title:    v.Title,
		URL:      WatchURL(id),
		Duration: v.Duration,
	}, nil
}
