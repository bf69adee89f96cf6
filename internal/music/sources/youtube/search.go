// /internal/music/sources/youtube/search.go
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/music/track"
)

// ErrNoMatch means a search finished cleanly with zero usable results.
var ErrNoMatch = errors.New("no video found for the given query")

// Searcher returns the single best match for a query.
type Searcher interface {
	SearchFirst(ctx context.Context, query string) (track.Track, error)
}

// VideoSearch queries the regular video index.
type VideoSearch struct {
	client *ytsearch.Client
}

func NewVideoSearch(httpClient *http.Client) *VideoSearch {
	return &VideoSearch{client: ytsearch.NewClient(httpClient)}
}

func (s *VideoSearch) SearchFirst(ctx context.Context, query string) (track.Track, error) {
	res, err := s.client.Search(ctx, query)
	if err != nil {
		return track.Track{}, fmt.Errorf("video search: %w", err)
	}
	for _, r := range res.Results {
		if r.VideoID == "" {
			continue
		}
		return track.Track{Title: r.Title, URL: WatchURL(r.VideoID)}, nil
	}
	return track.Track{}, ErrNoMatch
}

// MusicSearch queries the music catalog, which ranks studio recordings
// above covers and live uploads.
type MusicSearch struct{}

func NewMusicSearch() *MusicSearch {
	return &MusicSearch{}
}

func (s *MusicSearch) SearchFirst(ctx context.Context, query string) (track.Track, error) {
	if err := ctx.Err(); err != nil {
		return track.Track{}, err
	}
	res, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return track.Track{}, fmt.Errorf("music search: %w", err)
	}
	for _, t := range res.Tracks {
		if t.VideoID == "" {
			continue
		}
		title := t.Title
		if len(t.Artists) > 0 {
			title = t.Title + " - " + t.Artists[0].Name
		}
		return track.Track{Title: title, URL: WatchURL(t.VideoID)}, nil
	}
	return track.Track{}, ErrNoMatch
}

var resultPattern = regexp.MustCompile(`"videoId":"([a-zA-Z0-9_-]{11})".{0,400}?"title":\{"runs":\[\{"text":"((?:[^"\\]|\\.)*)"`)

// PageSearch scrapes the public results page. It needs no API surface and
// is kept as the last resort.
type PageSearch struct {
	BaseURL string
	Client  *http.Client
}

func NewPageSearch(httpClient *http.Client) *PageSearch {
	return &PageSearch{
		BaseURL: "https://www.youtube.com",
		Client:  httpClient,
	}
}

func (s *PageSearch) SearchFirst(ctx context.Context, query string) (track.Track, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", s.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return track.Track{}, err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.Client.Do(req)
	if err != nil {
		return track.Track{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return track.Track{}, fmt.Errorf("results page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return track.Track{}, err
	}

	m := resultPattern.FindStringSubmatch(string(body))
	if len(m) < 3 {
		return track.Track{}, ErrNoMatch
	}
	return track.Track{Title: unescape(m[2]), URL: s.BaseURL + "/watch?v=" + m[1]}, nil
}

func unescape(s string) string {
	r := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\u0026`, "&", `\u003c`, "<", `\u003e`, ">", `\u0027`, "'")
	return r.Replace(s)
}

// Chain tries each searcher in order and returns the first hit. When none
// succeeds the result is ErrNoMatch if any of them reported an empty result,
// and the joined failures otherwise.
type Chain struct {
	searchers []Searcher
	log       zerolog.Logger
}

func NewChain(log zerolog.Logger, searchers ...Searcher) *Chain {
	return &Chain{searchers: searchers, log: log}
}

func (c *Chain) SearchFirst(ctx context.Context, query string) (track.Track, error) {
	var errs []error
	misses := 0
	for _, s := range c.searchers {
		t, err := s.SearchFirst(ctx, query)
		if err == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			return track.Track{}, ctx.Err()
		}
		if errors.Is(err, ErrNoMatch) {
			misses++
			continue
		}
		c.log.Debug().Err(err).Str("query", query).Msgf("%T failed, trying next", s)
		errs = append(errs, err)
	}
	if misses > 0 || len(errs) == 0 {
		return track.Track{}, ErrNoMatch
	}
	return track.Track{}, errors.Join(errs...)
}
