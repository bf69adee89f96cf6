// /internal/music/sources/spotify/spotify.go
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrMissingCredentials is returned on first use when no client id/secret
// pair was configured.
var ErrMissingCredentials = errors.New("spotify client credentials are not configured")

const pageSize = 50

// Entry is catalog metadata for one recording. It is not streamable by
// itself and has to be matched against the primary source.
type Entry struct {
	Title    string
	Artists  []string
	Duration time.Duration
}

// Query is the search string used to find the entry elsewhere.
func (e Entry) Query() string {
	if len(e.Artists) == 0 {
		return e.Title
	}
	return strings.Join(e.Artists, ", ") + " - " + e.Title
}

// DisplayTitle is the user facing label.
func (e Entry) DisplayTitle() string {
	if len(e.Artists) == 0 {
		return e.Title
	}
	return e.Title + " - " + strings.Join(e.Artists, ", ")
}

// Collection is an ordered batch of entries with a display name. Heading,
// when set, labels the collection once it produced tracks; a collection
// that matched nothing is reported under Name.
type Collection struct {
	Name    string
	Heading string
	Entries []Entry
}

func (c Collection) Title() string {
	if c.Heading != "" {
		return c.Heading
	}
	return c.Name
}

// Catalog is the metadata API surface the resolver needs.
type Catalog interface {
	Track(ctx context.Context, id string) (Entry, error)
	Album(ctx context.Context, id string) (Collection, error)
	Playlist(ctx context.Context, id string) (Collection, error)
	ArtistTop(ctx context.Context, id string) (Collection, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Client talks to the Web API with the client-credentials flow. The API
// client is built on first use so a missing key pair only matters to users
// who actually paste catalog links.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu  sync.Mutex
	api *spotifyapi.Client
}

func New(cfg Config) *Client {
	if cfg.Market == "" {
		cfg.Market = "US"
	}
	return &Client{cfg: cfg, log: cfg.Logger.With().Str("component", "spotify").Logger()}
}

func (c *Client) client() (*spotifyapi.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil {
		return c.api, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	ctx := context.Background()
	if c.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.cfg.HTTPClient)
	}
	creds := &clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	c.api = spotifyapi.New(creds.Client(ctx))
	c.log.Debug().Msg("api client ready")
	return c.api, nil
}

func (c *Client) Track(ctx context.Context, id string) (Entry, error) {
	api, err := c.client()
	if err != nil {
		return Entry{}, err
	}
	t, err := api.GetTrack(ctx, spotifyapi.ID(id))
	if err != nil {
		return Entry{}, fmt.Errorf("get track %s: %w", id, err)
	}
	return fromSimple(t.SimpleTrack), nil
}

func (c *Client) Album(ctx context.Context, id string) (Collection, error) {
	api, err := c.client()
	if err != nil {
		return Collection{}, err
	}
	album, err := api.GetAlbum(ctx, spotifyapi.ID(id))
	if err != nil {
		return Collection{}, fmt.Errorf("get album %s: %w", id, err)
	}

	col := Collection{Name: album.Name}
	for offset := 0; ; offset += pageSize {
		page, err := api.GetAlbumTracks(ctx, spotifyapi.ID(id), spotifyapi.Limit(pageSize), spotifyapi.Offset(offset))
		if err != nil {
			return Collection{}, fmt.Errorf("album %s tracks: %w", id, err)
		}
		for _, t := range page.Tracks {
			col.Entries = append(col.Entries, fromSimple(t))
		}
		if len(page.Tracks) < pageSize {
			break
		}
	}
	return col, nil
}

func (c *Client) Playlist(ctx context.Context, id string) (Collection, error) {
	api, err := c.client()
	if err != nil {
		return Collection{}, err
	}
	pl, err := api.GetPlaylist(ctx, spotifyapi.ID(id))
	if err != nil {
		return Collection{}, fmt.Errorf("get playlist %s: %w", id, err)
	}

	col := Collection{Name: pl.Name}
	for offset := 0; ; offset += pageSize {
		page, err := api.GetPlaylistItems(ctx, spotifyapi.ID(id), spotifyapi.Limit(pageSize), spotifyapi.Offset(offset))
		if err != nil {
			return Collection{}, fmt.Errorf("playlist %s items: %w", id, err)
		}
		for i := range page.Items {
			// episodes and removed tracks come back without a track body
			if t := page.Items[i].Track.Track; t != nil {
				col.Entries = append(col.Entries, fromSimple(t.SimpleTrack))
			}
		}
		if len(page.Items) < pageSize {
			break
		}
	}
	return col, nil
}

func (c *Client) ArtistTop(ctx context.Context, id string) (Collection, error) {
	api, err := c.client()
	if err != nil {
		return Collection{}, err
	}
	artist, err := api.GetArtist(ctx, spotifyapi.ID(id))
	if err != nil {
		return Collection{}, fmt.Errorf("get artist %s: %w", id, err)
	}
	top, err := api.GetArtistsTopTracks(ctx, spotifyapi.ID(id), c.cfg.Market)
	if err != nil {
		return Collection{}, fmt.Errorf("artist %s top tracks: %w", id, err)
	}

	col := Collection{Name: artist.Name, Heading: artist.Name + " — Top Tracks"}
	for _, t := range top {
		col.Entries = append(col.Entries, fromSimple(t.SimpleTrack))
	}
	return col, nil
}

func fromSimple(t spotifyapi.SimpleTrack) Entry {
	e := Entry{
		Title:    t.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
	for _, a := range t.Artists {
		e.Artists = append(e.Artists, a.Name)
	}
	return e
}
