// /internal/music/source_resolver/source_resolver.go
package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/music/sources"
	"github.com/keshon/songbird/internal/music/sources/spotify"
	"github.com/keshon/songbird/internal/music/sources/youtube"
	"github.com/keshon/songbird/internal/music/track"
	"github.com/keshon/songbird/pkg/retrylimit"
	"github.com/keshon/songbird/pkg/util"
)

// VideoInfo fetches metadata for a direct primary link.
type VideoInfo interface {
	Video(ctx context.Context, link string) (track.Track, error)
}

type Options struct {
	Videos VideoInfo
	// Search answers free text queries.
	Search youtube.Searcher
	// CatalogSearch matches catalog entries. Falls back to Search when nil.
	CatalogSearch youtube.Searcher
	Catalog       spotify.Catalog
	Limiter       *retrylimit.AdaptiveLimiter
	// Workers bounds concurrent searches while expanding a collection.
	Workers int
	// Attempts per search, counting the first one.
	Attempts int
	Logger   zerolog.Logger
}

type SourceResolver struct {
	opts Options
	log  zerolog.Logger
}

func New(opts Options) *SourceResolver {
	if opts.CatalogSearch == nil {
		opts.CatalogSearch = opts.Search
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 2
	}
	return &SourceResolver{
		opts: opts,
		log:  opts.Logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve turns raw user input into a Single, a List or a Miss. Errors are
// reserved for unsupported input, missing configuration and transport
// failures; "nothing found" is always a Miss.
func (r *SourceResolver) Resolve(ctx context.Context, raw string) (track.Result, error) {
	in := sources.Classify(raw)
	if in.Value == "" {
		return nil, fmt.Errorf("%w: empty input", sources.ErrUnsupported)
	}

	r.log.Debug().Str("kind", in.Kind.String()).Str("input", in.Value).Msg("resolving")

	switch in.Kind {
	case sources.KindPrimaryLink:
		return r.resolvePrimary(ctx, in.Value)
	case sources.KindSecondaryLink:
		return r.resolveCatalog(ctx, in.Value)
	default:
		return r.resolveQuery(ctx, in.Value)
	}
}

func (r *SourceResolver) resolvePrimary(ctx context.Context, link string) (track.Result, error) {
	t, err := r.opts.Videos.Video(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrUnsupported, err)
	}
	if t.Title == "" {
		t.Title = "Unknown"
	}
	return track.Single{Track: t}, nil
}

func (r *SourceResolver) resolveQuery(ctx context.Context, q string) (track.Result, error) {
	t, ok, err := r.searchOne(ctx, r.opts.Search, q)
	if err != nil {
		return nil, err
	}
	if !ok {
		return track.Miss{Title: q}, nil
	}
	if t.Title == "" {
		t.Title = q
	}
	return track.Single{Track: t}, nil
}

func (r *SourceResolver) resolveCatalog(ctx context.Context, raw string) (track.Result, error) {
	link, err := spotify.ParseLink(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrUnsupported, err)
	}
	if r.opts.Catalog == nil {
		return nil, spotify.ErrMissingCredentials
	}

	if link.Single() {
		entry, err := r.opts.Catalog.Track(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		t, ok, err := r.matchEntry(ctx, entry)
		if err != nil {
			return nil, err
		}
		if !ok {
			return track.Miss{Title: entry.Query()}, nil
		}
		return track.Single{Track: t}, nil
	}

	var col spotify.Collection
	switch link.Kind {
	case spotify.LinkAlbum:
		col, err = r.opts.Catalog.Album(ctx, link.ID)
	case spotify.LinkPlaylist:
		col, err = r.opts.Catalog.Playlist(ctx, link.ID)
	case spotify.LinkArtist:
		col, err = r.opts.Catalog.ArtistTop(ctx, link.ID)
	}
	if err != nil {
		return nil, err
	}

	tracks, err := r.expand(ctx, col.Entries)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return track.Miss{Title: col.Name}, nil
	}
	return track.List{Title: col.Title(), Tracks: tracks}, nil
}

// expand matches every entry concurrently, keeping catalog order and
// dropping entries that found nothing.
func (r *SourceResolver) expand(ctx context.Context, entries []spotify.Entry) ([]track.Track, error) {
	start := time.Now()
	type match struct {
		t  track.Track
		ok bool
	}
	matches, err := util.Map(ctx, entries, r.opts.Workers, func(ctx context.Context, e spotify.Entry) (match, error) {
		t, ok, err := r.matchEntry(ctx, e)
		if err != nil {
			if ctx.Err() != nil {
				return match{}, ctx.Err()
			}
			r.log.Warn().Err(err).Str("entry", e.Query()).Msg("dropping entry")
			return match{}, nil
		}
		return match{t: t, ok: ok}, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]track.Track, 0, len(matches))
	for _, m := range matches {
		if m.ok {
			out = append(out, m.t)
		}
	}

	r.log.Info().
		Int("entries", len(entries)).
		Int("tracks", len(out)).
		Dur("took", time.Since(start)).
		Msg("collection expanded")
	return out, nil
}

func (r *SourceResolver) matchEntry(ctx context.Context, e spotify.Entry) (track.Track, bool, error) {
	hit, ok, err := r.searchOne(ctx, r.opts.CatalogSearch, e.Query())
	if err != nil || !ok {
		return track.Track{}, false, err
	}
	return track.Track{
		Title:    e.DisplayTitle(),
		URL:      hit.URL,
		Duration: e.Duration,
	}, true, nil
}

// searchOne runs a single best-match search under the shared limiter. A
// clean miss is reported as ok=false, not as an error.
func (r *SourceResolver) searchOne(ctx context.Context, s youtube.Searcher, q string) (track.Track, bool, error) {
	var hit track.Track
	cfg := retrylimit.DefaultRetryConfig()
	cfg.MaxAttempts = r.opts.Attempts
	cfg.InitialDelay = 250 * time.Millisecond
	cfg.MaxDelay = 2 * time.Second
	cfg.Logger = &r.log

	err := retrylimit.WithRetryConfig(ctx, func() error {
		t, err := s.SearchFirst(ctx, q)
		if errors.Is(err, youtube.ErrNoMatch) {
			return retrylimit.Fatal(err)
		}
		hit = t
		return err
	}, r.opts.Limiter, cfg)

	switch {
	case err == nil:
		return hit, true, nil
	case errors.Is(err, youtube.ErrNoMatch):
		return track.Track{}, false, nil
	default:
		return track.Track{}, false, fmt.Errorf("search %q: %w", q, err)
	}
}
