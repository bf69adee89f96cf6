package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/keshon/songbird/internal/music/sources"
	"github.com/keshon/songbird/internal/music/sources/spotify"
	"github.com/keshon/songbird/internal/music/sources/youtube"
	"github.com/keshon/songbird/internal/music/track"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeVideos struct {
	err error
}

func (f fakeVideos) Video(_ context.Context, link string) (track.Track, error) {
	if f.err != nil {
		return track.Track{}, f.err
	}
	return track.Track{Title: "Video", URL: youtube.CleanVideoURL(link)}, nil
}

// fakeSearch answers every query except the ones listed in miss. fail holds
// a number of transient failures to return before answering.
type fakeSearch struct {
	mu    sync.Mutex
	miss  map[string]bool
	fail  int
	calls []string
}

func (f *fakeSearch) SearchFirst(_ context.Context, q string) (track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if f.fail > 0 {
		f.fail--
		return track.Track{}, errors.New("connection reset")
	}
	if f.miss[q] {
		return track.Track{}, youtube.ErrNoMatch
	}
	return track.Track{Title: "hit " + q, URL: "https://www.youtube.com/watch?v=" + strings.ReplaceAll(q, " ", "_")}, nil
}

type fakeCatalog struct {
	entries []spotify.Entry
	name    string
}

func (f fakeCatalog) Track(_ context.Context, id string) (spotify.Entry, error) {
	return f.entries[0], nil
}

func (f fakeCatalog) Album(context.Context, string) (spotify.Collection, error) {
	return spotify.Collection{Name: f.name, Entries: f.entries}, nil
}

func (f fakeCatalog) Playlist(ctx context.Context, id string) (spotify.Collection, error) {
	return f.Album(ctx, id)
}

func (f fakeCatalog) ArtistTop(ctx context.Context, id string) (spotify.Collection, error) {
	c, err := f.Album(ctx, id)
	c.Heading = c.Name + " — Top Tracks"
	return c, err
}

func entries(n int) []spotify.Entry {
	out := make([]spotify.Entry, n)
	for i := range out {
		out[i] = spotify.Entry{Title: fmt.Sprintf("Song %d", i+1), Artists: []string{"Band"}}
	}
	return out
}

func newResolver(s *fakeSearch, c spotify.Catalog) *SourceResolver {
	return New(Options{
		Videos:  fakeVideos{},
		Search:  s,
		Catalog: c,
		Workers: 3,
		Logger:  zerolog.Nop(),
	})
}

func TestResolvePrimaryLink(t *testing.T) {
	r := newResolver(&fakeSearch{}, nil)
	res, err := r.Resolve(context.Background(), "  https://youtu.be/dQw4w9WgXcQ?t=3 ")
	require.NoError(t, err)

	single, ok := res.(track.Single)
	require.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", single.Track.URL)
}

func TestResolvePrimaryLinkFailure(t *testing.T) {
	r := New(Options{Videos: fakeVideos{err: errors.New("private video")}, Search: &fakeSearch{}, Logger: zerolog.Nop()})
	_, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.ErrorIs(t, err, sources.ErrUnsupported)
}

func TestResolveQuery(t *testing.T) {
	s := &fakeSearch{miss: map[string]bool{"zzzz": true}}
	r := newResolver(s, nil)

	res, err := r.Resolve(context.Background(), "daft punk")
	require.NoError(t, err)
	assert.Equal(t, "hit daft punk", res.(track.Single).Track.Title)

	res, err = r.Resolve(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Equal(t, track.Miss{Title: "zzzz"}, res)

	_, err = r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, sources.ErrUnsupported)
}

func TestResolveQueryRetriesTransientErrors(t *testing.T) {
	s := &fakeSearch{fail: 1}
	r := newResolver(s, nil)

	res, err := r.Resolve(context.Background(), "daft punk")
	require.NoError(t, err)
	assert.IsType(t, track.Single{}, res)
	assert.Len(t, s.calls, 2)
}

func TestResolveQueryMissIsNotRetried(t *testing.T) {
	s := &fakeSearch{miss: map[string]bool{"zzzz": true}}
	r := newResolver(s, nil)

	_, err := r.Resolve(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Len(t, s.calls, 1)
}

func TestResolveCatalogCollectionDropsMisses(t *testing.T) {
	list := entries(10)
	s := &fakeSearch{miss: map[string]bool{
		list[2].Query(): true,
		list[7].Query(): true,
	}}
	r := newResolver(s, fakeCatalog{name: "Road Trip", entries: list})

	res, err := r.Resolve(context.Background(), "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")
	require.NoError(t, err)

	l, ok := res.(track.List)
	require.True(t, ok)
	assert.Equal(t, "Road Trip", l.Title)
	require.Len(t, l.Tracks, 8)

	var titles []string
	for _, tr := range l.Tracks {
		titles = append(titles, tr.Title)
	}
	assert.Equal(t, []string{
		"Song 1 - Band", "Song 2 - Band", "Song 4 - Band", "Song 5 - Band",
		"Song 6 - Band", "Song 7 - Band", "Song 9 - Band", "Song 10 - Band",
	}, titles)
}

func TestResolveCatalogEmptyCollectionIsMiss(t *testing.T) {
	list := entries(2)
	s := &fakeSearch{miss: map[string]bool{list[0].Query(): true, list[1].Query(): true}}
	r := newResolver(s, fakeCatalog{name: "Ghosts", entries: list})

	res, err := r.Resolve(context.Background(), "https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3")
	require.NoError(t, err)
	assert.Equal(t, track.Miss{Title: "Ghosts"}, res)
}

func TestResolveCatalogArtist(t *testing.T) {
	r := newResolver(&fakeSearch{}, fakeCatalog{name: "Band", entries: entries(3)})

	res, err := r.Resolve(context.Background(), "https://open.spotify.com/artist/0gxyHStUsqpMadRV0Di1Qt")
	require.NoError(t, err)
	l := res.(track.List)
	assert.Equal(t, "Band — Top Tracks", l.Title)
	assert.Len(t, l.Tracks, 3)
}

func TestResolveCatalogArtistMissUsesArtistName(t *testing.T) {
	list := entries(2)
	s := &fakeSearch{miss: map[string]bool{list[0].Query(): true, list[1].Query(): true}}
	r := newResolver(s, fakeCatalog{name: "Band", entries: list})

	res, err := r.Resolve(context.Background(), "https://open.spotify.com/artist/0gxyHStUsqpMadRV0Di1Qt")
	require.NoError(t, err)
	assert.Equal(t, track.Miss{Title: "Band"}, res)
}

func TestResolveCatalogSingle(t *testing.T) {
	list := entries(1)
	r := newResolver(&fakeSearch{}, fakeCatalog{entries: list})

	res, err := r.Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	assert.Equal(t, "Song 1 - Band", res.(track.Single).Track.Title)

	miss := newResolver(&fakeSearch{miss: map[string]bool{list[0].Query(): true}}, fakeCatalog{entries: list})
	res, err = miss.Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	assert.Equal(t, track.Miss{Title: "Band - Song 1"}, res)
}

func TestResolveCatalogWithoutCredentials(t *testing.T) {
	r := New(Options{
		Search:  &fakeSearch{},
		Catalog: spotify.New(spotify.Config{Logger: zerolog.Nop()}),
		Logger:  zerolog.Nop(),
	})
	_, err := r.Resolve(context.Background(), "https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3")
	assert.ErrorIs(t, err, spotify.ErrMissingCredentials)

	_, err = newResolver(&fakeSearch{}, nil).Resolve(context.Background(), "https://open.spotify.com/album/1")
	assert.ErrorIs(t, err, spotify.ErrMissingCredentials)
}

func TestResolveCatalogBadLink(t *testing.T) {
	r := newResolver(&fakeSearch{}, fakeCatalog{})
	_, err := r.Resolve(context.Background(), "https://open.spotify.com/show/abc")
	assert.ErrorIs(t, err, sources.ErrUnsupported)
}

func TestResolveCatalogLargeCollection(t *testing.T) {
	list := entries(150)
	miss := make(map[string]bool, len(list))
	for _, e := range list {
		miss[e.Query()] = true
	}
	s := &fakeSearch{miss: miss}
	r := newResolver(s, fakeCatalog{name: "Marathon", entries: list})

	res, err := r.Resolve(context.Background(), "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")
	require.NoError(t, err)
	assert.Equal(t, track.Miss{Title: "Marathon"}, res)
	assert.Len(t, s.calls, 150)

	delete(s.miss, list[149].Query())
	res, err = r.Resolve(context.Background(), "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")
	require.NoError(t, err)
	l, ok := res.(track.List)
	require.True(t, ok)
	require.Len(t, l.Tracks, 1)
	assert.Equal(t, "Song 150 - Band", l.Tracks[0].Title)
	assert.False(t, l.Tracks[0].IsDeferred())
}
