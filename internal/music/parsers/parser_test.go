package parsers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/songbird/internal/music/sources/youtube"
	"github.com/keshon/songbird/internal/music/stream"
	"github.com/keshon/songbird/internal/music/track"
)

type fakeExtractor struct {
	err   error
	calls []string
}

func (f *fakeExtractor) DirectLink(_ context.Context, u string) (string, error) {
	f.calls = append(f.calls, u)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/audio?src=" + u, nil
}

type fakeDecoder struct {
	urlErr    error
	streamErr error
	links     []string
	cleanups  int
}

func (f *fakeDecoder) DecodeURL(link string) (io.ReadCloser, func(), error) {
	f.links = append(f.links, link)
	if f.urlErr != nil {
		return nil, nil, f.urlErr
	}
	return io.NopCloser(bytes.NewReader(nil)), func() { f.cleanups++ }, nil
}

func (f *fakeDecoder) DecodeStream(src io.ReadCloser) (io.ReadCloser, func(), error) {
	if f.streamErr != nil {
		return nil, nil, f.streamErr
	}
	return src, func() { f.cleanups++ }, nil
}

type fakeLibrary struct {
	err   error
	calls []string
}

func (f *fakeLibrary) Open(_ context.Context, u string) (io.ReadCloser, error) {
	f.calls = append(f.calls, u)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

type fakeSearch struct {
	err error
}

func (f fakeSearch) SearchFirst(_ context.Context, q string) (track.Track, error) {
	if f.err != nil {
		return track.Track{}, f.err
	}
	return track.Track{Title: q, URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, nil
}

const page = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestBuildPrefersDirectLink(t *testing.T) {
	ex, dec, lib := &fakeExtractor{}, &fakeDecoder{}, &fakeLibrary{}
	b := NewBuilder(fakeSearch{}, ex, dec, lib, zerolog.Nop())

	res, err := b.Build(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, stream.TypeRaw, res.Type)
	assert.Equal(t, []string{"https://cdn.example/audio?src=" + page}, dec.links)
	assert.Empty(t, lib.calls)

	require.NoError(t, res.Close())
	assert.Equal(t, 1, dec.cleanups)
}

func TestBuildFallsBackToLibrary(t *testing.T) {
	ex, dec, lib := &fakeExtractor{err: errors.New("sign in to confirm")}, &fakeDecoder{}, &fakeLibrary{}
	b := NewBuilder(fakeSearch{}, ex, dec, lib, zerolog.Nop())

	res, err := b.Build(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, stream.TypeArbitrary, res.Type)
	assert.Equal(t, []string{page}, lib.calls)
}

func TestBuildFallsBackWhenDecoderFails(t *testing.T) {
	ex, dec, lib := &fakeExtractor{}, &fakeDecoder{urlErr: errors.New("exec: ffmpeg")}, &fakeLibrary{}
	b := NewBuilder(fakeSearch{}, ex, dec, lib, zerolog.Nop())

	res, err := b.Build(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, stream.TypeArbitrary, res.Type)
}

func TestBuildBothTiersFail(t *testing.T) {
	linkErr := errors.New("yt-dlp exited 1")
	libErr := errors.New("403")
	b := NewBuilder(fakeSearch{}, &fakeExtractor{err: linkErr}, &fakeDecoder{}, &fakeLibrary{err: libErr}, zerolog.Nop())

	res, err := b.Build(context.Background(), page)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.ErrorIs(t, err, linkErr)
	assert.ErrorIs(t, err, libErr)
}

func TestBuildResolvesSearchMarker(t *testing.T) {
	ex := &fakeExtractor{}
	b := NewBuilder(fakeSearch{}, ex, &fakeDecoder{}, &fakeLibrary{}, zerolog.Nop())

	_, err := b.Build(context.Background(), track.SearchMarker("daft punk around the world"))
	require.NoError(t, err)
	assert.Equal(t, []string{page}, ex.calls)
}

func TestBuildSearchMarkerMiss(t *testing.T) {
	ex := &fakeExtractor{}
	b := NewBuilder(fakeSearch{err: youtube.ErrNoMatch}, ex, &fakeDecoder{}, &fakeLibrary{}, zerolog.Nop())

	_, err := b.Build(context.Background(), track.SearchMarker("zzzz"))
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.ErrorIs(t, err, youtube.ErrNoMatch)
	assert.Empty(t, ex.calls)
}
