// /internal/music/parsers/parser.go
package parsers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/music/sources/youtube"
	"github.com/keshon/songbird/internal/music/stream"
	"github.com/keshon/songbird/internal/music/track"
)

// ErrBuildFailed wraps every failure to produce a playable resource.
var ErrBuildFailed = errors.New("could not open an audio stream")

// Extractor asks an external tool for a short lived direct media URL.
type Extractor interface {
	DirectLink(ctx context.Context, pageURL string) (string, error)
}

// Decoder turns media into 48kHz stereo s16le PCM. The returned cleanup
// releases the decoder and must be called once the reader is done.
type Decoder interface {
	DecodeURL(link string) (io.ReadCloser, func(), error)
	DecodeStream(src io.ReadCloser) (io.ReadCloser, func(), error)
}

// Library fetches the media stream in process.
type Library interface {
	Open(ctx context.Context, pageURL string) (io.ReadCloser, error)
}

type Builder struct {
	search  youtube.Searcher
	extract Extractor
	decode  Decoder
	library Library
	log     zerolog.Logger
}

func NewBuilder(search youtube.Searcher, extract Extractor, decode Decoder, library Library, log zerolog.Logger) *Builder {
	return &Builder{
		search:  search,
		extract: extract,
		decode:  decode,
		library: library,
		log:     log.With().Str("component", "builder").Logger(),
	}
}

// Build opens url for playback. Search markers are resolved first. The
// direct link path is preferred because the demuxer reconnects on its own;
// the library stream is the fallback. When both fail the error wraps
// ErrBuildFailed and both causes.
func (b *Builder) Build(ctx context.Context, url string) (*stream.Resource, error) {
	if track.IsSearchMarker(url) {
		q := track.SearchQuery(url)
		hit, err := b.search.SearchFirst(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%w: search %q: %w", ErrBuildFailed, q, err)
		}
		b.log.Debug().Str("query", q).Str("url", hit.URL).Msg("marker resolved")
		url = hit.URL
	}

	res, errLink := b.openLink(ctx, url)
	if errLink == nil {
		return res, nil
	}
	b.log.Warn().Err(errLink).Str("url", url).Msg("direct link failed, trying library stream")

	res, errLib := b.openLibrary(ctx, url)
	if errLib == nil {
		return res, nil
	}
	b.log.Error().Err(errLib).Str("url", url).Msg("library stream failed")

	return nil, errors.Join(ErrBuildFailed, errLink, errLib)
}

func (b *Builder) openLink(ctx context.Context, url string) (*stream.Resource, error) {
	link, err := b.extract.DirectLink(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	pcm, cleanup, err := b.decode.DecodeURL(link)
	if err != nil {
		return nil, fmt.Errorf("decode link: %w", err)
	}
	return stream.NewResource(pcm, stream.TypeRaw, cleanup), nil
}

func (b *Builder) openLibrary(ctx context.Context, url string) (*stream.Resource, error) {
	src, err := b.library.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	pcm, cleanup, err := b.decode.DecodeStream(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	return stream.NewResource(pcm, stream.TypeArbitrary, cleanup), nil
}
