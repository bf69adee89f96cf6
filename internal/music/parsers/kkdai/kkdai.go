package kkdai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	yt "github.com/keshon/songbird/internal/music/sources/youtube"
)

// KKDAI opens audio streams with the in process youtube client.
type KKDAI struct {
	client *youtube.Client
	log    zerolog.Logger
}

func New(client *youtube.Client, log zerolog.Logger) *KKDAI {
	return &KKDAI{client: client, log: log.With().Str("component", "kkdai").Logger()}
}

// Open returns the container stream of the best audio format. The stream
// outlives ctx; only the metadata request is bound to it.
func (k *KKDAI) Open(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	id, err := yt.VideoID(pageURL)
	if err != nil {
		return nil, err
	}

	video, err := k.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("youtube client error: %w", err)
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return nil, err
	}

	body, size, err := k.client.GetStreamContext(context.WithoutCancel(ctx), video, format)
	if err != nil {
		return nil, fmt.Errorf("get stream error: %w", err)
	}

	k.log.Debug().Str("id", id).Str("mime", format.MimeType).Int64("size", size).Msg("stream opened")
	return body, nil
}

// pickFormat prefers audio only formats, highest bitrate first.
func pickFormat(formats youtube.FormatList) (*youtube.Format, error) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, errors.New("no audio formats found for video")
	}

	best := -1
	for i := range withAudio {
		if !strings.HasPrefix(withAudio[i].MimeType, "audio/") {
			continue
		}
		if best < 0 || withAudio[i].Bitrate > withAudio[best].Bitrate {
			best = i
		}
	}
	if best < 0 {
		best = 0
	}
	return &withAudio[best], nil
}
