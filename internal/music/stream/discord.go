// /internal/music/stream/discord.go
package stream

import (
	"fmt"

	"layeh.com/gopus"
)

// maxOpusBytes bounds one encoded 20ms frame.
const maxOpusBytes = frameBytes

// Encoder turns one PCM frame into one opus packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// Sink receives encoded audio, usually a voice connection.
type Sink interface {
	SendOpus(frame []byte) error
	Speaking(speaking bool) error
}

// NewOpusEncoder is the default Encoder factory.
func NewOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return enc, nil
}
