// /internal/music/player/player.go
package player

import (
	"context"
	"errors"

	"github.com/keshon/songbird/internal/music/stream"
	"github.com/keshon/songbird/internal/music/track"
)

type PlayerStatus string

const (
	StatusPlaying      PlayerStatus = "Playing"
	StatusAdded        PlayerStatus = "Track(s) Added"
	StatusStopped      PlayerStatus = "Playback Stopped"
	StatusPaused       PlayerStatus = "Playback Paused"
	StatusResumed      PlayerStatus = "Playback Resumed"
	StatusSkipped      PlayerStatus = "Track Skipped"
	StatusError        PlayerStatus = "Error"
	StatusDisconnected PlayerStatus = "Voice Disconnected"
)

func (status PlayerStatus) StringEmoji() string {
	m := map[PlayerStatus]string{
		StatusPlaying:      "▶️",
		StatusAdded:        "🎶",
		StatusStopped:      "⏹",
		StatusPaused:       "⏸",
		StatusResumed:      "▶️",
		StatusSkipped:      "⏭",
		StatusError:        "❌",
		StatusDisconnected: "🔌",
	}
	return m[status]
}

var (
	ErrNoTrackPlaying = errors.New("no track is currently playing")
	ErrNotFound       = errors.New("no track at that position")
	ErrNotConnected   = errors.New("not connected to a voice channel")
	ErrClosed         = errors.New("queue is closed")
)

// AudioPlayer is the playback engine a queue drives. *stream.AudioPlayer
// implements it.
type AudioPlayer interface {
	Play(res *stream.Resource)
	Stop() bool
	Pause() bool
	Unpause() bool
	Status() stream.Status
	Subscribe(sink stream.Sink)
	Events() <-chan stream.Event
	Close()
}

// Builder opens a track URL for playback.
type Builder interface {
	Build(ctx context.Context, url string) (*stream.Resource, error)
}

// Metadata looks up details of a primary platform link. Only the duration
// is used, to fill in tracks queued without one.
type Metadata interface {
	Video(ctx context.Context, link string) (track.Track, error)
}

// Snapshot is a copy of queue state for display.
type Snapshot struct {
	Current   *track.Track
	Pending   []track.Track
	Status    stream.Status
	Volume    float64
	Elapsed   int64 // milliseconds
	Connected bool
	ChannelID string
}
