// /internal/music/stream/player.go
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the state of an AudioPlayer.
type Status int

const (
	StatusIdle Status = iota
	StatusBuffering
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusBuffering:
		return "buffering"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "idle"
	}
}

type EventKind int

const (
	// EventIdle means the player went idle: the resource ended or was stopped.
	EventIdle EventKind = iota
	// EventError means the resource failed mid playback. The player is idle
	// again afterwards but no separate EventIdle follows.
	EventError
)

// Event reports a transition that ends a resource. Resource identifies which
// one, so listeners can ignore reports about resources they already dropped.
type Event struct {
	Kind     EventKind
	Resource *Resource
	Err      error
}

// retryDelay is how long a frame rejected by the sink waits before it is
// offered again.
const retryDelay = 100 * time.Millisecond

// AudioPlayer pulls PCM from one Resource at a time, encodes it and pushes
// it into the subscribed Sink at real time pace (the sink paces sends).
// With no sink subscribed, or while the sink rejects frames, the player
// holds position instead of dropping audio.
type AudioPlayer struct {
	mu     sync.Mutex
	status Status
	res    *Resource
	sink   Sink
	gen    uint64
	cancel context.CancelFunc
	wake   chan struct{}

	events     chan Event
	newEncoder func() (Encoder, error)
	log        zerolog.Logger
	wg         sync.WaitGroup
}

type PlayerOption func(*AudioPlayer)

// WithEncoder replaces the opus encoder factory.
func WithEncoder(f func() (Encoder, error)) PlayerOption {
	return func(p *AudioPlayer) { p.newEncoder = f }
}

func NewPlayer(log zerolog.Logger, opts ...PlayerOption) *AudioPlayer {
	p := &AudioPlayer{
		wake:       make(chan struct{}),
		events:     make(chan Event, 16),
		newEncoder: NewOpusEncoder,
		log:        log.With().Str("component", "audio").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Events delivers idle and error reports. It must be drained.
func (p *AudioPlayer) Events() <-chan Event {
	return p.events
}

func (p *AudioPlayer) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Resource returns the resource being played, or nil when idle.
func (p *AudioPlayer) Resource() *Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.res
}

// Subscribe routes audio into sink. nil detaches the current sink.
func (p *AudioPlayer) Subscribe(sink Sink) {
	p.mu.Lock()
	p.sink = sink
	p.notifyLocked()
	p.mu.Unlock()
}

// Play replaces whatever is playing with res. The replaced resource is
// closed without an event.
func (p *AudioPlayer) Play(res *Resource) {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	old := p.res
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	p.res = res
	p.cancel = cancel
	p.status = StatusBuffering
	p.notifyLocked()
	p.wg.Add(1)
	p.mu.Unlock()

	if old != nil && old != res {
		_ = old.Close()
	}

	go p.run(ctx, gen, res)
}

// Stop halts playback and reports EventIdle for the dropped resource. It
// returns false when there was nothing to stop.
func (p *AudioPlayer) Stop() bool {
	p.mu.Lock()
	if p.status == StatusIdle {
		p.mu.Unlock()
		return false
	}
	res := p.res
	p.haltLocked()
	p.mu.Unlock()

	_ = res.Close()
	p.events <- Event{Kind: EventIdle, Resource: res}
	return true
}

func (p *AudioPlayer) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusPlaying && p.status != StatusBuffering {
		return false
	}
	p.status = StatusPaused
	p.notifyLocked()
	return true
}

func (p *AudioPlayer) Unpause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusPaused {
		return false
	}
	p.status = StatusPlaying
	p.notifyLocked()
	return true
}

// Close stops playback without reporting and waits for the loop to exit.
func (p *AudioPlayer) Close() {
	p.mu.Lock()
	res := p.res
	if p.status != StatusIdle {
		p.haltLocked()
	}
	p.mu.Unlock()
	if res != nil {
		_ = res.Close()
	}
	p.wg.Wait()
}

func (p *AudioPlayer) haltLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.res = nil
	p.status = StatusIdle
	p.notifyLocked()
}

func (p *AudioPlayer) notifyLocked() {
	close(p.wake)
	p.wake = make(chan struct{})
}

// await blocks until generation gen may send audio and returns the sink.
// ok is false once gen has been replaced or stopped.
func (p *AudioPlayer) await(ctx context.Context, gen uint64) (sink Sink, ok bool) {
	for {
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return nil, false
		}
		active := p.status == StatusPlaying || p.status == StatusBuffering
		if active && p.sink != nil {
			sink = p.sink
			p.mu.Unlock()
			return sink, true
		}
		wake := p.wake
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-wake:
		}
	}
}

func (p *AudioPlayer) run(ctx context.Context, gen uint64, res *Resource) {
	defer p.wg.Done()

	enc, err := p.newEncoder()
	if err != nil {
		p.finish(gen, Event{Kind: EventError, Resource: res, Err: err})
		return
	}

	pcm := make([]int16, frameSamples)
	var packet []byte
	var speaking Sink
	defer func() {
		if speaking != nil {
			_ = speaking.Speaking(false)
		}
	}()

	for {
		sink, ok := p.await(ctx, gen)
		if !ok {
			return
		}
		if speaking != sink {
			if speaking != nil {
				_ = speaking.Speaking(false)
			}
			if err := sink.Speaking(true); err != nil {
				p.log.Debug().Err(err).Msg("speaking")
			}
			speaking = sink
		}

		if packet == nil {
			if err := res.ReadFrame(pcm); err != nil {
				if errors.Is(err, io.EOF) {
					p.finish(gen, Event{Kind: EventIdle, Resource: res})
				} else {
					p.finish(gen, Event{Kind: EventError, Resource: res, Err: err})
				}
				return
			}

			packet, err = enc.Encode(pcm, frameSize, maxOpusBytes)
			if err != nil {
				p.finish(gen, Event{Kind: EventError, Resource: res, Err: err})
				return
			}
		}

		if err := sink.SendOpus(packet); err != nil {
			// the sink is reconnecting; keep the frame and offer it again
			p.log.Debug().Err(err).Msg("frame held")
			if !p.hold(ctx, gen) {
				return
			}
			continue
		}
		packet = nil
		p.markPlaying(gen)
	}
}

// hold waits out a rejected send. It returns false once generation gen is
// over.
func (p *AudioPlayer) hold(ctx context.Context, gen uint64) bool {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return false
	}
	wake := p.wake
	p.mu.Unlock()

	t := time.NewTimer(retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-wake:
	case <-t.C:
	}
	return true
}

func (p *AudioPlayer) markPlaying(gen uint64) {
	p.mu.Lock()
	if p.gen == gen && p.status == StatusBuffering {
		p.status = StatusPlaying
	}
	p.mu.Unlock()
}

// finish reports the end of generation gen unless it was superseded.
func (p *AudioPlayer) finish(gen uint64, ev Event) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.haltLocked()
	p.mu.Unlock()

	_ = ev.Resource.Close()
	if ev.Err != nil {
		p.log.Warn().Err(ev.Err).Str("title", ev.Resource.Title).Msg("playback failed")
	}
	p.events <- ev
}
