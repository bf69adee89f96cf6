// /internal/music/stream/resource.go
package stream

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	channels     = 2
	sampleRate   = 48000
	frameSize    = 960 // 20ms at 48kHz
	frameBytes   = frameSize * channels * 2
	frameSamples = frameSize * channels
	frameLength  = 20 * time.Millisecond
)

// Type records which pipeline produced the PCM.
type Type int

const (
	// TypeRaw is a direct media URL decoded by a reconnecting demuxer.
	TypeRaw Type = iota
	// TypeArbitrary is a library fetched container stream piped through
	// the decoder as it came.
	TypeArbitrary
)

func (t Type) String() string {
	if t == TypeRaw {
		return "raw"
	}
	return "arbitrary"
}

// ErrEmptyStream is reported when a stream ends before yielding one frame.
var ErrEmptyStream = errors.New("stream ended without audio")

// Resource is one playable stream of 48kHz stereo s16le PCM with an inline
// volume control. It owns the process or connection behind the reader and
// releases it on Close.
type Resource struct {
	Title string
	Type  Type

	pcm     io.ReadCloser
	cleanup func()

	volume atomic.Uint64 // float64 bits
	frames atomic.Int64
	buf    []byte

	closeOnce sync.Once
	closeErr  error
}

func NewResource(pcm io.ReadCloser, typ Type, cleanup func()) *Resource {
	r := &Resource{
		Type:    typ,
		pcm:     pcm,
		cleanup: cleanup,
		buf:     make([]byte, frameBytes),
	}
	r.SetVolume(1)
	return r
}

// SetVolume sets the linear gain. It takes effect on the next frame.
func (r *Resource) SetVolume(v float64) {
	r.volume.Store(math.Float64bits(v))
}

func (r *Resource) Volume() float64 {
	return math.Float64frombits(r.volume.Load())
}

// PlaybackDuration is the amount of audio handed out so far.
func (r *Resource) PlaybackDuration() time.Duration {
	return time.Duration(r.frames.Load()) * frameLength
}

// ReadFrame fills dst with one 20ms frame of interleaved samples, volume
// applied. It returns io.EOF at the natural end of a stream that produced
// audio and ErrEmptyStream when it never did.
func (r *Resource) ReadFrame(dst []int16) error {
	if len(dst) < frameSamples {
		return io.ErrShortBuffer
	}

	_, err := io.ReadFull(r.pcm, r.buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if r.frames.Load() == 0 {
				return ErrEmptyStream
			}
			return io.EOF
		}
		return err
	}

	gain := r.Volume()
	for i := 0; i < frameSamples; i++ {
		s := int16(binary.LittleEndian.Uint16(r.buf[i*2 : i*2+2]))
		dst[i] = scale(s, gain)
	}
	r.frames.Add(1)
	return nil
}

func scale(s int16, gain float64) int16 {
	if gain == 1 {
		return s
	}
	v := float64(s) * gain
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// Close releases the stream and whatever produced it. Safe to call more
// than once.
func (r *Resource) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.pcm.Close()
		if r.cleanup != nil {
			r.cleanup()
		}
	})
	return r.closeErr
}
