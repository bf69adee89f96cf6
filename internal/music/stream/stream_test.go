package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pcmFrames builds n frames where every sample equals value.
func pcmFrames(n int, value int16) []byte {
	buf := make([]byte, n*frameBytes)
	for i := 0; i < n*frameSamples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(value))
	}
	return buf
}

type closeRecorder struct {
	io.Reader
	closed atomic.Bool
}

func (c *closeRecorder) Close() error {
	c.closed.Store(true)
	return nil
}

// endless yields silence until closed.
type endless struct {
	closed atomic.Bool
}

func (e *endless) Read(p []byte) (int, error) {
	if e.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	time.Sleep(time.Millisecond)
	clear(p)
	return len(p), nil
}

func (e *endless) Close() error {
	e.closed.Store(true)
	return nil
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(pcm []int16, _, _ int) ([]byte, error) {
	return []byte{byte(pcm[0])}, nil
}

type fakeSink struct {
	mu       sync.Mutex
	frames   [][]byte
	speaking []bool
}

func (s *fakeSink) SendOpus(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSink) Speaking(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = append(s.speaking, v)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

var errOffline = errors.New("offline")

// flakySink rejects every frame until it is marked ready.
type flakySink struct {
	fakeSink
	ready    atomic.Bool
	rejected atomic.Int64
}

func (s *flakySink) SendOpus(frame []byte) error {
	if !s.ready.Load() {
		s.rejected.Add(1)
		return errOffline
	}
	return s.fakeSink.SendOpus(frame)
}

func newTestPlayer() *AudioPlayer {
	return NewPlayer(zerolog.Nop(), WithEncoder(func() (Encoder, error) { return fakeEncoder{}, nil }))
}

func nextEvent(t *testing.T, p *AudioPlayer) Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no player event")
		return Event{}
	}
}

func TestResourceVolume(t *testing.T) {
	res := NewResource(io.NopCloser(bytes.NewReader(pcmFrames(3, 1000))), TypeRaw, nil)
	dst := make([]int16, frameSamples)

	require.NoError(t, res.ReadFrame(dst))
	assert.Equal(t, int16(1000), dst[0])

	res.SetVolume(0.5)
	require.NoError(t, res.ReadFrame(dst))
	assert.Equal(t, int16(500), dst[frameSamples-1])

	res.SetVolume(2)
	require.NoError(t, res.ReadFrame(dst))
	assert.Equal(t, int16(2000), dst[0])

	assert.Equal(t, 60*time.Millisecond, res.PlaybackDuration())
	assert.ErrorIs(t, res.ReadFrame(dst), io.EOF)
}

func TestResourceClipping(t *testing.T) {
	res := NewResource(io.NopCloser(bytes.NewReader(pcmFrames(1, 30000))), TypeRaw, nil)
	res.SetVolume(2)
	dst := make([]int16, frameSamples)
	require.NoError(t, res.ReadFrame(dst))
	assert.Equal(t, int16(32767), dst[0])
}

func TestResourceEmpty(t *testing.T) {
	res := NewResource(io.NopCloser(bytes.NewReader(nil)), TypeArbitrary, nil)
	assert.ErrorIs(t, res.ReadFrame(make([]int16, frameSamples)), ErrEmptyStream)
	assert.ErrorIs(t, res.ReadFrame(make([]int16, 4)), io.ErrShortBuffer)
}

func TestResourceCloseOnce(t *testing.T) {
	calls := 0
	src := &closeRecorder{Reader: bytes.NewReader(nil)}
	res := NewResource(src, TypeRaw, func() { calls++ })
	require.NoError(t, res.Close())
	require.NoError(t, res.Close())
	assert.True(t, src.closed.Load())
	assert.Equal(t, 1, calls)
}

func TestPlayerPlaysToEnd(t *testing.T) {
	p := newTestPlayer()
	defer p.Close()
	sink := &fakeSink{}
	p.Subscribe(sink)

	src := &closeRecorder{Reader: bytes.NewReader(pcmFrames(5, 7))}
	res := NewResource(src, TypeRaw, nil)
	p.Play(res)

	ev := nextEvent(t, p)
	assert.Equal(t, EventIdle, ev.Kind)
	assert.Same(t, res, ev.Resource)
	assert.Equal(t, 5, sink.count())
	assert.Equal(t, StatusIdle, p.Status())
	assert.Nil(t, p.Resource())
	assert.True(t, src.closed.Load())

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.speaking) == 2 && sink.speaking[0] && !sink.speaking[1]
	}, time.Second, time.Millisecond)
}

func TestPlayerReportsEmptyStream(t *testing.T) {
	p := newTestPlayer()
	defer p.Close()
	p.Subscribe(&fakeSink{})

	p.Play(NewResource(io.NopCloser(bytes.NewReader(nil)), TypeRaw, nil))
	ev := nextEvent(t, p)
	assert.Equal(t, EventError, ev.Kind)
	assert.ErrorIs(t, ev.Err, ErrEmptyStream)
}

func TestPlayerReportsEncoderFailure(t *testing.T) {
	boom := errors.New("no opus")
	p := NewPlayer(zerolog.Nop(), WithEncoder(func() (Encoder, error) { return nil, boom }))
	defer p.Close()

	p.Play(NewResource(io.NopCloser(bytes.NewReader(pcmFrames(1, 0))), TypeRaw, nil))
	ev := nextEvent(t, p)
	assert.Equal(t, EventError, ev.Kind)
	assert.ErrorIs(t, ev.Err, boom)
}

func TestPlayerWaitsForSink(t *testing.T) {
	p := newTestPlayer()
	defer p.Close()

	p.Play(NewResource(io.NopCloser(bytes.NewReader(pcmFrames(2, 1))), TypeRaw, nil))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatusBuffering, p.Status())
	assert.Empty(t, p.Events())

	sink := &fakeSink{}
	p.Subscribe(sink)
	ev := nextEvent(t, p)
	assert.Equal(t, EventIdle, ev.Kind)
	assert.Equal(t, 2, sink.count())
}

func TestPlayerPauseHoldsPosition(t *testing.T) {
	p := newTestPlayer()
	defer p.Close()
	sink := &fakeSink{}
	p.Subscribe(sink)

	p.Play(NewResource(&endless{}, TypeRaw, nil))
	require.Eventually(t, func() bool { return sink.count() > 2 }, time.Second, time.Millisecond)
	assert.Equal(t, StatusPlaying, p.Status())

	require.True(t, p.Pause())
	assert.False(t, p.Pause())
	time.Sleep(10 * time.Millisecond)
	held := sink.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, held, sink.count())
	assert.Equal(t, StatusPaused, p.Status())

	require.True(t, p.Unpause())
	assert.False(t, p.Unpause())
	require.Eventually(t, func() bool { return sink.count() > held }, time.Second, time.Millisecond)
}

func TestPlayerHoldsPositionWhileSinkRejects(t *testing.T) {
	p := newTestPlayer()
	defer p.Close()
	sink := &flakySink{}
	p.Subscribe(sink)

	res := NewResource(io.NopCloser(bytes.NewReader(pcmFrames(3, 9))), TypeRaw, nil)
	p.Play(res)

	require.Eventually(t, func() bool { return sink.rejected.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, frameLength, res.PlaybackDuration())
	assert.Equal(t, StatusBuffering, p.Status())
	assert.Empty(t, p.Events())
	assert.LessOrEqual(t, sink.rejected.Load(), int64(10))

	sink.ready.Store(true)
	ev := nextEvent(t, p)
	assert.Equal(t, EventIdle, ev.Kind)
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, []byte{9}, sink.frames[0])
	assert.Equal(t, 3*frameLength, res.PlaybackDuration())
}

func TestPlayerReplaceIsSilent(t *testing.T) {
	p := newTestPlayer()
	defer p.Close()
	p.Subscribe(&fakeSink{})

	first := &endless{}
	p.Play(NewResource(first, TypeRaw, nil))
	second := NewResource(io.NopCloser(bytes.NewReader(pcmFrames(1, 0))), TypeRaw, nil)
	p.Play(second)

	ev := nextEvent(t, p)
	assert.Same(t, second, ev.Resource)
	assert.True(t, first.closed.Load())
	assert.Empty(t, p.Events())
}

func TestPlayerStop(t *testing.T) {
	p := newTestPlayer()
	defer p.Close()
	p.Subscribe(&fakeSink{})

	assert.False(t, p.Stop())

	src := &endless{}
	res := NewResource(src, TypeRaw, nil)
	p.Play(res)
	require.True(t, p.Stop())

	ev := nextEvent(t, p)
	assert.Equal(t, EventIdle, ev.Kind)
	assert.Same(t, res, ev.Resource)
	assert.True(t, src.closed.Load())
	assert.False(t, p.Stop())

	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, p.Events())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "buffering", StatusBuffering.String())
	assert.Equal(t, "playing", StatusPlaying.String())
	assert.Equal(t, "paused", StatusPaused.String())
	assert.Equal(t, "raw", TypeRaw.String())
	assert.Equal(t, "arbitrary", TypeArbitrary.String())
}
