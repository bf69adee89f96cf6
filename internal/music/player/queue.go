// /internal/music/player/queue.go
package player

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/music/sources"
	"github.com/keshon/songbird/internal/music/stream"
	"github.com/keshon/songbird/internal/music/track"
	"github.com/keshon/songbird/internal/music/voice"
)

const (
	MinVolume  = 0.0
	MaxVolume  = 2.0
	VolumeStep = 0.1
)

type Options struct {
	GuildID  string
	Joiner   voice.Joiner
	Player   AudioPlayer
	Builder  Builder
	Metadata Metadata // optional
	Volume   *float64 // nil means the default of 1
	Logger   zerolog.Logger

	ReadyTimeout    time.Duration // existing connection, default 5s
	ConnectTimeout  time.Duration // fresh connection, default 20s
	RecoveryTimeout time.Duration // disconnect self-heal window, default 5s
	BuildTimeout    time.Duration // default 60s
}

// GuildQueue owns playback for one guild. Every state change runs on a
// single goroutine fed by an unbounded mailbox: commands, player events,
// build results and disconnects are all queued there in arrival order.
type GuildQueue struct {
	guildID  string
	joiner   voice.Joiner
	player   AudioPlayer
	builder  Builder
	metadata Metadata
	log      zerolog.Logger

	readyTimeout    time.Duration
	connectTimeout  time.Duration
	recoveryTimeout time.Duration
	buildTimeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	inbox  []func()
	closed bool
	signal chan struct{}

	// serializes connection setup, which blocks and so runs off the actor
	connMu sync.Mutex

	// owned by the actor goroutine
	pending       []track.Track
	current       *track.Track
	conn          voice.Conn
	volume        float64
	retrying      bool
	resource      *stream.Resource
	gen           uint64
	buildCancel   context.CancelFunc
	skipRequested bool

	notify chan PlayerStatus
}

func NewGuildQueue(opts Options) *GuildQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &GuildQueue{
		guildID:         opts.GuildID,
		joiner:          opts.Joiner,
		player:          opts.Player,
		builder:         opts.Builder,
		metadata:        opts.Metadata,
		log:             opts.Logger.With().Str("component", "queue").Str("guild", opts.GuildID).Logger(),
		readyTimeout:    orDefault(opts.ReadyTimeout, 5*time.Second),
		connectTimeout:  orDefault(opts.ConnectTimeout, 20*time.Second),
		recoveryTimeout: orDefault(opts.RecoveryTimeout, 5*time.Second),
		buildTimeout:    orDefault(opts.BuildTimeout, time.Minute),
		ctx:             ctx,
		cancel:          cancel,
		signal:          make(chan struct{}, 1),
		volume:          1,
		notify:          make(chan PlayerStatus, 10),
	}
	if opts.Volume != nil {
		q.volume = clampVolume(*opts.Volume)
	}

	q.wg.Add(2)
	go q.loop()
	go q.forward()
	return q
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (q *GuildQueue) GuildID() string {
	return q.guildID
}

// Notifications delivers user facing status changes. Statuses are dropped
// when nobody reads them.
func (q *GuildQueue) Notifications() <-chan PlayerStatus {
	return q.notify
}

// Done is closed once Close has started.
func (q *GuildQueue) Done() <-chan struct{} {
	return q.ctx.Done()
}

// Close tears the queue down: playback stops, the voice connection is
// destroyed and every goroutine the queue started has exited on return.
func (q *GuildQueue) Close() {
	q.call(func() {
		q.stop()
		q.dropConn()
	})

	q.mu.Lock()
	q.closed = true
	q.inbox = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	q.player.Close()
}

// Mailbox

func (q *GuildQueue) post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.inbox = append(q.inbox, fn)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// call runs fn on the actor and waits for it. It reports false when the
// queue was closed before fn ran.
func (q *GuildQueue) call(fn func()) bool {
	done := make(chan struct{})
	if !q.post(func() {
		fn()
		close(done)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-q.ctx.Done():
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func (q *GuildQueue) loop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.signal:
		}
		for {
			q.mu.Lock()
			if len(q.inbox) == 0 {
				q.mu.Unlock()
				break
			}
			fn := q.inbox[0]
			q.inbox[0] = nil
			q.inbox = q.inbox[1:]
			q.mu.Unlock()

			fn()
		}
	}
}

// forward moves player events into the mailbox so they are ordered with
// everything else.
func (q *GuildQueue) forward() {
	defer q.wg.Done()
	events := q.player.Events()
	for {
		select {
		case <-q.ctx.Done():
			return
		case ev := <-events:
			q.post(func() { q.onPlayerEvent(ev) })
		}
	}
}

func (q *GuildQueue) emit(status PlayerStatus) {
	select {
	case q.notify <- status:
	default:
		q.log.Debug().Str("status", string(status)).Msg("status dropped")
	}
}

// Connection lifecycle

// EnsureConnected makes sure the queue has a ready connection to channelID.
// A ready connection on the same channel is kept as is.
func (q *GuildQueue) EnsureConnected(ctx context.Context, channelID string) error {
	q.connMu.Lock()
	defer q.connMu.Unlock()

	var conn voice.Conn
	if !q.call(func() { conn = q.conn }) {
		return ErrClosed
	}

	if conn != nil && conn.Status() != voice.StatusDestroyed && conn.ChannelID() == channelID {
		wctx, cancel := context.WithTimeout(ctx, q.readyTimeout)
		err := conn.WaitFor(wctx, voice.StatusReady)
		cancel()
		if err == nil {
			return nil
		}
		q.log.Warn().Err(err).Str("channel", channelID).Msg("connection not ready, reconnecting")
	}
	return q.connectLocked(ctx, channelID)
}

// Connect opens a fresh connection to channelID, replacing any existing one.
func (q *GuildQueue) Connect(ctx context.Context, channelID string) error {
	q.connMu.Lock()
	defer q.connMu.Unlock()
	return q.connectLocked(ctx, channelID)
}

func (q *GuildQueue) connectLocked(ctx context.Context, channelID string) error {
	if !q.call(q.dropConn) {
		return ErrClosed
	}

	conn, err := q.joiner.Join(q.guildID, channelID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	wctx, cancel := context.WithTimeout(ctx, q.connectTimeout)
	defer cancel()
	if err := conn.WaitFor(wctx, voice.StatusReady); err != nil {
		conn.Destroy()
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	if !q.call(func() {
		q.conn = conn
		q.player.Subscribe(conn)
	}) {
		conn.Destroy()
		return ErrClosed
	}

	q.wg.Add(1)
	go q.watchDisconnects(conn)

	q.log.Info().Str("channel", channelID).Msg("voice connected")
	return nil
}

// dropConn runs on the actor.
func (q *GuildQueue) dropConn() {
	if q.conn == nil {
		return
	}
	q.player.Subscribe(nil)
	q.conn.Destroy()
	q.conn = nil
}

func (q *GuildQueue) watchDisconnects(conn voice.Conn) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-conn.Done():
			return
		case <-conn.Disconnects():
		}

		q.log.Warn().Msg("voice connection dropped, waiting for recovery")
		if q.recovered(conn) {
			q.log.Info().Msg("voice connection recovered")
			continue
		}
		q.post(func() { q.onFatalDisconnect(conn) })
		return
	}
}

// recovered races the two signals that mean the platform is re-establishing
// the session. Either one arriving within the window counts as healed.
func (q *GuildQueue) recovered(conn voice.Conn) bool {
	ctx, cancel := context.WithTimeout(q.ctx, q.recoveryTimeout)
	defer cancel()

	results := make(chan error, 2)
	for _, s := range []voice.Status{voice.StatusSignalling, voice.StatusConnecting} {
		go func() { results <- conn.WaitFor(ctx, s) }()
	}

	healed := false
	for range 2 {
		if err := <-results; err == nil && !healed {
			healed = true
			cancel()
		}
	}
	if healed {
		return true
	}

	// both transitions may have been missed on the way back to ready
	return conn.Status() == voice.StatusReady && q.ctx.Err() == nil
}

func (q *GuildQueue) onFatalDisconnect(conn voice.Conn) {
	if q.conn != conn {
		return
	}
	q.log.Error().Msg("voice connection lost")

	q.stopBuild()
	q.current = nil
	q.retrying = false
	q.resource = nil
	q.player.Stop()
	q.player.Subscribe(nil)
	conn.Destroy()
	q.conn = nil
	q.emit(StatusDisconnected)
}

// Leave stops playback and disconnects. Pending tracks are dropped.
func (q *GuildQueue) Leave() {
	q.call(func() {
		q.stop()
		q.dropConn()
	})
}

// Queue operations

func (q *GuildQueue) Enqueue(t track.Track) {
	q.post(func() { q.enqueue(t) })
}

func (q *GuildQueue) EnqueueMany(ts []track.Track) {
	ts = append([]track.Track(nil), ts...)
	q.post(func() { q.enqueueMany(ts) })
}

// EnqueueNext puts t right after the current track. With nothing active it
// is the same as Enqueue.
func (q *GuildQueue) EnqueueNext(t track.Track) {
	q.post(func() {
		if !q.active() {
			q.enqueue(t)
			return
		}
		q.pending = append([]track.Track{t}, q.pending...)
		q.emit(StatusAdded)
	})
}

func (q *GuildQueue) EnqueueManyNext(ts []track.Track) {
	if len(ts) == 0 {
		return
	}
	ts = append([]track.Track(nil), ts...)
	q.post(func() {
		if !q.active() {
			q.enqueueMany(ts)
			return
		}
		q.pending = append(ts, q.pending...)
		q.emit(StatusAdded)
	})
}

func (q *GuildQueue) enqueue(t track.Track) {
	q.pending = append(q.pending, t)
	if q.current == nil || (q.player.Status() == stream.StatusIdle && q.buildCancel == nil) {
		q.next()
		return
	}
	q.emit(StatusAdded)
}

// enqueueMany only starts playback from an empty current slot. A queue that
// holds a current track but sits idle is left alone.
func (q *GuildQueue) enqueueMany(ts []track.Track) {
	q.pending = append(q.pending, ts...)
	if q.current == nil {
		q.next()
		return
	}
	q.emit(StatusAdded)
}

// active reports whether the current track has reached the player. A track
// still loading does not count, so play-next requests made meanwhile keep
// their arrival order.
func (q *GuildQueue) active() bool {
	return q.current != nil && q.player.Status() != stream.StatusIdle
}

// RemoveAt removes the n-th pending track, counting from 1.
func (q *GuildQueue) RemoveAt(n int) (track.Track, error) {
	var (
		removed track.Track
		err     = ErrNotFound
	)
	if !q.call(func() {
		if n < 1 || n > len(q.pending) {
			return
		}
		removed = q.pending[n-1]
		q.pending = append(q.pending[:n-1], q.pending[n:]...)
		err = nil
	}) {
		return track.Track{}, ErrClosed
	}
	return removed, err
}

// Clear empties the pending list. With all it also stops the current track.
func (q *GuildQueue) Clear(all bool) {
	q.call(func() {
		if all {
			q.stop()
			return
		}
		q.pending = nil
	})
}

// Stop is Clear(true).
func (q *GuildQueue) Stop() {
	q.Clear(true)
}

func (q *GuildQueue) stop() {
	q.pending = nil
	q.stopBuild()
	q.current = nil
	q.retrying = false
	q.resource = nil
	q.player.Stop()
	q.emit(StatusStopped)
}

func (q *GuildQueue) Pause() error {
	err := ErrNoTrackPlaying
	q.call(func() {
		if q.player.Pause() {
			err = nil
			q.emit(StatusPaused)
		}
	})
	return err
}

func (q *GuildQueue) Resume() error {
	err := ErrNoTrackPlaying
	q.call(func() {
		if q.player.Unpause() {
			err = nil
			q.emit(StatusResumed)
		}
	})
	return err
}

// Skip ends the current track. Advancing is left to the idle handler; a
// track still loading has its build cancelled and advances the same way.
func (q *GuildQueue) Skip() error {
	err := ErrNoTrackPlaying
	q.call(func() {
		if q.current == nil {
			return
		}
		if q.buildCancel != nil {
			q.skipRequested = true
			q.buildCancel()
			err = nil
		} else if q.player.Stop() {
			err = nil
		}
		if err == nil {
			q.emit(StatusSkipped)
		}
	})
	return err
}

// SetVolume stores v clamped to [0, 2] and applies it to the playing
// resource. NaN is ignored. It returns the stored volume.
func (q *GuildQueue) SetVolume(v float64) float64 {
	var out float64
	q.call(func() { out = q.setVolume(v) })
	return out
}

func (q *GuildQueue) VolUp() float64 {
	var out float64
	q.call(func() { out = q.setVolume(q.volume + VolumeStep) })
	return out
}

func (q *GuildQueue) VolDown() float64 {
	var out float64
	q.call(func() { out = q.setVolume(q.volume - VolumeStep) })
	return out
}

func (q *GuildQueue) Volume() float64 {
	var out float64
	q.call(func() { out = q.volume })
	return out
}

func (q *GuildQueue) setVolume(v float64) float64 {
	if math.IsNaN(v) {
		return q.volume
	}
	q.volume = clampVolume(v)
	if q.resource != nil {
		q.resource.SetVolume(q.volume)
	}
	return q.volume
}

func clampVolume(v float64) float64 {
	// steps of 0.1 drift in binary; keep three decimals
	v = math.Round(v*1000) / 1000
	return math.Max(MinVolume, math.Min(MaxVolume, v))
}

func (q *GuildQueue) Snapshot() Snapshot {
	var s Snapshot
	q.call(func() {
		if q.current != nil {
			cur := *q.current
			s.Current = &cur
		}
		s.Pending = append([]track.Track(nil), q.pending...)
		s.Status = q.player.Status()
		s.Volume = q.volume
		if q.resource != nil {
			s.Elapsed = q.resource.PlaybackDuration().Milliseconds()
		}
		if q.conn != nil {
			s.Connected = true
			s.ChannelID = q.conn.ChannelID()
		}
	})
	return s
}

func (q *GuildQueue) Current() *track.Track {
	return q.Snapshot().Current
}

func (q *GuildQueue) Pending() []track.Track {
	return q.Snapshot().Pending
}

// PlaybackMs is how far into the current resource playback is.
func (q *GuildQueue) PlaybackMs() int64 {
	return q.Snapshot().Elapsed
}

// Playback

// next pops the head of the pending list into the current slot, or stops
// when there is nothing left.
func (q *GuildQueue) next() {
	q.stopBuild()
	if len(q.pending) == 0 {
		q.current = nil
		q.retrying = false
		if q.resource != nil {
			q.resource = nil
			q.player.Stop()
		}
		return
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	q.play(t)
}

func (q *GuildQueue) play(t track.Track) {
	q.current = &t
	q.retrying = false
	q.startTrack()
}

// startTrack builds a resource for the current track in the background.
// The result comes back through the mailbox tagged with a generation so a
// track replaced in the meantime never starts playing.
func (q *GuildQueue) startTrack() {
	q.stopBuild()
	if q.resource != nil {
		q.resource = nil
		q.player.Stop()
	}

	gen := q.gen
	t := *q.current
	ctx, cancel := context.WithTimeout(q.ctx, q.buildTimeout)
	q.buildCancel = cancel

	q.log.Info().Str("title", t.Title).Str("url", t.URL).Bool("retry", q.retrying).Msg("loading track")

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		res, err := q.builder.Build(ctx, t.URL)
		cancel()
		if !q.post(func() { q.onBuilt(gen, res, err) }) && res != nil {
			_ = res.Close()
		}
	}()

	if q.metadata != nil && t.Duration == 0 && sources.Classify(t.URL).Kind == sources.KindPrimaryLink {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			mctx, mcancel := context.WithTimeout(q.ctx, 10*time.Second)
			defer mcancel()
			info, err := q.metadata.Video(mctx, t.URL)
			if err != nil || info.Duration <= 0 {
				return
			}
			q.post(func() { q.onDuration(gen, info.Duration) })
		}()
	}
}

// stopBuild cancels any build in flight and invalidates results still
// travelling through the mailbox.
func (q *GuildQueue) stopBuild() {
	if q.buildCancel != nil {
		q.buildCancel()
		q.buildCancel = nil
	}
	q.skipRequested = false
	q.gen++
}

func (q *GuildQueue) onBuilt(gen uint64, res *stream.Resource, err error) {
	if gen != q.gen {
		if res != nil {
			_ = res.Close()
		}
		return
	}
	q.buildCancel = nil

	if q.skipRequested {
		q.skipRequested = false
		if res != nil {
			_ = res.Close()
		}
		q.onIdle()
		return
	}

	if err != nil {
		q.onPlaybackError(err)
		return
	}

	if res.Title == "" {
		res.Title = q.current.Title
	}
	res.SetVolume(q.volume)
	q.resource = res
	q.player.Play(res)
	q.log.Info().Str("title", q.current.Title).Str("type", res.Type.String()).Msg("playing")
	q.emit(StatusPlaying)
}

func (q *GuildQueue) onDuration(gen uint64, d time.Duration) {
	if gen != q.gen || q.current == nil {
		return
	}
	q.current.Duration = d
}

func (q *GuildQueue) onPlayerEvent(ev stream.Event) {
	if ev.Resource == nil || ev.Resource != q.resource {
		return
	}
	q.resource = nil

	switch ev.Kind {
	case stream.EventIdle:
		q.onIdle()
	case stream.EventError:
		q.onPlaybackError(ev.Err)
	}
}

// onIdle is the only place the queue advances from.
func (q *GuildQueue) onIdle() {
	q.next()
}

// onPlaybackError rebuilds the current track once. A second failure for
// the same track abandons it.
func (q *GuildQueue) onPlaybackError(err error) {
	if q.current == nil {
		return
	}
	if !q.retrying {
		q.log.Warn().Err(err).Str("title", q.current.Title).Msg("playback failed, retrying")
		q.retrying = true
		q.startTrack()
		return
	}

	q.log.Error().Err(err).Str("title", q.current.Title).Msg("playback failed again, skipping")
	q.retrying = false
	q.emit(StatusError)
	q.onIdle()
}
