// /internal/music/voice/machine.go
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/keshon/songbird/internal/music/stream"
)

// Status is the lifecycle state of one voice connection.
type Status int

const (
	StatusSignalling Status = iota
	StatusConnecting
	StatusReady
	StatusDisconnected
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusSignalling:
		return "signalling"
	case StatusConnecting:
		return "connecting"
	case StatusReady:
		return "ready"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "destroyed"
	}
}

var (
	// ErrTimeout is returned by WaitFor when the state was not reached in time.
	ErrTimeout = errors.New("voice state wait timed out")
	// ErrDestroyed is returned by WaitFor once the connection is gone for good.
	ErrDestroyed = errors.New("voice connection destroyed")
)

// Conn is a voice connection as the playback queue sees it.
type Conn interface {
	stream.Sink
	ChannelID() string
	Status() Status
	WaitFor(ctx context.Context, s Status) error
	// Disconnects signals every drop into StatusDisconnected.
	Disconnects() <-chan struct{}
	// Done is closed once the connection is destroyed.
	Done() <-chan struct{}
	Destroy()
}

// Joiner opens voice connections.
type Joiner interface {
	Join(guildID, channelID string) (Conn, error)
}

// Machine tracks connection state and lets callers wait on it. Destroyed is
// terminal.
type Machine struct {
	mu          sync.Mutex
	status      Status
	changed     chan struct{}
	disconnects chan struct{}
	done        chan struct{}
}

func NewMachine() *Machine {
	return &Machine{
		status:      StatusSignalling,
		changed:     make(chan struct{}),
		disconnects: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Set moves to s. It reports whether the state changed.
func (m *Machine) Set(s Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusDestroyed || m.status == s {
		return false
	}
	m.status = s
	close(m.changed)
	m.changed = make(chan struct{})

	switch s {
	case StatusDisconnected:
		select {
		case m.disconnects <- struct{}{}:
		default:
		}
	case StatusDestroyed:
		close(m.done)
	}
	return true
}

// WaitFor blocks until the machine is in state s. It fails with ErrDestroyed
// when the machine is destroyed first and with ErrTimeout when ctx ends.
func (m *Machine) WaitFor(ctx context.Context, s Status) error {
	for {
		m.mu.Lock()
		cur, changed := m.status, m.changed
		m.mu.Unlock()

		if cur == s {
			return nil
		}
		if cur == StatusDestroyed {
			return ErrDestroyed
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %s, still %s: %w", ErrTimeout, s, m.Status(), ctx.Err())
		case <-changed:
		}
	}
}

func (m *Machine) Disconnects() <-chan struct{} {
	return m.disconnects
}

// Done is closed once the machine is destroyed.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}
