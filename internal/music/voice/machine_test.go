package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMachineStartsSignalling(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StatusSignalling, m.Status())
	assert.NoError(t, m.WaitFor(context.Background(), StatusSignalling))
}

func TestMachineWaitFor(t *testing.T) {
	m := NewMachine()
	go func() {
		time.Sleep(5 * time.Millisecond)
		m.Set(StatusConnecting)
		m.Set(StatusReady)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.WaitFor(ctx, StatusReady))
}

func TestMachineWaitForTimeout(t *testing.T) {
	m := NewMachine()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.WaitFor(ctx, StatusReady)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMachineDestroyedIsTerminal(t *testing.T) {
	m := NewMachine()
	go func() {
		time.Sleep(5 * time.Millisecond)
		m.Set(StatusDestroyed)
	}()

	err := m.WaitFor(context.Background(), StatusReady)
	assert.ErrorIs(t, err, ErrDestroyed)

	assert.False(t, m.Set(StatusReady))
	assert.Equal(t, StatusDestroyed, m.Status())
	assert.NoError(t, m.WaitFor(context.Background(), StatusDestroyed))

	select {
	case <-m.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestMachineDisconnectSignal(t *testing.T) {
	m := NewMachine()
	m.Set(StatusReady)
	assert.True(t, m.Set(StatusDisconnected))
	assert.False(t, m.Set(StatusDisconnected))

	select {
	case <-m.Disconnects():
	default:
		t.Fatal("no disconnect signal")
	}

	select {
	case <-m.Disconnects():
		t.Fatal("repeated state must not signal twice")
	default:
	}
}

func TestStatusString(t *testing.T) {
	names := map[Status]string{
		StatusSignalling:   "signalling",
		StatusConnecting:   "connecting",
		StatusReady:        "ready",
		StatusDisconnected: "disconnected",
		StatusDestroyed:    "destroyed",
	}
	for s, want := range names {
		assert.Equal(t, want, s.String())
	}
}
