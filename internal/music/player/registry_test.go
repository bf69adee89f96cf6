package player

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreatesOncePerGuild(t *testing.T) {
	var created atomic.Int32
	r := NewRegistry(func(guildID string) *GuildQueue {
		created.Add(1)
		return NewGuildQueue(Options{
			GuildID: guildID,
			Joiner:  &fakeJoiner{},
			Player:  newFakePlayer(),
			Builder: newFakeBuilder(),
			Logger:  zerolog.Nop(),
		})
	})
	defer r.Close()

	_, ok := r.Lookup("g1")
	assert.False(t, ok)

	var wg sync.WaitGroup
	got := make([]*GuildQueue, 8)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = r.Get("g1")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, q := range got {
		assert.Same(t, got[0], q)
	}

	other := r.Get("g2")
	assert.NotSame(t, got[0], other)
	assert.Equal(t, "g2", other.GuildID())

	q, ok := r.Lookup("g1")
	require.True(t, ok)
	assert.Same(t, got[0], q)
}
