// /internal/music/player/registry.go
package player

import "sync"

// Factory builds the queue for a guild seen for the first time.
type Factory func(guildID string) *GuildQueue

// Registry hands out one GuildQueue per guild. Queues are created on first
// use and live until Close.
type Registry struct {
	mu      sync.Mutex
	queues  map[string]*GuildQueue
	factory Factory
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		queues:  make(map[string]*GuildQueue),
		factory: factory,
	}
}

// Get returns the queue for guildID, creating it if needed.
func (r *Registry) Get(guildID string) *GuildQueue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[guildID]; ok {
		return q
	}
	q := r.factory(guildID)
	r.queues[guildID] = q
	return q
}

// Lookup returns the queue for guildID without creating one.
func (r *Registry) Lookup(guildID string) (*GuildQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[guildID]
	return q, ok
}

// Close shuts down every queue.
func (r *Registry) Close() {
	r.mu.Lock()
	queues := make([]*GuildQueue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.queues = make(map[string]*GuildQueue)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Close()
		}()
	}
	wg.Wait()
}
