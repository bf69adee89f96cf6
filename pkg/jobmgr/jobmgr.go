// Package jobmgr runs named background jobs with cancellation and keeps
// track of the ones still running.
//
//	jm := jobmgr.NewManager(ctx, log)
//	_ = jm.StartAsync("sync:123", func(ctx context.Context) error {
//	    // work until ctx is cancelled
//	    return nil
//	})
//	jm.StopAll()
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var ErrRunning = errors.New("job is already running")
var ErrNotRunning = errors.New("job is not running")

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager is safe for concurrent use. Jobs inherit the context given to
// NewManager.
type Manager struct {
	ctx context.Context
	log zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

func NewManager(ctx context.Context, log zerolog.Logger) *Manager {
	return &Manager{
		ctx:  ctx,
		log:  log.With().Str("component", "jobs").Logger(),
		jobs: make(map[string]*job),
	}
}

// StartSync runs a job in the calling goroutine.
func (m *Manager) StartSync(name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(m.ctx)
	defer cancel()
	if err := runner(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// StartAsync runs a job in its own goroutine. A name can only be running
// once; the entry is removed when the job returns.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrRunning)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer close(j.done)
		defer cancel()

		m.log.Debug().Str("job", name).Msg("running")
		if err := runner(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error().Err(err).Str("job", name).Msg("job failed")
		} else {
			m.log.Debug().Str("job", name).Msg("done")
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop cancels a running job and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	if ok {
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotRunning)
	}
	j.cancel()
	<-j.done
	return nil
}

// StopAll cancels every job and waits for all of them.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for name, j := range m.jobs {
		j.cancel()
		delete(m.jobs, name)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// List returns the names of running jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// Status is a one line summary for logs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}
