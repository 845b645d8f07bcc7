package session

import (
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"labsite/internal/simulation"
)

var ErrRegistryClosed = errors.New("session registry closed")

// Factory builds the controller for one site session.
type Factory func(sessionID string) (*simulation.Controller, error)

// Registry keeps one simulation controller per site session. Controllers
// leaving the registry by eviction, expiry or shutdown are closed. The TTL
// is idle time: every Get or Peek of a live session restarts it.
type Registry struct {
	factory Factory
	cache   *expirable.LRU[string, *entry]

	mu       sync.Mutex
	closed   bool
	closings sync.WaitGroup
}

func NewRegistry(factory Factory, maxSessions int, ttl time.Duration) *Registry {
	if maxSessions <= 0 {
		maxSessions = 1024
	}
	r := &Registry{factory: factory}
	r.cache = expirable.NewLRU[string, *entry](maxSessions, r.onEvict, ttl)
	return r
}

type entry struct {
	controller *simulation.Controller
	evicted    atomic.Bool
}

// onEvict runs under the LRU lock; closing waits for the stream reader, so
// it happens off that lock.
func (r *Registry) onEvict(sessionID string, e *entry) {
	e.evicted.Store(true)
	r.closings.Add(1)
	go func() {
		defer r.closings.Done()
		if err := e.controller.Close(); err != nil && !errors.Is(err, simulation.ErrClosed) {
			log.Printf("session registry: close controller session=%s err=%v", sessionID, err)
		}
	}()
}

// Get returns the session's controller, creating it on first use.
func (r *Registry) Get(sessionID string) (*simulation.Controller, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if c, ok := r.touch(sessionID); ok {
		return c, nil
	}
	c, err := r.factory(sessionID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(sessionID, &entry{controller: c})
	return c, nil
}

// Peek returns an existing controller without creating one.
func (r *Registry) Peek(sessionID string) (*simulation.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touch(strings.TrimSpace(sessionID))
}

// touch looks up a live session and restarts its TTL. The LRU does not
// refresh expiry on Get, so the entry is re-added. An entry that expired
// between the two calls is dropped instead of being revived closed.
func (r *Registry) touch(sessionID string) (*simulation.Controller, bool) {
	e, ok := r.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	r.cache.Add(sessionID, e)
	if e.evicted.Load() {
		r.cache.Remove(sessionID)
		return nil, false
	}
	return e.controller, true
}

func (r *Registry) Remove(sessionID string) {
	r.cache.Remove(strings.TrimSpace(sessionID))
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close disposes every controller and waits until their streams are closed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cache.Purge()
	r.closings.Wait()
}
