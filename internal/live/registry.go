package live

import (
	"errors"
	"sync"
	"time"

	"sms-gateway-dashboard/internal/metrics"
)

// ErrDuplicateCallback is returned when a callback id is already pending
var ErrDuplicateCallback = errors.New("callback id already pending")

type pending struct {
	clientID string
	timer    *time.Timer
	expired  chan struct{}
}

// Registry tracks which client is waiting for each callback id. Entries
// disappear when resolved or when their timeout fires.
type Registry struct {
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*pending
}

// NewRegistry creates a registry whose entries expire after timeout
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		timeout: timeout,
		entries: make(map[string]*pending),
	}
}

// Timeout returns the default entry lifetime
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// Register records that clientID waits for callbackID. A zero timeout uses
// the registry default. The returned channel is closed if the entry expires
// before Resolve is called.
func (r *Registry) Register(callbackID, clientID string, timeout time.Duration) (<-chan struct{}, error) {
	if timeout <= 0 {
		timeout = r.timeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[callbackID]; ok {
		return nil, ErrDuplicateCallback
	}

	p := &pending{clientID: clientID, expired: make(chan struct{})}
	p.timer = time.AfterFunc(timeout, func() {
		r.mu.Lock()
		current, ok := r.entries[callbackID]
		if ok && current == p {
			delete(r.entries, callbackID)
			metrics.LivePending.Dec()
		}
		r.mu.Unlock()
		if ok && current == p {
			close(p.expired)
		}
	})
	r.entries[callbackID] = p
	metrics.LivePending.Inc()
	return p.expired, nil
}

// Resolve removes the entry and returns the waiting client. ok is false when
// the entry already expired or never existed.
func (r *Registry) Resolve(callbackID string) (clientID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, found := r.entries[callbackID]
	if !found {
		return "", false
	}
	p.timer.Stop()
	delete(r.entries, callbackID)
	metrics.LivePending.Dec()
	return p.clientID, true
}

// Pending returns the number of unresolved entries
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
