package breaker

import (
	"sync"
	"time"
)

// State of one competitor's circuit.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker tracks consecutive scrape failures per competitor and
// short-circuits attempts against targets that keep failing.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu      sync.RWMutex
	entries map[string]*entry

	// injectable for tests
	now func() time.Time
}

type entry struct {
	mu        sync.Mutex
	state     State
	failures  int
	openUntil time.Time
}

// New creates a breaker that opens after threshold consecutive failures and
// stays open for cooldown.
func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		entries:   make(map[string]*entry),
		now:       time.Now,
	}
}

func (b *Breaker) entryFor(key string) *entry {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	if ok {
		return e
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok = b.entries[key]; ok {
		return e
	}
	e = &entry{state: StateClosed}
	b.entries[key] = e
	return e
}

// Allow reports whether a scrape attempt against key may proceed. An open
// circuit whose cooldown has elapsed transitions to half-open and lets one
// probe through.
func (b *Breaker) Allow(key string) bool {
	e := b.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateOpen:
		if b.now().Before(e.openUntil) {
			return false
		}
		e.state = StateHalfOpen
		return true
	default:
		return true
	}
}

// RecordSuccess closes the circuit and resets the failure counter.
func (b *Breaker) RecordSuccess(key string) {
	e := b.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateClosed
	e.failures = 0
	e.openUntil = time.Time{}
}

// RecordFailure counts one failure. The circuit opens when consecutive
// failures reach the threshold; a failed half-open probe re-opens it with an
// extended cooldown.
func (b *Breaker) RecordFailure(key string) {
	e := b.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failures++
	if e.state == StateHalfOpen {
		e.state = StateOpen
		e.openUntil = b.now().Add(2 * b.cooldown)
		return
	}
	if e.failures >= b.threshold {
		e.state = StateOpen
		e.openUntil = b.now().Add(b.cooldown)
	}
}

// Snapshot describes one circuit's current state.
type Snapshot struct {
	State     State
	Failures  int
	OpenUntil time.Time
}

// State returns the current snapshot for key.
func (b *Breaker) State(key string) Snapshot {
	e := b.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{State: e.state, Failures: e.failures, OpenUntil: e.openUntil}
}
