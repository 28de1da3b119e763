package status

import (
	"sync"
	"time"
)

// Tracker remembers the most recent Status and detects state changes.
// It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	last   Status
	lastAt time.Time
	seen   bool
	now    func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: func() time.Time { return time.Now().UTC() }}
}

// Observe records s and reports a Transition if the state differs from the
// previous observation. The first observation is a transition from UNKNOWN.
func (t *Tracker) Observe(s Status) (Transition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	tr, changed := t.compare(s, now)
	t.commit(s, now)
	return tr, changed
}

// Pending reports the Transition that observing s would produce without
// recording it. Follow it with Commit once the transition has been handled.
func (t *Tracker) Pending(s Status) (Transition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.compare(s, t.now())
}

// Commit records s as the most recent observation.
func (t *Tracker) Commit(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commit(s, t.now())
}

// compare must be called with t.mu held.
func (t *Tracker) compare(s Status, now time.Time) (Transition, bool) {
	from := StateUnknown
	if t.seen {
		from = t.last.State
	}

	if from == s.State {
		return Transition{}, false
	}

	return Transition{
		From:          from,
		To:            s.State,
		BufferSeconds: s.BufferSeconds,
		Raw:           s.Raw,
		ObservedAt:    now,
	}, true
}

func (t *Tracker) commit(s Status, at time.Time) {
	t.last = s
	t.lastAt = at
	t.seen = true
}

// Last returns the most recent status, when it was observed, and whether
// any status has been observed at all.
func (t *Tracker) Last() (Status, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.lastAt, t.seen
}
