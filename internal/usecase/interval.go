package usecase

import "time"

// adaptiveInterval is one owner's polling state: recent stable-poll
// timestamps and the current interval.
type adaptiveInterval struct {
	history []time.Time
	current time.Duration
}

// IntervalTracker holds the per-owner adaptive polling state for the
// convoy pass. Process-local on purpose: losing it on restart only
// resets polling cadence, never correctness. Owned by a single convoy
// instance, so no locking.
type IntervalTracker struct {
	base     time.Duration
	max      time.Duration
	trackLen int
	byOwner  map[string]*adaptiveInterval
}

// NewIntervalTracker builds a tracker with the base interval, the cap
// and the number of stable polls that triggers a doubling.
func NewIntervalTracker(base, max time.Duration, trackLen int) *IntervalTracker {
	if base <= 0 {
		base = 10 * time.Second
	}
	if max <= 0 {
		max = 60 * time.Second
	}
	if trackLen <= 0 {
		trackLen = 10
	}
	return &IntervalTracker{base: base, max: max, trackLen: trackLen, byOwner: make(map[string]*adaptiveInterval)}
}

// ShouldSkip reports whether the owner's current interval has not yet
// elapsed. A first-seen owner starts its clock at now and is skipped
// until the base interval passes.
func (t *IntervalTracker) ShouldSkip(owner string, now time.Time) bool {
	st, ok := t.byOwner[owner]
	if !ok {
		st = &adaptiveInterval{history: []time.Time{now}, current: t.base}
		t.byOwner[owner] = st
	}
	last := st.history[len(st.history)-1]
	return !last.Add(st.current).Before(now)
}

// RecordChange resets the owner to aggressive polling: a price move
// means competition is active again.
func (t *IntervalTracker) RecordChange(owner string, now time.Time) {
	t.byOwner[owner] = &adaptiveInterval{history: []time.Time{now}, current: t.base}
}

// RecordStable notes a poll that required no adjustment. After trackLen
// consecutive stable polls the interval doubles, capped at max, and the
// history restarts.
func (t *IntervalTracker) RecordStable(owner string, now time.Time) {
	st, ok := t.byOwner[owner]
	if !ok {
		st = &adaptiveInterval{history: []time.Time{now}, current: t.base}
		t.byOwner[owner] = st
		return
	}
	st.history = append(st.history, now)
	if len(st.history) >= t.trackLen {
		next := 2 * st.current
		if next > t.max {
			next = t.max
		}
		t.byOwner[owner] = &adaptiveInterval{history: []time.Time{now}, current: next}
	}
}

// Current exposes the owner's polling interval, mainly for tests and
// introspection.
func (t *IntervalTracker) Current(owner string) time.Duration {
	if st, ok := t.byOwner[owner]; ok {
		return st.current
	}
	return t.base
}
