package signal

import (
	"context"
	"sync"
)

// Tracked is the state of the user's current selection.
type Tracked struct {
	Active     bool
	Source     SourceType
	Identifier string
	Position   *Position // nil when not currently located
	Reading    *SignalReading
}

// Located reports whether the tracked signal has a position this cycle.
func (t Tracked) Located() bool {
	return t.Active && t.Position != nil
}

// Tracker holds at most one selected signal and resolves its position from
// the latest store contents. It is either idle or tracking a
// (source, identifier) pair.
type Tracker struct {
	mu    sync.RWMutex
	state Tracked
}

// NewTracker creates an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Select starts tracking a signal. Any previous position is discarded until
// the next Resolve.
func (t *Tracker) Select(src SourceType, identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Tracked{Active: true, Source: src, Identifier: identifier}
}

// Clear stops tracking.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Tracked{}
}

// Current returns the tracked state as of the last Resolve.
func (t *Tracker) Current() Tracked {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Resolve recomputes the tracked position from snap. A target that is no
// longer present loses its position instead of keeping a stale one.
func (t *Tracker) Resolve(snap Snapshot) Tracked {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Active {
		return t.state
	}

	t.state.Reading = nil
	t.state.Position = nil
	if match := Find(snap.Batch(t.state.Source), t.state.Identifier); match != nil {
		rd := *match
		t.state.Reading = &rd
		if rd.Estimated != nil {
			p := *rd.Estimated
			t.state.Position = &p
		}
	}
	return t.state
}

// Follow resolves after every publish until ctx is done.
func (t *Tracker) Follow(ctx context.Context, store *Store) {
	id, ch := store.Subscribe()
	defer store.Unsubscribe(id)

	t.Resolve(store.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			t.Resolve(store.Snapshot())
		}
	}
}

// Find returns the reading for identifier, preferring one with an estimated
// position when several observers reported it.
func Find(readings []SignalReading, identifier string) *SignalReading {
	var found *SignalReading
	for i := range readings {
		r := &readings[i]
		if r.Identifier != identifier {
			continue
		}
		if r.Estimated != nil {
			return r
		}
		if found == nil {
			found = r
		}
	}
	return found
}
