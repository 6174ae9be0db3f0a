package signal

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Store holds the latest Batch per source type. Batches are immutable, so
// Publish is a pointer swap and readers never see a partially written batch.
type Store struct {
	mu      sync.RWMutex
	batches map[SourceType]*Batch

	subMu  sync.Mutex
	subs   map[string]chan SourceType
	nextID atomic.Uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		batches: make(map[SourceType]*Batch),
		subs:    make(map[string]chan SourceType),
	}
}

// Publish replaces the batch for b.Source. The previous batch is dropped
// wholesale; nothing is merged.
func (s *Store) Publish(b Batch) {
	b.Readings = slices.Clone(b.Readings)
	stored := &b

	s.mu.Lock()
	s.batches[b.Source] = stored
	s.mu.Unlock()

	s.notify(b.Source)
}

// Snapshot returns a consistent view of the latest batch for every source.
// Batches for different sources may come from different cycles.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := make(map[SourceType]*Batch, len(s.batches))
	for src, b := range s.batches {
		view[src] = b
	}
	return Snapshot{batches: view}
}

// Batch returns the latest batch for one source.
func (s *Store) Batch(src SourceType) (Batch, bool) {
	s.mu.RLock()
	b, ok := s.batches[src]
	s.mu.RUnlock()
	if !ok {
		return Batch{}, false
	}
	cp := *b
	cp.Readings = slices.Clone(b.Readings)
	return cp, true
}

// Subscribe returns a channel that receives the source type of every
// publish. Sends never block: a subscriber that falls behind misses
// notifications, which is fine since it only needs to re-read the store.
func (s *Store) Subscribe() (string, <-chan SourceType) {
	id := fmt.Sprintf("sub-%d", s.nextID.Add(1))
	ch := make(chan SourceType, len(Sources))

	s.subMu.Lock()
	s.subs[id] = ch
	s.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (s *Store) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) notify(src SourceType) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- src:
		default:
		}
	}
}

// Snapshot is a read-only view of the Store at one instant. Accessors return
// fresh slices; the Distance and Estimated pointers inside readings are still
// shared and must not be written through.
type Snapshot struct {
	batches map[SourceType]*Batch
}

// Batch returns the readings for one source, or nil if it never published.
func (s Snapshot) Batch(src SourceType) []SignalReading {
	if b, ok := s.batches[src]; ok {
		return slices.Clone(b.Readings)
	}
	return nil
}

// All flattens every batch in the fixed order of Sources.
func (s Snapshot) All() []SignalReading {
	n := 0
	for _, b := range s.batches {
		n += len(b.Readings)
	}
	out := make([]SignalReading, 0, n)
	for _, src := range Sources {
		if b, ok := s.batches[src]; ok {
			out = append(out, b.Readings...)
		}
	}
	return out
}

// Count returns the total number of readings across all sources.
func (s Snapshot) Count() int {
	n := 0
	for _, b := range s.batches {
		n += len(b.Readings)
	}
	return n
}

// CountBySource returns the reading count per source type.
func (s Snapshot) CountBySource() map[SourceType]int {
	out := make(map[SourceType]int, len(s.batches))
	for src, b := range s.batches {
		out[src] = len(b.Readings)
	}
	return out
}
