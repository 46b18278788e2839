package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// FetchTag identifies one page fetch. A result is only committed while its
// tag is still the tracker's current tag.
type FetchTag struct {
	Generation   uint64
	RequestID    string
	CollectionID string
	Page         int
	PageSize     int
}

// FetchTracker tags page fetches and cancels the one in flight when a newer
// fetch begins. All methods are safe for concurrent access.
type FetchTracker struct {
	mu         sync.Mutex
	generation uint64
	current    FetchTag
	cancel     context.CancelFunc
}

// NewFetchTracker creates a tracker with no fetch in flight.
func NewFetchTracker() *FetchTracker {
	return &FetchTracker{}
}

// Begin cancels any in-flight fetch and returns a derived context plus the
// tag for the new fetch.
func (t *FetchTracker) Begin(parent context.Context, collectionID string, page, pageSize int) (context.Context, FetchTag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	t.generation++
	t.current = FetchTag{
		Generation:   t.generation,
		RequestID:    uuid.New().String(),
		CollectionID: collectionID,
		Page:         page,
		PageSize:     pageSize,
	}
	t.cancel = cancel
	return ctx, t.current
}

// IsCurrent reports whether tag belongs to the most recent fetch.
func (t *FetchTracker) IsCurrent(tag FetchTag) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation != 0 && tag.Generation == t.generation
}

// Finish releases the context of a completed fetch. It is a no-op for stale tags.
func (t *FetchTracker) Finish(tag FetchTag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tag.Generation != t.generation || t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
}

// CancelAll cancels the in-flight fetch and invalidates every issued tag.
func (t *FetchTracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.generation++
	t.current = FetchTag{}
}

// InFlight reports whether a fetch is still running.
func (t *FetchTracker) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
