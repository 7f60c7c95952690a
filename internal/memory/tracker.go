// Package memory tracks the Arrow buffers a pipeline run allocates.
package memory

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Tracker is an Arrow allocator that counts live and peak bytes handed out by
// its parent. It is safe for concurrent use.
type Tracker struct {
	parent memory.Allocator
	live   atomic.Int64
	peak   atomic.Int64
	allocs atomic.Int64
}

var _ memory.Allocator = (*Tracker)(nil)

// NewTracker wraps parent; nil uses the Go allocator.
func NewTracker(parent memory.Allocator) *Tracker {
	if parent == nil {
		parent = memory.NewGoAllocator()
	}
	return &Tracker{parent: parent}
}

func (t *Tracker) Allocate(size int) []byte {
	b := t.parent.Allocate(size)
	t.allocs.Add(1)
	t.grow(int64(len(b)))
	return b
}

func (t *Tracker) Reallocate(size int, b []byte) []byte {
	old := len(b)
	nb := t.parent.Reallocate(size, b)
	t.grow(int64(len(nb) - old))
	return nb
}

func (t *Tracker) Free(b []byte) {
	t.live.Add(-int64(len(b)))
	t.parent.Free(b)
}

func (t *Tracker) grow(delta int64) {
	live := t.live.Add(delta)
	for {
		peak := t.peak.Load()
		if live <= peak || t.peak.CompareAndSwap(peak, live) {
			return
		}
	}
}

// Live returns the bytes allocated and not yet freed.
func (t *Tracker) Live() int64 { return t.live.Load() }

// Peak returns the highest Live value seen.
func (t *Tracker) Peak() int64 { return t.peak.Load() }

// Allocations returns the number of Allocate calls.
func (t *Tracker) Allocations() int64 { return t.allocs.Load() }
