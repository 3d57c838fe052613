// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"sync"

	"github.com/gogpu/hub/id"
)

// ReclaimQueue defers physical destruction of dropped resources until the
// GPU has finished with them.
//
// When the user drops their last handle, DropWithLifeGuard takes the
// resource out of the user-liveness axis but leaves its slot occupied; the
// driver pushes the result here. Reap then moves every entry whose last
// recorded submission has completed through the final transitions: it
// unregisters the slot, releases the taken user reference, destroys the raw
// backend object, and hands the value back for any remaining bookkeeping.
type ReclaimQueue[T Resource] struct {
	mu      sync.Mutex
	pending []reclaimEntry[T]
}

type reclaimEntry[T Resource] struct {
	id             id.ID[T]
	refCount       RefCount
	lastSubmission SubmissionIndex
}

// Defer queues a dropped resource for destruction once lastSubmission
// completes.
func (q *ReclaimQueue[T]) Defer(i id.ID[T], d Dropped[T]) {
	q.mu.Lock()
	q.pending = append(q.pending, reclaimEntry[T]{
		id:             i,
		refCount:       d.RefCount,
		lastSubmission: d.LastSubmission,
	})
	q.mu.Unlock()
}

// Pending returns the number of queued entries.
func (q *ReclaimQueue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Reap destroys every queued resource whose last submission is at or below
// completed, unregistering it from r, and returns the reclaimed values.
// Entries the GPU may still reference stay queued.
func (q *ReclaimQueue[T]) Reap(r *Registry[T], completed SubmissionIndex) []T {
	q.mu.Lock()
	var ready []reclaimEntry[T]
	remaining := q.pending[:0]
	for _, e := range q.pending {
		if e.lastSubmission <= completed {
			ready = append(ready, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	// The filter compacts in place; zero the moved-out tail so reaped
	// entries (and their counter pointers) are not retained by the
	// backing array.
	clear(q.pending[len(remaining):])
	q.pending = remaining
	q.mu.Unlock()

	log := Logger()
	reclaimed := make([]T, 0, len(ready))
	for _, e := range ready {
		e.refCount.Release()
		value, hadValue, err := r.Unregister(e.id)
		if err != nil {
			log.Error("reclaim of an unknown resource ID", "id", e.id, "err", err)
			continue
		}
		if !hadValue {
			continue
		}
		if d, ok := any(value).(rawDestroyer); ok {
			d.DestroyRaw()
		}
		log.Debug("reclaimed resource", "id", e.id, "lastSubmission", uint64(e.lastSubmission))
		reclaimed = append(reclaimed, value)
	}
	return reclaimed
}

// ReapCompleted is Reap driven by a CompletionSource.
func (q *ReclaimQueue[T]) ReapCompleted(r *Registry[T], src CompletionSource) []T {
	return q.Reap(r, src.CompletedSubmission())
}
