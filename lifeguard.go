// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"sync/atomic"

	"github.com/gogpu/hub/id"
)

// SubmissionIndex is the sequence number of a queue submission. Submissions
// are fenced and numbered sequentially, so once the completion subsystem
// reports index N done, every resource whose last recorded use is at or
// below N is no longer referenced by the GPU.
type SubmissionIndex uint64

// CompletionSource reports GPU progress. It is the only thing hub needs
// from the fence/queue subsystem: a translation of "last recorded
// submission" into a destroy-now/destroy-later decision. How completion is
// detected (fences, semaphores, polling) is the implementer's business.
type CompletionSource interface {
	// CompletedSubmission returns the highest submission index known to
	// have finished on the GPU.
	CompletedSubmission() SubmissionIndex
}

// LifeGuard decides when it is safe to free one resource.
//
// A resource may need to be retained for several reasons: the user may
// still hold a handle to it, other resources may depend on it (a texture
// view's backing texture), or it may be referenced by submitted GPU work
// that has not finished. LifeGuard tracks the first and last of these; the
// middle one rides on RefCount clones held inside Stored references.
//
// The liveness progression is orthogonal to slot occupancy:
//
//	live (user refcount held) -> user released (TakeRefCount) ->
//	reclaimable (completed >= LifeCount) -> destroyed
//
// A LifeGuard holds at most one live user reference; once taken it cannot
// be re-armed.
type LifeGuard struct {
	// refCount is the user's reference. Created with the guard, taken
	// when the user drops the resource. Stored values hold clones of it.
	refCount optionalRefCount

	// submissionIndex is the index of the last queue submission in which
	// the resource was used.
	submissionIndex atomic.Uint64

	// Label is the human-readable name from the resource's descriptor.
	Label string
}

// NewLifeGuard creates a guard whose user reference is live with count 1.
func NewLifeGuard(label string) *LifeGuard {
	lg := &LifeGuard{Label: label}
	lg.refCount.store(NewRefCount())
	return lg
}

// AddRef clones the held user reference, for storing alongside a
// cross-resource ID. Calling AddRef after the reference has been taken is
// invalid and panics.
func (lg *LifeGuard) AddRef() RefCount {
	rc, ok := lg.refCount.peek()
	if !ok {
		panic("hub: AddRef on a released LifeGuard")
	}
	return rc.Clone()
}

// UseAt records that the queue submission with the given index referenced
// this resource. It returns whether a user handle was still outstanding at
// that moment.
func (lg *LifeGuard) UseAt(submission SubmissionIndex) bool {
	lg.submissionIndex.Store(uint64(submission))
	return lg.refCount.isSome()
}

// LifeCount returns the highest recorded submission index. Compare it
// against a CompletionSource to decide destruction timing.
func (lg *LifeGuard) LifeCount() SubmissionIndex {
	return SubmissionIndex(lg.submissionIndex.Load())
}

// TakeRefCount removes and returns the user reference. At most one caller
// ever observes ok == true; afterwards the guard is permanently released.
func (lg *LifeGuard) TakeRefCount() (RefCount, bool) {
	return lg.refCount.take()
}

// IsReleased reports whether the user reference has been taken.
func (lg *LifeGuard) IsReleased() bool {
	return !lg.refCount.isSome()
}

// Stored pairs a validated ID with a clone of the target's user RefCount.
// Higher layers hold Stored values for cross-resource references (a bind
// group referencing its buffers, say) so they can use the ID without
// re-validating the epoch on every access: the clone keeps the target's
// user axis alive.
//
// The holder must Release the RefCount when the reference is dropped.
type Stored[T any] struct {
	Value    id.ID[T]
	RefCount RefCount
}
