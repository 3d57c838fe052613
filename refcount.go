// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import "sync/atomic"

// refCountMax is a sanity ceiling on clones. A driver that reaches sixteen
// million outstanding handles to one resource is leaking them in a loop;
// aborting there turns a runaway-clone bug into a crash at the source
// instead of an unbounded leak.
const refCountMax = 1 << 24

// RefCount counts the user-visible handles to one resource.
//
// All clones of a RefCount share a single heap-allocated counter. The count
// says nothing about GPU-side liveness: a resource can sit in its slot with
// zero outstanding user references while submitted GPU work still uses it,
// which is exactly the distinction LifeGuard is built on.
//
// The zero RefCount is invalid; counts originate from NewRefCount (via
// LifeGuard) and Clone.
type RefCount struct {
	n *atomic.Int64
}

// NewRefCount allocates a shared counter with an initial count of 1.
func NewRefCount() RefCount {
	n := new(atomic.Int64)
	n.Store(1)
	return RefCount{n: n}
}

// Clone returns a new handle on the same counter, incrementing it.
// Clone panics above the sanity ceiling; that is a bug detector, not a
// recoverable condition.
func (rc RefCount) Clone() RefCount {
	if rc.n.Add(1) > refCountMax {
		panic("hub: refcount exceeded its sanity ceiling")
	}
	return RefCount{n: rc.n}
}

// Release decrements the counter and reports whether this was the final
// release. Releasing more times than the counter was cloned panics:
// a double release is a lifetime bug that must not be absorbed silently.
func (rc RefCount) Release() bool {
	v := rc.n.Add(-1)
	if v < 0 {
		panic("hub: refcount released more times than acquired")
	}
	return v == 0
}

// Load returns the current count, for diagnostics and tests.
func (rc RefCount) Load() int64 {
	return rc.n.Load()
}

// MultiRefCount is a manually inc/dec'd reference count for resources that
// are shared structurally rather than through user handles (bind group
// layouts deduplicated across pipelines, for example). Unlike RefCount it
// is a single embedded counter, not a cloneable handle.
type MultiRefCount struct {
	n atomic.Int64
}

// NewMultiRefCount returns a counter initialized to 1.
func NewMultiRefCount() *MultiRefCount {
	m := &MultiRefCount{}
	m.n.Store(1)
	return m
}

// Inc adds a reference.
func (m *MultiRefCount) Inc() {
	m.n.Add(1)
}

// DecAndCheckEmpty removes a reference and reports whether it was the last.
func (m *MultiRefCount) DecAndCheckEmpty() bool {
	return m.n.Add(-1) == 0
}

// optionalRefCount is an atomically take-able slot for a RefCount. It backs
// LifeGuard's user reference: present until the user drops their last
// handle, then taken exactly once and never re-armed.
type optionalRefCount struct {
	p atomic.Pointer[atomic.Int64]
}

func (o *optionalRefCount) store(rc RefCount) {
	o.p.Store(rc.n)
}

// peek returns the held RefCount without taking it. The caller must not
// Release the result directly; Clone it to obtain an owned handle.
func (o *optionalRefCount) peek() (RefCount, bool) {
	n := o.p.Load()
	if n == nil {
		return RefCount{}, false
	}
	return RefCount{n: n}, true
}

// take removes and returns the held RefCount. At most one caller ever
// observes ok == true.
func (o *optionalRefCount) take() (RefCount, bool) {
	n := o.p.Swap(nil)
	if n == nil {
		return RefCount{}, false
	}
	return RefCount{n: n}, true
}

func (o *optionalRefCount) isSome() bool {
	return o.p.Load() != nil
}
