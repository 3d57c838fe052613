// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"errors"
	"testing"
)

// fakeFence is a CompletionSource under test control.
type fakeFence struct {
	completed SubmissionIndex
}

func (f *fakeFence) CompletedSubmission() SubmissionIndex { return f.completed }

func TestReclaimQueueWaitsForCompletion(t *testing.T) {
	r := newTestRegistry()
	res := newTestResource("uniform buffer")
	res.life.UseAt(5)
	i := r.Prepare().Assign(res)

	var q ReclaimQueue[*testResource]
	dropped, ok := r.DropWithLifeGuard(i)
	if !ok {
		t.Fatal("drop failed")
	}
	q.Defer(i, dropped)
	if got := q.Pending(); got != 1 {
		t.Fatalf("Pending = %d, want 1", got)
	}

	// Submission 5 has not completed; nothing may be reclaimed.
	if got := q.Reap(r, 4); len(got) != 0 {
		t.Fatalf("Reap(4) reclaimed %d resources, want 0", len(got))
	}
	if !r.Contains(i) {
		t.Fatal("slot freed before its submission completed")
	}
	if res.destroyed {
		t.Fatal("raw object destroyed before its submission completed")
	}

	// Now the GPU is done with it.
	reclaimed := q.Reap(r, 5)
	if len(reclaimed) != 1 || reclaimed[0] != res {
		t.Fatalf("Reap(5) = %v, want the dropped resource", reclaimed)
	}
	if !res.destroyed {
		t.Error("raw object not destroyed on reclaim")
	}
	if q.Pending() != 0 {
		t.Error("entry still pending after reclaim")
	}

	var vacant *VacantError
	if _, err := r.Get(i); !errors.As(err, &vacant) {
		t.Errorf("Get after reclaim = %v, want VacantError", err)
	}
}

func TestReclaimQueuePartialReap(t *testing.T) {
	r := newTestRegistry()
	var q ReclaimQueue[*testResource]

	early := newTestResource("early")
	early.life.UseAt(1)
	earlyID := r.Prepare().Assign(early)

	late := newTestResource("late")
	late.life.UseAt(10)
	lateID := r.Prepare().Assign(late)

	d1, _ := r.DropWithLifeGuard(earlyID)
	q.Defer(earlyID, d1)
	d2, _ := r.DropWithLifeGuard(lateID)
	q.Defer(lateID, d2)

	reclaimed := q.Reap(r, 3)
	if len(reclaimed) != 1 || reclaimed[0] != early {
		t.Fatalf("Reap(3) = %v, want only the early resource", reclaimed)
	}
	if q.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", q.Pending())
	}
	if !r.Contains(lateID) {
		t.Error("late resource unregistered too soon")
	}
}

// TestReclaimQueueReleasesReapedEntries checks that reaping compacts the
// pending list without leaving stale copies of reaped entries in the
// backing array, where they would pin the taken refcounts.
func TestReclaimQueueReleasesReapedEntries(t *testing.T) {
	r := newTestRegistry()
	var q ReclaimQueue[*testResource]

	early := newTestResource("early")
	early.life.UseAt(1)
	earlyID := r.Prepare().Assign(early)

	late := newTestResource("late")
	late.life.UseAt(10)
	lateID := r.Prepare().Assign(late)

	d1, _ := r.DropWithLifeGuard(earlyID)
	q.Defer(earlyID, d1)
	d2, _ := r.DropWithLifeGuard(lateID)
	q.Defer(lateID, d2)

	q.Reap(r, 5)

	spare := q.pending[len(q.pending):cap(q.pending)]
	for n, e := range spare {
		if e != (reclaimEntry[*testResource]{}) {
			t.Errorf("backing array slot %d still holds a reaped entry: %+v", n, e)
		}
	}
}

func TestReclaimQueueReapCompleted(t *testing.T) {
	r := newTestRegistry()
	var q ReclaimQueue[*testResource]

	res := newTestResource("")
	res.life.UseAt(2)
	i := r.Prepare().Assign(res)
	d, _ := r.DropWithLifeGuard(i)
	q.Defer(i, d)

	fence := &fakeFence{completed: 1}
	if got := q.ReapCompleted(r, fence); len(got) != 0 {
		t.Fatalf("reclaimed %d resources at fence 1, want 0", len(got))
	}

	fence.completed = 2
	if got := q.ReapCompleted(r, fence); len(got) != 1 {
		t.Fatalf("reclaimed %d resources at fence 2, want 1", len(got))
	}
}

// TestReclaimNeverUsedResource covers a drop before any submission: the
// recorded index is zero, so any completion state reclaims it immediately.
func TestReclaimNeverUsedResource(t *testing.T) {
	r := newTestRegistry()
	var q ReclaimQueue[*testResource]

	res := newTestResource("never submitted")
	i := r.Prepare().Assign(res)
	d, _ := r.DropWithLifeGuard(i)
	q.Defer(i, d)

	if got := q.Reap(r, 0); len(got) != 1 {
		t.Fatalf("Reap(0) reclaimed %d resources, want 1", len(got))
	}
}
