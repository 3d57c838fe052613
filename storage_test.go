// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hub/id"
)

// reserve grows the arena one index at a time, the way Prepare does.
func reserve(t *testing.T, s *storage[string], upTo id.Index) {
	t.Helper()
	for i := s.maxIndex.Load(); i <= upTo; i++ {
		s.ensureIndex(i)
	}
}

func TestStorageAssignGetRoundTrip(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 0)
	s.fillValue(0, 0, "A")

	got, err := s.get(0, 0)
	if err != nil {
		t.Fatalf("get(0,0) = %v, want value", err)
	}
	if got != "A" {
		t.Errorf("get(0,0) = %q, want %q", got, "A")
	}
}

// TestStorageRecycleScenario walks one slot through reserve, assign, free
// and re-reserve at the next epoch, checking the classification of every
// lookup along the way.
func TestStorageRecycleScenario(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 0)

	s.fillValue(0, 0, "A")
	if got, err := s.get(0, 0); err != nil || got != "A" {
		t.Fatalf("get(0,0) = %q, %v; want \"A\", nil", got, err)
	}

	value, hadValue, err := s.free(0, 0)
	if err != nil || !hadValue || value != "A" {
		t.Fatalf("free(0,0) = %q, %v, %v; want \"A\", true, nil", value, hadValue, err)
	}

	var vacant *VacantError
	if _, err := s.get(0, 0); !errors.As(err, &vacant) {
		t.Fatalf("get(0,0) after free = %v, want VacantError", err)
	}

	// The identity manager recycles index 0 at epoch 1.
	s.fillValue(0, 1, "B")

	var wrong *WrongEpochError
	_, err = s.get(0, 0)
	if !errors.As(err, &wrong) {
		t.Fatalf("get(0,0) after recycle = %v, want WrongEpochError", err)
	}
	if wrong.Old != 1 || wrong.New != 0 {
		t.Errorf("WrongEpochError = {Old:%d New:%d}, want {Old:1 New:0}", wrong.Old, wrong.New)
	}

	if got, err := s.get(0, 1); err != nil || got != "B" {
		t.Errorf("get(0,1) = %q, %v; want \"B\", nil", got, err)
	}
}

func TestStoragePoisonScenario(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 0)
	s.fillError(0, 0, "device lost")

	var inErr *ResourceInErrorError
	if _, err := s.get(0, 0); !errors.As(err, &inErr) {
		t.Fatalf("get on poisoned slot = %v, want ResourceInErrorError", err)
	}
	if inErr.Message != "device lost" {
		t.Errorf("poison message = %q, want %q", inErr.Message, "device lost")
	}

	// Unregistering a poisoned slot succeeds; there is just no value.
	_, hadValue, err := s.free(0, 0)
	if err != nil {
		t.Fatalf("free of poisoned slot = %v, want success", err)
	}
	if hadValue {
		t.Error("free of poisoned slot reported a value")
	}

	var vacant *VacantError
	if _, err := s.get(0, 0); !errors.As(err, &vacant) {
		t.Errorf("get after freeing poisoned slot = %v, want VacantError", err)
	}
}

func TestStorageClassificationIdempotent(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 2)
	s.fillValue(0, 3, "x")
	s.fillError(1, 0, "boom")

	tests := []struct {
		name  string
		index id.Index
		epoch id.Epoch
	}{
		{"occupied", 0, 3},
		{"wrong epoch", 0, 1},
		{"poisoned", 1, 0},
		{"vacant", 2, 0},
		{"out of bounds", 99, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, first := s.get(tt.index, tt.epoch)
			for range 5 {
				_, again := s.get(tt.index, tt.epoch)
				if fmt.Sprint(again) != fmt.Sprint(first) {
					t.Fatalf("classification changed: %v, then %v", first, again)
				}
			}
		})
	}
}

func TestStorageContains(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 1)
	s.fillValue(0, 0, "x")
	s.fillError(1, 0, "bad")

	if !s.contains(0, 0) {
		t.Error("contains(0,0) = false, want true")
	}
	if s.contains(0, 1) {
		t.Error("contains with wrong epoch = true, want false")
	}
	if s.contains(1, 0) {
		t.Error("contains on poisoned slot = true, want false")
	}
	if s.contains(7, 0) {
		t.Error("contains on never-reserved slot = true, want false")
	}
}

func TestStorageGetUnchecked(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 0)
	s.fillValue(0, 42, "x")

	got, err := s.getUnchecked(0)
	if err != nil || got != "x" {
		t.Errorf("getUnchecked(0) = %q, %v; want \"x\", nil", got, err)
	}
}

func TestStorageOverwriteKeepsEpoch(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 0)
	s.fillValue(0, 2, "old")

	prev, hadPrev := s.overwrite(0, 2, "new")
	if !hadPrev || prev != "old" {
		t.Errorf("overwrite returned %q, %v; want \"old\", true", prev, hadPrev)
	}

	got, err := s.get(0, 2)
	if err != nil || got != "new" {
		t.Errorf("get after overwrite = %q, %v; want \"new\", nil", got, err)
	}
}

func TestStorageOverwriteRepairsPoisonedSlot(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 0)
	s.fillError(0, 0, "transient failure")

	_, hadPrev := s.overwrite(0, 0, "fixed")
	if hadPrev {
		t.Error("overwrite of poisoned slot reported a previous value")
	}
	if got, err := s.get(0, 0); err != nil || got != "fixed" {
		t.Errorf("get after repair = %q, %v; want \"fixed\", nil", got, err)
	}
}

func TestStorageBlockBoundary(t *testing.T) {
	var s storage[string]
	// Cross the first block boundary.
	reserve(t, &s, storageBlockSize)

	if s.blocks[0] == nil || s.blocks[1] == nil {
		t.Fatal("blocks 0 and 1 should both be allocated")
	}
	if s.blocks[2] != nil {
		t.Fatal("block 2 allocated eagerly; blocks must be lazy")
	}

	s.fillValue(storageBlockSize-1, 0, "last of block 0")
	s.fillValue(storageBlockSize, 0, "first of block 1")

	if got, _ := s.get(storageBlockSize-1, 0); got != "last of block 0" {
		t.Errorf("slot %d = %q", storageBlockSize-1, got)
	}
	if got, _ := s.get(storageBlockSize, 0); got != "first of block 1" {
		t.Errorf("slot %d = %q", storageBlockSize, got)
	}
}

func TestStorageNonContiguousReservationPanics(t *testing.T) {
	var s storage[string]
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on index gap")
		}
	}()
	s.ensureIndex(3)
}

func TestStorageCapacityCeiling(t *testing.T) {
	if testing.Short() {
		t.Skip("fills the whole arena")
	}
	var s storage[string]
	for i := id.Index(0); i < MaxResources; i++ {
		s.ensureIndex(i)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when exceeding the slot ceiling")
		}
	}()
	s.ensureIndex(MaxResources)
}

func TestStorageEach(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 4)
	s.fillValue(0, 0, "a")
	s.fillError(1, 0, "bad")
	s.fillValue(2, 5, "c")
	// 3 and 4 stay vacant.

	var ids []id.ID[string]
	var values []string
	s.each(gputypes.BackendVulkan, func(i id.ID[string], v string) bool {
		ids = append(ids, i)
		values = append(values, v)
		return true
	})

	if len(values) != 2 || values[0] != "a" || values[1] != "c" {
		t.Fatalf("each visited %v, want [a c]", values)
	}
	if ids[1] != id.Zip[string](2, 5, gputypes.BackendVulkan) {
		t.Errorf("each minted id %v for slot 2", ids[1])
	}

	// Early termination.
	visits := 0
	s.each(gputypes.BackendVulkan, func(id.ID[string], string) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Errorf("each after false = %d visits, want 1", visits)
	}
}

func TestStorageDrain(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 2)
	s.fillValue(0, 0, "a")
	s.fillError(1, 1, "bad")
	s.fillValue(2, 0, "c")

	var drained, poisoned int
	s.drain(0, func(_ id.ID[string], _ string, hadValue bool) {
		if hadValue {
			drained++
		} else {
			poisoned++
		}
	})
	if drained != 2 || poisoned != 1 {
		t.Fatalf("drain visited %d values and %d poisoned slots, want 2 and 1", drained, poisoned)
	}

	r := s.report()
	if r.NumOccupied != 0 || r.NumError != 0 || r.NumVacant != 3 {
		t.Errorf("report after drain = %+v, want all vacant", r)
	}
}

func TestStorageReport(t *testing.T) {
	var s storage[string]
	reserve(t, &s, 3)
	s.fillValue(0, 0, "a")
	s.fillValue(1, 0, "b")
	s.fillError(2, 0, "bad")

	r := s.report()
	want := StorageReport{NumOccupied: 2, NumVacant: 1, NumError: 1, Capacity: 4}
	if r != want {
		t.Errorf("report = %+v, want %+v", r, want)
	}
	if r.IsEmpty() {
		t.Error("report should not be empty")
	}
}

// TestStorageConcurrentSlots exercises the per-slot locking: goroutines
// hammer disjoint slots while readers present stale and current epochs.
// Run with -race.
func TestStorageConcurrentSlots(t *testing.T) {
	var s storage[string]
	const slots = 64
	reserve(t, &s, slots-1)
	for i := id.Index(0); i < slots; i++ {
		s.fillValue(i, 0, "seed")
	}

	var wg sync.WaitGroup
	for i := id.Index(0); i < slots; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				s.overwrite(i, 0, "updated")
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				if _, err := s.get(i, 0); err != nil {
					t.Errorf("get(%d,0) = %v", i, err)
					return
				}
				s.contains(i, 1)
			}
		}()
	}
	wg.Wait()
}
