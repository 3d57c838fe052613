// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hub/id"
)

const (
	// storageBlockSize is the number of slots per lazily allocated block.
	storageBlockSize = 32

	// storageMaxBlocks bounds the arena. Exceeding it is a fatal capacity
	// error: the driver has leaked or genuinely exhausted resource IDs.
	storageMaxBlocks = 256

	// MaxResources is the total slot capacity of one registry.
	MaxResources = storageBlockSize * storageMaxBlocks
)

// slotStatus tags the state of one arena slot. Exactly one status holds at
// any time.
type slotStatus uint8

const (
	slotVacant slotStatus = iota
	slotOccupied
	slotError
)

// slot is one addressable unit of the arena. The mutex guards status,
// epoch, value and errMsg together; unrelated slots never share a lock.
type slot[T any] struct {
	mu     sync.Mutex
	status slotStatus
	epoch  id.Epoch
	value  T
	errMsg string
}

// storageBlock is a fixed-size chunk of slots, allocated lazily and exactly
// once the first time an index in its range is reserved.
type storageBlock[T any] struct {
	slots [storageBlockSize]slot[T]
}

// storage is the growable slot arena behind a Registry.
//
// The block array itself never moves. A new block is published by a plain
// pointer write followed by a release-store of maxIndex; readers
// acquire-load maxIndex before touching any block pointer, so observing a
// raised high-water mark guarantees observing the block it covers. This is
// the one place the arena needs a publish-then-announce protocol; every
// per-slot transition is guarded by that slot's own lock.
type storage[T any] struct {
	blocks [storageMaxBlocks]*storageBlock[T]

	// maxIndex is the high-water mark: no slot at or above it has ever
	// been reserved. It carries no information about occupancy.
	maxIndex atomic.Uint32
}

// ensureIndex grows the arena so that index is addressable. It must be
// called under the registry's identity lock: growth is not self-serializing.
//
// Indices arrive contiguously because the identity manager reuses freed
// indices before minting fresh ones; a gap means the manager is broken.
func (s *storage[T]) ensureIndex(index id.Index) {
	max := s.maxIndex.Load()
	if index < max {
		return
	}
	if index != max {
		panic("hub: non-contiguous index reservation")
	}

	block := max / storageBlockSize
	if block >= storageMaxBlocks {
		panic("hub: too many resources allocated")
	}
	if s.blocks[block] == nil {
		s.blocks[block] = &storageBlock[T]{}
	}
	// Release-store: publishes the block pointer written above.
	s.maxIndex.Store(max + 1)
}

// slotFor bounds-checks index and returns its slot. The caller decides what
// the slot's status means; slotFor only rejects indices beyond the
// high-water mark.
func (s *storage[T]) slotFor(index id.Index) (*slot[T], error) {
	if index >= s.maxIndex.Load() {
		return nil, &VacantError{Index: index}
	}
	block := s.blocks[index/storageBlockSize]
	return &block.slots[index%storageBlockSize], nil
}

// fillValue commits a constructed value into a reserved slot. Called
// exactly once per reservation; the slot was exclusively reserved by
// Prepare, so nothing else writes it concurrently.
func (s *storage[T]) fillValue(index id.Index, epoch id.Epoch, value T) {
	sl, err := s.slotFor(index)
	if err != nil {
		panic("hub: fill of unreserved slot")
	}
	sl.mu.Lock()
	sl.value = value
	sl.epoch = epoch
	sl.status = slotOccupied
	sl.mu.Unlock()
}

// fillError poisons a reserved slot with a construction diagnostic, so
// later lookups surface the message instead of "not found".
func (s *storage[T]) fillError(index id.Index, epoch id.Epoch, msg string) {
	sl, err := s.slotFor(index)
	if err != nil {
		panic("hub: fill of unreserved slot")
	}
	sl.mu.Lock()
	sl.errMsg = msg
	sl.epoch = epoch
	sl.status = slotError
	sl.mu.Unlock()
}

// get returns the value stored at (index, epoch). Failures are classified,
// never fatal: stale handles are expected on a multi-threaded API surface.
func (s *storage[T]) get(index id.Index, epoch id.Epoch) (T, error) {
	var zero T
	sl, err := s.slotFor(index)
	if err != nil {
		return zero, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	switch {
	case sl.status == slotVacant:
		return zero, &VacantError{Index: index}
	case sl.epoch != epoch:
		return zero, &WrongEpochError{Index: index, Old: sl.epoch, New: epoch}
	case sl.status == slotError:
		return zero, &ResourceInErrorError{Index: index, Message: sl.errMsg}
	default:
		return sl.value, nil
	}
}

// getUnchecked reads a slot without an epoch check, for callers that
// already validated the ID.
func (s *storage[T]) getUnchecked(index id.Index) (T, error) {
	var zero T
	sl, err := s.slotFor(index)
	if err != nil {
		return zero, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	switch sl.status {
	case slotVacant:
		return zero, &VacantError{Index: index}
	case slotError:
		return zero, &ResourceInErrorError{Index: index, Message: sl.errMsg}
	default:
		return sl.value, nil
	}
}

// contains reports whether (index, epoch) currently holds a value. Poisoned
// slots do not count as contained.
func (s *storage[T]) contains(index id.Index, epoch id.Epoch) bool {
	sl, err := s.slotFor(index)
	if err != nil {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.status == slotOccupied && sl.epoch == epoch
}

// overwrite replaces an occupied slot's value in place, keeping the epoch.
// Used for controlled rebinding (swapchain reconfiguration and the like),
// not for ordinary recycling. The previous value, if any, is returned so
// the caller can dispose of it.
func (s *storage[T]) overwrite(index id.Index, epoch id.Epoch, value T) (prev T, hadPrev bool) {
	sl, err := s.slotFor(index)
	if err != nil {
		panic("hub: overwrite of unreserved slot")
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.status == slotOccupied {
		prev, hadPrev = sl.value, true
	}
	sl.value = value
	sl.errMsg = ""
	sl.epoch = epoch
	sl.status = slotOccupied
	return prev, hadPrev
}

// free vacates (index, epoch) and moves its value out. The status flips to
// vacant inside the slot lock, before the caller runs any destructor, so a
// stray concurrent read during destruction observes a vacant slot rather
// than a half-destroyed value. Must be called under the identity lock, like
// ensureIndex.
//
// hadValue is false when the slot was poisoned: the free still succeeds,
// there is just nothing to hand back.
func (s *storage[T]) free(index id.Index, epoch id.Epoch) (value T, hadValue bool, err error) {
	var zero T
	sl, slErr := s.slotFor(index)
	if slErr != nil {
		return zero, false, slErr
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	switch {
	case sl.status == slotVacant:
		return zero, false, &VacantError{Index: index}
	case sl.epoch != epoch:
		return zero, false, &WrongEpochError{Index: index, Old: sl.epoch, New: epoch}
	case sl.status == slotError:
		sl.errMsg = ""
		sl.status = slotVacant
		return zero, false, nil
	default:
		value = sl.value
		sl.value = zero
		sl.status = slotVacant
		return value, true, nil
	}
}

// each calls fn for every occupied slot, in index order, until fn returns
// false. The caller must hold the identity lock so no slot is freed while
// the iteration runs; concurrent lookups remain safe.
func (s *storage[T]) each(backend gputypes.Backend, fn func(id.ID[T], T) bool) {
	allocated := s.maxIndex.Load()
	for index := id.Index(0); index < allocated; index++ {
		sl := &s.blocks[index/storageBlockSize].slots[index%storageBlockSize]
		sl.mu.Lock()
		occupied := sl.status == slotOccupied
		epoch := sl.epoch
		value := sl.value
		sl.mu.Unlock()
		if !occupied {
			continue
		}
		if !fn(id.Zip[T](index, epoch, backend), value) {
			return
		}
	}
}

// drain vacates every non-vacant slot and hands each one to fn; hadValue
// distinguishes real occupants from poisoned slots. The caller must have
// as-if-exclusive access to the whole registry: no concurrent lookups
// anywhere, in addition to holding the identity lock.
func (s *storage[T]) drain(backend gputypes.Backend, fn func(i id.ID[T], value T, hadValue bool)) {
	var zero T
	allocated := s.maxIndex.Load()
	for index := id.Index(0); index < allocated; index++ {
		sl := &s.blocks[index/storageBlockSize].slots[index%storageBlockSize]
		sl.mu.Lock()
		if sl.status == slotVacant {
			sl.mu.Unlock()
			continue
		}
		hadValue := sl.status == slotOccupied
		epoch := sl.epoch
		value := sl.value
		sl.value = zero
		sl.errMsg = ""
		sl.status = slotVacant
		sl.mu.Unlock()
		fn(id.Zip[T](index, epoch, backend), value, hadValue)
	}
}

// report counts slot states for diagnostics.
func (s *storage[T]) report() StorageReport {
	r := StorageReport{Capacity: int(s.maxIndex.Load())}
	for index := id.Index(0); index < id.Index(r.Capacity); index++ {
		sl := &s.blocks[index/storageBlockSize].slots[index%storageBlockSize]
		sl.mu.Lock()
		status := sl.status
		sl.mu.Unlock()
		switch status {
		case slotOccupied:
			r.NumOccupied++
		case slotError:
			r.NumError++
		default:
			r.NumVacant++
		}
	}
	return r
}
