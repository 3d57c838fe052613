// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package id implements the packed generational identifiers used by hub
// registries.
//
// An ID names one slot in a registry's storage arena. It packs three fields
// into a single uint64:
//
//	| backend (3 bits) | epoch (29 bits) | index (32 bits) |
//
// The index addresses the slot, the epoch distinguishes successive
// occupants of the same slot, and the backend tag records which native API
// the resource belongs to. IDs are plain values: they carry no pointer, so
// they can be copied, cached, stored in maps, and round-tripped through a
// foreign API boundary. Presenting a stale ID is detected as data (a wrong
// epoch), never as a memory error.
//
// The type parameter marks the resource kind, so an ID for a buffer cannot
// be presented to a texture registry by mistake.
package id

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Index addresses one slot within a registry's storage arena.
type Index = uint32

// Epoch counts how many times an index has been recycled. A slot's epoch
// strictly increases across free/reserve cycles, so an ID minted before a
// recycle no longer matches the slot.
type Epoch = uint32

const (
	backendBits = 3
	epochBits   = 29
	indexBits   = 32

	backendShift = indexBits + epochBits
	epochShift   = indexBits

	// EpochMax is the largest epoch an ID can carry. Identity managers
	// must treat exceeding it as a fatal allocation error; epoch
	// wraparound is never silently allowed.
	EpochMax Epoch = 1<<epochBits - 1

	backendMask = 1<<backendBits - 1
	epochMask   = uint64(EpochMax)
	indexMask   = 1<<indexBits - 1
)

// ID is a packed (index, epoch, backend) triple naming a resource of kind T.
//
// The zero ID has index 0, epoch 0 and backend 0; it is a syntactically
// valid ID, not a sentinel. Whether any ID currently names a live resource
// is decided only by an epoch-checked registry lookup.
type ID[T any] uint64

// Zip packs an index, epoch and backend tag into an ID.
//
// Zip panics if epoch exceeds EpochMax or backend does not fit its 3-bit
// field; both indicate allocator bugs, not recoverable conditions.
func Zip[T any](index Index, epoch Epoch, backend gputypes.Backend) ID[T] {
	if epoch > EpochMax {
		panic("id: epoch overflows its 29-bit field")
	}
	if uint64(backend) > backendMask {
		panic("id: backend tag overflows its 3-bit field")
	}
	return ID[T](uint64(backend)<<backendShift |
		uint64(epoch)<<epochShift |
		uint64(index))
}

// Unzip decomposes the ID into its index, epoch and backend tag.
func (i ID[T]) Unzip() (Index, Epoch, gputypes.Backend) {
	return i.Index(), i.Epoch(), i.Backend()
}

// Index returns the slot index.
func (i ID[T]) Index() Index {
	return Index(uint64(i) & indexMask)
}

// Epoch returns the generation of the slot this ID was minted for.
func (i ID[T]) Epoch() Epoch {
	return Epoch(uint64(i) >> epochShift & epochMask)
}

// Backend returns the backend tag.
func (i ID[T]) Backend() gputypes.Backend {
	return gputypes.Backend(uint64(i) >> backendShift & backendMask)
}

// Raw returns the packed representation, for handing across foreign
// boundaries. Zip(Raw's fields) reconstructs an equal ID.
func (i ID[T]) Raw() uint64 {
	return uint64(i)
}

// String formats the ID for diagnostics.
func (i ID[T]) String() string {
	index, epoch, backend := i.Unzip()
	return fmt.Sprintf("(%d,%d,%v)", index, epoch, backend)
}
