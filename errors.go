// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"fmt"

	"github.com/gogpu/hub/id"
)

// VacantError reports a lookup of a slot that holds nothing: either the
// index was never occupied, or its previous occupant has been unregistered.
type VacantError struct {
	Index id.Index
}

func (e *VacantError) Error() string {
	return fmt.Sprintf("resource %d has been destroyed: the storage slot is vacant", e.Index)
}

// WrongEpochError reports a stale ID: the slot has been recycled since the
// ID was minted, and now stores an occupant from a different generation.
//
// Old is the epoch currently stored in the slot; New is the epoch the
// caller presented. Stale IDs are an expected occurrence on a
// multi-threaded API surface (one goroutine can drop a resource while
// another still holds its handle), so this is an ordinary error, never a
// fault.
type WrongEpochError struct {
	Index id.Index
	Old   id.Epoch
	New   id.Epoch
}

func (e *WrongEpochError) Error() string {
	return fmt.Sprintf("resource %d has been destroyed: the slot now stores a resource with epoch %d (given epoch %d)",
		e.Index, e.Old, e.New)
}

// ResourceInErrorError reports a poisoned slot: resource construction
// failed after the ID was handed out, and the failure was recorded in the
// slot so that lookups surface the original diagnostic instead of a bare
// "not found".
type ResourceInErrorError struct {
	Index   id.Index
	Message string
}

func (e *ResourceInErrorError) Error() string {
	return fmt.Sprintf("resource %d is in the error state because %s: this happens when resource creation fails and the ID is still used",
		e.Index, e.Message)
}
