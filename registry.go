// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hub/id"
)

// Resource is what a Registry stores. Every storable type exposes a label
// for diagnostics and its owning device for cross-resource drop
// propagation; lifetime-tracked kinds additionally expose their LifeGuard.
type Resource interface {
	// Label returns the human-readable name from the descriptor the
	// resource was created with. May be empty.
	Label() string

	// DeviceID identifies the owning device. The device itself returns
	// the zero ID.
	DeviceID() DeviceID

	// Guard returns the resource's LifeGuard, or nil for kinds whose
	// lifetime is tracked structurally (layouts, shader modules).
	Guard() *LifeGuard
}

// Registry couples a slot arena with an identity manager for one resource
// kind on one backend. Lookups take only the affected slot's lock;
// reservation and unregistration serialize on the registry's identity lock.
type Registry[T Resource] struct {
	backend gputypes.Backend

	// identityMu is the identity lock: it serializes the manager's state
	// and the storage mutation that accompanies each allocation or free,
	// so the two always change as one critical section.
	identityMu sync.Mutex
	identity   IdentityManager

	storage storage[T]
}

// NewRegistry creates an empty registry for one (resource kind, backend)
// pair. A nil manager selects the default LIFO-recycling one.
func NewRegistry[T Resource](backend gputypes.Backend, manager IdentityManager) *Registry[T] {
	if manager == nil {
		manager = NewIdentityManager()
	}
	return &Registry[T]{backend: backend, identity: manager}
}

// Backend returns the backend tag carried by every ID this registry mints.
func (r *Registry[T]) Backend() gputypes.Backend {
	return r.backend
}

// FutureID is a reservation: an ID allocated before its resource exists.
// The holder must settle it exactly once, with Assign or AssignError.
//
// Reservations let a caller publish a usable identifier before resource
// construction completes, or even before it is known to succeed.
type FutureID[T Resource] struct {
	id      id.ID[T]
	storage *storage[T]
}

// ID returns the reserved identifier. It is already safe to embed in
// descriptors and hand to other threads; lookups simply report vacant until
// the reservation is settled.
func (f FutureID[T]) ID() id.ID[T] {
	return f.id
}

// Assign commits the constructed value. The returned ID is now valid for
// lookup.
func (f FutureID[T]) Assign(value T) id.ID[T] {
	index, epoch, _ := f.id.Unzip()
	f.storage.fillValue(index, epoch, value)
	return f.id
}

// AssignError poisons the reservation with a construction diagnostic.
// Lookups of the returned ID surface the message, preserving the property
// that Prepare always yields a usable identifier even when construction
// fails.
func (f FutureID[T]) AssignError(msg string) id.ID[T] {
	index, epoch, _ := f.id.Unzip()
	f.storage.fillError(index, epoch, msg)
	return f.id
}

// Prepare reserves an identifier and grows the arena to fit it. Safe to
// call concurrently with everything else on the registry.
func (r *Registry[T]) Prepare() FutureID[T] {
	r.identityMu.Lock()
	index, epoch := r.identity.Allocate(r.backend)
	r.storage.ensureIndex(index)
	r.identityMu.Unlock()

	return FutureID[T]{
		id:      id.Zip[T](index, epoch, r.backend),
		storage: &r.storage,
	}
}

// Contains reports whether i currently resolves to a value.
func (r *Registry[T]) Contains(i id.ID[T]) bool {
	index, epoch, _ := i.Unzip()
	return r.storage.contains(index, epoch)
}

// Get resolves i with full bounds and epoch checking. Failure is one of
// *VacantError, *WrongEpochError or *ResourceInErrorError.
func (r *Registry[T]) Get(i id.ID[T]) (T, error) {
	index, epoch, _ := i.Unzip()
	return r.storage.get(index, epoch)
}

// GetUnchecked resolves an index without an epoch check, for hot paths
// that already validated the ID.
func (r *Registry[T]) GetUnchecked(index id.Index) (T, error) {
	return r.storage.getUnchecked(index)
}

// MaxIndex provides no authoritative value on the contents of the
// registry, just "there is no ID with an index at or above this".
func (r *Registry[T]) MaxIndex() id.Index {
	return r.storage.maxIndex.Load()
}

// Unregister frees both the identity pair and the storage slot as a single
// critical section under the identity lock — never split, so there is no
// window where an index is reusable while its old slot data still exists.
//
// The stored value is returned for disposal when the slot held one; a
// poisoned slot unregisters successfully with hadValue == false.
func (r *Registry[T]) Unregister(i id.ID[T]) (value T, hadValue bool, err error) {
	index, epoch, _ := i.Unzip()

	r.identityMu.Lock()
	defer r.identityMu.Unlock()
	value, hadValue, err = r.storage.free(index, epoch)
	if err != nil {
		return value, false, err
	}
	r.identity.Free(index, epoch)
	return value, hadValue, nil
}

// InsertError poisons an already reserved ID. Used when a dependent
// resource's implicit creation fails after its ID was published.
func (r *Registry[T]) InsertError(i id.ID[T], msg string) {
	index, epoch, _ := i.Unzip()
	r.storage.fillError(index, epoch, msg)
}

// ForceReplace swaps the value stored under i while keeping its epoch:
// controlled in-place rebinding, as opposed to the free/reserve recycle
// path. The previous value, if any, is returned for disposal.
func (r *Registry[T]) ForceReplace(i id.ID[T], value T) (prev T, hadPrev bool) {
	index, epoch, _ := i.Unzip()
	return r.storage.overwrite(index, epoch, value)
}

// Label returns the stored resource's label, or a printable form of the ID
// when it does not resolve.
func (r *Registry[T]) Label(i id.ID[T]) string {
	value, err := r.Get(i)
	if err != nil {
		return fmt.Sprintf("%v", i)
	}
	return value.Label()
}

// Dropped is what DropWithLifeGuard extracts from a resource when the user
// releases their last handle: everything the caller needs to defer physical
// destruction until the GPU is done.
type Dropped[T Resource] struct {
	// Value is the resource, still registered in its slot.
	Value T

	// RefCount is the user reference taken out of the LifeGuard. The
	// caller releases it once the drop is fully processed.
	RefCount RefCount

	// LastSubmission is the newest queue submission that referenced the
	// resource; destruction must wait for it to complete.
	LastSubmission SubmissionIndex

	// Device owns the resource, for dependency-ordered cleanup.
	Device DeviceID
}

// DropWithLifeGuard processes a user-level drop of a lifetime-tracked
// resource. The slot stays occupied: physical destruction and Unregister
// happen later, once a CompletionSource confirms LastSubmission finished
// (see ReclaimQueue).
//
// A poisoned ID is unregistered on the spot and reported as not ok. An
// otherwise invalid ID is logged and ignored; stale drops are expected when
// the API surface races handle drops against device teardown.
func (r *Registry[T]) DropWithLifeGuard(i id.ID[T]) (Dropped[T], bool) {
	value, ok := r.dropInner(i)
	if !ok {
		return Dropped[T]{}, false
	}
	guard := value.Guard()
	rc, taken := guard.TakeRefCount()
	if !taken {
		panic("hub: resource dropped twice")
	}
	return Dropped[T]{
		Value:          value,
		RefCount:       rc,
		LastSubmission: guard.LifeCount(),
		Device:         value.DeviceID(),
	}, true
}

// DropNoLifeGuard is the drop variant for kinds without a LifeGuard; only
// the owning device is reported.
func (r *Registry[T]) DropNoLifeGuard(i id.ID[T]) (DeviceID, bool) {
	value, ok := r.dropInner(i)
	if !ok {
		return 0, false
	}
	return value.DeviceID(), true
}

func (r *Registry[T]) dropInner(i id.ID[T]) (T, bool) {
	var zero T
	value, err := r.Get(i)
	switch err.(type) {
	case nil:
		return value, true
	case *ResourceInErrorError:
		// The construction failed; there is nothing to defer. Recycle
		// the slot now.
		_, _, _ = r.Unregister(i)
		return zero, false
	default:
		Logger().Error("dropped an invalid resource ID",
			"kind", fmt.Sprintf("%T", zero), "id", i, "err", err)
		return zero, false
	}
}

// Iter calls fn for each registered resource in index order until fn
// returns false. It holds the identity lock for the whole walk, so no slot
// can be freed mid-iteration; lookups from other goroutines proceed
// normally.
func (r *Registry[T]) Iter(fn func(id.ID[T], T) bool) {
	r.identityMu.Lock()
	defer r.identityMu.Unlock()
	r.storage.each(r.backend, fn)
}

// RemoveAll unregisters every resource and hands each value to fn for
// disposal.
//
// The caller must have as-if-exclusive access to the registry: no Get,
// Contains or Prepare may run anywhere while RemoveAll executes. That
// discipline is deliberately not enforced with a registry-wide lock, which
// would tax every lookup to protect an operation that runs once per
// teardown.
func (r *Registry[T]) RemoveAll(fn func(id.ID[T], T)) {
	r.identityMu.Lock()
	defer r.identityMu.Unlock()
	r.storage.drain(r.backend, func(i id.ID[T], value T, hadValue bool) {
		index, epoch, _ := i.Unzip()
		r.identity.Free(index, epoch)
		if hadValue && fn != nil {
			fn(i, value)
		}
	})
}

// Report counts the registry's slot states.
func (r *Registry[T]) Report() StorageReport {
	return r.storage.report()
}
