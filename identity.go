// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/hub/id"
)

// IdentityManager is the index/epoch allocation policy behind a Registry.
//
// The contract: Allocate hands out an index that is either fresh or was
// previously freed, and for a reused index the epoch is strictly greater
// than any epoch that index carried before. Free returns an index to the
// pool; it is only ever called with the exact (index, epoch) pair currently
// outstanding.
//
// Implementations need no internal locking. The owning Registry serializes
// every call under its identity lock, together with the storage mutation
// that accompanies it, so allocation state and slot state always change as
// one critical section.
//
// The default implementation recycles indices LIFO and bumps the epoch on
// free. Callers with external identity policies (ID replay from a trace,
// shared ID spaces across processes) supply their own via
// WithIdentityManager.
type IdentityManager interface {
	// Allocate returns the index and epoch for a new identifier. The
	// backend tag is provided for managers that partition their index
	// space per backend.
	Allocate(backend gputypes.Backend) (id.Index, id.Epoch)

	// Free recycles an index. The epoch is the one Allocate handed out
	// for the current cycle; the next Allocate of this index must use a
	// strictly greater epoch.
	Free(index id.Index, epoch id.Epoch)
}

// identityPool is the default IdentityManager: a LIFO free list plus the
// per-index epoch to hand out next.
type identityPool struct {
	free   []id.Index
	epochs []id.Epoch
}

// NewIdentityManager returns the default identity manager. Fresh indices
// are minted sequentially from zero with epoch zero; freed indices are
// reused most-recently-freed first, each reuse at the next epoch.
func NewIdentityManager() IdentityManager {
	return &identityPool{}
}

func (p *identityPool) Allocate(gputypes.Backend) (id.Index, id.Epoch) {
	if n := len(p.free); n > 0 {
		index := p.free[n-1]
		p.free = p.free[:n-1]
		return index, p.epochs[index]
	}
	index := id.Index(len(p.epochs))
	p.epochs = append(p.epochs, 0)
	return index, 0
}

func (p *identityPool) Free(index id.Index, epoch id.Epoch) {
	if index >= id.Index(len(p.epochs)) || p.epochs[index] != epoch {
		panic("hub: identity free of an identifier that was never allocated")
	}
	if epoch == id.EpochMax {
		// Wraparound would let a stale ID alias a future occupant.
		panic("hub: identifier epoch exhausted")
	}
	p.epochs[index] = epoch + 1
	p.free = append(p.free, index)
}
