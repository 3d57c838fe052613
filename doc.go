// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hub implements generation-checked resource registries for
// WebGPU-style GPU drivers.
//
// # Overview
//
// A GPU driver that multiplexes several native backends names every
// GPU-visible object (buffer, texture, pipeline, bind group, ...) by a
// small opaque handle and stores it in a shared, concurrently accessed
// table. hub provides that table: a growable slot arena with per-slot
// locking, packed generational IDs that detect use-after-free and
// reused-slot confusion as data rather than as memory corruption, and the
// reference-counting primitives that decouple "the user dropped the last
// handle" from "the GPU finished using the resource".
//
// # Registration protocol
//
// Registration is two-phase. Prepare reserves an ID before the resource is
// constructed, so the ID can be published immediately:
//
//	fid := h.Buffers.Prepare()
//	buf, err := buildBuffer(desc)
//	if err != nil {
//	    return fid.AssignError(err.Error()), err
//	}
//	return fid.Assign(buf), nil
//
// A failed construction poisons the slot instead of failing the
// reservation, so later lookups report the original diagnostic rather than
// "not found".
//
// # Lifetime tracking
//
// Each lifetime-tracked resource embeds a LifeGuard: the RefCount of
// outstanding user handles plus the index of the last queue submission that
// referenced the resource. Dropping the last user handle does not free the
// slot; physical destruction waits until a CompletionSource reports that
// the recorded submission has finished. ReclaimQueue implements that
// deferral.
//
// # Concurrency
//
// Get and Contains take only the affected slot's lock, so lookups of
// unrelated resources never contend. Reservation and unregistration
// serialize on one identity lock per registry. Bulk drains additionally
// require that no lookups run concurrently anywhere in the registry; this
// is a documented caller contract, not a runtime lock, to keep the hot
// path cheap.
//
// # Architecture
//
// hub sits below a driver core and above the hardware abstraction layer:
//
//	driver core (validation, command recording)
//	    └── hub (IDs, registries, lifetimes)        <- this package
//	          └── gogpu/wgpu/hal (Vulkan, Metal, ...)
//
// One Hub holds the registries of every resource kind for one backend; a
// Global owns one Hub per backend with an explicit construction and
// teardown lifecycle. Nothing in this package is process-global state.
package hub
