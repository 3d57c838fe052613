// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import "github.com/gogpu/gputypes"

// StorageReport is a point-in-time census of one registry's arena. With
// concurrent activity the counts are advisory; with the registry quiesced
// they are exact.
type StorageReport struct {
	// NumOccupied counts slots holding a live resource.
	NumOccupied int

	// NumVacant counts reserved-then-freed or never-filled slots.
	NumVacant int

	// NumError counts poisoned slots.
	NumError int

	// Capacity is the high-water mark: the number of slots ever reserved.
	Capacity int
}

// Total returns the number of non-vacant slots.
func (r StorageReport) Total() int {
	return r.NumOccupied + r.NumError
}

// IsEmpty reports whether nothing is registered or poisoned.
func (r StorageReport) IsEmpty() bool {
	return r.Total() == 0
}

// HubReport is a census of every registry in one Hub.
type HubReport struct {
	Backend gputypes.Backend

	Devices          StorageReport
	Buffers          StorageReport
	Textures         StorageReport
	TextureViews     StorageReport
	Samplers         StorageReport
	ShaderModules    StorageReport
	BindGroupLayouts StorageReport
	PipelineLayouts  StorageReport
	BindGroups       StorageReport
	RenderPipelines  StorageReport
	ComputePipelines StorageReport
}

// IsEmpty reports whether every registry in the hub is empty.
func (r HubReport) IsEmpty() bool {
	return r.Devices.IsEmpty() &&
		r.Buffers.IsEmpty() &&
		r.Textures.IsEmpty() &&
		r.TextureViews.IsEmpty() &&
		r.Samplers.IsEmpty() &&
		r.ShaderModules.IsEmpty() &&
		r.BindGroupLayouts.IsEmpty() &&
		r.PipelineLayouts.IsEmpty() &&
		r.BindGroups.IsEmpty() &&
		r.RenderPipelines.IsEmpty() &&
		r.ComputePipelines.IsEmpty()
}

// GlobalReport is a census of every hub in a Global, one entry per backend
// that has been used.
type GlobalReport struct {
	Hubs []HubReport
}
