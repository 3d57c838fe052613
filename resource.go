// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/hub/id"
)

// Resource IDs
//
// One alias per resource kind. The kind is baked into the ID's type
// parameter, so handing a BufferID to the texture registry is a compile
// error, not a runtime epoch mismatch.
type (
	DeviceID          = id.ID[*Device]
	BufferID          = id.ID[*Buffer]
	TextureID         = id.ID[*Texture]
	TextureViewID     = id.ID[*TextureView]
	SamplerID         = id.ID[*Sampler]
	ShaderModuleID    = id.ID[*ShaderModule]
	BindGroupLayoutID = id.ID[*BindGroupLayout]
	PipelineLayoutID  = id.ID[*PipelineLayout]
	BindGroupID       = id.ID[*BindGroup]
	RenderPipelineID  = id.ID[*RenderPipeline]
	ComputePipelineID = id.ID[*ComputePipeline]
)

// rawDestroyer is implemented by kinds that own a backend object. Adopted
// devices are excluded: their raw handles belong to the host.
type rawDestroyer interface {
	DestroyRaw()
}

// destroyRaw disposes of a backend object if it knows how to destroy
// itself. Raw handles are stored as narrow interfaces, so the capability is
// probed rather than assumed.
func destroyRaw(raw any) {
	if d, ok := raw.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}

// Device is an open connection to one GPU. When hub is embedded in a host
// application the raw device and queue come from the host's
// gpucontext.DeviceProvider; in standalone use they are created against the
// HAL directly.
type Device struct {
	// Raw is the host-provided device, nil when none was adopted.
	Raw gpucontext.Device

	// Queue is the device's submission queue.
	Queue gpucontext.Queue

	Life *LifeGuard
}

func (d *Device) Label() string { return guardLabel(d.Life) }

// DeviceID returns the zero ID: a device owns itself.
func (d *Device) DeviceID() DeviceID { return 0 }
func (d *Device) Guard() *LifeGuard  { return d.Life }

// Buffer is a linear allocation of GPU-visible memory.
type Buffer struct {
	Raw    hal.Buffer
	Device Stored[*Device]
	Usage  gputypes.BufferUsage
	Size   uint64
	Life   *LifeGuard
}

func (b *Buffer) Label() string      { return guardLabel(b.Life) }
func (b *Buffer) DeviceID() DeviceID { return b.Device.Value }
func (b *Buffer) Guard() *LifeGuard  { return b.Life }

func (b *Buffer) DestroyRaw() { destroyRaw(b.Raw) }

// Texture is an image or image array, sampled or attached by views.
type Texture struct {
	Raw           hal.Texture
	Device        Stored[*Device]
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
	Dimension     gputypes.TextureDimension
	Size          gputypes.Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Life          *LifeGuard
}

func (t *Texture) Label() string      { return guardLabel(t.Life) }
func (t *Texture) DeviceID() DeviceID { return t.Device.Value }
func (t *Texture) Guard() *LifeGuard  { return t.Life }

func (t *Texture) DestroyRaw() { destroyRaw(t.Raw) }

// TextureView is a shader-visible window onto a texture. It keeps its
// backing texture alive through the Stored reference.
type TextureView struct {
	Raw     hal.Resource
	Texture Stored[*Texture]
	Device  DeviceID
	Format  gputypes.TextureFormat
	Life    *LifeGuard
}

func (v *TextureView) Label() string      { return guardLabel(v.Life) }
func (v *TextureView) DeviceID() DeviceID { return v.Device }
func (v *TextureView) Guard() *LifeGuard  { return v.Life }

func (v *TextureView) DestroyRaw() { destroyRaw(v.Raw) }

// Sampler configures how shaders filter and address texture reads.
type Sampler struct {
	Raw        hal.Resource
	Device     Stored[*Device]
	Comparison bool
	Filtering  bool
	Life       *LifeGuard
}

func (s *Sampler) Label() string      { return guardLabel(s.Life) }
func (s *Sampler) DeviceID() DeviceID { return s.Device.Value }
func (s *Sampler) Guard() *LifeGuard  { return s.Life }

func (s *Sampler) DestroyRaw() { destroyRaw(s.Raw) }

// ShaderModule is compiled shader code. Modules are shared structurally by
// the pipelines built from them, so they carry a MultiRefCount instead of a
// LifeGuard.
type ShaderModule struct {
	Raw    hal.Resource
	Device Stored[*Device]

	// SPIRV is the compiled code, little-endian words.
	SPIRV []uint32

	RefCount *MultiRefCount
	label    string
}

func (m *ShaderModule) Label() string      { return m.label }
func (m *ShaderModule) DeviceID() DeviceID { return m.Device.Value }
func (m *ShaderModule) Guard() *LifeGuard  { return nil }

func (m *ShaderModule) DestroyRaw() { destroyRaw(m.Raw) }

// BindGroupLayout describes the shape of a bind group. Layouts are
// deduplicated and shared across pipeline layouts, hence MultiRefCount.
type BindGroupLayout struct {
	Raw     hal.Resource
	Device  Stored[*Device]
	Entries []gputypes.BindGroupLayoutEntry

	RefCount *MultiRefCount
	label    string
}

func (l *BindGroupLayout) Label() string      { return l.label }
func (l *BindGroupLayout) DeviceID() DeviceID { return l.Device.Value }
func (l *BindGroupLayout) Guard() *LifeGuard  { return nil }

func (l *BindGroupLayout) DestroyRaw() { destroyRaw(l.Raw) }

// PipelineLayout chains bind group layouts into a full pipeline interface.
type PipelineLayout struct {
	Raw              hal.Resource
	Device           Stored[*Device]
	BindGroupLayouts []BindGroupLayoutID

	RefCount *MultiRefCount
	label    string
}

func (l *PipelineLayout) Label() string      { return l.label }
func (l *PipelineLayout) DeviceID() DeviceID { return l.Device.Value }
func (l *PipelineLayout) Guard() *LifeGuard  { return nil }

func (l *PipelineLayout) DestroyRaw() { destroyRaw(l.Raw) }

// BindGroup binds concrete resources to one bind group layout.
type BindGroup struct {
	Raw    hal.Resource
	Device Stored[*Device]
	Layout BindGroupLayoutID
	Life   *LifeGuard
}

func (g *BindGroup) Label() string      { return guardLabel(g.Life) }
func (g *BindGroup) DeviceID() DeviceID { return g.Device.Value }
func (g *BindGroup) Guard() *LifeGuard  { return g.Life }

func (g *BindGroup) DestroyRaw() { destroyRaw(g.Raw) }

// RenderPipeline is a compiled draw pipeline.
type RenderPipeline struct {
	Raw    hal.Resource
	Device Stored[*Device]
	Layout PipelineLayoutID
	Life   *LifeGuard
}

func (p *RenderPipeline) Label() string      { return guardLabel(p.Life) }
func (p *RenderPipeline) DeviceID() DeviceID { return p.Device.Value }
func (p *RenderPipeline) Guard() *LifeGuard  { return p.Life }

func (p *RenderPipeline) DestroyRaw() { destroyRaw(p.Raw) }

// ComputePipeline is a compiled dispatch pipeline.
type ComputePipeline struct {
	Raw    hal.Resource
	Device Stored[*Device]
	Layout PipelineLayoutID
	Life   *LifeGuard
}

func (p *ComputePipeline) Label() string      { return guardLabel(p.Life) }
func (p *ComputePipeline) DeviceID() DeviceID { return p.Device.Value }
func (p *ComputePipeline) Guard() *LifeGuard  { return p.Life }

func (p *ComputePipeline) DestroyRaw() { destroyRaw(p.Raw) }

func guardLabel(lg *LifeGuard) string {
	if lg == nil {
		return ""
	}
	return lg.Label
}
