// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/hub/id"
)

// Hub holds one registry per resource kind for a single backend. Shared
// mutable tables are deliberately not process-wide: a Hub belongs to the
// Global that created it, and dies with it.
type Hub struct {
	backend gputypes.Backend

	Devices          *Registry[*Device]
	Buffers          *Registry[*Buffer]
	Textures         *Registry[*Texture]
	TextureViews     *Registry[*TextureView]
	Samplers         *Registry[*Sampler]
	ShaderModules    *Registry[*ShaderModule]
	BindGroupLayouts *Registry[*BindGroupLayout]
	PipelineLayouts  *Registry[*PipelineLayout]
	BindGroups       *Registry[*BindGroup]
	RenderPipelines  *Registry[*RenderPipeline]
	ComputePipelines *Registry[*ComputePipeline]
}

// NewHub creates the registries for one backend. newManager supplies each
// registry's identity manager; nil selects the default.
func NewHub(backend gputypes.Backend, newManager func() IdentityManager) *Hub {
	if newManager == nil {
		newManager = NewIdentityManager
	}
	return &Hub{
		backend:          backend,
		Devices:          NewRegistry[*Device](backend, newManager()),
		Buffers:          NewRegistry[*Buffer](backend, newManager()),
		Textures:         NewRegistry[*Texture](backend, newManager()),
		TextureViews:     NewRegistry[*TextureView](backend, newManager()),
		Samplers:         NewRegistry[*Sampler](backend, newManager()),
		ShaderModules:    NewRegistry[*ShaderModule](backend, newManager()),
		BindGroupLayouts: NewRegistry[*BindGroupLayout](backend, newManager()),
		PipelineLayouts:  NewRegistry[*PipelineLayout](backend, newManager()),
		BindGroups:       NewRegistry[*BindGroup](backend, newManager()),
		RenderPipelines:  NewRegistry[*RenderPipeline](backend, newManager()),
		ComputePipelines: NewRegistry[*ComputePipeline](backend, newManager()),
	}
}

// Backend returns the backend tag this hub's IDs carry.
func (h *Hub) Backend() gputypes.Backend {
	return h.backend
}

// AdoptDevice registers a host-provided device. The host application owns
// the GPU device and hands it down; hub never creates one on its own. The
// raw handles are not destroyed at teardown, they belong to the host.
func (h *Hub) AdoptDevice(provider gpucontext.DeviceProvider, label string) DeviceID {
	fid := h.Devices.Prepare()
	dev := &Device{
		Raw:   provider.Device(),
		Queue: provider.Queue(),
		Life:  NewLifeGuard(label),
	}
	return fid.Assign(dev)
}

// RegisterBuffer adopts an externally created raw buffer into the hub.
// Creation against the HAL itself is backend dispatch, which lives a layer
// above; the hub only tracks identity and lifetime.
func (h *Hub) RegisterBuffer(device DeviceID, raw *Buffer) (BufferID, error) {
	fid := h.Buffers.Prepare()
	dev, err := h.Devices.Get(device)
	if err != nil {
		return fid.AssignError(err.Error()), err
	}
	raw.Device = Stored[*Device]{Value: device, RefCount: dev.Life.AddRef()}
	return fid.Assign(raw), nil
}

// Drain unregisters everything in dependency order, leaf kinds first, so
// no resource is destroyed before its dependents. Values are physically
// destroyed; still-registered resources are logged as leaks.
//
// The caller must have exclusive access to the hub: Drain inherits
// RemoveAll's contract.
func (h *Hub) Drain() {
	log := Logger()

	drainRegistry(h.ComputePipelines, log)
	drainRegistry(h.RenderPipelines, log)
	drainRegistry(h.BindGroups, log)
	drainRegistry(h.PipelineLayouts, log)
	drainRegistry(h.BindGroupLayouts, log)
	drainRegistry(h.ShaderModules, log)
	drainRegistry(h.TextureViews, log)
	drainRegistry(h.Samplers, log)
	drainRegistry(h.Textures, log)
	drainRegistry(h.Buffers, log)

	// Devices last; their raw handles are host-owned, so only the
	// bookkeeping goes.
	h.Devices.RemoveAll(func(i DeviceID, d *Device) {
		log.Warn("device still registered at teardown", "id", i, "label", d.Label())
	})
}

func drainRegistry[T Resource](r *Registry[T], log *slog.Logger) {
	r.RemoveAll(func(i id.ID[T], value T) {
		log.Warn("resource leaked at teardown", "id", i, "label", value.Label())
		if d, ok := any(value).(rawDestroyer); ok {
			d.DestroyRaw()
		}
	})
}

// Report runs a census over every registry in the hub.
func (h *Hub) Report() HubReport {
	return HubReport{
		Backend:          h.backend,
		Devices:          h.Devices.Report(),
		Buffers:          h.Buffers.Report(),
		Textures:         h.Textures.Report(),
		TextureViews:     h.TextureViews.Report(),
		Samplers:         h.Samplers.Report(),
		ShaderModules:    h.ShaderModules.Report(),
		BindGroupLayouts: h.BindGroupLayouts.Report(),
		PipelineLayouts:  h.PipelineLayouts.Report(),
		BindGroups:       h.BindGroups.Report(),
		RenderPipelines:  h.RenderPipelines.Report(),
		ComputePipelines: h.ComputePipelines.Report(),
	}
}

// Option configures a Global during creation.
type Option func(*globalOptions)

type globalOptions struct {
	newManager func() IdentityManager
}

// WithIdentityManager supplies a factory for the identity managers of every
// registry the Global creates. Each registry gets its own manager instance;
// identity state is never shared across kinds or backends.
func WithIdentityManager(factory func() IdentityManager) Option {
	return func(o *globalOptions) {
		o.newManager = factory
	}
}

// Global owns one Hub per backend, with an explicit construction and
// teardown lifecycle. Create one per driver instance; there is no package
// singleton.
type Global struct {
	mu   sync.Mutex
	hubs map[gputypes.Backend]*Hub
	opts globalOptions
}

// New creates an empty Global.
func New(opts ...Option) *Global {
	var o globalOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Global{
		hubs: make(map[gputypes.Backend]*Hub),
		opts: o,
	}
}

// Hub returns the hub for a backend, creating it on first use.
func (g *Global) Hub(backend gputypes.Backend) *Hub {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.hubs[backend]
	if !ok {
		h = NewHub(backend, g.opts.newManager)
		g.hubs[backend] = h
	}
	return h
}

// Close drains every hub. The Global must not be used afterwards.
func (g *Global) Close() {
	g.mu.Lock()
	hubs := g.hubs
	g.hubs = make(map[gputypes.Backend]*Hub)
	g.mu.Unlock()

	for _, h := range hubs {
		h.Drain()
	}
	Logger().Debug("global torn down", "hubs", len(hubs))
}

// Report runs a census over every hub.
func (g *Global) Report() GlobalReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	report := GlobalReport{}
	for _, h := range g.hubs {
		report.Hubs = append(report.Hubs, h.Report())
	}
	return report
}
