// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hub

import (
	"fmt"

	"github.com/gogpu/naga"
)

// compileWGSL compiles WGSL source to SPIR-V words. naga emits little-endian
// bytes; SPIR-V consumers want 32-bit words.
func compileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// CreateShaderModule compiles WGSL source and registers the result.
//
// This is the canonical two-phase registration: the ID is reserved before
// compilation, and a compile failure poisons the slot with the compiler's
// diagnostic instead of discarding the ID. Either way the returned ID is
// usable; on failure, lookups report the diagnostic and the error is also
// returned directly.
func (h *Hub) CreateShaderModule(device DeviceID, label, source string) (ShaderModuleID, error) {
	fid := h.ShaderModules.Prepare()

	words, err := compileWGSL(source)
	if err != nil {
		return fid.AssignError(err.Error()), err
	}

	dev, getErr := h.Devices.Get(device)
	if getErr != nil {
		return fid.AssignError(getErr.Error()), getErr
	}

	module := &ShaderModule{
		Device:   Stored[*Device]{Value: device, RefCount: dev.Life.AddRef()},
		SPIRV:    words,
		RefCount: NewMultiRefCount(),
		label:    label,
	}
	return fid.Assign(module), nil
}
