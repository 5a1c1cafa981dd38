// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles the pipeline's built-in WGSL sources.
package shader

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/triangle.wgsl
var triangleSource string

// TriangleSource returns the WGSL source of the demo triangle shader:
// one uniform block of per-frame constants, a position+color vertex
// stream, and passthrough shading.
func TriangleSource() string {
	return triangleSource
}

// FrameUniforms matches the FrameUniforms struct in triangle.wgsl.
type FrameUniforms struct {
	Tint   [4]float32
	Aspect float32
	Time   float32
	Pad    [2]float32
}

// TriangleVertex matches the VertexInput struct in triangle.wgsl.
type TriangleVertex struct {
	Position [2]float32
	Color    [4]float32
}

// Compile compiles WGSL source to SPIR-V words.
func Compile(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// NewModule compiles WGSL and creates a shader module from the SPIR-V.
func NewModule(device hal.Device, label, wgslSource string) (hal.ShaderModule, error) {
	spirvCode, err := Compile(wgslSource)
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
}
