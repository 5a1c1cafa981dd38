// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// texelSize is the byte size of one pixel in the 32-bit color formats
// the pipeline creates (BGRA8Unorm, RGBA8Unorm).
const texelSize = 4

// copyPitchAlignment is the row pitch alignment texture-buffer copies
// require on WebGPU and DX12.
const copyPitchAlignment = 256

// CaptureTexture reads a tracked color texture back to the CPU and
// returns its tightly packed texel bytes, width*height*4, in the
// texture's own format and row order.
//
// The texture is transitioned to CopySrc for the copy and restored to
// its prior state afterwards, through the tracker, so a capture between
// frames leaves the state record consistent. The call submits its own
// transient command buffer and fence and blocks until the copy
// finished, so it belongs in debugging and testing paths, not inside
// the frame loop.
func CaptureTexture(device hal.Device, queue hal.Queue, tracker *StateTracker, tex hal.Texture, width, height uint32) ([]byte, error) {
	if device == nil || queue == nil || tracker == nil {
		return nil, fmt.Errorf("%w: nil device, queue, or tracker", ErrInvalidSpec)
	}
	if tex == nil {
		return nil, fmt.Errorf("%w: nil texture", ErrUntracked)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: capture extent %dx%d", ErrInvalidSpec, width, height)
	}
	prior, ok := tracker.State(tex)
	if !ok {
		return nil, fmt.Errorf("%w: capture of untracked texture", ErrUntracked)
	}

	bytesPerRow := width * texelSize
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(height)

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "capture_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create capture staging: %v", ErrOutOfMemory, err)
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "capture",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create capture encoder: %v", ErrOutOfMemory, err)
	}
	if err := encoder.BeginEncoding("capture"); err != nil {
		return nil, fmt.Errorf("flight: begin capture encoding: %w", err)
	}

	if err := tracker.Transition(tex, prior, StateCopySrc); err != nil {
		encoder.DiscardEncoding()
		return nil, err
	}
	tracker.Flush(encoder)

	encoder.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: height},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	}})

	if err := tracker.Transition(tex, StateCopySrc, prior); err != nil {
		encoder.DiscardEncoding()
		return nil, err
	}
	tracker.Flush(encoder)

	cb, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("flight: end capture encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cb)

	fences, err := NewFenceSync(device)
	if err != nil {
		return nil, err
	}
	defer fences.Destroy()

	value := fences.Signal()
	if err := queue.Submit([]hal.CommandBuffer{cb}, fences.Fence(), value); err != nil {
		return nil, fmt.Errorf("%w: submit capture: %v", ErrDeviceLost, err)
	}
	if err := fences.WaitUntil(value); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("flight: capture readback: %w", err)
	}
	if alignedBytesPerRow == bytesPerRow {
		return readback[:uint64(bytesPerRow)*uint64(height)], nil
	}

	// Strip the per-row pitch padding.
	tight := make([]byte, uint64(bytesPerRow)*uint64(height))
	for row := uint32(0); row < height; row++ {
		src := uint64(row) * uint64(alignedBytesPerRow)
		dst := uint64(row) * uint64(bytesPerRow)
		copy(tight[dst:dst+uint64(bytesPerRow)], readback[src:src+uint64(bytesPerRow)])
	}
	return tight, nil
}
