// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func TestCaptureTexture(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	tracker := NewStateTracker()

	tex := createTestTexture(t, device, "present_target")
	defer device.DestroyTexture(tex)
	tracker.Track(tex, StatePresent)

	data, err := CaptureTexture(device, queue, tracker, tex, 64, 64)
	if err != nil {
		t.Fatalf("CaptureTexture failed: %v", err)
	}
	if got, want := len(data), 64*64*4; got != want {
		t.Errorf("len(data) = %d, want %d", got, want)
	}

	// The capture must leave the state record where it found it.
	state, ok := tracker.State(tex)
	if !ok || state != StatePresent {
		t.Errorf("state after capture = %v tracked=%v, want StatePresent", state, ok)
	}
	if got := tracker.Pending(); got != 0 {
		t.Errorf("Pending() after capture = %d, want 0", got)
	}
}

// TestCaptureTextureUnalignedWidth covers a row size below the 256-byte
// copy pitch, where the staging rows carry padding to strip.
func TestCaptureTextureUnalignedWidth(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	tracker := NewStateTracker()

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "narrow",
		Size:          hal.Extent3D{Width: 60, Height: 4, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	defer device.DestroyTexture(tex)
	tracker.Track(tex, StateRenderTarget)

	data, err := CaptureTexture(device, queue, tracker, tex, 60, 4)
	if err != nil {
		t.Fatalf("CaptureTexture failed: %v", err)
	}
	if got, want := len(data), 60*4*4; got != want {
		t.Errorf("len(data) = %d, want %d (tight rows, no pitch padding)", got, want)
	}
	if state, _ := tracker.State(tex); state != StateRenderTarget {
		t.Errorf("state after capture = %v, want StateRenderTarget", state)
	}
}

func TestCaptureTextureValidation(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	tracker := NewStateTracker()

	tex := createTestTexture(t, device, "stray")
	defer device.DestroyTexture(tex)

	if _, err := CaptureTexture(nil, queue, tracker, tex, 64, 64); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil device error = %v, want ErrInvalidSpec", err)
	}
	if _, err := CaptureTexture(device, queue, nil, tex, 64, 64); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil tracker error = %v, want ErrInvalidSpec", err)
	}
	if _, err := CaptureTexture(device, queue, tracker, nil, 64, 64); !errors.Is(err, ErrUntracked) {
		t.Errorf("nil texture error = %v, want ErrUntracked", err)
	}
	if _, err := CaptureTexture(device, queue, tracker, tex, 0, 64); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("zero extent error = %v, want ErrInvalidSpec", err)
	}
	// Valid arguments, but the texture never registered.
	if _, err := CaptureTexture(device, queue, tracker, tex, 64, 64); !errors.Is(err, ErrUntracked) {
		t.Errorf("untracked texture error = %v, want ErrUntracked", err)
	}
}
