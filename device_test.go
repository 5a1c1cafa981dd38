// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"errors"
	"testing"

	"github.com/gogpu/wgpu/hal"
)

// hostProvider mimics a host-side device provider sharing its HAL
// handles.
type hostProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p hostProvider) HalDevice() any { return p.device }
func (p hostProvider) HalQueue() any  { return p.queue }

// opaqueProvider exposes the methods but not HAL-backed values.
type opaqueProvider struct{}

func (opaqueProvider) HalDevice() any { return "software rasterizer" }
func (opaqueProvider) HalQueue() any  { return nil }

func TestNewFromHandle(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := NewFromHandle(hostProvider{device: device, queue: queue}, WithoutDepth())
	if err != nil {
		t.Fatalf("NewFromHandle failed: %v", err)
	}
	defer p.Destroy()

	if p.Device() != device || p.Queue() != queue {
		t.Error("pipeline does not run on the provider's handles")
	}

	f, err := p.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if _, err := p.EndFrame(f); err != nil {
		t.Fatalf("EndFrame failed: %v", err)
	}
}

func TestNewFromHandleValidation(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := NewFromHandle(nil); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil provider error = %v, want ErrInvalidSpec", err)
	}
	if _, err := NewFromHandle(struct{}{}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("method-less provider error = %v, want ErrInvalidSpec", err)
	}
	if _, err := NewFromHandle(opaqueProvider{}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("non-HAL provider error = %v, want ErrInvalidSpec", err)
	}
	// Device present but queue missing.
	if _, err := NewFromHandle(hostProvider{device: device}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil queue provider error = %v, want ErrInvalidSpec", err)
	}
}
