// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestCreateStaticBuffer(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	tracker := NewStateTracker()

	data := make([]byte, 96)
	for i := range data {
		data[i] = byte(i)
	}
	buf, err := CreateStaticBuffer(device, queue, tracker, "mesh_vertices", gputypes.BufferUsageVertex, data)
	if err != nil {
		t.Fatalf("CreateStaticBuffer failed: %v", err)
	}
	defer device.DestroyBuffer(buf)

	state, ok := tracker.State(buf)
	if !ok || state != StateGenericRead {
		t.Errorf("state = %v tracked=%v, want StateGenericRead", state, ok)
	}
	// Buffer transitions are bookkeeping only; nothing queues for a flush.
	if got := tracker.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestCreateStaticBufferUntracked(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	buf, err := CreateStaticBuffer(device, queue, nil, "lookup", gputypes.BufferUsageStorage, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("CreateStaticBuffer without tracker failed: %v", err)
	}
	device.DestroyBuffer(buf)
}

func TestCreateStaticBufferValidation(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := CreateStaticBuffer(nil, queue, nil, "x", 0, []byte{1}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil device error = %v, want ErrInvalidSpec", err)
	}
	if _, err := CreateStaticBuffer(device, nil, nil, "x", 0, []byte{1}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil queue error = %v, want ErrInvalidSpec", err)
	}
	if _, err := CreateStaticBuffer(device, queue, nil, "x", 0, nil); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("empty data error = %v, want ErrInvalidSpec", err)
	}
}
