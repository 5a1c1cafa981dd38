// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// CreateStaticBuffer creates a device-local buffer, fills it with data,
// and leaves it in GenericRead. It is the initializer for geometry and
// lookup data written once and read by the GPU for the rest of its life;
// per-frame data belongs in an [UploadBuffer] instead.
//
// CopyDst is added to usage for the upload. When a tracker is given the
// buffer passes through Common -> CopyDest -> GenericRead so later
// transitions validate against its true state.
//
// The write is queued, not complete, on return. Submitting a frame or
// calling [Pipeline.Flush] orders it before any use.
func CreateStaticBuffer(device hal.Device, queue hal.Queue, tracker *StateTracker, label string, usage gputypes.BufferUsage, data []byte) (hal.Buffer, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrInvalidSpec)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty static buffer data", ErrInvalidSpec)
	}

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create static buffer %q: %v", ErrOutOfMemory, label, err)
	}

	if tracker != nil {
		tracker.Track(buf, StateCommon)
		if err := tracker.Transition(buf, StateCommon, StateCopyDest); err != nil {
			device.DestroyBuffer(buf)
			return nil, err
		}
	}
	queue.WriteBuffer(buf, 0, data)
	if tracker != nil {
		if err := tracker.Transition(buf, StateCopyDest, StateGenericRead); err != nil {
			device.DestroyBuffer(buf)
			return nil, err
		}
	}
	return buf, nil
}
