// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ConstantAlignment is the stride alignment required for constant-buffer
// style per-draw data. GPU addressing constraints round every element up
// to this boundary, matching the 256-byte rule used for copy pitches.
const ConstantAlignment = 256

// UploadSpec describes an upload buffer to create.
type UploadSpec struct {
	// Label is an optional debug name.
	Label string

	// Capacity is the number of elements the buffer holds.
	Capacity int

	// ElementSize is the unpadded size of one element in bytes.
	ElementSize int

	// Alignment pads each element's stride up to this power-of-two
	// boundary. Zero selects [ConstantAlignment].
	Alignment int

	// Usage overrides the buffer usage flags.
	// Zero selects Uniform | CopyDst.
	Usage gputypes.BufferUsage
}

// validate reports the first inconsistency in the spec.
func (s *UploadSpec) validate() error {
	if s.Capacity <= 0 {
		return fmt.Errorf("%w: upload %q capacity %d", ErrInvalidSpec, s.Label, s.Capacity)
	}
	if s.ElementSize <= 0 {
		return fmt.Errorf("%w: upload %q element size %d", ErrInvalidSpec, s.Label, s.ElementSize)
	}
	if s.Alignment < 0 || (s.Alignment != 0 && s.Alignment&(s.Alignment-1) != 0) {
		return fmt.Errorf("%w: upload %q alignment %d is not a power of two", ErrInvalidSpec, s.Label, s.Alignment)
	}
	return nil
}

// stride returns the element stride after padding.
func (s *UploadSpec) stride() uint64 {
	align := uint64(s.Alignment)
	if align == 0 {
		align = ConstantAlignment
	}
	return (uint64(s.ElementSize) + align - 1) &^ (align - 1)
}

// UploadBuffer is persistently-mapped, element-stride-padded memory for
// per-frame parameter writes.
//
// The mapping is established exactly once at creation and released exactly
// once by [UploadBuffer.Release]; there is no per-write map/unmap. Write
// copies into the mapped region at index*Stride and mirrors the bytes to
// the GPU buffer through the queue. The raw mapping never escapes the
// buffer's API: [UploadBuffer.Region] hands out bounds-checked windows.
//
// Cross-frame discipline is not enforced here. The CPU may overwrite the
// element belonging to frame slot S only after the frame ring confirms
// slot S's previous GPU consumption has retired; the [Ring] provides that
// guarantee by giving each slot its own UploadBuffer set.
type UploadBuffer struct {
	mu       sync.Mutex
	device   hal.Device
	queue    hal.Queue
	buf      hal.Buffer
	mapped   []byte
	label    string
	stride   uint64
	elemSize uint64
	capacity int
	released bool
}

// NewUploadBuffer allocates capacity elements of elementSize bytes, each
// padded up to the spec's alignment, and establishes the persistent
// mapping. Creation failures surface immediately as [ErrOutOfMemory].
func NewUploadBuffer(device hal.Device, queue hal.Queue, spec UploadSpec) (*UploadBuffer, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrInvalidSpec)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}

	usage := spec.Usage
	if usage == 0 {
		usage = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	}
	stride := spec.stride()
	size := stride * uint64(spec.Capacity)

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: spec.Label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create upload buffer %q: %v", ErrOutOfMemory, spec.Label, err)
	}

	return &UploadBuffer{
		device:   device,
		queue:    queue,
		buf:      buf,
		mapped:   make([]byte, size),
		label:    spec.Label,
		stride:   stride,
		elemSize: uint64(spec.ElementSize),
		capacity: spec.Capacity,
	}, nil
}

// Label returns the buffer's debug label.
func (u *UploadBuffer) Label() string { return u.label }

// Capacity returns the number of elements.
func (u *UploadBuffer) Capacity() int { return u.capacity }

// ElementSize returns the unpadded element size in bytes.
func (u *UploadBuffer) ElementSize() uint64 { return u.elemSize }

// Stride returns the padded distance between consecutive elements.
func (u *UploadBuffer) Stride() uint64 { return u.stride }

// Size returns the total buffer size in bytes.
func (u *UploadBuffer) Size() uint64 { return u.stride * uint64(u.capacity) }

// Offset returns the byte offset of element index. Useful for binding a
// single element of the buffer, such as one draw's constants.
func (u *UploadBuffer) Offset(index int) uint64 {
	return uint64(index) * u.stride
}

// Buffer returns the underlying hal buffer for bind groups and copies.
// Returns nil after Release.
func (u *UploadBuffer) Buffer() hal.Buffer {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.buf
}

// Write copies data into element index. The write lands at index*Stride
// in the persistent mapping and is mirrored to the GPU buffer. Writes
// shorter than the element size update only the leading bytes; bytes of
// neighboring elements are never touched.
func (u *UploadBuffer) Write(index int, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.released {
		return ErrReleased
	}
	if index < 0 || index >= u.capacity {
		return fmt.Errorf("%w: index %d, capacity %d", ErrOutOfRange, index, u.capacity)
	}
	if uint64(len(data)) > u.elemSize {
		return fmt.Errorf("%w: %d bytes exceed element size %d", ErrOutOfRange, len(data), u.elemSize)
	}

	offset := uint64(index) * u.stride
	copy(u.mapped[offset:offset+uint64(len(data))], data)
	u.queue.WriteBuffer(u.buf, offset, data)
	return nil
}

// Region returns the stride-sized window of the persistent mapping that
// backs element index. The slice stays valid until Release; mutating it
// does not reach the GPU (use Write for that).
func (u *UploadBuffer) Region(index int) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.released {
		return nil, ErrReleased
	}
	if index < 0 || index >= u.capacity {
		return nil, fmt.Errorf("%w: index %d, capacity %d", ErrOutOfRange, index, u.capacity)
	}
	offset := uint64(index) * u.stride
	return u.mapped[offset : offset+u.stride], nil
}

// Release drops the mapping and destroys the GPU buffer. The mapping is
// released exactly once; further calls are no-ops. Callers must ensure
// the GPU has retired all reads first, which the frame ring does by
// waiting out slot checkpoints before teardown.
func (u *UploadBuffer) Release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.released {
		return
	}
	u.released = true
	u.mapped = nil
	if u.buf != nil {
		u.device.DestroyBuffer(u.buf)
		u.buf = nil
	}
}
