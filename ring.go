// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// slotState tracks one frame slot through its lifecycle.
type slotState int

const (
	// slotIdle: the slot's previous checkpoint has been reached; its
	// resources are free to reuse.
	slotIdle slotState = iota
	// slotRecording: the encoder is reset and the caller records into it.
	slotRecording
	// slotSubmitted: the command buffer is on the queue with a fresh
	// fence value stored as the slot's checkpoint.
	slotSubmitted
	// slotRetiring: the slot has been selected again and Begin is waiting
	// out its checkpoint.
	slotRetiring
)

// String returns the state name for errors and logs.
func (s slotState) String() string {
	switch s {
	case slotIdle:
		return "Idle"
	case slotRecording:
		return "Recording"
	case slotSubmitted:
		return "Submitted"
	case slotRetiring:
		return "Retiring"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// frameSlot owns the per-slot GPU objects: the command encoder (reset,
// never recreated, on every reuse), the slot's upload buffers, the fence
// checkpoint recorded at submission, and work deferred to retirement.
type frameSlot struct {
	encoder    hal.CommandEncoder
	uploads    []*UploadBuffer
	checkpoint uint64
	state      slotState

	// pending is the previously submitted command buffer, freed when the
	// slot retires and its checkpoint is known reached.
	pending hal.CommandBuffer

	// deferred runs at retirement, after the GPU is done with everything
	// this slot last submitted.
	deferred []func()
}

// Ring rotates N frame slots so the CPU can record a new frame while the
// GPU still executes older ones. It is the pipeline's backpressure
// mechanism: entering a slot always waits for that same slot's previous
// use to retire, so the CPU can never run more than N-1 frames ahead of
// the GPU.
//
// Slots move Idle -> Recording -> Submitted -> Retiring -> Idle. At most
// one slot is Recording at any time; the ring is single-submitter and
// Begin/End must not be called concurrently.
type Ring struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
	fences *FenceSync

	slots   []*frameSlot
	current int
	frames  uint64
	open    *Frame

	destroyed bool
}

// NewRing creates a ring of depth slots, each with its own command
// encoder and a copy of every upload spec. All GPU objects are created
// eagerly so configuration errors surface here, not mid-frame.
//
// The fence synchronizer is shared with the caller; the ring stores
// submission checkpoints through it but does not own it.
func NewRing(device hal.Device, queue hal.Queue, fences *FenceSync, depth int, specs ...UploadSpec) (*Ring, error) {
	if device == nil || queue == nil || fences == nil {
		return nil, fmt.Errorf("%w: nil device, queue, or fence synchronizer", ErrInvalidSpec)
	}
	if depth < 2 {
		return nil, fmt.Errorf("%w: ring depth %d, need at least 2", ErrInvalidSpec, depth)
	}
	for i := range specs {
		if err := specs[i].validate(); err != nil {
			return nil, err
		}
	}

	r := &Ring{
		device:  device,
		queue:   queue,
		fences:  fences,
		slots:   make([]*frameSlot, 0, depth),
		current: -1,
	}
	for i := 0; i < depth; i++ {
		encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
			Label: fmt.Sprintf("frame_slot_%d", i),
		})
		if err != nil {
			r.Destroy()
			return nil, fmt.Errorf("%w: create encoder for slot %d: %v", ErrOutOfMemory, i, err)
		}
		slot := &frameSlot{encoder: encoder}
		for _, spec := range specs {
			s := spec
			if s.Label != "" {
				s.Label = fmt.Sprintf("%s_slot_%d", s.Label, i)
			}
			ub, err := NewUploadBuffer(device, queue, s)
			if err != nil {
				r.Destroy()
				return nil, err
			}
			slot.uploads = append(slot.uploads, ub)
		}
		r.slots = append(r.slots, slot)
	}
	return r, nil
}

// Depth returns the number of slots.
func (r *Ring) Depth() int { return len(r.slots) }

// CurrentIndex returns the most recently selected slot index, or -1
// before the first Begin.
func (r *Ring) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Checkpoint returns the fence value slot i last submitted with. Zero
// means the slot has never been submitted.
func (r *Ring) Checkpoint(i int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.slots) {
		return 0
	}
	return r.slots[i].checkpoint
}

// Recording reports whether a frame is currently open between Begin and
// End.
func (r *Ring) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open != nil
}

// UploadAt returns upload buffer i of the given slot, or nil if either
// index is out of range. It exists for one-time setup, such as building
// a bind group per slot; per-frame writes go through [Frame.Upload],
// which scopes them to the slot's safe window.
func (r *Ring) UploadAt(slot, i int) *UploadBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot < 0 || slot >= len(r.slots) {
		return nil
	}
	if i < 0 || i >= len(r.slots[slot].uploads) {
		return nil
	}
	return r.slots[slot].uploads[i]
}

// Begin advances to the next slot, waits until that slot's previous
// submission has retired, releases what the slot deferred, resets its
// encoder, and returns the new frame.
//
// The wait is the ring's backpressure: its target is the checkpoint the
// slot stored N frames ago, not the newest fence value. On a slot's
// first use the checkpoint is zero and the wait returns immediately.
//
// Begin fails with [ErrFrameOpen] while another frame is recording, and
// passes through [ErrDeviceLost] or [ErrTimeout] from the checkpoint
// wait, in which case the ring is left positioned as before so a
// recovered caller may retry.
func (r *Ring) Begin() (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil, ErrDestroyed
	}
	if r.open != nil {
		return nil, fmt.Errorf("%w: frame %d on slot %d", ErrFrameOpen, r.open.number, r.open.index)
	}

	next := (r.current + 1) % len(r.slots)
	slot := r.slots[next]
	if slot.state == slotSubmitted {
		slot.state = slotRetiring
	}

	start := time.Now()
	if err := r.fences.WaitUntil(slot.checkpoint); err != nil {
		return nil, fmt.Errorf("slot %d checkpoint %d: %w", next, slot.checkpoint, err)
	}
	waited := time.Since(start)

	r.retireLocked(slot)

	if err := slot.encoder.BeginEncoding(fmt.Sprintf("frame_%d", r.frames)); err != nil {
		slot.state = slotIdle
		return nil, fmt.Errorf("flight: begin encoding on slot %d: %w", next, err)
	}
	slot.state = slotRecording
	r.current = next

	f := &Frame{
		ring:         r,
		slot:         slot,
		index:        next,
		number:       r.frames,
		waitedFor:    slot.checkpoint,
		waitDuration: waited,
	}
	r.frames++
	r.open = f
	return f, nil
}

// retireLocked reclaims a slot whose checkpoint is known reached: frees
// the previous command buffer and runs the deferred releases recorded by
// the slot's last frame.
func (r *Ring) retireLocked(slot *frameSlot) {
	if slot.pending != nil {
		r.device.FreeCommandBuffer(slot.pending)
		slot.pending = nil
	}
	for _, fn := range slot.deferred {
		fn()
	}
	slot.deferred = nil
	slot.state = slotIdle
}

// End closes the frame's encoder, submits the command buffer with a
// fresh fence value, and stores that value as the slot's checkpoint.
// It returns the fence value the frame was submitted with.
//
// A submit rejected by the driver reports [ErrDeviceLost]: the queue has
// stopped accepting work and the pipeline cannot continue against it.
func (r *Ring) End(f *Frame) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return 0, ErrDestroyed
	}
	if f == nil || r.open != f || f.slot.state != slotRecording {
		return 0, ErrNotRecording
	}

	cb, err := f.slot.encoder.EndEncoding()
	if err != nil {
		f.slot.encoder.DiscardEncoding()
		f.slot.state = slotIdle
		r.open = nil
		return 0, fmt.Errorf("flight: end encoding frame %d: %w", f.number, err)
	}

	value := r.fences.Signal()
	if err := r.queue.Submit([]hal.CommandBuffer{cb}, r.fences.Fence(), value); err != nil {
		r.device.FreeCommandBuffer(cb)
		f.slot.state = slotIdle
		r.open = nil
		return 0, fmt.Errorf("%w: submit frame %d: %v", ErrDeviceLost, f.number, err)
	}

	f.slot.checkpoint = value
	f.slot.pending = cb
	f.slot.state = slotSubmitted
	f.submitted = value
	r.open = nil
	return value, nil
}

// Abandon discards a recording frame without submitting. The encoder's
// commands are dropped and the slot returns to Idle with its previous
// checkpoint intact. Used when recording fails mid-frame.
func (r *Ring) Abandon(f *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f == nil || r.open != f || f.slot.state != slotRecording {
		return
	}
	f.slot.encoder.DiscardEncoding()
	f.slot.state = slotIdle
	r.open = nil
}

// Destroy releases every slot's resources. The caller must drain the GPU
// first; Destroy frees command buffers and upload memory without waiting.
// Safe to call multiple times.
func (r *Ring) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.destroyed = true
	for _, slot := range r.slots {
		if slot.state == slotRecording && slot.encoder != nil {
			slot.encoder.DiscardEncoding()
		}
		if slot.pending != nil {
			r.device.FreeCommandBuffer(slot.pending)
			slot.pending = nil
		}
		for _, fn := range slot.deferred {
			fn()
		}
		slot.deferred = nil
		for _, ub := range slot.uploads {
			ub.Release()
		}
		slot.encoder = nil
	}
	r.open = nil
}
