// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Frame is the per-frame context handed out by [Ring.Begin] (usually via
// [Pipeline.BeginFrame]). It carries the slot's command encoder, the
// slot's upload buffers, and the timing state for this frame. All frame
// statistics travel through this object; the package keeps no ambient
// mutable timing state.
//
// A Frame is valid from Begin until the matching End. It is not safe for
// concurrent use; the pipeline is single-submitter.
type Frame struct {
	ring *Ring
	slot *frameSlot

	index  int
	number uint64

	waitedFor    uint64
	waitDuration time.Duration
	submitted    uint64

	delta time.Duration
	total time.Duration
}

// Index returns the frame slot index in [0, depth).
func (f *Frame) Index() int { return f.index }

// Number returns the absolute frame number, starting at zero.
func (f *Frame) Number() uint64 { return f.number }

// Encoder returns the slot's command encoder, reset and recording.
func (f *Frame) Encoder() hal.CommandEncoder { return f.slot.encoder }

// Upload returns the slot's i-th upload buffer, in the order the specs
// were declared at creation. Returns nil when i is out of range.
func (f *Frame) Upload(i int) *UploadBuffer {
	if i < 0 || i >= len(f.slot.uploads) {
		return nil
	}
	return f.slot.uploads[i]
}

// Uploads returns the slot's upload buffers.
func (f *Frame) Uploads() []*UploadBuffer { return f.slot.uploads }

// Defer queues fn to run when this slot retires: after the GPU has
// reached the fence value this frame submits with. Use it to release
// resources the recorded commands still reference, such as transient
// buffers or bind groups.
func (f *Frame) Defer(fn func()) {
	if fn == nil {
		return
	}
	f.slot.deferred = append(f.slot.deferred, fn)
}

// WaitedFor returns the fence checkpoint Begin waited on before this
// frame could reuse its slot. Zero for a slot's first use.
func (f *Frame) WaitedFor() uint64 { return f.waitedFor }

// WaitDuration returns how long Begin blocked on the slot's checkpoint.
func (f *Frame) WaitDuration() time.Duration { return f.waitDuration }

// SubmittedValue returns the fence value this frame was submitted with.
// Zero until End.
func (f *Frame) SubmittedValue() uint64 { return f.submitted }

// Delta returns the frame timer's delta at Begin. Zero when the pipeline
// runs without a timer tick, such as a bare Ring.
func (f *Frame) Delta() time.Duration { return f.delta }

// Total returns the frame timer's running total at Begin, excluding
// paused spans.
func (f *Frame) Total() time.Duration { return f.total }

// Dirty counts how many frame slots still hold a stale copy of a value.
//
// Per-frame constant data is replicated once per slot, so a change must
// be rewritten depth times, once into each slot's upload buffer, before
// every in-flight copy is current. Mark the counter when the value
// changes; consume it once per frame while it reports dirty:
//
//	obj.transform = next
//	obj.dirty.Mark()
//	...
//	if obj.dirty.Consume() {
//	    frame.Upload(objectConstants).Write(obj.slot, obj.bytes())
//	}
type Dirty struct {
	depth     int
	remaining int
}

// NewDirty creates a counter for a ring of the given depth. The counter
// starts fully dirty, matching a freshly created value no slot has seen.
func NewDirty(depth int) Dirty {
	return Dirty{depth: depth, remaining: depth}
}

// Mark records a change: every slot's copy is stale again.
func (d *Dirty) Mark() { d.remaining = d.depth }

// Dirty reports whether any slot still holds a stale copy.
func (d *Dirty) Dirty() bool { return d.remaining > 0 }

// Remaining returns the number of slots still holding stale copies.
func (d *Dirty) Remaining() int { return d.remaining }

// Consume reports whether the current frame's copy needs rewriting and,
// when it does, counts the rewrite down.
func (d *Dirty) Consume() bool {
	if d.remaining == 0 {
		return false
	}
	d.remaining--
	return true
}
