// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
)

// Pipeline orchestrates a frame loop against one device and queue: it
// rotates the frame ring, tracks resource states, rotates and resizes
// the swapchain, and drains the GPU when lifetimes demand it.
//
// The standard loop:
//
//	f, err := p.BeginFrame()            // blocks until the slot retired
//	tr := p.Tracker()
//	back, view := p.Swapchain().CurrentBackBuffer()
//	tr.Transition(back, flight.StatePresent, flight.StateRenderTarget)
//	tr.Flush(f.Encoder())
//	// ... record passes, write frame.Upload(i) data ...
//	tr.Transition(back, flight.StateRenderTarget, flight.StatePresent)
//	if _, err := p.EndFrame(f); err != nil { ... }
//	if err := p.Present(0); err != nil { ... }
//
// Pipeline is single-submitter: BeginFrame, EndFrame, Present, Resize,
// and Destroy belong to one goroutine. The only blocking calls are the
// fence waits inside BeginFrame, Flush, Resize, and Destroy.
//
// Once any operation reports [ErrDeviceLost] the pipeline latches into a
// lost state and refuses further submissions; there is no cancellation
// or per-frame recovery once work is on a dead queue. Recovery is
// destroying this pipeline and building a new one on a fresh device.
type Pipeline struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue

	fences  *FenceSync
	ring    *Ring
	sc      *Swapchain
	tracker *StateTracker
	timer   *FrameTimer

	label     string
	lost      atomic.Bool
	destroyed bool
}

// New creates a pipeline on the device and queue. Every GPU object the
// configuration implies is created eagerly: the fence, one command
// encoder and upload-buffer set per frame slot, the back buffers, and
// the depth buffer. Failures surface here and release whatever was
// already built.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Pipeline, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrInvalidSpec)
	}
	o := defaultPipelineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	fences, err := NewFenceSync(device, WithFenceTimeout(o.waitTimeout))
	if err != nil {
		return nil, err
	}
	tracker := NewStateTracker()
	ring, err := NewRing(device, queue, fences, o.frameDepth, o.uploads...)
	if err != nil {
		fences.Destroy()
		return nil, err
	}
	sc, err := NewSwapchain(device, tracker, opts...)
	if err != nil {
		ring.Destroy()
		fences.Destroy()
		return nil, err
	}

	p := &Pipeline{
		device:  device,
		queue:   queue,
		fences:  fences,
		ring:    ring,
		sc:      sc,
		tracker: tracker,
		timer:   NewFrameTimer(),
		label:   o.label,
	}
	if err := p.prepareDepth(); err != nil {
		p.Destroy()
		return nil, err
	}

	Logger().Info("pipeline created",
		"label", o.label,
		"frameDepth", o.frameDepth,
		"backBuffers", o.backBufferCount,
		"width", o.width, "height", o.height)
	return p, nil
}

// prepareDepth moves a freshly created depth buffer from Common to
// DepthWrite on a transient encoder and waits the submission out, so the
// first frame can bind it immediately. No-op without a depth buffer.
func (p *Pipeline) prepareDepth() error {
	depthTex, _ := p.sc.DepthBuffer()
	if depthTex == nil {
		return nil
	}
	if err := p.tracker.Transition(depthTex, StateCommon, StateDepthWrite); err != nil {
		return err
	}

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: p.label + "_depth_init",
	})
	if err != nil {
		return fmt.Errorf("%w: create depth init encoder: %v", ErrOutOfMemory, err)
	}
	if err := encoder.BeginEncoding("depth_init"); err != nil {
		return fmt.Errorf("flight: begin depth init: %w", err)
	}
	p.tracker.Flush(encoder)
	cb, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("flight: end depth init: %w", err)
	}

	value := p.fences.Signal()
	if err := p.queue.Submit([]hal.CommandBuffer{cb}, p.fences.Fence(), value); err != nil {
		p.device.FreeCommandBuffer(cb)
		return p.latch(fmt.Errorf("%w: submit depth init: %v", ErrDeviceLost, err))
	}
	if err := p.fences.WaitUntil(value); err != nil {
		return p.latch(err)
	}
	p.device.FreeCommandBuffer(cb)
	return nil
}

// latch records device loss the first time it is observed so that all
// further submissions are refused.
func (p *Pipeline) latch(err error) error {
	if err != nil && errors.Is(err, ErrDeviceLost) {
		if !p.lost.Swap(true) {
			Logger().Error("device lost, submissions stopped", "err", err)
		}
	}
	return err
}

// Lost reports whether the pipeline has latched into the lost state.
func (p *Pipeline) Lost() bool { return p.lost.Load() }

// Device returns the pipeline's device.
func (p *Pipeline) Device() hal.Device { return p.device }

// Queue returns the pipeline's queue.
func (p *Pipeline) Queue() hal.Queue { return p.queue }

// Tracker returns the resource state tracker.
func (p *Pipeline) Tracker() *StateTracker { return p.tracker }

// Fences returns the fence synchronizer shared by the ring and the
// drain paths.
func (p *Pipeline) Fences() *FenceSync { return p.fences }

// Swapchain returns the back-buffer manager.
func (p *Pipeline) Swapchain() *Swapchain { return p.sc }

// Ring returns the frame resource ring.
func (p *Pipeline) Ring() *Ring { return p.ring }

// Timer returns the frame timer. The pipeline ticks it in BeginFrame;
// callers read delta and total from the [Frame] instead of re-ticking.
func (p *Pipeline) Timer() *FrameTimer { return p.timer }

// BeginFrame advances the ring to the next slot, waiting until that
// slot's previous submission retired, and returns the frame context with
// a reset, recording encoder. The wait bounds how far the CPU runs
// ahead: at most frameDepth-1 frames.
func (p *Pipeline) BeginFrame() (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, ErrDestroyed
	}
	if p.lost.Load() {
		return nil, fmt.Errorf("%w: pipeline is lost", ErrDeviceLost)
	}

	p.timer.Tick()
	f, err := p.ring.Begin()
	if err != nil {
		return nil, p.latch(err)
	}
	f.delta = p.timer.Delta()
	f.total = p.timer.Total()

	if stats, ok := p.timer.CountFrame(); ok {
		Logger().Debug("frame stats",
			"fps", stats.FPS, "frameTime", stats.FrameTime)
	}
	Logger().Debug("frame begun",
		"frame", f.Number(), "slot", f.Index(),
		"waitedFor", f.WaitedFor(), "waited", f.WaitDuration())
	return f, nil
}

// EndFrame closes the frame's encoder, submits its command buffer with a
// fresh fence value, and stores that value as the slot's checkpoint.
// Any barriers still pending in the tracker are flushed into the frame's
// encoder first, so a batch built after the last explicit Flush is not
// silently dropped.
func (p *Pipeline) EndFrame(f *Frame) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return 0, ErrDestroyed
	}
	if p.lost.Load() {
		return 0, fmt.Errorf("%w: pipeline is lost", ErrDeviceLost)
	}
	if f == nil {
		return 0, ErrNotRecording
	}

	p.tracker.Flush(f.Encoder())
	value, err := p.ring.End(f)
	if err != nil {
		return 0, p.latch(err)
	}
	Logger().Debug("frame submitted", "frame", f.Number(), "fence", value)
	return value, nil
}

// Present issues the presentation request for the current back buffer
// and advances the rotation. Call after EndFrame; presentation of a
// buffer whose rendering was never submitted is a content-level mistake
// the pipeline cannot detect.
func (p *Pipeline) Present(syncInterval int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrDestroyed
	}
	if p.lost.Load() {
		return fmt.Errorf("%w: pipeline is lost", ErrDeviceLost)
	}
	return p.sc.Present(syncInterval)
}

// Flush force-drains the GPU: it signals a fresh fence value with an
// otherwise empty submission and blocks until the GPU reaches it. On
// return every previously submitted command has finished.
func (p *Pipeline) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrDestroyed
	}
	if p.lost.Load() {
		return fmt.Errorf("%w: pipeline is lost", ErrDeviceLost)
	}
	return p.flushLocked()
}

func (p *Pipeline) flushLocked() error {
	value := p.fences.Signal()
	if err := p.queue.Submit(nil, p.fences.Fence(), value); err != nil {
		return p.latch(fmt.Errorf("%w: drain signal: %v", ErrDeviceLost, err))
	}
	if err := p.fences.WaitUntil(value); err != nil {
		return p.latch(err)
	}
	Logger().Debug("queue drained", "fence", value)
	return nil
}

// Resize recreates the back buffers and depth buffer at the new
// dimensions. The sequence is strict: drain the GPU so nothing still
// references the old images, let a resizable presenter adapt its target,
// recreate images and views, reset the rotation to index zero, and move
// the new depth buffer to DepthWrite again. The back-buffer count never
// changes.
//
// Resize must not be called while a frame is recording.
func (p *Pipeline) Resize(width, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrDestroyed
	}
	if p.lost.Load() {
		return fmt.Errorf("%w: pipeline is lost", ErrDeviceLost)
	}
	if p.ring.Recording() {
		return fmt.Errorf("%w: resize during recording", ErrFrameOpen)
	}

	if err := p.flushLocked(); err != nil {
		return err
	}
	if rp, err := AsResizable(p.sc.Presenter()); err == nil {
		if err := rp.ResizeTarget(width, height); err != nil {
			return fmt.Errorf("flight: presenter resize: %w", err)
		}
	}
	if err := p.sc.Recreate(width, height); err != nil {
		return err
	}
	if err := p.prepareDepth(); err != nil {
		return err
	}
	Logger().Info("pipeline resized", "width", width, "height", height)
	return nil
}

// Destroy drains outstanding fences and then releases every GPU object:
// ring slots, back and depth buffers, and the fence. The drain comes
// first so nothing the GPU still reads is destroyed under it; on a lost
// device the bounded drain expires and teardown proceeds anyway.
// Safe to call multiple times.
func (p *Pipeline) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true

	if !p.lost.Load() {
		if err := p.flushLocked(); err != nil {
			Logger().Warn("drain before teardown failed", "err", err)
		}
	}
	p.ring.Destroy()
	p.sc.Destroy()
	p.fences.Destroy()
	Logger().Info("pipeline destroyed", "label", p.label)
}
