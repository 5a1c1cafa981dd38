// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// FenceOption configures a FenceSync during creation.
type FenceOption func(*fenceOptions)

type fenceOptions struct {
	waitTimeout time.Duration
}

// WithFenceTimeout bounds every wait issued through the synchronizer.
// The default is [DefaultWaitTimeout].
func WithFenceTimeout(d time.Duration) FenceOption {
	return func(o *fenceOptions) { o.waitTimeout = d }
}

// FenceSync bridges the CPU submission timeline and the GPU execution
// timeline with a single monotonically increasing 64-bit counter.
//
// The counter has two views: the last value the CPU has asked the GPU to
// reach ([FenceSync.CurrentValue], advanced by Signal) and the highest
// value the GPU has actually reached ([FenceSync.CompletedValue]).
// Completed never exceeds current, and values handed out by Signal are
// strictly increasing.
//
// Signal only reserves a value; the GPU-side signal happens when the value
// is passed to the queue together with [FenceSync.Fence]:
//
//	value := fs.Signal()
//	err := queue.Submit(buffers, fs.Fence(), value)
//
// WaitUntil is the only blocking operation in the package. Every wait is
// bounded: a wait that expires without any fence progress reports
// [ErrDeviceLost], one that expires while the fence still advances reports
// [ErrTimeout]. An unbounded wait against a hung device would deadlock the
// process with no recovery path, so none is offered.
//
// FenceSync is safe for concurrent use. The frame ring, drain, and resize
// paths all share one synchronizer.
type FenceSync struct {
	mu        sync.Mutex
	device    hal.Device
	fence     hal.Fence
	timeout   time.Duration
	current   uint64
	completed uint64
	destroyed bool
}

// NewFenceSync creates a fence synchronizer on the device.
// The fence starts at value zero: nothing signaled, nothing completed.
func NewFenceSync(device hal.Device, opts ...FenceOption) (*FenceSync, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: nil device", ErrInvalidSpec)
	}
	o := fenceOptions{waitTimeout: DefaultWaitTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.waitTimeout <= 0 {
		return nil, fmt.Errorf("%w: wait timeout must be positive", ErrInvalidSpec)
	}

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("%w: create fence: %v", ErrOutOfMemory, err)
	}
	return &FenceSync{
		device:  device,
		fence:   fence,
		timeout: o.waitTimeout,
	}, nil
}

// Signal reserves and returns the next fence value. The caller passes the
// value to queue.Submit together with [FenceSync.Fence]; the GPU signals
// it once all work submitted before it has executed.
func (fs *FenceSync) Signal() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.current++
	return fs.current
}

// CurrentValue returns the last value handed out by Signal.
func (fs *FenceSync) CurrentValue() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.current
}

// CompletedValue returns the highest fence value the GPU is known to have
// reached. The value is discovered with non-blocking probes, so it may
// trail the GPU's true progress but never overstates it.
func (fs *FenceSync) CompletedValue() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.refreshCompletedLocked()
	return fs.completed
}

// refreshCompletedLocked advances the cached completion by probing the
// fence with zero-timeout waits. Probe count is bounded by the number of
// values in flight.
func (fs *FenceSync) refreshCompletedLocked() {
	if fs.destroyed {
		return
	}
	for fs.completed < fs.current {
		ok, err := fs.device.Wait(fs.fence, fs.completed+1, 0)
		if err != nil || !ok {
			return
		}
		fs.completed++
	}
}

// WaitUntil blocks the calling goroutine until the GPU has reached value.
// It returns immediately when the value is already satisfied, including
// the zero value recorded by never-used frame slots.
//
// The wait is bounded by the configured timeout. On expiry the error is
// [ErrDeviceLost] when the fence made no progress at all during the wait,
// or [ErrTimeout] when it advanced but fell short of value.
func (fs *FenceSync) WaitUntil(value uint64) error {
	fs.mu.Lock()
	if fs.destroyed {
		fs.mu.Unlock()
		return ErrDestroyed
	}
	if value <= fs.completed {
		fs.mu.Unlock()
		return nil
	}
	fs.refreshCompletedLocked()
	if value <= fs.completed {
		fs.mu.Unlock()
		return nil
	}
	device := fs.device
	fence := fs.fence
	timeout := fs.timeout
	before := fs.completed
	fs.mu.Unlock()

	// Block without the lock so CompletedValue stays readable from other
	// goroutines while this one waits.
	ok, err := device.Wait(fence, value, timeout)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.destroyed {
		return ErrDestroyed
	}
	if err != nil {
		return fmt.Errorf("%w: wait for %d failed: %v", ErrDeviceLost, value, err)
	}
	if ok {
		if value > fs.completed {
			fs.completed = value
		}
		return nil
	}
	fs.refreshCompletedLocked()
	return expiredWaitError(value, timeout, before, fs.completed)
}

// expiredWaitError classifies an expired bounded wait. Progress during the
// wait means the GPU is alive but slow; none means the timeline is stuck.
func expiredWaitError(value uint64, timeout time.Duration, before, completed uint64) error {
	if completed > before {
		return fmt.Errorf("%w: value %d not reached within %s (completed %d)",
			ErrTimeout, value, timeout, completed)
	}
	return fmt.Errorf("%w: no fence progress within %s (waiting for %d, completed %d)",
		ErrDeviceLost, timeout, value, completed)
}

// Fence returns the underlying fence handle for queue submission.
// Returns nil after Destroy.
func (fs *FenceSync) Fence() hal.Fence {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.fence
}

// Destroy releases the fence. Safe to call multiple times.
func (fs *FenceSync) Destroy() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.destroyed {
		return
	}
	fs.destroyed = true
	if fs.fence != nil {
		fs.device.DestroyFence(fs.fence)
		fs.fence = nil
	}
}
