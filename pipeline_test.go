// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"errors"
	"testing"
)

func createTestPipeline(t *testing.T, opts ...Option) (*Pipeline, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)

	p, err := New(device, queue, opts...)
	if err != nil {
		cleanup()
		t.Fatalf("New failed: %v", err)
	}
	return p, func() {
		p.Destroy()
		cleanup()
	}
}

func TestPipelineValidation(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := New(nil, queue); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil device error = %v, want ErrInvalidSpec", err)
	}
	if _, err := New(device, nil); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("nil queue error = %v, want ErrInvalidSpec", err)
	}
	if _, err := New(device, queue, WithFrameDepth(1)); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("frame depth 1 error = %v, want ErrInvalidSpec", err)
	}
	if _, err := New(device, queue, WithWaitTimeout(0)); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("zero timeout error = %v, want ErrInvalidSpec", err)
	}
}

func TestPipelineAccessors(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := New(device, queue)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Destroy()

	if p.Device() != device || p.Queue() != queue {
		t.Error("Device/Queue do not round-trip")
	}
	if p.Tracker() == nil || p.Fences() == nil || p.Swapchain() == nil ||
		p.Ring() == nil || p.Timer() == nil {
		t.Error("component accessor returned nil")
	}
	if p.Lost() {
		t.Error("Lost() = true on a fresh pipeline")
	}
}

// TestPipelineDepthPreparation checks the depth buffer is usable right
// after creation: transitioned once and the transition submission waited
// out.
func TestPipelineDepthPreparation(t *testing.T) {
	p, cleanup := createTestPipeline(t)
	defer cleanup()

	depthTex, _ := p.Swapchain().DepthBuffer()
	if depthTex == nil {
		t.Fatal("depth buffer missing")
	}
	state, ok := p.Tracker().State(depthTex)
	if !ok || state != StateDepthWrite {
		t.Errorf("depth state = %v tracked=%v, want StateDepthWrite", state, ok)
	}
	if got := p.Fences().CurrentValue(); got != 1 {
		t.Errorf("CurrentValue() after creation = %d, want 1 (depth init)", got)
	}
	if got := p.Tracker().Pending(); got != 0 {
		t.Errorf("Pending() after creation = %d, want 0", got)
	}
}

// TestPipelineFrameLoop drives seven frames through a depth-3 ring and
// two back buffers, moving each back buffer through the render-present
// state cycle.
func TestPipelineFrameLoop(t *testing.T) {
	p, cleanup := createTestPipeline(t, WithoutDepth(), WithExtent(320, 240))
	defer cleanup()

	tracker := p.Tracker()
	for i := 0; i < 7; i++ {
		f, err := p.BeginFrame()
		if err != nil {
			t.Fatalf("BeginFrame %d failed: %v", i, err)
		}
		if want := i % 3; f.Index() != want {
			t.Errorf("frame %d slot = %d, want %d", i, f.Index(), want)
		}
		if f.Number() != uint64(i) {
			t.Errorf("frame %d number = %d", i, f.Number())
		}
		if f.Delta() < 0 || f.Total() < 0 {
			t.Errorf("frame %d negative timing: delta=%v total=%v", i, f.Delta(), f.Total())
		}

		tex, _ := p.Swapchain().CurrentBackBuffer()
		if err := tracker.Transition(tex, StatePresent, StateRenderTarget); err != nil {
			t.Fatalf("frame %d to render target: %v", i, err)
		}
		tracker.Flush(f.Encoder())

		// Passes would record here.

		if err := tracker.Transition(tex, StateRenderTarget, StatePresent); err != nil {
			t.Fatalf("frame %d to present: %v", i, err)
		}

		value, err := p.EndFrame(f)
		if err != nil {
			t.Fatalf("EndFrame %d failed: %v", i, err)
		}
		if want := uint64(i + 1); value != want {
			t.Errorf("frame %d fence value = %d, want %d", i, value, want)
		}
		if err := p.Present(0); err != nil {
			t.Fatalf("Present %d failed: %v", i, err)
		}
	}

	if got := p.Fences().CurrentValue(); got != 7 {
		t.Errorf("CurrentValue() = %d, want 7", got)
	}
	if got := p.Swapchain().Presents(); got != 7 {
		t.Errorf("Presents() = %d, want 7", got)
	}
	if got := p.Swapchain().Index(); got != 1 {
		t.Errorf("back buffer index = %d, want 1 after 7 presents of 2", got)
	}
	for i := 0; i < p.Swapchain().Count(); i++ {
		tex, _ := p.Swapchain().BackBuffer(i)
		if state, _ := tracker.State(tex); state != StatePresent {
			t.Errorf("back buffer %d finished in %v, want StatePresent", i, state)
		}
	}
}

// TestPipelineEndFrameFlushesBarriers checks a transition declared after
// the caller's last explicit Flush still reaches the frame's encoder.
func TestPipelineEndFrameFlushesBarriers(t *testing.T) {
	p, cleanup := createTestPipeline(t, WithoutDepth())
	defer cleanup()

	f, err := p.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	tex, _ := p.Swapchain().CurrentBackBuffer()
	if err := p.Tracker().Transition(tex, StatePresent, StateCopySrc); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got := p.Tracker().Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1 before EndFrame", got)
	}
	if _, err := p.EndFrame(f); err != nil {
		t.Fatalf("EndFrame failed: %v", err)
	}
	if got := p.Tracker().Pending(); got != 0 {
		t.Errorf("Pending() = %d after EndFrame, want 0", got)
	}
}

func TestPipelineFrameGuards(t *testing.T) {
	p, cleanup := createTestPipeline(t, WithoutDepth())
	defer cleanup()

	if _, err := p.EndFrame(nil); !errors.Is(err, ErrNotRecording) {
		t.Errorf("EndFrame(nil) = %v, want ErrNotRecording", err)
	}

	f, err := p.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if _, err := p.BeginFrame(); !errors.Is(err, ErrFrameOpen) {
		t.Errorf("nested BeginFrame = %v, want ErrFrameOpen", err)
	}
	if _, err := p.EndFrame(f); err != nil {
		t.Fatalf("EndFrame failed: %v", err)
	}
	if _, err := p.EndFrame(f); !errors.Is(err, ErrNotRecording) {
		t.Errorf("double EndFrame = %v, want ErrNotRecording", err)
	}
}

func TestPipelineFlush(t *testing.T) {
	p, cleanup := createTestPipeline(t, WithoutDepth())
	defer cleanup()

	before := p.Fences().CurrentValue()
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := p.Fences().CurrentValue(); got != before+1 {
		t.Errorf("CurrentValue() = %d, want %d", got, before+1)
	}
	if got := p.Fences().CompletedValue(); got < before+1 {
		t.Errorf("CompletedValue() = %d after drain, want >= %d", got, before+1)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
}

func TestPipelineResize(t *testing.T) {
	pres := &recordingPresenter{}
	p, cleanup := createTestPipeline(t, WithExtent(1280, 720), WithPresenter(pres))
	defer cleanup()

	oldDepth, _ := p.Swapchain().DepthBuffer()

	// A few frames, then resize mid-run.
	for i := 0; i < 2; i++ {
		f, err := p.BeginFrame()
		if err != nil {
			t.Fatalf("BeginFrame %d failed: %v", i, err)
		}
		if _, err := p.EndFrame(f); err != nil {
			t.Fatalf("EndFrame %d failed: %v", i, err)
		}
		if err := p.Present(0); err != nil {
			t.Fatalf("Present %d failed: %v", i, err)
		}
	}

	if err := p.Resize(800, 600); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	if w, h := p.Swapchain().Extent(); w != 800 || h != 600 {
		t.Errorf("Extent() = %dx%d, want 800x600", w, h)
	}
	if got := p.Swapchain().Index(); got != 0 {
		t.Errorf("Index() after resize = %d, want 0", got)
	}
	if len(pres.resizes) != 1 || pres.resizes[0] != [2]uint32{800, 600} {
		t.Errorf("presenter resizes = %v, want [[800 600]]", pres.resizes)
	}
	if _, ok := p.Tracker().State(oldDepth); ok {
		t.Error("old depth buffer still tracked after resize")
	}
	newDepth, _ := p.Swapchain().DepthBuffer()
	if state, ok := p.Tracker().State(newDepth); !ok || state != StateDepthWrite {
		t.Errorf("new depth state = %v tracked=%v, want StateDepthWrite", state, ok)
	}

	// The pipeline keeps going at the new size.
	f, err := p.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame after resize failed: %v", err)
	}
	if _, err := p.EndFrame(f); err != nil {
		t.Fatalf("EndFrame after resize failed: %v", err)
	}
}

func TestPipelineResizeDuringRecording(t *testing.T) {
	p, cleanup := createTestPipeline(t, WithoutDepth())
	defer cleanup()

	f, err := p.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if err := p.Resize(640, 480); !errors.Is(err, ErrFrameOpen) {
		t.Errorf("Resize during recording = %v, want ErrFrameOpen", err)
	}
	p.Ring().Abandon(f)
	if err := p.Resize(640, 480); err != nil {
		t.Fatalf("Resize after Abandon failed: %v", err)
	}
}

// TestPipelineLostLatch flips the loss latch directly and checks every
// submitting operation refuses with the same classification.
func TestPipelineLostLatch(t *testing.T) {
	p, cleanup := createTestPipeline(t, WithoutDepth())
	defer cleanup()

	p.lost.Store(true)
	if !p.Lost() {
		t.Fatal("Lost() = false after latching")
	}

	if _, err := p.BeginFrame(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("BeginFrame on lost pipeline = %v, want ErrDeviceLost", err)
	}
	if _, err := p.EndFrame(nil); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("EndFrame on lost pipeline = %v, want ErrDeviceLost", err)
	}
	if err := p.Present(0); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Present on lost pipeline = %v, want ErrDeviceLost", err)
	}
	if err := p.Flush(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Flush on lost pipeline = %v, want ErrDeviceLost", err)
	}
	if err := p.Resize(100, 100); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Resize on lost pipeline = %v, want ErrDeviceLost", err)
	}

	// Teardown skips the drain but still releases resources.
	p.Destroy()
}

func TestPipelineDestroy(t *testing.T) {
	p, cleanup := createTestPipeline(t, WithoutDepth())
	defer cleanup()

	p.Destroy()
	p.Destroy() // second call is a no-op

	if _, err := p.BeginFrame(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("BeginFrame after Destroy = %v, want ErrDestroyed", err)
	}
	if _, err := p.EndFrame(nil); !errors.Is(err, ErrDestroyed) {
		t.Errorf("EndFrame after Destroy = %v, want ErrDestroyed", err)
	}
	if err := p.Present(0); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Present after Destroy = %v, want ErrDestroyed", err)
	}
	if err := p.Flush(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Flush after Destroy = %v, want ErrDestroyed", err)
	}
	if err := p.Resize(100, 100); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Resize after Destroy = %v, want ErrDestroyed", err)
	}
}
