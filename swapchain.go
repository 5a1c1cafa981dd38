// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Viewport is the full-target render viewport, recomputed on resize.
type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// ScissorRect is the full-target scissor rectangle, recomputed on resize.
type ScissorRect struct {
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// backTarget pairs a texture with its render view.
type backTarget struct {
	tex  hal.Texture
	view hal.TextureView
}

// Swapchain owns the rotating presentable back buffers and their paired
// depth buffer.
//
// The back-buffer array length is fixed for the swapchain's lifetime.
// Resize replaces image contents and dimensions, never the count, and
// resets the rotation to index zero. The images are destroyed only
// through resize or teardown, and only after the caller has drained the
// GPU; [Pipeline.Resize] wraps that sequence.
//
// Back buffers register with the state tracker in [StatePresent]; the
// depth buffer registers in [StateCommon] and is moved to
// [StateDepthWrite] once by the pipeline before first use.
type Swapchain struct {
	mu      sync.Mutex
	device  hal.Device
	tracker *StateTracker

	label       string
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
	withDepth   bool
	presenter   Presenter

	targets  []backTarget
	depth    backTarget
	index    int
	width    uint32
	height   uint32
	viewport Viewport
	scissor  ScissorRect
	presents uint64

	destroyed bool
}

// NewSwapchain creates the back buffers and depth buffer eagerly.
// The tracker learns every image's initial state. Creation failures
// surface immediately as [ErrOutOfMemory], with anything built so far
// released again.
func NewSwapchain(device hal.Device, tracker *StateTracker, opts ...Option) (*Swapchain, error) {
	if device == nil || tracker == nil {
		return nil, fmt.Errorf("%w: nil device or tracker", ErrInvalidSpec)
	}
	o := defaultPipelineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	sc := &Swapchain{
		device:      device,
		tracker:     tracker,
		label:       o.label,
		colorFormat: o.colorFormat,
		depthFormat: o.depthFormat,
		withDepth:   o.depth,
		presenter:   o.presenter,
		targets:     make([]backTarget, o.backBufferCount),
	}
	if err := sc.createTargets(o.width, o.height); err != nil {
		sc.Destroy()
		return nil, err
	}
	return sc, nil
}

// createTargets builds all back buffers and the depth buffer at the given
// extent and registers their states. Callers hold no lock yet (creation)
// or the swapchain lock (resize).
func (sc *Swapchain) createTargets(width, height uint32) error {
	for i := range sc.targets {
		tex, err := sc.device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s_backbuffer_%d", sc.label, i),
			Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        sc.colorFormat,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			return fmt.Errorf("%w: create back buffer %d: %v", ErrOutOfMemory, i, err)
		}
		view, err := sc.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: fmt.Sprintf("%s_backbuffer_view_%d", sc.label, i),
		})
		if err != nil {
			sc.device.DestroyTexture(tex)
			return fmt.Errorf("%w: create back buffer view %d: %v", ErrOutOfMemory, i, err)
		}
		sc.targets[i] = backTarget{tex: tex, view: view}
		sc.tracker.Track(tex, StatePresent)
	}

	if sc.withDepth {
		tex, err := sc.device.CreateTexture(&hal.TextureDescriptor{
			Label:         sc.label + "_depth",
			Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        sc.depthFormat,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("%w: create depth buffer: %v", ErrOutOfMemory, err)
		}
		view, err := sc.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: sc.label + "_depth_view",
		})
		if err != nil {
			sc.device.DestroyTexture(tex)
			return fmt.Errorf("%w: create depth view: %v", ErrOutOfMemory, err)
		}
		sc.depth = backTarget{tex: tex, view: view}
		sc.tracker.Track(tex, StateCommon)
	}

	sc.width = width
	sc.height = height
	sc.index = 0
	sc.viewport = Viewport{Width: float32(width), Height: float32(height), MinDepth: 0, MaxDepth: 1}
	sc.scissor = ScissorRect{Width: width, Height: height}
	return nil
}

// destroyTargetsLocked releases all images and views in reverse creation
// order and drops them from the tracker. Nil handles are skipped, so a
// partially built set tears down cleanly.
func (sc *Swapchain) destroyTargetsLocked() {
	if sc.depth.view != nil {
		sc.device.DestroyTextureView(sc.depth.view)
	}
	if sc.depth.tex != nil {
		sc.tracker.Forget(sc.depth.tex)
		sc.device.DestroyTexture(sc.depth.tex)
	}
	sc.depth = backTarget{}

	for i := len(sc.targets) - 1; i >= 0; i-- {
		if sc.targets[i].view != nil {
			sc.device.DestroyTextureView(sc.targets[i].view)
		}
		if sc.targets[i].tex != nil {
			sc.tracker.Forget(sc.targets[i].tex)
			sc.device.DestroyTexture(sc.targets[i].tex)
		}
		sc.targets[i] = backTarget{}
	}
}

// Count returns the fixed number of back buffers.
func (sc *Swapchain) Count() int { return len(sc.targets) }

// Index returns the current back-buffer index.
func (sc *Swapchain) Index() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.index
}

// CurrentBackBuffer returns the texture and view rendering targets for
// the current frame.
func (sc *Swapchain) CurrentBackBuffer() (hal.Texture, hal.TextureView) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	t := sc.targets[sc.index]
	return t.tex, t.view
}

// BackBuffer returns back buffer i. Nil handles when i is out of range.
func (sc *Swapchain) BackBuffer(i int) (hal.Texture, hal.TextureView) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if i < 0 || i >= len(sc.targets) {
		return nil, nil
	}
	return sc.targets[i].tex, sc.targets[i].view
}

// DepthBuffer returns the depth texture and view, or nil handles when the
// swapchain was built without depth.
func (sc *Swapchain) DepthBuffer() (hal.Texture, hal.TextureView) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.depth.tex, sc.depth.view
}

// Extent returns the current back-buffer dimensions.
func (sc *Swapchain) Extent() (width, height uint32) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.width, sc.height
}

// Viewport returns the full-target viewport for the current extent.
func (sc *Swapchain) Viewport() Viewport {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.viewport
}

// Scissor returns the full-target scissor for the current extent.
func (sc *Swapchain) Scissor() ScissorRect {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.scissor
}

// Presents returns the number of completed Present calls.
func (sc *Swapchain) Presents() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.presents
}

// Presenter returns the attached presenter, or nil in offscreen mode.
func (sc *Swapchain) Presenter() Presenter {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.presenter
}

// Present issues the presentation request for the current back buffer and
// advances the index modulo the buffer count. The request is asynchronous
// and never blocks: with a presenter attached it is forwarded, otherwise
// presentation is a pure rotation (offscreen mode).
//
// On presenter failure the index does not advance; the buffer was not
// handed off.
func (sc *Swapchain) Present(syncInterval int) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return ErrDestroyed
	}
	if sc.presenter != nil {
		if err := sc.presenter.Present(sc.targets[sc.index].tex, syncInterval); err != nil {
			return fmt.Errorf("flight: present back buffer %d: %w", sc.index, err)
		}
	}
	sc.index = (sc.index + 1) % len(sc.targets)
	sc.presents++
	return nil
}

// Recreate replaces every image at the new dimensions and resets the
// rotation to index zero. The back-buffer count never changes. The
// caller must have drained the GPU first: the old images are destroyed
// immediately. [Pipeline.Resize] performs the full drain-recreate-
// retransition sequence; use it unless driving the swapchain manually.
func (sc *Swapchain) Recreate(width, height uint32) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return ErrDestroyed
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero extent %dx%d", ErrInvalidSpec, width, height)
	}
	sc.destroyTargetsLocked()
	if err := sc.createTargets(width, height); err != nil {
		return err
	}
	Logger().Info("swapchain recreated",
		"width", width, "height", height, "buffers", len(sc.targets))
	return nil
}

// Destroy releases all images and views. The caller must drain the GPU
// first. Safe to call multiple times.
func (sc *Swapchain) Destroy() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	sc.destroyTargetsLocked()
}
