// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"github.com/gogpu/wgpu/hal"
)

// Presenter delivers finished back buffers to the display system.
//
// The pipeline owns rotation and synchronization; the presenter only
// receives the texture whose rendering is complete. Implementations wrap
// whatever the platform offers: a windowing swapchain, a compositor copy,
// a video encoder, or nothing at all for offscreen rendering (the
// pipeline runs fine with no presenter attached).
type Presenter interface {
	// Present hands one finished back buffer to the display system.
	// syncInterval follows swapchain convention: 0 presents immediately,
	// 1 synchronizes to the display refresh. Present must not block on
	// GPU work; the pipeline has already ordered the submission.
	Present(tex hal.Texture, syncInterval int) error
}

// ResizablePresenter is an optional interface for presenters whose
// display target can change dimensions, such as a window surface.
type ResizablePresenter interface {
	Presenter

	// ResizeTarget adapts the display target to the new dimensions.
	// The pipeline calls it during resize, after draining the GPU and
	// before recreating the back buffers.
	ResizeTarget(width, height uint32) error
}

// AsResizable upgrades a presenter to its resizable capability. The
// upgrade is an explicit query, never an implicit upcast: presenters
// without the capability report [ErrNotResizable] and the caller decides
// whether that is fatal. A nil presenter is not resizable.
func AsResizable(p Presenter) (ResizablePresenter, error) {
	if p == nil {
		return nil, ErrNotResizable
	}
	rp, ok := p.(ResizablePresenter)
	if !ok {
		return nil, ErrNotResizable
	}
	return rp, nil
}
