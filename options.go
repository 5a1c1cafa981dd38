// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
)

// Option configures a Pipeline during creation.
// Use functional options to customize pipeline behavior.
//
// Example:
//
//	// Default pipeline: three frames in flight, two back buffers.
//	p, err := flight.New(device, queue)
//
//	// Deeper ring with per-frame constant buffers:
//	p, err := flight.New(device, queue,
//	    flight.WithFrameDepth(4),
//	    flight.WithFrameUploads(flight.UploadSpec{
//	        Label: "pass_constants", Capacity: 1, ElementSize: 256,
//	    }),
//	)
type Option func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	label           string
	frameDepth      int
	backBufferCount int
	width           uint32
	height          uint32
	colorFormat     gputypes.TextureFormat
	depthFormat     gputypes.TextureFormat
	depth           bool
	waitTimeout     time.Duration
	presenter       Presenter
	uploads         []UploadSpec
}

// Pipeline defaults. Three frames in flight against two presentable
// buffers is the classic configuration for a single-queue renderer.
const (
	// DefaultFrameDepth is the default number of frames in flight.
	DefaultFrameDepth = 3

	// DefaultBackBufferCount is the default number of back buffers.
	DefaultBackBufferCount = 2

	// DefaultWaitTimeout bounds every fence wait issued by the pipeline.
	DefaultWaitTimeout = 5 * time.Second
)

func defaultPipelineOptions() pipelineOptions {
	return pipelineOptions{
		label:           "flight",
		frameDepth:      DefaultFrameDepth,
		backBufferCount: DefaultBackBufferCount,
		width:           1280,
		height:          720,
		colorFormat:     gputypes.TextureFormatBGRA8Unorm,
		depthFormat:     gputypes.TextureFormatDepth24PlusStencil8,
		depth:           true,
		waitTimeout:     DefaultWaitTimeout,
	}
}

// validate reports the first inconsistency in the assembled options.
func (o *pipelineOptions) validate() error {
	if o.frameDepth < 2 {
		return fmt.Errorf("%w: frame depth %d, need at least 2", ErrInvalidSpec, o.frameDepth)
	}
	if o.backBufferCount < 2 {
		return fmt.Errorf("%w: back buffer count %d, need at least 2", ErrInvalidSpec, o.backBufferCount)
	}
	if o.width == 0 || o.height == 0 {
		return fmt.Errorf("%w: zero extent %dx%d", ErrInvalidSpec, o.width, o.height)
	}
	if o.waitTimeout <= 0 {
		return fmt.Errorf("%w: wait timeout must be positive", ErrInvalidSpec)
	}
	for i := range o.uploads {
		if err := o.uploads[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithLabel sets the debug label prefix used for the pipeline's GPU objects.
func WithLabel(label string) Option {
	return func(o *pipelineOptions) { o.label = label }
}

// WithFrameDepth sets the number of frames in flight (ring depth).
// The minimum is 2; the default is [DefaultFrameDepth].
func WithFrameDepth(n int) Option {
	return func(o *pipelineOptions) { o.frameDepth = n }
}

// WithBackBufferCount sets the number of presentable back buffers.
// The minimum is 2; the default is [DefaultBackBufferCount]. The count is
// fixed for the swapchain's lifetime; resize never changes it.
func WithBackBufferCount(n int) Option {
	return func(o *pipelineOptions) { o.backBufferCount = n }
}

// WithExtent sets the initial back-buffer dimensions in pixels.
func WithExtent(width, height uint32) Option {
	return func(o *pipelineOptions) {
		o.width = width
		o.height = height
	}
}

// WithColorFormat sets the back-buffer texture format.
// The default is BGRA8Unorm.
func WithColorFormat(f gputypes.TextureFormat) Option {
	return func(o *pipelineOptions) { o.colorFormat = f }
}

// WithDepthFormat sets the depth-buffer texture format.
// The default is Depth24PlusStencil8.
func WithDepthFormat(f gputypes.TextureFormat) Option {
	return func(o *pipelineOptions) { o.depthFormat = f }
}

// WithoutDepth disables creation of the depth buffer. Render passes
// recorded against the pipeline then carry color attachments only.
func WithoutDepth() Option {
	return func(o *pipelineOptions) { o.depth = false }
}

// WithWaitTimeout bounds every fence wait issued by the pipeline.
// A wait that expires without any fence progress reports [ErrDeviceLost];
// one that expires while the fence still advances reports [ErrTimeout].
// The default is [DefaultWaitTimeout].
func WithWaitTimeout(d time.Duration) Option {
	return func(o *pipelineOptions) { o.waitTimeout = d }
}

// WithPresenter attaches a presenter that receives each finished back
// buffer. Without one, Present only rotates the back-buffer index, which
// is the offscreen configuration used in tests.
func WithPresenter(p Presenter) Option {
	return func(o *pipelineOptions) { o.presenter = p }
}

// WithFrameUploads declares the upload buffers created for every frame
// slot. Each slot receives its own copy of every spec, so per-frame data
// written while the GPU consumes an older frame never races.
func WithFrameUploads(specs ...UploadSpec) Option {
	return func(o *pipelineOptions) { o.uploads = append(o.uploads, specs...) }
}
