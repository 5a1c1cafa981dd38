// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import "errors"

// Device and submission errors.
var (
	// ErrDeviceLost is returned when the GPU stops making progress on the
	// fence timeline or the driver reports device removal. The condition is
	// fatal to the current pipeline: all further submissions are refused and
	// the caller must tear down and rebuild every GPU object.
	ErrDeviceLost = errors.New("flight: device lost")

	// ErrTimeout is returned when a bounded fence wait expires while the
	// GPU is still observably making progress. The wait may be retried.
	ErrTimeout = errors.New("flight: fence wait timed out")

	// ErrOutOfMemory is returned when a resource or command-object creation
	// call fails at the driver level. Creation failures surface immediately;
	// they are never deferred to first use.
	ErrOutOfMemory = errors.New("flight: out of device memory")
)

// Resource state tracking errors.
var (
	// ErrInvalidTransition is returned when a transition's declared "before"
	// state does not match the resource's actual last-recorded state.
	ErrInvalidTransition = errors.New("flight: invalid resource state transition")

	// ErrUntracked is returned when transitioning a resource that was never
	// registered with the tracker.
	ErrUntracked = errors.New("flight: resource is not tracked")
)

// Frame ring errors.
var (
	// ErrFrameOpen is returned by BeginFrame while another frame is still
	// recording. The pipeline is single-submitter: at most one frame may be
	// in the Recording state at any time.
	ErrFrameOpen = errors.New("flight: a frame is already recording")

	// ErrNotRecording is returned by EndFrame for a frame that is not in
	// the Recording state (already ended, or never begun).
	ErrNotRecording = errors.New("flight: frame is not recording")
)

// Upload buffer errors.
var (
	// ErrOutOfRange is returned when an upload write or region request
	// falls outside the buffer's element capacity or element size.
	ErrOutOfRange = errors.New("flight: upload index or size out of range")

	// ErrReleased is returned when operating on an upload buffer whose
	// mapping has already been released.
	ErrReleased = errors.New("flight: upload buffer has been released")
)

// Lifecycle and configuration errors.
var (
	// ErrDestroyed is returned when operating on a destroyed pipeline,
	// ring, or swapchain.
	ErrDestroyed = errors.New("flight: object has been destroyed")

	// ErrInvalidSpec is returned when creation options are inconsistent,
	// such as a ring depth below two or a zero-sized upload element.
	ErrInvalidSpec = errors.New("flight: invalid configuration")
)

// Presentation errors.
var (
	// ErrNotResizable is returned by AsResizable when a presenter does not
	// implement the resizable capability.
	ErrNotResizable = errors.New("flight: presenter is not resizable")
)
