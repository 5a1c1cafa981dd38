// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ResourceState is the usage state a tracked GPU resource was last left in.
// State changes only through an explicit [StateTracker.Transition] recorded
// into a command stream; between transitions the state is considered fixed.
type ResourceState int

const (
	// StateCommon is the initial state of a freshly created resource.
	StateCommon ResourceState = iota

	// StateCopyDest marks a resource as the target of a copy or upload.
	StateCopyDest

	// StateCopySrc marks a resource as the source of a copy or readback.
	StateCopySrc

	// StateRenderTarget marks a texture bound as a color attachment.
	StateRenderTarget

	// StatePresent marks a back buffer handed to the presentation engine.
	StatePresent

	// StateDepthWrite marks a texture bound as a writable depth attachment.
	StateDepthWrite

	// StateGenericRead marks a buffer readable by any downstream consumer.
	StateGenericRead

	// StateShaderResource marks a texture sampled or read by shaders.
	StateShaderResource
)

// String returns the state name used in errors and logs.
func (s ResourceState) String() string {
	switch s {
	case StateCommon:
		return "Common"
	case StateCopyDest:
		return "CopyDest"
	case StateCopySrc:
		return "CopySrc"
	case StateRenderTarget:
		return "RenderTarget"
	case StatePresent:
		return "Present"
	case StateDepthWrite:
		return "DepthWrite"
	case StateGenericRead:
		return "GenericRead"
	case StateShaderResource:
		return "ShaderResource"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// textureUsage maps a state to the hal usage flag carried by texture
// barriers. Present maps to CopySrc: a finished back buffer is consumed by
// the presentation engine's copy, which is also how offscreen readback
// consumes it. Depth attachments share the render-attachment usage.
func (s ResourceState) textureUsage() gputypes.TextureUsage {
	switch s {
	case StateCopyDest:
		return gputypes.TextureUsageCopyDst
	case StateCopySrc, StatePresent:
		return gputypes.TextureUsageCopySrc
	case StateRenderTarget, StateDepthWrite:
		return gputypes.TextureUsageRenderAttachment
	case StateGenericRead, StateShaderResource:
		return gputypes.TextureUsageTextureBinding
	default:
		return gputypes.TextureUsage(0)
	}
}

// StateTracker records the last-known usage state of GPU resources and
// turns validated transitions into batched barrier commands.
//
// The tracker is bookkeeping for a hazard model the driver cannot check:
// submission order alone does not express read/write dependencies between
// resources, so every state change must be declared. Callers declare the
// state they believe a resource is in; a mismatch is reported as
// [ErrInvalidTransition] instead of the silent rendering corruption the
// mistake would otherwise cause.
//
// Texture transitions accumulate into a pending batch and are emitted in a
// single TransitionTextures call by [StateTracker.Flush]. Buffer
// transitions are tracked logically only: hal synchronizes buffer memory
// at submission boundaries, so no buffer barrier command exists to record.
//
// Typical per-frame path for a back buffer:
//
//	tr.Transition(backBuffer, flight.StatePresent, flight.StateRenderTarget)
//	tr.Flush(frame.Encoder())
//	// ... render pass ...
//	tr.Transition(backBuffer, flight.StateRenderTarget, flight.StatePresent)
//	tr.Flush(frame.Encoder())
type StateTracker struct {
	mu      sync.Mutex
	states  map[any]ResourceState
	pending []hal.TextureBarrier
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[any]ResourceState)}
}

// Track registers a resource at the given state, replacing any previous
// registration. Freshly created resources start in [StateCommon].
func (t *StateTracker) Track(res any, state ResourceState) {
	if res == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[res] = state
}

// State returns the last-recorded state of a resource.
func (t *StateTracker) State(res any) (ResourceState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[res]
	return s, ok
}

// Forget drops a resource from the tracker. Call when the resource is
// destroyed, such as when resize releases the old back buffers.
func (t *StateTracker) Forget(res any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, res)
}

// Tracked returns the number of registered resources.
func (t *StateTracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// Transition declares that a resource moves from the before state to the
// after state and queues the matching barrier.
//
// The declared before state must equal the resource's last-recorded state;
// otherwise [ErrInvalidTransition] is returned and nothing is recorded.
// Declaring before == after is recognized as a no-op: nil error, no
// barrier.
//
// A queued barrier always covers the whole resource, every mip level and
// array layer. Per-subresource tracking is deliberately not modeled.
//
// Transitions accumulate until [StateTracker.Flush] records them; multiple
// transitions batched into one flush become a single barrier command.
func (t *StateTracker) Transition(res any, before, after ResourceState) error {
	if res == nil {
		return fmt.Errorf("%w: nil resource", ErrUntracked)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.states[res]
	if !ok {
		return fmt.Errorf("%w: transition %s -> %s", ErrUntracked, before, after)
	}
	if current != before {
		return fmt.Errorf("%w: resource is in %s, caller declared %s (-> %s)",
			ErrInvalidTransition, current, before, after)
	}
	if before == after {
		return nil
	}

	t.states[res] = after
	if tex, isTexture := res.(hal.Texture); isTexture {
		t.pending = append(t.pending, hal.TextureBarrier{
			Texture: tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: before.textureUsage(),
				NewUsage: after.textureUsage(),
			},
		})
	}
	return nil
}

// Pending returns the number of texture barriers queued for the next Flush.
func (t *StateTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Flush records all queued texture barriers into the encoder as one
// TransitionTextures command and clears the batch. A flush with nothing
// queued records nothing.
func (t *StateTracker) Flush(encoder hal.CommandEncoder) {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	if len(batch) == 0 || encoder == nil {
		return
	}
	encoder.TransitionTextures(batch)
}
