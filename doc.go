// Package flight keeps a CPU recording frames while the GPU executes
// older ones.
//
// # Overview
//
// flight is a frame pipelining library for the GoGPU ecosystem. Modern
// GPU APIs make the CPU and GPU run asynchronously: the CPU records and
// submits command buffers, the GPU executes them later. flight manages
// the bookkeeping that makes this safe: a fixed ring of frame slots
// with their own command encoders and upload buffers, fence checkpoints
// that bound how far the CPU runs ahead, explicit resource state
// transitions batched into barriers, and a rotating set of back buffers
// with optional depth.
//
// # Quick Start
//
//	import "github.com/gogpu/flight"
//
//	p, err := flight.New(device, queue,
//		flight.WithExtent(1280, 720),
//		flight.WithFrameUploads(flight.UploadSpec{
//			Label: "scene", Capacity: 1, ElementSize: 256,
//		}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Destroy()
//
//	for running {
//		f, err := p.BeginFrame() // blocks until this slot's old frame retired
//		if err != nil {
//			break
//		}
//		f.Upload(0).Write(0, sceneConstants)
//
//		back, view := p.Swapchain().CurrentBackBuffer()
//		tr := p.Tracker()
//		tr.Transition(back, flight.StatePresent, flight.StateRenderTarget)
//		tr.Flush(f.Encoder())
//		_ = view // record render passes against the view
//		tr.Transition(back, flight.StateRenderTarget, flight.StatePresent)
//
//		if _, err := p.EndFrame(f); err != nil {
//			break
//		}
//		if err := p.Present(0); err != nil {
//			break
//		}
//	}
//
// # Architecture
//
// The library is organized around one conductor and four mechanisms:
//   - Pipeline: the frame loop conductor (BeginFrame, EndFrame, Present,
//     Resize, Flush, Destroy)
//   - Ring: N frame slots rotated round-robin, each waiting out its own
//     previous submission
//   - FenceSync: monotonic fence values, signaled at submission and
//     waited on with a bounded timeout
//   - StateTracker: declared resource state transitions, validated and
//     batched into texture barriers
//   - Swapchain: back-buffer and depth-buffer lifetime, rotation, and
//     resize
//
// # Concurrency
//
// The pipeline is single-submitter: one goroutine drives BeginFrame,
// EndFrame, Present, Resize, and Destroy. Accessors and upload writes
// are safe from other goroutines. The only blocking operations are the
// fence waits inside BeginFrame, Flush, Resize, and Destroy, and every
// wait is bounded so a hung device surfaces as an error, not a hang.
package flight

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
