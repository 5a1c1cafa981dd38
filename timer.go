// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import "time"

// FrameTimer measures per-frame delta time and total running time, with
// stop/start support that excludes paused spans from the total. It also
// accumulates a once-per-second frame-rate rollup.
//
// The timer is explicit state: the pipeline owns one and threads its
// readings through each [Frame]. Nothing here is global or ambient, so
// two pipelines never share timing state. FrameTimer is not safe for
// concurrent use; it lives on the single submitter thread.
type FrameTimer struct {
	base    time.Time
	prev    time.Time
	stopAt  time.Time
	paused  time.Duration
	delta   time.Duration
	stopped bool

	statFrames int
	statSince  time.Duration
	last       FrameStats
}

// FrameStats is a one-second rollup of frame throughput.
type FrameStats struct {
	// FPS is the number of frames counted in the last full second.
	FPS float64

	// FrameTime is the mean CPU time per frame over that second.
	FrameTime time.Duration
}

// NewFrameTimer returns a running timer, reset to now.
func NewFrameTimer() *FrameTimer {
	t := &FrameTimer{}
	t.Reset()
	return t
}

// Reset restarts the timer: total time and statistics begin again at
// zero and the timer is running.
func (t *FrameTimer) Reset() {
	now := time.Now()
	t.base = now
	t.prev = now
	t.stopAt = time.Time{}
	t.paused = 0
	t.delta = 0
	t.stopped = false
	t.statFrames = 0
	t.statSince = 0
	t.last = FrameStats{}
}

// Start resumes a stopped timer. The stopped span joins the paused total
// and is excluded from Total. Starting a running timer does nothing.
func (t *FrameTimer) Start() {
	if !t.stopped {
		return
	}
	now := time.Now()
	t.paused += now.Sub(t.stopAt)
	t.prev = now
	t.stopAt = time.Time{}
	t.stopped = false
}

// Stop pauses the timer. Stopping a stopped timer does nothing.
func (t *FrameTimer) Stop() {
	if t.stopped {
		return
	}
	t.stopAt = time.Now()
	t.stopped = true
}

// Stopped reports whether the timer is paused.
func (t *FrameTimer) Stopped() bool { return t.stopped }

// Tick advances the timer by one frame and returns the delta since the
// previous tick. While stopped the delta is zero.
func (t *FrameTimer) Tick() time.Duration {
	if t.stopped {
		t.delta = 0
		return 0
	}
	now := time.Now()
	t.delta = now.Sub(t.prev)
	t.prev = now
	if t.delta < 0 {
		t.delta = 0
	}
	return t.delta
}

// Delta returns the duration measured by the last Tick.
func (t *FrameTimer) Delta() time.Duration { return t.delta }

// Total returns the time since Reset, excluding all stopped spans.
func (t *FrameTimer) Total() time.Duration {
	if t.stopped {
		return t.stopAt.Sub(t.base) - t.paused
	}
	return t.prev.Sub(t.base) - t.paused
}

// CountFrame adds one frame to the statistics window. Once a full second
// of running time has accumulated it returns the rollup for that second
// and true, then starts the next window.
func (t *FrameTimer) CountFrame() (FrameStats, bool) {
	t.statFrames++
	elapsed := t.Total() - t.statSince
	if elapsed < time.Second {
		return FrameStats{}, false
	}
	fps := float64(t.statFrames) / elapsed.Seconds()
	t.last = FrameStats{
		FPS:       fps,
		FrameTime: elapsed / time.Duration(t.statFrames),
	}
	t.statFrames = 0
	t.statSince = t.Total()
	return t.last, true
}

// LastStats returns the most recent completed rollup. Zero until the
// first full second elapses.
func (t *FrameTimer) LastStats() FrameStats { return t.last }
