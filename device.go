// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flight

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// DeviceHandle provides GPU device access from the host application.
//
// The pipeline can RECEIVE a device from the host instead of requiring
// the caller to unwrap hal types: a host built on gogpu hands its
// provider to [NewFromHandle] and both sides share one device and
// queue. DeviceHandle is an alias for gpucontext.DeviceProvider so any
// provider in that ecosystem qualifies without adaptation.
type DeviceHandle = gpucontext.DeviceProvider

// NewFromHandle creates a pipeline on a shared device owned by the
// host. The provider must expose HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue; gpucontext providers backed by a
// HAL device do. The pipeline never destroys a device it received this
// way; Destroy releases only the objects the pipeline created.
func NewFromHandle(provider any, opts ...Option) (*Pipeline, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", ErrInvalidSpec)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrInvalidSpec)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrInvalidSpec)
	}
	return New(device, queue, opts...)
}
