// Command flightdemo drives the frame pipeline: a triangle spins in a
// three-deep frame ring, with a mid-run resize and an optional back
// buffer capture at the end.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"unsafe"

	"github.com/gogpu/flight"
	"github.com/gogpu/flight/internal/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func main() {
	var (
		width   = flag.Uint("width", 1280, "back buffer width")
		height  = flag.Uint("height", 720, "back buffer height")
		frames  = flag.Int("frames", 300, "number of frames to render")
		backend = flag.String("backend", "vulkan", "hal backend: vulkan or noop")
		capture = flag.String("capture", "", "write the last back buffer to this PNG file")
		verbose = flag.Bool("v", false, "log per-frame pipeline activity")
	)
	flag.Parse()

	if *verbose {
		flight.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	instance, device, queue, name, err := openDevice(*backend)
	if err != nil {
		log.Fatalf("flightdemo: %v", err)
	}
	defer instance.Destroy()
	defer device.Destroy()
	log.Printf("flightdemo: rendering on %s", name)

	if err := run(device, queue, uint32(*width), uint32(*height), *frames, *capture); err != nil {
		log.Fatalf("flightdemo: %v", err)
	}
}

// openDevice creates an instance and opens the first suitable adapter on
// the named backend.
func openDevice(name string) (hal.Instance, hal.Device, hal.Queue, string, error) {
	var instance hal.Instance
	switch name {
	case "noop":
		api := noop.API{}
		inst, err := api.CreateInstance(nil)
		if err != nil {
			return nil, nil, nil, "", fmt.Errorf("create noop instance: %w", err)
		}
		instance = inst
	case "vulkan":
		backend, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, nil, nil, "", fmt.Errorf("vulkan backend not available")
		}
		inst, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			return nil, nil, nil, "", fmt.Errorf("create instance: %w", err)
		}
		instance = inst
	default:
		return nil, nil, nil, "", fmt.Errorf("unknown backend %q", name)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, "", fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, "", fmt.Errorf("open device: %w", err)
	}
	return instance, openDev.Device, openDev.Queue, selected.Info.Name, nil
}

func run(device hal.Device, queue hal.Queue, width, height uint32, frames int, capturePath string) error {
	p, err := flight.New(device, queue,
		flight.WithLabel("flightdemo"),
		flight.WithExtent(width, height),
		flight.WithFrameUploads(flight.UploadSpec{
			Label:       "frame_uniforms",
			Capacity:    1,
			ElementSize: int(unsafe.Sizeof(shader.FrameUniforms{})),
		}),
	)
	if err != nil {
		return err
	}
	defer p.Destroy()

	res, err := createTriangle(device, queue, p)
	if err != nil {
		return err
	}
	defer res.destroy(device)

	for i := 0; i < frames; i++ {
		if frames >= 4 && i == frames/2 {
			if err := p.Resize(width*3/4, height*3/4); err != nil {
				return fmt.Errorf("resize: %w", err)
			}
		}
		if err := renderFrame(p, res); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	if err := p.Flush(); err != nil {
		return err
	}
	stats := p.Timer().LastStats()
	log.Printf("flightdemo: %d frames presented, %.1f fps (%.2f ms/frame)",
		p.Swapchain().Presents(), stats.FPS, float64(stats.FrameTime.Microseconds())/1000)

	if capturePath != "" {
		return captureLastFrame(p, device, queue, capturePath)
	}
	return nil
}

// renderFrame records one frame: write the per-frame constants, clear,
// draw the triangle, and hand the back buffer to presentation.
func renderFrame(p *flight.Pipeline, res *triangleResources) error {
	f, err := p.BeginFrame()
	if err != nil {
		return err
	}

	w, h := p.Swapchain().Extent()
	u := shader.FrameUniforms{
		Tint:   [4]float32{1, 1, 1, 1},
		Aspect: float32(w) / float32(h),
		Time:   float32(f.Total().Seconds()),
	}
	src := structToBytes(unsafe.Pointer(&u), unsafe.Sizeof(u)) //nolint:gosec // safe struct access
	if err := f.Upload(0).Write(0, src); err != nil {
		p.Ring().Abandon(f)
		return err
	}

	back, backView := p.Swapchain().CurrentBackBuffer()
	_, depthView := p.Swapchain().DepthBuffer()
	tr := p.Tracker()
	if err := tr.Transition(back, flight.StatePresent, flight.StateRenderTarget); err != nil {
		p.Ring().Abandon(f)
		return err
	}
	tr.Flush(f.Encoder())

	rp := f.Encoder().BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "triangle_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       backView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0.05, G: 0.05, B: 0.1, A: 1},
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	})
	rp.SetPipeline(res.pipeline)
	rp.SetBindGroup(0, res.bindGroups[f.Index()], nil)
	rp.SetVertexBuffer(0, res.vertexBuf, 0)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	if err := tr.Transition(back, flight.StateRenderTarget, flight.StatePresent); err != nil {
		p.Ring().Abandon(f)
		return err
	}

	if _, err := p.EndFrame(f); err != nil {
		return err
	}
	return p.Present(0)
}

// captureLastFrame reads back the most recently presented back buffer
// and saves it as a PNG.
func captureLastFrame(p *flight.Pipeline, device hal.Device, queue hal.Queue, path string) error {
	sc := p.Swapchain()
	last := (sc.Index() + sc.Count() - 1) % sc.Count()
	tex, _ := sc.BackBuffer(last)
	w, h := sc.Extent()

	pixels, err := flight.CaptureTexture(device, queue, p.Tracker(), tex, w, h)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	// The back buffer is BGRA; PNG wants RGBA.
	img := image.NewNRGBA(image.Rect(0, 0, int(w), int(h)))
	for i := 0; i+3 < len(pixels); i += 4 {
		img.Pix[i+0] = pixels[i+2]
		img.Pix[i+1] = pixels[i+1]
		img.Pix[i+2] = pixels[i+0]
		img.Pix[i+3] = pixels[i+3]
	}

	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	log.Printf("flightdemo: wrote %dx%d capture to %s", w, h, path)
	return nil
}

// triangleResources holds the GPU objects the demo records with.
type triangleResources struct {
	shaderModule hal.ShaderModule
	bindLayout   hal.BindGroupLayout
	pipeLayout   hal.PipelineLayout
	pipeline     hal.RenderPipeline
	vertexBuf    hal.Buffer
	bindGroups   []hal.BindGroup
}

// createTriangle builds the render pipeline, the static vertex buffer,
// and one bind group per frame slot, each pointing at that slot's
// uniform upload buffer.
func createTriangle(device hal.Device, queue hal.Queue, p *flight.Pipeline) (*triangleResources, error) {
	res := &triangleResources{}

	module, err := shader.NewModule(device, "triangle_shader", shader.TriangleSource())
	if err != nil {
		return nil, fmt.Errorf("compile triangle shader: %w", err)
	}
	res.shaderModule = module

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "triangle_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		res.destroy(device)
		return nil, fmt.Errorf("create uniform layout: %w", err)
	}
	res.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "triangle_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		res.destroy(device)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	res.pipeLayout = pipeLayout

	premulBlend := gputypes.BlendStatePremultiplied()
	vertexStride := uint64(unsafe.Sizeof(shader.TriangleVertex{}))
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "triangle_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{
				{
					ArrayStride: vertexStride,
					StepMode:    gputypes.VertexStepModeVertex,
					Attributes: []gputypes.VertexAttribute{
						{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
						{Format: gputypes.VertexFormatFloat32x4, Offset: 8, ShaderLocation: 1}, // color
					},
				},
			},
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatBGRA8Unorm,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth24PlusStencil8,
			DepthWriteEnabled: false,
			DepthCompare:      gputypes.CompareFunctionAlways,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilReadMask:  0xFF,
			StencilWriteMask: 0xFF,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		res.destroy(device)
		return nil, fmt.Errorf("create triangle pipeline: %w", err)
	}
	res.pipeline = pipeline

	verts := []shader.TriangleVertex{
		{Position: [2]float32{0, 0.6}, Color: [4]float32{1, 0.2, 0.2, 1}},
		{Position: [2]float32{-0.6, -0.45}, Color: [4]float32{0.2, 1, 0.2, 1}},
		{Position: [2]float32{0.6, -0.45}, Color: [4]float32{0.2, 0.2, 1, 1}},
	}
	vertexBuf, err := flight.CreateStaticBuffer(device, queue, p.Tracker(),
		"triangle_vertices", gputypes.BufferUsageVertex, packVertices(verts))
	if err != nil {
		res.destroy(device)
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	res.vertexBuf = vertexBuf

	res.bindGroups = make([]hal.BindGroup, p.Ring().Depth())
	for i := range res.bindGroups {
		ub := p.Ring().UploadAt(i, 0)
		bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  fmt.Sprintf("triangle_uniforms_%d", i),
			Layout: bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.Buffer().NativeHandle(), Offset: 0, Size: ub.Size()}},
			},
		})
		if err != nil {
			res.destroy(device)
			return nil, fmt.Errorf("create bind group %d: %w", i, err)
		}
		res.bindGroups[i] = bg
	}
	return res, nil
}

// destroy releases all resources in reverse creation order.
func (r *triangleResources) destroy(device hal.Device) {
	for _, bg := range r.bindGroups {
		if bg != nil {
			device.DestroyBindGroup(bg)
		}
	}
	r.bindGroups = nil
	if r.vertexBuf != nil {
		device.DestroyBuffer(r.vertexBuf)
		r.vertexBuf = nil
	}
	if r.pipeline != nil {
		device.DestroyRenderPipeline(r.pipeline)
		r.pipeline = nil
	}
	if r.pipeLayout != nil {
		device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.shaderModule != nil {
		device.DestroyShaderModule(r.shaderModule)
		r.shaderModule = nil
	}
}

func packVertices(verts []shader.TriangleVertex) []byte {
	stride := int(unsafe.Sizeof(shader.TriangleVertex{}))
	out := make([]byte, stride*len(verts))
	for i := range verts {
		src := structToBytes(unsafe.Pointer(&verts[i]), unsafe.Sizeof(verts[i])) //nolint:gosec // safe struct access
		copy(out[i*stride:], src)
	}
	return out
}

func structToBytes(ptr unsafe.Pointer, size uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), size) //nolint:gosec // safe struct serialization
}
