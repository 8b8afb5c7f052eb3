// Package wgpubackend implements gpuapi against github.com/cogentcore/webgpu/wgpu:
// device.CreateBuffer + queue.WriteBuffer for buffer upload,
// device.CreateTexture + queue.WriteTexture for texture upload. The abstract
// gpuapi surface only asks for GLInit/GLBind/GLSync/GLCleanUp plus
// Clear/DrawArrays/DrawElements; command-encoder/render-pass sequencing is
// Target's job, not an individual resource's.
package wgpubackend

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/darian-voss/batchrender/gpuapi"
)

// Device bundles the wgpu handles every resource in this backend needs to
// allocate and upload. Application wiring code constructs one per GPU
// context.
type Device struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

// NewDevice wraps an already-initialized wgpu device and queue.
func NewDevice(device *wgpu.Device, queue *wgpu.Queue) *Device {
	return &Device{device: device, queue: queue}
}

type pendingWrite struct {
	offset uint64
	data   []byte
}

// VertexBuffer is a gpuapi.VertexBuffer backed by a wgpu.Buffer created with
// BufferUsageVertex | BufferUsageCopyDst.
type VertexBuffer struct {
	mu      sync.Mutex
	dev     *Device
	label   string
	size    uint64
	buf     *wgpu.Buffer
	pending []pendingWrite
}

var _ gpuapi.VertexBuffer = (*VertexBuffer)(nil)

// NewVertexBuffer creates an uninitialized vertex buffer of the given byte
// size. Call GLInit before use.
func NewVertexBuffer(dev *Device, label string, size uint64) *VertexBuffer {
	return &VertexBuffer{dev: dev, label: label, size: size}
}

func (b *VertexBuffer) GLInit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, err := b.dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            b.label,
		Size:             b.size,
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return fmt.Errorf("wgpubackend: create vertex buffer %q: %w", b.label, err)
	}
	b.buf = buf
	return nil
}

func (b *VertexBuffer) GLBind() {
	// Binding a vertex buffer to a render pass slot is Target's job (it
	// owns the active wgpu.RenderPassEncoder); this is a no-op placeholder
	// satisfying gpuapi.Resource so VertexBuffer can sit in a resource list
	// uniformly with the other resource kinds.
}

func (b *VertexBuffer) Write(offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.pending = append(b.pending, pendingWrite{offset: offset, data: cp})
}

func (b *VertexBuffer) GLSync() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.pending {
		b.dev.queue.WriteBuffer(b.buf, w.offset, w.data)
	}
	b.pending = b.pending[:0]
}

func (b *VertexBuffer) GLCleanUp() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Buffer returns the underlying wgpu buffer, for Target implementations
// that need to bind it directly to a render pass.
func (b *VertexBuffer) Buffer() *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}

// IndexBuffer is a gpuapi.IndexBuffer backed by a wgpu.Buffer created with
// BufferUsageIndex | BufferUsageCopyDst.
type IndexBuffer struct {
	mu      sync.Mutex
	dev     *Device
	label   string
	size    uint64
	buf     *wgpu.Buffer
	pending []pendingWrite
}

var _ gpuapi.IndexBuffer = (*IndexBuffer)(nil)

// NewIndexBuffer creates an uninitialized index buffer of the given byte
// size. Call GLInit before use.
func NewIndexBuffer(dev *Device, label string, size uint64) *IndexBuffer {
	return &IndexBuffer{dev: dev, label: label, size: size}
}

func (b *IndexBuffer) GLInit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, err := b.dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            b.label,
		Size:             b.size,
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return fmt.Errorf("wgpubackend: create index buffer %q: %w", b.label, err)
	}
	b.buf = buf
	return nil
}

func (b *IndexBuffer) GLBind() {}

func (b *IndexBuffer) Write(offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.pending = append(b.pending, pendingWrite{offset: offset, data: cp})
}

func (b *IndexBuffer) GLSync() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.pending {
		b.dev.queue.WriteBuffer(b.buf, w.offset, w.data)
	}
	b.pending = b.pending[:0]
}

func (b *IndexBuffer) GLCleanUp() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Buffer returns the underlying wgpu buffer.
func (b *IndexBuffer) Buffer() *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}

// Texture2D is a gpuapi.Texture2D backed by a wgpu RGBA8UnormSrgb texture.
type Texture2D struct {
	mu     sync.Mutex
	dev    *Device
	label  string
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  uint32
	height uint32
	pixels []byte
	dirty  bool
}

var _ gpuapi.Texture2D = (*Texture2D)(nil)

// NewTexture2D creates an uninitialized texture. Call GLInit, then Upload
// and GLSync to populate it.
func NewTexture2D(dev *Device, label string) *Texture2D {
	return &Texture2D{dev: dev, label: label}
}

func (t *Texture2D) GLInit() error {
	return nil
}

func (t *Texture2D) GLBind() {}

// BindUnit is a no-op: this backend does not assign textures to bind-group
// slots, so the unit is neither recorded nor bound — the same kind of no-op
// as VertexBuffer.GLBind and IndexBuffer.GLBind.
func (t *Texture2D) BindUnit(unit int) {}

// NeedsSync reports whether an Upload has been staged since the last
// GLSync.
func (t *Texture2D) NeedsSync() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

func (t *Texture2D) Upload(width, height uint32, pixels []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width, t.height = width, height
	t.pixels = append(t.pixels[:0], pixels...)
	t.dirty = true
}

func (t *Texture2D) GLSync() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return
	}
	if t.tex != nil {
		t.tex.Release()
	}
	tex, err := t.dev.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     t.label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              t.width,
			Height:             t.height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return
	}
	t.dev.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex, MipLevel: 0, Aspect: wgpu.TextureAspectAll},
		t.pixels,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: t.width * 4, RowsPerImage: t.height},
		&wgpu.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return
	}
	t.tex = tex
	t.view = view
	t.dirty = false
}

func (t *Texture2D) GLCleanUp() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
		t.view = nil
	}
}

// View returns the current texture view, or nil before the first GLSync.
func (t *Texture2D) View() *wgpu.TextureView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// ShaderProgram is a gpuapi.ShaderProgram built from WGSL source. GLInit
// compiles the source into a wgpu shader module and releases the module
// again; no render pipeline is created, so GLBind is a no-op and
// BindUniform only stores the bytes by name.
type ShaderProgram struct {
	mu       sync.Mutex
	dev      *Device
	label    string
	wgsl     string
	pipeline *wgpu.RenderPipeline
	uniforms map[string][]byte
}

var _ gpuapi.ShaderProgram = (*ShaderProgram)(nil)

// NewShaderProgram creates an uninitialized shader from WGSL source. Call
// GLInit to compile it.
func NewShaderProgram(dev *Device, label, wgsl string) *ShaderProgram {
	return &ShaderProgram{dev: dev, label: label, wgsl: wgsl, uniforms: make(map[string][]byte)}
}

func (s *ShaderProgram) GLInit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	module, err := s.dev.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          s.label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: s.wgsl},
	})
	if err != nil {
		return fmt.Errorf("wgpubackend: compile shader %q: %w", s.label, err)
	}
	module.Release()
	return nil
}

func (s *ShaderProgram) GLBind() {}

func (s *ShaderProgram) BindUniform(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.uniforms[name] = cp
}

func (s *ShaderProgram) GLSync() {}

func (s *ShaderProgram) GLCleanUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline != nil {
		s.pipeline.Release()
		s.pipeline = nil
	}
}

// StateSet is a gpuapi.StateSet bundling depth/blend/stencil configuration,
// grounded on the wgpu.DepthStencilState/wgpu.BlendState construction in
// examples/scene_lit.go.
type StateSet struct {
	mu    sync.Mutex
	Depth *wgpu.DepthStencilState
	Blend *wgpu.BlendState
}

var _ gpuapi.StateSet = (*StateSet)(nil)

func (s *StateSet) GLInit() error { return nil }
func (s *StateSet) GLBind() {}
func (s *StateSet) GLSync() {}
func (s *StateSet) GLCleanUp() {}
