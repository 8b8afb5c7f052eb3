package wgpubackend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/darian-voss/batchrender/gpuapi"
)

// FrameTarget is a gpuapi.Target backed by one wgpu command encoder and
// render pass per frame. DrawArrays and DrawElements take raw buffer
// bindings — binding the active pipeline and bind groups for a draw call is
// the Default draw stage's job (it walks resource lists by sort-key field),
// not the target's.
type FrameTarget struct {
	dev        *Device
	surface    *wgpu.Surface
	clearColor wgpu.Color

	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ gpuapi.Target = (*FrameTarget)(nil)

// NewFrameTarget creates a Target drawing into surface's current swapchain
// texture each frame, clearing to clearColor.
func NewFrameTarget(dev *Device, surface *wgpu.Surface, clearColor wgpu.Color) *FrameTarget {
	return &FrameTarget{dev: dev, surface: surface, clearColor: clearColor}
}

// BeginFrame acquires the surface's current texture and opens a render
// pass. Must be called once before Clear/DrawArrays/DrawElements each frame
// and paired with EndFrame.
func (t *FrameTarget) BeginFrame() error {
	surfaceTexture, err := t.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("wgpubackend: acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("wgpubackend: create surface view: %w", err)
	}
	encoder, err := t.dev.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return fmt.Errorf("wgpubackend: create command encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: t.clearColor,
		}},
	})

	t.encoder = encoder
	t.pass = pass
	t.texture = surfaceTexture
	t.view = view
	return nil
}

// Clear is a no-op past BeginFrame: the color attachment's LoadOpClear
// already clears to clearColor when the pass opens. The Default draw
// stage still calls it once per Render, matching the reference semantics
// ("clear the framebuffer to a fixed clear color") even though this
// backend folds the clear into pass setup.
func (t *FrameTarget) Clear() {}

// BindVertexStream sets the vertex buffer stream reads from ahead of the
// next DrawArrays/DrawElements call. buf must be a *VertexBuffer from this
// backend; any other gpuapi.VertexBuffer implementation is silently
// ignored.
func (t *FrameTarget) BindVertexStream(stream int, buf gpuapi.VertexBuffer) {
	vb, ok := buf.(*VertexBuffer)
	if !ok || vb == nil {
		return
	}
	t.pass.SetVertexBuffer(uint32(stream), vb.Buffer(), 0, wgpu.WholeSize)
}

// BindIndexBuffer sets the index buffer the next DrawElements reads from.
func (t *FrameTarget) BindIndexBuffer(buf gpuapi.IndexBuffer) {
	ib, ok := buf.(*IndexBuffer)
	if !ok || ib == nil {
		return
	}
	t.pass.SetIndexBuffer(ib.Buffer(), wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
}

func (t *FrameTarget) DrawArrays(primitive gpuapi.Primitive, vertexSize, start, sizeBytes uint64) {
	if vertexSize == 0 {
		return
	}
	count := uint32(sizeBytes / vertexSize)
	firstVertex := uint32(start / vertexSize)
	t.pass.Draw(count, 1, firstVertex, 0)
}

func (t *FrameTarget) DrawElements(primitive gpuapi.Primitive, startByte, sizeBytes uint64) {
	const indexSize = 2 // indices are fixed at unsigned 16-bit
	count := uint32(sizeBytes / indexSize)
	firstIndex := uint32(startByte / indexSize)
	t.pass.DrawIndexed(count, 1, firstIndex, 0, 0)
}

// EndFrame ends the render pass, submits the command buffer, and presents
// the surface.
func (t *FrameTarget) EndFrame() error {
	t.pass.End()
	buf, err := t.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("wgpubackend: finish command encoder: %w", err)
	}
	t.dev.queue.Submit(buf)
	t.surface.Present()

	t.view.Release()
	t.texture.Release()
	t.pass = nil
	t.encoder = nil
	t.texture = nil
	t.view = nil
	return nil
}
