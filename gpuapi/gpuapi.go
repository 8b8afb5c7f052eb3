// Package gpuapi declares the abstract GPU-API surface this module's core
// consumes: vertex buffer, index buffer, texture-2D, shader program, and
// state set, each with a GLInit/GLBind/GLSync/GLCleanUp life cycle, plus the
// free-function draw entry points Clear/DrawArrays/DrawElements. The core
// never imports a concrete backend directly; it is handed these interfaces
// by application wiring code (see gpuapi/wgpubackend for a WebGPU-backed
// implementation).
//
// The GLInit/GLBind/GLSync/GLCleanUp naming is kept even though the
// concrete backend below is WebGPU, not GL — the core only ever calls
// through these four verbs and does not care which API they front.
package gpuapi

import "github.com/darian-voss/batchrender/engine/sortkey"

// Resource is the life cycle every GPU-API object implements: GLInit
// allocates backing GPU storage, GLBind makes the resource current for
// subsequent draw calls, GLSync pushes any pending CPU-side writes down to
// the GPU, and GLCleanUp releases backing storage. Orchestrator.Reset calls
// GLCleanUp on every registered shader, every texture of a registered
// texture set and every buffer the Draw-Call Updater created before
// clearing its lists; depth/blend/stencil state sets are not cleaned up.
type Resource interface {
	// GLInit allocates backing GPU storage for the resource. Called once,
	// before first use.
	GLInit() error

	// GLBind makes the resource current on the active command stream.
	GLBind()

	// GLSync flushes pending CPU-side writes to the GPU. Called by the
	// render thread after the update thread's snapshot has been taken.
	GLSync()

	// GLCleanUp releases backing GPU storage. Called on Reset or on final
	// removal from a resource list.
	GLCleanUp()
}

// VertexBuffer is a GPU buffer bound as a vertex stream source.
type VertexBuffer interface {
	Resource
	// Write stages vertex bytes at the given byte offset for the next
	// GLSync.
	Write(offset uint64, data []byte)
}

// IndexBuffer is a GPU buffer bound as the index stream source.
type IndexBuffer interface {
	Resource
	// Write stages index bytes at the given byte offset for the next
	// GLSync.
	Write(offset uint64, data []byte)
}

// Texture2D is a sampled 2D GPU texture with its associated sampler state.
type Texture2D interface {
	Resource
	// Upload stages pixel bytes (tightly packed, RGBA8) for the next
	// GLSync.
	Upload(width, height uint32, pixels []byte)
	// BindUnit binds the texture at the given sampler/binding unit, ahead
	// of a draw call that samples it. The unit is the one recorded by the
	// Default draw stage's texture-set walk.
	BindUnit(unit int)
	// NeedsSync reports whether the texture has pending pixel or sampler
	// parameter updates. The orchestrator binds and GLSyncs every texture
	// reporting true during its per-frame Sync.
	NeedsSync() bool
}

// ShaderProgram is a compiled vertex+fragment (or compute) pipeline.
type ShaderProgram interface {
	Resource
	// BindUniform binds a single named uniform value against this shader,
	// as called by the Default draw stage's uniform-set walk.
	BindUniform(name string, data []byte)
}

// StateSet is an opaque bundle of raster state (depth/blend/stencil
// configuration) applied as a unit.
type StateSet interface {
	Resource
}

// Primitive mirrors sortkey.Primitive at the draw-call boundary so gpuapi
// does not import engine/sortkey's Key type, only its topology enum.
type Primitive = sortkey.Primitive

// Target is the free-function draw surface the core issues commands
// against: clear, vertex/index stream binding, non-indexed draw, and
// indexed draw.
type Target interface {
	// Clear clears the framebuffer to the backend's fixed clear color.
	Clear()

	// BindVertexStream binds buf as the source for vertex stream index
	// stream, ahead of the next DrawArrays/DrawElements call. Called by the
	// Default draw stage once per vertex stream in a DrawCall.
	BindVertexStream(stream int, buf VertexBuffer)

	// BindIndexBuffer binds buf as the index source ahead of the next
	// DrawElements call.
	BindIndexBuffer(buf IndexBuffer)

	// DrawArrays issues a non-indexed draw. vertexSize is the per-vertex
	// byte stride of stream 0, used to derive the vertex count from
	// sizeBytes; start/sizeBytes are byte offsets into the bound vertex
	// buffer.
	DrawArrays(primitive Primitive, vertexSize, start, sizeBytes uint64)

	// DrawElements issues an indexed draw over the bound index buffer,
	// reading startByte..startByte+sizeBytes of unsigned 16-bit indices.
	DrawElements(primitive Primitive, startByte, sizeBytes uint64)
}
