// Package stage defines the draw-stage contract the Render Pipeline
// Orchestrator executes in topological order each frame, plus a default
// reference implementation of that contract.
package stage

import (
	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/ecs"
	"github.com/darian-voss/batchrender/engine/drawcall"
	"github.com/darian-voss/batchrender/gpuapi"
)

// Stats carries whatever per-stage counters a stage chooses to report;
// the orchestrator accumulates these without interpreting them.
type Stats struct {
	DrawCalls int
	Vertices  int
}

// DrawParams aggregates everything one stage invocation needs: the shared
// state-set resource list, the shader/depth/blend/stencil/texture/uniform
// synced resource arrays (indexed by slot id), the full
// DrawCall list, and this stage's opaque/transparent draw-call id lists.
type DrawParams struct {
	Target gpuapi.Target

	Shaders  []gpuapi.ShaderProgram
	Depth    []gpuapi.StateSet
	Blend    []gpuapi.StateSet
	Stencil  []gpuapi.StateSet
	Textures [][]gpuapi.Texture2D      // one slice of textures per texture-set slot
	Uniforms [][]common.UniformBinding // one slice of bindings per uniform-set slot

	DrawCalls func(ent ecs.Entity) (*drawcall.DrawCall, bool)

	OpaqueIDs      []ecs.Entity
	TransparentIDs []ecs.Entity
}

// Stage is a render pass: it owns its own ordering within the
// orchestrator's topologically sorted graph and its own GPU state-change
// logic.
type Stage interface {
	// Render executes this stage's draw calls against p. Called once per
	// frame, on the render thread, in topological order.
	Render(p DrawParams) Stats

	// Reset releases any stage-owned GPU resources. Called on orchestrator
	// Reset (GPU-context loss).
	Reset()
}
