// Package renderdata defines RenderData, the component carried by every
// entity the render pipeline draws — real source entities and the Batch
// Engine's synthesised merged entities alike. It is its own package,
// separate from engine/batch and engine/drawcall, because both of those
// packages need the type without importing one another.
package renderdata

import (
	"sync"

	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/engine/sortkey"
)

var (
	uidMu   sync.Mutex
	lastUID uint64
)

// NextUID returns the next RenderData unique id. The counter is
// process-wide and mutex-protected so ids stay unique even when
// RenderData components are constructed from more than one goroutine;
// it is the only long-lived mutable shared variable this module owns.
func NextUID() uint64 {
	uidMu.Lock()
	defer uidMu.Unlock()
	lastUID++
	return lastUID
}

// RenderData is the component on a renderable entity.
type RenderData struct {
	// SortKey is the packed 64-bit draw-ordering key.
	SortKey sortkey.Key

	// Layout is a non-owning pointer to the BufferLayout describing this
	// entity's vertex/index format; its lifetime must be at least as long
	// as this RenderData's.
	Layout *common.BufferLayout

	// Uniforms is the per-call uniform override list copied onto the
	// entity's DrawCall.
	Uniforms common.UniformList

	// Stages lists the draw-stage ids this entity participates in.
	Stages []int

	// Transparent classifies the entity for the opaque/transparent split
	// each draw stage sorts separately.
	Transparent bool

	// Enabled gates whether the entity is considered renderable at all.
	Enabled bool

	// Geometry is the entity's owned vertex/index payload.
	Geometry *common.Geometry

	// UID is a monotonically increasing unique id, required for diffing:
	// it distinguishes reuse of a component slot by a new entity from the
	// same entity persisting across frames.
	UID uint64
}
