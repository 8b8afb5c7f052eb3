// Package batch implements the Batch Engine: it groups many small
// per-entity geometries into a small number of merged geometries, attached
// to synthesised merged entities, via either a synchronous single-frame
// path or an asynchronous multi-frame path that offloads merging to a
// worker thread.
package batch

import (
	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/engine/sortkey"
)

// Priority selects whether a Batch rebuilds synchronously every frame
// (SingleFrame) or is merged in the background by the batch worker, with
// one frame of latency (MultiFrame).
type Priority int

const (
	SingleFrame Priority = iota
	MultiFrame
)

// Batch is the descriptor for a group, supplied to RegisterBatch.
type Batch struct {
	// SortKeyTemplate seeds every merged entity's RenderData.SortKey.
	SortKeyTemplate sortkey.Key

	// Layout is shared by every merged entity this batch produces.
	Layout *common.BufferLayout

	// Uniforms is copied onto every merged entity's RenderData.
	Uniforms common.UniformList

	// Stages lists the draw-stage ids merged entities participate in.
	Stages []int

	// Transparent classifies merged entities for draw-stage sorting.
	Transparent bool

	// Priority selects the single-frame or multi-frame rebuild path.
	Priority Priority
}

// BatchData is the component on a source entity that should be batched.
type BatchData struct {
	// GroupID is the id returned by RegisterBatch; 0 means "not batched".
	GroupID int

	// Rebuild is set by the producer when this entity's geometry was
	// mutated, forcing its group to rebuild this frame. An entity newly
	// added to a group needs Rebuild set as well for its geometry to show
	// up in the merged output: an addition alone does not trigger a
	// rebuild.
	Rebuild bool

	// Geometry is the entity's own, application-owned geometry.
	Geometry *common.Geometry
}
