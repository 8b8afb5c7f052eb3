// Package drawcall implements the Draw-Call Updater: it sub-allocates
// ranges out of block-structured GPU vertex/index buffer pools, tracks
// entity additions/removals/updates as diffs against the prior frame,
// releases ranges on removal, and emits draw-call range descriptors without
// ever reallocating or moving a GPU buffer.
//
// Update (diff and upload staging) runs on the update thread; Sync
// (materialising DrawCalls) runs on the render thread.
package drawcall

import (
	"errors"

	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/engine/sortkey"
	"github.com/darian-voss/batchrender/gpuapi"
	"github.com/darian-voss/batchrender/internal/rangealloc"
)

// ErrSizeExceedsBlockSize is wrapped into the error Updater.Update returns
// when a vertex or index buffer is larger than its allocator's block size,
// so no block the allocator could create would fit it.
var ErrSizeExceedsBlockSize = errors.New("drawcall: size exceeds block size")

// VxRange is a single vertex stream's allocated byte range.
type VxRange struct {
	Valid bool
	Range rangealloc.Range
}

// IxRange is the optional index stream's allocated byte range.
type IxRange struct {
	Valid bool
	Range rangealloc.Range
}

// GeometryRanges is the Draw-Call Updater's per-entity state: the set of
// GPU buffer ranges currently backing one entity's geometry.
type GeometryRanges struct {
	Valid   bool
	Vertex  []VxRange
	Index   IxRange
	Layout  *common.BufferLayout // pinned by Valid
}

// DrawCall is the descriptor ready for a render stage: per-vertex-stream
// (buffer, start, size), an optional index range, the shared uniform list,
// and the sort key, all as of the last Sync.
type DrawCall struct {
	Valid    bool
	SortKey  sortkey.Key
	Vertex   []StreamRef
	Index    IndexRef
	Uniforms common.UniformList
}

// StreamRef identifies a GPU-buffer sub-range backing one vertex stream.
// Buffer is the block's own backing buffer (resolved from the allocator's
// BlockBuffer at Sync time) — the handle a draw stage binds before issuing
// the draw, not just the range's byte offsets into it.
type StreamRef struct {
	Buffer     gpuapi.VertexBuffer
	StartByte  uint64
	SizeBytes  uint64
	VertexSize uint64
}

// IndexRef identifies a GPU-buffer sub-range backing the index stream.
// Valid is false for a non-indexed entity.
type IndexRef struct {
	Valid     bool
	Buffer    gpuapi.IndexBuffer
	StartByte uint64
	SizeBytes uint64
}

