package batch

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/darian-voss/batchrender/common"
)

// ErrExceedsBlockSize is returned by splitIndices when a single source geometry's
// vertex-stream-0 or index bytes alone exceed the corresponding block size
// — no split can make it fit.
var ErrExceedsBlockSize = errors.New("batch: geometry exceeds block size")

const indexSize = 2 // fixed unsigned 16-bit indices

// createMergedGeometry is the pure merge function: for each vertex stream,
// clears dest and appends every source's stream bytes in order; for the
// index stream (if indexed), clears dest and appends every source's index
// bytes with the running vertex count (from stream 0) added to each
// appended 16-bit index.
func createMergedGeometry(layout *common.BufferLayout, sources []*common.Geometry, dest *common.Geometry) {
	streamCount := layout.StreamCount()
	dest.Vertex = make([][]byte, streamCount)
	dest.UpdatedStreams = make([]bool, streamCount)

	var vertexCounts []int
	for s := 0; s < streamCount; s++ {
		vertexSize := layout.VertexSize(s)
		var buf []byte
		if s == 0 {
			vertexCounts = make([]int, len(sources))
		}
		for i, src := range sources {
			buf = append(buf, src.Vertex[s]...)
			if s == 0 && vertexSize > 0 {
				vertexCounts[i] = len(src.Vertex[0]) / int(vertexSize)
			}
		}
		dest.Vertex[s] = buf
	}

	if layout.Indexed {
		var idx []byte
		running := 0
		for i, src := range sources {
			for off := 0; off+indexSize <= len(src.Index); off += indexSize {
				v := binary.LittleEndian.Uint16(src.Index[off : off+indexSize])
				v += uint16(running)
				var b [indexSize]byte
				binary.LittleEndian.PutUint16(b[:], v)
				idx = append(idx, b[:]...)
			}
			running += vertexCounts[i]
		}
		dest.Index = idx
	}

	dest.MarkAllUpdated()
}

// splitIndices walks geoms in order, maintaining running sums of
// vertex-stream-0 bytes and (if indexed) index bytes, starting a new
// sublist whenever adding the next source would push either sum past the
// corresponding block size. A single source exceeding a block size on its
// own is a hard failure. It returns index groups into geoms rather than
// copied slices so callers can partition a parallel entity-id list the same
// way, for PostMerge's source-entity-partition report.
func splitIndices(layout *common.BufferLayout, geoms []*common.Geometry) ([][]int, error) {
	if len(geoms) == 0 {
		return nil, nil
	}

	vxBlockSize := layout.VertexAllocators[0].BlockSize()
	var ixBlockSize uint64
	if layout.Indexed && layout.IndexAllocator != nil {
		ixBlockSize = layout.IndexAllocator.BlockSize()
	}

	var sublists [][]int
	var current []int
	var vxSum, ixSum uint64

	for i, src := range geoms {
		vxLen := uint64(len(src.Vertex[0]))
		var ixLen uint64
		if layout.Indexed {
			ixLen = uint64(len(src.Index))
		}

		if vxLen > vxBlockSize || (layout.Indexed && ixLen > ixBlockSize) {
			return nil, fmt.Errorf("%w: source vertex=%d index=%d block vertex=%d block index=%d",
				ErrExceedsBlockSize, vxLen, ixLen, vxBlockSize, ixBlockSize)
		}

		if len(current) > 0 && (vxSum+vxLen > vxBlockSize || (layout.Indexed && ixSum+ixLen > ixBlockSize)) {
			sublists = append(sublists, current)
			current = nil
			vxSum, ixSum = 0, 0
		}

		current = append(current, i)
		vxSum += vxLen
		ixSum += ixLen
	}
	if len(current) > 0 {
		sublists = append(sublists, current)
	}
	return sublists, nil
}

// gather selects geoms at the given indices, used to turn a splitIndices
// sublist into the slice createMergedGeometry expects.
func gather(geoms []*common.Geometry, idx []int) []*common.Geometry {
	out := make([]*common.Geometry, len(idx))
	for i, gi := range idx {
		out[i] = geoms[gi]
	}
	return out
}
