package common

import "github.com/darian-voss/batchrender/internal/rangealloc"

// VertexAttributeLayout describes one parallel vertex stream's per-vertex
// byte layout. ByteSize is the derived per-vertex stride for that stream;
// Format is a backend-facing hint (e.g. float32x3 position, float32x2 uv)
// this module never interprets itself.
type VertexAttributeLayout struct {
	Name     string
	Format   string
	ByteSize uint64
}

// BufferLayout is the immutable descriptor shared by every geometry in a
// batch group, or by every entity drawing with the same vertex format.
//
// Invariant: for a layout consumed by the Batch Engine, every vertex-stream
// allocator's block capacity in vertices (block size in bytes / stream's
// vertex size in bytes) must be identical across streams — RegisterBatch
// validates this and fails with "mismatching block sizes" otherwise.
type BufferLayout struct {
	Usage   string
	Streams []VertexAttributeLayout
	Indexed bool

	// VertexAllocators holds one range allocator per vertex stream, in
	// Streams order.
	VertexAllocators []*rangealloc.Allocator

	// IndexAllocator is the optional range allocator for the index stream;
	// nil unless Indexed.
	IndexAllocator *rangealloc.Allocator
}

// VertexSize returns stream i's per-vertex byte size.
func (b *BufferLayout) VertexSize(stream int) uint64 {
	return b.Streams[stream].ByteSize
}

// BlockVertexCapacity returns stream i's allocator block size expressed in
// vertices (block size in bytes / per-vertex byte size).
func (b *BufferLayout) BlockVertexCapacity(stream int) uint64 {
	vs := b.Streams[stream].ByteSize
	if vs == 0 {
		return 0
	}
	return b.VertexAllocators[stream].BlockSize() / vs
}

// ValidateBlockCapacities checks that every vertex stream's block vertex
// capacity is identical, the invariant RegisterBatch enforces before
// accepting a Batch using this layout.
func (b *BufferLayout) ValidateBlockCapacities() bool {
	if len(b.Streams) == 0 {
		return true
	}
	want := b.BlockVertexCapacity(0)
	for i := 1; i < len(b.Streams); i++ {
		if b.BlockVertexCapacity(i) != want {
			return false
		}
	}
	return true
}

// StreamCount returns the number of parallel vertex streams in the layout.
func (b *BufferLayout) StreamCount() int {
	return len(b.Streams)
}

// Geometry is the raw per-entity (or merged) vertex/index payload. Vertex
// and Index are plain byte slices — already in GPU wire format — so
// CreateMergedGeometry can concatenate them without type-specific
// marshalling. UpdatedStreams/IndexUpdated are per-buffer dirty flags the
// owner sets after a mutation and the Draw-Call Updater clears after
// consuming them.
type Geometry struct {
	Vertex         [][]byte
	Index          []byte
	UpdatedStreams []bool
	IndexUpdated   bool

	// RetainClientCopy decides whether the Draw-Call Updater copies a
	// buffer's bytes on upload (true — the owner keeps using Vertex/Index
	// afterward) or moves them (false — the updater takes the slice and
	// the owner must not touch it again). Merged entities default this to
	// false since CreateMergedGeometry's output has no other reader.
	RetainClientCopy bool
}

// NewGeometry allocates a Geometry with streamCount empty vertex streams.
func NewGeometry(streamCount int) *Geometry {
	return &Geometry{
		Vertex:         make([][]byte, streamCount),
		UpdatedStreams: make([]bool, streamCount),
	}
}

// AnyUpdated reports whether any vertex stream or the index stream is
// flagged dirty — the Draw-Call Updater's "aggregate updated flag".
func (g *Geometry) AnyUpdated() bool {
	if g.IndexUpdated {
		return true
	}
	for _, u := range g.UpdatedStreams {
		if u {
			return true
		}
	}
	return false
}

// MarkAllUpdated flags every vertex stream and the index stream dirty —
// used when an entity is freshly added and must upload its full geometry.
func (g *Geometry) MarkAllUpdated() {
	for i := range g.UpdatedStreams {
		g.UpdatedStreams[i] = true
	}
	g.IndexUpdated = true
}

// ClearUpdated clears every dirty flag after the Draw-Call Updater has
// consumed them.
func (g *Geometry) ClearUpdated() {
	for i := range g.UpdatedStreams {
		g.UpdatedStreams[i] = false
	}
	g.IndexUpdated = false
}

// SetVertexStream replaces stream i's bytes and flags it dirty.
func (g *Geometry) SetVertexStream(i int, data []byte) {
	g.Vertex[i] = data
	g.UpdatedStreams[i] = true
}

// SetIndex replaces the index bytes and flags the index stream dirty.
func (g *Geometry) SetIndex(data []byte) {
	g.Index = data
	g.IndexUpdated = true
}

// Clone deep-copies g, used by the Batch Engine's multi-frame path to stage
// a worker-private snapshot of a source entity's geometry that the
// application cannot mutate out from under the background merge task.
func (g *Geometry) Clone() *Geometry {
	out := &Geometry{
		Vertex:           make([][]byte, len(g.Vertex)),
		UpdatedStreams:   append([]bool(nil), g.UpdatedStreams...),
		IndexUpdated:     g.IndexUpdated,
		RetainClientCopy: g.RetainClientCopy,
	}
	for i, v := range g.Vertex {
		out.Vertex[i] = append([]byte(nil), v...)
	}
	out.Index = append([]byte(nil), g.Index...)
	return out
}
