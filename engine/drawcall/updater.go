package drawcall

import (
	"fmt"
	"sort"

	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/ecs"
	"github.com/darian-voss/batchrender/engine/renderdata"
	"github.com/darian-voss/batchrender/gpuapi"
	"github.com/darian-voss/batchrender/internal/rangealloc"
)

// Pair is one (entity_id, render_data_unique_id) pair from the current
// frame's renderable entity iteration, the input to Update.
type Pair struct {
	Entity ecs.Entity
	UID    uint64
}

// Writable is the subset of a GPU buffer's API the Updater needs to stage
// geometry bytes ahead of the next GLSync. gpuapi.VertexBuffer and
// gpuapi.IndexBuffer both satisfy it structurally.
type Writable interface {
	Write(offset uint64, data []byte)
}

// BufferFactory constructs a fresh, uninitialized GPU buffer of the given
// byte size for a vertex stream or the index stream of layout. Supplied by
// application wiring code (see gpuapi/wgpubackend.NewVertexBuffer /
// NewIndexBuffer).
type BufferFactory func(layout *common.BufferLayout, streamOrIndex int, size uint64) rangealloc.Buffer

// Updater is the Draw-Call Updater. The zero value is not usable; use New.
type Updater struct {
	newVertexBuffer BufferFactory
	newIndexBuffer  BufferFactory

	prev []Pair // sorted by UID

	ranges map[ecs.Entity]*GeometryRanges
	calls  map[ecs.Entity]*DrawCall

	addedThisUpdate   []ecs.Entity
	removedThisUpdate []ecs.Entity
	updatedThisUpdate []ecs.Entity

	pendingInit []rangealloc.Buffer
	pendingSync []rangealloc.Buffer
	syncSeen    map[rangealloc.Buffer]bool
	initSeen    map[rangealloc.Buffer]bool
}

// New creates an Updater. newVertexBuffer/newIndexBuffer are called to
// construct a fresh GPU buffer whenever a range allocator reports no block
// has capacity.
func New(newVertexBuffer, newIndexBuffer BufferFactory) *Updater {
	return &Updater{
		newVertexBuffer: newVertexBuffer,
		newIndexBuffer:  newIndexBuffer,
		ranges:          make(map[ecs.Entity]*GeometryRanges),
		calls:           make(map[ecs.Entity]*DrawCall),
		syncSeen:        make(map[rangealloc.Buffer]bool),
		initSeen:        make(map[rangealloc.Buffer]bool),
	}
}

// Update diffs pairs against the previous frame's renderable entity set,
// releases ranges for removed entities, allocates fresh ranges for added
// entities, and uploads any entity whose Geometry reports pending updates.
// Must be called on the update thread.
func (u *Updater) Update(pairs []Pair, renderData ecs.ComponentList[*renderdata.RenderData]) error {
	u.addedThisUpdate = u.addedThisUpdate[:0]
	u.removedThisUpdate = u.removedThisUpdate[:0]
	u.updatedThisUpdate = u.updatedThisUpdate[:0]

	curr := append([]Pair(nil), pairs...)
	sort.Slice(curr, func(i, j int) bool { return curr[i].UID < curr[j].UID })

	removed, added := diffPairs(u.prev, curr)

	for _, p := range removed {
		u.releaseEntity(p.Entity)
		u.removedThisUpdate = append(u.removedThisUpdate, p.Entity)
	}

	for _, p := range added {
		rd, ok := renderData.Get(p.Entity)
		if !ok {
			continue
		}
		u.ranges[p.Entity] = &GeometryRanges{
			Valid:  true,
			Vertex: make([]VxRange, rd.Layout.StreamCount()),
			Layout: rd.Layout,
		}
		if rd.Geometry != nil {
			rd.Geometry.MarkAllUpdated()
		}
		u.addedThisUpdate = append(u.addedThisUpdate, p.Entity)
	}

	for _, p := range curr {
		rd, ok := renderData.Get(p.Entity)
		if !ok || rd.Geometry == nil || !rd.Geometry.AnyUpdated() {
			continue
		}
		if err := u.uploadEntity(p.Entity, rd); err != nil {
			return err
		}
		rd.Geometry.ClearUpdated()
		u.updatedThisUpdate = append(u.updatedThisUpdate, p.Entity)
	}

	u.prev = curr
	return nil
}

func diffPairs(prev, curr []Pair) (removed, added []Pair) {
	i, j := 0, 0
	for i < len(prev) && j < len(curr) {
		switch {
		case prev[i].UID < curr[j].UID:
			removed = append(removed, prev[i])
			i++
		case prev[i].UID > curr[j].UID:
			added = append(added, curr[j])
			j++
		default:
			i++
			j++
		}
	}
	removed = append(removed, prev[i:]...)
	added = append(added, curr[j:]...)
	return removed, added
}

func (u *Updater) releaseEntity(ent ecs.Entity) {
	gr, ok := u.ranges[ent]
	if !ok {
		return
	}
	for si, vr := range gr.Vertex {
		if vr.Valid {
			gr.Layout.VertexAllocators[si].ReleaseRange(vr.Range)
		}
	}
	if gr.Index.Valid {
		gr.Layout.IndexAllocator.ReleaseRange(gr.Index.Range)
	}
	gr.Valid = false
	gr.Vertex = nil
	gr.Index = IxRange{}
	delete(u.ranges, ent)
}

func (u *Updater) uploadEntity(ent ecs.Entity, rd *renderdata.RenderData) error {
	gr, ok := u.ranges[ent]
	if !ok {
		return fmt.Errorf("drawcall: entity %d has no GeometryRanges", ent)
	}
	geo := rd.Geometry

	for si, updated := range geo.UpdatedStreams {
		if !updated || len(geo.Vertex[si]) == 0 {
			continue
		}
		if gr.Vertex[si].Valid {
			rd.Layout.VertexAllocators[si].ReleaseRange(gr.Vertex[si].Range)
			gr.Vertex[si].Valid = false
		}
		r, err := u.acquireRange(rd.Layout.VertexAllocators[si], rd.Layout, si, false, uint64(len(geo.Vertex[si])))
		if err != nil {
			return err
		}
		buf := rd.Layout.VertexAllocators[si].BlockBuffer(r.Block)
		if w, ok := buf.(Writable); ok {
			w.Write(r.Start, geo.Vertex[si])
		}
		if !geo.RetainClientCopy {
			geo.Vertex[si] = nil
		}
		u.markSync(buf)
		gr.Vertex[si] = VxRange{Valid: true, Range: r}
	}

	if geo.IndexUpdated && rd.Layout.Indexed && len(geo.Index) > 0 {
		if gr.Index.Valid {
			rd.Layout.IndexAllocator.ReleaseRange(gr.Index.Range)
			gr.Index.Valid = false
		}
		r, err := u.acquireRange(rd.Layout.IndexAllocator, rd.Layout, 0, true, uint64(len(geo.Index)))
		if err != nil {
			return err
		}
		buf := rd.Layout.IndexAllocator.BlockBuffer(r.Block)
		if w, ok := buf.(Writable); ok {
			w.Write(r.Start, geo.Index)
		}
		if !geo.RetainClientCopy {
			geo.Index = nil
		}
		u.markSync(buf)
		gr.Index = IxRange{Valid: true, Range: r}
	}

	return nil
}

// acquireRange calls the allocator, creating and registering a new block
// (with a block-sized zero-init upload) if it reports no capacity, then
// retries once.
func (u *Updater) acquireRange(alloc *rangealloc.Allocator, layout *common.BufferLayout, streamOrIndex int, indexed bool, size uint64) (rangealloc.Range, error) {
	r, err := alloc.AcquireRange(size)
	if err != nil {
		return rangealloc.Range{}, fmt.Errorf("%w: %v", ErrSizeExceedsBlockSize, err)
	}
	if !r.Empty() {
		return r, nil
	}

	var buf rangealloc.Buffer
	if indexed {
		buf = u.newIndexBuffer(layout, streamOrIndex, alloc.BlockSize())
	} else {
		buf = u.newVertexBuffer(layout, streamOrIndex, alloc.BlockSize())
	}
	alloc.CreateBlock(buf)
	if w, ok := buf.(Writable); ok {
		w.Write(0, make([]byte, alloc.BlockSize()))
	}
	u.markInit(buf)

	r, err = alloc.AcquireRange(size)
	if err != nil {
		return rangealloc.Range{}, fmt.Errorf("%w: %v", ErrSizeExceedsBlockSize, err)
	}
	return r, nil
}

func (u *Updater) markInit(buf rangealloc.Buffer) {
	if u.initSeen[buf] {
		return
	}
	u.initSeen[buf] = true
	u.pendingInit = append(u.pendingInit, buf)
}

func (u *Updater) markSync(buf rangealloc.Buffer) {
	if u.syncSeen[buf] {
		return
	}
	u.syncSeen[buf] = true
	u.pendingSync = append(u.pendingSync, buf)
}

// PendingInitBuffers returns the GPU buffers newly created since the last
// call and clears the set. The orchestrator GLInits each of these on the
// render thread.
func (u *Updater) PendingInitBuffers() []rangealloc.Buffer {
	out := u.pendingInit
	u.pendingInit = nil
	u.initSeen = make(map[rangealloc.Buffer]bool)
	return out
}

// PendingSyncBuffers returns the GPU buffers written since the last call
// and clears the set. The orchestrator GLSyncs each of these on the render
// thread.
func (u *Updater) PendingSyncBuffers() []rangealloc.Buffer {
	out := u.pendingSync
	u.pendingSync = nil
	u.syncSeen = make(map[rangealloc.Buffer]bool)
	return out
}

// Sync materialises DrawCalls for entities touched by the last Update:
// removed entities' DrawCalls are invalidated, and entities with fully
// valid ranges get their DrawCall (re)built from GeometryRanges. Must be
// called on the render thread.
func (u *Updater) Sync(renderData ecs.ComponentList[*renderdata.RenderData]) {
	for _, ent := range u.removedThisUpdate {
		if dc, ok := u.calls[ent]; ok {
			dc.Valid = false
			dc.Vertex = nil
			dc.Index = IndexRef{}
			dc.Uniforms = nil
		}
	}

	touched := append(append([]ecs.Entity(nil), u.addedThisUpdate...), u.updatedThisUpdate...)
	for _, ent := range touched {
		gr, ok := u.ranges[ent]
		if !ok || !gr.Valid {
			continue
		}
		if !allVertexValid(gr) || (gr.Layout.Indexed && !gr.Index.Valid) {
			continue
		}
		rd, ok := renderData.Get(ent)
		if !ok {
			continue
		}
		dc, ok := u.calls[ent]
		if !ok {
			dc = &DrawCall{}
			u.calls[ent] = dc
		}
		dc.Vertex = make([]StreamRef, len(gr.Vertex))
		for i, vr := range gr.Vertex {
			buf, _ := rd.Layout.VertexAllocators[i].BlockBuffer(vr.Range.Block).(gpuapi.VertexBuffer)
			dc.Vertex[i] = StreamRef{
				Buffer:     buf,
				StartByte:  vr.Range.Start,
				SizeBytes:  vr.Range.Size,
				VertexSize: gr.Layout.VertexSize(i),
			}
		}
		if gr.Layout.Indexed {
			buf, _ := rd.Layout.IndexAllocator.BlockBuffer(gr.Index.Range.Block).(gpuapi.IndexBuffer)
			dc.Index = IndexRef{Valid: true, Buffer: buf, StartByte: gr.Index.Range.Start, SizeBytes: gr.Index.Range.Size}
		} else {
			dc.Index = IndexRef{}
		}
		dc.SortKey = rd.SortKey
		dc.Uniforms = rd.Uniforms
		dc.Valid = true
	}
}

func allVertexValid(gr *GeometryRanges) bool {
	for _, vr := range gr.Vertex {
		if !vr.Valid {
			return false
		}
	}
	return true
}

// DrawCall returns the current DrawCall for ent, if any.
func (u *Updater) DrawCall(ent ecs.Entity) (*DrawCall, bool) {
	dc, ok := u.calls[ent]
	return dc, ok
}

// Each calls fn for every entity with a materialised DrawCall, valid or
// not — the orchestrator filters by Valid itself when building per-stage
// id lists.
func (u *Updater) Each(fn func(ent ecs.Entity, dc *DrawCall)) {
	for ent, dc := range u.calls {
		fn(ent, dc)
	}
}

// Reset releases all tracked state: every GeometryRanges' ranges are
// released, and the updater forgets every entity. Intended for GPU-context
// loss.
func (u *Updater) Reset() {
	for ent := range u.ranges {
		u.releaseEntity(ent)
	}
	u.ranges = make(map[ecs.Entity]*GeometryRanges)
	u.calls = make(map[ecs.Entity]*DrawCall)
	u.prev = nil
	u.addedThisUpdate = nil
	u.removedThisUpdate = nil
	u.updatedThisUpdate = nil
	u.pendingInit = nil
	u.pendingSync = nil
	u.initSeen = make(map[rangealloc.Buffer]bool)
	u.syncSeen = make(map[rangealloc.Buffer]bool)
}

// OutstandingRangeCount returns the number of entities currently holding a
// valid GeometryRanges record, for tests asserting release behaviour.
func (u *Updater) OutstandingRangeCount() int {
	return len(u.ranges)
}
