package batch

import (
	"errors"
	"fmt"
	"log"

	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/ecs"
	"github.com/darian-voss/batchrender/engine/renderdata"
	"github.com/darian-voss/batchrender/internal/recycle"
	"github.com/darian-voss/batchrender/taskpool"
)

// ErrMismatchingBlockSizes is returned by RegisterBatch when the supplied
// BufferLayout's vertex-stream allocators do not share one block vertex
// capacity.
var ErrMismatchingBlockSizes = errors.New("batch: mismatching block sizes")

// PreMergeFunc lets the application filter or reorder a group's source
// entity list before merging; the returned order becomes the merge order.
type PreMergeFunc func(groupID int, sources []ecs.Entity) []ecs.Entity

// PostMergeFunc reports the exact source-entity partition across the
// merged entities a rebuild produced.
type PostMergeFunc func(groupID int, mergedIDs []ecs.Entity, sourceIDsPerMerged [][]ecs.Entity)

// PreTaskFunc fires on the update thread immediately before a new
// background merge task is enqueued.
type PreTaskFunc func()

// Engine is the Batch Engine. The zero value is not usable; use New.
type Engine struct {
	allocator  ecs.Allocator
	renderData ecs.ComponentList[*renderdata.RenderData]
	pool       taskpool.Pool

	groups  *recycle.List[*group]
	nextUID uint64

	stagingGeometry map[ecs.Entity]*common.Geometry

	inFlight    taskpool.Task
	taskResults []groupResult

	preMerge  PreMergeFunc
	postMerge PostMergeFunc
	preTask   PreTaskFunc
}

// groupResult is one rebuilt group's multi-frame task output, captured for
// reclaim on a subsequent Update once the task has finished.
type groupResult struct {
	groupID            int
	groupUID           uint64
	mergedGeometries   []*common.Geometry
	sourceIDsPerMerged [][]ecs.Entity
	err                error
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithPreMerge installs the PreMerge hook at construction.
func WithPreMerge(fn PreMergeFunc) Option { return func(e *Engine) { e.preMerge = fn } }

// WithPostMerge installs the PostMerge hook at construction.
func WithPostMerge(fn PostMergeFunc) Option { return func(e *Engine) { e.postMerge = fn } }

// WithPreTask installs the PreTask hook at construction.
func WithPreTask(fn PreTaskFunc) Option { return func(e *Engine) { e.preTask = fn } }

// New creates an Engine. allocator and renderData back the synthesised
// merged entities this engine creates and destroys; pool runs multi-frame
// merge tasks in the background.
func New(allocator ecs.Allocator, renderData ecs.ComponentList[*renderdata.RenderData], pool taskpool.Pool, opts ...Option) *Engine {
	e := &Engine{
		allocator:       allocator,
		renderData:      renderData,
		pool:            pool,
		groups:          recycle.New[*group](),
		stagingGeometry: make(map[ecs.Entity]*common.Geometry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPreMerge installs the PreMerge hook.
func (e *Engine) SetPreMerge(fn PreMergeFunc) { e.preMerge = fn }

// SetPostMerge installs the PostMerge hook.
func (e *Engine) SetPostMerge(fn PostMergeFunc) { e.postMerge = fn }

// SetPreTask installs the PreTask hook.
func (e *Engine) SetPreTask(fn PreTaskFunc) { e.preTask = fn }

// RegisterBatch validates b's BufferLayout and allocates a new group with a
// fresh uid, returning its id.
func (e *Engine) RegisterBatch(b *Batch) (int, error) {
	if !b.Layout.ValidateBlockCapacities() {
		return 0, ErrMismatchingBlockSizes
	}
	e.nextUID++
	g := newGroup(b, e.nextUID)
	id := e.groups.Add(g)
	return id, nil
}

// RemoveBatch destroys all merged entities owned by the group and releases
// it. Removing an unknown or already-removed id is a no-op.
func (e *Engine) RemoveBatch(id int) {
	g, ok := e.groups.Get(id)
	if !ok {
		return
	}
	for _, meid := range g.mergedEntityIDs {
		e.renderData.Remove(meid)
		e.allocator.Destroy(meid)
	}
	e.groups.Remove(id)
}

// GetBatchEntities returns the current merged entity ids owned by id.
func (e *Engine) GetBatchEntities(id int) []ecs.Entity {
	g, ok := e.groups.Get(id)
	if !ok {
		return nil
	}
	return append([]ecs.Entity(nil), g.mergedEntityIDs...)
}

// Update runs the per-frame Batch Engine algorithm against a snapshot of
// the BatchData component list. It must be called on the update thread.
func (e *Engine) Update(batchData ecs.ComponentList[*BatchData]) error {
	e.groups.Each(func(_ int, g *group) { g.resetFrame() })

	batchData.Each(func(ent ecs.Entity, bd *BatchData) {
		if bd.GroupID <= 0 {
			return
		}
		g, ok := e.groups.Get(bd.GroupID)
		if !ok {
			return
		}
		g.listEntsCurr = append(g.listEntsCurr, ent)
		if bd.Rebuild {
			g.rebuild = true
			g.listEntsUpd = append(g.listEntsUpd, ent)
		}
	})

	e.groups.Each(func(_ int, g *group) {
		rem := setDifference(g.listEntsPrev, g.listEntsCurr)
		if len(rem) > 0 {
			g.listEntsRem = rem
			g.rebuild = true
		}
	})

	e.reclaimFinishedTask()

	// The staging geometry array is thread-private to the batch worker for
	// the duration between enqueue and finish; touching it here while a
	// task is still in flight would be a concurrent map access. If
	// a task is pending, multi-frame groups simply defer for this frame —
	// their rebuild/removed flags are untouched and picked back up once
	// the in-flight task is reclaimed.
	taskPending := e.inFlight != nil

	var descs []batchDesc
	var err error
	e.groups.Each(func(id int, g *group) {
		if err != nil || !g.rebuild {
			return
		}
		switch g.batch.Priority {
		case SingleFrame:
			if rerr := e.rebuildSingleFrame(id, g, batchData); rerr != nil {
				err = rerr
			}
		case MultiFrame:
			if taskPending {
				return
			}
			e.stageMultiFrame(g, batchData)
			// PreMerge runs here on the update thread, not inside the
			// task, so the hook never executes on the worker. The desc
			// carries the post-hook order; listEntsCurr stays
			// authoritative for diffing.
			ents := append([]ecs.Entity(nil), g.listEntsCurr...)
			if e.preMerge != nil {
				ents = e.preMerge(id, ents)
			}
			descs = append(descs, batchDesc{
				groupID:  id,
				groupUID: g.uid,
				layout:   g.batch.Layout,
				entsCurr: ents,
			})
		}
	})
	if err != nil {
		return err
	}

	e.maybeEnqueueTask(descs)
	return nil
}

// setDifference returns the elements of prev not present in curr. Both
// inputs must be sorted ascending (true of listEntsPrev/listEntsCurr by
// construction).
func setDifference(prev, curr []ecs.Entity) []ecs.Entity {
	var out []ecs.Entity
	i, j := 0, 0
	for i < len(prev) && j < len(curr) {
		switch {
		case prev[i] < curr[j]:
			out = append(out, prev[i])
			i++
		case prev[i] > curr[j]:
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, prev[i:]...)
	return out
}

// rebuildSingleFrame performs the synchronous single-frame rebuild for one
// group: collect sources, apply PreMerge, split, resize the merged entity
// list, and write each sublist's merged geometry directly.
func (e *Engine) rebuildSingleFrame(id int, g *group, batchData ecs.ComponentList[*BatchData]) error {
	sourceEnts := g.listEntsCurr
	if e.preMerge != nil {
		sourceEnts = e.preMerge(id, append([]ecs.Entity(nil), sourceEnts...))
	}

	geoms := make([]*common.Geometry, len(sourceEnts))
	for i, ent := range sourceEnts {
		bd, ok := batchData.Get(ent)
		if !ok {
			return fmt.Errorf("batch: entity %d missing BatchData during rebuild", ent)
		}
		geoms[i] = bd.Geometry
	}

	idxGroups, err := splitIndices(g.batch.Layout, geoms)
	if err != nil {
		return err
	}

	e.resizeMergedEntities(g, len(idxGroups))

	sourceIDsPerMerged := make([][]ecs.Entity, len(idxGroups))
	for mi, idx := range idxGroups {
		sub := gather(geoms, idx)
		dest := common.NewGeometry(g.batch.Layout.StreamCount())
		createMergedGeometry(g.batch.Layout, sub, dest)

		ids := make([]ecs.Entity, len(idx))
		for k, gi := range idx {
			ids[k] = sourceEnts[gi]
		}
		sourceIDsPerMerged[mi] = ids

		e.renderData.Set(g.mergedEntityIDs[mi], &renderdata.RenderData{
			SortKey:     g.batch.SortKeyTemplate,
			Layout:      g.batch.Layout,
			Uniforms:    g.batch.Uniforms.Clone(),
			Stages:      append([]int(nil), g.batch.Stages...),
			Transparent: g.batch.Transparent,
			Enabled:     true,
			Geometry:    dest,
			UID:         renderdata.NextUID(),
		})
	}

	if e.postMerge != nil {
		e.postMerge(id, append([]ecs.Entity(nil), g.mergedEntityIDs...), sourceIDsPerMerged)
	}

	for _, ent := range sourceEnts {
		if bd, ok := batchData.Get(ent); ok {
			bd.Rebuild = false
			if bd.Geometry != nil {
				bd.Geometry.ClearUpdated()
			}
		}
	}

	g.listEntsPrev = append(g.listEntsPrev[:0], g.listEntsCurr...)
	return nil
}

// resizeMergedEntities grows or shrinks g.mergedEntityIDs to exactly n
// entries, creating or destroying synthesised entities as needed.
func (e *Engine) resizeMergedEntities(g *group, n int) {
	for len(g.mergedEntityIDs) < n {
		id := e.allocator.New()
		g.mergedEntityIDs = append(g.mergedEntityIDs, id)
	}
	for len(g.mergedEntityIDs) > n {
		last := len(g.mergedEntityIDs) - 1
		id := g.mergedEntityIDs[last]
		e.renderData.Remove(id)
		e.allocator.Destroy(id)
		g.mergedEntityIDs = g.mergedEntityIDs[:last]
	}
}

// stageMultiFrame refreshes the thread-private staging geometry array ahead
// of a possible task enqueue: stale entries for removed entities are
// dropped, and every entity flagged for rebuild this frame gets a fresh
// deep copy staged, with its source rebuild/update flags cleared.
func (e *Engine) stageMultiFrame(g *group, batchData ecs.ComponentList[*BatchData]) {
	for _, ent := range g.listEntsRem {
		delete(e.stagingGeometry, ent)
	}
	for _, ent := range g.listEntsUpd {
		bd, ok := batchData.Get(ent)
		if !ok {
			continue
		}
		e.stagingGeometry[ent] = bd.Geometry.Clone()
		bd.Rebuild = false
		if bd.Geometry != nil {
			bd.Geometry.ClearUpdated()
		}
	}
}

// batchDesc is the immutable per-group snapshot handed to a multi-frame
// merge task; the captured group uid detects a group recycled before the
// task finishes.
type batchDesc struct {
	groupID  int
	groupUID uint64
	layout   *common.BufferLayout
	entsCurr []ecs.Entity
}

// maybeEnqueueTask enqueues a background merge task covering descs if one
// isn't already in flight. If the previous task hasn't finished, the engine
// defers — no new task is built this frame, per the rebuild gate.
func (e *Engine) maybeEnqueueTask(descs []batchDesc) {
	if len(descs) == 0 || e.inFlight != nil {
		return
	}
	if e.preTask != nil {
		e.preTask()
	}

	staging := e.stagingGeometry
	results := make([]groupResult, len(descs))
	task := taskpool.NewFuncTask(func() {
		for i, d := range descs {
			geoms := make([]*common.Geometry, len(d.entsCurr))
			for k, ent := range d.entsCurr {
				geoms[k] = staging[ent]
			}
			idxGroups, err := splitIndices(d.layout, geoms)
			if err != nil {
				results[i] = groupResult{groupID: d.groupID, groupUID: d.groupUID, err: err}
				continue
			}
			merged := make([]*common.Geometry, len(idxGroups))
			sourceIDs := make([][]ecs.Entity, len(idxGroups))
			for mi, idx := range idxGroups {
				sub := gather(geoms, idx)
				dest := common.NewGeometry(d.layout.StreamCount())
				createMergedGeometry(d.layout, sub, dest)
				merged[mi] = dest
				ids := make([]ecs.Entity, len(idx))
				for k, gi := range idx {
					ids[k] = d.entsCurr[gi]
				}
				sourceIDs[mi] = ids
			}
			results[i] = groupResult{
				groupID:            d.groupID,
				groupUID:           d.groupUID,
				mergedGeometries:   merged,
				sourceIDsPerMerged: sourceIDs,
			}
		}
	})

	e.taskResults = results
	e.inFlight = task
	e.pool.PushBack(task)
}

// reclaimFinishedTask applies a finished previous task's outputs. A
// BatchDesc's outputs are discarded if its target group no longer exists or
// its current uid no longer matches the desc's captured uid — the guard
// against a stale task clobbering a fresh group reusing the same slot.
func (e *Engine) reclaimFinishedTask() {
	if e.inFlight == nil || !e.inFlight.IsFinished() {
		return
	}
	results := e.taskResults
	e.inFlight = nil
	e.taskResults = nil

	for _, r := range results {
		if r.err != nil {
			log.Printf("batch: group %d background merge failed: %v", r.groupID, r.err)
			continue
		}
		g, ok := e.groups.Get(r.groupID)
		if !ok || g.uid != r.groupUID {
			log.Printf("batch: discarding stale merge output for group %d", r.groupID)
			continue
		}
		e.resizeMergedEntities(g, len(r.mergedGeometries))
		for mi, geo := range r.mergedGeometries {
			e.renderData.Set(g.mergedEntityIDs[mi], &renderdata.RenderData{
				SortKey:     g.batch.SortKeyTemplate,
				Layout:      g.batch.Layout,
				Uniforms:    g.batch.Uniforms.Clone(),
				Stages:      append([]int(nil), g.batch.Stages...),
				Transparent: g.batch.Transparent,
				Enabled:     true,
				Geometry:    geo,
				UID:         renderdata.NextUID(),
			})
		}
		if e.postMerge != nil {
			e.postMerge(r.groupID, append([]ecs.Entity(nil), g.mergedEntityIDs...), r.sourceIDsPerMerged)
		}
		g.listEntsPrev = append(g.listEntsPrev[:0], g.listEntsCurr...)
	}
}

// WaitOnMultiFrameBatch blocks until the in-flight multi-frame task (if
// any) finishes. The only blocking point in normal operation, used by
// tests and deterministic shutdown.
func (e *Engine) WaitOnMultiFrameBatch() {
	if e.inFlight != nil {
		e.inFlight.Wait()
	}
}
