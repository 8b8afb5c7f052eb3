package orchestrator

import (
	"sort"

	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/ecs"
	"github.com/darian-voss/batchrender/engine/drawcall"
	"github.com/darian-voss/batchrender/engine/profiler"
	"github.com/darian-voss/batchrender/engine/renderdata"
	"github.com/darian-voss/batchrender/engine/stage"
	"github.com/darian-voss/batchrender/gpuapi"
	"github.com/darian-voss/batchrender/internal/rangealloc"
	"github.com/darian-voss/batchrender/internal/recycle"
)

// Orchestrator is the Render Pipeline Orchestrator. It owns every managed
// GPU resource list, the Draw-Call Updater, and the draw-stage graph, and
// exposes the three-call-per-frame contract: Update (update thread), Sync
// and Render (render thread, in that order). The zero value is not usable;
// use New.
type Orchestrator struct {
	shaders  *resourceList[gpuapi.ShaderProgram]
	depth    *resourceList[gpuapi.StateSet]
	blend    *resourceList[gpuapi.StateSet]
	stencil  *resourceList[gpuapi.StateSet]
	textures *resourceList[[]gpuapi.Texture2D]
	uniforms *resourceList[[]common.UniformBinding]

	stages *stageGraph

	updater *drawcall.Updater
	target  gpuapi.Target
	prof    *profiler.Profiler

	syncCallbacks *recycle.List[func()]

	allBuffers []rangealloc.Buffer

	stageOpaque      map[int][]ecs.Entity
	stageTransparent map[int][]ecs.Entity
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithProfiler attaches a Profiler at construction; see SetProfiler.
func WithProfiler(p *profiler.Profiler) Option { return func(o *Orchestrator) { o.prof = p } }

// New creates an Orchestrator. updater is the Draw-Call Updater it drives;
// target is the GPU draw surface handed to every stage's Render.
func New(updater *drawcall.Updater, target gpuapi.Target, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		shaders:       newShaderList(),
		depth:         newStateSetList(),
		blend:         newStateSetList(),
		stencil:       newStateSetList(),
		textures:      newTextureSetList(),
		uniforms:      newUniformSetList(),
		stages:        newStageGraph(),
		updater:       updater,
		target:        target,
		syncCallbacks: recycle.New[func()](),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterShader, RegisterDepthState, RegisterBlendState, RegisterStencilState,
// RegisterTextureSet and RegisterUniformSet all reserve a slot in the
// corresponding async resource list and return its id. The payload is only
// GLInit'd (where applicable) on the next Sync.
func (o *Orchestrator) RegisterShader(s gpuapi.ShaderProgram) int { return o.shaders.Register(s) }
func (o *Orchestrator) RemoveShader(id int) { o.shaders.Remove(id) }
func (o *Orchestrator) RegisterDepthState(s gpuapi.StateSet) int { return o.depth.Register(s) }
func (o *Orchestrator) RemoveDepthState(id int) { o.depth.Remove(id) }
func (o *Orchestrator) RegisterBlendState(s gpuapi.StateSet) int { return o.blend.Register(s) }
func (o *Orchestrator) RemoveBlendState(id int) { o.blend.Remove(id) }
func (o *Orchestrator) RegisterStencilState(s gpuapi.StateSet) int {
	return o.stencil.Register(s)
}
func (o *Orchestrator) RemoveStencilState(id int) { o.stencil.Remove(id) }
func (o *Orchestrator) RegisterTextureSet(t []gpuapi.Texture2D) int {
	return o.textures.Register(t)
}
func (o *Orchestrator) RemoveTextureSet(id int) { o.textures.Remove(id) }
func (o *Orchestrator) RegisterUniformSet(u []common.UniformBinding) int {
	return o.uniforms.Register(u)
}
func (o *Orchestrator) RemoveUniformSet(id int) { o.uniforms.Remove(id) }

// SetProfiler attaches a Profiler that Render folds per-frame stats into.
// Pass nil to disable profiling.
func (o *Orchestrator) SetProfiler(p *profiler.Profiler) { o.prof = p }

// RegisterDrawStage adds a draw stage to the graph and returns its id.
func (o *Orchestrator) RegisterDrawStage(s stage.Stage) int { return o.stages.Register(s) }

// RemoveDrawStage removes a draw stage and every dependency edge touching
// it.
func (o *Orchestrator) RemoveDrawStage(id int) { o.stages.Remove(id) }

// AddDrawStageDependency records that the from stage must run before the
// to stage.
func (o *Orchestrator) AddDrawStageDependency(from, to int) { o.stages.AddDependency(from, to) }

// RemoveDrawStageDependency removes a previously added dependency.
func (o *Orchestrator) RemoveDrawStageDependency(from, to int) { o.stages.RemoveDependency(from, to) }

// AddSyncCallback registers fn to be invoked once at the end of every Sync,
// after every resource list and the Draw-Call Updater have settled. Returns
// an id usable with RemoveSyncCallback.
func (o *Orchestrator) AddSyncCallback(fn func()) int { return o.syncCallbacks.Add(fn) }

// RemoveSyncCallback removes a previously registered callback.
func (o *Orchestrator) RemoveSyncCallback(id int) { o.syncCallbacks.Remove(id) }

// Update is the update-thread entry point: it walks every enabled,
// renderable entity and hands the Draw-Call Updater a fresh (entity,
// unique id) pair list to diff against.
func (o *Orchestrator) Update(renderData ecs.ComponentList[*renderdata.RenderData]) error {
	var pairs []drawcall.Pair
	renderData.Each(func(e ecs.Entity, rd *renderdata.RenderData) {
		if rd == nil || !rd.Enabled {
			return
		}
		pairs = append(pairs, drawcall.Pair{Entity: e, UID: rd.UID})
	})
	return o.updater.Update(pairs, renderData)
}

// Sync is the render-thread entry point, called once per frame ahead of
// Render, in this order: draw-stage graph, shaders, GPU buffers (init
// freshly created blocks, then flush each dirty buffer), raster configs,
// textures (bind + sync any with pending uploads), uniform sets (per-frame
// refresh), the Draw-Call Updater's own Sync, the per-stage
// opaque/transparent id-list rebuild, and finally every registered sync
// callback. The caller must guarantee no update-thread writes overlap this
// call — synchronization is a rendezvous point, not a lock.
func (o *Orchestrator) Sync(renderData ecs.ComponentList[*renderdata.RenderData]) error {
	if err := o.stages.Sync(); err != nil {
		return err
	}
	if err := syncShaders(o.shaders); err != nil {
		return err
	}

	for _, buf := range o.updater.PendingInitBuffers() {
		o.allBuffers = append(o.allBuffers, buf)
		if r, ok := buf.(gpuapi.Resource); ok {
			if err := r.GLInit(); err != nil {
				return err
			}
		}
	}
	for _, buf := range o.updater.PendingSyncBuffers() {
		if r, ok := buf.(gpuapi.Resource); ok {
			r.GLSync()
		}
	}

	o.depth.Sync(nil, nil)
	o.blend.Sync(nil, nil)
	o.stencil.Sync(nil, nil)
	if err := syncTextures(o.textures); err != nil {
		return err
	}
	for _, set := range o.textures.Snapshot() {
		for _, tex := range set {
			if tex != nil && tex.NeedsSync() {
				tex.GLBind()
				tex.GLSync()
			}
		}
	}
	o.uniforms.Sync(nil, nil)
	for _, set := range o.uniforms.Snapshot() {
		common.UniformList(set).Refresh()
	}

	o.updater.Sync(renderData)

	o.stageOpaque = make(map[int][]ecs.Entity)
	o.stageTransparent = make(map[int][]ecs.Entity)
	o.updater.Each(func(ent ecs.Entity, dc *drawcall.DrawCall) {
		if !dc.Valid {
			return
		}
		dc.Uniforms.Refresh()
		rd, ok := renderData.Get(ent)
		if !ok {
			return
		}
		for _, sid := range rd.Stages {
			if rd.Transparent {
				o.stageTransparent[sid] = append(o.stageTransparent[sid], ent)
			} else {
				o.stageOpaque[sid] = append(o.stageOpaque[sid], ent)
			}
		}
	})
	for _, ids := range o.stageOpaque {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	for _, ids := range o.stageTransparent {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	o.syncCallbacks.Each(func(id int, fn func()) {
		if fn != nil {
			fn()
		}
	})

	return nil
}

// Render is the render-thread entry point, called once per frame after
// Sync. It executes every draw stage in topological order and returns the
// accumulated per-stage stats, indexed by stage id.
func (o *Orchestrator) Render() map[int]stage.Stats {
	out := make(map[int]stage.Stats, len(o.stages.Order()))
	for _, sid := range o.stages.Order() {
		s := o.stages.Stage(sid)
		if s == nil {
			continue
		}
		params := stage.DrawParams{
			Target:         o.target,
			Shaders:        o.shaders.Snapshot(),
			Depth:          o.depth.Snapshot(),
			Blend:          o.blend.Snapshot(),
			Stencil:        o.stencil.Snapshot(),
			Textures:       o.textures.Snapshot(),
			Uniforms:       o.uniforms.Snapshot(),
			DrawCalls:      o.updater.DrawCall,
			OpaqueIDs:      o.stageOpaque[sid],
			TransparentIDs: o.stageTransparent[sid],
		}
		out[sid] = s.Render(params)
	}
	if o.prof != nil {
		o.prof.Record(out)
		o.prof.Tick()
	}
	return out
}

// Reset tears down the registered shaders, texture sets and draw-call
// buffers and clears every resource list back to its sentinel slot.
// Intended for GPU-context loss: GLCleanUp is invoked directly on each
// shader, texture and buffer (resourceList.Reset does not do this itself,
// since it has no onRemove to call once the async list has already been
// wiped), depth/blend/stencil state sets are dropped without a GLCleanUp,
// stage.Reset is called on every registered draw stage, and the Draw-Call
// Updater is reset. Draw stages, their dependency edges and sync callbacks
// stay registered.
func (o *Orchestrator) Reset() {
	for _, s := range o.shaders.Snapshot() {
		if s != nil {
			s.GLCleanUp()
		}
	}
	for _, set := range o.textures.Snapshot() {
		for _, t := range set {
			if t != nil {
				t.GLCleanUp()
			}
		}
	}
	for _, buf := range o.allBuffers {
		if r, ok := buf.(gpuapi.Resource); ok {
			r.GLCleanUp()
		}
	}
	o.allBuffers = nil

	o.shaders.Reset()
	o.depth.Reset()
	o.blend.Reset()
	o.stencil.Reset()
	o.textures.Reset()
	o.uniforms.Reset()

	o.stages.Each(func(id int, s stage.Stage) {
		if s != nil {
			s.Reset()
		}
	})

	o.updater.Reset()
	o.stageOpaque = nil
	o.stageTransparent = nil
}
