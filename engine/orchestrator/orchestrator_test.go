package orchestrator

import (
	"testing"

	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/ecs"
	"github.com/darian-voss/batchrender/engine/drawcall"
	"github.com/darian-voss/batchrender/engine/profiler"
	"github.com/darian-voss/batchrender/engine/renderdata"
	"github.com/darian-voss/batchrender/engine/stage"
	"github.com/darian-voss/batchrender/gpuapi"
	"github.com/darian-voss/batchrender/internal/rangealloc"
)

const testVertexSize = 20

type testBuffer struct {
	size   uint64
	writes int
	inited bool
	synced int
}

func (b *testBuffer) Write(offset uint64, data []byte) { b.writes++ }
func (b *testBuffer) GLInit() error { b.inited = true; return nil }
func (b *testBuffer) GLBind() {}
func (b *testBuffer) GLSync() { b.synced++ }
func (b *testBuffer) GLCleanUp() {}

var _ gpuapi.Resource = (*testBuffer)(nil)

func newTestUpdater() *drawcall.Updater {
	return drawcall.New(
		func(layout *common.BufferLayout, stream int, size uint64) rangealloc.Buffer {
			return &testBuffer{size: size}
		},
		func(layout *common.BufferLayout, stream int, size uint64) rangealloc.Buffer {
			return &testBuffer{size: size}
		},
	)
}

func newTestLayout(blockSize uint64, indexed bool) *common.BufferLayout {
	l := &common.BufferLayout{
		Streams:          []common.VertexAttributeLayout{{Name: "pos", ByteSize: testVertexSize}},
		Indexed:          indexed,
		VertexAllocators: []*rangealloc.Allocator{rangealloc.New(blockSize)},
	}
	if indexed {
		l.IndexAllocator = rangealloc.New(blockSize)
	}
	return l
}

func geomWithBytes(nVerts, nIdx int) *common.Geometry {
	g := common.NewGeometry(1)
	g.Vertex[0] = make([]byte, nVerts*testVertexSize)
	g.Index = make([]byte, nIdx*2)
	g.MarkAllUpdated()
	return g
}

type recordingStage struct {
	renders int
	lastP   stage.DrawParams
}

func (s *recordingStage) Render(p stage.DrawParams) stage.Stats {
	s.renders++
	s.lastP = p
	return stage.Stats{DrawCalls: len(p.OpaqueIDs) + len(p.TransparentIDs)}
}

func (s *recordingStage) Reset() {}

type fakeTarget struct{ clears int }

func (t *fakeTarget) Clear() { t.clears++ }
func (t *fakeTarget) BindVertexStream(stream int, buf gpuapi.VertexBuffer) {}
func (t *fakeTarget) BindIndexBuffer(buf gpuapi.IndexBuffer) {}
func (t *fakeTarget) DrawArrays(p gpuapi.Primitive, vertexSize, start, sizeBytes uint64) {}
func (t *fakeTarget) DrawElements(p gpuapi.Primitive, startByte, sizeBytes uint64) {}

var _ gpuapi.Target = (*fakeTarget)(nil)

type fakeShader struct {
	inited   int
	cleanups int
}

func (s *fakeShader) GLInit() error { s.inited++; return nil }
func (*fakeShader) GLBind() {}
func (*fakeShader) GLSync() {}
func (s *fakeShader) GLCleanUp() { s.cleanups++ }
func (*fakeShader) BindUniform(string, []byte) {}

var _ gpuapi.ShaderProgram = (*fakeShader)(nil)

// TestOrchestratorEndToEndRender drives Update, Sync and Render through a
// registered draw stage and verifies the stage actually receives the
// entity registered via Update, its resources are GLInit'd by Sync, and
// per-frame stats flow back out of Render.
func TestOrchestratorEndToEndRender(t *testing.T) {
	updater := newTestUpdater()
	target := &fakeTarget{}
	o := New(updater, target)

	sh := &fakeShader{}
	shaderID := o.RegisterShader(sh)

	st := &recordingStage{}
	stageID := o.RegisterDrawStage(st)

	layout := newTestLayout(4096, false)
	renderData := ecs.NewMapComponentList[*renderdata.RenderData]()
	var ent ecs.Entity = 1
	rd := &renderdata.RenderData{
		Layout:   layout,
		Geometry: geomWithBytes(3, 0),
		Enabled:  true,
		UID:      1,
		Stages:   []int{stageID},
	}
	rd.SortKey = rd.SortKey.SetShader(uint32(shaderID))
	renderData.Set(ent, rd)

	if err := o.Update(renderData); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := o.Sync(renderData); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if sh.inited != 1 {
		t.Fatalf("shader GLInit calls after Sync:\nhave %d\nwant 1", sh.inited)
	}

	stats := o.Render()
	// Render leaves clearing to the stages, and recordingStage never clears.
	if target.clears != 0 {
		t.Fatalf("Target.Clear calls:\nhave %d\nwant 0", target.clears)
	}
	if st.renders != 1 {
		t.Fatalf("stage Render calls:\nhave %d\nwant 1", st.renders)
	}
	if len(st.lastP.OpaqueIDs) != 1 || st.lastP.OpaqueIDs[0] != ent {
		t.Fatalf("stage OpaqueIDs:\nhave %v\nwant [%d]", st.lastP.OpaqueIDs, ent)
	}
	if got := stats[stageID].DrawCalls; got != 1 {
		t.Fatalf("Render stats for stage %d:\nhave %d\nwant 1", stageID, got)
	}
}

// TestOrchestratorProfilerWiring verifies a Profiler attached via
// SetProfiler is exercised by Render (Record/Tick), rather than sitting
// dead with no caller.
func TestOrchestratorProfilerWiring(t *testing.T) {
	updater := newTestUpdater()
	o := New(updater, &fakeTarget{})
	o.RegisterDrawStage(&recordingStage{})

	o.SetProfiler(profiler.NewProfiler())

	renderData := ecs.NewMapComponentList[*renderdata.RenderData]()
	if err := o.Update(renderData); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := o.Sync(renderData); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// Must not panic with a profiler attached, and Render's own return
	// value must be unaffected by profiling being on.
	stats := o.Render()
	if len(stats) != 1 {
		t.Fatalf("Render stats count:\nhave %d\nwant 1", len(stats))
	}
}

// TestOrchestratorResetCleansUpAndRebuildsFromZero covers Reset: every
// registered shader is GLCleanUp'd, and resource lists return to just the
// sentinel slot so a later Register starts fresh.
func TestOrchestratorResetCleansUpAndRebuildsFromZero(t *testing.T) {
	updater := newTestUpdater()
	o := New(updater, &fakeTarget{})

	sh := &fakeShader{}
	o.RegisterShader(sh)
	renderData := ecs.NewMapComponentList[*renderdata.RenderData]()
	if err := o.Sync(renderData); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if sh.inited != 1 {
		t.Fatalf("shader GLInit before Reset:\nhave %d\nwant 1", sh.inited)
	}

	o.Reset()

	if sh.cleanups != 1 {
		t.Fatalf("shader GLCleanUp calls after Reset:\nhave %d\nwant 1", sh.cleanups)
	}
	if got := len(o.shaders.Snapshot()); got != 1 {
		t.Fatalf("shader sync-list length after Reset:\nhave %d\nwant 1 (sentinel only)", got)
	}

	// Registering again after Reset must not panic and must hand out a
	// fresh slot rather than colliding with pre-Reset bookkeeping.
	sh2 := &fakeShader{}
	id := o.RegisterShader(sh2)
	if id != 1 {
		t.Fatalf("post-Reset RegisterShader id:\nhave %d\nwant 1", id)
	}
}

// TestOrchestratorRemoveOutOfRangeIDsNoPanic checks invalid/freed resource
// ids are ignored at the orchestrator's own Remove* entry points, not just
// inside a draw stage.
func TestOrchestratorRemoveOutOfRangeIDsNoPanic(t *testing.T) {
	updater := newTestUpdater()
	o := New(updater, &fakeTarget{})

	o.RemoveShader(9999)
	o.RemoveDepthState(9999)
	o.RemoveBlendState(9999)
	o.RemoveStencilState(9999)
	o.RemoveTextureSet(9999)
	o.RemoveUniformSet(9999)
	o.RemoveDrawStage(9999)
	o.RemoveSyncCallback(9999)

	renderData := ecs.NewMapComponentList[*renderdata.RenderData]()
	if err := o.Sync(renderData); err != nil {
		t.Fatalf("Sync after out-of-range removes: %v", err)
	}
}

type dirtyTexture struct {
	dirty bool
	binds int
	syncs int
}

func (*dirtyTexture) GLInit() error { return nil }
func (t *dirtyTexture) GLBind() { t.binds++ }
func (t *dirtyTexture) GLSync() { t.syncs++; t.dirty = false }
func (*dirtyTexture) GLCleanUp() {}
func (*dirtyTexture) Upload(width, height uint32, px []byte) {}
func (*dirtyTexture) BindUnit(unit int) {}
func (t *dirtyTexture) NeedsSync() bool { return t.dirty }

var _ gpuapi.Texture2D = (*dirtyTexture)(nil)

// TestOrchestratorSyncsDirtyTextures verifies Sync binds and GLSyncs every
// texture reporting pending updates, and leaves clean textures untouched.
func TestOrchestratorSyncsDirtyTextures(t *testing.T) {
	o := New(newTestUpdater(), &fakeTarget{})

	dirty := &dirtyTexture{dirty: true}
	clean := &dirtyTexture{}
	o.RegisterTextureSet([]gpuapi.Texture2D{dirty, clean})

	renderData := ecs.NewMapComponentList[*renderdata.RenderData]()
	if err := o.Sync(renderData); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if dirty.binds != 1 || dirty.syncs != 1 {
		t.Fatalf("dirty texture binds/syncs:\nhave %d/%d\nwant 1/1", dirty.binds, dirty.syncs)
	}
	if clean.binds != 0 || clean.syncs != 0 {
		t.Fatalf("clean texture binds/syncs:\nhave %d/%d\nwant 0/0", clean.binds, clean.syncs)
	}

	// Once synced the texture is clean; the next frame must not re-upload.
	if err := o.Sync(renderData); err != nil {
		t.Fatalf("Sync #2: %v", err)
	}
	if dirty.syncs != 1 {
		t.Fatalf("texture syncs after second frame:\nhave %d\nwant 1", dirty.syncs)
	}
}

// TestOrchestratorRefreshesUniforms verifies Sync runs the per-frame Update
// hook of every registered uniform set and of every valid DrawCall's
// uniform list.
func TestOrchestratorRefreshesUniforms(t *testing.T) {
	o := New(newTestUpdater(), &fakeTarget{})
	stageID := o.RegisterDrawStage(&recordingStage{})

	setCalls := 0
	o.RegisterUniformSet([]common.UniformBinding{{
		Name:   "time",
		Update: func() []byte { setCalls++; return []byte{byte(setCalls)} },
	}})

	callCalls := 0
	layout := newTestLayout(4096, false)
	renderData := ecs.NewMapComponentList[*renderdata.RenderData]()
	renderData.Set(1, &renderdata.RenderData{
		Layout:   layout,
		Geometry: geomWithBytes(3, 0),
		Enabled:  true,
		UID:      1,
		Stages:   []int{stageID},
		Uniforms: common.UniformList{{
			Name:   "model",
			Update: func() []byte { callCalls++; return []byte{byte(callCalls)} },
		}},
	})

	if err := o.Update(renderData); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := o.Sync(renderData); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if setCalls != 1 {
		t.Fatalf("uniform set Update calls:\nhave %d\nwant 1", setCalls)
	}
	if callCalls != 1 {
		t.Fatalf("DrawCall uniform Update calls:\nhave %d\nwant 1", callCalls)
	}
}
