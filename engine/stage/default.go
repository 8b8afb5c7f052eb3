package stage

import (
	"sort"

	"github.com/darian-voss/batchrender/ecs"
	"github.com/darian-voss/batchrender/engine/drawcall"
	"github.com/darian-voss/batchrender/engine/sortkey"
	"github.com/darian-voss/batchrender/gpuapi"
)

// DefaultStage is the reference draw-stage behaviour: clear, stable-sort
// both id lists by DrawCall sort key, walk transparent then opaque,
// minimize state changes by comparing each draw call's key fields against
// the previous one (shader, then depth/blend/stencil, then texture set,
// then uniform set), and dispatch indexed or non-indexed draws.
type DefaultStage struct {
	textureUnit func(index int) int // binding unit for a texture's position within its set
}

var _ Stage = (*DefaultStage)(nil)

// NewDefaultStage creates a DefaultStage. textureUnit maps a texture's
// position within its texture set to the GPU binding unit it is bound at;
// if nil, the position is used directly as the unit.
func NewDefaultStage(textureUnit func(index int) int) *DefaultStage {
	if textureUnit == nil {
		textureUnit = func(s int) int { return s }
	}
	return &DefaultStage{textureUnit: textureUnit}
}

func (s *DefaultStage) Render(p DrawParams) Stats {
	p.Target.Clear()

	var stats Stats
	prev := sortkey.Key(0)
	havePrev := false
	var active gpuapi.ShaderProgram

	sortByKey := func(ids []ecs.Entity) {
		sort.SliceStable(ids, func(i, j int) bool {
			di, oki := p.DrawCalls(ids[i])
			dj, okj := p.DrawCalls(ids[j])
			if !oki || !okj {
				return false
			}
			return di.SortKey.Less(dj.SortKey)
		})
	}
	sortByKey(p.TransparentIDs)
	sortByKey(p.OpaqueIDs)
	order := append(append([]ecs.Entity(nil), p.TransparentIDs...), p.OpaqueIDs...)

	for _, ent := range order {
		dc, ok := p.DrawCalls(ent)
		if !ok || !dc.Valid {
			continue
		}
		key := dc.SortKey

		if !havePrev || key.Shader() != prev.Shader() {
			active = s.bindShader(p, key.Shader())
		}
		if !havePrev || key.Depth() != prev.Depth() {
			s.bindStateSet(p.Depth, key.Depth())
		}
		if !havePrev || key.Blend() != prev.Blend() {
			s.bindStateSet(p.Blend, key.Blend())
		}
		if !havePrev || key.Stencil() != prev.Stencil() {
			s.bindStateSet(p.Stencil, key.Stencil())
		}
		if !havePrev || key.Texture() != prev.Texture() {
			s.bindTextureSet(p, key.Texture())
		}
		if !havePrev || key.Uniform() != prev.Uniform() {
			s.bindUniformSet(p, key)
		}

		// Per-call uniform overrides ride on top of the keyed uniform set,
		// bound fresh for every draw since they differ per entity.
		if active != nil && len(dc.Uniforms) > 0 {
			dc.Uniforms.Sync(active.BindUniform)
		}

		s.issueDraw(p, dc, key.Primitive())

		stats.DrawCalls++
		stats.Vertices += vertexCount(dc)
		prev = key
		havePrev = true
	}

	return stats
}

// vertexCount derives the number of vertices a draw call dispatches: the
// 16-bit index count for indexed calls, otherwise stream 0's byte size over
// its per-vertex stride.
func vertexCount(dc *drawcall.DrawCall) int {
	if dc.Index.Valid {
		return int(dc.Index.SizeBytes / 2)
	}
	if len(dc.Vertex) == 0 || dc.Vertex[0].VertexSize == 0 {
		return 0
	}
	return int(dc.Vertex[0].SizeBytes / dc.Vertex[0].VertexSize)
}

func (s *DefaultStage) bindShader(p DrawParams, slot uint32) gpuapi.ShaderProgram {
	if int(slot) >= len(p.Shaders) {
		return nil
	}
	sh := p.Shaders[slot]
	if sh == nil {
		return nil // sentinel slot 0, no-op
	}
	sh.GLBind()
	return sh
}

func (s *DefaultStage) bindStateSet(sets []gpuapi.StateSet, slot uint32) {
	if slot == 0 || int(slot) >= len(sets) {
		return // sentinel: no-op state-set
	}
	if ss := sets[slot]; ss != nil {
		ss.GLBind()
	}
}

func (s *DefaultStage) bindTextureSet(p DrawParams, slot uint32) {
	if int(slot) >= len(p.Textures) {
		return
	}
	for unit, tex := range p.Textures[slot] {
		if tex == nil {
			continue
		}
		tex.BindUnit(s.textureUnit(unit))
	}
}

func (s *DefaultStage) bindUniformSet(p DrawParams, key sortkey.Key) {
	slot := key.Uniform()
	if int(slot) >= len(p.Uniforms) {
		return
	}
	shaderSlot := key.Shader()
	if int(shaderSlot) >= len(p.Shaders) {
		return // no-op for an invalid or freed resource id
	}
	shader := p.Shaders[shaderSlot]
	if shader == nil {
		return
	}
	for _, b := range p.Uniforms[slot] {
		shader.BindUniform(b.Name, b.Data)
	}
}

// issueDraw binds each vertex stream (and the index buffer, if present)
// before dispatching the draw at its recorded range.
func (s *DefaultStage) issueDraw(p DrawParams, dc *drawcall.DrawCall, primitive sortkey.Primitive) {
	for i, vr := range dc.Vertex {
		if vr.Buffer != nil {
			p.Target.BindVertexStream(i, vr.Buffer)
		}
	}
	if dc.Index.Valid {
		if dc.Index.Buffer != nil {
			p.Target.BindIndexBuffer(dc.Index.Buffer)
		}
		p.Target.DrawElements(primitive, dc.Index.StartByte, dc.Index.SizeBytes)
		return
	}
	if len(dc.Vertex) == 0 {
		return
	}
	v0 := dc.Vertex[0]
	p.Target.DrawArrays(primitive, v0.VertexSize, v0.StartByte, v0.SizeBytes)
}

func (s *DefaultStage) Reset() {}
