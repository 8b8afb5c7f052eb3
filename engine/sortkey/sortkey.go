// Package sortkey implements the packed 64-bit draw-call sort key. Its
// field order is chosen so that a stable sort by the raw key clusters draw
// calls by decreasing state-change cost: shader first, then the raster
// configs (depth, blend, stencil), then resource bindings (texture set,
// uniform set), then primitive topology.
package sortkey

// Primitive is the small enum index into a fixed primitive topology table,
// stored in the key's primitive field.
type Primitive uint8

const (
	Triangles Primitive = iota
	TriangleFan
	TriangleStrip
	Lines
	LineLoop
	LineStrip
	Points
)

// Field widths, MSB to LSB: shader[5] | depth[4] | blend[6] | stencil[4] |
// texture[9] | uniform[6] | primitive[3] | reserved[27].
const (
	shaderBits    = 5
	depthBits     = 4
	blendBits     = 6
	stencilBits   = 4
	textureBits   = 9
	uniformBits   = 6
	primitiveBits = 3
	reservedBits  = 27
)

const (
	primitiveShift = reservedBits
	uniformShift   = primitiveShift + primitiveBits
	textureShift   = uniformShift + uniformBits
	stencilShift   = textureShift + textureBits
	blendShift     = stencilShift + stencilBits
	depthShift     = blendShift + blendBits
	shaderShift    = depthShift + depthBits
)

const (
	shaderMask    = uint64(1)<<shaderBits - 1
	depthMask     = uint64(1)<<depthBits - 1
	blendMask     = uint64(1)<<blendBits - 1
	stencilMask   = uint64(1)<<stencilBits - 1
	textureMask   = uint64(1)<<textureBits - 1
	uniformMask   = uint64(1)<<uniformBits - 1
	primitiveMask = uint64(1)<<primitiveBits - 1
)

// Key is a packed 64-bit draw-call sort key. The zero value has every field
// set to 0 (shader/depth/.../primitive all pointing at their respective
// sentinel slot 0, primitive Triangles).
type Key uint64

func setField(k Key, shift int, mask, v uint64) Key {
	v &= mask
	cleared := uint64(k) &^ (mask << shift)
	return Key(cleared | (v << shift))
}

func getField(k Key, shift int, mask uint64) uint64 {
	return (uint64(k) >> shift) & mask
}

// SetShader sets the shader resource-handle field. v is truncated to 5 bits.
func (k Key) SetShader(v uint32) Key { return setField(k, shaderShift, shaderMask, uint64(v)) }

// Shader returns the shader resource-handle field.
func (k Key) Shader() uint32 { return uint32(getField(k, shaderShift, shaderMask)) }

// SetDepth sets the depth-config resource-handle field. v is truncated to 4 bits.
func (k Key) SetDepth(v uint32) Key { return setField(k, depthShift, depthMask, uint64(v)) }

// Depth returns the depth-config resource-handle field.
func (k Key) Depth() uint32 { return uint32(getField(k, depthShift, depthMask)) }

// SetBlend sets the blend-config resource-handle field. v is truncated to 6 bits.
func (k Key) SetBlend(v uint32) Key { return setField(k, blendShift, blendMask, uint64(v)) }

// Blend returns the blend-config resource-handle field.
func (k Key) Blend() uint32 { return uint32(getField(k, blendShift, blendMask)) }

// SetStencil sets the stencil-config resource-handle field. v is truncated to 4 bits.
func (k Key) SetStencil(v uint32) Key { return setField(k, stencilShift, stencilMask, uint64(v)) }

// Stencil returns the stencil-config resource-handle field.
func (k Key) Stencil() uint32 { return uint32(getField(k, stencilShift, stencilMask)) }

// SetTexture sets the texture-set resource-handle field. v is truncated to 9 bits.
func (k Key) SetTexture(v uint32) Key { return setField(k, textureShift, textureMask, uint64(v)) }

// Texture returns the texture-set resource-handle field.
func (k Key) Texture() uint32 { return uint32(getField(k, textureShift, textureMask)) }

// SetUniform sets the uniform-set resource-handle field. v is truncated to 6 bits.
func (k Key) SetUniform(v uint32) Key { return setField(k, uniformShift, uniformMask, uint64(v)) }

// Uniform returns the uniform-set resource-handle field.
func (k Key) Uniform() uint32 { return uint32(getField(k, uniformShift, uniformMask)) }

// SetPrimitive sets the primitive-topology field.
func (k Key) SetPrimitive(v Primitive) Key {
	return setField(k, primitiveShift, primitiveMask, uint64(v))
}

// Primitive returns the primitive-topology field.
func (k Key) Primitive() Primitive {
	return Primitive(getField(k, primitiveShift, primitiveMask))
}

// Less reports whether k orders before other under the stable total
// ordering on the raw packed 64-bit unsigned value — field order in the
// layout IS the comparison order, so this is just an unsigned integer
// comparison.
func (k Key) Less(other Key) bool {
	return uint64(k) < uint64(other)
}
