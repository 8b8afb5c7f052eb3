package sortkey

import "testing"

// TestFieldRoundTrip checks, for each of the six resource-handle fields,
// set(v); get()==v across all legal values of that field's width. The
// primitive field is read back in TestFieldIsolation and
// TestSetFieldDoesNotAlterOthers.
func TestFieldRoundTrip(t *testing.T) {
	type fieldCase struct {
		name  string
		width int
		set   func(Key, uint32) Key
		get   func(Key) uint32
	}
	fields := []fieldCase{
		{"shader", shaderBits, Key.SetShader, Key.Shader},
		{"depth", depthBits, Key.SetDepth, Key.Depth},
		{"blend", blendBits, Key.SetBlend, Key.Blend},
		{"stencil", stencilBits, Key.SetStencil, Key.Stencil},
		{"texture", textureBits, Key.SetTexture, Key.Texture},
		{"uniform", uniformBits, Key.SetUniform, Key.Uniform},
	}

	for _, f := range fields {
		max := uint32(1)<<f.width - 1
		for v := uint32(0); v <= max; v++ {
			k := f.set(Key(0), v)
			if got := f.get(k); got != v {
				t.Fatalf("%s round-trip:\nhave %d\nwant %d", f.name, got, v)
			}
		}
	}
}

// TestSetFieldDoesNotAlterOthers checks re-setting one field leaves every
// other field untouched.
func TestSetFieldDoesNotAlterOthers(t *testing.T) {
	k := Key(0).
		SetShader(3).
		SetDepth(5).
		SetBlend(10).
		SetStencil(7).
		SetTexture(100).
		SetUniform(20).
		SetPrimitive(Lines)

	k = k.SetShader(30)

	if k.Shader() != 30 {
		t.Fatalf("Shader after re-set:\nhave %d\nwant 30", k.Shader())
	}
	if k.Depth() != 5 {
		t.Fatalf("Depth disturbed by SetShader:\nhave %d\nwant 5", k.Depth())
	}
	if k.Blend() != 10 {
		t.Fatalf("Blend disturbed by SetShader:\nhave %d\nwant 10", k.Blend())
	}
	if k.Stencil() != 7 {
		t.Fatalf("Stencil disturbed by SetShader:\nhave %d\nwant 7", k.Stencil())
	}
	if k.Texture() != 100 {
		t.Fatalf("Texture disturbed by SetShader:\nhave %d\nwant 100", k.Texture())
	}
	if k.Uniform() != 20 {
		t.Fatalf("Uniform disturbed by SetShader:\nhave %d\nwant 20", k.Uniform())
	}
	if k.Primitive() != Lines {
		t.Fatalf("Primitive disturbed by SetShader:\nhave %v\nwant %v", k.Primitive(), Lines)
	}
}

// TestFieldIsolation sets every field to a distinct value, reads all seven
// back, then clears them all to zero.
func TestFieldIsolation(t *testing.T) {
	k := Key(0).
		SetShader(2).
		SetDepth(3).
		SetBlend(4).
		SetStencil(5).
		SetTexture(6).
		SetUniform(7).
		SetPrimitive(Lines)

	cases := []struct {
		name string
		have uint32
		want uint32
	}{
		{"shader", k.Shader(), 2},
		{"depth", k.Depth(), 3},
		{"blend", k.Blend(), 4},
		{"stencil", k.Stencil(), 5},
		{"texture", k.Texture(), 6},
		{"uniform", k.Uniform(), 7},
	}
	for _, c := range cases {
		if c.have != c.want {
			t.Fatalf("%s:\nhave %d\nwant %d", c.name, c.have, c.want)
		}
	}
	if k.Primitive() != Lines {
		t.Fatalf("primitive:\nhave %v\nwant %v", k.Primitive(), Lines)
	}

	zero := Key(0).
		SetShader(0).SetDepth(0).SetBlend(0).SetStencil(0).
		SetTexture(0).SetUniform(0).SetPrimitive(Triangles)
	if zero != 0 {
		t.Fatalf("clearing all fields to zero:\nhave %d\nwant 0", uint64(zero))
	}
}

// TestKeyOrderingMatchesRawUint64 checks Less agrees with comparing the
// packed representation as a raw unsigned integer.
func TestKeyOrderingMatchesRawUint64(t *testing.T) {
	a := Key(0).SetShader(1)
	b := Key(0).SetShader(2)
	if a.Less(b) != (uint64(a) < uint64(b)) {
		t.Fatalf("Less does not match raw uint64 comparison: a=%d b=%d", uint64(a), uint64(b))
	}
	if b.Less(a) != (uint64(b) < uint64(a)) {
		t.Fatalf("Less does not match raw uint64 comparison (reversed): a=%d b=%d", uint64(a), uint64(b))
	}
}

// TestFieldOrderClustersByCost spot-checks that higher-significance fields
// dominate ordering — e.g. a higher shader index always sorts after a
// lower one regardless of every other field.
func TestFieldOrderClustersByCost(t *testing.T) {
	low := Key(0).SetShader(1).SetUniform(31).SetTexture(511)
	high := Key(0).SetShader(2).SetUniform(0).SetTexture(0)
	if !low.Less(high) {
		t.Fatalf("shader field should dominate ordering: low=%d high=%d", uint64(low), uint64(high))
	}
}
