package common

// UniformBinding is one named uniform value plus the raw bytes to upload
// for it. Name is resolved against a ShaderProgram's BindUniform.
type UniformBinding struct {
	Name string
	Data []byte

	// Update, when non-nil, recomputes Data once per frame. It is invoked
	// on the render thread during Sync, before any draw stage binds the
	// value — the hook for uniforms whose bytes change every frame
	// (camera matrices, time) without the owner re-registering them.
	Update func() []byte
}

// UniformList is the shared per-call uniform override set carried by a
// RenderData and copied onto its DrawCall. A nil/empty UniformList is the
// sentinel slot-0 "empty uniform set".
type UniformList []UniformBinding

// Sync calls bind for every binding in the list, in order — the Default draw
// stage's Render uses it to bind each DrawCall's per-call uniform list.
func (u UniformList) Sync(bind func(name string, data []byte)) {
	for _, b := range u {
		bind(b.Name, b.Data)
	}
}

// Refresh runs every binding's per-frame Update hook, replacing Data with
// its result. Called once per frame from the render thread's Sync for each
// registered uniform set and each valid DrawCall's uniform list.
func (u UniformList) Refresh() {
	for i := range u {
		if u[i].Update != nil {
			u[i].Data = u[i].Update()
		}
	}
}

// Clone returns a copy of u in a fresh backing slice, so bindings can be
// appended to or replaced in the copy without affecting u. Each binding's
// Data bytes and Update hook are shared with u, not copied.
func (u UniformList) Clone() UniformList {
	if len(u) == 0 {
		return nil
	}
	out := make(UniformList, len(u))
	copy(out, u)
	return out
}
