package orchestrator

import (
	"github.com/darian-voss/batchrender/common"
	"github.com/darian-voss/batchrender/gpuapi"
)

// newShaderList creates the shader resource list. onAdd/onRemove drive
// GLInit/GLCleanUp — shaders are the one resource kind every draw stage
// binds directly, so their GPU lifetime is tied to registration.
func newShaderList() *resourceList[gpuapi.ShaderProgram] {
	return newResourceList[gpuapi.ShaderProgram](nil)
}

func syncShaders(l *resourceList[gpuapi.ShaderProgram]) error {
	var firstErr error
	l.Sync(
		func(id int, v gpuapi.ShaderProgram) {
			if v != nil {
				v.GLCleanUp()
			}
		},
		func(id int, v gpuapi.ShaderProgram) {
			if v == nil {
				return
			}
			if err := v.GLInit(); err != nil && firstErr == nil {
				firstErr = err
			}
		},
	)
	return firstErr
}

// newStateSetList creates a depth/blend/stencil resource list. Raster
// configs are merely stored and bound — they carry no GL lifecycle of
// their own, so onAdd/onRemove are left nil.
func newStateSetList() *resourceList[gpuapi.StateSet] {
	return newResourceList[gpuapi.StateSet](nil)
}

// newTextureSetList creates the texture-set resource list. A "set" is a
// slice of textures bound together at one sort-key texture-field slot;
// onAdd/onRemove fan GLInit/GLCleanUp out over every texture in the set.
func newTextureSetList() *resourceList[[]gpuapi.Texture2D] {
	return newResourceList[[]gpuapi.Texture2D](nil)
}

func syncTextures(l *resourceList[[]gpuapi.Texture2D]) error {
	var firstErr error
	l.Sync(
		func(id int, set []gpuapi.Texture2D) {
			for _, t := range set {
				if t != nil {
					t.GLCleanUp()
				}
			}
		},
		func(id int, set []gpuapi.Texture2D) {
			for _, t := range set {
				if t == nil {
					continue
				}
				if err := t.GLInit(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		},
	)
	return firstErr
}

// newUniformSetList creates the uniform-set resource list. Uniform sets are
// plain CPU-side data, no GL lifecycle.
func newUniformSetList() *resourceList[[]common.UniformBinding] {
	return newResourceList[[]common.UniformBinding](nil)
}
