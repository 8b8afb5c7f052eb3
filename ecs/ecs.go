// Package ecs declares the abstract entity-component substrate this module
// consumes. The substrate itself — entity id allocation and component-list
// storage — is an external collaborator out of scope for this repository;
// this package fixes only the minimal shape the Batch Engine and Draw-Call
// Updater need in order to walk entities and read their components.
package ecs

// Entity is an opaque, stable identifier issued by the ECS substrate. Two
// categories exist in this module's data model: source entities supplied by
// the application, and merged entities synthesised by the Batch Engine. Zero
// is never a valid entity id.
type Entity uint64

// Valid reports whether e is a non-zero entity id.
func (e Entity) Valid() bool {
	return e != 0
}

// Allocator creates and destroys entities, yielding dense positive integer
// ids. The Batch Engine uses it to synthesise merged entities that own
// aggregated geometry; callers use it to create source entities.
type Allocator interface {
	// New allocates an entity id that is not currently live. An
	// implementation may hand back out an id previously released by
	// Destroy.
	New() Entity

	// Destroy releases an entity id for later reuse.
	Destroy(e Entity)
}

// ComponentList is a sparse, per-entity component store keyed by entity id.
// RenderData and BatchData are both held in a ComponentList by the
// application; the Batch Engine and Draw-Call Updater only ever read or
// write through this interface, never through a concrete storage type.
type ComponentList[T any] interface {
	// Get returns the component for e and whether it is present.
	Get(e Entity) (T, bool)

	// Set installs or replaces the component for e.
	Set(e Entity, v T)

	// Remove deletes the component for e, if present.
	Remove(e Entity)

	// Each calls fn once for every entity currently carrying this
	// component, in increasing entity-id order. The batch engine relies
	// on this ordering to keep its per-group entity lists sorted without
	// an extra sort pass.
	Each(fn func(e Entity, v T))
}
