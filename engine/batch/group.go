package batch

import "github.com/darian-voss/batchrender/ecs"

// group is the engine-internal BatchGroup bookkeeping for one registered
// Batch. uid is a generation marker detecting an in-flight multi-frame task
// targeting a group that was removed and whose slot was reused by a new
// RegisterBatch before the task finished.
type group struct {
	batch *Batch
	uid   uint64

	rebuild bool

	listEntsPrev []ecs.Entity
	listEntsCurr []ecs.Entity
	listEntsRem  []ecs.Entity
	listEntsUpd  []ecs.Entity

	// mergedEntityIDs are the entity ids, one per produced merged geometry,
	// this group currently owns. A group may own several when its contents
	// exceed one block.
	mergedEntityIDs []ecs.Entity
}

func newGroup(b *Batch, uid uint64) *group {
	return &group{batch: b, uid: uid}
}

// resetFrame clears the transient per-frame lists, preserving listEntsPrev.
func (g *group) resetFrame() {
	g.rebuild = false
	g.listEntsCurr = g.listEntsCurr[:0]
	g.listEntsRem = g.listEntsRem[:0]
	g.listEntsUpd = g.listEntsUpd[:0]
}
