package orchestrator

import (
	"fmt"
	"sort"

	"github.com/darian-voss/batchrender/engine/stage"
)

// stageGraph is the draw-stage graph: nodes are user-registered draw
// stages; edges encode "A must run before B". It mirrors the same
// recycle-index-list discipline as any other managed resource kind, plus
// an edge set materialised at sync time into a topological order with the
// sentinel slot 0 removed.
type stageGraph struct {
	list *resourceList[stage.Stage]
	deps map[int]map[int]bool // from -> set of to

	order []int
}

func newStageGraph() *stageGraph {
	return &stageGraph{
		list: newResourceList[stage.Stage](nil),
		deps: make(map[int]map[int]bool),
	}
}

// Register reserves a slot for stg and returns its id.
func (g *stageGraph) Register(stg stage.Stage) int {
	return g.list.Register(stg)
}

// Remove removes a draw stage and every edge touching it.
func (g *stageGraph) Remove(id int) {
	g.list.Remove(id)
	delete(g.deps, id)
	for from := range g.deps {
		delete(g.deps[from], id)
	}
}

// AddDependency records that from must run before to.
func (g *stageGraph) AddDependency(from, to int) {
	if g.deps[from] == nil {
		g.deps[from] = make(map[int]bool)
	}
	g.deps[from][to] = true
}

// RemoveDependency removes a previously added from-before-to edge.
func (g *stageGraph) RemoveDependency(from, to int) {
	if g.deps[from] != nil {
		delete(g.deps[from], to)
	}
}

// Sync syncs the underlying stage list (no GL lifecycle for stages
// themselves) and rematerialises the topological order over currently
// valid stage ids, sentinel slot 0 excluded.
func (g *stageGraph) Sync() error {
	g.list.Sync(nil, nil)

	ids := make([]int, 0, len(g.list.sync)-1)
	for id := 1; id < len(g.list.sync); id++ {
		if g.list.sync[id] != nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	indeg := make(map[int]int, len(ids))
	valid := make(map[int]bool, len(ids))
	for _, id := range ids {
		indeg[id] = 0
		valid[id] = true
	}
	for from, tos := range g.deps {
		if !valid[from] {
			continue
		}
		for to := range tos {
			if valid[to] {
				indeg[to]++
			}
		}
	}

	var queue []int
	for _, id := range ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Ints(queue)

	var order []int
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		var next []int
		for to := range g.deps[id] {
			if !valid[to] {
				continue
			}
			indeg[to]--
			if indeg[to] == 0 {
				next = append(next, to)
			}
		}
		sort.Ints(next)
		queue = append(queue, next...)
		sort.Ints(queue)
	}

	if len(order) != len(ids) {
		return fmt.Errorf("orchestrator: draw-stage dependency graph has a cycle")
	}

	g.order = order
	return nil
}

// Order returns the topological stage id order materialised by the last
// Sync.
func (g *stageGraph) Order() []int {
	return g.order
}

// Stage returns the stage at id.
func (g *stageGraph) Stage(id int) stage.Stage {
	return g.list.Get(id)
}

// Each calls fn for every currently registered stage (for Reset).
func (g *stageGraph) Each(fn func(id int, stg stage.Stage)) {
	for id := 1; id < len(g.list.sync); id++ {
		if s := g.list.sync[id]; s != nil {
			fn(id, s)
		}
	}
}
