// Package orchestrator implements the Render Pipeline Orchestrator: it owns
// the life cycle of GPU resources behind a double-buffered async/sync
// discipline so the update thread can mutate state while the render thread
// reads a stable snapshot, orders draw calls by packed sort key, and
// executes a topologically sorted graph of draw stages.
package orchestrator

import "github.com/darian-voss/batchrender/internal/recycle"

// resourceList is the dual-list discipline shared by every GPU resource
// kind the orchestrator manages: async (mutated by the update thread),
// add/rem (pending deltas), and sync (the dense, render-thread-only
// snapshot). onAdd/onRemove are the *only* place GL init/
// cleanup of a managed resource occurs.
type resourceList[T any] struct {
	async *recycle.List[T]
	add   []int
	rem   []int
	sync  []T

	sentinel T
}

func newResourceList[T any](sentinel T) *resourceList[T] {
	l := &resourceList[T]{async: recycle.New[T](), sentinel: sentinel}
	l.async.SetSentinel(sentinel)
	l.sync = append(l.sync, sentinel)
	return l
}

// Register reserves a slot in the async list, appends the payload to the
// pending-add list,
// and returns its id.
func (l *resourceList[T]) Register(v T) int {
	id := l.async.Add(v)
	l.add = append(l.add, id)
	return id
}

// Remove appends id to the pending-remove list.
func (l *resourceList[T]) Remove(id int) {
	l.async.Remove(id)
	l.rem = append(l.rem, id)
}

// Sync drains the pending removes (invoking onRemove for GL cleanup and
// putting the sentinel back in the removed slot), resizes the sync list to
// the current slot count, then applies the pending adds (invoking
// onAdd for GL init).
func (l *resourceList[T]) Sync(onRemove, onAdd func(id int, v T)) {
	for _, id := range l.rem {
		if id <= 0 || id >= len(l.sync) {
			continue
		}
		if onRemove != nil {
			onRemove(id, l.sync[id])
		}
		l.sync[id] = l.sentinel
	}
	l.rem = l.rem[:0]

	n := l.async.Len()
	for len(l.sync) < n {
		l.sync = append(l.sync, l.sentinel)
	}
	l.sync = l.sync[:n]

	for _, id := range l.add {
		v, _ := l.async.Get(id)
		l.sync[id] = v
		if onAdd != nil {
			onAdd(id, v)
		}
	}
	l.add = l.add[:0]
}

// Get returns the synced payload at id, the value read by the render
// thread. Out-of-range ids return the sentinel.
func (l *resourceList[T]) Get(id int) T {
	if id < 0 || id >= len(l.sync) {
		return l.sentinel
	}
	return l.sync[id]
}

// Snapshot returns the current dense sync array, for handing to a
// draw stage as a whole resource list.
func (l *resourceList[T]) Snapshot() []T {
	return l.sync
}

// Reset clears the async list back to just the sentinel slot 0, and
// truncates the sync list to match. Pending adds/removes are dropped. Does
// not
// invoke onRemove — the caller is expected to have already torn down GPU
// state via its own Reset pass before calling this.
func (l *resourceList[T]) Reset() {
	l.async.Reset()
	l.async.SetSentinel(l.sentinel)
	l.add = l.add[:0]
	l.rem = l.rem[:0]
	l.sync = l.sync[:1]
	l.sync[0] = l.sentinel
}
