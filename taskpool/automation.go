package taskpool

import (
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// AutomationPool adapts worker.DynamicWorkerPool to the Pool interface,
// submitting each Task as a worker.Task Do closure. Completion is still
// tracked by the submitted Task itself — IsFinished/Wait work unchanged —
// so the batch engine's reclaim-and-poll cycle does not care which Pool
// implementation runs it.
type AutomationPool struct {
	pool   worker.DynamicWorkerPool
	nextID int
}

var _ Pool = (*AutomationPool)(nil)

// NewAutomationPool starts a dynamic worker pool with the given worker
// count, queue capacity, and idle timeout before a surplus worker is
// retired. The Batch Engine needs exactly one worker; a larger count is
// only useful to applications sharing the pool with their own tasks.
func NewAutomationPool(workers, queueSize int, idleTimeout time.Duration) *AutomationPool {
	return &AutomationPool{pool: worker.NewDynamicWorkerPool(workers, queueSize, idleTimeout)}
}

// PushBack submits t to the underlying worker pool. Not safe for concurrent
// use; the Batch Engine only ever enqueues from the update thread.
func (p *AutomationPool) PushBack(t Task) {
	p.nextID++
	p.pool.SubmitTask(worker.Task{
		ID: p.nextID,
		Do: func() (any, error) {
			t.Process()
			return nil, nil
		},
	})
}
