package taskpool

import "testing"

func TestFuncTaskLifecycle(t *testing.T) {
	ran := false
	task := NewFuncTask(func() { ran = true })

	if task.IsStarted() || task.IsFinished() {
		t.Fatalf("fresh task state:\nhave started=%v finished=%v\nwant false false", task.IsStarted(), task.IsFinished())
	}

	task.Process()

	if !ran {
		t.Fatal("Process did not run the wrapped closure")
	}
	if !task.IsStarted() || !task.IsFinished() {
		t.Fatalf("processed task state:\nhave started=%v finished=%v\nwant true true", task.IsStarted(), task.IsFinished())
	}

	// Wait on an already-finished task must return immediately.
	task.Wait()
}

func TestFuncTaskCancelIsNoOp(t *testing.T) {
	task := NewFuncTask(func() {})
	task.Cancel()
	if task.IsStarted() || task.IsFinished() {
		t.Fatal("Cancel must not alter task state")
	}
	task.Process()
	if !task.IsFinished() {
		t.Fatal("a cancelled task still runs to completion when processed")
	}
}

func TestGoroutinePoolRunsSubmittedTasks(t *testing.T) {
	pool := NewGoroutinePool(1, 4)
	defer pool.Close()

	results := make([]int, 3)
	tasks := make([]*FuncTask, 3)
	for i := range tasks {
		i := i
		tasks[i] = NewFuncTask(func() { results[i] = i + 1 })
		pool.PushBack(tasks[i])
	}
	for _, task := range tasks {
		task.Wait()
	}

	for i, r := range results {
		if r != i+1 {
			t.Fatalf("task %d result:\nhave %d\nwant %d", i, r, i+1)
		}
	}
}
