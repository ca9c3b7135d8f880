// Package async provides a small named-task worker pool used to fan out the
// independent report queries of a historical job (demographic breakdowns,
// revenue) and collect their results by name.
package async

import (
	"context"
	"sync"
)

// Task is one named unit of work.
type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

// Result carries a task's outcome, keyed by the task name.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool runs batches of tasks over a fixed number of workers.
type Pool struct {
	workerCount int
}

// NewPool creates a pool with workerCount workers per Execute call.
func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs all tasks and returns their results keyed by task name. It
// returns when every started task has settled or the context is done;
// tasks not yet finished when the context is canceled are absent from the
// result map, never half-populated.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	taskCh := make(chan Task)
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				data, err := task.Execute()
				resultCh <- Result{Name: task.Name, Data: data, Err: err}
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make(map[string]Result, len(tasks))
	for result := range resultCh {
		results[result.Name] = result
	}
	return results
}
