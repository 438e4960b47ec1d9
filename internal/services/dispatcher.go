package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Societyforcis/SCIS-Backend/pkg/utils"
)

// Dispatcher runs best-effort work detached from the request that triggered it.
// Failures are logged, never returned to the caller.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
	base    context.Context
}

// NewDispatcher creates a Dispatcher. timeout bounds each job.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Dispatcher{timeout: timeout, base: context.Background()}
}

// Go schedules job. The job gets its own context so request cancellation
// does not abort delivery.
func (d *Dispatcher) Go(name string, job func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				utils.LogError(fmt.Errorf("panic: %v", p), "Dispatcher: job panicked", map[string]interface{}{"job": name})
			}
		}()

		ctx, cancel := context.WithTimeout(d.base, d.timeout)
		defer cancel()
		if err := job(ctx); err != nil {
			utils.LogError(err, "Dispatcher: background job failed", map[string]interface{}{"job": name})
		}
	}()
}

// Wait blocks until every scheduled job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
