package compression

import "sort"

// Statistics holds algorithm-specific metrics (e.g. "sparsity_rate").
type Statistics map[string]float64

// Keys returns the statistic names, sorted.
func (s Statistics) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Controller is the capability set every compression algorithm exposes
// to the training loop.
//
// Training-loop contract:
//   - Loss() every iteration, after the forward pass
//   - Scheduler().Step() every iteration
//   - Scheduler().EpochStep() at every epoch boundary
//   - Distributed() at most once, after replication and before the first step
type Controller interface {
	// Name returns the algorithm name as declared in the configuration.
	Name() string

	// Loss returns the algorithm's loss contribution for the current forward pass.
	Loss() float64

	// Statistics returns current metrics. It has no side effects.
	Statistics() Statistics

	// Distributed reconfigures the algorithm for data-parallel replication.
	// Repeated calls are no-ops; calling after training started is an
	// InvalidStateError.
	Distributed() error

	// Scheduler returns the algorithm's scheduler.
	Scheduler() Scheduler
}

// BaseController carries the bookkeeping shared by algorithm controllers.
// Embed it and implement Loss, Statistics and Distributed.
type BaseController struct {
	name        string
	scheduler   *BaseScheduler
	distributed bool
}

// NewBaseController creates a BaseController.
func NewBaseController(name string, scheduler *BaseScheduler) BaseController {
	return BaseController{name: name, scheduler: scheduler}
}

// Name returns the algorithm name.
func (c *BaseController) Name() string {
	return c.name
}

// Scheduler returns the algorithm's scheduler.
func (c *BaseController) Scheduler() Scheduler {
	return c.scheduler
}

// BaseScheduler returns the concrete scheduler.
func (c *BaseController) BaseScheduler() *BaseScheduler {
	return c.scheduler
}

// IsDistributed reports whether the distributed adaptation has been applied.
func (c *BaseController) IsDistributed() bool {
	return c.distributed
}

// RunDistributed applies convert exactly once, inside the legal window.
//
// A second call returns nil without invoking convert. A call after the
// scheduler has advanced returns an InvalidStateError. If convert fails
// the controller stays non-distributed.
func (c *BaseController) RunDistributed(convert func() error) error {
	if c.distributed {
		return nil
	}
	if c.scheduler != nil && c.scheduler.Started() {
		return &InvalidStateError{Op: "distributed", Reason: "training has already started"}
	}
	if convert != nil {
		if err := convert(); err != nil {
			return err
		}
	}
	c.distributed = true
	return nil
}
