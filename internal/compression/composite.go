package compression

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/compress/internal/logfields"
	"github.com/google/uuid"
)

// ProgressRecorder observes composite scheduler transitions.
// internal/metrics provides a Prometheus implementation.
type ProgressRecorder interface {
	RecordStep(state State)
	RecordEpoch(state State)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// RecordStep does nothing.
func (NoopRecorder) RecordStep(State) {}

// RecordEpoch does nothing.
func (NoopRecorder) RecordEpoch(State) {}

// CompositeStatistics maps algorithm name to that algorithm's statistics.
type CompositeStatistics map[string]Statistics

// CompositeController aggregates algorithm controllers behind the single
// controller handed to the training pipeline.
//
// Controllers are kept in declaration order, which fixes loss summation
// order and scheduler fan-out order. The composite only invokes the
// declared Controller interface of its members.
type CompositeController struct {
	id          string
	controllers []Controller
	scheduler   *CompositeScheduler
	distributed bool
	logger      *slog.Logger
}

// NewCompositeController creates a composite over controllers.
// Names must be unique; a nil logger discards output and a nil recorder
// records nothing.
func NewCompositeController(logger *slog.Logger, recorder ProgressRecorder, controllers ...Controller) (*CompositeController, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = NoopRecorder{}
	}

	seen := make(map[string]bool, len(controllers))
	for i, c := range controllers {
		if c == nil {
			return nil, fmt.Errorf("controller %d is nil", i)
		}
		if seen[c.Name()] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAlgorithm, c.Name())
		}
		seen[c.Name()] = true
	}

	id := uuid.NewString()
	logger = logger.With(logfields.ControllerID(id))
	owned := append([]Controller(nil), controllers...)

	return &CompositeController{
		id:          id,
		controllers: owned,
		scheduler:   newCompositeScheduler(owned, recorder, logger),
		logger:      logger,
	}, nil
}

// ID returns a unique identifier for this training run's controller.
func (c *CompositeController) ID() string {
	return c.id
}

// Name returns "composite".
func (c *CompositeController) Name() string {
	return "composite"
}

// Controllers returns the algorithm controllers in declaration order.
func (c *CompositeController) Controllers() []Controller {
	return append([]Controller(nil), c.controllers...)
}

// Controller returns the controller of the named algorithm.
func (c *CompositeController) Controller(name string) (Controller, bool) {
	for _, ctrl := range c.controllers {
		if ctrl.Name() == name {
			return ctrl, true
		}
	}
	return nil, false
}

// Loss sums every algorithm's loss in declaration order.
func (c *CompositeController) Loss() float64 {
	var total float64
	for _, ctrl := range c.controllers {
		total += ctrl.Loss()
	}
	return total
}

// Statistics returns algorithm name -> statistics.
func (c *CompositeController) Statistics() CompositeStatistics {
	out := make(CompositeStatistics, len(c.controllers))
	for _, ctrl := range c.controllers {
		out[ctrl.Name()] = ctrl.Statistics()
	}
	return out
}

// Distributed adapts every algorithm for data-parallel replication, in
// declaration order.
//
// The composite accepts a single call; a second call is an
// InvalidStateError regardless of the first outcome. On failure the
// algorithms converted so far stay converted and the returned
// DistributedSetupError names the failing one.
func (c *CompositeController) Distributed() error {
	if c.distributed {
		return &InvalidStateError{Op: "distributed", Reason: "already called on this controller"}
	}
	c.distributed = true

	converted := make([]string, 0, len(c.controllers))
	for _, ctrl := range c.controllers {
		if err := ctrl.Distributed(); err != nil {
			c.logger.Error("Distributed setup failed",
				logfields.Algorithm(ctrl.Name()),
				logfields.Algorithms(converted),
				logfields.Error(err))
			return &DistributedSetupError{Algorithm: ctrl.Name(), Converted: converted, Err: err}
		}
		converted = append(converted, ctrl.Name())
	}

	c.logger.Info("Distributed setup complete", logfields.Algorithms(converted))
	return nil
}

// Scheduler returns the composite scheduler façade.
func (c *CompositeController) Scheduler() Scheduler {
	return c.scheduler
}

// CompositeScheduler returns the concrete composite scheduler.
func (c *CompositeController) CompositeScheduler() *CompositeScheduler {
	return c.scheduler
}

// ScheduleSnapshot is the persisted position of a composite scheduler.
type ScheduleSnapshot struct {
	Composite  State            `json:"composite" yaml:"composite"`
	Algorithms map[string]State `json:"algorithms" yaml:"algorithms"`
}

// Restorer is implemented by schedulers that can resume from a saved State.
type Restorer interface {
	Restore(st State) error
}

type namedScheduler struct {
	name      string
	scheduler Scheduler
}

// CompositeScheduler fans Step and EpochStep out to every algorithm
// scheduler in declaration order. Its own State counts global steps and
// epochs.
type CompositeScheduler struct {
	schedulers []namedScheduler
	state      State
	recorder   ProgressRecorder
	logger     *slog.Logger
}

func newCompositeScheduler(controllers []Controller, recorder ProgressRecorder, logger *slog.Logger) *CompositeScheduler {
	s := &CompositeScheduler{recorder: recorder, logger: logger}
	for _, c := range controllers {
		s.schedulers = append(s.schedulers, namedScheduler{name: c.Name(), scheduler: c.Scheduler()})
	}
	return s
}

// Step advances every algorithm scheduler by one step.
func (s *CompositeScheduler) Step() {
	for _, ns := range s.schedulers {
		ns.scheduler.Step()
	}
	s.state.Step++
	s.recorder.RecordStep(s.state)
}

// EpochStep advances every algorithm scheduler by one epoch.
func (s *CompositeScheduler) EpochStep() {
	for _, ns := range s.schedulers {
		ns.scheduler.EpochStep()
	}
	s.state.Epoch++
	s.recorder.RecordEpoch(s.state)
	s.logger.Debug("Epoch advanced", logfields.Epoch(s.state.Epoch), logfields.Step(s.state.Step))
}

// State returns the composite's global step and epoch.
func (s *CompositeScheduler) State() State {
	return s.state
}

// Hyperparameters returns every algorithm's values keyed "<algorithm>.<name>".
func (s *CompositeScheduler) Hyperparameters() Hyperparameters {
	out := Hyperparameters{}
	for _, ns := range s.schedulers {
		for k, v := range ns.scheduler.Hyperparameters() {
			out[ns.name+"."+k] = v
		}
	}
	return out
}

// Scheduler returns the named algorithm's scheduler.
func (s *CompositeScheduler) Scheduler(name string) (Scheduler, bool) {
	for _, ns := range s.schedulers {
		if ns.name == name {
			return ns.scheduler, true
		}
	}
	return nil, false
}

// Snapshot captures the composite and per-algorithm positions.
func (s *CompositeScheduler) Snapshot() ScheduleSnapshot {
	snap := ScheduleSnapshot{Composite: s.state, Algorithms: make(map[string]State, len(s.schedulers))}
	for _, ns := range s.schedulers {
		snap.Algorithms[ns.name] = ns.scheduler.State()
	}
	return snap
}

// Restore moves every scheduler to the positions in snap. Every algorithm
// must be present in snap and its scheduler must implement Restorer; this
// is checked before any scheduler moves.
func (s *CompositeScheduler) Restore(snap ScheduleSnapshot) error {
	restorers := make([]Restorer, len(s.schedulers))
	for i, ns := range s.schedulers {
		if _, ok := snap.Algorithms[ns.name]; !ok {
			return fmt.Errorf("restore: no scheduler state for algorithm %q", ns.name)
		}
		r, ok := ns.scheduler.(Restorer)
		if !ok {
			return fmt.Errorf("restore: scheduler of algorithm %q cannot be restored", ns.name)
		}
		restorers[i] = r
	}
	for i, ns := range s.schedulers {
		if err := restorers[i].Restore(snap.Algorithms[ns.name]); err != nil {
			return fmt.Errorf("restore %q: %w", ns.name, err)
		}
	}
	s.state = snap.Composite
	return nil
}
