package compression

import (
	"fmt"
	"sort"
)

// State is a scheduler's position in training.
type State struct {
	Step  int `json:"step" yaml:"step"`
	Epoch int `json:"epoch" yaml:"epoch"`
}

// Hyperparameters maps hyperparameter names to values.
type Hyperparameters map[string]float64

// Clone returns a copy of h.
func (h Hyperparameters) Clone() Hyperparameters {
	out := make(Hyperparameters, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Keys returns the hyperparameter names, sorted.
func (h Hyperparameters) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scheduler maps training progress to algorithm hyperparameters.
type Scheduler interface {
	// Step advances the step counter and recomputes hyperparameters.
	Step()

	// EpochStep advances the epoch counter and recomputes hyperparameters.
	EpochStep()

	// State returns the current position.
	State() State

	// Hyperparameters returns a copy of the current values.
	Hyperparameters() Hyperparameters
}

// StepPolicy declares what happens to the step counter at an epoch boundary.
type StepPolicy int

const (
	// StepContinue keeps counting steps across epochs (global step).
	StepContinue StepPolicy = iota

	// StepReset restarts the step counter at every epoch (intra-epoch step).
	StepReset
)

// String returns the policy name.
func (p StepPolicy) String() string {
	switch p {
	case StepContinue:
		return "continue"
	case StepReset:
		return "reset"
	default:
		return fmt.Sprintf("StepPolicy(%d)", int(p))
	}
}

// ParseStepPolicy parses "continue" or "reset".
func ParseStepPolicy(s string) (StepPolicy, error) {
	switch s {
	case "", "continue":
		return StepContinue, nil
	case "reset":
		return StepReset, nil
	default:
		return 0, fmt.Errorf("unknown step policy %q", s)
	}
}

// BaseScheduler is the scheduler state machine shared by all algorithms.
//
// Hyperparameters are always schedule.Evaluate(State()), so advancing the
// machine is equivalent to evaluating the schedule in closed form. After
// every transition the update callback receives the fresh values, which is
// how controllers apply them (e.g. recompute masks).
type BaseScheduler struct {
	state    State
	started  bool
	policy   StepPolicy
	schedule Schedule
	params   Hyperparameters
	onUpdate func(Hyperparameters)
}

// NewBaseScheduler creates a scheduler at step 0, epoch 0 and invokes
// onUpdate (if non-nil) with the initial hyperparameters.
func NewBaseScheduler(schedule Schedule, policy StepPolicy, onUpdate func(Hyperparameters)) *BaseScheduler {
	if schedule == nil {
		schedule = Constant(nil)
	}
	s := &BaseScheduler{
		policy:   policy,
		schedule: schedule,
		onUpdate: onUpdate,
	}
	s.recompute()
	return s
}

// Step advances the step counter.
func (s *BaseScheduler) Step() {
	s.started = true
	s.state.Step++
	s.recompute()
}

// EpochStep advances the epoch counter; under StepReset the step counter
// returns to 0.
func (s *BaseScheduler) EpochStep() {
	s.started = true
	s.state.Epoch++
	if s.policy == StepReset {
		s.state.Step = 0
	}
	s.recompute()
}

// State returns the current position.
func (s *BaseScheduler) State() State {
	return s.state
}

// Hyperparameters returns a copy of the current values.
func (s *BaseScheduler) Hyperparameters() Hyperparameters {
	return s.params.Clone()
}

// Value returns one hyperparameter, or 0 if the schedule does not define it.
func (s *BaseScheduler) Value(key string) float64 {
	return s.params[key]
}

// Policy returns the declared step policy.
func (s *BaseScheduler) Policy() StepPolicy {
	return s.policy
}

// Started reports whether Step or EpochStep has been called in this
// process. Restore does not count as a step.
func (s *BaseScheduler) Started() bool {
	return s.started
}

// Restore moves the scheduler to st, e.g. when resuming from a checkpoint.
func (s *BaseScheduler) Restore(st State) error {
	if st.Step < 0 || st.Epoch < 0 {
		return fmt.Errorf("restore scheduler: negative state %+v", st)
	}
	s.state = st
	s.recompute()
	return nil
}

func (s *BaseScheduler) recompute() {
	s.params = s.schedule.Evaluate(s.state)
	if s.params == nil {
		s.params = Hyperparameters{}
	}
	if s.onUpdate != nil {
		s.onUpdate(s.params.Clone())
	}
}
