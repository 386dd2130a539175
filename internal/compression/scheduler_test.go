package compression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSchedulerInitialState(t *testing.T) {
	var updates []Hyperparameters
	s := NewBaseScheduler(LinearRamp{Key: "level", Start: 0.1, End: 0.5, EndEpoch: 4}, StepContinue,
		func(h Hyperparameters) { updates = append(updates, h) })

	assert.Equal(t, State{}, s.State())
	assert.False(t, s.Started())
	assert.InDelta(t, 0.1, s.Value("level"), 1e-12)
	require.Len(t, updates, 1)
	assert.InDelta(t, 0.1, updates[0]["level"], 1e-12)
}

func TestStepPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy StepPolicy
		want   State
	}{
		{"continue", StepContinue, State{Step: 6, Epoch: 2}},
		{"reset", StepReset, State{Step: 0, Epoch: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewBaseScheduler(nil, tt.policy, nil)
			for range 2 {
				for range 3 {
					s.Step()
				}
				s.EpochStep()
			}
			assert.Equal(t, tt.want, s.State())
			assert.True(t, s.Started())
			assert.Equal(t, tt.policy, s.Policy())
		})
	}
}

func TestParseStepPolicy(t *testing.T) {
	p, err := ParseStepPolicy("reset")
	require.NoError(t, err)
	assert.Equal(t, StepReset, p)
	assert.Equal(t, "reset", p.String())

	p, err = ParseStepPolicy("")
	require.NoError(t, err)
	assert.Equal(t, StepContinue, p)

	_, err = ParseStepPolicy("rebase")
	require.Error(t, err)
}

// Advancing the machine must agree with evaluating the schedule directly.
func TestSchedulerMatchesClosedForm(t *testing.T) {
	multi, err := NewMultiStep("level", []int{1, 3}, []float64{0.1, 0.3, 0.6})
	require.NoError(t, err)

	schedules := map[string]Schedule{
		"linear":      LinearRamp{Key: "level", End: 0.8, EndEpoch: 5},
		"linear_step": LinearRamp{Key: "level", End: 0.8, EndEpoch: 5, StepsPerEpoch: 7},
		"polynomial":  PolynomialRamp{Key: "level", Start: 0.1, End: 0.9, EndEpoch: 6, Power: 3, Concave: true},
		"exponential": ExponentialRamp{Key: "level", Start: 0.2, End: 0.95, EndEpoch: 4},
		"multistep":   multi,
		"step_ramp":   StepRamp{Key: "level", Start: 1, End: 0, BeginStep: 2, EndStep: 12},
		"combined":    Combine(StepRamp{Key: "a", End: 1, EndStep: 9}, LinearRamp{Key: "b", End: 1, EndEpoch: 3}),
	}

	for name, sched := range schedules {
		for _, policy := range []StepPolicy{StepContinue, StepReset} {
			t.Run(name+"/"+policy.String(), func(t *testing.T) {
				for _, steps := range []int{0, 1, 4, 7, 13} {
					s := NewBaseScheduler(sched, policy, nil)
					for range steps {
						s.Step()
					}
					assert.Equal(t, sched.Evaluate(State{Step: steps}), s.Hyperparameters())

					s.EpochStep()
					want := State{Step: steps, Epoch: 1}
					if policy == StepReset {
						want.Step = 0
					}
					assert.Equal(t, want, s.State())
					assert.Equal(t, sched.Evaluate(want), s.Hyperparameters())
				}
			})
		}
	}
}

func TestSchedulesFreezeBeyondEnd(t *testing.T) {
	s := NewBaseScheduler(PolynomialRamp{Key: "level", End: 0.7, BeginEpoch: 1, EndEpoch: 3, Power: 2}, StepContinue, nil)
	for range 3 {
		s.EpochStep()
	}
	assert.InDelta(t, 0.7, s.Value("level"), 1e-12)
	for range 50 {
		s.EpochStep()
		s.Step()
	}
	assert.InDelta(t, 0.7, s.Value("level"), 1e-12)
}

func TestLinearRampInterpolatesWithinEpoch(t *testing.T) {
	r := LinearRamp{Key: "level", End: 1, EndEpoch: 2, StepsPerEpoch: 10}
	assert.InDelta(t, 0.25, r.Evaluate(State{Epoch: 0, Step: 5})["level"], 1e-12)
	assert.InDelta(t, 0.75, r.Evaluate(State{Epoch: 1, Step: 5})["level"], 1e-12)
	// Steps past the declared epoch length do not overshoot.
	assert.InDelta(t, 0.5, r.Evaluate(State{Epoch: 0, Step: 40})["level"], 1e-12)
}

func TestExponentialRamp(t *testing.T) {
	r := ExponentialRamp{Key: "level", Start: 0, End: 0.99, EndEpoch: 2}
	assert.InDelta(t, 0, r.Evaluate(State{})["level"], 1e-12)
	assert.InDelta(t, 0.9, r.Evaluate(State{Epoch: 1})["level"], 1e-9)
	assert.InDelta(t, 0.99, r.Evaluate(State{Epoch: 2})["level"], 1e-9)

	full := ExponentialRamp{Key: "level", Start: 0, End: 1, EndEpoch: 2}
	assert.InDelta(t, 0.5, full.Evaluate(State{Epoch: 1})["level"], 1e-12)
}

func TestMultiStep(t *testing.T) {
	m, err := NewMultiStep("level", []int{2, 5}, []float64{0, 0.5, 0.9})
	require.NoError(t, err)

	want := map[int]float64{0: 0, 1: 0, 2: 0.5, 4: 0.5, 5: 0.9, 100: 0.9}
	for epoch, v := range want {
		assert.InDelta(t, v, m.Evaluate(State{Epoch: epoch})["level"], 1e-12, "epoch %d", epoch)
	}

	_, err = NewMultiStep("level", []int{2, 5}, []float64{0, 0.5})
	require.Error(t, err)
	_, err = NewMultiStep("level", []int{5, 2}, []float64{0, 0.5, 0.9})
	require.Error(t, err)
}

func TestBaseSchedulerRestore(t *testing.T) {
	sched := LinearRamp{Key: "level", End: 1, EndEpoch: 10}
	s := NewBaseScheduler(sched, StepContinue, nil)

	require.NoError(t, s.Restore(State{Step: 120, Epoch: 4}))
	assert.False(t, s.Started())
	assert.InDelta(t, 0.4, s.Value("level"), 1e-12)

	require.Error(t, s.Restore(State{Step: -1}))
	assert.Equal(t, State{Step: 120, Epoch: 4}, s.State())

	s.Step()
	assert.True(t, s.Started())
	require.NoError(t, s.Restore(State{}))
	assert.True(t, s.Started())
}

func TestHyperparametersAreCopies(t *testing.T) {
	s := NewBaseScheduler(Constant(Hyperparameters{"bits": 8}), StepContinue, nil)
	h := s.Hyperparameters()
	h["bits"] = 2
	assert.InDelta(t, 8, s.Value("bits"), 0)
}
