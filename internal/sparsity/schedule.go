package sparsity

import (
	"fmt"

	"github.com/born-ml/compress/internal/compression"
)

// HyperLevel is the scheduled fraction of weights to remove.
const HyperLevel = "sparsity_level"

// Schedule kinds.
const (
	SchedulePolynomial  = "polynomial"
	ScheduleLinear      = "linear"
	ScheduleExponential = "exponential"
	ScheduleMultistep   = "multistep"
)

const (
	paramInit            = "sparsity_init"
	paramTarget          = "sparsity_target"
	paramTargetEpoch     = "sparsity_target_epoch"
	paramSchedule        = "schedule"
	paramPower           = "power"
	paramMultistepEpochs = "multistep_epochs"
	paramMultistepLevels = "multistep_levels"
	paramStepsPerEpoch   = "steps_per_epoch"
)

// Schedule defaults.
const (
	DefaultTarget      = 0.5
	DefaultTargetEpoch = 90
	DefaultPower       = 3
)

// LevelSettings configures how the sparsity level evolves.
type LevelSettings struct {
	Kind        string
	Init        float64
	Target      float64
	TargetEpoch int
	Power       float64

	MultistepEpochs []int
	MultistepLevels []float64

	// StepsPerEpoch > 0 interpolates within epochs and makes the scheduler
	// reset its step counter at every epoch.
	StepsPerEpoch int
}

// ParseLevelSettings validates the schedule parameters. defaultKind
// applies when "schedule" is absent.
func ParseLevelSettings(p compression.Params, defaultKind string) (LevelSettings, error) {
	var s LevelSettings
	var err error

	if s.Kind, err = p.String(paramSchedule, defaultKind); err != nil {
		return s, err
	}
	if s.Init, err = p.Float(paramInit, 0); err != nil {
		return s, err
	}
	if s.Target, err = p.Float(paramTarget, DefaultTarget); err != nil {
		return s, err
	}
	if s.TargetEpoch, err = p.Int(paramTargetEpoch, DefaultTargetEpoch); err != nil {
		return s, err
	}
	if s.Power, err = p.Float(paramPower, DefaultPower); err != nil {
		return s, err
	}
	if s.StepsPerEpoch, err = p.Int(paramStepsPerEpoch, 0); err != nil {
		return s, err
	}
	if s.MultistepEpochs, err = p.Ints(paramMultistepEpochs); err != nil {
		return s, err
	}
	if s.MultistepLevels, err = p.Floats(paramMultistepLevels); err != nil {
		return s, err
	}

	if err := checkLevel(paramInit, s.Init); err != nil {
		return s, err
	}
	if err := checkLevel(paramTarget, s.Target); err != nil {
		return s, err
	}
	for _, v := range s.MultistepLevels {
		if err := checkLevel(paramMultistepLevels, v); err != nil {
			return s, err
		}
	}
	if s.TargetEpoch < 0 {
		return s, fmt.Errorf("%w: %s: must be >= 0", compression.ErrInvalidParam, paramTargetEpoch)
	}
	if s.StepsPerEpoch < 0 {
		return s, fmt.Errorf("%w: %s: must be >= 0", compression.ErrInvalidParam, paramStepsPerEpoch)
	}
	if s.Power <= 0 {
		return s, fmt.Errorf("%w: %s: must be > 0", compression.ErrInvalidParam, paramPower)
	}
	if _, _, err := s.Schedule(); err != nil {
		return s, err
	}
	return s, nil
}

func checkLevel(key string, v float64) error {
	if v < 0 || v >= 1 {
		return fmt.Errorf("%w: %s: must be in [0, 1), got %v", compression.ErrInvalidParam, key, v)
	}
	return nil
}

// Schedule builds the level schedule and the step policy it needs.
func (s LevelSettings) Schedule() (compression.Schedule, compression.StepPolicy, error) {
	policy := compression.StepContinue
	if s.StepsPerEpoch > 0 {
		policy = compression.StepReset
	}

	switch s.Kind {
	case SchedulePolynomial:
		return compression.PolynomialRamp{
			Key: HyperLevel, Start: s.Init, End: s.Target, EndEpoch: s.TargetEpoch,
			Power: s.Power, Concave: true, StepsPerEpoch: s.StepsPerEpoch,
		}, policy, nil
	case ScheduleLinear:
		return compression.LinearRamp{
			Key: HyperLevel, Start: s.Init, End: s.Target, EndEpoch: s.TargetEpoch,
			StepsPerEpoch: s.StepsPerEpoch,
		}, policy, nil
	case ScheduleExponential:
		return compression.ExponentialRamp{
			Key: HyperLevel, Start: s.Init, End: s.Target, EndEpoch: s.TargetEpoch,
		}, compression.StepContinue, nil
	case ScheduleMultistep:
		levels := s.MultistepLevels
		if len(levels) == 0 {
			return nil, 0, fmt.Errorf("%w: %s: required by the multistep schedule", compression.ErrInvalidParam, paramMultistepLevels)
		}
		m, err := compression.NewMultiStep(HyperLevel, s.MultistepEpochs, levels)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", compression.ErrInvalidParam, err)
		}
		return m, compression.StepContinue, nil
	default:
		return nil, 0, fmt.Errorf("%w: %s: unknown schedule %q", compression.ErrInvalidParam, paramSchedule, s.Kind)
	}
}
