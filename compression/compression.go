// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compression

import (
	"github.com/born-ml/compress/internal/compression"
	"github.com/born-ml/compress/internal/tensor"
)

// Errors.
var (
	ErrDuplicateAlgorithm = compression.ErrDuplicateAlgorithm
	ErrRegistrySealed     = compression.ErrRegistrySealed
	ErrInvalidParam       = compression.ErrInvalidParam
	ErrNoRegistry         = compression.ErrNoRegistry
)

// Error taxonomy.
type (
	UnknownAlgorithmError      = compression.UnknownAlgorithmError
	MissingInitializationError = compression.MissingInitializationError
	InvalidStateError          = compression.InvalidStateError
	DistributedSetupError      = compression.DistributedSetupError
)

// Configuration.
type (
	// Params is an algorithm's parameter mapping.
	Params = compression.Params

	// AlgorithmConfig is one algorithm entry.
	AlgorithmConfig = compression.AlgorithmConfig

	// Config is an ordered, immutable list of algorithm entries.
	Config = compression.Config
)

// Initialization resources.
type (
	InitKind      = compression.InitKind
	InitRegistry  = compression.InitRegistry
	InitEntry     = compression.InitEntry
	DataLoader    = compression.DataLoader
	Criterion     = compression.Criterion
	CriterionFunc = compression.CriterionFunc
	Batch         = compression.Batch
	SliceLoader   = compression.SliceLoader
)

// Initialization kinds.
const (
	InitRange     = compression.InitRange
	InitPrecision = compression.InitPrecision
)

// MeanSquaredError is a Criterion computing mean((outputs - targets)^2).
var MeanSquaredError = compression.MeanSquaredError

// Controllers and schedulers.
type (
	Controller          = compression.Controller
	CompositeController = compression.CompositeController
	Statistics          = compression.Statistics
	CompositeStatistics = compression.CompositeStatistics
	Scheduler           = compression.Scheduler
	CompositeScheduler  = compression.CompositeScheduler
	State               = compression.State
	Hyperparameters     = compression.Hyperparameters
	StepPolicy          = compression.StepPolicy
	ScheduleSnapshot    = compression.ScheduleSnapshot
	ProgressRecorder    = compression.ProgressRecorder
	NoopRecorder        = compression.NoopRecorder
)

// Step policies.
const (
	StepContinue = compression.StepContinue
	StepReset    = compression.StepReset
)

// Algorithm extension points.
type (
	Builder         = compression.Builder
	BuildContext    = compression.BuildContext
	InitRequirement = compression.InitRequirement
	Registry        = compression.Registry
	WrapOption      = compression.WrapOption
)

// NewConfig creates a configuration. Algorithm names must be unique.
func NewConfig(algorithms ...AlgorithmConfig) (*Config, error) {
	return compression.NewConfig(algorithms...)
}

// NewInitRegistry creates an empty initialization registry.
func NewInitRegistry() *InitRegistry {
	return compression.NewInitRegistry()
}

// NewRegistry creates an algorithm registry holding builders.
func NewRegistry(builders ...Builder) (*Registry, error) {
	return compression.NewRegistry(builders...)
}

// Wrap options.
var (
	WithRegistry         = compression.WithRegistry
	WithLogger           = compression.WithLogger
	WithRecorder         = compression.WithRecorder
	WithScheduleSnapshot = compression.WithScheduleSnapshot
)

// WithResumeSnapshot resumes from snapshot after wrapping; prefixes
// override the structural prefixes stripped while matching.
func WithResumeSnapshot(snapshot map[string]*tensor.Tensor, prefixes ...string) WrapOption {
	return compression.WithResumeSnapshot(snapshot, prefixes...)
}
