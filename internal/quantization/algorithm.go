package quantization

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/born-ml/compress/internal/compression"
	"github.com/born-ml/compress/internal/logfields"
	"github.com/born-ml/compress/internal/nn"
)

// Name is the configuration key of this algorithm.
const Name = "quantization"

// Configuration parameters.
const (
	paramBits               = "bits"
	paramMode               = "mode"
	paramQuantizeInputs     = "quantize_inputs"
	paramWeightsStart       = "weights_start_epoch"
	paramActivationsStart   = "activations_start_epoch"
	paramRangeInitSteps     = "initializer.range.num_init_steps"
	paramPrecisionBits      = "initializer.precision.bits"
	paramPrecisionTolerance = "initializer.precision.tolerance"
)

// Defaults.
const (
	DefaultBits               = 8
	DefaultPrecisionTolerance = 0.05
)

// Settings is the validated parameter set of one quantization entry.
type Settings struct {
	Bits             int
	Mode             Mode
	QuantizeInputs   bool
	WeightsStart     int
	ActivationsStart int

	// RangeInitSteps > 0 mandates range-init calibration data.
	RangeInitSteps int

	// PrecisionBits non-empty mandates precision-init data; candidates are
	// sorted ascending.
	PrecisionBits      []int
	PrecisionTolerance float64
}

// ParseSettings validates params.
func ParseSettings(p compression.Params) (Settings, error) {
	var s Settings
	var err error

	if s.Bits, err = p.Int(paramBits, DefaultBits); err != nil {
		return s, err
	}
	if err := validateBits(s.Bits); err != nil {
		return s, fmt.Errorf("%w: %s: %v", compression.ErrInvalidParam, paramBits, err)
	}

	mode, err := p.String(paramMode, string(Symmetric))
	if err != nil {
		return s, err
	}
	if s.Mode, err = ParseMode(mode); err != nil {
		return s, fmt.Errorf("%w: %s: %v", compression.ErrInvalidParam, paramMode, err)
	}

	if s.QuantizeInputs, err = p.Bool(paramQuantizeInputs, true); err != nil {
		return s, err
	}
	if s.WeightsStart, err = nonNegative(p, paramWeightsStart); err != nil {
		return s, err
	}
	if s.ActivationsStart, err = nonNegative(p, paramActivationsStart); err != nil {
		return s, err
	}
	if s.RangeInitSteps, err = nonNegative(p, paramRangeInitSteps); err != nil {
		return s, err
	}

	if s.PrecisionBits, err = p.Ints(paramPrecisionBits); err != nil {
		return s, err
	}
	for _, b := range s.PrecisionBits {
		if err := validateBits(b); err != nil {
			return s, fmt.Errorf("%w: %s: %v", compression.ErrInvalidParam, paramPrecisionBits, err)
		}
	}
	sort.Ints(s.PrecisionBits)

	if s.PrecisionTolerance, err = p.Float(paramPrecisionTolerance, DefaultPrecisionTolerance); err != nil {
		return s, err
	}
	if s.PrecisionTolerance < 0 {
		return s, fmt.Errorf("%w: %s: must be >= 0", compression.ErrInvalidParam, paramPrecisionTolerance)
	}
	return s, nil
}

func nonNegative(p compression.Params, key string) (int, error) {
	v, err := p.Int(key, 0)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s: must be >= 0, got %d", compression.ErrInvalidParam, key, v)
	}
	return v, nil
}

// Builder builds quantization controllers.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Name returns "quantization".
func (*Builder) Name() string {
	return Name
}

// Requirements declares range-init and precision-init data when the
// corresponding initializers are configured.
func (*Builder) Requirements(p compression.Params) ([]compression.InitRequirement, error) {
	s, err := ParseSettings(p)
	if err != nil {
		return nil, err
	}
	var reqs []compression.InitRequirement
	if s.RangeInitSteps > 0 {
		reqs = append(reqs, compression.InitRequirement{Kind: compression.InitRange, Mandatory: true})
	}
	if len(s.PrecisionBits) > 0 {
		reqs = append(reqs, compression.InitRequirement{Kind: compression.InitPrecision, Mandatory: true})
	}
	return reqs, nil
}

// Build inserts quantizers into every Linear layer of ctx.Model, runs the
// configured initializers and returns the controller.
func (*Builder) Build(ctx compression.BuildContext) (nn.Module, compression.Controller, error) {
	s, err := ParseSettings(ctx.Params)
	if err != nil {
		return nil, nil, err
	}

	logger := ctx.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	layers := nn.Collect[*nn.Linear](ctx.Model)
	if len(layers) == 0 {
		return nil, nil, fmt.Errorf("no quantizable layers in model")
	}

	var weights, inputs []Site
	for _, l := range layers {
		wq, err := NewFakeQuantize(s.Mode, s.Bits)
		if err != nil {
			return nil, nil, err
		}
		lo, hi := l.Module.Weight().Tensor().MinMax()
		if err := wq.SetRange(lo, hi); err != nil {
			return nil, nil, fmt.Errorf("layer %s: %w", l.Path, err)
		}
		l.Module.AddWeightOp(wq)
		weights = append(weights, Site{Path: l.Path, Quantizer: wq})

		if s.QuantizeInputs {
			iq, err := NewFakeQuantize(s.Mode, s.Bits)
			if err != nil {
				return nil, nil, err
			}
			l.Module.AddInputOp(iq)
			inputs = append(inputs, Site{Path: l.Path, Quantizer: iq})
		}
	}

	if s.RangeInitSteps > 0 {
		entry, ok := ctx.InitEntry(compression.InitRange)
		if !ok {
			return nil, nil, &compression.MissingInitializationError{Algorithm: ctx.Name, Kind: compression.InitRange}
		}
		n, err := InitializeRanges(ctx.Model, inputs, entry.Loader, s.RangeInitSteps)
		if err != nil {
			return nil, nil, fmt.Errorf("range init: %w", err)
		}
		logger.Info("Range initialization complete",
			logfields.InitKind(string(compression.InitRange)), logfields.Count(n))
	}

	if len(s.PrecisionBits) > 0 {
		entry, ok := ctx.InitEntry(compression.InitPrecision)
		if !ok {
			return nil, nil, &compression.MissingInitializationError{Algorithm: ctx.Name, Kind: compression.InitPrecision}
		}
		chosen, err := InitializePrecision(ctx.Model, weights, entry, s.PrecisionBits, s.PrecisionTolerance)
		if err != nil {
			return nil, nil, fmt.Errorf("precision init: %w", err)
		}
		for i, site := range weights {
			logger.Debug("Precision selected", logfields.Layer(site.Path), logfields.Bits(chosen[i]))
		}
		logger.Info("Precision initialization complete",
			logfields.InitKind(string(compression.InitPrecision)), logfields.Count(len(weights)))
	}

	return ctx.Model, newController(ctx.Name, s, weights, inputs), nil
}
