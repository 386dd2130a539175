package sparsity

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/born-ml/compress/internal/compression"
	"github.com/born-ml/compress/internal/logfields"
	"github.com/born-ml/compress/internal/nn"
)

// MagnitudeName is the configuration key of magnitude sparsity.
const MagnitudeName = "magnitude_sparsity"

type maskedLayer struct {
	path   string
	linear *nn.Linear
	mask   *BinaryMask
}

// MagnitudeBuilder builds magnitude sparsity controllers.
type MagnitudeBuilder struct{}

// NewMagnitudeBuilder creates a MagnitudeBuilder.
func NewMagnitudeBuilder() *MagnitudeBuilder {
	return &MagnitudeBuilder{}
}

// Name returns "magnitude_sparsity".
func (*MagnitudeBuilder) Name() string {
	return MagnitudeName
}

// Requirements validates params; magnitude sparsity needs no calibration data.
func (*MagnitudeBuilder) Requirements(p compression.Params) ([]compression.InitRequirement, error) {
	_, err := ParseLevelSettings(p, SchedulePolynomial)
	return nil, err
}

// Build inserts a BinaryMask into every Linear layer.
func (*MagnitudeBuilder) Build(ctx compression.BuildContext) (nn.Module, compression.Controller, error) {
	s, err := ParseLevelSettings(ctx.Params, SchedulePolynomial)
	if err != nil {
		return nil, nil, err
	}
	sched, policy, err := s.Schedule()
	if err != nil {
		return nil, nil, err
	}

	linears := nn.Collect[*nn.Linear](ctx.Model)
	if len(linears) == 0 {
		return nil, nil, fmt.Errorf("no sparsifiable layers in model")
	}
	layers := make([]maskedLayer, len(linears))
	for i, l := range linears {
		m := NewBinaryMask(l.Module.Weight().Tensor().Shape())
		l.Module.AddWeightOp(m)
		layers[i] = maskedLayer{path: l.Path, linear: l.Module, mask: m}
	}

	logger := ctx.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &MagnitudeController{layers: layers, applied: -1, logger: logger}
	c.BaseController = compression.NewBaseController(ctx.Name, compression.NewBaseScheduler(sched, policy, c.apply))
	return ctx.Model, c, nil
}

// MagnitudeController zeroes the smallest-magnitude weights of each layer
// so that the scheduled fraction is removed.
type MagnitudeController struct {
	compression.BaseController

	layers  []maskedLayer
	applied float64
	logger  *slog.Logger
}

func (c *MagnitudeController) apply(h compression.Hyperparameters) {
	level := h[HyperLevel]
	if level == c.applied {
		return
	}
	c.applied = level
	for _, l := range c.layers {
		updateMagnitudeMask(l.linear.Weight().Tensor().Data(), l.mask.Mask().Data(), level)
	}
	c.logger.Debug("Sparsity masks updated", logfields.Level(level), logfields.Count(len(c.layers)))
}

// updateMagnitudeMask zeroes floor(level*n) entries with the smallest |w|.
// Ties are broken by position so the result is deterministic.
func updateMagnitudeMask(weights, mask []float32, level float64) {
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(float64(weights[idx[a]])) < math.Abs(float64(weights[idx[b]]))
	})
	k := int(math.Floor(level * float64(len(weights))))
	for rank, i := range idx {
		if rank < k {
			mask[i] = 0
		} else {
			mask[i] = 1
		}
	}
}

// Level returns the scheduled sparsity level.
func (c *MagnitudeController) Level() float64 {
	return c.BaseScheduler().Value(HyperLevel)
}

// Masks returns the mask of every layer, keyed by layer path.
func (c *MagnitudeController) Masks() map[string]*BinaryMask {
	out := make(map[string]*BinaryMask, len(c.layers))
	for _, l := range c.layers {
		out[l.path] = l.mask
	}
	return out
}

// Loss returns 0.
func (c *MagnitudeController) Loss() float64 {
	return 0
}

// Statistics reports the scheduled level and the achieved zero fraction.
func (c *MagnitudeController) Statistics() compression.Statistics {
	zeros, total := 0, 0
	for _, l := range c.layers {
		zeros += l.mask.Zeros()
		total += l.mask.Mask().NumElements()
	}
	return compression.Statistics{
		"sparsity_level": c.Level(),
		"sparsity_rate":  float64(zeros) / float64(total),
		"masked_layers":  float64(len(c.layers)),
		"distributed":    boolStat(c.IsDistributed()),
	}
}

// Distributed marks the controller distributed. Magnitude masks are a
// function of the synchronized weights, so replicas agree without changes.
func (c *MagnitudeController) Distributed() error {
	return c.RunDistributed(nil)
}

func boolStat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
