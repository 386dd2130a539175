package sparsity

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/compress/internal/compression"
	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// RBName is the configuration key of regularization-based sparsity.
const RBName = "rb_sparsity"

const paramSeed = "seed"

// initialLogit makes every weight start kept with probability 0.99.
var initialLogit = float32(math.Log(0.99 / 0.01))

// RBMask keeps each weight with probability sigmoid(logit), where the
// logits are trainable. While sampling, every Apply draws a fresh binary
// mask; otherwise weights with a positive logit are kept.
// It implements nn.Op.
type RBMask struct {
	logits   *nn.Parameter
	rng      *rand.Rand
	sampling bool
}

// NewRBMask creates a mask of shape whose sampler is seeded with seed.
func NewRBMask(shape tensor.Shape, seed int64) *RBMask {
	return &RBMask{
		logits:   nn.NewParameter("mask", tensor.Full(shape, initialLogit)),
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // G404: mask sampling, not security
		sampling: true,
	}
}

// Logits returns the live logits tensor.
func (m *RBMask) Logits() *tensor.Tensor {
	return m.logits.Tensor()
}

// SetSampling switches between stochastic and deterministic masks.
func (m *RBMask) SetSampling(sampling bool) {
	m.sampling = sampling
}

// Reseed restarts the sampler from seed.
func (m *RBMask) Reseed(seed int64) {
	m.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // G404: mask sampling, not security
}

// Apply returns x multiplied by a binary mask.
func (m *RBMask) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	logits := m.logits.Tensor()
	if !x.Shape().Equal(logits.Shape()) {
		return nil, fmt.Errorf("rb mask: shape %v does not match input %v", logits.Shape(), x.Shape())
	}
	out := x.Clone()
	data := out.Data()
	for i, l := range logits.Data() {
		keep := l > 0
		if m.sampling {
			keep = m.rng.Float64() < sigmoid(float64(l))
		}
		if !keep {
			data[i] = 0
		}
	}
	return out, nil
}

// Parameters returns the logits.
func (m *RBMask) Parameters() []*nn.Parameter {
	return []*nn.Parameter{m.logits}
}

// densitySum returns the sum of keep probabilities and the element count.
func (m *RBMask) densitySum() (float64, int) {
	var sum float64
	data := m.logits.Tensor().Data()
	for _, l := range data {
		sum += sigmoid(float64(l))
	}
	return sum, len(data)
}

// zeros returns the number of weights the deterministic mask removes.
func (m *RBMask) zeros() int {
	n := 0
	for _, l := range m.logits.Tensor().Data() {
		if l <= 0 {
			n++
		}
	}
	return n
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// RBBuilder builds regularization-based sparsity controllers.
type RBBuilder struct{}

// NewRBBuilder creates an RBBuilder.
func NewRBBuilder() *RBBuilder {
	return &RBBuilder{}
}

// Name returns "rb_sparsity".
func (*RBBuilder) Name() string {
	return RBName
}

// Requirements validates params; RB sparsity needs no calibration data.
func (*RBBuilder) Requirements(p compression.Params) ([]compression.InitRequirement, error) {
	if _, err := ParseLevelSettings(p, ScheduleExponential); err != nil {
		return nil, err
	}
	_, err := p.Int(paramSeed, 0)
	return nil, err
}

// Build inserts an RBMask into every Linear layer. Samplers start from
// process-local seeds; Distributed aligns them across replicas.
func (*RBBuilder) Build(ctx compression.BuildContext) (nn.Module, compression.Controller, error) {
	s, err := ParseLevelSettings(ctx.Params, ScheduleExponential)
	if err != nil {
		return nil, nil, err
	}
	seed, err := ctx.Params.Int(paramSeed, 0)
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
	c := &RBController{seed: int64(seed)}
	for _, l := range linears {
		m := NewRBMask(l.Module.Weight().Tensor().Shape(), rand.Int63()) //nolint:gosec // G404: mask sampling, not security
		l.Module.AddWeightOp(m)
		c.paths = append(c.paths, l.Path)
		c.masks = append(c.masks, m)
	}
	c.BaseController = compression.NewBaseController(ctx.Name, compression.NewBaseScheduler(sched, policy, nil))
	return ctx.Model, c, nil
}

// RBController drives RB sparsity. Its loss pulls the mean keep
// probability towards 1 - level.
type RBController struct {
	compression.BaseController

	seed  int64
	paths []string
	masks []*RBMask
}

// Level returns the scheduled sparsity level.
func (c *RBController) Level() float64 {
	return c.BaseScheduler().Value(HyperLevel)
}

// Masks returns the mask of every layer, keyed by layer path.
func (c *RBController) Masks() map[string]*RBMask {
	out := make(map[string]*RBMask, len(c.masks))
	for i, m := range c.masks {
		out[c.paths[i]] = m
	}
	return out
}

// SetSampling switches every mask between stochastic and deterministic
// (evaluation) mode.
func (c *RBController) SetSampling(sampling bool) {
	for _, m := range c.masks {
		m.SetSampling(sampling)
	}
}

// Density returns the mean keep probability over all masked weights.
func (c *RBController) Density() float64 {
	var sum float64
	var n int
	for _, m := range c.masks {
		s, k := m.densitySum()
		sum += s
		n += k
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// Loss returns (density - (1 - level))^2.
func (c *RBController) Loss() float64 {
	d := c.Density() - (1 - c.Level())
	return d * d
}

// Statistics reports the scheduled level, density and deterministic zero
// fraction.
func (c *RBController) Statistics() compression.Statistics {
	zeros, total := 0, 0
	for _, m := range c.masks {
		zeros += m.zeros()
		total += m.Logits().NumElements()
	}
	return compression.Statistics{
		"sparsity_level": c.Level(),
		"sparsity_rate":  float64(zeros) / float64(total),
		"density":        c.Density(),
		"masked_layers":  float64(len(c.masks)),
		"distributed":    boolStat(c.IsDistributed()),
	}
}

// Distributed reseeds every layer's sampler from the shared seed so that
// all replicas draw identical masks. Repeated calls do not rewind the
// samplers.
func (c *RBController) Distributed() error {
	return c.RunDistributed(func() error {
		for i, m := range c.masks {
			m.Reseed(c.seed + int64(i))
		}
		return nil
	})
}
