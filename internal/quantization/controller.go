package quantization

import (
	"github.com/born-ml/compress/internal/compression"
)

// Hyperparameters driven by the schedule.
const (
	HyperWeightsEnabled     = "weights_enabled"
	HyperActivationsEnabled = "activations_enabled"
)

// Site is a quantizer inserted at a layer path.
type Site struct {
	Path      string
	Quantizer *FakeQuantize
}

// Controller drives the quantizers of one quantization entry.
//
// Weight and activation quantization switch on at their configured start
// epochs. Quantization contributes no loss.
type Controller struct {
	compression.BaseController

	settings Settings
	weights  []Site
	inputs   []Site
}

func newController(name string, s Settings, weights, inputs []Site) *Controller {
	c := &Controller{settings: s, weights: weights, inputs: inputs}
	sched := compression.NewBaseScheduler(enableSchedule(s), compression.StepContinue, c.apply)
	c.BaseController = compression.NewBaseController(name, sched)
	return c
}

// enableSchedule yields 0/1 enable flags that flip at the start epochs.
func enableSchedule(s Settings) compression.Schedule {
	return compression.Combine(
		compression.MultiStep{Key: HyperWeightsEnabled, Epochs: []int{s.WeightsStart}, Values: []float64{0, 1}},
		compression.MultiStep{Key: HyperActivationsEnabled, Epochs: []int{s.ActivationsStart}, Values: []float64{0, 1}},
	)
}

func (c *Controller) apply(h compression.Hyperparameters) {
	weightsOn := h[HyperWeightsEnabled] >= 0.5
	for _, s := range c.weights {
		s.Quantizer.SetEnabled(weightsOn)
	}
	inputsOn := h[HyperActivationsEnabled] >= 0.5
	for _, s := range c.inputs {
		s.Quantizer.SetEnabled(inputsOn)
	}
}

// Settings returns the validated configuration.
func (c *Controller) Settings() Settings {
	return c.settings
}

// WeightQuantizers returns the weight quantizers in layer order.
func (c *Controller) WeightQuantizers() []Site {
	return append([]Site(nil), c.weights...)
}

// InputQuantizers returns the input quantizers in layer order.
func (c *Controller) InputQuantizers() []Site {
	return append([]Site(nil), c.inputs...)
}

// Loss returns 0.
func (c *Controller) Loss() float64 {
	return 0
}

// Statistics reports quantizer counts, enable state, mean weight bitwidth
// and whether distributed mode is active.
func (c *Controller) Statistics() compression.Statistics {
	var bits float64
	for _, s := range c.weights {
		bits += float64(s.Quantizer.Bits())
	}
	if len(c.weights) > 0 {
		bits /= float64(len(c.weights))
	}
	h := c.BaseScheduler().Hyperparameters()
	return compression.Statistics{
		"weight_quantizers":     float64(len(c.weights)),
		"activation_quantizers": float64(len(c.inputs)),
		"weights_enabled":       h[HyperWeightsEnabled],
		"activations_enabled":   h[HyperActivationsEnabled],
		"mean_bits":             bits,
		"distributed":           boolStat(c.IsDistributed()),
	}
}

// Distributed freezes every quantizer range so replicas keep identical
// ranges.
func (c *Controller) Distributed() error {
	return c.RunDistributed(func() error {
		for _, s := range append(c.WeightQuantizers(), c.inputs...) {
			s.Quantizer.Freeze()
		}
		return nil
	})
}

func boolStat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
