// Package quantization implements the "quantization" compression algorithm.
//
// Every Linear layer receives a weight FakeQuantize op and, optionally, an
// input FakeQuantize op. The ops round values to a bits-wide integer grid
// and back, so training sees quantization error while tensors stay float32.
// Ranges come from the weights themselves and, when calibration data is
// attached, from activations observed during range initialization.
package quantization

import (
	"fmt"
	"math"

	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// Mode selects the quantization grid.
type Mode string

// Quantization modes.
const (
	// Symmetric uses a signed grid centred on zero: [-scale, scale].
	Symmetric Mode = "symmetric"

	// Asymmetric uses an unsigned grid over [input_low, input_low+input_range].
	Asymmetric Mode = "asymmetric"
)

// Supported bitwidths.
const (
	MinBits = 2
	MaxBits = 16
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Symmetric, Asymmetric:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown quantization mode %q", s)
	}
}

func validateBits(bits int) error {
	if bits < MinBits || bits > MaxBits {
		return fmt.Errorf("bits %d out of range [%d, %d]", bits, MinBits, MaxBits)
	}
	return nil
}

// FakeQuantize simulates integer quantization of the tensors passing
// through it. It implements nn.Op.
//
// In symmetric mode the range is held by the "scale" parameter; in
// asymmetric mode by "input_low" and "input_range". A disabled quantizer
// passes values through unchanged, as does one with an empty range.
type FakeQuantize struct {
	mode    Mode
	bits    int
	enabled bool
	frozen  bool

	observing bool
	observed  bool
	min, max  float32

	scale      *nn.Parameter // Symmetric: max |x|. Asymmetric: input_low.
	inputRange *nn.Parameter // Asymmetric only.
}

// NewFakeQuantize creates a disabled quantizer with range [-1, 1]
// (symmetric) or [0, 1] (asymmetric).
func NewFakeQuantize(mode Mode, bits int) (*FakeQuantize, error) {
	if err := validateBits(bits); err != nil {
		return nil, err
	}
	q := &FakeQuantize{mode: mode, bits: bits}
	switch mode {
	case Symmetric:
		q.scale = nn.NewParameter("scale", tensor.Full(tensor.Shape{1}, 1))
	case Asymmetric:
		q.scale = nn.NewParameter("input_low", tensor.Full(tensor.Shape{1}, 0))
		q.inputRange = nn.NewParameter("input_range", tensor.Full(tensor.Shape{1}, 1))
	default:
		return nil, fmt.Errorf("unknown quantization mode %q", mode)
	}
	return q, nil
}

// Mode returns the quantization mode.
func (q *FakeQuantize) Mode() Mode { return q.mode }

// Bits returns the current bitwidth.
func (q *FakeQuantize) Bits() int { return q.bits }

// SetBits changes the bitwidth.
func (q *FakeQuantize) SetBits(bits int) error {
	if err := validateBits(bits); err != nil {
		return err
	}
	q.bits = bits
	return nil
}

// Enabled reports whether quantization is applied.
func (q *FakeQuantize) Enabled() bool { return q.enabled }

// SetEnabled turns quantization on or off.
func (q *FakeQuantize) SetEnabled(enabled bool) { q.enabled = enabled }

// Frozen reports whether the range can no longer change.
func (q *FakeQuantize) Frozen() bool { return q.frozen }

// Freeze stops range updates: range parameters become non-trainable and
// observation is refused.
func (q *FakeQuantize) Freeze() {
	q.frozen = true
	q.observing = false
	for _, p := range q.Parameters() {
		p.SetTrainable(false)
	}
}

// Range returns the represented interval [low, high].
func (q *FakeQuantize) Range() (low, high float32) {
	v := q.scale.Tensor().Data()[0]
	if q.mode == Symmetric {
		return -v, v
	}
	return v, v + q.inputRange.Tensor().Data()[0]
}

// SetRange sets the range from observed extremes.
func (q *FakeQuantize) SetRange(minVal, maxVal float32) error {
	if q.frozen {
		return fmt.Errorf("set range: quantizer is frozen")
	}
	if minVal > maxVal {
		return fmt.Errorf("set range: min %v > max %v", minVal, maxVal)
	}
	if q.mode == Symmetric {
		q.scale.Tensor().Data()[0] = float32(math.Max(math.Abs(float64(minVal)), math.Abs(float64(maxVal))))
		return nil
	}
	q.scale.Tensor().Data()[0] = minVal
	q.inputRange.Tensor().Data()[0] = maxVal - minVal
	return nil
}

// StartObserving makes Apply record value extremes instead of quantizing.
func (q *FakeQuantize) StartObserving() error {
	if q.frozen {
		return fmt.Errorf("observe: quantizer is frozen")
	}
	q.observing = true
	q.observed = false
	return nil
}

// StopObserving ends observation and adopts the observed extremes as the
// range. It reports whether anything was observed.
func (q *FakeQuantize) StopObserving() (bool, error) {
	q.observing = false
	if !q.observed {
		return false, nil
	}
	return true, q.SetRange(q.min, q.max)
}

// Apply quantizes x, observes it, or passes it through.
func (q *FakeQuantize) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	out := x.Clone()
	if q.observing {
		lo, hi := x.MinMax()
		if !q.observed || lo < q.min {
			q.min = lo
		}
		if !q.observed || hi > q.max {
			q.max = hi
		}
		q.observed = true
		return out, nil
	}
	if !q.enabled {
		return out, nil
	}

	data := out.Data()
	switch q.mode {
	case Symmetric:
		levels := float64(int(1)<<(q.bits-1) - 1)
		scale := float64(q.scale.Tensor().Data()[0])
		if scale <= 0 {
			return out, nil
		}
		step := scale / levels
		for i, v := range data {
			n := clamp(math.Round(float64(v)/step), -levels, levels)
			data[i] = float32(n * step)
		}
	case Asymmetric:
		levels := float64(int(1)<<q.bits - 1)
		low := float64(q.scale.Tensor().Data()[0])
		span := float64(q.inputRange.Tensor().Data()[0])
		if span <= 0 {
			return out, nil
		}
		step := span / levels
		for i, v := range data {
			n := clamp(math.Round((float64(v)-low)/step), 0, levels)
			data[i] = float32(n*step + low)
		}
	}
	return out, nil
}

// Parameters returns the range parameters.
func (q *FakeQuantize) Parameters() []*nn.Parameter {
	if q.inputRange == nil {
		return []*nn.Parameter{q.scale}
	}
	return []*nn.Parameter{q.scale, q.inputRange}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
