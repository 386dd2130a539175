// Package sparsity implements the "magnitude_sparsity" and "rb_sparsity"
// compression algorithms.
//
// Both insert a mask op in front of every Linear weight and ramp a target
// sparsity level over training. Magnitude sparsity zeroes the smallest
// weights whenever the level changes; RB sparsity learns mask logits and
// pushes the mean mask density towards the level through its loss.
package sparsity

import (
	"fmt"

	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// BinaryMask multiplies a weight by a fixed 0/1 mask stored as a buffer.
// It implements nn.Op.
type BinaryMask struct {
	mask *nn.Parameter
}

// NewBinaryMask creates an all-ones mask of shape.
func NewBinaryMask(shape tensor.Shape) *BinaryMask {
	return &BinaryMask{mask: nn.NewBuffer("mask", tensor.Full(shape, 1))}
}

// Mask returns the live mask tensor.
func (m *BinaryMask) Mask() *tensor.Tensor {
	return m.mask.Tensor()
}

// Apply returns x * mask.
func (m *BinaryMask) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	if !x.Shape().Equal(m.mask.Tensor().Shape()) {
		return nil, fmt.Errorf("mask: shape %v does not match input %v", m.mask.Tensor().Shape(), x.Shape())
	}
	out := x.Clone()
	mask := m.mask.Tensor().Data()
	for i := range out.Data() {
		out.Data()[i] *= mask[i]
	}
	return out, nil
}

// Parameters returns the mask buffer.
func (m *BinaryMask) Parameters() []*nn.Parameter {
	return []*nn.Parameter{m.mask}
}

// Zeros returns the number of masked-out elements.
func (m *BinaryMask) Zeros() int {
	n := 0
	for _, v := range m.mask.Tensor().Data() {
		if v == 0 {
			n++
		}
	}
	return n
}
