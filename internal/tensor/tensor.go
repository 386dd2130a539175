// Package tensor provides the dense float32 tensor used by the compression
// layer to carry parameter values.
//
// Numeric kernels are deliberately limited to what simulated compression
// needs: element access, copies and range statistics. Layers do their own
// arithmetic over Data().
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when two tensors must have compatible shapes
// but do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// Tensor is a dense, row-major float32 array.
type Tensor struct {
	shape Shape
	data  []float32
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float32) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the underlying storage. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := New(t.shape)
	copy(out.data, t.data)
	return out
}

// CopyFrom overwrites t's values with src's.
//
// The shapes must be compatible (see Shape.Compatible).
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !src.shape.Compatible(t.shape) {
		return fmt.Errorf("%w: cannot copy %v into %v", ErrShapeMismatch, src.shape, t.shape)
	}
	copy(t.data, src.data)
	return nil
}

// MinMax returns the smallest and largest element.
// An empty tensor reports (0, 0).
func (t *Tensor) MinMax() (float32, float32) {
	if len(t.data) == 0 {
		return 0, 0
	}
	lo, hi := t.data[0], t.data[0]
	for _, v := range t.data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// MaxAbs returns the largest absolute element value.
func (t *Tensor) MaxAbs() float32 {
	var m float64
	for _, v := range t.data {
		m = math.Max(m, math.Abs(float64(v)))
	}
	return float32(m)
}

// String returns a short description (shape only) for logging.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
