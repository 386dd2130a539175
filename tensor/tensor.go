// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float32 tensor that carries parameter
// values through the compression layer.
//
// # Basic Usage
//
//	w, err := tensor.FromSlice([]float32{1, -2, 3, -4}, tensor.Shape{2, 2})
//	if err != nil {
//	    return err
//	}
//	lo, hi := w.MinMax()
package tensor

import "github.com/born-ml/compress/internal/tensor"

// Shape is a tensor's dimensions. An empty shape is a scalar.
type Shape = tensor.Shape

// Tensor is a dense, row-major float32 array.
type Tensor = tensor.Tensor

// ErrShapeMismatch is returned when shapes must be compatible but are not.
var ErrShapeMismatch = tensor.ErrShapeMismatch

// New creates a zero-filled tensor.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// FromSlice creates a tensor from a copy of data.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}
