package nn

import (
	"github.com/born-ml/compress/internal/tensor"
)

// Parameter represents a named tensor owned by a module.
//
// Trainable parameters are updated by the optimizer. Non-trainable ones
// (buffers) carry state such as sparsity masks; they are still part of
// the state dict and therefore of every checkpoint.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	mask := nn.NewBuffer("mask", tensor.Full(weightTensor.Shape(), 1))
type Parameter struct {
	name      string         // Parameter name (e.g., "weight", "scale")
	tensor    *tensor.Tensor // The parameter tensor
	trainable bool
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:      name,
		tensor:    t,
		trainable: true,
	}
}

// NewBuffer creates a non-trainable parameter.
func NewBuffer(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Trainable reports whether the optimizer should update this parameter.
func (p *Parameter) Trainable() bool {
	return p.trainable
}

// SetTrainable marks the parameter trainable or frozen.
func (p *Parameter) SetTrainable(trainable bool) {
	p.trainable = trainable
}
