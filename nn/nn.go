// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the named-parameter module tree that compression
// algorithms transform.
//
// Every parameter has a dotted identifier derived from its position in the
// tree ("0.weight", "compressed.fc1.pre_ops.0.mask"). Algorithms insert
// simulated-compression operations into Linear layers through weight ops
// and input ops, and those ops contribute their own parameters.
//
// Example:
//
//	model := nn.NewNamedSequential(
//	    nn.Child{Name: "fc1", Module: nn.NewLinear(784, 128)},
//	    nn.Child{Name: "act", Module: nn.NewReLU()},
//	    nn.Child{Name: "fc2", Module: nn.NewLinear(128, 10)},
//	)
package nn

import (
	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// Identifier prefixes added by wrappers.
const (
	CompressedPrefix = nn.CompressedPrefix
	ReplicatedPrefix = nn.ReplicatedPrefix
)

// Module is the common interface of all modules.
type Module = nn.Module

// Container is a module with named children.
type Container = nn.Container

// Child is a named child module.
type Child = nn.Child

// Parameter is a named tensor owned by a module.
type Parameter = nn.Parameter

// Op transforms a tensor inside a Linear layer.
type Op = nn.Op

// Linear is a fully connected layer with weight and input op hooks.
type Linear = nn.Linear

// ReLU is the rectified linear activation.
type ReLU = nn.ReLU

// Sequential runs its children in order.
type Sequential = nn.Sequential

// Wrapper prefixes every identifier of the module it wraps.
type Wrapper = nn.Wrapper

// NewParameter creates a trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// NewBuffer creates a non-trainable parameter.
func NewBuffer(name string, t *tensor.Tensor) *Parameter {
	return nn.NewBuffer(name, t)
}

// NewLinear creates a linear layer with Xavier-initialized weights.
func NewLinear(inFeatures, outFeatures int) *Linear {
	return nn.NewLinear(inFeatures, outFeatures)
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// NewSequential creates a sequential container with children named "0", "1", ...
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// NewNamedSequential creates a sequential container with explicit child names.
func NewNamedSequential(children ...Child) *Sequential {
	return nn.NewNamedSequential(children...)
}

// NewWrapper wraps inner under prefix.
func NewWrapper(prefix string, inner Module) *Wrapper {
	return nn.NewWrapper(prefix, inner)
}

// Walk visits m and every descendant in depth-first order with its dotted path.
func Walk(m Module, fn func(path string, m Module) error) error {
	return nn.Walk(m, fn)
}

// ParameterShapes returns identifier -> shape for every state entry of m.
func ParameterShapes(m Module) map[string]tensor.Shape {
	return nn.ParameterShapes(m)
}

// Identifiers returns the sorted state identifiers of m.
func Identifiers(m Module) []string {
	return nn.Identifiers(m)
}
