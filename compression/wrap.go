// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compression

import (
	"fmt"

	"github.com/born-ml/compress/internal/compression"
	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/quantization"
	"github.com/born-ml/compress/internal/sparsity"
)

// Built-in algorithm names.
const (
	Quantization      = quantization.Name
	MagnitudeSparsity = sparsity.MagnitudeName
	RBSparsity        = sparsity.RBName
)

// DefaultRegistry returns a new registry holding every built-in algorithm.
// Callers may Register their own builders on it.
func DefaultRegistry() *Registry {
	r, err := compression.NewRegistry(
		quantization.NewBuilder(),
		sparsity.NewMagnitudeBuilder(),
		sparsity.NewRBBuilder(),
	)
	if err != nil {
		panic(fmt.Sprintf("compression: built-in registry: %v", err))
	}
	return r
}

// Wrap validates cfg, applies every configured algorithm to model in
// declaration order and returns the transformed model with its composite
// controller. The built-in registry is used unless WithRegistry is given.
//
// On error no model is returned and ops already inserted into the input
// model are removed, so the model can be wrapped again.
func Wrap(model nn.Module, cfg *Config, opts ...WrapOption) (nn.Module, *CompositeController, error) {
	all := make([]WrapOption, 0, len(opts)+1)
	all = append(all, WithRegistry(DefaultRegistry()))
	all = append(all, opts...)
	return compression.Wrap(model, cfg, all...)
}
