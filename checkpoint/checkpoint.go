// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint matches persisted parameter snapshots against live
// models whose identifiers carry structural prefixes.
//
// Example:
//
//	snapshot, err := checkpoint.LoadSafeTensors("epoch_10.safetensors")
//	if err != nil {
//	    return err
//	}
//	plan, err := checkpoint.LoadModel(model, snapshot, checkpoint.LoadOptions{Strict: true})
package checkpoint

import (
	"github.com/born-ml/compress/internal/checkpoint"
	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// DefaultPrefixes are the structural prefixes stripped when none are configured.
var DefaultPrefixes = checkpoint.DefaultPrefixes

// Sentinel errors.
var (
	ErrInvalidHeader    = checkpoint.ErrInvalidHeader
	ErrUnsupportedDType = checkpoint.ErrUnsupportedDType
)

// Shapes maps identifiers to value shapes.
type Shapes = checkpoint.Shapes

// Normalizer strips structural prefixes from identifiers.
type Normalizer = checkpoint.Normalizer

// Matcher reconciles snapshot and model identifiers.
type Matcher = checkpoint.Matcher

// LoadPlan maps model identifiers to snapshot identifiers and lists
// everything left unmatched.
type LoadPlan = checkpoint.LoadPlan

// Mismatch describes one unmatched model identifier.
type Mismatch = checkpoint.Mismatch

// MismatchReason explains a Mismatch.
type MismatchReason = checkpoint.MismatchReason

// Mismatch reasons.
const (
	ReasonMissing = checkpoint.ReasonMissing
	ReasonShape   = checkpoint.ReasonShape
)

// AmbiguousMatchError reports identifiers that normalize to the same value.
type AmbiguousMatchError = checkpoint.AmbiguousMatchError

// ResumeMismatchError is returned by strict matching with unmatched identifiers.
type ResumeMismatchError = checkpoint.ResumeMismatchError

// LoadOptions configures LoadModel.
type LoadOptions = checkpoint.LoadOptions

// Header is a SafeTensors file header.
type Header = checkpoint.Header

// NewNormalizer creates a normalizer over prefixes (DefaultPrefixes if none).
func NewNormalizer(prefixes ...string) *Normalizer {
	return checkpoint.NewNormalizer(prefixes...)
}

// NewMatcher creates a matcher over prefixes (DefaultPrefixes if none).
func NewMatcher(prefixes ...string) *Matcher {
	return checkpoint.NewMatcher(prefixes...)
}

// ShapesOf extracts the shapes of tensors.
func ShapesOf(values map[string]*tensor.Tensor) Shapes {
	return checkpoint.ShapesOf(values)
}

// Apply copies every planned snapshot value into live.
func Apply(plan *LoadPlan, snapshot, live map[string]*tensor.Tensor) error {
	return checkpoint.Apply(plan, snapshot, live)
}

// LoadModel matches snapshot against model and copies the matched values.
func LoadModel(model nn.Module, snapshot map[string]*tensor.Tensor, opts LoadOptions) (*LoadPlan, error) {
	return checkpoint.LoadModel(model, snapshot, opts)
}

// ReadSafeTensorsShapes reads tensor shapes and metadata without loading data.
func ReadSafeTensorsShapes(path string) (Shapes, map[string]string, error) {
	return checkpoint.ReadSafeTensorsShapes(path)
}

// LoadSafeTensors reads every F32 tensor of a SafeTensors file.
func LoadSafeTensors(path string) (map[string]*tensor.Tensor, error) {
	return checkpoint.LoadSafeTensors(path)
}

// WriteSafeTensors writes tensors as F32 in SafeTensors format.
func WriteSafeTensors(path string, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	return checkpoint.WriteSafeTensors(path, tensors, metadata)
}
