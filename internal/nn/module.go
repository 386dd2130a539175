// Package nn implements the module tree that compression algorithms operate on.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named tensors, trainable or buffers
//   - Linear: Fully connected layer with weight and input op hooks
//   - ReLU: Activation
//   - Sequential: Container with named children
//   - Wrapper: Container that nests a module under a structural prefix
//
// Every module reports its state as a flat map of dotted identifiers
// ("fc1.weight", "compressed.fc1.pre_ops.0.scale"), which is what the
// checkpoint matcher reconciles against persisted snapshots.
package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/compress/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)

	// Parameters returns every parameter owned by this module and its
	// descendants, trainable parameters and buffers alike.
	Parameters() []*Parameter

	// StateDict returns identifier -> live tensor. The tensors are not
	// copies: writing into them updates the module.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict copies values from stateDict into the module.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}

// Child is a named submodule.
type Child struct {
	Name   string
	Module Module
}

// Container is a module with named submodules.
type Container interface {
	Module
	Children() []Child
}

// Walk visits m and all of its descendants depth-first in declaration order.
//
// The path passed to fn is the dotted identifier prefix of the module
// ("" for the root), matching the keys produced by StateDict.
func Walk(m Module, fn func(path string, m Module) error) error {
	return walk("", m, fn)
}

func walk(path string, m Module, fn func(string, Module) error) error {
	if err := fn(path, m); err != nil {
		return err
	}
	c, ok := m.(Container)
	if !ok {
		return nil
	}
	for _, child := range c.Children() {
		if err := walk(JoinPath(path, child.Name), child.Module, fn); err != nil {
			return err
		}
	}
	return nil
}

// Layer is a module of type T found at Path.
type Layer[T Module] struct {
	Path   string
	Module T
}

// Collect returns every module of type T in m, in Walk order.
func Collect[T Module](m Module) []Layer[T] {
	var out []Layer[T]
	_ = Walk(m, func(path string, mod Module) error {
		if t, ok := mod.(T); ok {
			out = append(out, Layer[T]{Path: path, Module: t})
		}
		return nil
	})
	return out
}

// JoinPath joins identifier segments with ".", skipping empty ones.
func JoinPath(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// ParameterShapes returns identifier -> shape for every entry in m's state dict.
func ParameterShapes(m Module) map[string]tensor.Shape {
	sd := m.StateDict()
	shapes := make(map[string]tensor.Shape, len(sd))
	for name, t := range sd {
		shapes[name] = t.Shape()
	}
	return shapes
}

// Identifiers returns the sorted state dict identifiers of m.
func Identifiers(m Module) []string {
	sd := m.StateDict()
	ids := make([]string, 0, len(sd))
	for name := range sd {
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids
}

// prefixStateDict merges child's state dict into dst under prefix.
func prefixStateDict(dst map[string]*tensor.Tensor, prefix string, child map[string]*tensor.Tensor) {
	for name, t := range child {
		dst[JoinPath(prefix, name)] = t
	}
}

// subStateDict extracts the entries under prefix, with the prefix removed.
func subStateDict(stateDict map[string]*tensor.Tensor, prefix string) map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor)
	p := prefix + "."
	for key, t := range stateDict {
		if strings.HasPrefix(key, p) {
			out[key[len(p):]] = t
		}
	}
	return out
}

// loadInto copies src into dst, validating shapes.
func loadInto(name string, dst, src *tensor.Tensor) error {
	if err := dst.CopyFrom(src); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
