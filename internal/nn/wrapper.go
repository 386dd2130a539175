package nn

import (
	"github.com/born-ml/compress/internal/tensor"
)

// Structural prefixes introduced by wrapping a model.
const (
	// CompressedPrefix nests a model that has been prepared for compression.
	CompressedPrefix = "compressed"

	// ReplicatedPrefix nests a model replicated for data-parallel training.
	ReplicatedPrefix = "module"
)

// Wrapper nests a module under a single structural prefix.
//
// Forward is delegated unchanged; only identifiers change, e.g.
// "fc1.weight" becomes "compressed.fc1.weight". Wrappers may nest.
type Wrapper struct {
	prefix string
	inner  Module
}

// NewWrapper creates a Wrapper.
func NewWrapper(prefix string, inner Module) *Wrapper {
	return &Wrapper{prefix: prefix, inner: inner}
}

// Prefix returns the identifier segment added by this wrapper.
func (w *Wrapper) Prefix() string {
	return w.prefix
}

// Unwrap returns the wrapped module.
func (w *Wrapper) Unwrap() Module {
	return w.inner
}

// Forward delegates to the wrapped module.
func (w *Wrapper) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return w.inner.Forward(input)
}

// Parameters returns the wrapped module's parameters.
func (w *Wrapper) Parameters() []*Parameter {
	return w.inner.Parameters()
}

// Children returns the wrapped module as the only child.
func (w *Wrapper) Children() []Child {
	return []Child{{Name: w.prefix, Module: w.inner}}
}

// StateDict returns the inner state dict under the wrapper prefix.
func (w *Wrapper) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	prefixStateDict(stateDict, w.prefix, w.inner.StateDict())
	return stateDict
}

// LoadStateDict strips the wrapper prefix and loads the inner module.
func (w *Wrapper) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return w.inner.LoadStateDict(subStateDict(stateDict, w.prefix))
}
