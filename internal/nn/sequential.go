package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/compress/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Children are
// named; NewSequential names them by index ("0", "1", ...) while
// NewNamedSequential keeps caller-supplied names.
//
// Example:
//
//	model := nn.NewNamedSequential(
//	    nn.Child{Name: "fc1", Module: nn.NewLinear(784, 128)},
//	    nn.Child{Name: "act", Module: nn.NewReLU()},
//	    nn.Child{Name: "fc2", Module: nn.NewLinear(128, 10)},
//	)
type Sequential struct {
	children []Child
}

// NewSequential creates a Sequential container with index-named children.
func NewSequential(modules ...Module) *Sequential {
	s := &Sequential{}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// NewNamedSequential creates a Sequential container with named children.
//
// Panics if two children share a name.
func NewNamedSequential(children ...Child) *Sequential {
	seen := make(map[string]bool, len(children))
	for _, c := range children {
		if seen[c.Name] {
			panic(fmt.Sprintf("Sequential: duplicate child name %q", c.Name))
		}
		seen[c.Name] = true
	}
	return &Sequential{children: append([]Child(nil), children...)}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	output := input
	for _, c := range s.children {
		var err error
		output, err = c.Module.Forward(output)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return output, nil
}

// Parameters returns all parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, c := range s.children {
		params = append(params, c.Module.Parameters()...)
	}
	return params
}

// Add appends a module named after its index.
func (s *Sequential) Add(module Module) {
	s.children = append(s.children, Child{Name: strconv.Itoa(len(s.children)), Module: module})
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.children)
}

// Children returns the named submodules in order.
func (s *Sequential) Children() []Child {
	return s.children
}

// StateDict returns child state dicts prefixed with the child name.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	for _, c := range s.children {
		prefixStateDict(stateDict, c.Name, c.Module.StateDict())
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary keyed by child name.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	for _, c := range s.children {
		sub := subStateDict(stateDict, c.Name)
		if len(sub) == 0 {
			continue
		}
		if err := c.Module.LoadStateDict(sub); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}
