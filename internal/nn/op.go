package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/compress/internal/tensor"
)

// Op is an operation inserted into a layer to simulate compression.
//
// Weight ops transform the layer's weight before it is used; input ops
// transform the activations entering the layer. An op's parameters are
// exported through the owning layer's state dict.
type Op interface {
	// Apply returns the transformed tensor. It must not modify x.
	Apply(x *tensor.Tensor) (*tensor.Tensor, error)

	// Parameters returns the op's own parameters.
	Parameters() []*Parameter
}

// applyOps runs x through ops in order.
func applyOps(ops []Op, x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for i, op := range ops {
		x, err = op.Apply(x)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
	}
	return x, nil
}

// opsStateDict exports op parameters as "<group>.<index>.<param>".
func opsStateDict(dst map[string]*tensor.Tensor, group string, ops []Op) {
	for i, op := range ops {
		for _, p := range op.Parameters() {
			dst[JoinPath(group, strconv.Itoa(i), p.Name())] = p.Tensor()
		}
	}
}

// loadOps is the inverse of opsStateDict.
func loadOps(stateDict map[string]*tensor.Tensor, group string, ops []Op) error {
	for i, op := range ops {
		for _, p := range op.Parameters() {
			key := JoinPath(group, strconv.Itoa(i), p.Name())
			src, ok := stateDict[key]
			if !ok {
				return fmt.Errorf("missing %s in state dict", key)
			}
			if err := loadInto(key, p.Tensor(), src); err != nil {
				return err
			}
		}
	}
	return nil
}

func opsParameters(ops []Op) []*Parameter {
	var params []*Parameter
	for _, op := range ops {
		params = append(params, op.Parameters()...)
	}
	return params
}
