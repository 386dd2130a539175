package nn

import (
	"fmt"

	"github.com/born-ml/compress/internal/parallel"
	"github.com/born-ml/compress/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = op_in(x) @ op_w(W).T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - op_w and op_in are the chains of inserted weight and input ops
//
// Inserted op parameters appear in the state dict as
// "pre_ops.<i>.<name>" (weight ops) and "input_ops.<i>.<name>".
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	weightOps   []Op
	inputOps    []Op
}

// NewLinear creates a new Linear layer.
//
// Weights are initialized using Xavier/Glorot uniform distribution.
// Biases are initialized to zeros.
func NewLinear(inFeatures, outFeatures int) *Linear {
	weightShape := tensor.Shape{outFeatures, inFeatures}
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape)),
		bias:        NewParameter("bias", tensor.New(tensor.Shape{outFeatures})),
	}
}

// Forward computes the output of the linear layer.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
//
// Large batches are split across goroutines; Forward returns only after
// every row is written.
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		return nil, fmt.Errorf("linear: expected 2D input [batch, features], got shape %v", inputShape)
	}
	if inputShape[1] != l.inFeatures {
		return nil, fmt.Errorf("linear: expected input with %d features, got %d", l.inFeatures, inputShape[1])
	}

	x, err := applyOps(l.inputOps, input)
	if err != nil {
		return nil, fmt.Errorf("linear input: %w", err)
	}
	w, err := l.EffectiveWeight()
	if err != nil {
		return nil, err
	}

	batch := inputShape[0]
	out := tensor.New(tensor.Shape{batch, l.outFeatures})
	xd, wd, od := x.Data(), w.Data(), out.Data()
	var bd []float32
	if l.bias != nil {
		bd = l.bias.Tensor().Data()
	}

	parallel.For(batch, parallel.Default(), func(b int) {
		row := xd[b*l.inFeatures : (b+1)*l.inFeatures]
		for o := 0; o < l.outFeatures; o++ {
			wrow := wd[o*l.inFeatures : (o+1)*l.inFeatures]
			var acc float32
			for i, v := range row {
				acc += v * wrow[i]
			}
			if bd != nil {
				acc += bd[o]
			}
			od[b*l.outFeatures+o] = acc
		}
	})

	return out, nil
}

// EffectiveWeight returns the weight after all inserted weight ops.
func (l *Linear) EffectiveWeight() (*tensor.Tensor, error) {
	w, err := applyOps(l.weightOps, l.weight.Tensor())
	if err != nil {
		return nil, fmt.Errorf("linear weight: %w", err)
	}
	return w, nil
}

// AddWeightOp appends op to the weight op chain and returns its index.
func (l *Linear) AddWeightOp(op Op) int {
	l.weightOps = append(l.weightOps, op)
	return len(l.weightOps) - 1
}

// AddInputOp appends op to the input op chain and returns its index.
func (l *Linear) AddInputOp(op Op) int {
	l.inputOps = append(l.inputOps, op)
	return len(l.inputOps) - 1
}

// SaveOpChains records the op chain lengths of every Linear in m and
// returns a function that truncates the chains back to them, dropping any
// op inserted since.
func SaveOpChains(m Module) (restore func()) {
	linears := Collect[*Linear](m)
	saved := make([][2]int, len(linears))
	for i, l := range linears {
		saved[i] = [2]int{len(l.Module.weightOps), len(l.Module.inputOps)}
	}
	return func() {
		for i, l := range linears {
			l.Module.truncateOps(saved[i][0], saved[i][1])
		}
	}
}

func (l *Linear) truncateOps(weight, input int) {
	if weight < len(l.weightOps) {
		clear(l.weightOps[weight:])
		l.weightOps = l.weightOps[:weight]
	}
	if input < len(l.inputOps) {
		clear(l.inputOps[input:])
		l.inputOps = l.inputOps[:input]
	}
}

// WeightOps returns the inserted weight ops in application order.
func (l *Linear) WeightOps() []Op {
	return l.weightOps
}

// InputOps returns the inserted input ops in application order.
func (l *Linear) InputOps() []Op {
	return l.inputOps
}

// Parameters returns weight, bias and all op parameters.
func (l *Linear) Parameters() []*Parameter {
	params := []*Parameter{l.weight}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	params = append(params, opsParameters(l.weightOps)...)
	return append(params, opsParameters(l.inputOps)...)
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter names to live tensors.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	stateDict["weight"] = l.weight.Tensor()
	if l.bias != nil {
		stateDict["bias"] = l.bias.Tensor()
	}
	opsStateDict(stateDict, "pre_ops", l.weightOps)
	opsStateDict(stateDict, "input_ops", l.inputOps)
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	weight, ok := stateDict["weight"]
	if !ok {
		return fmt.Errorf("missing weight in state dict")
	}
	if err := loadInto("weight", l.weight.Tensor(), weight); err != nil {
		return err
	}

	if l.bias != nil {
		bias, ok := stateDict["bias"]
		if !ok {
			return fmt.Errorf("missing bias in state dict")
		}
		if err := loadInto("bias", l.bias.Tensor(), bias); err != nil {
			return err
		}
	}

	if err := loadOps(stateDict, "pre_ops", l.weightOps); err != nil {
		return err
	}
	return loadOps(stateDict, "input_ops", l.inputOps)
}
