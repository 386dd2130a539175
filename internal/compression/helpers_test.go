package compression

import (
	"errors"

	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// fakeController is a minimal algorithm controller driven by a schedule.
type fakeController struct {
	BaseController
	loss        float64
	distErr     error
	conversions int
}

func newFakeController(name string, loss float64, schedule Schedule, policy StepPolicy) *fakeController {
	c := &fakeController{loss: loss}
	c.BaseController = NewBaseController(name, NewBaseScheduler(schedule, policy, nil))
	return c
}

func (c *fakeController) Loss() float64 { return c.loss }

func (c *fakeController) Statistics() Statistics {
	stats := Statistics{"loss": c.loss}
	for k, v := range c.BaseScheduler().Hyperparameters() {
		stats[k] = v
	}
	return stats
}

func (c *fakeController) Distributed() error {
	return c.RunDistributed(func() error {
		if c.distErr != nil {
			return c.distErr
		}
		c.conversions++
		return nil
	})
}

// scaleOp multiplies the weight by a trainable scalar.
type scaleOp struct {
	scale *nn.Parameter
}

func (o *scaleOp) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	out := x.Clone()
	s := o.scale.Tensor().Data()[0]
	for i := range out.Data() {
		out.Data()[i] *= s
	}
	return out, nil
}

func (o *scaleOp) Parameters() []*nn.Parameter { return []*nn.Parameter{o.scale} }

// fakeBuilder inserts a scaleOp into every Linear layer.
type fakeBuilder struct {
	name     string
	reqs     []InitRequirement
	buildErr error
	seen     []BuildContext
}

func (b *fakeBuilder) Name() string { return b.name }

func (b *fakeBuilder) Requirements(params Params) ([]InitRequirement, error) {
	if _, err := params.Float("loss", 0); err != nil {
		return nil, err
	}
	return b.reqs, nil
}

func (b *fakeBuilder) Build(ctx BuildContext) (nn.Module, Controller, error) {
	b.seen = append(b.seen, ctx)
	if b.buildErr != nil {
		return nil, nil, b.buildErr
	}
	loss, err := ctx.Params.Float("loss", 0)
	if err != nil {
		return nil, nil, err
	}
	err = nn.Walk(ctx.Model, func(_ string, m nn.Module) error {
		if l, ok := m.(*nn.Linear); ok {
			l.AddWeightOp(&scaleOp{scale: nn.NewParameter("scale", tensor.Full(tensor.Shape{1}, 1))})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	end, err := ctx.Params.Float("target", 0)
	if err != nil {
		return nil, nil, err
	}
	ramp := LinearRamp{Key: "level", End: end, EndEpoch: 10}
	return ctx.Model, newFakeController(ctx.Name, loss, ramp, StepContinue), nil
}

var errBoom = errors.New("boom")

func testModel() nn.Module {
	return nn.NewNamedSequential(
		nn.Child{Name: "fc1", Module: nn.NewLinear(4, 3)},
		nn.Child{Name: "act", Module: nn.NewReLU()},
		nn.Child{Name: "fc2", Module: nn.NewLinear(3, 2)},
	)
}
