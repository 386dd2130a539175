package compression

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/compress/internal/checkpoint"
	"github.com/born-ml/compress/internal/logfields"
	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// WrapOption configures Wrap.
type WrapOption func(*wrapOptions)

type wrapOptions struct {
	registry       *Registry
	logger         *slog.Logger
	recorder       ProgressRecorder
	resume         map[string]*tensor.Tensor
	resumePrefixes []string
	schedule       *ScheduleSnapshot
}

// WithRegistry sets the algorithm registry. It is required.
func WithRegistry(r *Registry) WrapOption {
	return func(o *wrapOptions) { o.registry = r }
}

// WithLogger sets the logger used by wrapping and by the composite controller.
func WithLogger(l *slog.Logger) WrapOption {
	return func(o *wrapOptions) { o.logger = l }
}

// WithRecorder sets the recorder observing composite scheduler transitions.
func WithRecorder(r ProgressRecorder) WrapOption {
	return func(o *wrapOptions) { o.recorder = r }
}

// WithResumeSnapshot resumes from snapshot: after wrapping, the snapshot
// is matched strictly against the compressed model and copied into it.
// prefixes overrides the structural prefixes stripped during matching.
func WithResumeSnapshot(snapshot map[string]*tensor.Tensor, prefixes ...string) WrapOption {
	return func(o *wrapOptions) {
		o.resume = snapshot
		o.resumePrefixes = prefixes
	}
}

// WithScheduleSnapshot restores scheduler positions saved by
// CompositeScheduler.Snapshot, so a resumed run continues its schedules.
func WithScheduleSnapshot(snap ScheduleSnapshot) WrapOption {
	return func(o *wrapOptions) { o.schedule = &snap }
}

// Wrap applies every configured algorithm to model in declaration order
// and returns the compressed model with its CompositeController.
//
// All algorithm names and mandatory calibration resources are validated
// before the model is transformed. The configuration's InitRegistry is
// sealed once validation passes. Any error aborts the whole operation and
// no model is returned; ops inserted into the input model's Linear layers
// are removed again, so the same model can be wrapped once more.
func Wrap(model nn.Module, cfg *Config, opts ...WrapOption) (nn.Module, *CompositeController, error) {
	o := wrapOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if model == nil {
		return nil, nil, fmt.Errorf("wrap: nil model")
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("wrap: nil configuration")
	}
	if o.registry == nil {
		return nil, nil, fmt.Errorf("wrap: %w", ErrNoRegistry)
	}

	plans, err := planBuild(cfg, o.registry)
	if err != nil {
		return nil, nil, err
	}
	cfg.Init().seal()

	restore := nn.SaveOpChains(model)
	compressed, composite, err := build(model, plans, o)
	if err != nil {
		restore()
		return nil, nil, err
	}

	composite.logger.Info("Model wrapped for compression",
		logfields.Algorithms(cfg.Names()),
		logfields.Count(len(compressed.Parameters())))
	return compressed, composite, nil
}

// build runs the planned builders in order, then applies the resume
// snapshot and schedule positions.
func build(model nn.Module, plans []buildPlan, o wrapOptions) (*nn.Wrapper, *CompositeController, error) {
	controllers := make([]Controller, 0, len(plans))
	for _, p := range plans {
		ctx := BuildContext{
			Name:   p.entry.Name,
			Params: p.entry.Params,
			Model:  model,
			Logger: o.logger.With(logfields.Algorithm(p.entry.Name)),
			init:   p.init,
		}
		transformed, ctrl, err := p.builder.Build(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("build %q: %w", p.entry.Name, err)
		}
		if transformed == nil || ctrl == nil {
			return nil, nil, fmt.Errorf("build %q: builder returned no model or controller", p.entry.Name)
		}
		if ctrl.Name() != p.entry.Name {
			return nil, nil, fmt.Errorf("build %q: controller reports name %q", p.entry.Name, ctrl.Name())
		}
		model = transformed
		controllers = append(controllers, ctrl)
	}

	compressed := nn.NewWrapper(nn.CompressedPrefix, model)

	composite, err := NewCompositeController(o.logger, o.recorder, controllers...)
	if err != nil {
		return nil, nil, err
	}

	if o.resume != nil {
		if _, err := checkpoint.LoadModel(compressed, o.resume, checkpoint.LoadOptions{
			Strict:   true,
			Prefixes: o.resumePrefixes,
		}); err != nil {
			return nil, nil, fmt.Errorf("resume: %w", err)
		}
	}
	if o.schedule != nil {
		if err := composite.CompositeScheduler().Restore(*o.schedule); err != nil {
			return nil, nil, fmt.Errorf("resume: %w", err)
		}
	}
	return compressed, composite, nil
}

type buildPlan struct {
	entry   AlgorithmConfig
	builder Builder
	init    map[InitKind]InitEntry
}

// planBuild resolves builders and calibration resources for every entry
// without touching the model.
func planBuild(cfg *Config, registry *Registry) ([]buildPlan, error) {
	entries := cfg.Algorithms()
	for _, e := range entries {
		if _, ok := registry.Lookup(e.Name); !ok {
			return nil, &UnknownAlgorithmError{Name: e.Name, Known: registry.Names()}
		}
	}

	plans := make([]buildPlan, 0, len(entries))
	for _, e := range entries {
		builder, _ := registry.Lookup(e.Name)
		reqs, err := builder.Requirements(e.Params)
		if err != nil {
			return nil, fmt.Errorf("algorithm %q: %w", e.Name, err)
		}
		resources := make(map[InitKind]InitEntry, len(reqs))
		for _, req := range reqs {
			entry, ok := cfg.Init().Lookup(req.Kind)
			if !ok {
				if req.Mandatory {
					return nil, &MissingInitializationError{Algorithm: e.Name, Kind: req.Kind}
				}
				continue
			}
			resources[req.Kind] = entry
		}
		plans = append(plans, buildPlan{entry: e, builder: builder, init: resources})
	}
	return plans, nil
}
