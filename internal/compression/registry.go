package compression

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/born-ml/compress/internal/nn"
)

// InitRequirement declares a calibration resource an algorithm consumes.
type InitRequirement struct {
	Kind InitKind

	// Mandatory requirements fail wrapping when the resource is absent;
	// optional ones are used only if attached.
	Mandatory bool
}

// BuildContext is everything a Builder receives for one algorithm entry.
type BuildContext struct {
	Name   string
	Params Params
	Model  nn.Module
	Logger *slog.Logger

	init map[InitKind]InitEntry
}

// InitEntry returns the calibration resource of kind, if the algorithm
// declared it and it was attached.
func (c BuildContext) InitEntry(kind InitKind) (InitEntry, bool) {
	e, ok := c.init[kind]
	return e, ok
}

// Builder constructs one compression algorithm.
//
// Requirements is called for every entry before any model is touched, so
// configuration errors surface before transformation. Build inserts the
// algorithm's simulated-compression ops into ctx.Model and returns the
// transformed model with the algorithm's controller.
type Builder interface {
	Name() string
	Requirements(params Params) ([]InitRequirement, error)
	Build(ctx BuildContext) (nn.Module, Controller, error)
}

// Registry maps algorithm names to builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates a registry holding builders.
func NewRegistry(builders ...Builder) (*Registry, error) {
	r := &Registry{builders: make(map[string]Builder, len(builders))}
	for _, b := range builders {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds b under b.Name().
func (r *Registry) Register(b Builder) error {
	if b == nil {
		return fmt.Errorf("register: nil builder")
	}
	name := b.Name()
	if name == "" {
		return fmt.Errorf("register: builder with empty name")
	}
	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateAlgorithm)
	}
	r.builders[name] = b
	return nil
}

// Lookup returns the builder registered under name.
func (r *Registry) Lookup(name string) (Builder, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.builders[name]
	return b, ok
}

// Names returns the registered algorithm names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
