package compression

import (
	"fmt"
	"sort"

	"github.com/born-ml/compress/internal/tensor"
)

// InitKind names a kind of data-dependent initialization.
type InitKind string

// Known initialization kinds.
const (
	// InitRange calibrates quantization ranges from activation statistics.
	InitRange InitKind = "range-init"

	// InitPrecision chooses per-layer bitwidths by criterion sensitivity.
	InitPrecision InitKind = "precision-init"
)

// DataLoader yields calibration batches.
type DataLoader interface {
	// NumBatches returns the number of available batches.
	NumBatches() int

	// Batch returns inputs and targets of batch i (0 <= i < NumBatches()).
	Batch(i int) (inputs, targets *tensor.Tensor, err error)
}

// Criterion scores model outputs against targets.
type Criterion interface {
	Loss(outputs, targets *tensor.Tensor) (float64, error)
}

// CriterionFunc adapts a function to Criterion.
type CriterionFunc func(outputs, targets *tensor.Tensor) (float64, error)

// Loss calls f.
func (f CriterionFunc) Loss(outputs, targets *tensor.Tensor) (float64, error) {
	return f(outputs, targets)
}

// MeanSquaredError is a Criterion computing mean((outputs - targets)^2).
var MeanSquaredError = CriterionFunc(func(outputs, targets *tensor.Tensor) (float64, error) {
	if !outputs.Shape().Equal(targets.Shape()) {
		return 0, fmt.Errorf("mse: shape mismatch %v vs %v", outputs.Shape(), targets.Shape())
	}
	if outputs.NumElements() == 0 {
		return 0, nil
	}
	var sum float64
	t := targets.Data()
	for i, v := range outputs.Data() {
		d := float64(v - t[i])
		sum += d * d
	}
	return sum / float64(outputs.NumElements()), nil
})

// Batch is one in-memory calibration batch.
type Batch struct {
	Inputs  *tensor.Tensor
	Targets *tensor.Tensor
}

// SliceLoader is a DataLoader over in-memory batches.
type SliceLoader []Batch

// NumBatches returns len(l).
func (l SliceLoader) NumBatches() int {
	return len(l)
}

// Batch returns batch i.
func (l SliceLoader) Batch(i int) (*tensor.Tensor, *tensor.Tensor, error) {
	if i < 0 || i >= len(l) {
		return nil, nil, fmt.Errorf("batch index %d out of range [0, %d)", i, len(l))
	}
	return l[i].Inputs, l[i].Targets, nil
}

// InitEntry is a calibration resource: a data source and a criterion.
type InitEntry struct {
	Loader    DataLoader
	Criterion Criterion
}

// InitRegistry holds calibration resources by initialization kind.
//
// It is filled before wrapping and consumed by Wrap, which seals it;
// a sealed registry is immutable.
type InitRegistry struct {
	entries map[InitKind]InitEntry
	sealed  bool
}

// NewInitRegistry creates an empty registry.
func NewInitRegistry() *InitRegistry {
	return &InitRegistry{entries: make(map[InitKind]InitEntry)}
}

// Attach registers a calibration resource under kind, replacing any previous one.
// The criterion may be nil for kinds that only need data.
func (r *InitRegistry) Attach(kind InitKind, loader DataLoader, criterion Criterion) error {
	if r.sealed {
		return fmt.Errorf("attach %q: %w", kind, ErrRegistrySealed)
	}
	if loader == nil {
		return fmt.Errorf("attach %q: nil data loader", kind)
	}
	r.entries[kind] = InitEntry{Loader: loader, Criterion: criterion}
	return nil
}

// Lookup returns the resource attached under kind. A nil registry holds nothing.
func (r *InitRegistry) Lookup(kind InitKind) (InitEntry, bool) {
	if r == nil {
		return InitEntry{}, false
	}
	e, ok := r.entries[kind]
	return e, ok
}

// Kinds returns the attached kinds, sorted.
func (r *InitRegistry) Kinds() []InitKind {
	if r == nil {
		return nil
	}
	kinds := make([]InitKind, 0, len(r.entries))
	for k := range r.entries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Sealed reports whether the registry has been consumed.
func (r *InitRegistry) Sealed() bool {
	return r != nil && r.sealed
}

func (r *InitRegistry) seal() {
	if r != nil {
		r.sealed = true
	}
}
