package checkpoint

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/compress/internal/logfields"
	"github.com/born-ml/compress/internal/nn"
	"github.com/born-ml/compress/internal/tensor"
)

// Apply copies every planned snapshot value into the live tensors.
//
// live is typically model.StateDict(), whose tensors alias the model's
// parameters. Entries are applied in sorted model-identifier order; the
// first failure aborts.
func Apply(plan *LoadPlan, snapshot, live map[string]*tensor.Tensor) error {
	for _, modelID := range plan.ModelIDs() {
		snapID := plan.Entries[modelID]
		src, ok := snapshot[snapID]
		if !ok {
			return fmt.Errorf("apply: snapshot has no value for %q", snapID)
		}
		dst, ok := live[modelID]
		if !ok {
			return fmt.Errorf("apply: model has no parameter %q", modelID)
		}
		if err := dst.CopyFrom(src); err != nil {
			return fmt.Errorf("apply %q <- %q: %w", modelID, snapID, err)
		}
	}
	return nil
}

// LoadOptions configures LoadModel.
type LoadOptions struct {
	Strict   bool
	Prefixes []string     // Structural prefixes; DefaultPrefixes if empty
	Logger   *slog.Logger // Receives the lenient-mode mismatch warning
}

// LoadModel matches snapshot against model and copies the matched values.
//
// In lenient mode a non-empty mismatch is logged at Warn level with every
// unmatched identifier and the plan is still applied.
func LoadModel(model nn.Module, snapshot map[string]*tensor.Tensor, opts LoadOptions) (*LoadPlan, error) {
	live := model.StateDict()
	plan, err := NewMatcher(opts.Prefixes...).Match(ShapesOf(snapshot), ShapesOf(live), opts.Strict)
	if err != nil {
		return nil, err
	}

	if !plan.Complete() && opts.Logger != nil {
		opts.Logger.Warn("Partial checkpoint load",
			logfields.Count(len(plan.Entries)),
			logfields.UnmatchedInSnapshot(plan.UnmatchedSnapshotIDs()),
			logfields.UnmatchedInModel(plan.UnmatchedModelIDs()))
	}

	if err := Apply(plan, snapshot, live); err != nil {
		return nil, err
	}
	return plan, nil
}
