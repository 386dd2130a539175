package checkpoint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/compress/internal/sets"
	"github.com/born-ml/compress/internal/tensor"
)

// Shapes maps identifiers to value shapes.
type Shapes map[string]tensor.Shape

// Shaped is anything that reports a shape (tensors, safetensors entries).
type Shaped interface {
	Shape() tensor.Shape
}

// ShapesOf extracts the shapes of values.
func ShapesOf[T Shaped](values map[string]T) Shapes {
	out := make(Shapes, len(values))
	for id, v := range values {
		out[id] = v.Shape()
	}
	return out
}

// MismatchReason explains why a model identifier was not matched.
type MismatchReason string

// Mismatch reasons.
const (
	ReasonMissing MismatchReason = "missing_in_snapshot"
	ReasonShape   MismatchReason = "shape_mismatch"
)

// Mismatch describes one unmatched model identifier.
type Mismatch struct {
	Reason        MismatchReason
	SnapshotID    string       // Set for ReasonShape
	ModelShape    tensor.Shape // Set for ReasonShape
	SnapshotShape tensor.Shape // Set for ReasonShape
}

// String renders the reason for logs and errors.
func (m Mismatch) String() string {
	if m.Reason == ReasonShape {
		return fmt.Sprintf("%s: model %v vs snapshot %q %v", m.Reason, m.ModelShape, m.SnapshotID, m.SnapshotShape)
	}
	return string(m.Reason)
}

// LoadPlan is the result of matching a snapshot against a model.
type LoadPlan struct {
	// Entries maps model identifier -> snapshot identifier.
	Entries map[string]string

	// UnmatchedInSnapshot holds snapshot identifiers with no model counterpart.
	UnmatchedInSnapshot sets.Set[string]

	// UnmatchedInModel holds model identifiers that will not be loaded.
	UnmatchedInModel map[string]Mismatch
}

// Complete reports whether both unmatched sets are empty.
func (p *LoadPlan) Complete() bool {
	return len(p.UnmatchedInSnapshot) == 0 && len(p.UnmatchedInModel) == 0
}

// ModelIDs returns the matched model identifiers, sorted.
func (p *LoadPlan) ModelIDs() []string {
	return sortedKeys(p.Entries)
}

// UnmatchedSnapshotIDs returns the unmatched snapshot identifiers, sorted.
func (p *LoadPlan) UnmatchedSnapshotIDs() []string {
	return sets.Sorted(p.UnmatchedInSnapshot)
}

// UnmatchedModelIDs returns the unmatched model identifiers, sorted.
func (p *LoadPlan) UnmatchedModelIDs() []string {
	return sortedKeys(p.UnmatchedInModel)
}

// Warning enumerates every unmatched identifier on both sides, or returns
// "" when the plan is complete.
func (p *LoadPlan) Warning() string {
	if p.Complete() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "partial checkpoint load: %d of %d model parameters matched",
		len(p.Entries), len(p.Entries)+len(p.UnmatchedInModel))
	writeUnmatched(&b, p.UnmatchedInSnapshot, p.UnmatchedInModel)
	return b.String()
}

// Matcher matches snapshots against models under a Normalizer.
// It holds no state between calls.
type Matcher struct {
	normalizer *Normalizer
}

// NewMatcher creates a Matcher stripping prefixes (DefaultPrefixes if none).
func NewMatcher(prefixes ...string) *Matcher {
	return &Matcher{normalizer: NewNormalizer(prefixes...)}
}

// Normalizer returns the matcher's normalizer.
func (m *Matcher) Normalizer() *Normalizer {
	return m.normalizer
}

// Match computes the LoadPlan of snapshot against model.
//
// Errors:
//   - *AmbiguousMatchError if two identifiers on one side normalize alike
//   - *ResumeMismatchError if strict and either unmatched set is non-empty
//
// In lenient mode the plan may carry unmatched identifiers; the caller
// must surface them (see LoadPlan.Warning).
func (m *Matcher) Match(snapshot, model Shapes, strict bool) (*LoadPlan, error) {
	snapIndex, err := m.index(SideSnapshot, snapshot)
	if err != nil {
		return nil, err
	}
	modelIndex, err := m.index(SideModel, model)
	if err != nil {
		return nil, err
	}

	plan := &LoadPlan{
		Entries:             make(map[string]string),
		UnmatchedInSnapshot: sets.New[string](),
		UnmatchedInModel:    make(map[string]Mismatch),
	}

	for norm, modelID := range modelIndex {
		snapID, ok := snapIndex[norm]
		if !ok {
			plan.UnmatchedInModel[modelID] = Mismatch{Reason: ReasonMissing}
			continue
		}
		modelShape, snapShape := model[modelID], snapshot[snapID]
		if !snapShape.Compatible(modelShape) {
			plan.UnmatchedInModel[modelID] = Mismatch{
				Reason:        ReasonShape,
				SnapshotID:    snapID,
				ModelShape:    modelShape.Clone(),
				SnapshotShape: snapShape.Clone(),
			}
			continue
		}
		plan.Entries[modelID] = snapID
	}

	for norm, snapID := range snapIndex {
		if _, ok := modelIndex[norm]; !ok {
			plan.UnmatchedInSnapshot.Add(snapID)
		}
	}

	if strict && !plan.Complete() {
		return nil, &ResumeMismatchError{
			UnmatchedInSnapshot: plan.UnmatchedInSnapshot,
			UnmatchedInModel:    plan.UnmatchedInModel,
		}
	}
	return plan, nil
}

// index builds normalized -> original for one side. Identifiers are
// visited in sorted order so that the reported collision does not depend
// on map iteration order.
func (m *Matcher) index(side Side, shapes Shapes) (map[string]string, error) {
	ids := sortedKeys(shapes)
	index := make(map[string]string, len(ids))
	for _, id := range ids {
		norm := m.normalizer.Normalize(id)
		if prev, ok := index[norm]; ok {
			return nil, &AmbiguousMatchError{
				Side:        side,
				Normalized:  norm,
				Identifiers: collisions(ids, norm, m.normalizer, prev),
			}
		}
		index[norm] = id
	}
	return index, nil
}

// collisions lists every identifier normalizing to norm.
func collisions(ids []string, norm string, n *Normalizer, first string) []string {
	out := []string{first}
	for _, id := range ids {
		if id != first && n.Normalize(id) == norm {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
