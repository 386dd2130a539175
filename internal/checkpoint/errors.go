package checkpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/compress/internal/sets"
)

// Common errors.
var (
	ErrInvalidHeader    = errors.New("invalid safetensors header")
	ErrUnsupportedDType = errors.New("unsupported dtype")
)

// Side names one of the two inputs of a match.
type Side string

// Match sides.
const (
	SideSnapshot Side = "snapshot"
	SideModel    Side = "model"
)

// AmbiguousMatchError reports two distinct identifiers on the same side
// that normalize to the same value.
type AmbiguousMatchError struct {
	Side        Side
	Normalized  string
	Identifiers []string // Sorted original identifiers
}

// Error implements the error interface.
func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous %s identifiers: %s all normalize to %q",
		e.Side, strings.Join(quoteAll(e.Identifiers), ", "), e.Normalized)
}

// ResumeMismatchError is returned by strict matching when either side
// has unmatched identifiers. It carries the complete unmatched sets.
type ResumeMismatchError struct {
	UnmatchedInSnapshot sets.Set[string]
	UnmatchedInModel    map[string]Mismatch
}

// Error implements the error interface.
func (e *ResumeMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("checkpoint does not match model structure")
	writeUnmatched(&b, e.UnmatchedInSnapshot, e.UnmatchedInModel)
	return b.String()
}

func writeUnmatched(b *strings.Builder, inSnapshot sets.Set[string], inModel map[string]Mismatch) {
	if ids := sets.Sorted(inSnapshot); len(ids) > 0 {
		fmt.Fprintf(b, "; unmatched in snapshot (%d): %s", len(ids), strings.Join(ids, ", "))
	}
	if len(inModel) > 0 {
		ids := sortedKeys(inModel)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = id + " (" + inModel[id].String() + ")"
		}
		fmt.Fprintf(b, "; unmatched in model (%d): %s", len(ids), strings.Join(parts, ", "))
	}
}

func quoteAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("%q", id)
	}
	return out
}
