package checkpoint

import (
	"strings"

	"github.com/born-ml/compress/internal/nn"
)

// DefaultPrefixes are stripped in this order: data-parallel replication
// first, then compression wrapping.
var DefaultPrefixes = []string{
	nn.ReplicatedPrefix + ".",
	nn.CompressedPrefix + ".",
}

// Normalizer strips an ordered list of structural prefixes from identifiers.
//
// On each round the first listed prefix that matches is removed; rounds
// repeat until none matches, so nested wrappers in any order are undone.
// A prefix is never stripped if nothing would remain. Normalization is
// idempotent.
type Normalizer struct {
	prefixes []string
}

// NewNormalizer creates a Normalizer. With no prefixes it uses DefaultPrefixes.
// Empty prefixes are ignored.
func NewNormalizer(prefixes ...string) *Normalizer {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	kept := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &Normalizer{prefixes: kept}
}

// Prefixes returns the prefixes in stripping order.
func (n *Normalizer) Prefixes() []string {
	return append([]string(nil), n.prefixes...)
}

// Normalize strips known prefixes from id until none applies.
func (n *Normalizer) Normalize(id string) string {
	for {
		stripped := false
		for _, p := range n.prefixes {
			if len(id) > len(p) && strings.HasPrefix(id, p) {
				id = id[len(p):]
				stripped = true
				break
			}
		}
		if !stripped {
			return id
		}
	}
}
