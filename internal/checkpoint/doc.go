// Package checkpoint reconciles persisted parameter snapshots with a live,
// possibly restructured, model.
//
// Matching is a pure function over two identifier -> shape mappings. Each
// identifier is normalized by repeatedly stripping known structural
// prefixes ("module." from data-parallel replication, "compressed." from
// compression wrapping); the normalized sets are intersected into a
// LoadPlan. Every identifier that cannot be matched is reported, never
// silently dropped:
//
//	m := checkpoint.NewMatcher()
//	plan, err := m.Match(checkpoint.ShapesOf(snapshot), nn.ParameterShapes(model), true)
//	if err != nil {
//	    var mismatch *checkpoint.ResumeMismatchError
//	    if errors.As(err, &mismatch) { ... }
//	}
//	err = checkpoint.Apply(plan, snapshot, model.StateDict())
//
// The package also reads and writes the SafeTensors format so that
// snapshots can be matched straight from disk.
package checkpoint
