package quantization

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/compress/internal/compression"
	"github.com/born-ml/compress/internal/nn"
)

// InitializeRanges runs up to steps calibration batches through model with
// the given quantizers observing, then adopts the observed extremes as
// their ranges. It returns the number of batches used.
func InitializeRanges(model nn.Module, sites []Site, loader compression.DataLoader, steps int) (int, error) {
	if loader == nil {
		return 0, fmt.Errorf("nil data loader")
	}
	n := min(steps, loader.NumBatches())
	if n == 0 {
		return 0, fmt.Errorf("data loader has no batches")
	}

	for _, s := range sites {
		if err := s.Quantizer.StartObserving(); err != nil {
			return 0, fmt.Errorf("layer %s: %w", s.Path, err)
		}
	}

	var runErr error
	for i := 0; i < n; i++ {
		inputs, _, err := loader.Batch(i)
		if err != nil {
			runErr = fmt.Errorf("batch %d: %w", i, err)
			break
		}
		if _, err := model.Forward(inputs); err != nil {
			runErr = fmt.Errorf("batch %d: %w", i, err)
			break
		}
	}

	// Observation always ends, even after a failed batch.
	for _, s := range sites {
		if _, err := s.Quantizer.StopObserving(); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("layer %s: %w", s.Path, err))
		}
	}
	if runErr != nil {
		return 0, runErr
	}
	return n, nil
}

// InitializePrecision picks a bitwidth per weight quantizer.
//
// The baseline is the criterion loss with every quantizer disabled. Layers
// are visited in order; each is quantized alone at every candidate, from
// the narrowest up, and keeps the first candidate whose loss stays within
// tolerance (relative) of the baseline, or the widest candidate otherwise.
// All quantizers are left disabled. The chosen bitwidths are returned in
// site order.
func InitializePrecision(model nn.Module, sites []Site, entry compression.InitEntry, candidates []int, tolerance float64) ([]int, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate bitwidths")
	}
	if entry.Loader == nil || entry.Criterion == nil {
		return nil, fmt.Errorf("precision init needs both a data loader and a criterion")
	}

	for _, l := range nn.Collect[*nn.Linear](model) {
		disable(l.Module.WeightOps())
		disable(l.Module.InputOps())
	}

	baseline, err := evaluate(model, entry)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	limit := baseline + tolerance*math.Abs(baseline) + 1e-12

	chosen := make([]int, len(sites))
	for i, s := range sites {
		chosen[i] = candidates[len(candidates)-1]
		s.Quantizer.SetEnabled(true)
		for _, bits := range candidates {
			if err := s.Quantizer.SetBits(bits); err != nil {
				return nil, err
			}
			loss, err := evaluate(model, entry)
			if err != nil {
				s.Quantizer.SetEnabled(false)
				return nil, fmt.Errorf("layer %s at %d bits: %w", s.Path, bits, err)
			}
			if loss <= limit {
				chosen[i] = bits
				break
			}
		}
		if err := s.Quantizer.SetBits(chosen[i]); err != nil {
			return nil, err
		}
		s.Quantizer.SetEnabled(false)
	}
	return chosen, nil
}

// evaluate returns the mean criterion loss over every batch of entry.
func evaluate(model nn.Module, entry compression.InitEntry) (float64, error) {
	n := entry.Loader.NumBatches()
	if n == 0 {
		return 0, fmt.Errorf("data loader has no batches")
	}
	var total float64
	for i := 0; i < n; i++ {
		inputs, targets, err := entry.Loader.Batch(i)
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		if targets == nil {
			return 0, fmt.Errorf("batch %d: no targets", i)
		}
		out, err := model.Forward(inputs)
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		loss, err := entry.Criterion.Loss(out, targets)
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		total += loss
	}
	return total / float64(n), nil
}

func disable(ops []nn.Op) {
	for _, op := range ops {
		if q, ok := op.(*FakeQuantize); ok {
			q.SetEnabled(false)
		}
	}
}
