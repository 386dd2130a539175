// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compression_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/compress/checkpoint"
	"github.com/born-ml/compress/compression"
	"github.com/born-ml/compress/nn"
	"github.com/born-ml/compress/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMLP() nn.Module {
	return nn.NewNamedSequential(
		nn.Child{Name: "fc1", Module: nn.NewLinear(4, 3)},
		nn.Child{Name: "act", Module: nn.NewReLU()},
		nn.Child{Name: "fc2", Module: nn.NewLinear(3, 2)},
	)
}

func newConfig(t *testing.T) *compression.Config {
	t.Helper()
	cfg, err := compression.NewConfig(
		compression.AlgorithmConfig{Name: compression.Quantization, Params: compression.Params{
			"bits":                    8,
			"weights_start_epoch":     0,
			"activations_start_epoch": 1,
			"initializer": map[string]any{
				"range": map[string]any{"num_init_steps": 1},
			},
		}},
		compression.AlgorithmConfig{Name: compression.MagnitudeSparsity, Params: compression.Params{
			"schedule":              "linear",
			"sparsity_init":         0.0,
			"sparsity_target":       0.5,
			"sparsity_target_epoch": 2,
		}},
	)
	require.NoError(t, err)

	inputs, err := tensor.FromSlice([]float32{1, -2, 3, -4, 0.5, 0.25, -1, 2}, tensor.Shape{2, 4})
	require.NoError(t, err)
	reg := compression.NewInitRegistry()
	require.NoError(t, reg.Attach(compression.InitRange, compression.SliceLoader{{Inputs: inputs}}, nil))
	return cfg.WithInit(reg)
}

func TestDefaultRegistry(t *testing.T) {
	r := compression.DefaultRegistry()
	assert.Equal(t, []string{"magnitude_sparsity", "quantization", "rb_sparsity"}, r.Names())

	// Each call returns an independent registry.
	assert.NotSame(t, r, compression.DefaultRegistry())
}

func TestWrapTrainingLoop(t *testing.T) {
	model, ctrl, err := compression.Wrap(newMLP(), newConfig(t))
	require.NoError(t, err)

	for _, id := range nn.Identifiers(model) {
		assert.True(t, strings.HasPrefix(id, nn.CompressedPrefix+"."), id)
	}
	names := make([]string, 0, 2)
	for _, c := range ctrl.Controllers() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{compression.Quantization, compression.MagnitudeSparsity}, names)

	stats := ctrl.Statistics()
	assert.InDelta(t, 1, stats[compression.Quantization]["weights_enabled"], 0)
	assert.InDelta(t, 0, stats[compression.Quantization]["activations_enabled"], 0)
	assert.InDelta(t, 0, stats[compression.MagnitudeSparsity]["sparsity_level"], 1e-12)

	for range 2 {
		for range 3 {
			assert.InDelta(t, 0, ctrl.Loss(), 0)
			ctrl.Scheduler().Step()
		}
		ctrl.Scheduler().EpochStep()
	}

	stats = ctrl.Statistics()
	assert.InDelta(t, 1, stats[compression.Quantization]["activations_enabled"], 0)
	assert.InDelta(t, 0.5, stats[compression.MagnitudeSparsity]["sparsity_level"], 1e-9)
	assert.Equal(t, compression.State{Step: 6, Epoch: 2}, ctrl.Scheduler().State())

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 4})
	require.NoError(t, err)
	out, err := model.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2}, out.Shape())
}

func TestDistributedBeforeTraining(t *testing.T) {
	_, ctrl, err := compression.Wrap(newMLP(), newConfig(t))
	require.NoError(t, err)

	require.NoError(t, ctrl.Distributed())
	assert.InDelta(t, 1, ctrl.Statistics()[compression.Quantization]["distributed"], 0)

	var invalid *compression.InvalidStateError
	require.ErrorAs(t, ctrl.Distributed(), &invalid)

	_, late, err := compression.Wrap(newMLP(), newConfig(t))
	require.NoError(t, err)
	late.Scheduler().Step()

	var setup *compression.DistributedSetupError
	require.ErrorAs(t, late.Distributed(), &setup)
	assert.Equal(t, compression.Quantization, setup.Algorithm)
}

func TestWrapUnknownAlgorithm(t *testing.T) {
	cfg, err := compression.NewConfig(compression.AlgorithmConfig{Name: "pruning"})
	require.NoError(t, err)

	_, _, err = compression.Wrap(newMLP(), cfg)
	var unknown *compression.UnknownAlgorithmError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "pruning", unknown.Name)
	assert.Contains(t, unknown.Known, compression.RBSparsity)
}

func TestWrapMissingCalibrationData(t *testing.T) {
	cfg, err := compression.NewConfig(compression.AlgorithmConfig{Name: compression.Quantization, Params: compression.Params{
		"initializer": map[string]any{"range": map[string]any{"num_init_steps": 4}},
	}})
	require.NoError(t, err)

	_, _, err = compression.Wrap(newMLP(), cfg)
	var missing *compression.MissingInitializationError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, compression.InitRange, missing.Kind)
}

func TestWrapResumesFromReplicatedSnapshot(t *testing.T) {
	trained, ctrl, err := compression.Wrap(newMLP(), newConfig(t))
	require.NoError(t, err)
	for range 3 {
		ctrl.Scheduler().EpochStep()
	}

	// A data-parallel run saves identifiers under "module.".
	saved := make(map[string]*tensor.Tensor)
	for id, v := range trained.StateDict() {
		saved[nn.ReplicatedPrefix+"."+id] = v.Clone()
	}
	path := filepath.Join(t.TempDir(), "epoch_3.safetensors")
	require.NoError(t, checkpoint.WriteSafeTensors(path, saved, map[string]string{"epoch": "3"}))

	snapshot, err := checkpoint.LoadSafeTensors(path)
	require.NoError(t, err)
	resumed, _, err := compression.Wrap(newMLP(), newConfig(t),
		compression.WithResumeSnapshot(snapshot),
		compression.WithScheduleSnapshot(ctrl.CompositeScheduler().Snapshot()))
	require.NoError(t, err)

	want := trained.StateDict()
	for id, got := range resumed.StateDict() {
		require.Contains(t, want, id)
		assert.Equal(t, want[id].Data(), got.Data(), id)
	}
}
