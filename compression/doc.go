// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package compression orchestrates model compression algorithms during
// training.
//
// # Overview
//
// A configuration lists algorithms in order. Wrap validates it, lets every
// algorithm transform the model in turn and returns the transformed model
// together with a CompositeController, the single handle a training loop
// needs:
//
//	cfg, err := compression.NewConfig(
//	    compression.AlgorithmConfig{Name: "quantization", Params: compression.Params{"bits": 8}},
//	    compression.AlgorithmConfig{Name: "magnitude_sparsity", Params: compression.Params{"sparsity_target": 0.5}},
//	)
//	model, ctrl, err := compression.Wrap(model, cfg)
//
//	for epoch := 0; epoch < epochs; epoch++ {
//	    for step := 0; step < stepsPerEpoch; step++ {
//	        loss := taskLoss + ctrl.Loss()
//	        // backward, optimizer step
//	        ctrl.Scheduler().Step()
//	    }
//	    ctrl.Scheduler().EpochStep()
//	    log.Println(ctrl.Statistics())
//	}
//
// # Built-in Algorithms
//
//   - quantization: fake quantization of weights and layer inputs
//   - magnitude_sparsity: magnitude-based weight pruning
//   - rb_sparsity: learned stochastic masks with a density loss
//
// Algorithms that need calibration data declare it; attach the data to an
// InitRegistry before wrapping.
package compression
