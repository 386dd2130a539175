package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/born-ml/compress/checkpoint"
	"github.com/born-ml/compress/compression"
	"github.com/born-ml/compress/internal/config"
	"github.com/born-ml/compress/internal/metrics"
	"github.com/born-ml/compress/nn"
	"github.com/born-ml/compress/tensor"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

const (
	calibrationBatches   = 4
	calibrationBatchSize = 8
)

func scheduleCmd() *cli.Command {
	var (
		configPath    string
		epochs        int
		stepsPerEpoch int
		layerSpec     string
		seed          int64
		metricsOut    string
		savePath      string
		logs          logOptions
	)

	return &cli.Command{
		Name:  "schedule",
		Usage: "Wrap a synthetic MLP and drive its compression schedule",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "compression configuration (.yaml or .json)",
				Destination: &configPath,
				Required:    true,
			},
			&cli.IntFlag{Name: "epochs", Usage: "epochs to simulate", Value: 3, Destination: &epochs},
			&cli.IntFlag{Name: "steps-per-epoch", Usage: "training steps per epoch", Value: 10, Destination: &stepsPerEpoch},
			&cli.StringFlag{Name: "layers", Usage: "comma-separated layer widths", Value: "16,8,4", Destination: &layerSpec},
			&cli.Int64Flag{Name: "seed", Usage: "seed for synthetic calibration data", Value: 1, Destination: &seed},
			&cli.StringFlag{Name: "metrics-out", Usage: "write final Prometheus metrics to this file", Destination: &metricsOut},
			&cli.StringFlag{Name: "save", Usage: "write the compressed model's parameters to this .safetensors file", Destination: &savePath},
		}, logs.flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := logs.logger(stderr(cmd))
			if err != nil {
				return err
			}
			if epochs < 0 || stepsPerEpoch < 0 {
				return fmt.Errorf("epochs and steps-per-epoch must be non-negative")
			}
			widths, err := parseLayers(layerSpec)
			if err != nil {
				return err
			}

			doc, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg, err := doc.Config()
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed))
			model := syntheticMLP(widths)
			calib, err := syntheticCalibration(rng, widths)
			if err != nil {
				return err
			}

			reg := prom.NewRegistry()
			wrapped, ctrl, err := compression.Wrap(model, cfg.WithInit(calib),
				compression.WithLogger(logger),
				compression.WithRecorder(metrics.NewPrometheusRecorder(reg)))
			if err != nil {
				return err
			}
			if err := reg.Register(metrics.NewStatisticsCollector(ctrl)); err != nil {
				return err
			}

			out := stdout(cmd)
			if err := printEpoch(out, ctrl); err != nil {
				return err
			}
			for range epochs {
				for range stepsPerEpoch {
					if err := ctx.Err(); err != nil {
						return err
					}
					ctrl.Scheduler().Step()
				}
				ctrl.Scheduler().EpochStep()
				if err := printEpoch(out, ctrl); err != nil {
					return err
				}
			}

			if metricsOut != "" {
				if err := prom.WriteToTextfile(metricsOut, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			if savePath != "" {
				st := ctrl.Scheduler().State()
				meta := map[string]string{
					"epoch":      strconv.Itoa(st.Epoch),
					"step":       strconv.Itoa(st.Step),
					"algorithms": strings.Join(cfg.Names(), ","),
				}
				if err := checkpoint.WriteSafeTensors(savePath, wrapped.StateDict(), meta); err != nil {
					return fmt.Errorf("save: %w", err)
				}
			}
			return nil
		},
	}
}

// parseLayers parses "16,8,4" into layer widths. At least two are needed.
func parseLayers(spec string) ([]int, error) {
	parts := strings.Split(spec, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("layers %q: need at least an input and an output width", spec)
	}
	widths := make([]int, len(parts))
	for i, p := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("layers %q: invalid width %q", spec, p)
		}
		widths[i] = w
	}
	return widths, nil
}

// syntheticMLP builds fc1, act1, fc2, ... with a ReLU between linear layers.
func syntheticMLP(widths []int) nn.Module {
	var children []nn.Child
	for i := 1; i < len(widths); i++ {
		if i > 1 {
			children = append(children, nn.Child{Name: fmt.Sprintf("act%d", i-1), Module: nn.NewReLU()})
		}
		children = append(children, nn.Child{
			Name:   fmt.Sprintf("fc%d", i),
			Module: nn.NewLinear(widths[i-1], widths[i]),
		})
	}
	return nn.NewNamedSequential(children...)
}

// syntheticCalibration attaches random batches for both initialization
// kinds; algorithms that do not need them ignore them.
func syntheticCalibration(rng *rand.Rand, widths []int) (*compression.InitRegistry, error) {
	in, out := widths[0], widths[len(widths)-1]
	batches := make(compression.SliceLoader, calibrationBatches)
	for i := range batches {
		inputs := tensor.New(tensor.Shape{calibrationBatchSize, in})
		for j := range inputs.Data() {
			inputs.Data()[j] = float32(rng.NormFloat64())
		}
		targets := tensor.New(tensor.Shape{calibrationBatchSize, out})
		for j := range targets.Data() {
			targets.Data()[j] = float32(rng.NormFloat64())
		}
		batches[i] = compression.Batch{Inputs: inputs, Targets: targets}
	}

	reg := compression.NewInitRegistry()
	if err := reg.Attach(compression.InitRange, batches, nil); err != nil {
		return nil, err
	}
	if err := reg.Attach(compression.InitPrecision, batches, compression.MeanSquaredError); err != nil {
		return nil, err
	}
	return reg, nil
}

func printEpoch(w io.Writer, ctrl *compression.CompositeController) error {
	st := ctrl.Scheduler().State()
	if _, err := fmt.Fprintf(w, "epoch=%d step=%d loss=%.6f\n", st.Epoch, st.Step, ctrl.Loss()); err != nil {
		return err
	}
	stats := ctrl.Statistics()
	for _, c := range ctrl.Controllers() {
		s := stats[c.Name()]
		fields := make([]string, 0, len(s))
		for _, k := range s.Keys() {
			fields = append(fields, fmt.Sprintf("%s=%g", k, s[k]))
		}
		if _, err := fmt.Fprintf(w, "  %s: %s\n", c.Name(), strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}
