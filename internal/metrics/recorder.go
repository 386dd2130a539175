package metrics

import (
	"github.com/born-ml/compress/internal/compression"
	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "compress"

// ProgressRecorder observes composite scheduler transitions.
type ProgressRecorder = compression.ProgressRecorder

// NoopRecorder discards all observations.
type NoopRecorder = compression.NoopRecorder

// PrometheusRecorder implements ProgressRecorder using Prometheus metrics.
type PrometheusRecorder struct {
	steps  prom.Counter
	epochs prom.Counter
	step   prom.Gauge
	epoch  prom.Gauge
}

// NewPrometheusRecorder constructs the recorder and registers its metrics
// with reg (a fresh registry if nil).
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		steps: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_steps_total",
			Help:      "Training steps reported to the compression scheduler",
		}),
		epochs: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_epochs_total",
			Help:      "Epoch boundaries reported to the compression scheduler",
		}),
		step: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_step",
			Help:      "Current global step of the compression scheduler",
		}),
		epoch: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_epoch",
			Help:      "Current epoch of the compression scheduler",
		}),
	}
	reg.MustRegister(pr.steps, pr.epochs, pr.step, pr.epoch)
	return pr
}

// RecordStep counts a step and exports the new position.
func (p *PrometheusRecorder) RecordStep(st compression.State) {
	if p == nil {
		return
	}
	p.steps.Inc()
	p.set(st)
}

// RecordEpoch counts an epoch boundary and exports the new position.
func (p *PrometheusRecorder) RecordEpoch(st compression.State) {
	if p == nil {
		return
	}
	p.epochs.Inc()
	p.set(st)
}

func (p *PrometheusRecorder) set(st compression.State) {
	p.step.Set(float64(st.Step))
	p.epoch.Set(float64(st.Epoch))
}
