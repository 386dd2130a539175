package metrics

import (
	"strings"
	"testing"

	"github.com/born-ml/compress/internal/compression"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	stats compression.CompositeStatistics
	loss  float64
}

func (f *fakeSource) Statistics() compression.CompositeStatistics { return f.stats }
func (f *fakeSource) Loss() float64                               { return f.loss }

func TestStatisticsCollector(t *testing.T) {
	src := &fakeSource{
		stats: compression.CompositeStatistics{
			"quantization":       {"mean_bits": 8, "weight_quantizers": 2},
			"magnitude_sparsity": {"sparsity_rate": 0.25},
		},
		loss: 0.5,
	}
	c := NewStatisticsCollector(src)

	assert.Equal(t, 4, testutil.CollectAndCount(c))

	expected := `
# HELP compress_loss Compression loss of the composite controller
# TYPE compress_loss gauge
compress_loss 0.5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "compress_loss"))

	expected = `
# HELP compress_algorithm_statistic Current value of a compression algorithm statistic
# TYPE compress_algorithm_statistic gauge
compress_algorithm_statistic{algorithm="magnitude_sparsity",statistic="sparsity_rate"} 0.25
compress_algorithm_statistic{algorithm="quantization",statistic="mean_bits"} 8
compress_algorithm_statistic{algorithm="quantization",statistic="weight_quantizers"} 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "compress_algorithm_statistic"))

	// Values are read at scrape time.
	src.loss = 1.5
	expected = `
# HELP compress_loss Compression loss of the composite controller
# TYPE compress_loss gauge
compress_loss 1.5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "compress_loss"))
}

func TestStatisticsCollectorRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	require.NoError(t, reg.Register(NewStatisticsCollector(&fakeSource{})))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, "compress_loss", mfs[0].GetName())
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	var rec ProgressRecorder = pr
	rec.RecordStep(compression.State{Step: 1})
	rec.RecordStep(compression.State{Step: 2})
	rec.RecordEpoch(compression.State{Step: 2, Epoch: 1})

	assert.InDelta(t, 2, testutil.ToFloat64(pr.steps), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.epochs), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pr.step), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.epoch), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 4)

	var nilRecorder *PrometheusRecorder
	assert.NotPanics(t, func() { nilRecorder.RecordStep(compression.State{}) })
	var noop ProgressRecorder = NoopRecorder{}
	assert.NotPanics(t, func() { noop.RecordEpoch(compression.State{}) })
}

func TestRecorderDrivenByCompositeScheduler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	composite, err := compression.NewCompositeController(nil, pr)
	require.NoError(t, err)

	for range 3 {
		composite.Scheduler().Step()
	}
	composite.Scheduler().EpochStep()

	assert.InDelta(t, 3, testutil.ToFloat64(pr.steps), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.epoch), 0)

	c := NewStatisticsCollector(composite)
	assert.Equal(t, 1, testutil.CollectAndCount(c))
}
