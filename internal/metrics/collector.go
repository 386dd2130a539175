package metrics

import (
	"sort"

	"github.com/born-ml/compress/internal/compression"
	prom "github.com/prometheus/client_golang/prometheus"
)

// StatisticsSource is the read-only view of a controller the collector needs.
// *compression.CompositeController implements it.
type StatisticsSource interface {
	Statistics() compression.CompositeStatistics
	Loss() float64
}

// StatisticsCollector is a prometheus.Collector exporting every algorithm
// statistic as compress_algorithm_statistic{algorithm,statistic} and the
// composite loss as compress_loss.
type StatisticsCollector struct {
	source   StatisticsSource
	statDesc *prom.Desc
	lossDesc *prom.Desc
}

// NewStatisticsCollector creates a collector reading from source.
func NewStatisticsCollector(source StatisticsSource) *StatisticsCollector {
	return &StatisticsCollector{
		source: source,
		statDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "algorithm", "statistic"),
			"Current value of a compression algorithm statistic",
			[]string{"algorithm", "statistic"}, nil),
		lossDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "loss"),
			"Compression loss of the composite controller",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StatisticsCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.statDesc
	ch <- c.lossDesc
}

// Collect implements prometheus.Collector.
func (c *StatisticsCollector) Collect(ch chan<- prom.Metric) {
	all := c.source.Statistics()
	algorithms := make([]string, 0, len(all))
	for name := range all {
		algorithms = append(algorithms, name)
	}
	sort.Strings(algorithms)

	for _, alg := range algorithms {
		stats := all[alg]
		for _, key := range stats.Keys() {
			ch <- prom.MustNewConstMetric(c.statDesc, prom.GaugeValue, stats[key], alg, key)
		}
	}
	ch <- prom.MustNewConstMetric(c.lossDesc, prom.GaugeValue, c.source.Loss())
}
