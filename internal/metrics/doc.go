// Package metrics exports compression progress to Prometheus.
//
// StatisticsCollector reads controller statistics at scrape time, so
// registering it costs nothing between scrapes. PrometheusRecorder plugs
// into the composite scheduler as its ProgressRecorder and counts
// transitions. Components that do not need metrics use NoopRecorder.
package metrics
