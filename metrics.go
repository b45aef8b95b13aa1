package geonarrative

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsPrefix = "geonarrative"

// RunMetrics exposes the outcome of clustering runs as Prometheus metrics
// on a private registry, suitable for the node exporter textfile collector.
type RunMetrics struct {
	registry *prometheus.Registry

	runs            prometheus.Counter
	emptyRuns       prometheus.Counter
	duration        prometheus.Histogram
	articles        *prometheus.GaugeVec
	classifications *prometheus.GaugeVec
	clusters        prometheus.Gauge
	dissolved       prometheus.Gauge
	quality         *prometheus.GaugeVec
	megaCluster     prometheus.Gauge
}

// NewRunMetrics creates and registers the run metrics.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "_runs_total",
			Help: "Total clustering runs",
		}),
		emptyRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "_empty_runs_total",
			Help: "Clustering runs in which every cluster was filtered out",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "_run_duration_seconds",
			Help:    "Time spent in one clustering run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		articles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricsPrefix + "_articles",
			Help: "Articles in the last run by assignment status",
		}, []string{"status"}),
		classifications: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricsPrefix + "_classified_articles",
			Help: "Articles in the last run by classification",
		}, []string{"classification"}),
		clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "_clusters",
			Help: "Clusters surviving the size filter in the last run",
		}),
		dissolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "_dissolved_clusters",
			Help: "Clusters dissolved by the size filter in the last run",
		}),
		quality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricsPrefix + "_quality",
			Help: "Quality metrics of the last run; null metrics are not exported",
		}, []string{"metric"}),
		megaCluster: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "_mega_cluster",
			Help: "1 when the last run was dominated by one cluster",
		}),
	}
	m.registry.MustRegister(m.runs, m.emptyRuns, m.duration, m.articles, m.classifications,
		m.clusters, m.dissolved, m.quality, m.megaCluster)
	return m
}

// Registry returns the registry holding the run metrics.
func (m *RunMetrics) Registry() *prometheus.Registry { return m.registry }

// Observe records one run.
func (m *RunMetrics) Observe(r *Result, elapsed time.Duration) {
	m.runs.Inc()
	m.duration.Observe(elapsed.Seconds())
	if r.Empty {
		m.emptyRuns.Inc()
	}

	m.articles.Reset()
	classes := make([]Classification, len(r.Articles))
	for i, a := range r.Articles {
		m.articles.WithLabelValues(string(a.Status)).Inc()
		classes[i] = a.Classification
	}
	for c, n := range ClassificationCounts(classes) {
		m.classifications.WithLabelValues(string(c)).Set(float64(n))
	}

	m.dissolved.Set(float64(r.DissolvedClusters))
	m.quality.Reset()
	m.megaCluster.Set(0)
	if r.Quality == nil {
		m.clusters.Set(0)
		return
	}
	m.clusters.Set(float64(r.Quality.NClusters))
	if r.Quality.MegaCluster {
		m.megaCluster.Set(1)
	}
	for name, v := range map[string]*float64{
		MetricSilhouette:       r.Quality.SilhouetteScore,
		MetricDaviesBouldin:    r.Quality.DaviesBouldin,
		MetricCalinskiHarabasz: r.Quality.CalinskiHarabasz,
		"largest_cluster_pct":  r.Quality.LargestClusterPct,
		"balance_entropy":      r.Quality.BalanceEntropy,
	} {
		if v != nil {
			m.quality.WithLabelValues(name).Set(*v)
		}
	}
}

// WriteTextfile writes the current metrics in the text exposition format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
