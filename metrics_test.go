package geonarrative

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsObserve(t *testing.T) {
	result, err := newTestEngine(t, DefaultOptions()).Run(scenarioArticles())
	require.NoError(t, err)

	m := NewRunMetrics()
	m.Observe(result, 250*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.emptyRuns))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.clusters))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.megaCluster))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.articles.WithLabelValues(string(StatusClustered))))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.classifications.WithLabelValues(string(Syndicated))))
	assert.InDelta(t, 0.5, testutil.ToFloat64(m.quality.WithLabelValues("largest_cluster_pct")), 1e-12)

	path := filepath.Join(t.TempDir(), MetricsFile)
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "geonarrative_clusters 6")
	assert.Contains(t, string(data), `geonarrative_quality{metric="silhouette_score"}`)
}

func TestRunMetricsEmptyRun(t *testing.T) {
	opts := DefaultOptions()
	opts.MinClusterSize = 25
	result, err := newTestEngine(t, opts).Run(scenarioArticles())
	require.NoError(t, err)

	m := NewRunMetrics()
	m.Observe(result, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.emptyRuns))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.clusters))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.dissolved))
	assert.Equal(t, 0, testutil.CollectAndCount(m.quality, "geonarrative_quality"), "null metrics are not exported")
}
