package geonarrative

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSingleClusterIsNullSafe(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {0.9, 0.1}, {0.8, 0.3}, {1, 0.2}, {0.7, 0.1}}
	labels := []int{0, 0, 0, 0, 0}

	report, err := EvaluateQuality(labels, embeddings, nil)
	require.NoError(t, err)

	assert.Nil(t, report.SilhouetteScore)
	assert.Nil(t, report.DaviesBouldin)
	assert.Nil(t, report.CalinskiHarabasz)
	assert.Contains(t, report.NullReasons, MetricSilhouette)
	assert.Contains(t, report.NullReasons, MetricDaviesBouldin)
	assert.Contains(t, report.NullReasons, MetricCalinskiHarabasz)

	require.NotNil(t, report.LargestClusterPct)
	assert.Equal(t, 1.0, *report.LargestClusterPct)
	require.NotNil(t, report.BalanceEntropy)
	assert.Equal(t, 0.0, *report.BalanceEntropy)
	assert.Equal(t, 1, report.NClusters)
	assert.Equal(t, []int{5}, report.ClusterSizes)
	assert.True(t, report.MegaCluster)
	assert.Contains(t, report.Recommendations, "Only one cluster formed: lower distance_threshold to separate narratives")
	assert.Nil(t, report.PerClusterSilhouette[0])
}

func TestEvaluateKnownValues(t *testing.T) {
	embeddings := [][]float64{{1, 1}, {1, 3}, {5, 1}, {5, 3}}
	labels := []int{0, 0, 1, 1}

	report, err := EvaluateQuality(labels, embeddings, nil)
	require.NoError(t, err)

	require.NotNil(t, report.CalinskiHarabasz)
	assert.InDelta(t, 8, *report.CalinskiHarabasz, 1e-9)
	require.NotNil(t, report.DaviesBouldin)
	assert.InDelta(t, 0.5, *report.DaviesBouldin, 1e-9)
	require.NotNil(t, report.SilhouetteScore)
	assert.GreaterOrEqual(t, *report.SilhouetteScore, -1.0)
	assert.LessOrEqual(t, *report.SilhouetteScore, 1.0)

	assert.Empty(t, report.NullReasons)
	assert.InDelta(t, 0.5, *report.LargestClusterPct, 1e-12)
	assert.InDelta(t, 1, *report.BalanceEntropy, 1e-12)
	assert.True(t, report.MegaCluster, "largest cluster at 50% crosses the 40% line")
	require.NotNil(t, report.SizeStats)
	assert.Equal(t, 2.0, report.SizeStats.Mean)
	assert.Equal(t, 2, report.SizeStats.Min)
	assert.Equal(t, 2, report.SizeStats.Max)
	assert.NotNil(t, report.BestCluster)
	assert.NotNil(t, report.WorstCluster)
}

func TestEvaluateSilhouetteNeedsTwoMembersPerCluster(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {0.9, 0.1}, {0, 1}}
	report, err := EvaluateQuality([]int{0, 0, 1}, embeddings, nil)
	require.NoError(t, err)

	assert.Nil(t, report.SilhouetteScore)
	assert.Contains(t, report.NullReasons[MetricSilhouette], "cluster 1")
	assert.NotNil(t, report.DaviesBouldin)
	assert.NotNil(t, report.CalinskiHarabasz)
}

func TestEvaluateZeroDispersion(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {1, 0}, {0, 1}, {0, 1}}
	report, err := EvaluateQuality([]int{0, 0, 1, 1}, embeddings, nil)
	require.NoError(t, err)

	assert.Nil(t, report.CalinskiHarabasz)
	assert.Equal(t, "within-cluster dispersion is zero", report.NullReasons[MetricCalinskiHarabasz])
	require.NotNil(t, report.DaviesBouldin)
	assert.Equal(t, 0.0, *report.DaviesBouldin)
	require.NotNil(t, report.SilhouetteScore)
	assert.InDelta(t, 1, *report.SilhouetteScore, 1e-12)
}

func TestEvaluateMoreClustersThanSamples(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {0, 1}}
	report, err := EvaluateQuality([]int{0, 1}, embeddings, nil)
	require.NoError(t, err)

	assert.Nil(t, report.SilhouetteScore)
	assert.Nil(t, report.DaviesBouldin)
	assert.Nil(t, report.CalinskiHarabasz)
	assert.Contains(t, report.NullReasons[MetricDaviesBouldin], "more samples than clusters")
}

func TestEvaluateNoise(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {0.9, 0.1}, {0.5, 0.5}, {0, 1}, {0.1, 0.9}}
	report, err := EvaluateQuality([]int{0, 0, Noise, 1, 1}, embeddings, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, report.NSamples)
	assert.Equal(t, 1, report.NNoise)
	assert.Equal(t, 2, report.NClusters)
	assert.InDelta(t, 0.5, *report.LargestClusterPct, 1e-12)
	require.NotNil(t, report.SilhouetteScore)
	assert.Greater(t, *report.SilhouetteScore, 0.5)
}

func TestEvaluateEmpty(t *testing.T) {
	report, err := EvaluateQuality([]int{Noise, Noise}, [][]float64{{1, 0}, {0, 1}}, nil)
	require.NoError(t, err)

	assert.True(t, report.Empty)
	assert.Equal(t, 2, report.NNoise)
	assert.Zero(t, report.NClusters)
	assert.Nil(t, report.SilhouetteScore)
	assert.Nil(t, report.LargestClusterPct)
	assert.Len(t, report.NullReasons, 3)
	assert.Equal(t, "No clusters to assess", report.Assessment)
}

func TestEvaluateInputErrors(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {0, 1}}

	_, err := EvaluateQuality([]int{0}, embeddings, nil)
	assert.True(t, IsInputError(err))

	_, err = EvaluateQuality([]int{0, 2}, embeddings, nil)
	assert.True(t, IsInputError(err), "labels must be contiguous")

	_, err = EvaluateQuality([]int{0, -3}, embeddings, nil)
	assert.True(t, IsInputError(err))
}

func TestBalanceEntropy(t *testing.T) {
	assert.Equal(t, 0.0, BalanceEntropy(nil))
	assert.Equal(t, 0.0, BalanceEntropy([]int{7}))
	assert.InDelta(t, 1, BalanceEntropy([]int{5, 5, 5}), 1e-12)

	sizes := []int{20, 4, 4, 4, 4, 4}
	want := -(0.5*math.Log(0.5) + 5*0.1*math.Log(0.1)) / math.Log(6)
	assert.InDelta(t, want, BalanceEntropy(sizes), 1e-12)
	assert.Less(t, BalanceEntropy([]int{90, 5, 5}), 0.8)
}

func TestMetricError(t *testing.T) {
	err := &MetricError{Metric: MetricSilhouette, Reason: "requires at least 2 clusters, got 1"}
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Equal(t, "silhouette_score: requires at least 2 clusters, got 1", err.Error())
}

func TestQualityEvaluatorThresholds(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {0.9, 0.1}, {0.95, 0.05}, {0, 1}, {0.1, 0.9}, {0.5, 0.5}}
	labels := []int{0, 0, 0, 1, 1, 1}

	report, err := NewQualityEvaluator(QualityOptions{MegaClusterPct: 0.6, MinBalanceEntropy: 0.5}).
		Evaluate(labels, embeddings, nil)
	require.NoError(t, err)
	assert.False(t, report.MegaCluster)

	report, err = NewQualityEvaluator(QualityOptions{}).Evaluate(labels, embeddings, nil)
	require.NoError(t, err)
	assert.True(t, report.MegaCluster, "defaults flag a 50% cluster")
}
