package geonarrative

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeRuleMinClusterSize(t *testing.T) {
	rule := DefaultSizeRule()
	tests := []struct {
		n    int
		want int
	}{
		{0, 3},
		{10, 3},
		{29, 3},
		{40, 4},
		{48, 4},
		{100, 10},
		{500, 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rule.MinClusterSize(tt.n), "n=%d", tt.n)
	}

	assert.Equal(t, 1, SizeRule{Fraction: 0, Floor: 1}.MinClusterSize(0))
	assert.Equal(t, "max(3, floor(0.10·N))", rule.String())
}

func TestSizeRuleValidate(t *testing.T) {
	assert.NoError(t, DefaultSizeRule().Validate())
	assert.True(t, IsInputError(SizeRule{Fraction: 1, Floor: 3}.Validate()))
	assert.True(t, IsInputError(SizeRule{Fraction: -0.1, Floor: 3}.Validate()))
	assert.True(t, IsInputError(SizeRule{Fraction: 0.1, Floor: 0}.Validate()))
}

func TestFilterSmallClusters(t *testing.T) {
	labels := []int{0, 1, 1, 2, 2, 2, 3, 1, 2, Noise, 3}

	filtered, dissolved := FilterSmallClusters(labels, 3)
	assert.Equal(t, []int{Noise, 0, 0, 1, 1, 1, Noise, 0, 1, Noise, Noise}, filtered)
	assert.Equal(t, 2, dissolved)
	assert.Equal(t, []int{3, 4}, ClusterSizes(filtered))

	filtered, dissolved = FilterSmallClusters(labels, 10)
	assert.Equal(t, 4, dissolved)
	for _, l := range filtered {
		assert.Equal(t, Noise, l)
	}
	assert.Empty(t, ClusterSizes(filtered))
}

func TestFilteredLabelsAreContiguous(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	for trial := 0; trial < 200; trial++ {
		n := r.IntN(60)
		labels := make([]int, n)
		for i := range labels {
			labels[i] = r.IntN(15) - 1
		}
		minSize := 1 + r.IntN(6)

		filtered, _ := FilterSmallClusters(labels, minSize)
		require.Len(t, filtered, n)

		unique := map[int]struct{}{}
		for _, l := range filtered {
			if l != Noise {
				unique[l] = struct{}{}
			}
		}
		got := make([]int, 0, len(unique))
		for l := range unique {
			got = append(got, l)
		}
		sort.Ints(got)
		for i, l := range got {
			assert.Equal(t, i, l, "labels %v filtered to %v", labels, filtered)
		}
		for _, size := range ClusterSizes(filtered) {
			assert.GreaterOrEqual(t, size, minSize)
		}
	}
}

func TestRelabel(t *testing.T) {
	assert.Equal(t, []int{0, 1, 0, Noise, 2}, Relabel([]int{7, 3, 7, Noise, 12}))
	assert.Empty(t, Relabel(nil))
}

func TestAdaptiveSizeKeepsSmallBatches(t *testing.T) {
	// Two well-separated true clusters, each half the batch.
	for _, n := range []int{48, 500} {
		labels := make([]int, n)
		for i := n / 2; i < n; i++ {
			labels[i] = 1
		}
		filtered, _ := FilterSmallClusters(labels, DefaultSizeRule().MinClusterSize(n))
		assert.Len(t, ClusterSizes(filtered), 2, "n=%d", n)
	}
}
