package geonarrative

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRegion struct {
	city, state, domain string
	center              Coordinates
}

var testRegions = []testRegion{
	{"Seattle", "Washington", "seattlegazette.com", Coordinates{47.61, -122.33}},
	{"Denver", "Colorado", "denverherald.com", Coordinates{39.74, -104.99}},
	{"Chicago", "Illinois", "chicagoledger.com", Coordinates{41.88, -87.63}},
	{"Atlanta", "Georgia", "atlantaobserver.com", Coordinates{33.75, -84.39}},
	{"Boston", "Massachusetts", "bostonbeacon.com", Coordinates{42.36, -71.06}},
}

const scenarioDim = 10

func basis(i int) []float64 {
	v := make([]float64, scenarioDim)
	v[i] = 1
	return v
}

// scenarioArticles builds 20 identical wire copies spread over five regions
// followed by four local stories per region with official quotes.
func scenarioArticles() []Article {
	var articles []Article
	for i := 0; i < 20; i++ {
		r := testRegions[i%len(testRegions)]
		articles = append(articles, Article{
			ID:           fmt.Sprintf("wire-%02d", i),
			Text:         "(AP) The Federal Reserve held interest rates steady on Wednesday, citing cooling inflation.",
			SourceDomain: "apnews.com",
			LocationName: r.city + ", " + r.state,
			Coordinates:  &Coordinates{r.center.Lat + 0.01*float64(i), r.center.Lon},
			Embedding:    basis(0),
		})
	}
	for ri, r := range testRegions {
		for j := 0; j < 4; j++ {
			embedding := basis(1 + ri)
			embedding[6+j] = 0.1
			articles = append(articles, Article{
				ID: fmt.Sprintf("%s-%d", r.domain, j),
				Text: fmt.Sprintf("Mayor Pat Rivera of %s said on day %d that the city will expand the %s transit corridor after residents packed a public hearing.",
					r.city, j, r.city),
				SourceDomain: r.domain,
				LocationName: r.city + ", " + r.state,
				Coordinates:  &Coordinates{r.center.Lat + 0.02*float64(j), r.center.Lon - 0.02*float64(j)},
				Embedding:    embedding,
			})
		}
	}
	return articles
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(newTestClassifier(t), opts)
	require.NoError(t, err)
	return e
}

func TestRunScenario(t *testing.T) {
	articles := scenarioArticles()
	require.Len(t, articles, 40)

	result, err := newTestEngine(t, DefaultOptions()).Run(articles)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 40, result.NArticles)
	assert.Equal(t, 40, result.NClusterable)
	assert.Equal(t, 4, result.MinClusterSize)
	assert.Equal(t, 6, result.RawClusters)
	assert.Zero(t, result.DissolvedClusters)
	assert.Equal(t, DefaultLexicon().Version, result.LexiconVersion)

	for i, a := range result.Articles[:20] {
		assert.Equal(t, Syndicated, a.Classification, i)
		assert.Equal(t, 0.0, a.SpatialWeight)
		assert.Equal(t, 0, a.ClusterID, "wire copies share one cluster")
		assert.Equal(t, StatusClustered, a.Status)
	}
	for i, a := range result.Articles[20:] {
		assert.Equal(t, LocalWithQuotes, a.Classification, a.ID)
		assert.Equal(t, 0.4, a.SpatialWeight)
		assert.Equal(t, 1+i/4, a.ClusterID, "one cluster per region: %s", a.ID)
	}

	q := result.Quality
	require.NotNil(t, q)
	assert.Equal(t, 6, q.NClusters)
	assert.Equal(t, []int{20, 4, 4, 4, 4, 4}, q.ClusterSizes)
	assert.InDelta(t, 0.5, *q.LargestClusterPct, 1e-12)
	assert.InDelta(t, 0.836, *q.BalanceEntropy, 1e-3)
	assert.True(t, q.MegaCluster, "the wire cluster dominates")
	require.NotNil(t, q.SilhouetteScore)
	assert.Greater(t, *q.SilhouetteScore, 0.9)
	assert.NotNil(t, q.DaviesBouldin)
	assert.NotNil(t, q.CalinskiHarabasz)

	require.Len(t, result.Clusters, 6)
	assert.Equal(t, 20, result.Clusters[0].Size)
	assert.Equal(t, 20, result.Clusters[0].Classifications[Syndicated])
	assert.Greater(t, result.Clusters[0].GeographicRadiusKm, 1000.0, "wire cluster spans the country")
	for _, c := range result.Clusters[1:] {
		assert.Equal(t, 4, c.Size)
		assert.Less(t, c.GeographicRadiusKm, 10.0)
	}

	require.NotNil(t, result.National)
	assert.Equal(t, 20, result.National.TotalInstances)
	assert.Equal(t, 1, result.National.UniqueStories)
	assert.Equal(t, 5, result.National.GeographicSpread)
}

func TestRunExcludeSyndicated(t *testing.T) {
	opts := DefaultOptions()
	opts.ExcludeSyndicated = true

	result, err := newTestEngine(t, opts).Run(scenarioArticles())
	require.NoError(t, err)

	assert.Len(t, result.ExcludedSyndicated, 20)
	assert.Equal(t, 20, result.NClusterable)
	assert.Equal(t, 3, result.MinClusterSize)
	assert.Equal(t, 5, result.Quality.NClusters)
	assert.InDelta(t, 1, *result.Quality.BalanceEntropy, 1e-12)
	assert.False(t, result.Quality.MegaCluster)
	for _, a := range result.Articles[:20] {
		assert.Equal(t, StatusExcludedSyndicated, a.Status)
		assert.Equal(t, Noise, a.ClusterID)
	}
}

func TestRunExcludesUnlocatedAndUnembedded(t *testing.T) {
	articles := scenarioArticles()
	articles[20].Coordinates = nil
	articles[21].Embedding = nil

	result, err := newTestEngine(t, DefaultOptions()).Run(articles)
	require.NoError(t, err)

	assert.Equal(t, []string{articles[20].ID}, result.Unlocated)
	assert.Equal(t, []string{articles[21].ID}, result.Unembedded)
	assert.Equal(t, StatusExcludedNoCoordinates, result.Articles[20].Status)
	assert.Equal(t, StatusExcludedNoEmbedding, result.Articles[21].Status)
	assert.Equal(t, 38, result.NClusterable)
	assert.Len(t, result.Articles, 40)
	assert.Len(t, result.Warnings, 2+len(result.Quality.Warnings))

	// Seattle keeps two of four local stories and falls under min size 3.
	assert.Equal(t, 1, result.DissolvedClusters)
	assert.Equal(t, StatusFiltered, result.Articles[22].Status)
	assert.Equal(t, 5, result.Quality.NClusters)
}

func TestRunEmptyResult(t *testing.T) {
	opts := DefaultOptions()
	opts.MinClusterSize = 25

	result, err := newTestEngine(t, opts).Run(scenarioArticles())
	require.NoError(t, err)

	assert.True(t, result.Empty)
	assert.Empty(t, result.Clusters)
	assert.Equal(t, 6, result.DissolvedClusters)
	assert.Contains(t, result.EmptyReason, "threshold too high for dataset size: N=40, min_cluster_size=25")
	assert.True(t, result.Quality.Empty)
	assert.Equal(t, 40, result.Quality.NNoise)

	err = result.Err()
	assert.True(t, errors.Is(err, ErrEmptyResult))
	var empty *EmptyResultError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, result.EmptyReason, empty.Reason)

	for _, a := range result.Articles {
		assert.Equal(t, Noise, a.ClusterID)
		assert.Equal(t, StatusFiltered, a.Status)
	}
}

func TestRunAdaptiveThresholdScaling(t *testing.T) {
	build := func(n int) []Article {
		articles := make([]Article, n)
		for i := range articles {
			cluster := i % 2
			embedding := []float64{0, 0, 0.05 * math.Sin(float64(i)), 0.05 * math.Cos(float64(i))}
			embedding[cluster] = 1
			articles[i] = Article{
				ID:           fmt.Sprintf("a%d", i),
				Text:         "A short item.",
				SourceDomain: "example.com",
				Coordinates:  &Coordinates{40 + float64(cluster) + 0.001*float64(i%7), -100 + 10*float64(cluster)},
				Embedding:    embedding,
			}
		}
		return articles
	}

	e := newTestEngine(t, DefaultOptions())
	for _, n := range []int{48, 500} {
		result, err := e.Run(build(n))
		require.NoError(t, err)
		assert.Equal(t, DefaultSizeRule().MinClusterSize(n), result.MinClusterSize)
		assert.False(t, result.Empty, "n=%d", n)
		assert.Equal(t, 2, result.Quality.NClusters, "n=%d", n)
	}
}

func TestRunInputErrors(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	valid := func() []Article { return scenarioArticles()[:4] }

	tests := []struct {
		name      string
		mutate    func([]Article) []Article
		articleID string
		field     string
	}{
		{"empty id", func(a []Article) []Article { a[1].ID = ""; return a }, "", "articles[1].id"},
		{"duplicate id", func(a []Article) []Article { a[2].ID = a[0].ID; return a }, "wire-00", "id"},
		{"bad latitude", func(a []Article) []Article { a[3].Coordinates = &Coordinates{95, 0}; return a }, "wire-03", "coordinates.lat"},
		{"dimension mismatch", func(a []Article) []Article { a[2].Embedding = []float64{1, 0}; return a }, "wire-02", "embedding"},
		{"zero vector", func(a []Article) []Article { a[1].Embedding = make([]float64, scenarioDim); return a }, "wire-01", "embedding"},
		{"too few clusterable", func(a []Article) []Article {
			for i := 1; i < len(a); i++ {
				a[i].Coordinates = nil
			}
			return a
		}, "", "articles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Run(tt.mutate(valid()))
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.articleID, ie.ArticleID)
			assert.Equal(t, tt.field, ie.Field)
		})
	}
}

func TestNewEngineValidatesOptions(t *testing.T) {
	c := newTestClassifier(t)

	_, err := NewEngine(nil, DefaultOptions())
	assert.True(t, IsInputError(err))

	bad := []func(*Options){
		func(o *Options) { o.Linkage = "ward" },
		func(o *Options) { o.DistanceThreshold = 0 },
		func(o *Options) { o.MinClusterSize = -1 },
		func(o *Options) { o.SizeRule = SizeRule{Fraction: 2, Floor: 3} },
		func(o *Options) { o.Weights = &WeightTable{Default: 0.9} },
		func(o *Options) { o.Dedup.Similarity = 1.5 },
	}
	for i, mutate := range bad {
		opts := DefaultOptions()
		mutate(&opts)
		_, err := NewEngine(c, opts)
		assert.True(t, IsInputError(err), "case %d", i)
	}

	e, err := NewEngine(c, Options{DistanceThreshold: 0.4})
	require.NoError(t, err)
	assert.Equal(t, CompleteLinkage, e.Options().Linkage)
	assert.Equal(t, DefaultSizeRule(), e.Options().SizeRule)
	assert.Equal(t, DefaultWeightTable(), *e.Options().Weights)
}

func TestRunDedupMarksNearDuplicates(t *testing.T) {
	articles := scenarioArticles()
	// Strip wire signals so only the embedding reveals the copies.
	for i := 0; i < 20; i++ {
		articles[i].SourceDomain = "example.com"
		articles[i].Text = "The Federal Reserve held interest rates steady on Wednesday."
	}

	result, err := newTestEngine(t, DefaultOptions()).Run(articles)
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, result.Articles[0].Classification)

	opts := DefaultOptions()
	opts.Dedup.Enabled = true
	result, err = newTestEngine(t, opts).Run(articles)
	require.NoError(t, err)
	for _, a := range result.Articles[:20] {
		assert.Equal(t, Syndicated, a.Classification)
	}
	assert.Equal(t, LocalWithQuotes, result.Articles[20].Classification)
}

func TestResultLabels(t *testing.T) {
	r := &Result{Articles: []ClusteredArticle{{ClusterID: 1}, {ClusterID: Noise}, {ClusterID: 0}}}
	assert.Equal(t, []int{1, Noise, 0}, r.Labels())
	assert.NoError(t, r.Err())
}

func TestRunExtremeEmbeddingMagnitudes(t *testing.T) {
	embeddings := [][]float64{
		{1e-200, 2e-200}, {1e160, 2e160}, {1, 2},
		{2e-200, -1e-200}, {2e160, -1e160}, {2, -1},
	}
	var articles []Article
	for i, e := range embeddings {
		articles = append(articles, Article{
			ID:           fmt.Sprintf("a-%d", i),
			Text:         fmt.Sprintf("Story %d", i),
			SourceDomain: "example.com",
			Coordinates:  &Coordinates{39.74, -104.99},
			Embedding:    e,
		})
	}

	opts := DefaultOptions()
	opts.MinClusterSize = 3
	result, err := newTestEngine(t, opts).Run(articles)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, result.Labels())
	n := result.Distances.Semantic.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := result.Distances.Semantic.At(i, j)
			assert.False(t, math.IsNaN(v), "(%d, %d)", i, j)
		}
	}
}
