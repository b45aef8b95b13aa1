package geonarrative

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Options configures one engine. Start from DefaultOptions; zero values of
// optional fields are replaced by their defaults in NewEngine. A positive
// MinClusterSize overrides SizeRule.
type Options struct {
	Linkage             Linkage        `yaml:"linkage" json:"linkage"`
	DistanceThreshold   float64        `yaml:"distance_threshold" json:"distance_threshold"`
	MinClusterSize      int            `yaml:"min_cluster_size" json:"min_cluster_size"`
	SizeRule            SizeRule       `yaml:"size_rule" json:"size_rule"`
	Weights             *WeightTable   `yaml:"weights" json:"weights"`
	Quality             QualityOptions `yaml:"quality" json:"quality"`
	Dedup               DedupOptions   `yaml:"dedup" json:"dedup"`
	ExcludeSyndicated   bool           `yaml:"exclude_syndicated" json:"exclude_syndicated"`
	RepresentativeCount int            `yaml:"representative_count" json:"representative_count"`
	MinArticles         int            `yaml:"min_articles" json:"min_articles"`
	Workers             int            `yaml:"workers" json:"workers"`

	// Logf receives progress messages. Nil keeps the engine silent.
	Logf func(format string, args ...any) `yaml:"-" json:"-"`
}

// DefaultOptions returns complete linkage cut at 0.5 with the adaptive λ table.
func DefaultOptions() Options {
	weights := DefaultWeightTable()
	return Options{
		Linkage:             CompleteLinkage,
		DistanceThreshold:   0.5,
		SizeRule:            DefaultSizeRule(),
		Weights:             &weights,
		Quality:             DefaultQualityOptions(),
		Dedup:               DefaultDedupOptions(),
		RepresentativeCount: DefaultRepresentativeCount,
		MinArticles:         2,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.Linkage == "" {
		o.Linkage = def.Linkage
	}
	if o.SizeRule == (SizeRule{}) {
		o.SizeRule = def.SizeRule
	}
	if o.Weights == nil {
		o.Weights = def.Weights
	}
	if o.Dedup.Similarity == 0 {
		o.Dedup.Similarity = def.Dedup.Similarity
	}
	if o.Dedup.MinCopies == 0 {
		o.Dedup.MinCopies = def.Dedup.MinCopies
	}
	if o.RepresentativeCount <= 0 {
		o.RepresentativeCount = def.RepresentativeCount
	}
	if o.MinArticles < 2 {
		o.MinArticles = def.MinArticles
	}
}

// Validate checks every option, returning an *InputError for the first bad one.
func (o Options) Validate() error {
	if err := o.Linkage.Validate(); err != nil {
		return err
	}
	if math.IsNaN(o.DistanceThreshold) || o.DistanceThreshold <= 0 {
		return inputErrorf("", "distance_threshold", "must be positive, got %v", o.DistanceThreshold)
	}
	if o.MinClusterSize < 0 {
		return inputErrorf("", "min_cluster_size", "must not be negative, got %d", o.MinClusterSize)
	}
	if err := o.SizeRule.Validate(); err != nil {
		return err
	}
	if o.Weights != nil {
		if err := o.Weights.Validate(); err != nil {
			return err
		}
	}
	if o.Dedup.Similarity <= 0 || o.Dedup.Similarity > 1 {
		return inputErrorf("", "dedup.similarity", "must be in (0, 1], got %v", o.Dedup.Similarity)
	}
	if o.Dedup.MinCopies < 1 {
		return inputErrorf("", "dedup.min_copies", "must be at least 1, got %d", o.Dedup.MinCopies)
	}
	return nil
}

// Engine clusters article batches. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	classifier *Classifier
	evaluator  *QualityEvaluator
	opts       Options
}

// NewEngine validates opts and returns an Engine.
func NewEngine(classifier *Classifier, opts Options) (*Engine, error) {
	if classifier == nil {
		return nil, inputErrorf("", "classifier", "must not be nil")
	}
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		classifier: classifier,
		evaluator:  NewQualityEvaluator(opts.Quality),
		opts:       opts,
	}, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Classifier returns the classifier the engine was built with.
func (e *Engine) Classifier() *Classifier { return e.classifier }

// Result is the outcome of one run. It is never mutated after Run returns.
type Result struct {
	RunID             string      `json:"run_id"`
	CreatedAt         time.Time   `json:"created_at"`
	Linkage           Linkage     `json:"linkage"`
	DistanceThreshold float64     `json:"distance_threshold"`
	MinClusterSize    int         `json:"min_cluster_size"`
	Weights           WeightTable `json:"weights"`
	LexiconVersion    string      `json:"lexicon_version"`

	NArticles         int     `json:"n_articles"`
	NClusterable      int     `json:"n_clusterable"`
	MaxSpatialKm      float64 `json:"max_spatial_km"`
	RawClusters       int     `json:"raw_clusters"`
	DissolvedClusters int     `json:"dissolved_clusters"`

	Articles []ClusteredArticle `json:"articles"`
	Clusters []ClusterSummary   `json:"clusters"`
	Quality  *QualityReport     `json:"quality"`
	National *NationalBaseline  `json:"national_baseline,omitempty"`

	Unlocated          []string `json:"unlocated,omitempty"`
	Unembedded         []string `json:"unembedded,omitempty"`
	ExcludedSyndicated []string `json:"excluded_syndicated,omitempty"`

	Empty       bool     `json:"empty"`
	EmptyReason string   `json:"empty_reason,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`

	Dendrogram *Dendrogram       `json:"-"`
	Distances  *DistanceMatrices `json:"-"`
}

// Err returns an *EmptyResultError when every cluster was dissolved, nil otherwise.
func (r *Result) Err() error {
	if r.Empty {
		return &EmptyResultError{Reason: r.EmptyReason}
	}
	return nil
}

// Labels returns cluster ids in input order.
func (r *Result) Labels() []int {
	labels := make([]int, len(r.Articles))
	for i, a := range r.Articles {
		labels[i] = a.ClusterID
	}
	return labels
}

func (e *Engine) logf(format string, args ...any) {
	if e.opts.Logf != nil {
		e.opts.Logf(format, args...)
	}
}

// Run classifies, weights and clusters articles and evaluates the result.
// Malformed input fails the whole run with an *InputError.
func (e *Engine) Run(articles []Article) (*Result, error) {
	if err := validateArticles(articles); err != nil {
		return nil, err
	}

	weights := *e.opts.Weights
	result := &Result{
		RunID:             uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		Linkage:           e.opts.Linkage,
		DistanceThreshold: e.opts.DistanceThreshold,
		Weights:           weights,
		LexiconVersion:    e.classifier.Lexicon().Version,
		NArticles:         len(articles),
		Articles:          make([]ClusteredArticle, len(articles)),
	}

	classes := make([]Classification, len(articles))
	for i, a := range articles {
		classes[i] = e.classifier.Classify(a)
	}
	if e.opts.Dedup.Enabled {
		e.markDuplicates(articles, classes)
	}

	lambdas := make([]float64, len(articles))
	var clusterable []int
	for i, a := range articles {
		lambdas[i] = weights.Lambda(classes[i])
		ca := ClusteredArticle{
			ID:             a.ID,
			Classification: classes[i],
			SpatialWeight:  lambdas[i],
			ClusterID:      Noise,
		}
		switch {
		case len(a.Embedding) == 0:
			ca.Status = StatusExcludedNoEmbedding
			result.Unembedded = append(result.Unembedded, a.ID)
		case a.Coordinates == nil:
			ca.Status = StatusExcludedNoCoordinates
			result.Unlocated = append(result.Unlocated, a.ID)
		case e.opts.ExcludeSyndicated && classes[i] == Syndicated:
			ca.Status = StatusExcludedSyndicated
			result.ExcludedSyndicated = append(result.ExcludedSyndicated, a.ID)
		default:
			clusterable = append(clusterable, i)
		}
		result.Articles[i] = ca
	}
	if len(result.Unembedded) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d articles without embeddings excluded from clustering", len(result.Unembedded)))
	}
	if len(result.Unlocated) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d articles without coordinates excluded from clustering", len(result.Unlocated)))
	}

	national, _ := SeparateSyndicated(articles, classes)
	result.National = BuildNationalBaseline(national, e.opts.RepresentativeCount)

	n := len(clusterable)
	result.NClusterable = n
	if n < e.opts.MinArticles {
		return nil, inputErrorf("", "articles", "need at least %d articles with embeddings and coordinates, got %d", e.opts.MinArticles, n)
	}

	embeddings := make([][]float64, n)
	coords := make([]Coordinates, n)
	subLambdas := make([]float64, n)
	for k, i := range clusterable {
		embeddings[k] = articles[i].Embedding
		coords[k] = *articles[i].Coordinates
		subLambdas[k] = lambdas[i]
	}

	distances, err := ComputeDistances(embeddings, coords, subLambdas, e.opts.Workers)
	if err != nil {
		return nil, err
	}
	result.Distances = distances
	result.MaxSpatialKm = distances.MaxSpatialKm
	e.logf("📐 Computed %d×%d distance matrices (max spatial distance %.0f km)", n, n, distances.MaxSpatialKm)

	dendrogram, err := Agglomerate(distances.Combined, e.opts.Linkage)
	if err != nil {
		return nil, err
	}
	result.Dendrogram = dendrogram
	raw := dendrogram.Cut(e.opts.DistanceThreshold)
	rawSizes := ClusterSizes(raw)
	result.RawClusters = len(rawSizes)

	minSize := e.opts.MinClusterSize
	if minSize <= 0 {
		minSize = e.opts.SizeRule.MinClusterSize(n)
	}
	result.MinClusterSize = minSize

	labels, dissolved := FilterSmallClusters(raw, minSize)
	result.DissolvedClusters = dissolved
	e.logf("🔗 %s linkage at %.3f: %d raw clusters, %d dissolved below min size %d",
		e.opts.Linkage, e.opts.DistanceThreshold, result.RawClusters, dissolved, minSize)

	for k, i := range clusterable {
		result.Articles[i].ClusterID = labels[k]
		if labels[k] == Noise {
			result.Articles[i].Status = StatusFiltered
		} else {
			result.Articles[i].Status = StatusClustered
		}
	}

	if len(ClusterSizes(labels)) == 0 {
		largest := 0
		for _, s := range rawSizes {
			largest = max(largest, s)
		}
		result.Empty = true
		result.EmptyReason = EmptyDiagnostics(n, minSize, result.RawClusters, largest, e.opts.DistanceThreshold)
		result.Quality = EmptyQualityReport(n, n, result.EmptyReason)
		result.Clusters = []ClusterSummary{}
		result.Warnings = append(result.Warnings, result.Quality.Warnings...)
		e.logf("⚠️  %s", result.EmptyReason)
		return result, nil
	}

	quality, err := e.evaluator.Evaluate(labels, embeddings, distances.Semantic)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate clustering: %w", err)
	}
	result.Quality = quality
	result.Warnings = append(result.Warnings, quality.Warnings...)

	subArticles := make([]Article, n)
	subClasses := make([]Classification, n)
	for k, i := range clusterable {
		subArticles[k] = articles[i]
		subClasses[k] = classes[i]
	}
	result.Clusters = SummarizeClusters(subArticles, labels, subClasses, subLambdas, e.opts.RepresentativeCount)

	return result, nil
}

// markDuplicates reclassifies near-duplicate embedded articles as syndicated.
func (e *Engine) markDuplicates(articles []Article, classes []Classification) {
	var idx []int
	var embeddings [][]float64
	for i, a := range articles {
		if len(a.Embedding) > 0 {
			idx = append(idx, i)
			embeddings = append(embeddings, a.Embedding)
		}
	}
	if len(idx) < 2 {
		return
	}
	semantic, err := SemanticDistances(embeddings, e.opts.Workers)
	if err != nil {
		return
	}
	marked := 0
	for k, dup := range DetectDuplicates(semantic, e.opts.Dedup) {
		if dup && classes[idx[k]] != Syndicated {
			classes[idx[k]] = Syndicated
			marked++
		}
	}
	e.logf("🔁 Marked %d near-duplicate articles as syndicated", marked)
}

// validateArticles rejects empty or duplicate ids, invalid coordinates and
// inconsistent embeddings.
func validateArticles(articles []Article) error {
	seen := make(map[string]struct{}, len(articles))
	dim := -1
	for i, a := range articles {
		if a.ID == "" {
			return inputErrorf("", fmt.Sprintf("articles[%d].id", i), "empty id")
		}
		if _, dup := seen[a.ID]; dup {
			return inputErrorf(a.ID, "id", "duplicate id")
		}
		seen[a.ID] = struct{}{}

		if a.Coordinates != nil {
			if err := a.Coordinates.Validate(); err != nil {
				var ie *InputError
				if errors.As(err, &ie) {
					ie.ArticleID = a.ID
				}
				return err
			}
		}

		if len(a.Embedding) == 0 {
			continue
		}
		if dim == -1 {
			dim = len(a.Embedding)
		} else if len(a.Embedding) != dim {
			return inputErrorf(a.ID, "embedding", "dimension %d, expected %d", len(a.Embedding), dim)
		}
		if err := checkVector(a.Embedding); err != nil {
			return inputErrorf(a.ID, "embedding", "%s", err)
		}
	}
	return nil
}
