package geonarrative

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Metric names as they appear in QualityReport.NullReasons.
const (
	MetricSilhouette       = "silhouette_score"
	MetricDaviesBouldin    = "davies_bouldin"
	MetricCalinskiHarabasz = "calinski_harabasz"
)

// ClusterScore pairs a cluster with its mean silhouette.
type ClusterScore struct {
	ClusterID  int     `json:"cluster_id"`
	Silhouette float64 `json:"silhouette"`
}

// ClusterSizeStats describes the distribution of cluster sizes.
type ClusterSizeStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// QualityReport is one evaluation of a labeling. Metrics that the data
// cannot support are nil and explained in NullReasons.
type QualityReport struct {
	Empty       bool   `json:"empty"`
	EmptyReason string `json:"empty_reason,omitempty"`

	NSamples  int `json:"n_samples"`
	NClusters int `json:"n_clusters"`
	NNoise    int `json:"n_noise"`

	SilhouetteScore  *float64          `json:"silhouette_score"`
	DaviesBouldin    *float64          `json:"davies_bouldin"`
	CalinskiHarabasz *float64          `json:"calinski_harabasz"`
	NullReasons      map[string]string `json:"null_reasons,omitempty"`

	LargestClusterPct *float64          `json:"largest_cluster_pct"`
	BalanceEntropy    *float64          `json:"balance_entropy"`
	ClusterSizes      []int             `json:"cluster_sizes,omitempty"`
	SizeStats         *ClusterSizeStats `json:"size_stats"`

	PerClusterSilhouette map[int]*float64 `json:"per_cluster_silhouette,omitempty"`
	WorstCluster         *ClusterScore    `json:"worst_cluster"`
	BestCluster          *ClusterScore    `json:"best_cluster"`

	MegaCluster     bool     `json:"mega_cluster"`
	Assessment      string   `json:"assessment,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// QualityOptions sets the thresholds used to flag a dominant cluster.
type QualityOptions struct {
	MegaClusterPct    float64 `yaml:"mega_cluster_pct" json:"mega_cluster_pct"`
	MinBalanceEntropy float64 `yaml:"min_balance_entropy" json:"min_balance_entropy"`
}

// DefaultQualityOptions flags a cluster holding 40% of articles or a
// normalized entropy below 0.8.
func DefaultQualityOptions() QualityOptions {
	return QualityOptions{MegaClusterPct: 0.4, MinBalanceEntropy: 0.8}
}

// EmptyQualityReport is the explicit report for a labeling with no clusters.
func EmptyQualityReport(nSamples, nNoise int, reason string) *QualityReport {
	return &QualityReport{
		Empty:       true,
		EmptyReason: reason,
		NSamples:    nSamples,
		NNoise:      nNoise,
		NullReasons: map[string]string{
			MetricSilhouette:       "no clusters",
			MetricDaviesBouldin:    "no clusters",
			MetricCalinskiHarabasz: "no clusters",
		},
		Assessment:      "No clusters to assess",
		Warnings:        []string{"empty clustering result: " + reason},
		Recommendations: []string{"Lower min_cluster_size or raise distance_threshold so clusters survive filtering"},
	}
}

// qualityInput is the labeling under evaluation restricted to clustered samples.
type qualityInput struct {
	members    [][]int // cluster -> indices into embeddings
	embeddings [][]float64
	semantic   *mat.SymDense
	n          int

	samples []float64 // per-sample silhouette, lazily computed
}

func (in *qualityInput) k() int { return len(in.members) }

// qualityMetric is one row of the metric table: a precondition returning a
// reason when the metric is undefined, and the computation itself.
type qualityMetric struct {
	name         string
	precondition func(in *qualityInput) string
	compute      func(in *qualityInput) (float64, string)
	field        func(r *QualityReport) **float64
}

var qualityMetrics = []qualityMetric{
	{
		name:         MetricSilhouette,
		precondition: requireSilhouetteShape,
		compute: func(in *qualityInput) (float64, string) {
			return stat.Mean(in.sampleSilhouettes(), nil), ""
		},
		field: func(r *QualityReport) **float64 { return &r.SilhouetteScore },
	},
	{
		name:         MetricDaviesBouldin,
		precondition: requireMoreSamplesThanClusters,
		compute:      daviesBouldin,
		field:        func(r *QualityReport) **float64 { return &r.DaviesBouldin },
	},
	{
		name:         MetricCalinskiHarabasz,
		precondition: requireMoreSamplesThanClusters,
		compute:      calinskiHarabasz,
		field:        func(r *QualityReport) **float64 { return &r.CalinskiHarabasz },
	},
}

func requireMultipleClusters(in *qualityInput) string {
	if in.k() < 2 {
		return fmt.Sprintf("requires at least 2 clusters, got %d", in.k())
	}
	return ""
}

func requireSilhouetteShape(in *qualityInput) string {
	if reason := requireMultipleClusters(in); reason != "" {
		return reason
	}
	for c, m := range in.members {
		if len(m) < 2 {
			return fmt.Sprintf("cluster %d has %d member, every cluster needs at least 2", c, len(m))
		}
	}
	return ""
}

func requireMoreSamplesThanClusters(in *qualityInput) string {
	if reason := requireMultipleClusters(in); reason != "" {
		return reason
	}
	if in.n <= in.k() {
		return fmt.Sprintf("requires more samples than clusters, got %d samples for %d clusters", in.n, in.k())
	}
	return ""
}

// QualityEvaluator computes QualityReports.
type QualityEvaluator struct {
	opts QualityOptions
}

// NewQualityEvaluator returns an evaluator using opts. Zero thresholds take defaults.
func NewQualityEvaluator(opts QualityOptions) *QualityEvaluator {
	def := DefaultQualityOptions()
	if opts.MegaClusterPct <= 0 {
		opts.MegaClusterPct = def.MegaClusterPct
	}
	if opts.MinBalanceEntropy <= 0 {
		opts.MinBalanceEntropy = def.MinBalanceEntropy
	}
	return &QualityEvaluator{opts: opts}
}

// EvaluateQuality evaluates labels with default thresholds.
func EvaluateQuality(labels []int, embeddings [][]float64, semantic *mat.SymDense) (*QualityReport, error) {
	return NewQualityEvaluator(DefaultQualityOptions()).Evaluate(labels, embeddings, semantic)
}

// Evaluate scores a labeling. labels[i] belongs to embeddings[i]; Noise
// entries are counted but excluded from every metric. semantic is the
// cosine distance matrix of embeddings and is computed when nil.
// Only malformed input returns an error; undefined metrics become nil.
func (e *QualityEvaluator) Evaluate(labels []int, embeddings [][]float64, semantic *mat.SymDense) (*QualityReport, error) {
	if len(labels) != len(embeddings) {
		return nil, inputErrorf("", "labels", "%d labels for %d embeddings", len(labels), len(embeddings))
	}
	if semantic != nil && semantic.SymmetricDim() != len(labels) {
		return nil, inputErrorf("", "semantic", "matrix size %d for %d labels", semantic.SymmetricDim(), len(labels))
	}

	var members [][]int
	nNoise := 0
	for i, l := range labels {
		if l == Noise {
			nNoise++
			continue
		}
		if l < 0 {
			return nil, inputErrorf("", "labels", "label %d at index %d is negative", l, i)
		}
		for len(members) <= l {
			members = append(members, nil)
		}
		members[l] = append(members[l], i)
	}
	for c, m := range members {
		if len(m) == 0 {
			return nil, inputErrorf("", "labels", "label %d is unused, labels must be contiguous", c)
		}
	}

	if len(members) == 0 {
		reason := "no clusters to evaluate"
		if len(labels) == 0 {
			reason = "no samples to evaluate"
		}
		return EmptyQualityReport(len(labels), nNoise, reason), nil
	}

	if _, err := checkEmbeddings(embeddings); err != nil {
		return nil, err
	}
	if semantic == nil {
		var err error
		if semantic, err = SemanticDistances(embeddings, 0); err != nil {
			return nil, err
		}
	}

	in := &qualityInput{
		members:    members,
		embeddings: embeddings,
		semantic:   semantic,
		n:          len(labels) - nNoise,
	}
	report := &QualityReport{
		NSamples:    len(labels),
		NClusters:   in.k(),
		NNoise:      nNoise,
		NullReasons: make(map[string]string),
	}

	for _, m := range qualityMetrics {
		reason := m.precondition(in)
		var value float64
		if reason == "" {
			value, reason = m.compute(in)
		}
		if reason == "" && (math.IsNaN(value) || math.IsInf(value, 0)) {
			reason = "metric is not finite for this labeling"
		}
		if reason != "" {
			report.NullReasons[m.name] = reason
			report.Warnings = append(report.Warnings, (&MetricError{Metric: m.name, Reason: reason}).Error())
			continue
		}
		*m.field(report) = &value
	}

	e.describeSizes(report, in)
	e.perClusterSilhouette(report, in)

	if report.MegaCluster {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"mega-cluster detected: largest cluster holds %.1f%% of articles, balance entropy %.2f",
			*report.LargestClusterPct*100, *report.BalanceEntropy))
	}
	report.Assessment = assessQuality(report)
	report.Recommendations = qualityRecommendations(report)
	return report, nil
}

// describeSizes fills the statistics that exist whenever at least one cluster does.
func (e *QualityEvaluator) describeSizes(report *QualityReport, in *qualityInput) {
	sizes := make([]float64, in.k())
	report.ClusterSizes = make([]int, in.k())
	for c, m := range in.members {
		sizes[c] = float64(len(m))
		report.ClusterSizes[c] = len(m)
	}

	largest := floats.Max(sizes)
	largestPct := largest / float64(in.n)
	report.LargestClusterPct = &largestPct

	entropy := BalanceEntropy(report.ClusterSizes)
	report.BalanceEntropy = &entropy

	mean, std := stat.MeanStdDev(sizes, nil)
	if in.k() < 2 {
		std = 0
	}
	report.SizeStats = &ClusterSizeStats{
		Mean:   mean,
		Median: median(sizes),
		StdDev: std,
		Min:    int(floats.Min(sizes)),
		Max:    int(largest),
	}

	report.MegaCluster = largestPct >= e.opts.MegaClusterPct ||
		(in.k() >= 2 && entropy < e.opts.MinBalanceEntropy)
}

// perClusterSilhouette reports the mean sample silhouette of each cluster
// and the worst and best clusters. Clusters are nil when the silhouette is
// undefined for the labeling.
func (e *QualityEvaluator) perClusterSilhouette(report *QualityReport, in *qualityInput) {
	report.PerClusterSilhouette = make(map[int]*float64, in.k())
	if requireSilhouetteShape(in) != "" {
		for c := range in.members {
			report.PerClusterSilhouette[c] = nil
		}
		return
	}

	samples := in.sampleSilhouettes()
	offset := 0
	for c, m := range in.members {
		score := stat.Mean(samples[offset:offset+len(m)], nil)
		offset += len(m)
		report.PerClusterSilhouette[c] = &score

		if report.WorstCluster == nil || score < report.WorstCluster.Silhouette {
			report.WorstCluster = &ClusterScore{ClusterID: c, Silhouette: score}
		}
		if report.BestCluster == nil || score > report.BestCluster.Silhouette {
			report.BestCluster = &ClusterScore{ClusterID: c, Silhouette: score}
		}
	}
	if report.WorstCluster != nil && report.WorstCluster.Silhouette < 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"cluster %d has negative silhouette %.3f and may need manual review or splitting",
			report.WorstCluster.ClusterID, report.WorstCluster.Silhouette))
	}
}

// sampleSilhouettes returns s(i) for every clustered sample, ordered by
// cluster and then by member order. It assumes requireSilhouetteShape passed.
func (in *qualityInput) sampleSilhouettes() []float64 {
	if in.samples != nil {
		return in.samples
	}
	samples := make([]float64, 0, in.n)
	for c, members := range in.members {
		for _, i := range members {
			a := meanDistance(in.semantic, i, members, true)
			b := math.Inf(1)
			for other, otherMembers := range in.members {
				if other == c {
					continue
				}
				b = math.Min(b, meanDistance(in.semantic, i, otherMembers, false))
			}
			s := 0.0
			if denom := math.Max(a, b); denom > 0 {
				s = (b - a) / denom
			}
			samples = append(samples, s)
		}
	}
	in.samples = samples
	return samples
}

func meanDistance(d *mat.SymDense, i int, members []int, excludeSelf bool) float64 {
	total, count := 0.0, 0
	for _, j := range members {
		if excludeSelf && j == i {
			continue
		}
		total += d.At(i, j)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (in *qualityInput) centroids() [][]float64 {
	centroids := make([][]float64, in.k())
	for c, members := range in.members {
		centroid := make([]float64, len(in.embeddings[members[0]]))
		for _, i := range members {
			floats.Add(centroid, in.embeddings[i])
		}
		floats.Scale(1/float64(len(members)), centroid)
		centroids[c] = centroid
	}
	return centroids
}

// daviesBouldin averages, over clusters, the worst ratio of summed
// within-cluster scatter to centroid separation (Euclidean).
func daviesBouldin(in *qualityInput) (float64, string) {
	centroids := in.centroids()
	scatter := make([]float64, in.k())
	for c, members := range in.members {
		for _, i := range members {
			scatter[c] += floats.Distance(in.embeddings[i], centroids[c], 2)
		}
		scatter[c] /= float64(len(members))
	}
	if floats.Max(scatter) == 0 {
		return 0, ""
	}

	total := 0.0
	for i := range centroids {
		worst := 0.0
		for j := range centroids {
			if i == j {
				continue
			}
			sep := floats.Distance(centroids[i], centroids[j], 2)
			if sep == 0 {
				continue
			}
			worst = math.Max(worst, (scatter[i]+scatter[j])/sep)
		}
		total += worst
	}
	return total / float64(in.k()), ""
}

// calinskiHarabasz is the ratio of between-cluster to within-cluster
// dispersion, each normalized by its degrees of freedom.
func calinskiHarabasz(in *qualityInput) (float64, string) {
	centroids := in.centroids()
	dim := len(centroids[0])
	overall := make([]float64, dim)
	for _, members := range in.members {
		for _, i := range members {
			floats.Add(overall, in.embeddings[i])
		}
	}
	floats.Scale(1/float64(in.n), overall)

	between, within := 0.0, 0.0
	for c, members := range in.members {
		d := floats.Distance(centroids[c], overall, 2)
		between += float64(len(members)) * d * d
		for _, i := range members {
			w := floats.Distance(in.embeddings[i], centroids[c], 2)
			within += w * w
		}
	}
	if within == 0 {
		return 0, "within-cluster dispersion is zero"
	}
	k, n := float64(in.k()), float64(in.n)
	return (between / (k - 1)) / (within / (n - k)), ""
}

// BalanceEntropy is the Shannon entropy of the size distribution divided by
// ln(k): 1 for equal sizes, toward 0 as one cluster dominates. A single
// cluster scores 0.
func BalanceEntropy(sizes []int) float64 {
	if len(sizes) < 2 {
		return 0
	}
	total := 0
	for _, s := range sizes {
		total += s
	}
	if total == 0 {
		return 0
	}
	p := make([]float64, len(sizes))
	for i, s := range sizes {
		p[i] = float64(s) / float64(total)
	}
	return stat.Entropy(p) / math.Log(float64(len(sizes)))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
