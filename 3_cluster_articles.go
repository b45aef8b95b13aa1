package geonarrative

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sosodev/duration"
	"github.com/spf13/cobra"
)

// Files written by the cluster stage into Paths.Clusters.
const (
	ResultFile     = "result.json"
	QualityFile    = "quality.json"
	ComparisonFile = "comparison.json"
	MetricsFile    = "metrics.prom"
)

var ClusterArticlesCmd = &cobra.Command{
	Use:   "cluster-articles",
	Short: "Cluster embedded articles by narrative and geography",
	Run: func(cmd *cobra.Command, args []string) {
		settings := LoadSettings(Config.SettingsPath)
		if err := clusterArticles(settings); err != nil {
			log.Printf("Failed to cluster articles: %v", err)
			return
		}
		log.Println("Article clustering complete.")
	},
}

// ClusterRun is the output of one cluster stage: the adaptive run, the
// fixed-λ baseline it was compared with and the comparison itself.
type ClusterRun struct {
	Result     *Result
	Baseline   *Result
	Comparison *Comparison
	Metrics    *RunMetrics
}

func clusterArticles(settings Settings) error {
	since, err := windowStart(settings.Window, time.Now())
	if err != nil {
		return err
	}

	store, err := OpenStore(Config.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	articles, err := store.LoadArticles(since)
	if err != nil {
		return fmt.Errorf("failed to load articles: %w", err)
	}
	log.Printf("Loaded %d articles", len(articles))

	run, err := runClustering(settings, articles)
	if err != nil {
		return err
	}

	if err := writeClusterRun(settings.Paths.Clusters, run); err != nil {
		return err
	}
	if err := store.SaveRun(run.Result); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	printQualityReport(run.Result)
	if run.Comparison != nil {
		log.Printf("⚖️  Adaptive vs fixed λ=%.2f: %s", settings.CompareFixedLambda, run.Comparison.Recommendation)
	}
	return run.Result.Err()
}

// windowStart converts an ISO-8601 duration into the earliest publication
// time to include. An empty window returns the zero time.
func windowStart(window string, now time.Time) (time.Time, error) {
	if window == "" {
		return time.Time{}, nil
	}
	d, err := duration.Parse(window)
	if err != nil {
		return time.Time{}, inputErrorf("", "window", "invalid ISO-8601 duration %q: %v", window, err)
	}
	return now.Add(-d.ToTimeDuration()), nil
}

// runClustering runs the adaptive engine and the fixed-λ baseline over the
// same articles.
func runClustering(settings Settings, articles []Article) (*ClusterRun, error) {
	engine, err := settings.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	run := &ClusterRun{Metrics: NewRunMetrics()}

	start := time.Now()
	run.Result, err = engine.Run(articles)
	if err != nil {
		return nil, err
	}
	run.Metrics.Observe(run.Result, time.Since(start))

	baselineOpts := engine.Options()
	fixed := FixedWeightTable(settings.CompareFixedLambda)
	baselineOpts.Weights = &fixed
	baselineOpts.Logf = nil
	baseline, err := NewEngine(engine.Classifier(), baselineOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create baseline engine: %w", err)
	}
	run.Baseline, err = baseline.Run(articles)
	if err != nil {
		return nil, fmt.Errorf("failed to run baseline: %w", err)
	}

	name := fmt.Sprintf("fixed λ=%.2f", settings.CompareFixedLambda)
	run.Comparison = CompareReports(run.Result.Quality, run.Baseline.Quality, "adaptive", name)
	return run, nil
}

func writeClusterRun(dir string, run *ClusterRun) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create clusters directory: %w", err)
	}

	outputs := []struct {
		name  string
		value any
	}{
		{ResultFile, run.Result},
		{QualityFile, run.Result.Quality},
		{ComparisonFile, run.Comparison},
	}
	for _, o := range outputs {
		if err := writeJSON(filepath.Join(dir, o.name), o.value); err != nil {
			return err
		}
	}
	return run.Metrics.WriteTextfile(filepath.Join(dir, MetricsFile))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadResult loads a result written by the cluster stage.
func ReadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return &r, nil
}

func printQualityReport(r *Result) {
	q := r.Quality

	log.Println("=====================================")
	log.Println("    CLUSTERING QUALITY REPORT")
	log.Println("=====================================")
	log.Printf("📊 Articles: %d total, %d clusterable → %d clusters (%d raw, %d dissolved)",
		r.NArticles, r.NClusterable, q.NClusters, r.RawClusters, r.DissolvedClusters)
	log.Printf("⚙️  %s linkage, threshold %.3f, min cluster size %d, λ %s",
		r.Linkage, r.DistanceThreshold, r.MinClusterSize, r.Weights)

	printMetric("📈 Silhouette Score", q.SilhouetteScore, q.NullReasons[MetricSilhouette], "")
	printMetric("📉 Davies-Bouldin Index", q.DaviesBouldin, q.NullReasons[MetricDaviesBouldin], " (lower is better)")
	printMetric("📐 Calinski-Harabasz Index", q.CalinskiHarabasz, q.NullReasons[MetricCalinskiHarabasz], "")
	if q.LargestClusterPct != nil {
		log.Printf("🐘 Largest Cluster: %.1f%%", *q.LargestClusterPct*100)
	}
	if q.BalanceEntropy != nil {
		log.Printf("⚖️  Balance Entropy: %.3f", *q.BalanceEntropy)
	}

	if len(r.Clusters) > 0 {
		log.Println("\n📈 Cluster Size Distribution:")
		for _, c := range r.Clusters {
			log.Printf("  Cluster %d: %d articles, radius %.0f km", c.ClusterID, c.Size, c.GeographicRadiusKm)
		}
	}

	classes := make([]Classification, len(r.Articles))
	for i, a := range r.Articles {
		classes[i] = a.Classification
	}
	log.Println("\n🏷️  Classification Distribution:")
	counts := ClassificationCounts(classes)
	for _, c := range Classifications {
		log.Printf("  %s: %d", c, counts[c])
	}

	log.Printf("\n🎯 Quality Assessment: %s", q.Assessment)
	for _, w := range sortedUnique(r.Warnings) {
		log.Printf("⚠️  %s", w)
	}
	for _, rec := range q.Recommendations {
		log.Printf("💡 %s", rec)
	}
	log.Println("=====================================")
}

func printMetric(label string, v *float64, reason, suffix string) {
	if v == nil {
		log.Printf("%s: n/a (%s)", label, reason)
		return
	}
	log.Printf("%s: %.3f%s", label, *v, suffix)
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
