package geonarrative

import (
	"fmt"
	"strings"
)

// assessQuality turns the report into a one-line verdict.
func assessQuality(r *QualityReport) string {
	if r.Empty {
		return "No clusters to assess"
	}

	var assessment []string
	switch {
	case r.SilhouetteScore == nil:
		assessment = append(assessment, "Cluster separation not measurable")
	case *r.SilhouetteScore > 0.5:
		assessment = append(assessment, "Strong cluster structure")
	case *r.SilhouetteScore > 0.3:
		assessment = append(assessment, "Reasonable cluster structure")
	default:
		assessment = append(assessment, "Weak cluster structure")
	}

	if r.DaviesBouldin != nil {
		switch {
		case *r.DaviesBouldin < 1.0:
			assessment = append(assessment, "well-defined clusters")
		case *r.DaviesBouldin < 2.0:
			assessment = append(assessment, "moderately defined clusters")
		default:
			assessment = append(assessment, "poorly defined clusters")
		}
	}

	if r.NClusters > 1 && r.BalanceEntropy != nil {
		switch {
		case *r.BalanceEntropy > 0.8:
			assessment = append(assessment, "well balanced sizes")
		case *r.BalanceEntropy > 0.6:
			assessment = append(assessment, "moderately balanced sizes")
		default:
			assessment = append(assessment, "imbalanced sizes")
		}
	}

	if len(assessment) == 1 {
		return assessment[0]
	}
	last := len(assessment) - 1
	return strings.Join(assessment[:last], ", ") + " with " + assessment[last]
}

// qualityRecommendations suggests tuning steps for the next run.
func qualityRecommendations(r *QualityReport) []string {
	var recommendations []string

	if r.SilhouetteScore != nil {
		if *r.SilhouetteScore < 0.2 {
			recommendations = append(recommendations, "Silhouette is very low: lower distance_threshold or switch to complete linkage")
		} else if *r.SilhouetteScore < 0.5 {
			recommendations = append(recommendations, "Moderate separation: consider fine-tuning distance_threshold")
		}
	}

	if r.DaviesBouldin != nil && *r.DaviesBouldin > 2.0 {
		recommendations = append(recommendations, "High Davies-Bouldin index suggests overlapping clusters")
	}

	if r.MegaCluster && r.LargestClusterPct != nil {
		recommendations = append(recommendations, fmt.Sprintf(
			"Largest cluster holds %.0f%% of articles: check syndication filtering or enable exclude_syndicated",
			*r.LargestClusterPct*100))
	}

	if r.NClusters == 1 {
		recommendations = append(recommendations, "Only one cluster formed: lower distance_threshold to separate narratives")
	}

	if r.WorstCluster != nil && r.WorstCluster.Silhouette < 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"Review cluster %d: negative silhouette means members sit closer to another cluster",
			r.WorstCluster.ClusterID))
	}

	if r.NSamples > 0 && float64(r.NNoise)/float64(r.NSamples) > 0.5 {
		recommendations = append(recommendations, "More than half of the articles were filtered as noise: raise distance_threshold or lower min_cluster_size")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Clustering quality looks good overall")
	}
	return recommendations
}

// EmptyDiagnostics explains why every cluster was dissolved.
func EmptyDiagnostics(n, minClusterSize, rawClusters, largestRaw int, threshold float64) string {
	switch {
	case rawClusters == n:
		return fmt.Sprintf("distance threshold too low for dataset: N=%d, distance_threshold=%.3f left every article in its own cluster (min_cluster_size=%d)",
			n, threshold, minClusterSize)
	default:
		return fmt.Sprintf("threshold too high for dataset size: N=%d, min_cluster_size=%d, largest cluster before filtering=%d across %d clusters",
			n, minClusterSize, largestRaw, rawClusters)
	}
}
