package geonarrative

import "fmt"

// MetricComparison is one metric evaluated for two methods.
type MetricComparison struct {
	Metric         string   `json:"metric"`
	A              *float64 `json:"a"`
	B              *float64 `json:"b"`
	HigherIsBetter bool     `json:"higher_is_better"`
	Winner         string   `json:"winner,omitempty"`
	ImprovementPct float64  `json:"improvement_pct"`
}

// Comparison scores two quality reports against each other.
type Comparison struct {
	NameA          string             `json:"name_a"`
	NameB          string             `json:"name_b"`
	ClustersA      int                `json:"clusters_a"`
	ClustersB      int                `json:"clusters_b"`
	Metrics        []MetricComparison `json:"metrics"`
	WinsA          int                `json:"wins_a"`
	WinsB          int                `json:"wins_b"`
	Winner         string             `json:"winner"`
	Recommendation string             `json:"recommendation"`
}

// CompareReports compares silhouette (higher wins), Davies-Bouldin (lower
// wins) and largest cluster share (lower wins). Metrics null in either
// report are listed without a winner. Ties go to A.
func CompareReports(a, b *QualityReport, nameA, nameB string) *Comparison {
	c := &Comparison{
		NameA:     nameA,
		NameB:     nameB,
		ClustersA: a.NClusters,
		ClustersB: b.NClusters,
	}

	c.add(MetricSilhouette, a.SilhouetteScore, b.SilhouetteScore, true)
	c.add(MetricDaviesBouldin, a.DaviesBouldin, b.DaviesBouldin, false)
	c.add("largest_cluster_pct", a.LargestClusterPct, b.LargestClusterPct, false)

	switch {
	case c.WinsB > c.WinsA:
		c.Winner = nameB
		c.Recommendation = fmt.Sprintf("Use %s for better clustering quality (%d/%d metrics)", nameB, c.WinsB, c.WinsA+c.WinsB)
	case c.WinsA > c.WinsB:
		c.Winner = nameA
		c.Recommendation = fmt.Sprintf("Use %s for better clustering quality (%d/%d metrics)", nameA, c.WinsA, c.WinsA+c.WinsB)
	default:
		c.Winner = "tie"
		c.Recommendation = "Methods perform similarly; prefer the simpler one"
	}
	return c
}

func (c *Comparison) add(metric string, a, b *float64, higherIsBetter bool) {
	m := MetricComparison{Metric: metric, A: a, B: b, HigherIsBetter: higherIsBetter}
	if a != nil && b != nil {
		bWins := *b < *a
		if higherIsBetter {
			bWins = *b > *a
		}
		if bWins {
			m.Winner = c.NameB
			c.WinsB++
		} else {
			m.Winner = c.NameA
			c.WinsA++
		}
		if *a != 0 {
			delta := *b - *a
			if !higherIsBetter {
				delta = -delta
			}
			abs := *a
			if abs < 0 {
				abs = -abs
			}
			m.ImprovementPct = delta / abs * 100
		}
	}
	c.Metrics = append(c.Metrics, m)
}
