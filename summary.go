package geonarrative

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultRepresentativeCount is how many texts a summary samples per cluster.
const DefaultRepresentativeCount = 5

// ClusterSummary describes one narrative cluster.
type ClusterSummary struct {
	ClusterID           int                    `json:"cluster_id"`
	Size                int                    `json:"size"`
	CentroidCoordinates Coordinates            `json:"centroid_coordinates"`
	GeographicRadiusKm  float64                `json:"geographic_radius"`
	RepresentativeTexts []string               `json:"representative_texts"`
	ArticleIDs          []string               `json:"article_ids"`
	Classifications     map[Classification]int `json:"classifications"`
	MeanSpatialWeight   float64                `json:"mean_spatial_weight"`
}

// clusterMember is everything a summary needs from one clustered article.
type clusterMember struct {
	ID             string
	Text           string
	Coordinates    Coordinates
	Embedding      []float64
	Classification Classification
	SpatialWeight  float64
}

// circularMeanLon turns summed sines and cosines of longitudes into their
// mean direction in degrees, so members on both sides of the antimeridian
// average near ±180 instead of 0.
func circularMeanLon(sin, cos float64) float64 {
	if sin == 0 && cos == 0 {
		return 0
	}
	return math.Atan2(sin, cos) * 180 / math.Pi
}

// SummarizeClusters builds one summary per label in [0, k), ordered by id.
// The centroid latitude is the arithmetic mean and the centroid longitude
// the circular mean of member coordinates.
// Representatives are the members closest to the semantic centroid, ties
// broken by input order.
func SummarizeClusters(articles []Article, labels []int, classes []Classification, weights []float64, representatives int) []ClusterSummary {
	members := make(map[int][]clusterMember)
	k := 0
	for i, l := range labels {
		if l == Noise {
			continue
		}
		a := articles[i]
		m := clusterMember{
			ID:             a.ID,
			Text:           a.Text,
			Embedding:      a.Embedding,
			Classification: classes[i],
			SpatialWeight:  weights[i],
		}
		if a.Coordinates != nil {
			m.Coordinates = *a.Coordinates
		}
		members[l] = append(members[l], m)
		k = max(k, l+1)
	}
	if representatives <= 0 {
		representatives = DefaultRepresentativeCount
	}

	summaries := make([]ClusterSummary, 0, k)
	for c := 0; c < k; c++ {
		if len(members[c]) == 0 {
			continue
		}
		summaries = append(summaries, summarizeCluster(c, members[c], representatives))
	}
	return summaries
}

func summarizeCluster(id int, members []clusterMember, representatives int) ClusterSummary {
	s := ClusterSummary{
		ClusterID:       id,
		Size:            len(members),
		ArticleIDs:      make([]string, len(members)),
		Classifications: make(map[Classification]int),
	}

	var lat, lonSin, lonCos, lambda float64
	for i, m := range members {
		s.ArticleIDs[i] = m.ID
		s.Classifications[m.Classification]++
		lat += m.Coordinates.Lat
		lonRad := m.Coordinates.Lon * math.Pi / 180
		lonSin += math.Sin(lonRad)
		lonCos += math.Cos(lonRad)
		lambda += m.SpatialWeight
	}
	n := float64(len(members))
	s.CentroidCoordinates = Coordinates{Lat: lat / n, Lon: circularMeanLon(lonSin, lonCos)}
	s.MeanSpatialWeight = lambda / n

	for _, m := range members {
		s.GeographicRadiusKm = math.Max(s.GeographicRadiusKm, Haversine(s.CentroidCoordinates, m.Coordinates))
	}

	centroid := make([]float64, len(members[0].Embedding))
	for _, m := range members {
		floats.Add(centroid, m.Embedding)
	}
	floats.Scale(1/n, centroid)

	order := make([]int, len(members))
	dist := make([]float64, len(members))
	for i, m := range members {
		order[i] = i
		dist[i] = CosineDistance(m.Embedding, centroid)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dist[order[a]] < dist[order[b]]
	})

	count := min(representatives, len(members))
	s.RepresentativeTexts = make([]string, count)
	for i := 0; i < count; i++ {
		s.RepresentativeTexts[i] = members[order[i]].Text
	}
	return s
}
