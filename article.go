package geonarrative

import "time"

// Article is one news item under analysis. Articles are read-only inputs to a run.
type Article struct {
	ID           string       `json:"id" jsonschema:"required"`
	Text         string       `json:"text" jsonschema:"description=Title or full text used for semantic comparison"`
	SourceDomain string       `json:"source_domain" jsonschema:"description=Publisher domain such as example.com"`
	OutletName   string       `json:"outlet_name,omitempty"`
	LocationName string       `json:"location_name,omitempty" jsonschema:"description=Geocoded place name such as Springfield Illinois"`
	URL          string       `json:"url,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Embedding    []float64    `json:"embedding,omitempty"`
	PublishedAt  time.Time    `json:"published_at,omitzero"`
}

// Classification labels how much an article's geography matters.
type Classification string

const (
	Syndicated      Classification = "syndicated"
	LocalWithQuotes Classification = "local_with_quotes"
	LocalOrQuotes   Classification = "local_or_quotes"
	Ambiguous       Classification = "ambiguous"
)

// Classifications lists every label in a stable order.
var Classifications = []Classification{Syndicated, LocalWithQuotes, LocalOrQuotes, Ambiguous}

// AssignmentStatus explains why an article has or lacks a cluster.
type AssignmentStatus string

const (
	StatusClustered             AssignmentStatus = "clustered"
	StatusFiltered              AssignmentStatus = "filtered"
	StatusExcludedNoCoordinates AssignmentStatus = "excluded_no_coordinates"
	StatusExcludedNoEmbedding   AssignmentStatus = "excluded_no_embedding"
	StatusExcludedSyndicated    AssignmentStatus = "excluded_syndicated"
)

// Noise is the cluster id of articles without a cluster.
const Noise = -1

// ClusteredArticle is the per-article output of a run.
type ClusteredArticle struct {
	ID             string           `json:"id"`
	Classification Classification   `json:"classification"`
	SpatialWeight  float64          `json:"spatial_weight"`
	ClusterID      int              `json:"cluster_id"`
	Status         AssignmentStatus `json:"status"`
}
