package geonarrative

import (
	"fmt"
	"math"
)

// SizeRule derives min_cluster_size from the number of clustered articles,
// so small batches are not wiped out by a threshold tuned for large ones.
type SizeRule struct {
	Fraction float64 `yaml:"fraction" json:"fraction"`
	Floor    int     `yaml:"floor" json:"floor"`
}

// DefaultSizeRule returns max(3, floor(0.10·N)).
func DefaultSizeRule() SizeRule {
	return SizeRule{Fraction: 0.10, Floor: 3}
}

// MinClusterSize returns max(Floor, floor(Fraction·n)), and never less than 1.
func (r SizeRule) MinClusterSize(n int) int {
	size := int(math.Floor(r.Fraction * float64(n)))
	return max(size, r.Floor, 1)
}

// Validate rejects rules that cannot produce a meaningful size.
func (r SizeRule) Validate() error {
	if math.IsNaN(r.Fraction) || r.Fraction < 0 || r.Fraction >= 1 {
		return inputErrorf("", "size_rule.fraction", "fraction %v outside [0, 1)", r.Fraction)
	}
	if r.Floor < 1 {
		return inputErrorf("", "size_rule.floor", "floor %d must be at least 1", r.Floor)
	}
	return nil
}

func (r SizeRule) String() string {
	return fmt.Sprintf("max(%d, floor(%.2f·N))", r.Floor, r.Fraction)
}

// FilterSmallClusters dissolves clusters with fewer than minSize members.
// Their members become Noise and the survivors are relabeled to [0, k).
// It returns the new labels and the number of dissolved clusters.
func FilterSmallClusters(labels []int, minSize int) ([]int, int) {
	sizes := make(map[int]int)
	for _, l := range labels {
		if l != Noise {
			sizes[l]++
		}
	}

	filtered := make([]int, len(labels))
	dissolved := 0
	for _, size := range sizes {
		if size < minSize {
			dissolved++
		}
	}
	for i, l := range labels {
		if l == Noise || sizes[l] < minSize {
			filtered[i] = Noise
			continue
		}
		filtered[i] = l
	}
	return Relabel(filtered), dissolved
}

// Relabel maps labels onto a contiguous [0, k) range in order of first
// appearance. Noise stays Noise.
func Relabel(labels []int) []int {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise {
			out[i] = Noise
			continue
		}
		nl, ok := mapping[l]
		if !ok {
			nl = len(mapping)
			mapping[l] = nl
		}
		out[i] = nl
	}
	return out
}

// ClusterSizes returns the member count per label for labels in [0, k).
func ClusterSizes(labels []int) []int {
	var sizes []int
	for _, l := range labels {
		if l == Noise {
			continue
		}
		for len(sizes) <= l {
			sizes = append(sizes, 0)
		}
		sizes[l]++
	}
	return sizes
}
