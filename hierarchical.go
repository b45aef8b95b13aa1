package geonarrative

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Linkage selects how the distance between two clusters is derived from
// the distances between their members.
type Linkage string

const (
	// AverageLinkage uses the mean pairwise member distance.
	AverageLinkage Linkage = "average"
	// CompleteLinkage uses the largest pairwise member distance. It yields
	// tighter, better separated clusters.
	CompleteLinkage Linkage = "complete"
)

// Validate rejects unknown linkage names.
func (l Linkage) Validate() error {
	switch l {
	case AverageLinkage, CompleteLinkage:
		return nil
	default:
		return inputErrorf("", "linkage", "unsupported linkage %q (want average or complete)", string(l))
	}
}

// Merge is one step of the agglomeration. A and B are indices of points
// that belong to the two merged clusters.
type Merge struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Height float64 `json:"height"`
	Size   int     `json:"size"`
}

// Dendrogram is the full merge history of N points, ordered by height.
type Dendrogram struct {
	N       int     `json:"n"`
	Linkage Linkage `json:"linkage"`
	Merges  []Merge `json:"merges"`
}

// Agglomerate builds the complete dendrogram over a precomputed distance
// matrix using the nearest-neighbor chain algorithm. Both supported
// linkages are reducible, so the chain yields the same hierarchy as the
// naive closest-pair loop in O(N²) time.
func Agglomerate(d *mat.SymDense, linkage Linkage) (*Dendrogram, error) {
	if err := linkage.Validate(); err != nil {
		return nil, err
	}
	n := d.SymmetricDim()
	dendrogram := &Dendrogram{N: n, Linkage: linkage}
	if n < 2 {
		return dendrogram, nil
	}

	// Working copy; row x holds distances from the cluster whose slot is x.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			v := d.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, inputErrorf("", "distances", "non-finite distance %v at (%d, %d)", v, i, j)
			}
			dist[i][j] = v
		}
	}
	size := make([]int, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		active[i] = true
	}

	merges := make([]Merge, 0, n-1)
	chain := make([]int, 0, n)
	next := 0
	for len(merges) < n-1 {
		if len(chain) == 0 {
			for !active[next] {
				next++
			}
			chain = append(chain, next)
		}

		a := chain[len(chain)-1]
		prev := -1
		best, bestDist := -1, math.Inf(1)
		if len(chain) > 1 {
			prev = chain[len(chain)-2]
			best, bestDist = prev, dist[a][prev]
		}
		for x := 0; x < n; x++ {
			if !active[x] || x == a {
				continue
			}
			if dist[a][x] < bestDist {
				best, bestDist = x, dist[a][x]
			}
		}

		if best != prev {
			chain = append(chain, best)
			continue
		}

		// a and prev are reciprocal nearest neighbors.
		chain = chain[:len(chain)-2]
		keep, drop := min(a, prev), max(a, prev)
		merged := size[keep] + size[drop]
		for x := 0; x < n; x++ {
			if !active[x] || x == keep || x == drop {
				continue
			}
			var v float64
			switch linkage {
			case AverageLinkage:
				v = (float64(size[keep])*dist[keep][x] + float64(size[drop])*dist[drop][x]) / float64(merged)
			case CompleteLinkage:
				v = math.Max(dist[keep][x], dist[drop][x])
			}
			dist[keep][x] = v
			dist[x][keep] = v
		}
		active[drop] = false
		size[keep] = merged
		merges = append(merges, Merge{A: keep, B: drop, Height: bestDist, Size: merged})
	}

	sort.SliceStable(merges, func(i, j int) bool {
		return merges[i].Height < merges[j].Height
	})
	dendrogram.Merges = merges
	return dendrogram, nil
}

// Cut applies every merge whose height is strictly below threshold and
// returns one label per point. Labels are numbered by first appearance.
func (d *Dendrogram) Cut(threshold float64) []int {
	uf := newUnionFind(d.N)
	for _, m := range d.Merges {
		if m.Height >= threshold {
			break
		}
		uf.union(m.A, m.B)
	}

	labels := make([]int, d.N)
	byRoot := make(map[int]int)
	for i := range labels {
		root := uf.find(i)
		label, ok := byRoot[root]
		if !ok {
			label = len(byRoot)
			byRoot[root] = label
		}
		labels[i] = label
	}
	return labels
}

// ClusterCount returns the number of clusters a cut at threshold produces.
func (d *Dendrogram) ClusterCount(threshold float64) int {
	applied := 0
	for _, m := range d.Merges {
		if m.Height >= threshold {
			break
		}
		applied++
	}
	return d.N - applied
}

func (d *Dendrogram) String() string {
	return fmt.Sprintf("dendrogram(n=%d, linkage=%s, merges=%d)", d.N, d.Linkage, len(d.Merges))
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
