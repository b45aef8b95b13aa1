package geonarrative

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DistanceMatrices holds every matrix the combiner produces for one batch.
type DistanceMatrices struct {
	Semantic     *mat.SymDense
	SpatialKm    *mat.SymDense
	SpatialNorm  *mat.SymDense
	Combined     *mat.SymDense
	MaxSpatialKm float64
}

// CosineDistance returns 1 - cos(a, b) clamped to [0, 2].
// A zero vector is treated as orthogonal to everything.
func CosineDistance(a, b []float64) float64 {
	ua, ub := unitVector(a), unitVector(b)
	if ua == nil || ub == nil {
		return 1
	}
	return clampCosine(1 - floats.Dot(ua, ub))
}

// unitVector returns v divided by its norm, or nil when the norm is zero or
// not finite. Components are divided one by one so tiny and huge vectors
// stay in range.
func unitVector(v []float64) []float64 {
	n := floats.Norm(v, 2)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	u := make([]float64, len(v))
	for i, x := range v {
		u[i] = x / n
	}
	return u
}

// clampCosine bounds d to [0, 2]. NaN maps to 1, the distance of
// orthogonal vectors.
func clampCosine(d float64) float64 {
	if math.IsNaN(d) {
		return 1
	}
	return math.Min(2, math.Max(0, d))
}

// SemanticDistances builds the symmetric N×N cosine distance matrix.
// Embeddings must share one dimension.
func SemanticDistances(embeddings [][]float64, workers int) (*mat.SymDense, error) {
	if _, err := checkEmbeddings(embeddings); err != nil {
		return nil, err
	}
	units := make([][]float64, len(embeddings))
	for i, e := range embeddings {
		units[i] = unitVector(e)
	}
	return fillSymmetric(len(embeddings), workers, func(i, j int) float64 {
		return clampCosine(1 - floats.Dot(units[i], units[j]))
	}), nil
}

// NormalizeSpatial divides every entry by the largest one so the result lies
// in [0, 1]. A batch whose points all coincide normalizes to zeros.
func NormalizeSpatial(km *mat.SymDense) (*mat.SymDense, float64) {
	n := km.SymmetricDim()
	if n == 0 {
		return &mat.SymDense{}, 0
	}
	norm := mat.NewSymDense(n, nil)
	maxKm := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			maxKm = math.Max(maxKm, km.At(i, j))
		}
	}
	if maxKm == 0 {
		return norm, 0
	}
	norm.ScaleSym(1/maxKm, km)
	return norm, maxKm
}

// CombineDistances blends semantic and normalized spatial distance per pair
// using the mean of the two articles' λ.
func CombineDistances(semantic, spatialNorm *mat.SymDense, lambdas []float64) (*mat.SymDense, error) {
	n := semantic.SymmetricDim()
	if spatialNorm.SymmetricDim() != n || len(lambdas) != n {
		return nil, inputErrorf("", "distances", "size mismatch: semantic %d, spatial %d, weights %d",
			n, spatialNorm.SymmetricDim(), len(lambdas))
	}
	if n == 0 {
		return &mat.SymDense{}, nil
	}
	combined := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			lambda := (lambdas[i] + lambdas[j]) / 2
			combined.SetSym(i, j, (1-lambda)*semantic.At(i, j)+lambda*spatialNorm.At(i, j))
		}
	}
	return combined, nil
}

// ComputeDistances runs the whole combiner for one batch.
func ComputeDistances(embeddings [][]float64, coords []Coordinates, lambdas []float64, workers int) (*DistanceMatrices, error) {
	if len(embeddings) != len(coords) || len(embeddings) != len(lambdas) {
		return nil, inputErrorf("", "distances", "size mismatch: %d embeddings, %d coordinates, %d weights",
			len(embeddings), len(coords), len(lambdas))
	}
	if len(embeddings) == 0 {
		return nil, inputErrorf("", "distances", "no articles")
	}

	semantic, err := SemanticDistances(embeddings, workers)
	if err != nil {
		return nil, fmt.Errorf("failed to compute semantic distances: %w", err)
	}
	spatial, err := SpatialDistances(coords, workers)
	if err != nil {
		return nil, fmt.Errorf("failed to compute spatial distances: %w", err)
	}
	spatialNorm, maxKm := NormalizeSpatial(spatial)
	combined, err := CombineDistances(semantic, spatialNorm, lambdas)
	if err != nil {
		return nil, err
	}

	return &DistanceMatrices{
		Semantic:     semantic,
		SpatialKm:    spatial,
		SpatialNorm:  spatialNorm,
		Combined:     combined,
		MaxSpatialKm: maxKm,
	}, nil
}

// checkEmbeddings verifies a shared non-zero dimension, finite values and
// non-zero norms. It returns the dimension.
func checkEmbeddings(embeddings [][]float64) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return 0, inputErrorf("", "embedding[0]", "empty vector")
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return 0, inputErrorf("", fmt.Sprintf("embedding[%d]", i), "dimension %d, expected %d", len(e), dim)
		}
		if err := checkVector(e); err != nil {
			return 0, inputErrorf("", fmt.Sprintf("embedding[%d]", i), "%s", err)
		}
	}
	return dim, nil
}

func checkVector(v []float64) error {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("non-finite component")
		}
	}
	switch n := floats.Norm(v, 2); {
	case n == 0:
		return fmt.Errorf("zero-norm vector")
	case math.IsInf(n, 1):
		return fmt.Errorf("norm overflows float64")
	}
	return nil
}

// fillSymmetric evaluates f over the upper triangle with a pool of workers.
// Each worker owns whole rows, so no two goroutines write the same cell.
func fillSymmetric(n, workers int, f func(i, j int) float64) *mat.SymDense {
	if n == 0 {
		return &mat.SymDense{}
	}
	d := mat.NewSymDense(n, nil)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i + 1; j < n; j++ {
					d.SetSym(i, j, f(i, j))
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()
	return d
}
