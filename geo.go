package geonarrative

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Validate rejects out-of-range or non-finite coordinates.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return inputErrorf("", "coordinates.lat", "latitude %v outside [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return inputErrorf("", "coordinates.lon", "longitude %v outside [-180, 180]", c.Lon)
	}
	return nil
}

// Haversine returns the great-circle distance between a and b in kilometers.
// Callers are expected to validate both points first.
func Haversine(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h slightly past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// SpatialDistances builds the symmetric N×N haversine matrix in kilometers.
func SpatialDistances(coords []Coordinates, workers int) (*mat.SymDense, error) {
	for i, c := range coords {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	return fillSymmetric(len(coords), workers, func(i, j int) float64 {
		return Haversine(coords[i], coords[j])
	}), nil
}
