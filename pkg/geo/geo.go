package geo

import (
	"math"

	"yetkaz/internal/models"
)

const (
	// EarthRadiusKm is Earth's radius in kilometers for the Haversine calculation.
	EarthRadiusKm = 6371.0
	// NearbyRadiusKm is the "driver has arrived" proximity threshold.
	NearbyRadiusKm = 0.5

	// DefaultPrepMinutes is added to every ETA for kitchen preparation.
	DefaultPrepMinutes = 15.0
	// DefaultTrafficFactor inflates raw travel time for city traffic.
	DefaultTrafficFactor = 1.2
)

// Average speeds per vehicle class, km/h.
const (
	SpeedBikeKmh    = 25.0
	SpeedScooterKmh = 30.0
	SpeedCarKmh     = 35.0
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// ValidCoordinates reports whether lat/lng fall within valid WGS84 ranges.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Distance calculates the great-circle distance between two points in
// kilometers using the Haversine formula, rounded to 2 decimal places.
func Distance(a, b Point) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return round2(EarthRadiusKm * c)
}

// ETA estimates delivery time in whole minutes:
// ceil(prep + (distance/speed * 60) * traffic).
// Zero distance with zero prep yields 0.
func ETA(distanceKm, prepMinutes, trafficFactor, speedKmh float64) int {
	travel := distanceKm / speedKmh * 60 * trafficFactor
	return int(math.Ceil(prepMinutes + travel))
}

// DefaultETA applies the default prep time, traffic factor and bike speed.
func DefaultETA(distanceKm float64) int {
	return ETA(distanceKm, DefaultPrepMinutes, DefaultTrafficFactor, SpeedBikeKmh)
}

// IsNear reports whether two points are within the proximity threshold.
func IsNear(a, b Point) bool {
	return Distance(a, b) <= NearbyRadiusKm
}

// NearestBranch returns the active branch closest to p, scanning linearly.
// Exact-distance ties are broken by input order (first encountered wins).
// Returns nil if no active branch exists.
func NearestBranch(p Point, branches []models.Branch) *models.Branch {
	var best *models.Branch
	bestDist := math.MaxFloat64
	for i := range branches {
		if !branches[i].Active {
			continue
		}
		d := Distance(p, Point{Lat: branches[i].Lat, Lng: branches[i].Lng})
		if d < bestDist {
			bestDist = d
			best = &branches[i]
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
