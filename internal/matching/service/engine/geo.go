package engine

import "math"

const (
	earthRadiusKm = 6371

	// unknownDistanceKm is used when either side has no coordinates. It is
	// far enough that distance-based scoring treats the pair as remote.
	unknownDistanceKm = 9999
)

// haversineKm returns the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// distanceKm computes the distance between two optionally geocoded points,
// falling back to the unknown-distance sentinel.
func distanceKm(lat1, lng1, lat2, lng2 *float64) float64 {
	if lat1 == nil || lng1 == nil || lat2 == nil || lng2 == nil {
		return unknownDistanceKm
	}
	return haversineKm(*lat1, *lng1, *lat2, *lng2)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
