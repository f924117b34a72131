package geofence

import (
	"math"

	"github.com/pulsefit/checkin-sync/schema"
)

// earthRadiusM is the mean Earth radius used by the haversine formula.
const earthRadiusM = 6371000.0

// Zone is a circular geofence around a fixed center.
type Zone struct {
	Center schema.Location
	Radius float64 // meters
}

// Contains reports whether the coordinate lies within the zone radius.
func (z Zone) Contains(c schema.Location) bool {
	return Distance(c, z.Center) <= z.Radius
}

// Distance returns the great-circle distance between two coordinates in
// meters, computed with the haversine formula. Inputs are degrees.
func Distance(a, b schema.Location) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
