package user

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the sphere radius MongoDB uses for spherical geometry.
const EarthRadiusMeters = 6378100.0

// DefaultMaxDistance is the search radius used when a caller gives none.
const DefaultMaxDistance = 1000.0

// Coordinates is a [longitude, latitude] pair in degrees.
type Coordinates [2]float64

// NewCoordinates builds a pair from longitude and latitude.
func NewCoordinates(lng, lat float64) Coordinates {
	return Coordinates{lng, lat}
}

// Longitude returns the first element of the pair.
func (c Coordinates) Longitude() float64 { return c[0] }

// Latitude returns the second element of the pair.
func (c Coordinates) Latitude() float64 { return c[1] }

// Validate checks that the pair is a point on the globe.
func (c Coordinates) Validate() error {
	if math.IsNaN(c[0]) || c[0] < -180 || c[0] > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c[0])
	}
	if math.IsNaN(c[1]) || c[1] < -90 || c[1] > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c[1])
	}
	return nil
}

// DistanceTo returns the great-circle distance to o in meters (haversine).
func (c Coordinates) DistanceTo(o Coordinates) float64 {
	lat1 := c.Latitude() * math.Pi / 180
	lat2 := o.Latitude() * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (o.Longitude() - c.Longitude()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// NearQuery selects users whose address coordinates lie within MaxDistance
// meters of Point.
type NearQuery struct {
	Point       Coordinates
	MaxDistance float64
}

// Validate checks the query bounds.
func (q NearQuery) Validate() error {
	if err := q.Point.Validate(); err != nil {
		return err
	}
	if math.IsNaN(q.MaxDistance) || q.MaxDistance < 0 {
		return fmt.Errorf("maxDistance must be a non-negative number of meters")
	}
	return nil
}
