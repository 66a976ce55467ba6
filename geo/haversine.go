package geo

import "math"

const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Within reports whether q lies within radiusKm of p.
func (p Point) Within(q Point, radiusKm float64) bool {
	return Haversine(p.Lat, p.Lon, q.Lat, q.Lon) <= radiusKm
}

// Valid reports whether p is a finite coordinate on the globe.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
