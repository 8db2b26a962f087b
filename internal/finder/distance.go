package finder

import (
	"math"

	"github.com/hitoshi/lunchmate/internal/model"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters は2点間の大圏距離をメートル単位で四捨五入して返す。
func DistanceMeters(a, b model.LatLng) int {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return int(math.Round(earthRadiusMeters * c))
}
