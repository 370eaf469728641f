package attendance

import "math"

type Coordinate struct {
	Lat float64
	Lng float64
}

const earthRadiusM = 6371000.0

// Distance: 2点間の大圏距離[m]（haversine）。
// 単一拠点のジオフェンス用途なので楕円体補正はしない
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
