package attendance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceSamePointIsZero(t *testing.T) {
	pts := []Coordinate{
		{Lat: 28.7041, Lng: 77.1025},
		{Lat: 0, Lng: 0},
		{Lat: -33.8688, Lng: 151.2093},
	}
	for _, p := range pts {
		require.Zero(t, Distance(p, p))
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Coordinate{Lat: 28.7041, Lng: 77.1025}
	b := Coordinate{Lat: 28.7100, Lng: 77.1100}
	require.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestDistanceKnownOffsets(t *testing.T) {
	mess := Coordinate{Lat: 28.7041, Lng: 77.1025}

	// 緯度 0.0045° ≈ 500m
	away := Coordinate{Lat: 28.7086, Lng: 77.1025}
	require.InDelta(t, 500, Distance(mess, away), 5)

	// 緯度 1° ≈ 111.2km（GPS精度の範囲で十分）
	oneDeg := Coordinate{Lat: 29.7041, Lng: 77.1025}
	require.InDelta(t, 111195, Distance(mess, oneDeg), 100)
}
