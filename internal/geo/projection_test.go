package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectUnprojectRoundTrip(t *testing.T) {
	anchor := NewAnchor(40.7128, -74.0060)

	cases := []struct {
		lat, lon float64
	}{
		{40.7128, -74.0060},
		{40.7150, -74.0060},
		{40.7050, -73.9960},
		{40.7228, -74.0160},
	}

	for _, c := range cases {
		x, y := anchor.Project(c.lat, c.lon)
		lat, lon := anchor.Unproject(x, y)
		assert.InDelta(t, c.lat, lat, 1e-3/111000, "lat round trip for (%v,%v)", c.lat, c.lon)
		assert.InDelta(t, c.lon, lon, 1e-3/85000, "lon round trip for (%v,%v)", c.lat, c.lon)
	}
}

func TestProjectOriginIsZero(t *testing.T) {
	anchor := NewAnchor(40.7128, -74.0060)
	x, y := anchor.Project(40.7128, -74.0060)
	require.InDelta(t, 0, x, 1e-9)
	require.InDelta(t, 0, y, 1e-9)
}

func TestPointInPolygon(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	assert.True(t, PointInPolygon(Point{5, 5}, square))
	assert.False(t, PointInPolygon(Point{15, 5}, square))
	assert.False(t, PointInPolygon(Point{-1, 5}, square))
}

func TestSignedDistanceToPolygon(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	inside := SignedDistanceToPolygon(Point{5, 5}, square)
	assert.Greater(t, inside, 0.0)

	outside := SignedDistanceToPolygon(Point{15, 5}, square)
	assert.Less(t, outside, 0.0)
	assert.InDelta(t, -5.0, outside, 1e-9)
}

func TestDistanceToSegmentClampsToEndpoints(t *testing.T) {
	a := Point{0, 0}
	b := Point{10, 0}

	d, nearest := DistanceToSegment(Point{-5, 0}, a, b)
	assert.InDelta(t, 5.0, d, 1e-9)
	assert.Equal(t, a, nearest)

	d2, nearest2 := DistanceToSegment(Point{15, 0}, a, b)
	assert.InDelta(t, 5.0, d2, 1e-9)
	assert.Equal(t, b, nearest2)
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{1, 2}
	b := Point{4, 6}
	assert.InDelta(t, 5.0, Distance(a, b), 1e-9)
	assert.InDelta(t, math.Hypot(3, 4), Distance(a, b), 1e-9)
}
