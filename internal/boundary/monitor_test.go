package boundary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() []LatLon {
	return []LatLon{
		{Lat: 40.7125, Lon: -74.0065},
		{Lat: 40.7125, Lon: -74.0055},
		{Lat: 40.7135, Lon: -74.0055},
		{Lat: 40.7135, Lon: -74.0065},
	}
}

// Scenario 1 from spec §8: a fix far outside the boundary must raise a
// critical boundary_exit violation at roughly 167m.
func TestMonitor_FarOutsideIsCriticalExit(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.SetPolygon(square())

	dist, raised := m.Update(time.Now(), 40.7150, -74.0060, 1.5)
	require.Len(t, raised, 1)
	assert.Equal(t, ViolationBoundaryExit, raised[0].Kind)
	assert.Equal(t, SeverityCritical, raised[0].Severity)
	assert.Less(t, dist, 0.0)
	assert.InDelta(t, -167, dist, 20)
}

func TestMonitor_InsideIsSafe(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.SetPolygon(square())

	_, raised := m.Update(time.Now(), 40.7130, -74.0060, 1.0)
	assert.Empty(t, raised)
}

func TestMonitor_PoorAccuracyIgnored(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.SetPolygon(square())

	dist, raised := m.Update(time.Now(), 40.7150, -74.0060, 5.0)
	assert.Zero(t, dist)
	assert.Empty(t, raised)
}

func TestMonitor_HysteresisDeduplicates(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.SetPolygon(square())

	now := time.Now()
	_, first := m.Update(now, 40.7150, -74.0060, 1.0)
	require.Len(t, first, 1)

	_, second := m.Update(now.Add(1*time.Second), 40.7150, -74.0060, 1.0)
	assert.Empty(t, second, "refresh within hysteresis window should not duplicate")
	assert.Len(t, m.Violations(), 1)
}

func TestMonitor_NoGoZoneEntry(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.SetPolygon(square())
	m.SetZone(NoGoZone{ID: "pond", Kind: ZoneKindHazard, Active: true, RingLatLon: []LatLon{
		{Lat: 40.7128, Lon: -74.0062},
		{Lat: 40.7128, Lon: -74.0058},
		{Lat: 40.7132, Lon: -74.0058},
		{Lat: 40.7132, Lon: -74.0062},
	}})

	_, raised := m.Update(time.Now(), 40.7130, -74.0060, 1.0)
	require.Len(t, raised, 1)
	assert.Equal(t, ViolationNoGoEntry, raised[0].Kind)
	assert.Equal(t, SeverityHigh, raised[0].Severity)
}

func TestMonitor_ExpiredZoneDeactivates(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.SetPolygon(square())
	past := time.Now().Add(-time.Minute)
	m.SetZone(NoGoZone{ID: "temp", Kind: ZoneKindUserDefined, Active: true, ExpiresAt: &past, RingLatLon: []LatLon{
		{Lat: 40.7128, Lon: -74.0062},
		{Lat: 40.7128, Lon: -74.0058},
		{Lat: 40.7132, Lon: -74.0058},
		{Lat: 40.7132, Lon: -74.0062},
	}})

	_, raised := m.Update(time.Now(), 40.7130, -74.0060, 1.0)
	assert.Empty(t, raised, "expired zone must not raise no_go_entry")
}
