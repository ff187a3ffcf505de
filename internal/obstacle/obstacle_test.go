package obstacle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnberry/safetycore/internal/sensors"
)

func TestFromToFRejectsNonValidStatus(t *testing.T) {
	_, ok := FromToF(&sensors.ToF{Status: sensors.RangeTooClose})
	assert.False(t, ok)
}

func TestFromToFProjectsAlongMountAxis(t *testing.T) {
	r := &sensors.ToF{
		DistanceMM:  500,
		Status:      sensors.RangeValid,
		MountAxis:   sensors.Vector3{X: 1, Y: 0, Z: 0},
		MountOffset: sensors.Vector3{X: 0.1, Y: 0, Z: 0},
		Quality:     1.0,
	}
	o, ok := FromToF(r)
	require.True(t, ok)
	assert.InDelta(t, 0.6, o.X, 1e-6)
}

func TestFuseMergesNearbyObservations(t *testing.T) {
	cfg := DefaultConfig()
	obs := []Observation{
		{X: 1.0, Y: 1.0, RadiusM: 0.1, Confidence: 0.8},
		{X: 1.1, Y: 1.05, RadiusM: 0.3, Confidence: 0.6, Class: "person"},
	}
	fused := Fuse(cfg, obs)
	require.Len(t, fused, 1)
	assert.Equal(t, "person", fused[0].Class)
	assert.Equal(t, 0.3, fused[0].RadiusM)
}

func TestFuseKeepsDistantObservationsSeparate(t *testing.T) {
	cfg := DefaultConfig()
	obs := []Observation{
		{X: 0, Y: 0},
		{X: 5, Y: 5},
	}
	fused := Fuse(cfg, obs)
	assert.Len(t, fused, 2)
}

func TestTrackerScoresCriticalAtEmergencyDistance(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	now := time.Now()
	tracks := tr.Ingest(now, []Observation{{X: 0.1, Y: 0, RadiusM: 0.1}})
	require.Len(t, tracks, 1)
	assert.Equal(t, ThreatCritical, tracks[0].Threat)
}

func TestTrackerEvictsStaleTracks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrackEvictionAge = 10 * time.Millisecond
	tr := NewTracker(cfg)
	now := time.Now()
	tr.Ingest(now, []Observation{{X: 2, Y: 2}})

	later := now.Add(50 * time.Millisecond)
	tracks := tr.Ingest(later, nil)
	assert.Empty(t, tracks)
}

func TestTrackerMatchesWithinRadiusAcrossCycles(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	now := time.Now()
	first := tr.Ingest(now, []Observation{{X: 2.0, Y: 2.0, Class: "toy"}})
	require.Len(t, first, 1)
	id := first[0].ID

	second := tr.Ingest(now.Add(100*time.Millisecond), []Observation{{X: 2.05, Y: 2.02, Class: "toy"}})
	require.Len(t, second, 1)
	assert.Equal(t, id, second[0].ID)
}
