package obstacle

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Tracker persists fused observations into Tracks across detection cycles,
// matching a new observation to the nearest existing track within
// TrackMatchRadiusM and evicting tracks unseen for TrackEvictionAge —
// mirroring the stateHistory/anomaly aging the example fleet's fusion
// package applies to its own per-sensor bookkeeping.
type Tracker struct {
	cfg    Config
	tracks map[string]*Track
}

// NewTracker builds an empty Tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, tracks: make(map[string]*Track)}
}

// Ingest folds this cycle's fused observations into the track set and
// returns the current live tracks, threat-scored.
func (t *Tracker) Ingest(now time.Time, fused []Observation) []Track {
	matched := make(map[string]bool)
	for _, o := range fused {
		id := t.match(o)
		if id == "" {
			id = uuid.NewString()
			t.tracks[id] = &Track{ID: id, FirstSeen: now}
		}
		tr := t.tracks[id]
		dt := now.Sub(tr.LastSeen).Seconds()
		if tr.LastSeen.IsZero() {
			dt = 0
		}
		if dt > 0 {
			tr.VX = (o.X - tr.X) / dt
			tr.VY = (o.Y - tr.Y) / dt
		}
		tr.X, tr.Y = o.X, o.Y
		tr.RadiusM = o.RadiusM
		tr.Class = o.Class
		tr.Confidence = o.Confidence
		tr.LastSeen = now
		for k := range o.Sources {
			tr.addSource(k)
		}
		matched[id] = true
	}

	t.evict(now)

	out := make([]Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		scoreThreat(tr, t.cfg.ApproachDotThreshold)
		out = append(out, *tr)
	}
	return out
}

func (t *Tracker) match(o Observation) string {
	bestID := ""
	bestDist := math.MaxFloat64
	for id, tr := range t.tracks {
		d := math.Hypot(tr.X-o.X, tr.Y-o.Y)
		if d <= t.cfg.TrackMatchRadiusM && d < bestDist {
			bestDist = d
			bestID = id
		}
	}
	return bestID
}

func (t *Tracker) evict(now time.Time) {
	for id, tr := range t.tracks {
		if now.Sub(tr.LastSeen) > t.cfg.TrackEvictionAge {
			delete(t.tracks, id)
		}
	}
}

func maxThreat(a, b ThreatLevel) ThreatLevel {
	if threatRank(a) >= threatRank(b) {
		return a
	}
	return b
}

// escalateOne promotes a threat level by one rung, per §4.4's approach
// escalation rule. Critical has nowhere further to go.
func escalateOne(t ThreatLevel) ThreatLevel {
	switch t {
	case ThreatLow:
		return ThreatMedium
	case ThreatMedium:
		return ThreatHigh
	case ThreatHigh, ThreatCritical:
		return ThreatCritical
	default:
		return ThreatNone
	}
}

// scoreThreat sets tr.Threat and tr.DistanceM from the track's distance to
// the robot's origin (0,0) in its own local frame and its class's safety
// radius and base threat level, per §4.4: within the emergency-stop
// distance is always critical regardless of kind; within the safety
// radius is at least the kind's base threat (clamped up to high); within
// 2x the radius is medium; beyond that is low. Approaching motion (the
// velocity vector's dot product with the position vector below -0.1)
// escalates the result by one level.
func scoreThreat(tr *Track, approachDotThreshold float64) {
	tr.DistanceM = math.Hypot(tr.X, tr.Y)

	radius, ok := safetyRadii[tr.Class]
	if !ok {
		radius = defaultSafetyRadiusM
	}
	base, ok := baseThreat[tr.Class]
	if !ok {
		base = defaultBaseThreat
	}

	var threat ThreatLevel
	switch {
	case tr.DistanceM <= emergencyStopDistanceM:
		threat = ThreatCritical
	case tr.DistanceM <= radius:
		threat = maxThreat(base, ThreatHigh)
	case tr.DistanceM <= radius*2:
		threat = ThreatMedium
	default:
		threat = ThreatLow
	}

	if tr.X*tr.VX+tr.Y*tr.VY < approachDotThreshold {
		threat = escalateOne(threat)
	}

	tr.Threat = threat
}
