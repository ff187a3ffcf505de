// Package boundary maintains the mowing area's GNSS polygon and any no-go
// zones inside it, turning raw position fixes into signed-distance
// containment and graduated violation records for the safety supervisor —
// the way the example fleet's fusion package turns raw readings into scored
// anomalies, but over geo.SignedDistanceToPolygon rather than sensor deltas.
package boundary

import "time"

// ViolationKind names the three containment hazards §4.7 defines.
type ViolationKind string

const (
	ViolationBoundaryExit  ViolationKind = "boundary_exit"
	ViolationSafetyMargin  ViolationKind = "safety_margin"
	ViolationNoGoEntry     ViolationKind = "no_go_entry"
)

// Severity mirrors the wider hazard-level vocabulary.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Violation is a single, hysteresis-deduplicated containment event.
type Violation struct {
	ID          string        `json:"id"`
	Kind        ViolationKind `json:"kind"`
	Severity    Severity      `json:"severity"`
	SignedDistM float64       `json:"signed_distance_m"`
	ZoneID      string        `json:"zone_id,omitempty"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastSeen    time.Time     `json:"last_seen"`
}

// ZoneKind classifies a no-go zone's reason for existing.
type ZoneKind string

const (
	ZoneKindObstacleExclusion ZoneKind = "obstacle_exclusion"
	ZoneKindHazard            ZoneKind = "hazard"
	ZoneKindUserDefined       ZoneKind = "user_defined"
)

// NoGoZone is a polygonal region, given in lat/lon, that must not be
// entered while active and not expired.
type NoGoZone struct {
	ID       string
	Kind     ZoneKind
	Active   bool
	ExpiresAt *time.Time
	RingLatLon []LatLon
}

// LatLon is a single GNSS boundary vertex, degrees.
type LatLon struct {
	Lat, Lon float64
}

// Config tunes the margin/exit thresholds named in spec §4.5/§4.7.
type Config struct {
	SafetyMarginM    float64
	ExitCriticalM    float64 // |signed distance| outside this magnitude -> critical
	MinAccuracyM     float64 // poorer GNSS fixes than this are ignored
	HysteresisWindow time.Duration
	RecordMaxAge     time.Duration
}

// DefaultConfig mirrors spec.md's named defaults for boundary checks.
func DefaultConfig() Config {
	return Config{
		SafetyMarginM:    1.0,
		ExitCriticalM:    3.0,
		MinAccuracyM:     2.0,
		HysteresisWindow: 5 * time.Second,
		RecordMaxAge:     30 * time.Second,
	}
}
