// Package obstacle fuses ToF range readings and vision detections into a
// tracked obstacle map, scoring each tracked obstacle's threat level for the
// safety supervisor the way the example fleet's fusion package scores
// sensor agreement and anomaly severity from raw readings.
package obstacle

import "time"

// Kind classifies what produced an observation, mirroring the sensor that
// detected it.
type Kind string

const (
	KindRange  Kind = "range"  // time-of-flight
	KindVision Kind = "vision" // camera object detection
)

// ThreatLevel mirrors the hazard severities of the wider safety model.
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "none"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Observation is a single-sensor-frame detection projected into the robot's
// local planar frame, before fusion across sensors.
type Observation struct {
	Time       time.Time
	Kind       Kind
	SourceID   string
	X, Y       float64 // local frame, meters, robot-relative
	RadiusM    float64 // size estimate
	Class      string  // vision class, empty for range-only
	Confidence float64
	Sources    map[Kind]struct{} // set<SensorSource> this observation was built from, §3's detected_by
}

// safetyRadii gives the per-class safety radius and base threat level the
// threat scorer starts from, per spec §4.4's hazard table (child is 1.5x
// the person radius, matching the original hazard detector's pattern
// table). Classes not listed fall back to defaultSafetyRadiusM /
// ThreatLow.
var safetyRadii = map[string]float64{
	"person": 3.0,
	"child":  4.5,
	"pet":    1.5,
	"car":    5.0,
	"static": 0.5,
	"water":  1.0,
}

const defaultSafetyRadiusM = 0.6

// baseThreat gives the minimum threat level a class is assessed at once
// within its safety radius, before the distance/approach escalation rules
// are applied.
var baseThreat = map[string]ThreatLevel{
	"person": ThreatCritical,
	"child":  ThreatCritical,
	"pet":    ThreatHigh,
	"car":    ThreatHigh,
	"static": ThreatMedium,
	"water":  ThreatHigh,
}

const defaultBaseThreat = ThreatLow

// typicalRadii estimates an object's physical radius from its vision class
// when no depth reading is available, used to size the fused obstacle.
var typicalRadii = map[string]float64{
	"person": 0.3,
	"pet":    0.15,
	"child":  0.25,
	"toy":    0.08,
	"hose":   0.02,
}

const defaultTypicalRadiusM = 0.15

// emergencyStopDistanceM is the distance at which any tracked obstacle,
// regardless of class, forces a critical threat level.
const emergencyStopDistanceM = 0.15

// Track is a fused, time-persistent obstacle the tracker maintains across
// detection cycles.
type Track struct {
	ID         string
	FirstSeen  time.Time
	LastSeen   time.Time
	X, Y       float64
	VX, VY     float64 // estimated drift, meters/second
	RadiusM    float64
	Class      string
	Confidence float64
	Threat     ThreatLevel
	DistanceM  float64
	DetectedBy []Kind `json:"detected_by"` // set<SensorSource>, spec §3
}

// addSource appends kind to DetectedBy if not already present, keeping it a
// set despite the underlying slice representation (chosen over map[Kind]
// struct{} so it marshals as a plain JSON array).
func (t *Track) addSource(kind Kind) {
	for _, k := range t.DetectedBy {
		if k == kind {
			return
		}
	}
	t.DetectedBy = append(t.DetectedBy, kind)
}

// Config tunes fusion and tracking behavior.
type Config struct {
	FusionMatchRadiusM float64
	TrackMatchRadiusM  float64
	TrackEvictionAge   time.Duration
	DetectionHz        float64
	SafetyLoopHz       float64
	// ApproachDotThreshold is the velocity-dot-position threshold below
	// which a track is considered to be closing and its threat level
	// escalates one rung, per §4.4.
	ApproachDotThreshold float64
}

// DefaultConfig mirrors the cadences and match radii spec.md names for the
// obstacle subsystem.
func DefaultConfig() Config {
	return Config{
		FusionMatchRadiusM:   0.5,
		TrackMatchRadiusM:    0.3,
		TrackEvictionAge:     2 * time.Second,
		DetectionHz:          10.0,
		SafetyLoopHz:         20.0,
		ApproachDotThreshold: -0.1,
	}
}
