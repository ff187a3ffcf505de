// Package safety implements the Safety Supervisor of spec §4.5: the fan-in
// that consumes obstacle, raw sensor, boundary, and maintenance signals (it
// does not subscribe to the pose topics) and produces one consolidated
// SafetyStatus plus a graduated
// response ladder, alongside a fast critical-only path that triggers the
// emergency controller directly. It is the generalization of the teacher
// gateway's safety package (estop.go, timeout_watchdog.go,
// operation_lock.go) from a single manual e-stop switch and per-robot
// lease bookkeeping into a full hazard-aggregation supervisor.
package safety

import "time"

// Severity is the per-hazard-check level. The hazard table's "attention"
// vocabulary (blade wear, battery) is folded into Medium for aggregation —
// both mean "needs attention, not yet an emergency."
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func rank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// ResponseLevel is the consolidated status's graduated response ladder,
// spec §4.5, least to most invasive.
type ResponseLevel string

const (
	LevelNone            ResponseLevel = "none"
	LevelWarning         ResponseLevel = "warning"
	LevelCaution         ResponseLevel = "caution"
	LevelImmediateAction ResponseLevel = "immediate_action"
	LevelEmergencyStop   ResponseLevel = "emergency_stop"
	LevelSystemShutdown  ResponseLevel = "system_shutdown"

	ladderLen = 5 // warning..system_shutdown, excluding none
)

func ladderStep(l ResponseLevel) int {
	switch l {
	case LevelWarning:
		return 0
	case LevelCaution:
		return 1
	case LevelImmediateAction:
		return 2
	case LevelEmergencyStop:
		return 3
	case LevelSystemShutdown:
		return 4
	default:
		return -1
	}
}

func ladderLevel(step int) ResponseLevel {
	switch {
	case step <= 0:
		return LevelWarning
	case step == 1:
		return LevelCaution
	case step == 2:
		return LevelImmediateAction
	case step == 3:
		return LevelEmergencyStop
	default:
		return LevelSystemShutdown
	}
}

// initialLevel maps a freshly raised hazard's Severity onto its starting
// rung of the response ladder.
func initialLevel(s Severity) ResponseLevel {
	switch s {
	case SeverityCritical:
		return LevelImmediateAction
	case SeverityHigh:
		return LevelCaution
	case SeverityMedium:
		return LevelWarning
	default:
		return LevelNone
	}
}

// Alert is one normalized hazard observation, the only shape the
// consolidated status exposes (§4.5's "normalized alerts only, not
// component-internal objects").
type Alert struct {
	Source      string        `json:"source"`
	Kind        string        `json:"kind"`
	Severity    Severity      `json:"severity"`
	Level       ResponseLevel `json:"level"`
	Description string        `json:"description"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastSeen    time.Time     `json:"last_seen"`
}

func alertKey(source, kind string) string { return source + "|" + kind }

// ComponentHealth tracks whether a named upstream has reported recently
// enough to be trusted, per §4.5's startup-grace failure semantics.
type ComponentHealth struct {
	Name     string    `json:"name"`
	LastSeen time.Time `json:"last_seen"`
	Healthy  bool      `json:"healthy"`
}

// Measurements carries the raw measured quantities behind the hazard
// checks, §3's "measured quantities" field of SafetyStatus — the values a
// consumer would otherwise have to re-derive from the individual alert
// descriptions.
type Measurements struct {
	TiltDeg          float64 `json:"tilt_deg"`
	DropClearanceCM  float64 `json:"drop_clearance_cm"`
	CollisionAccelG  float64 `json:"collision_accel_g"`
	NearestObstacleM float64 `json:"nearest_obstacle_m"`
	TemperatureC     float64 `json:"temperature_c"`
	HumidityPct      float64 `json:"humidity_pct"`
}

// Status is the published consolidated SafetyStatus. OverallSafe and the
// five per-axis flags are derived from the open-alert set at publish time:
// OverallSafe is the authoritative form of §8's universal invariant
// (overall_safe ⇔ no alert with severity >= high); each per-axis flag
// narrows that same test to the alerts raised under that axis's source/kind.
type Status struct {
	Time           time.Time         `json:"time"`
	Level          ResponseLevel     `json:"level"`
	OverallSafe    bool              `json:"overall_safe"`
	TiltSafe       bool              `json:"tilt_safe"`
	DropSafe       bool              `json:"drop_safe"`
	CollisionSafe  bool              `json:"collision_safe"`
	WeatherSafe    bool              `json:"weather_safe"`
	BoundarySafe   bool              `json:"boundary_safe"`
	Measured       Measurements      `json:"measured"`
	Alerts         []Alert           `json:"active_alerts"`
	Components     []ComponentHealth `json:"components"`
	ResponseTimeMS float64           `json:"response_time_ms"`
}

// escalationTimeout returns the per-rung timeout after which an unresolved
// alert at that rung promotes one level, per §4.5's table.
func escalationTimeout(l ResponseLevel) time.Duration {
	switch l {
	case LevelWarning:
		return 5 * time.Minute
	case LevelCaution:
		return 2 * time.Minute
	case LevelImmediateAction:
		return 30 * time.Second
	case LevelEmergencyStop:
		return 5 * time.Second
	default:
		return time.Hour // system_shutdown has nowhere further to escalate
	}
}
