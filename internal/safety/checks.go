package safety

import (
	"fmt"
	"time"

	"github.com/lawnberry/safetycore/internal/config"
	"github.com/lawnberry/safetycore/internal/orientation"
)

// checkTilt implements §4.5's tilt row: max(|roll|,|pitch|) from the IMU
// quaternion, thresholded at medium/high/critical.
func checkTilt(w, x, y, z float64, cfg config.SafetyConfig) (Severity, string) {
	tilt := orientation.MaxTiltDeg(w, x, y, z)
	switch {
	case tilt >= cfg.TiltCriticalDeg:
		return SeverityCritical, fmt.Sprintf("tilt %.1f deg exceeds critical threshold %.1f", tilt, cfg.TiltCriticalDeg)
	case tilt >= cfg.TiltHighDeg:
		return SeverityHigh, fmt.Sprintf("tilt %.1f deg exceeds high threshold %.1f", tilt, cfg.TiltHighDeg)
	case tilt >= cfg.TiltMediumDeg:
		return SeverityMedium, fmt.Sprintf("tilt %.1f deg exceeds medium threshold %.1f", tilt, cfg.TiltMediumDeg)
	default:
		return SeverityNone, ""
	}
}

// checkDrop implements the drop-detection row: a downward-facing ToF
// reading below the critical clearance means the chassis has gone over an
// edge or the wheels have left the ground.
func checkDrop(clearanceCM float64, cfg config.SafetyConfig) (Severity, string) {
	if clearanceCM < cfg.DropCriticalCM {
		return SeverityCritical, fmt.Sprintf("ground clearance %.1f cm below critical threshold %.1f", clearanceCM, cfg.DropCriticalCM)
	}
	return SeverityNone, ""
}

// checkCollision implements the collision row: jerk in IMU acceleration
// magnitude over a sample interval, expressed in g.
func checkCollision(accelMagG float64, cfg config.SafetyConfig) (Severity, string) {
	if accelMagG > cfg.CollisionCriticalG {
		return SeverityCritical, fmt.Sprintf("acceleration %.2fg exceeds collision threshold %.2fg", accelMagG, cfg.CollisionCriticalG)
	}
	return SeverityNone, ""
}

// checkProximity implements the proximity row by thresholding the distance
// of the nearest alerted obstacle against the configured proximity limits;
// the tracker's own threat level is not consulted.
func checkProximity(nearestM float64, cfg config.SafetyConfig) (Severity, string) {
	switch {
	case nearestM <= cfg.ProximityCriticalM:
		return SeverityCritical, fmt.Sprintf("obstacle at %.2f m within critical proximity %.2f m", nearestM, cfg.ProximityCriticalM)
	case nearestM <= cfg.ProximityHighM:
		return SeverityHigh, fmt.Sprintf("obstacle at %.2f m within high proximity %.2f m", nearestM, cfg.ProximityHighM)
	default:
		return SeverityNone, ""
	}
}

// checkTemperature implements the temperature row: outside [TempMinC,
// TempMaxC] is medium, per §4.5 (no escalation to high/critical is named).
func checkTemperature(tempC float64, cfg config.SafetyConfig) (Severity, string) {
	if tempC < cfg.TempMinC || tempC > cfg.TempMaxC {
		return SeverityMedium, fmt.Sprintf("ambient temperature %.1f C outside operating range [%.1f, %.1f]", tempC, cfg.TempMinC, cfg.TempMaxC)
	}
	return SeverityNone, ""
}

// checkWet implements the wet/rain row. A stormSignal from a dedicated rain
// sensor takes precedence over the humidity heuristic, per the §9 open
// question's resolution (same precedence maintenance.EvaluateSlopeGate
// applies to the slope gate).
func checkWet(humidityPct float64, stormSignal bool, cfg config.SafetyConfig) (Severity, string) {
	if stormSignal {
		return SeverityMedium, "rain sensor signal active"
	}
	if humidityPct > cfg.WetHumidityThresholdPct {
		return SeverityMedium, fmt.Sprintf("humidity %.0f%% exceeds wet threshold %.0f%%", humidityPct, cfg.WetHumidityThresholdPct)
	}
	return SeverityNone, ""
}

// checkSlope implements the slope row from the derived pitch (the pitch half
// of orientation.RollPitchDeg, roll is not used); the maintenance
// package's EvaluateSlopeGate covers the combined weather+slope lockout
// gate, this check only folds the slope signal into the safety status.
func checkSlope(pitchDeg float64, cfg config.SafetyConfig) (Severity, string) {
	abs := pitchDeg
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= cfg.SlopeUnsafeDeg:
		return SeverityHigh, fmt.Sprintf("slope %.1f deg exceeds unsafe threshold %.1f", abs, cfg.SlopeUnsafeDeg)
	case abs >= cfg.SlopeCautionDeg:
		return SeverityMedium, fmt.Sprintf("slope %.1f deg exceeds caution threshold %.1f", abs, cfg.SlopeCautionDeg)
	default:
		return SeverityNone, ""
	}
}

// checkBoundary maps a boundary.Violation's own severity string onto the
// safety vocabulary; boundary.Monitor already applies the margin/critical
// distance thresholds from the same configuration.
func checkBoundary(kind, severity string) (Severity, string) {
	switch severity {
	case "critical":
		return SeverityCritical, "boundary violation: " + kind
	case "high":
		return SeverityHigh, "boundary violation: " + kind
	case "medium":
		return SeverityMedium, "boundary violation: " + kind
	default:
		return SeverityNone, ""
	}
}

// checkMaintenanceLockout maps a maintenance.Lockout's severity (blade wear
// or battery) onto the safety vocabulary.
func checkMaintenanceLockout(id, reason, severity string) (Severity, string) {
	if severity == "critical" {
		return SeverityCritical, fmt.Sprintf("%s lockout: %s", id, reason)
	}
	return SeverityMedium, fmt.Sprintf("%s lockout: %s", id, reason)
}

// componentStale reports whether a component's last-seen timestamp is
// outside the startup grace window and therefore counts as unhealthy,
// per §4.5's "missing component status ... treated as safe for the first
// startup_grace_seconds, then downgrades to unhealthy."
func componentStale(lastSeen, processStart, now time.Time, graceSeconds int) bool {
	if lastSeen.IsZero() {
		return now.Sub(processStart) > time.Duration(graceSeconds)*time.Second
	}
	return now.Sub(lastSeen) > time.Duration(graceSeconds)*time.Second
}
