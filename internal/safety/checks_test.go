package safety

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lawnberry/safetycore/internal/config"
)

func testCfg() config.SafetyConfig {
	return config.SafetyConfig{
		TiltMediumDeg:      15,
		TiltHighDeg:        20,
		TiltCriticalDeg:    25,
		DropCriticalCM:     5,
		CollisionCriticalG: 2,
		ProximityHighM:     0.30,
		ProximityCriticalM: 0.15,
		TempMinC:           5,
		TempMaxC:           40,
		WetHumidityThresholdPct: 95,
		SlopeCautionDeg:    10,
		SlopeUnsafeDeg:     15,
		StartupGraceSeconds: 180,
		StatusPublishRateHz: 2,
	}
}

func TestCheckTilt_Thresholds(t *testing.T) {
	cfg := testCfg()
	// quaternion for a pure roll of theta degrees about X.
	quat := func(deg float64) (w, x, y, z float64) {
		rad := deg * math.Pi / 180 / 2
		return math.Cos(rad), math.Sin(rad), 0, 0
	}

	w, x, y, z := quat(10)
	sev, _ := checkTilt(w, x, y, z, cfg)
	assert.Equal(t, SeverityNone, sev)

	w, x, y, z = quat(18)
	sev, _ = checkTilt(w, x, y, z, cfg)
	assert.Equal(t, SeverityMedium, sev)

	w, x, y, z = quat(22)
	sev, _ = checkTilt(w, x, y, z, cfg)
	assert.Equal(t, SeverityHigh, sev)

	w, x, y, z = quat(30)
	sev, _ = checkTilt(w, x, y, z, cfg)
	assert.Equal(t, SeverityCritical, sev)
}

func TestCheckDrop(t *testing.T) {
	cfg := testCfg()
	sev, _ := checkDrop(2.0, cfg)
	assert.Equal(t, SeverityCritical, sev)
	sev, _ = checkDrop(10.0, cfg)
	assert.Equal(t, SeverityNone, sev)
}

func TestCheckProximity(t *testing.T) {
	cfg := testCfg()
	sev, _ := checkProximity(0.10, cfg)
	assert.Equal(t, SeverityCritical, sev)
	sev, _ = checkProximity(0.25, cfg)
	assert.Equal(t, SeverityHigh, sev)
	sev, _ = checkProximity(1.0, cfg)
	assert.Equal(t, SeverityNone, sev)
}

func TestCheckWet_StormSignalTakesPrecedence(t *testing.T) {
	cfg := testCfg()
	sev, desc := checkWet(10, true, cfg)
	assert.Equal(t, SeverityMedium, sev)
	assert.Contains(t, desc, "rain sensor")

	sev, _ = checkWet(50, false, cfg)
	assert.Equal(t, SeverityNone, sev)

	sev, _ = checkWet(96, false, cfg)
	assert.Equal(t, SeverityMedium, sev)
}

func TestCheckTemperature(t *testing.T) {
	cfg := testCfg()
	sev, _ := checkTemperature(22, cfg)
	assert.Equal(t, SeverityNone, sev)
	sev, _ = checkTemperature(45, cfg)
	assert.Equal(t, SeverityMedium, sev)
	sev, _ = checkTemperature(-2, cfg)
	assert.Equal(t, SeverityMedium, sev)
}

func TestCheckSlope(t *testing.T) {
	cfg := testCfg()
	sev, _ := checkSlope(5, cfg)
	assert.Equal(t, SeverityNone, sev)
	sev, _ = checkSlope(12, cfg)
	assert.Equal(t, SeverityMedium, sev)
	sev, _ = checkSlope(-18, cfg)
	assert.Equal(t, SeverityHigh, sev)
}

func TestCheckBoundary(t *testing.T) {
	sev, _ := checkBoundary("boundary_exit", "critical")
	assert.Equal(t, SeverityCritical, sev)
	sev, _ = checkBoundary("safety_margin", "medium")
	assert.Equal(t, SeverityMedium, sev)
	sev, _ = checkBoundary("no_go_entry", "high")
	assert.Equal(t, SeverityHigh, sev)
}

func TestCheckMaintenanceLockout(t *testing.T) {
	sev, _ := checkMaintenanceLockout("battery", "overheat", "critical")
	assert.Equal(t, SeverityCritical, sev)
	sev, _ = checkMaintenanceLockout("blade", "wear", "attention")
	assert.Equal(t, SeverityMedium, sev)
}
