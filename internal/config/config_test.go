package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
safety:
  tilt_medium_deg: 15
  tilt_high_deg: 25
  tilt_critical_deg: 35
  drop_critical_cm: 5
  collision_critical_g: 4
  proximity_high_m: 1.0
  proximity_critical_m: 0.3
  temp_min_c: -10
  temp_max_c: 60
  wet_humidity_threshold_pct: 95
  rain_sensor_topic: ""
  slope_caution_deg: 10
  slope_unsafe_deg: 20
  boundary_margin_m: 1.0
  boundary_critical_m: 0.3
  blade_wear_attention_pct: 70
  blade_wear_critical_pct: 90
  startup_grace_seconds: 180
  status_publish_rate_hz: 5
  warning_timeout_sec: 30
  caution_timeout_sec: 10
  immediate_timeout_sec: 2
  emergency_timeout_sec: 1
maintenance:
  default_ground_clearance_m: 0.1
  blade_baseline_current_a: 2.0
  blade_vibration_critical_g: 3.0
  battery_overheat_c: 60
  battery_undervoltage_v: 10.5
  battery_low_capacity_pct: 10
  battery_cold_c: 0
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "safety.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDecodesThresholdsAndDefaults(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 95.0, cfg.Safety.WetHumidityThresholdPct)
	assert.Equal(t, 0.1, cfg.Maintenance.DefaultGroundClearanceM)
	assert.Equal(t, 180, cfg.Safety.StartupGraceSeconds)
	assert.Equal(t, 5, cfg.Emergency.EnforcementWatchdogS)
	assert.Equal(t, 10, cfg.Emergency.HeartbeatTimeoutS)
	assert.Equal(t, DevicePi4, cfg.Device.Model)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMissingRequiredThresholdFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
safety:
  tilt_medium_deg: 15
maintenance:
  default_ground_clearance_m: 0.1
`)
	_, err := Load(path)
	assert.Error(t, err)
}
