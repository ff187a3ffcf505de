// Package config loads and validates the safety core's configuration: an
// env-var layer (device identity, simulation mode, NTRIP credentials) via
// viper, and a YAML threshold file decoded directly with yaml.v3 so a
// missing or malformed file is a hard decode error rather than silently
// falling through to zero values — the safety supervisor must never start
// with missing thresholds (§7).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DeviceModel selects the platform cadence contract of §8.
type DeviceModel string

const (
	DevicePi4 DeviceModel = "pi4"
	DevicePi5 DeviceModel = "pi5"
)

// Config is the root of everything the process needs at startup.
type Config struct {
	Device      DeviceConfig
	Fabric      FabricConfig
	Safety      SafetyConfig      `yaml:"safety" validate:"required"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Emergency   EmergencyConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	Logging     LoggingConfig
}

// DeviceConfig is read from environment variables per §6.
type DeviceConfig struct {
	Model   DeviceModel // DEVICE_MODEL
	SimMode bool        // SIM_MODE
	GPSDevice string    // GPS_DEVICE

	NTRIPHost          string
	NTRIPPort          int
	NTRIPMountpoint    string
	NTRIPUsername      string
	NTRIPPassword      string
	NTRIPSerialDevice  string
	NTRIPSerialBaud    int
	NTRIPStaticGGA     bool
	NTRIPGGAIntervalS  int
	NTRIPGGALat        float64
	NTRIPGGALon        float64
	NTRIPGGAAlt        float64
}

// TelemetryHz returns the platform-specific telemetry cadence of §8.
func (d DeviceConfig) TelemetryHz() float64 {
	if d.Model == DevicePi5 {
		return 5.0
	}
	return 2.0
}

// FabricConfig holds process-wide fabric tuning (queue sizes independent of
// any individual topic's policy).
type FabricConfig struct {
	DefaultQueueSize int `mapstructure:"default_queue_size" validate:"gt=0"`
}

// SafetyConfig carries every threshold named in spec §4.5 and §4.8's tables.
// It carries yaml tags only and is decoded from the YAML `safety:` block;
// env overrides do not reach it.
type SafetyConfig struct {
	TiltMediumDeg     float64 `yaml:"tilt_medium_deg" validate:"gt=0"`
	TiltHighDeg       float64 `yaml:"tilt_high_deg" validate:"gt=0"`
	TiltCriticalDeg   float64 `yaml:"tilt_critical_deg" validate:"gt=0"`
	DropCriticalCM    float64 `yaml:"drop_critical_cm" validate:"gt=0"`
	CollisionCriticalG float64 `yaml:"collision_critical_g" validate:"gt=0"`
	ProximityHighM    float64 `yaml:"proximity_high_m" validate:"gt=0"`
	ProximityCriticalM float64 `yaml:"proximity_critical_m" validate:"gt=0"`
	TempMinC          float64 `yaml:"temp_min_c"`
	TempMaxC          float64 `yaml:"temp_max_c"`
	WetHumidityThresholdPct float64 `yaml:"wet_humidity_threshold_pct" validate:"gt=0"`
	RainSensorTopic   string  `yaml:"rain_sensor_topic"`
	SlopeCautionDeg   float64 `yaml:"slope_caution_deg" validate:"gt=0"`
	SlopeUnsafeDeg    float64 `yaml:"slope_unsafe_deg" validate:"gt=0"`
	BoundaryMarginM   float64 `yaml:"boundary_margin_m" validate:"gt=0"`
	BoundaryCriticalM float64 `yaml:"boundary_critical_m" validate:"gt=0"`
	BladeWearAttentionPct float64 `yaml:"blade_wear_attention_pct" validate:"gt=0"`
	BladeWearCriticalPct  float64 `yaml:"blade_wear_critical_pct" validate:"gt=0"`
	StartupGraceSeconds int `yaml:"startup_grace_seconds" validate:"gt=0"`
	StatusPublishRateHz float64 `yaml:"status_publish_rate_hz" validate:"gt=0"`

	WarningTimeout       time.Duration `yaml:"-"`
	CautionTimeout       time.Duration `yaml:"-"`
	ImmediateTimeout     time.Duration `yaml:"-"`
	EmergencyTimeout     time.Duration `yaml:"-"`
	WarningTimeoutSec    int `yaml:"warning_timeout_sec" validate:"gt=0"`
	CautionTimeoutSec    int `yaml:"caution_timeout_sec" validate:"gt=0"`
	ImmediateTimeoutSec  int `yaml:"immediate_timeout_sec" validate:"gt=0"`
	EmergencyTimeoutSec  int `yaml:"emergency_timeout_sec" validate:"gt=0"`
}

// MaintenanceConfig overrides maintenance-subsystem defaults.
type MaintenanceConfig struct {
	DefaultGroundClearanceM float64 `yaml:"default_ground_clearance_m" validate:"gt=0"`
	BladeBaselineCurrentA   float64 `yaml:"blade_baseline_current_a" validate:"gt=0"`
	BladeVibrationCriticalG float64 `yaml:"blade_vibration_critical_g" validate:"gt=0"`
	BatteryOverheatC        float64 `yaml:"battery_overheat_c" validate:"gt=0"`
	BatteryUndervoltageV    float64 `yaml:"battery_undervoltage_v" validate:"gt=0"`
	BatteryLowCapacityPct   float64 `yaml:"battery_low_capacity_pct" validate:"gt=0"`
	BatteryColdC            float64 `yaml:"battery_cold_c"`
}

// EmergencyConfig resolves the two-timeout Open Question (§9): both are
// kept, independently configurable, composing rather than racing.
type EmergencyConfig struct {
	EnforcementWatchdogS int `mapstructure:"enforcement_watchdog_s" validate:"gt=0"`
	HeartbeatTimeoutS    int `mapstructure:"heartbeat_timeout_s" validate:"gt=0"`
	AutoResetMinutes     int `mapstructure:"auto_reset_minutes" validate:"gt=0"`
}

func (e EmergencyConfig) EnforcementWatchdog() time.Duration {
	return time.Duration(e.EnforcementWatchdogS) * time.Second
}

func (e EmergencyConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(e.HeartbeatTimeoutS) * time.Second
}

func (e EmergencyConfig) AutoReset() time.Duration {
	return time.Duration(e.AutoResetMinutes) * time.Minute
}

// RedisConfig is consulted by the telemetry archive publisher.
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// MQTTConfig drives the optional outbound fabric bridge.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BrokerHost  string `mapstructure:"broker_host"`
	BrokerPort  int    `mapstructure:"broker_port"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// LoggingConfig controls zap's construction.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func (s SafetyConfig) resolveDurations() SafetyConfig {
	s.WarningTimeout = time.Duration(s.WarningTimeoutSec) * time.Second
	s.CautionTimeout = time.Duration(s.CautionTimeoutSec) * time.Second
	s.ImmediateTimeout = time.Duration(s.ImmediateTimeoutSec) * time.Second
	s.EmergencyTimeout = time.Duration(s.EmergencyTimeoutSec) * time.Second
	return s
}

// Load reads environment variables for device/NTRIP settings via viper,
// then decodes configFilePath (the §6 YAML `safety:`/`maintenance:` file)
// directly with yaml.v3, and validates the result. A missing or invalid
// threshold file is a fail-fast configuration error (exit code 2 at the
// call site), never a silent fallback to zero values.
func Load(configFilePath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DEVICE_MODEL", string(DevicePi4))
	v.SetDefault("SIM_MODE", false)
	v.SetDefault("GPS_DEVICE", "/dev/ttyACM0")
	v.SetDefault("NTRIP_PORT", 2101)
	v.SetDefault("NTRIP_SERIAL_BAUD", 115200)
	v.SetDefault("NTRIP_STATIC_GGA", false)
	v.SetDefault("NTRIP_GGA_INTERVAL", 10)

	v.SetDefault("FABRIC_DEFAULT_QUEUE_SIZE", 256)

	v.SetDefault("EMERGENCY_ENFORCEMENT_WATCHDOG_S", 5)
	v.SetDefault("EMERGENCY_HEARTBEAT_TIMEOUT_S", 10)
	v.SetDefault("EMERGENCY_AUTO_RESET_MINUTES", 5)

	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("REDIS_ENABLED", false)

	v.SetDefault("MQTT_ENABLED", false)
	v.SetDefault("MQTT_BROKER_HOST", "localhost")
	v.SetDefault("MQTT_BROKER_PORT", 1883)
	v.SetDefault("MQTT_CLIENT_ID", "lawnberry-safetycore")
	v.SetDefault("MQTT_TOPIC_PREFIX", "lawnberry/")

	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Device: DeviceConfig{
			Model:             DeviceModel(v.GetString("DEVICE_MODEL")),
			SimMode:           v.GetBool("SIM_MODE"),
			GPSDevice:         v.GetString("GPS_DEVICE"),
			NTRIPHost:         v.GetString("NTRIP_HOST"),
			NTRIPPort:         v.GetInt("NTRIP_PORT"),
			NTRIPMountpoint:   v.GetString("NTRIP_MOUNTPOINT"),
			NTRIPUsername:     v.GetString("NTRIP_USERNAME"),
			NTRIPPassword:     v.GetString("NTRIP_PASSWORD"),
			NTRIPSerialDevice: v.GetString("NTRIP_SERIAL_DEVICE"),
			NTRIPSerialBaud:   v.GetInt("NTRIP_SERIAL_BAUD"),
			NTRIPStaticGGA:    v.GetBool("NTRIP_STATIC_GGA"),
			NTRIPGGAIntervalS: v.GetInt("NTRIP_GGA_INTERVAL"),
			NTRIPGGALat:       v.GetFloat64("NTRIP_GGA_LAT"),
			NTRIPGGALon:       v.GetFloat64("NTRIP_GGA_LON"),
			NTRIPGGAAlt:       v.GetFloat64("NTRIP_GGA_ALT"),
		},
		Fabric: FabricConfig{DefaultQueueSize: v.GetInt("FABRIC_DEFAULT_QUEUE_SIZE")},
		Emergency: EmergencyConfig{
			EnforcementWatchdogS: v.GetInt("EMERGENCY_ENFORCEMENT_WATCHDOG_S"),
			HeartbeatTimeoutS:    v.GetInt("EMERGENCY_HEARTBEAT_TIMEOUT_S"),
			AutoResetMinutes:     v.GetInt("EMERGENCY_AUTO_RESET_MINUTES"),
		},
		Redis: RedisConfig{
			URL:     v.GetString("REDIS_URL"),
			Enabled: v.GetBool("REDIS_ENABLED"),
		},
		MQTT: MQTTConfig{
			Enabled:     v.GetBool("MQTT_ENABLED"),
			BrokerHost:  v.GetString("MQTT_BROKER_HOST"),
			BrokerPort:  v.GetInt("MQTT_BROKER_PORT"),
			ClientID:    v.GetString("MQTT_CLIENT_ID"),
			TopicPrefix: v.GetString("MQTT_TOPIC_PREFIX"),
		},
		Logging: LoggingConfig{Level: v.GetString("LOG_LEVEL")},
	}

	raw, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configFilePath, err)
	}

	var fileCfg struct {
		Safety      SafetyConfig      `yaml:"safety"`
		Maintenance MaintenanceConfig `yaml:"maintenance"`
	}
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", configFilePath, err)
	}
	cfg.Safety = fileCfg.Safety.resolveDurations()
	cfg.Maintenance = fileCfg.Maintenance

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()
