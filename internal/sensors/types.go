// Package sensors defines the typed sensor-reading variants ingested from
// raw hardware frames, and the ingress adapter framework that decodes,
// validates, and timestamps them before they reach the fabric.
package sensors

import "time"

// Kind tags which variant a Reading carries. Downstream consumers switch on
// Kind rather than attempting type assertions against every variant.
type Kind string

const (
	KindGNSS        Kind = "gnss"
	KindIMU         Kind = "imu"
	KindToF         Kind = "tof"
	KindEnvironment Kind = "environment"
	KindPower       Kind = "power"
	KindEncoder     Kind = "encoder"
	KindVision      Kind = "vision"
)

// FixKind is the GNSS fix quality.
type FixKind string

const (
	FixNone FixKind = "none"
	Fix2D   FixKind = "2d"
	Fix3D   FixKind = "3d"
	FixRTK  FixKind = "rtk"
)

// RangeStatus is the ToF reading quality flag.
type RangeStatus string

const (
	RangeValid    RangeStatus = "valid"
	RangeTooClose RangeStatus = "too_close"
	RangeTooFar   RangeStatus = "too_far"
	RangeInvalid  RangeStatus = "invalid"
)

// Common is embedded in every reading variant per spec §3: every reading
// carries a timestamp, source sensor ID, quality, and port/bus identity.
type Common struct {
	Timestamp  time.Time
	SensorID   string
	Quality    float64 // [0,1]
	PortOrBus  string
}

// GNSS is a single GNSS-RTK fix.
type GNSS struct {
	Common
	Latitude          float64
	Longitude         float64
	AltitudeM         float64
	HorizontalAccM    float64
	SatelliteCount    int
	Fix               FixKind
	HDOP              float64
	SpeedMPS          float64
	RTKStatus         string
}

// Quaternion is a w,x,y,z orientation quaternion.
type Quaternion struct {
	W, X, Y, Z float64
}

// Vector3 is a generic 3-axis reading (acceleration, angular velocity,
// magnetic field).
type Vector3 struct {
	X, Y, Z float64
}

// IMU is a 9-axis inertial reading.
type IMU struct {
	Common
	Orientation      Quaternion
	LinearAccelMPS2  Vector3 // body frame
	AngularVelRadS   Vector3
	MagneticField    *Vector3 // optional
	CalibrationScore int      // 0..3
}

// ToF is a time-of-flight rangefinder reading.
type ToF struct {
	Common
	DistanceMM      float64
	Status          RangeStatus
	SignalStrength  float64
	MountOffset     Vector3 // known at config, meters, sensor-frame origin offset
	MountAxis       Vector3 // unit vector along which distance is measured
}

// Environment is a BME-class environmental reading.
type Environment struct {
	Common
	TemperatureC    float64
	HumidityPct     float64
	PressurePa      float64
	DerivedAltitudeM float64
}

// Power is battery/solar telemetry.
type Power struct {
	Common
	BatteryVoltageV  float64
	BatteryCurrentA  float64 // signed; positive = charging
	SolarVoltageV    float64
	SolarCurrentA    float64
	SolarPowerW      float64
	LoadCurrentA     float64
	ChargeCycleCount int
	CellTemperatureC float64
}

// EncoderStatus reports wheel-encoder and RC link state.
type EncoderStatus struct {
	Common
	RCEnabled      bool
	SteerPWMus     float64
	ThrottlePWMus  float64
	TickCount      int64
	LinkAlive      bool
}

// BoundingBox is a normalized (0..1) detection box: x, y (top-left), w, h.
type BoundingBox struct {
	X, Y, W, H float64
}

// VisionDetection is a single camera object detection.
type VisionDetection struct {
	Common
	Class      string
	Confidence float64
	Box        BoundingBox
	DepthM     *float64 // optional
}

// Reading is the tagged-variant envelope placed on the fabric. Exactly one
// of the variant fields is populated, selected by Kind. This is the Go
// expression of the polymorphic SensorReading: a closed union over a fixed
// set of concrete types rather than a dynamically-typed payload.
type Reading struct {
	Kind        Kind
	GNSS        *GNSS
	IMU         *IMU
	ToF         *ToF
	Environment *Environment
	Power       *Power
	Encoder     *EncoderStatus
	Vision      *VisionDetection
}

// Time returns the embedded timestamp regardless of variant.
func (r Reading) Time() time.Time {
	switch r.Kind {
	case KindGNSS:
		return r.GNSS.Timestamp
	case KindIMU:
		return r.IMU.Timestamp
	case KindToF:
		return r.ToF.Timestamp
	case KindEnvironment:
		return r.Environment.Timestamp
	case KindPower:
		return r.Power.Timestamp
	case KindEncoder:
		return r.Encoder.Timestamp
	case KindVision:
		return r.Vision.Timestamp
	default:
		return time.Time{}
	}
}

// SensorID returns the embedded sensor identity regardless of variant.
func (r Reading) SensorID() string {
	switch r.Kind {
	case KindGNSS:
		return r.GNSS.SensorID
	case KindIMU:
		return r.IMU.SensorID
	case KindToF:
		return r.ToF.SensorID
	case KindEnvironment:
		return r.Environment.SensorID
	case KindPower:
		return r.Power.SensorID
	case KindEncoder:
		return r.Encoder.SensorID
	case KindVision:
		return r.Vision.SensorID
	default:
		return ""
	}
}
