package obstacle

import (
	"math"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// FromToF converts a valid range reading into an Observation in the robot's
// local frame: the sensor's mount offset plus distance along its mount
// axis. Readings flagged too-close/too-far/invalid are rejected here (ok is
// false); the caller passes every buffered reading without filtering.
func FromToF(r *sensors.ToF) (Observation, bool) {
	if r.Status != sensors.RangeValid {
		return Observation{}, false
	}
	distM := r.DistanceMM / 1000.0
	axisLen := math.Sqrt(r.MountAxis.X*r.MountAxis.X + r.MountAxis.Y*r.MountAxis.Y + r.MountAxis.Z*r.MountAxis.Z)
	if axisLen < 1e-6 {
		axisLen = 1
	}
	ux, uy := r.MountAxis.X/axisLen, r.MountAxis.Y/axisLen
	x := r.MountOffset.X + ux*distM
	y := r.MountOffset.Y + uy*distM
	return Observation{
		Time:       r.Timestamp,
		Kind:       KindRange,
		SourceID:   r.SensorID,
		X:          x,
		Y:          y,
		RadiusM:    defaultTypicalRadiusM,
		Confidence: r.Quality,
	}, true
}

// FromVision converts a camera detection into an Observation. When DepthM is
// present the detection is placed at that range along the bounding box's
// center bearing; otherwise a typical-size-based range estimate is used, the
// same "expected size at range" inference a monocular detector falls back
// to without stereo or depth hardware.
func FromVision(r *sensors.VisionDetection, hfovRad float64) (Observation, bool) {
	if r.Confidence <= 0 {
		return Observation{}, false
	}
	centerX := r.Box.X + r.Box.W/2
	bearing := (centerX - 0.5) * hfovRad

	radius := typicalRadii[r.Class]
	if radius == 0 {
		radius = defaultTypicalRadiusM
	}

	var rangeM float64
	if r.DepthM != nil {
		rangeM = *r.DepthM
	} else if r.Box.W > 0 {
		// Angular-size range estimate: rangeM = trueDiameter / angularWidth.
		rangeM = (2 * radius) / (r.Box.W * hfovRad)
	} else {
		rangeM = 5.0 // unknowable; push far enough to avoid a false-critical
	}

	x := rangeM * math.Cos(bearing)
	y := rangeM * math.Sin(bearing)
	return Observation{
		Time:       r.Timestamp,
		Kind:       KindVision,
		SourceID:   r.SensorID,
		X:          x,
		Y:          y,
		RadiusM:    radius,
		Class:      r.Class,
		Confidence: r.Confidence,
	}, true
}
