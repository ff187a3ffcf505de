// Package orientation converts the IMU's quaternion orientation into the
// roll/pitch angles the tilt, slope, and drop hazard checks all need, so
// each of those checks (spread across the safety and maintenance packages)
// shares one quaternion-to-Euler conversion rather than reimplementing it.
package orientation

import "math"

// RollPitchDeg converts a (w,x,y,z) orientation quaternion to roll and
// pitch in degrees using the standard aerospace Euler-angle extraction.
// Yaw is intentionally not computed here — none of the hazard checks this
// package serves need it.
func RollPitchDeg(w, x, y, z float64) (rollDeg, pitchDeg float64) {
	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	return roll * 180 / math.Pi, pitch * 180 / math.Pi
}

// MaxTiltDeg returns max(|roll|, |pitch|), the scalar the tilt hazard check
// compares against its thresholds (§4.5).
func MaxTiltDeg(w, x, y, z float64) float64 {
	roll, pitch := RollPitchDeg(w, x, y, z)
	r, p := math.Abs(roll), math.Abs(pitch)
	if r > p {
		return r
	}
	return p
}
