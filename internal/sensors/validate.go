package sensors

import "math"

// ValidateIMU rejects readings with NaN components or an unnormalized
// quaternion, per §4.2: "|‖q‖−1| > 0.05" is rejected.
func ValidateIMU(r *IMU) error {
	q := r.Orientation
	if isNaN(q.W) || isNaN(q.X) || isNaN(q.Y) || isNaN(q.Z) {
		return errInvalidQuaternion
	}
	if isNaN(r.LinearAccelMPS2.X) || isNaN(r.LinearAccelMPS2.Y) || isNaN(r.LinearAccelMPS2.Z) {
		return errInvalidAcceleration
	}
	norm := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if math.Abs(norm-1.0) > 0.05 {
		return errUnnormalizedQuaternion
	}
	return nil
}

// ValidateToF reports whether a ToF reading should feed obstacle insertion.
// Non-valid range statuses are still useful for adapter health tracking but
// must not reach the obstacle detector.
func ValidateToF(r *ToF) bool {
	return r.Status == RangeValid
}

// ValidateGNSS rejects fixes with non-finite coordinates.
func ValidateGNSS(r *GNSS) error {
	if isNaN(r.Latitude) || isNaN(r.Longitude) {
		return errInvalidCoordinate
	}
	return nil
}

func isNaN(f float64) bool { return f != f }

type validationError string

func (e validationError) Error() string { return string(e) }

const (
	errInvalidQuaternion      = validationError("imu: quaternion contains NaN")
	errInvalidAcceleration    = validationError("imu: acceleration contains NaN")
	errUnnormalizedQuaternion = validationError("imu: quaternion not unit-normalized")
	errInvalidCoordinate      = validationError("gnss: non-finite coordinate")
)
