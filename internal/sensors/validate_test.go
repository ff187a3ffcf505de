package sensors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIMURejectsNaNAcceleration(t *testing.T) {
	r := &IMU{
		Orientation:     Quaternion{W: 1, X: 0, Y: 0, Z: 0},
		LinearAccelMPS2: Vector3{X: math.NaN(), Y: 0, Z: 9.8},
	}
	err := ValidateIMU(r)
	assert.ErrorIs(t, err, errInvalidAcceleration)
}

func TestValidateIMURejectsUnnormalizedQuaternion(t *testing.T) {
	r := &IMU{Orientation: Quaternion{W: 2, X: 0, Y: 0, Z: 0}}
	err := ValidateIMU(r)
	assert.ErrorIs(t, err, errUnnormalizedQuaternion)
}

func TestValidateIMUAcceptsUnitQuaternion(t *testing.T) {
	r := &IMU{Orientation: Quaternion{W: 0.7071, X: 0.7071, Y: 0, Z: 0}}
	assert.NoError(t, ValidateIMU(r))
}

func TestValidateToFFiltersNonValidStatus(t *testing.T) {
	assert.True(t, ValidateToF(&ToF{Status: RangeValid}))
	assert.False(t, ValidateToF(&ToF{Status: RangeTooClose}))
	assert.False(t, ValidateToF(&ToF{Status: RangeInvalid}))
}

func TestValidateGNSSRejectsNaN(t *testing.T) {
	err := ValidateGNSS(&GNSS{Latitude: math.NaN(), Longitude: -74.0})
	assert.Error(t, err)
}
