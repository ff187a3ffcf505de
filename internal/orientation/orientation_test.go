package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func quatFromRollDeg(deg float64) (w, x, y, z float64) {
	half := deg * math.Pi / 180 / 2
	return math.Cos(half), math.Sin(half), 0, 0
}

func TestRollPitchDeg_Level(t *testing.T) {
	roll, pitch := RollPitchDeg(1, 0, 0, 0)
	assert.InDelta(t, 0, roll, 1e-9)
	assert.InDelta(t, 0, pitch, 1e-9)
}

// Scenario 3 from spec §8: a 30-degree roll must be recovered as ~30 degrees
// of tilt.
func TestMaxTiltDeg_30DegreeRoll(t *testing.T) {
	w, x, y, z := quatFromRollDeg(30)
	tilt := MaxTiltDeg(w, x, y, z)
	assert.InDelta(t, 30, tilt, 0.1)
}
