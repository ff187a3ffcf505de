// Package sim implements sensors.Adapter for every reading kind against a
// simulated mower, for SIM_MODE operation with no physical hardware
// attached (spec §6's SIM_MODE env var). It is the generalization of the
// teacher gateway's mock adapter (internal/adapter/mock/mock_adapter.go)
// from one robot-wide adapter producing odometry/LiDAR/IMU/battery onto
// one channel, into one adapter per sensors.Kind, each running its own
// ticker goroutine and calling the shared sensors.PublishFunc directly
// rather than funneling through an internal channel.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// Mower holds the shared kinematic state every generator reads, the
// simulated equivalent of the physical mower the real adapters would be
// attached to. A flat tilt and full battery are the resting state; Drive
// lets a test or an operator console nudge it.
type Mower struct {
	mu   sync.RWMutex
	x, y float64
	headingRad float64
	rollDeg, pitchDeg float64
	speedMPS float64
	batteryPct float64
}

// NewMower returns a mower at rest, fully charged, flat.
func NewMower() *Mower {
	return &Mower{batteryPct: 100}
}

// Drive sets the simulated heading (rad) and speed (m/s) for subsequent
// odometry and IMU ticks.
func (m *Mower) Drive(headingRad, speedMPS float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headingRad = headingRad
	m.speedMPS = speedMPS
}

// Tilt sets the simulated chassis roll/pitch, letting a scenario drive the
// tilt and slope hazard checks without real hardware.
func (m *Mower) Tilt(rollDeg, pitchDeg float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDeg, m.pitchDeg = rollDeg, pitchDeg
}

func (m *Mower) step(dt float64) (x, y, headingRad, speedMPS, rollDeg, pitchDeg float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x += m.speedMPS * math.Cos(m.headingRad) * dt
	m.y += m.speedMPS * math.Sin(m.headingRad) * dt
	m.batteryPct -= 0.0005 * dt
	if m.batteryPct < 0 {
		m.batteryPct = 0
	}
	return m.x, m.y, m.headingRad, m.speedMPS, m.rollDeg, m.pitchDeg
}

func (m *Mower) battery() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batteryPct
}

// rollPitchToQuaternion builds a w,x,y,z quaternion for a roll-then-pitch
// rotation (no yaw component), matching what orientation.RollPitchDeg
// expects to recover.
func rollPitchToQuaternion(rollDeg, pitchDeg float64) sensors.Quaternion {
	r := rollDeg * math.Pi / 180 / 2
	p := pitchDeg * math.Pi / 180 / 2
	cr, sr := math.Cos(r), math.Sin(r)
	cp, sp := math.Cos(p), math.Sin(p)
	return sensors.Quaternion{
		W: cr*cp,
		X: sr*cp,
		Y: cr*sp,
		Z: -sr * sp,
	}
}

// ticking is the shared skeleton every generator uses: run at period until
// ctx is canceled.
func ticking(ctx context.Context, period time.Duration, tick func(now time.Time)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tick(now)
		}
	}
}

func newCommon(sensorID string, now time.Time) sensors.Common {
	return sensors.Common{Timestamp: now, SensorID: sensorID, Quality: 1.0, PortOrBus: "sim"}
}
