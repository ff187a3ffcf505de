package sim

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// IMUAdapter simulates a 50Hz 9-axis IMU, mirroring the teacher mock's
// generateIMU cadence.
type IMUAdapter struct {
	mower  *Mower
	logger *zap.Logger
	cancel context.CancelFunc
}

func NewIMUAdapter(mower *Mower, logger *zap.Logger) *IMUAdapter {
	return &IMUAdapter{mower: mower, logger: logger}
}

func (a *IMUAdapter) Name() string                     { return "imu_sim" }
func (a *IMUAdapter) NominalPeriod() sensors.Period     { return sensors.Period{Millis: 20} } // 50Hz

func (a *IMUAdapter) Start(ctx context.Context, publish sensors.PublishFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go ticking(ctx, 20*time.Millisecond, func(now time.Time) {
		_, _, _, _, rollDeg, pitchDeg := a.mower.step(0)
		q := rollPitchToQuaternion(rollDeg, pitchDeg)
		reading := sensors.Reading{
			Kind: sensors.KindIMU,
			IMU: &sensors.IMU{
				Common:      newCommon(a.Name(), now),
				Orientation: q,
				LinearAccelMPS2: sensors.Vector3{
					X: rand.Float64()*0.1 - 0.05,
					Y: rand.Float64()*0.1 - 0.05,
					Z: 9.80665 + rand.Float64()*0.02 - 0.01,
				},
				AngularVelRadS:   sensors.Vector3{},
				CalibrationScore: 3,
			},
		}
		publish(reading)
	})
	a.logger.Info("sim IMU adapter started")
	return nil
}

func (a *IMUAdapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
