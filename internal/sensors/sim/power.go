package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// PowerAdapter simulates battery telemetry at 0.2Hz, matching the teacher
// mock's generateBattery cadence exactly (5 second ticker, slow linear
// discharge).
type PowerAdapter struct {
	mower  *Mower
	logger *zap.Logger
	cancel context.CancelFunc
}

func NewPowerAdapter(mower *Mower, logger *zap.Logger) *PowerAdapter {
	return &PowerAdapter{mower: mower, logger: logger}
}

func (a *PowerAdapter) Name() string                 { return "power_sim" }
func (a *PowerAdapter) NominalPeriod() sensors.Period { return sensors.Period{Millis: 5000} } // 0.2Hz

func (a *PowerAdapter) Start(ctx context.Context, publish sensors.PublishFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go ticking(ctx, 5*time.Second, func(now time.Time) {
		pct := a.mower.battery()
		publish(sensors.Reading{
			Kind: sensors.KindPower,
			Power: &sensors.Power{
				Common:          newCommon(a.Name(), now),
				BatteryVoltageV: 12.0 * (pct / 100.0),
				BatteryCurrentA: -0.5,
				LoadCurrentA:    0.5,
			},
		})
	})
	a.logger.Info("sim power adapter started")
	return nil
}

func (a *PowerAdapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
