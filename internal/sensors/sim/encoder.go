package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// EncoderAdapter simulates wheel-encoder/RC-link status at 20Hz on the
// encoder sensor topic, which feeds localization; the emergency
// controller's confirmations come from the motor/blade status topics, which
// this adapter does not publish.
type EncoderAdapter struct {
	mower   *Mower
	ticks   int64
	logger  *zap.Logger
	cancel  context.CancelFunc
}

func NewEncoderAdapter(mower *Mower, logger *zap.Logger) *EncoderAdapter {
	return &EncoderAdapter{mower: mower, logger: logger}
}

func (a *EncoderAdapter) Name() string                 { return "encoder_sim" }
func (a *EncoderAdapter) NominalPeriod() sensors.Period { return sensors.Period{Millis: 50} } // 20Hz

func (a *EncoderAdapter) Start(ctx context.Context, publish sensors.PublishFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go ticking(ctx, 50*time.Millisecond, func(now time.Time) {
		_, _, _, speed, _, _ := a.mower.step(0.05)
		a.ticks++
		throttle := 1500.0
		if speed != 0 {
			throttle = 1500 + speed*200
		}
		publish(sensors.Reading{
			Kind: sensors.KindEncoder,
			Encoder: &sensors.EncoderStatus{
				Common:        newCommon(a.Name(), now),
				RCEnabled:     false,
				ThrottlePWMus: throttle,
				SteerPWMus:    1500,
				TickCount:     a.ticks,
				LinkAlive:     true,
			},
		})
	})
	a.logger.Info("sim encoder adapter started")
	return nil
}

func (a *EncoderAdapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
