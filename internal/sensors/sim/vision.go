package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// VisionAdapter simulates a camera object-detection stream at 10Hz. With no
// obstacles injected it produces nothing: it idles until a scenario calls
// Inject (unlike ToFAdapter, which publishes its ground clearance on every
// tick).
type VisionAdapter struct {
	logger  *zap.Logger
	cancel  context.CancelFunc
	pending chan sensors.VisionDetection
}

func NewVisionAdapter(logger *zap.Logger) *VisionAdapter {
	return &VisionAdapter{logger: logger, pending: make(chan sensors.VisionDetection, 16)}
}

// Inject queues a detection to be published on the next tick, letting a
// scenario exercise the obstacle tracker without a real camera.
func (a *VisionAdapter) Inject(d sensors.VisionDetection) {
	select {
	case a.pending <- d:
	default:
	}
}

func (a *VisionAdapter) Name() string                 { return "vision_sim" }
func (a *VisionAdapter) NominalPeriod() sensors.Period { return sensors.Period{Millis: 100} } // 10Hz

func (a *VisionAdapter) Start(ctx context.Context, publish sensors.PublishFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go ticking(ctx, 100*time.Millisecond, func(now time.Time) {
		select {
		case d := <-a.pending:
			d.Common = newCommon(a.Name(), now)
			publish(sensors.Reading{Kind: sensors.KindVision, Vision: &d})
		default:
		}
	})
	a.logger.Info("sim vision adapter started")
	return nil
}

func (a *VisionAdapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
