package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// ToFAdapter simulates a single downward-facing time-of-flight rangefinder
// used for drop detection (spec §4.5's drop row), at 20Hz. GroundClearanceMM
// can be mutated by a test or scenario to exercise the drop hazard.
type ToFAdapter struct {
	name              string
	mountAxis         sensors.Vector3
	GroundClearanceMM float64
	logger            *zap.Logger
	cancel            context.CancelFunc
}

// NewToFAdapter builds a downward-facing ToF adapter (MountAxis.Z = -1,
// matching the safety supervisor's convention for identifying the drop
// sensor among several ToF units).
func NewToFAdapter(name string, logger *zap.Logger) *ToFAdapter {
	return &ToFAdapter{
		name:              name,
		mountAxis:         sensors.Vector3{Z: -1},
		GroundClearanceMM: 80,
		logger:            logger,
	}
}

func (a *ToFAdapter) Name() string                 { return a.name }
func (a *ToFAdapter) NominalPeriod() sensors.Period { return sensors.Period{Millis: 50} } // 20Hz

func (a *ToFAdapter) Start(ctx context.Context, publish sensors.PublishFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go ticking(ctx, 50*time.Millisecond, func(now time.Time) {
		publish(sensors.Reading{
			Kind: sensors.KindToF,
			ToF: &sensors.ToF{
				Common:         newCommon(a.Name(), now),
				DistanceMM:     a.GroundClearanceMM,
				Status:         sensors.RangeValid,
				SignalStrength: 0.9,
				MountAxis:      a.mountAxis,
			},
		})
	})
	a.logger.Info("sim ToF adapter started", zap.String("adapter", a.name))
	return nil
}

func (a *ToFAdapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
