package sim

import (
	"context"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// StartAll constructs one simulated adapter per reading kind sharing a
// single Mower, registers each with reg, and starts their ingestion loops.
// It is the SIM_MODE wiring cmd/safetycore/main.go calls in place of real
// hardware adapters.
func StartAll(ctx context.Context, reg *sensors.Registry, publish sensors.PublishFunc, logger *zap.Logger) (*Mower, error) {
	mower := NewMower()

	adapters := []sensors.Adapter{
		NewIMUAdapter(mower, logger),
		NewGNSSAdapter(mower, 37.7749, -122.4194, logger),
		NewToFAdapter("tof_drop", logger),
		NewEnvironmentAdapter(logger),
		NewPowerAdapter(mower, logger),
		NewEncoderAdapter(mower, logger),
		NewVisionAdapter(logger),
	}

	for _, a := range adapters {
		if err := reg.Add(ctx, a, publish); err != nil {
			return mower, err
		}
	}
	return mower, nil
}
