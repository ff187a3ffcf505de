package sim

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// EnvironmentAdapter simulates the BME-class temperature/humidity sensor at
// 1Hz, the teacher mock's battery-generator cadence class ("state that
// doesn't change quickly gets a low-rate ticker").
type EnvironmentAdapter struct {
	logger      *zap.Logger
	cancel      context.CancelFunc
	temperatureC atomic.Value // float64
	humidityPct  atomic.Value // float64
}

func NewEnvironmentAdapter(logger *zap.Logger) *EnvironmentAdapter {
	a := &EnvironmentAdapter{logger: logger}
	a.temperatureC.Store(22.0)
	a.humidityPct.Store(50.0)
	return a
}

// SetConditions lets a scenario drive the temperature/wet hazard checks.
func (a *EnvironmentAdapter) SetConditions(temperatureC, humidityPct float64) {
	a.temperatureC.Store(temperatureC)
	a.humidityPct.Store(humidityPct)
}

func (a *EnvironmentAdapter) Name() string                 { return "environment_sim" }
func (a *EnvironmentAdapter) NominalPeriod() sensors.Period { return sensors.Period{Millis: 1000} } // 1Hz

func (a *EnvironmentAdapter) Start(ctx context.Context, publish sensors.PublishFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go ticking(ctx, time.Second, func(now time.Time) {
		temp := a.temperatureC.Load().(float64) + rand.Float64()*0.2 - 0.1
		humidity := a.humidityPct.Load().(float64)
		publish(sensors.Reading{
			Kind: sensors.KindEnvironment,
			Environment: &sensors.Environment{
				Common:      newCommon(a.Name(), now),
				TemperatureC: temp,
				HumidityPct:  humidity,
				PressurePa:   101325,
			},
		})
	})
	a.logger.Info("sim environment adapter started")
	return nil
}

func (a *EnvironmentAdapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
