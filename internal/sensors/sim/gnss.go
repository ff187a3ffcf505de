package sim

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/sensors"
)

// GNSSAdapter simulates an RTK-fixed GNSS receiver at 5Hz (the Pi5 platform
// cadence of spec §6), walking a small origin offset from the mower's
// odometry so localization has something to fuse.
type GNSSAdapter struct {
	mower     *Mower
	originLat float64
	originLon float64
	logger    *zap.Logger
	cancel    context.CancelFunc
}

func NewGNSSAdapter(mower *Mower, originLat, originLon float64, logger *zap.Logger) *GNSSAdapter {
	return &GNSSAdapter{mower: mower, originLat: originLat, originLon: originLon, logger: logger}
}

func (a *GNSSAdapter) Name() string                 { return "gnss_primary" }
func (a *GNSSAdapter) NominalPeriod() sensors.Period { return sensors.Period{Millis: 200} } // 5Hz

func (a *GNSSAdapter) Start(ctx context.Context, publish sensors.PublishFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go ticking(ctx, 200*time.Millisecond, func(now time.Time) {
		x, y, _, speed, _, _ := a.mower.step(0)
		const metersPerDegLat = 111320.0
		lat := a.originLat + y/metersPerDegLat
		lon := a.originLon + x/(metersPerDegLat*0.7) // rough cos(lat) scale factor, not geodesically exact
		publish(sensors.Reading{
			Kind: sensors.KindGNSS,
			GNSS: &sensors.GNSS{
				Common:         newCommon(a.Name(), now),
				Latitude:       lat,
				Longitude:      lon,
				AltitudeM:      100 + rand.Float64()*0.1,
				HorizontalAccM: 0.02,
				SatelliteCount: 18,
				Fix:            sensors.FixRTK,
				HDOP:           0.8,
				SpeedMPS:       speed,
				RTKStatus:      "fixed",
			},
		})
	})
	a.logger.Info("sim GNSS adapter started")
	return nil
}

func (a *GNSSAdapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
