package boundary

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/fabric"
	"github.com/lawnberry/safetycore/internal/sensors"
)

// Service subscribes to GNSS readings and feeds them into a Monitor,
// publishing each newly raised Violation on the boundary-violation topic,
// which is how the safety supervisor learns of boundary hazards.
type Service struct {
	f       *fabric.Fabric
	logger  *zap.Logger
	monitor *Monitor
}

// NewService builds a Service around monitor. It does not call SetPolygon
// or SetZone; the monitor evaluates whatever polygon and zones the caller
// has set on it.
func NewService(f *fabric.Fabric, logger *zap.Logger, monitor *Monitor) *Service {
	return &Service{f: f, logger: logger, monitor: monitor}
}

// Monitor exposes the underlying Monitor.
func (s *Service) Monitor() *Monitor { return s.monitor }

// Run subscribes to GNSS readings until ctx is canceled.
func (s *Service) Run(ctx context.Context) {
	gnss := s.f.Subscribe(fabric.TopicSensorGNSS, fabric.QoS0)
	defer gnss.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-gnss.Inbox():
			s.handle(env)
		}
	}
}

func (s *Service) handle(env fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(env.Payload, &r); err != nil || r.GNSS == nil {
		return
	}
	g := r.GNSS
	_, raised := s.monitor.Update(time.Now(), g.Latitude, g.Longitude, g.HorizontalAccM)
	for _, v := range raised {
		payload, err := fabric.EncodeJSON(v)
		if err != nil {
			continue
		}
		s.f.Publish(fabric.TopicBoundaryViolation, payload, fabric.QoS1, false, v.Severity == SeverityCritical)
	}
}
