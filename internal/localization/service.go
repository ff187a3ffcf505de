package localization

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/fabric"
	"github.com/lawnberry/safetycore/internal/geo"
	"github.com/lawnberry/safetycore/internal/sensors"
)

// Service runs the fusion loop: a 10Hz predict/publish tick for the full
// pose estimate, a 20Hz tick for the abbreviated safety shortcut, and
// opportunistic updates whenever a GNSS, IMU, or encoder reading arrives on
// the fabric. It mirrors the example fleet's fusionLoop/healthMonitorLoop
// split between a fixed-rate ticker goroutine and asynchronous ingestion.
type Service struct {
	f      *fabric.Fabric
	logger *zap.Logger
	cfg    Config
	filter *Filter
	anchor *geo.Anchor

	lastTick      time.Time
	haveLastTicks bool
	lastTicks     int64
	lastTicksTime time.Time
}

// NewService builds a Service bound to fabric f.
func NewService(f *fabric.Fabric, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		f:      f,
		logger: logger,
		cfg:    cfg,
		filter: NewFilter(cfg),
	}
}

// Run subscribes to sensor topics and drives both ticker loops until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) {
	gnss := s.f.Subscribe(fabric.TopicSensorGNSS, fabric.QoS0)
	imu := s.f.Subscribe(fabric.TopicSensorIMU, fabric.QoS0)
	encoder := s.f.Subscribe(fabric.TopicSensorEncoder, fabric.QoS0)
	defer gnss.Unsubscribe()
	defer imu.Unsubscribe()
	defer encoder.Unsubscribe()

	predictTicker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.PredictHz))
	safetyTicker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.SafetyPublishHz))
	defer predictTicker.Stop()
	defer safetyTicker.Stop()

	s.lastTick = time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-gnss.Inbox():
			s.handleGNSS(env)
		case env := <-imu.Inbox():
			s.handleIMU(env)
		case env := <-encoder.Inbox():
			s.handleEncoder(env)
		case <-predictTicker.C:
			s.tickPredict()
		case <-safetyTicker.C:
			s.publishSafetyShortcut()
		}
	}
}

func (s *Service) tickPredict() {
	now := time.Now()
	dt := now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	if dt <= 0 {
		return
	}
	s.filter.Predict(dt)

	if s.filter.Diverged() {
		s.logger.Warn("localization covariance diverged, re-anchoring",
			zap.Float64("position_trace_m2", s.filter.PositionTrace()))
		s.filter.Reanchor()
	}

	pose := s.filter.Pose(now)
	if s.anchor != nil {
		pose.Lat, pose.Lon = s.anchor.Unproject(pose.X, pose.Y)
	}
	payload, err := fabric.EncodeJSON(pose)
	if err != nil {
		s.logger.Error("encode pose estimate failed", zap.Error(err))
		return
	}
	s.f.Publish(fabric.TopicPoseEstimate, payload, fabric.QoS0, true, false)
}

func (s *Service) publishSafetyShortcut() {
	shortcut := s.filter.SafetyShortcut(time.Now())
	payload, err := fabric.EncodeJSON(shortcut)
	if err != nil {
		s.logger.Error("encode safety pose shortcut failed", zap.Error(err))
		return
	}
	s.f.Publish(fabric.TopicPoseSafety, payload, fabric.QoS0, true, true)
}

func (s *Service) handleGNSS(env fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(env.Payload, &r); err != nil || r.GNSS == nil {
		return
	}
	g := r.GNSS
	if g.Fix == sensors.FixNone {
		return
	}
	if s.anchor == nil {
		a := geo.NewAnchor(g.Latitude, g.Longitude)
		s.anchor = &a
	}
	x, y := s.anchor.Project(g.Latitude, g.Longitude)
	s.filter.UpdateGNSS(x, y, g.AltitudeM, g.HorizontalAccM, g.SpeedMPS > 0, g.SpeedMPS, 0, 0)
}

func (s *Service) handleIMU(env fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(env.Payload, &r); err != nil || r.IMU == nil {
		return
	}
	o := r.IMU.Orientation
	w := r.IMU.AngularVelRadS
	s.filter.UpdateIMU(o.W, o.X, o.Y, o.Z, w.X, w.Y, w.Z, r.IMU.Quality)
}

// handleEncoder derives a scalar speed from the raw tick count delta since
// the last reading and folds it into the filter's velocity states. Ticks
// reset or device restarts (delta <= 0) are skipped rather than producing a
// bogus negative speed.
func (s *Service) handleEncoder(env fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(env.Payload, &r); err != nil || r.Encoder == nil || !r.Encoder.LinkAlive {
		return
	}
	now := r.Encoder.Timestamp
	if !s.haveLastTicks {
		s.lastTicks = r.Encoder.TickCount
		s.lastTicksTime = now
		s.haveLastTicks = true
		return
	}
	dt := now.Sub(s.lastTicksTime).Seconds()
	deltaTicks := r.Encoder.TickCount - s.lastTicks
	s.lastTicks = r.Encoder.TickCount
	s.lastTicksTime = now
	if dt <= 0 || deltaTicks <= 0 || s.cfg.EncoderTicksPerMeter <= 0 {
		return
	}
	speed := float64(deltaTicks) / s.cfg.EncoderTicksPerMeter / dt
	s.filter.UpdateEncoderVelocity(speed)
}
