package obstacle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/fabric"
	"github.com/lawnberry/safetycore/internal/sensors"
)

// hfovRad is the assumed horizontal field of view for the vision pipeline's
// angular-range fallback, matching the wide-angle lens spec.md calls for.
const hfovRad = 1.2

// Alert is published on TopicObstacleAlert whenever any tracked obstacle
// reaches high or critical threat, separate from the full map so the
// safety supervisor can subscribe to just the alert topic.
type Alert struct {
	Time   time.Time   `json:"time"`
	Track  Track       `json:"track"`
	Threat ThreatLevel `json:"threat"`
}

// Service runs the detection loop (fuse + track, 10Hz) and the safety loop
// (publish the current map + any alert, 20Hz), buffering the latest raw
// readings between ticks rather than reacting to every individual reading,
// since the fusion step needs a consistent cross-sensor snapshot.
type Service struct {
	f       *fabric.Fabric
	logger  *zap.Logger
	cfg     Config
	tracker *Tracker

	latestToF    map[string]*sensors.ToF
	latestVision map[string]*sensors.VisionDetection
}

// NewService builds a Service bound to fabric f.
func NewService(f *fabric.Fabric, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		f:            f,
		logger:       logger,
		cfg:          cfg,
		tracker:      NewTracker(cfg),
		latestToF:    make(map[string]*sensors.ToF),
		latestVision: make(map[string]*sensors.VisionDetection),
	}
}

// Run subscribes to raw sensor topics and drives the detection/safety
// ticker loops until ctx is canceled.
func (s *Service) Run(ctx context.Context) {
	tof := s.f.Subscribe(fabric.TopicSensorToF, fabric.QoS0)
	vision := s.f.Subscribe(fabric.TopicSensorVision, fabric.QoS0)
	defer tof.Unsubscribe()
	defer vision.Unsubscribe()

	detectTicker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.DetectionHz))
	safetyTicker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.SafetyLoopHz))
	defer detectTicker.Stop()
	defer safetyTicker.Stop()

	var currentTracks []Track

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-tof.Inbox():
			var r sensors.Reading
			if err := fabric.DecodeJSON(env.Payload, &r); err == nil && r.ToF != nil {
				s.latestToF[r.ToF.SensorID] = r.ToF
			}
		case env := <-vision.Inbox():
			var r sensors.Reading
			if err := fabric.DecodeJSON(env.Payload, &r); err == nil && r.Vision != nil {
				s.latestVision[r.Vision.SensorID] = r.Vision
			}
		case <-detectTicker.C:
			currentTracks = s.detect()
		case <-safetyTicker.C:
			s.publish(currentTracks)
		}
	}
}

func (s *Service) detect() []Track {
	now := time.Now()
	var obs []Observation
	for _, r := range s.latestToF {
		if o, ok := FromToF(r); ok {
			obs = append(obs, o)
		}
	}
	for _, r := range s.latestVision {
		if o, ok := FromVision(r, hfovRad); ok {
			obs = append(obs, o)
		}
	}
	fused := Fuse(s.cfg, obs)
	return s.tracker.Ingest(now, fused)
}

func (s *Service) publish(tracks []Track) {
	payload, err := fabric.EncodeJSON(tracks)
	if err == nil {
		s.f.Publish(fabric.TopicObstacleMap, payload, fabric.QoS0, true, false)
	}

	worst := ThreatNone
	var worstTrack Track
	for _, tr := range tracks {
		if threatRank(tr.Threat) > threatRank(worst) {
			worst = tr.Threat
			worstTrack = tr
		}
	}
	if worst == ThreatHigh || worst == ThreatCritical {
		alert := Alert{Time: time.Now(), Track: worstTrack, Threat: worst}
		payload, err := fabric.EncodeJSON(alert)
		if err == nil {
			s.f.Publish(fabric.TopicObstacleAlert, payload, fabric.QoS2, false, worst == ThreatCritical)
		}
	}
}

func threatRank(t ThreatLevel) int {
	switch t {
	case ThreatCritical:
		return 4
	case ThreatHigh:
		return 3
	case ThreatMedium:
		return 2
	case ThreatLow:
		return 1
	default:
		return 0
	}
}
