// Package telemetry implements the Telemetry Aggregator of spec §4.9: a
// periodic snapshot composer that folds the consolidated safety status,
// latest pose, and maintenance picture into one throttled snapshot for the
// external gateway, plus a best-effort archive of safety-relevant events to
// a Redis stream for later replay/audit. It is the generalization of the
// teacher's internal/bridge/redis_publisher.go from "publish every raw
// sensor/command frame to Redis" into "archive only the events that matter
// for a safety audit trail, and separately publish a throttled fabric
// snapshot for the gateway" — per spec §1, the gateway itself is an
// out-of-scope external collaborator reached through the fabric.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/fabric"
)

const (
	safetyEventStream = "lawnberry:safety_events"
	streamMaxLen      = 100000
)

// Archiver appends safety-relevant events (hazard alerts, emergency
// triggers, boundary violations, maintenance lockouts) to a Redis stream.
// It is an optional collaborator: per the teacher's degraded-mode pattern
// in cmd/gateway/main.go, a nil *Archiver (Redis unreachable or disabled)
// is a valid, silently-skipped sink rather than a startup failure.
type Archiver struct {
	client *redis.Client
	logger *zap.Logger
}

// NewArchiver connects to redisURL and pings it once; the caller is
// expected to treat a non-nil error as "log a warning, continue without
// archiving" rather than a fatal startup error, since archiving is an
// audit convenience, not a safety function.
func NewArchiver(redisURL string, logger *zap.Logger) (*Archiver, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info("telemetry archiver connected to redis")
	return &Archiver{client: client, logger: logger}, nil
}

// ArchiveEvent appends one named safety event to the archive stream. A
// write failure is logged, not returned, matching the fire-and-forget
// contract every other archival/metrics sink in this module follows.
func (a *Archiver) ArchiveEvent(ctx context.Context, kind, source string, payload []byte) {
	if a == nil {
		return
	}
	err := a.client.XAdd(ctx, &redis.XAddArgs{
		Stream: safetyEventStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind":    kind,
			"source":  source,
			"time":    time.Now().UTC().Format(time.RFC3339Nano),
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		a.logger.Warn("failed to archive safety event", zap.String("kind", kind), zap.Error(err))
	}
}

// Close releases the Redis connection. Safe to call on a nil *Archiver.
func (a *Archiver) Close() error {
	if a == nil {
		return nil
	}
	return a.client.Close()
}

// Snapshot is the throttled, composed view published on
// fabric.TopicTelemetrySnapshot for the external gateway to consume — the
// only shape this module exposes outward, mirroring how safety.Status is
// the only shape the safety supervisor exposes.
type Snapshot struct {
	Time            time.Time       `json:"time"`
	SafetyLevel     string          `json:"safety_level"`
	SafetyAlerts    int             `json:"safety_alert_count"`
	EmergencyActive bool            `json:"emergency_active"`
	Pose            json.RawMessage `json:"pose,omitempty"`
	Maintenance     json.RawMessage `json:"maintenance,omitempty"`
}

// Aggregator fans in the consolidated safety status, latest pose estimate,
// and emergency state, and publishes one throttled Snapshot, archiving
// every hazard-worthy event it observes along the way.
type Aggregator struct {
	f        *fabric.Fabric
	logger   *zap.Logger
	archiver *Archiver
	rateHz   float64

	latestSafety    json.RawMessage
	safetyLevel     string
	safetyAlerts    int
	latestPose      json.RawMessage
	latestMaint     json.RawMessage
	emergencyActive bool
}

// NewAggregator builds an Aggregator publishing at rateHz (spec §8's
// platform-specific telemetry cadence — DeviceConfig.TelemetryHz()).
// archiver may be nil when Redis archiving is disabled or unreachable.
func NewAggregator(f *fabric.Fabric, logger *zap.Logger, archiver *Archiver, rateHz float64) *Aggregator {
	if rateHz <= 0 {
		rateHz = 1
	}
	return &Aggregator{f: f, logger: logger, archiver: archiver, rateHz: rateHz}
}

// Run subscribes to every upstream topic the gateway cares about and
// throttles its own republication, per §4.9, until ctx is canceled.
func (a *Aggregator) Run(ctx context.Context) {
	safetyStatus := a.f.Subscribe(fabric.TopicSafetyStatus, fabric.QoS1)
	hazard := a.f.Subscribe(fabric.TopicHazardAlert, fabric.QoS2)
	pose := a.f.Subscribe(fabric.TopicPoseEstimate, fabric.QoS0)
	emergencyState := a.f.Subscribe(fabric.TopicEmergencyState, fabric.QoS1)
	boundary := a.f.Subscribe(fabric.TopicBoundaryViolation, fabric.QoS1)
	lockout := a.f.Subscribe(fabric.TopicMaintenanceLockout, fabric.QoS1)
	defer safetyStatus.Unsubscribe()
	defer hazard.Unsubscribe()
	defer pose.Unsubscribe()
	defer emergencyState.Unsubscribe()
	defer boundary.Unsubscribe()
	defer lockout.Unsubscribe()

	period := time.Duration(float64(time.Second) / a.rateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-safetyStatus.Inbox():
			a.handleSafetyStatus(e)
		case e := <-hazard.Inbox():
			a.archiver.ArchiveEvent(ctx, "hazard_alert", "safety_supervisor", e.Payload)
		case e := <-pose.Inbox():
			a.latestPose = json.RawMessage(e.Payload)
		case e := <-emergencyState.Inbox():
			a.handleEmergencyState(e)
			a.archiver.ArchiveEvent(ctx, "emergency_state", "emergency_controller", e.Payload)
		case e := <-boundary.Inbox():
			a.archiver.ArchiveEvent(ctx, "boundary_violation", "boundary_monitor", e.Payload)
		case e := <-lockout.Inbox():
			a.latestMaint = json.RawMessage(e.Payload)
			a.archiver.ArchiveEvent(ctx, "maintenance_lockout", "maintenance", e.Payload)
		case now := <-ticker.C:
			a.publish(now)
		}
	}
}

type safetyStatusPayload struct {
	Level  string `json:"level"`
	Alerts []any  `json:"active_alerts"`
}

func (a *Aggregator) handleSafetyStatus(e fabric.Envelope) {
	a.latestSafety = json.RawMessage(e.Payload)
	var p safetyStatusPayload
	if err := fabric.DecodeJSON(e.Payload, &p); err != nil {
		return
	}
	a.safetyLevel = p.Level
	a.safetyAlerts = len(p.Alerts)
}

type emergencyStatePayload struct {
	Active bool `json:"active"`
}

func (a *Aggregator) handleEmergencyState(e fabric.Envelope) {
	var p emergencyStatePayload
	if err := fabric.DecodeJSON(e.Payload, &p); err != nil {
		return
	}
	a.emergencyActive = p.Active
}

func (a *Aggregator) publish(now time.Time) {
	snap := Snapshot{
		Time:            now,
		SafetyLevel:     a.safetyLevel,
		SafetyAlerts:    a.safetyAlerts,
		EmergencyActive: a.emergencyActive,
		Pose:            a.latestPose,
		Maintenance:     a.latestMaint,
	}
	payload, err := fabric.EncodeJSON(snap)
	if err != nil {
		a.logger.Warn("failed to encode telemetry snapshot", zap.Error(err))
		return
	}
	a.f.Publish(fabric.TopicTelemetrySnapshot, payload, fabric.QoS0, true, false)
}
