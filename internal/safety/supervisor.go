package safety

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/config"
	"github.com/lawnberry/safetycore/internal/emergency"
	"github.com/lawnberry/safetycore/internal/fabric"
	"github.com/lawnberry/safetycore/internal/orientation"
	"github.com/lawnberry/safetycore/internal/sensors"
)

// Supervisor is the fan-in of §4.5: it holds the latest reading of every
// signal it needs, runs the two clocks (20 Hz coordination, 50 Hz
// critical-only), and owns the open-alert ladder. It never imports the
// boundary or maintenance packages directly — like the emergency
// controller's manual-stop bridge, it learns of their hazards only through
// the fabric (TopicBoundaryViolation, TopicMaintenanceLockout), keeping the
// dependency graph message-passing rather than call-graph shaped (§9).
type Supervisor struct {
	f          *fabric.Fabric
	logger     *zap.Logger
	cfg        config.SafetyConfig
	controller *emergency.Controller
	processStart time.Time

	mu          sync.Mutex
	latestIMU   *sensors.IMU
	latestTemp  *sensors.Environment
	prevAccelG  float64
	haveAccel   bool
	nearestM    float64
	haveObstacle bool
	dropCM      float64
	haveDrop    bool
	stormSignal bool

	openAlerts map[string]*Alert
	components map[string]*ComponentHealth

	lastPublish time.Time
}

// New builds a Supervisor bound to fabric f and the emergency controller it
// escalates to on the fast path.
func New(f *fabric.Fabric, logger *zap.Logger, cfg config.SafetyConfig, controller *emergency.Controller) *Supervisor {
	return &Supervisor{
		f:            f,
		logger:       logger,
		cfg:          cfg,
		controller:   controller,
		processStart: time.Now(),
		nearestM:     math.Inf(1),
		openAlerts:   make(map[string]*Alert),
		components:   make(map[string]*ComponentHealth),
	}
}

// Run subscribes to every upstream signal and drives both clocks until ctx
// is canceled.
func (s *Supervisor) Run(ctx context.Context) {
	imu := s.f.Subscribe(fabric.TopicSensorIMU, fabric.QoS0)
	tof := s.f.Subscribe(fabric.TopicSensorToF, fabric.QoS0)
	env := s.f.Subscribe(fabric.TopicSensorEnvironment, fabric.QoS0)
	obstacleAlert := s.f.Subscribe(fabric.TopicObstacleAlert, fabric.QoS2)
	boundary := s.f.Subscribe(fabric.TopicBoundaryViolation, fabric.QoS1)
	lockout := s.f.Subscribe(fabric.TopicMaintenanceLockout, fabric.QoS1)
	defer imu.Unsubscribe()
	defer tof.Unsubscribe()
	defer env.Unsubscribe()
	defer obstacleAlert.Unsubscribe()
	defer boundary.Unsubscribe()
	defer lockout.Unsubscribe()

	// A configured rain_sensor_topic overrides the humidity heuristic, per
	// the §9 open-question resolution; left unsubscribed when unconfigured.
	var rainCh <-chan fabric.Envelope
	if s.cfg.RainSensorTopic != "" {
		rain := s.f.Subscribe(s.cfg.RainSensorTopic, fabric.QoS0)
		defer rain.Unsubscribe()
		rainCh = rain.Inbox()
	}

	coordTicker := time.NewTicker(50 * time.Millisecond)  // 20 Hz
	emergTicker := time.NewTicker(20 * time.Millisecond)  // 50 Hz
	defer coordTicker.Stop()
	defer emergTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-imu.Inbox():
			s.handleIMU(e)
		case e := <-tof.Inbox():
			s.handleToF(e)
		case e := <-env.Inbox():
			s.handleEnvironment(e)
		case e := <-obstacleAlert.Inbox():
			s.handleObstacleAlert(e)
		case e := <-boundary.Inbox():
			s.handleBoundaryViolation(ctx, e)
		case e := <-lockout.Inbox():
			s.handleLockout(ctx, e)
		case e := <-rainCh:
			s.handleRainSignal(e)
		case <-emergTicker.C:
			s.runEmergencyLoop(ctx)
		case <-coordTicker.C:
			s.runCoordinationLoop(ctx)
		}
	}
}

func (s *Supervisor) handleIMU(e fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(e.Payload, &r); err != nil || r.IMU == nil {
		return
	}
	s.mu.Lock()
	a := r.IMU.LinearAccelMPS2
	magG := math.Sqrt(a.X*a.X+a.Y*a.Y+a.Z*a.Z) / 9.80665
	if s.haveAccel && s.latestIMU != nil {
		p := s.latestIMU.LinearAccelMPS2
		prevMagG := math.Sqrt(p.X*p.X+p.Y*p.Y+p.Z*p.Z) / 9.80665
		s.prevAccelG = math.Abs(magG - prevMagG)
	} else {
		s.prevAccelG = 0
		s.haveAccel = true
	}
	s.latestIMU = r.IMU
	s.components["imu"] = &ComponentHealth{Name: "imu", LastSeen: time.Now(), Healthy: true}
	s.mu.Unlock()
}

// handleToF treats a ToF reading whose mount axis points predominantly
// downward (negative Z in sensor frame) as the drop/clearance sensor.
func (s *Supervisor) handleToF(e fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(e.Payload, &r); err != nil || r.ToF == nil {
		return
	}
	if r.ToF.MountAxis.Z >= -0.5 {
		return
	}
	s.mu.Lock()
	s.dropCM = r.ToF.DistanceMM / 10.0
	s.haveDrop = true
	s.components["tof_downward"] = &ComponentHealth{Name: "tof_downward", LastSeen: time.Now(), Healthy: true}
	s.mu.Unlock()
}

func (s *Supervisor) handleEnvironment(e fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(e.Payload, &r); err != nil || r.Environment == nil {
		return
	}
	s.mu.Lock()
	s.latestTemp = r.Environment
	s.components["environment"] = &ComponentHealth{Name: "environment", LastSeen: time.Now(), Healthy: true}
	s.mu.Unlock()
}

type rainSignalPayload struct {
	Active bool `json:"active"`
}

func (s *Supervisor) handleRainSignal(e fabric.Envelope) {
	var p rainSignalPayload
	if err := fabric.DecodeJSON(e.Payload, &p); err != nil {
		return
	}
	s.SetStormSignal(p.Active)
}

type obstacleAlertPayload struct {
	Track struct {
		DistanceM float64
	}
}

func (s *Supervisor) handleObstacleAlert(e fabric.Envelope) {
	var p obstacleAlertPayload
	if err := fabric.DecodeJSON(e.Payload, &p); err != nil {
		return
	}
	s.mu.Lock()
	s.nearestM = p.Track.DistanceM
	s.haveObstacle = true
	s.components["obstacle"] = &ComponentHealth{Name: "obstacle", LastSeen: time.Now(), Healthy: true}
	s.mu.Unlock()
}

type boundaryViolationPayload struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
}

func (s *Supervisor) handleBoundaryViolation(ctx context.Context, e fabric.Envelope) {
	var p boundaryViolationPayload
	if err := fabric.DecodeJSON(e.Payload, &p); err != nil {
		return
	}
	sev, desc := checkBoundary(p.Kind, p.Severity)
	if sev == SeverityNone {
		s.clear("boundary", p.Kind)
	} else {
		s.raise(ctx, "boundary", p.Kind, sev, desc)
	}
	s.mu.Lock()
	s.components["boundary"] = &ComponentHealth{Name: "boundary", LastSeen: time.Now(), Healthy: true}
	s.mu.Unlock()
}

type lockoutPayload struct {
	ID       string
	Reason   string
	Severity string
}

func (s *Supervisor) handleLockout(ctx context.Context, e fabric.Envelope) {
	var p lockoutPayload
	if err := fabric.DecodeJSON(e.Payload, &p); err != nil {
		return
	}
	sev, desc := checkMaintenanceLockout(p.ID, p.Reason, p.Severity)
	s.raise(ctx, "maintenance", p.ID, sev, desc)
	s.mu.Lock()
	s.components["maintenance"] = &ComponentHealth{Name: "maintenance", LastSeen: time.Now(), Healthy: true}
	s.mu.Unlock()
}

// runEmergencyLoop is the 50 Hz critical-only pass: any critical finding
// triggers the emergency controller directly, bypassing the slower
// ladder/dedup bookkeeping entirely, per §4.5.
func (s *Supervisor) runEmergencyLoop(ctx context.Context) {
	s.mu.Lock()
	imu := s.latestIMU
	accelG := s.prevAccelG
	dropCM := s.dropCM
	haveDrop := s.haveDrop
	nearestM := s.nearestM
	haveObstacle := s.haveObstacle
	s.mu.Unlock()

	if imu != nil {
		q := imu.Orientation
		if sev, desc := checkTilt(q.W, q.X, q.Y, q.Z, s.cfg); sev == SeverityCritical {
			s.triggerEmergency(ctx, "tilt_critical: "+desc)
		}
		if sev, desc := checkCollision(accelG, s.cfg); sev == SeverityCritical {
			s.triggerEmergency(ctx, "collision_critical: "+desc)
		}
	}
	if haveDrop {
		if sev, desc := checkDrop(dropCM, s.cfg); sev == SeverityCritical {
			s.triggerEmergency(ctx, "drop_critical: "+desc)
		}
	}
	if haveObstacle {
		if sev, desc := checkProximity(nearestM, s.cfg); sev == SeverityCritical {
			s.triggerEmergency(ctx, "proximity_critical: "+desc)
		}
	}
}

func (s *Supervisor) triggerEmergency(ctx context.Context, reason string) {
	if err := s.controller.Trigger(ctx, reason, "safety_supervisor"); err != nil {
		s.logger.Error("failed to trigger emergency from fast path", zap.Error(err), zap.String("reason", reason))
	}
}

// runCoordinationLoop is the 20 Hz pass: re-evaluate every non-fast-path
// check, raise/refresh alerts, escalate stale ones, age out components past
// their grace window, and publish the throttled consolidated status.
func (s *Supervisor) runCoordinationLoop(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	imu := s.latestIMU
	envReading := s.latestTemp
	storm := s.stormSignal
	accelG := s.prevAccelG
	dropCM := s.dropCM
	haveDrop := s.haveDrop
	nearestM := s.nearestM
	haveObstacle := s.haveObstacle
	s.mu.Unlock()

	if imu != nil {
		q := imu.Orientation
		if sev, desc := checkTilt(q.W, q.X, q.Y, q.Z, s.cfg); sev != SeverityNone {
			s.raise(ctx, "imu", "tilt", sev, desc)
		} else {
			s.clear("imu", "tilt")
		}
		// Roll/pitch double as the derived-slope signal (§4.5's slope row);
		// the maintenance package's weather gate covers the combined
		// lockout, this only folds slope into the consolidated status.
		_, pitch := orientation.RollPitchDeg(q.W, q.X, q.Y, q.Z)
		if sev, desc := checkSlope(pitch, s.cfg); sev != SeverityNone {
			s.raise(ctx, "imu", "slope", sev, desc)
		} else {
			s.clear("imu", "slope")
		}
		if sev, desc := checkCollision(accelG, s.cfg); sev != SeverityNone {
			s.raise(ctx, "imu", "collision", sev, desc)
		} else {
			s.clear("imu", "collision")
		}
	}

	if haveDrop {
		if sev, desc := checkDrop(dropCM, s.cfg); sev != SeverityNone {
			s.raise(ctx, "tof_downward", "drop", sev, desc)
		} else {
			s.clear("tof_downward", "drop")
		}
	}

	if haveObstacle {
		if sev, desc := checkProximity(nearestM, s.cfg); sev != SeverityNone {
			s.raise(ctx, "obstacle", "proximity", sev, desc)
		} else {
			s.clear("obstacle", "proximity")
		}
	}

	if envReading != nil {
		if sev, desc := checkTemperature(envReading.TemperatureC, s.cfg); sev != SeverityNone {
			s.raise(ctx, "environment", "temperature", sev, desc)
		} else {
			s.clear("environment", "temperature")
		}
		if sev, desc := checkWet(envReading.HumidityPct, storm, s.cfg); sev != SeverityNone {
			s.raise(ctx, "environment", "wet", sev, desc)
		} else {
			s.clear("environment", "wet")
		}
	}

	s.escalateStale(ctx, now)
	s.expireComponents(now)

	if now.Sub(s.lastPublish) >= statusPublishInterval(s.cfg) {
		s.publish(now, time.Since(now))
		s.lastPublish = now
	}
}

func statusPublishInterval(cfg config.SafetyConfig) time.Duration {
	hz := cfg.StatusPublishRateHz
	if hz <= 0 {
		hz = 2.0
	}
	return time.Duration(float64(time.Second) / hz)
}

// raise records or refreshes an alert, deduplicating by (source, kind).
// Severity is not part of the key: a raise at a higher severity updates the
// existing record's severity and lifts its ladder rung to that severity's
// starting rung if that is higher; a raise at equal or lower severity only
// refreshes LastSeen and the description.
func (s *Supervisor) raise(_ context.Context, source, kind string, sev Severity, desc string) {
	key := alertKey(source, kind)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.openAlerts[key]
	now := time.Now()
	if !ok {
		s.openAlerts[key] = &Alert{
			Source: source, Kind: kind, Severity: sev, Level: initialLevel(sev),
			Description: desc, FirstSeen: now, LastSeen: now,
		}
		return
	}
	existing.LastSeen = now
	existing.Description = desc
	if rank(sev) > rank(existing.Severity) {
		existing.Severity = sev
		if step := ladderStep(initialLevel(sev)); step > ladderStep(existing.Level) {
			existing.Level = initialLevel(sev)
		}
	}
}

func (s *Supervisor) clear(source, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.openAlerts, alertKey(source, kind))
}

// escalateStale promotes any open alert whose age at its current rung
// exceeds that rung's timeout, §4.5.
func (s *Supervisor) escalateStale(ctx context.Context, now time.Time) {
	s.mu.Lock()
	toEscalate := make([]*Alert, 0)
	for _, a := range s.openAlerts {
		if now.Sub(a.FirstSeen) > escalationTimeout(a.Level) {
			step := ladderStep(a.Level) + 1
			if step < ladderLen {
				a.Level = ladderLevel(step)
				a.FirstSeen = now
				toEscalate = append(toEscalate, a)
			}
		}
	}
	s.mu.Unlock()

	for _, a := range toEscalate {
		s.logger.Warn("safety alert escalated", zap.String("source", a.Source), zap.String("kind", a.Kind), zap.String("level", string(a.Level)))
		if a.Level == LevelEmergencyStop || a.Level == LevelSystemShutdown {
			s.triggerEmergency(ctx, "escalation:"+a.Source+":"+a.Kind)
		}
	}
}

func (s *Supervisor) expireComponents(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.components {
		c.Healthy = !componentStale(c.LastSeen, s.processStart, now, s.cfg.StartupGraceSeconds)
	}
}

// axisSafe reports whether no open alert matching (source, kind) has
// escalated to high severity or worse — the per-axis narrowing of §8's
// universal invariant (overall_safe ⇔ no alert with severity >= high).
func axisSafe(openAlerts map[string]*Alert, pairs ...[2]string) bool {
	for _, p := range pairs {
		if a, ok := openAlerts[alertKey(p[0], p[1])]; ok && rank(a.Severity) >= rank(SeverityHigh) {
			return false
		}
	}
	return true
}

// overallSafe reports §8's universal invariant over the whole open-alert
// set: no alert of any source/kind has reached high severity or worse.
func overallSafe(openAlerts map[string]*Alert) bool {
	for _, a := range openAlerts {
		if rank(a.Severity) >= rank(SeverityHigh) {
			return false
		}
	}
	return true
}

// publish builds and emits the consolidated SafetyStatus at the throttled
// rate, §4.5. elapsed is the time spent evaluating this tick's checks,
// reported as §3's response_time_ms.
func (s *Supervisor) publish(now time.Time, elapsed time.Duration) {
	s.mu.Lock()
	alerts := make([]Alert, 0, len(s.openAlerts))
	worst := LevelNone
	for _, a := range s.openAlerts {
		alerts = append(alerts, *a)
		if ladderStep(a.Level) > ladderStep(worst) {
			worst = a.Level
		}
	}
	components := make([]ComponentHealth, 0, len(s.components))
	for _, c := range s.components {
		components = append(components, *c)
	}

	measured := Measurements{
		DropClearanceCM:  s.dropCM,
		CollisionAccelG:  s.prevAccelG,
		NearestObstacleM: s.nearestM,
	}
	if s.latestIMU != nil {
		q := s.latestIMU.Orientation
		measured.TiltDeg = orientation.MaxTiltDeg(q.W, q.X, q.Y, q.Z)
	}
	if s.latestTemp != nil {
		measured.TemperatureC = s.latestTemp.TemperatureC
		measured.HumidityPct = s.latestTemp.HumidityPct
	}

	status := Status{
		Time:        now,
		Level:       worst,
		OverallSafe: overallSafe(s.openAlerts),
		TiltSafe:    axisSafe(s.openAlerts, [2]string{"imu", "tilt"}),
		DropSafe:    axisSafe(s.openAlerts, [2]string{"tof_downward", "drop"}),
		CollisionSafe: axisSafe(s.openAlerts, [2]string{"imu", "collision"}),
		WeatherSafe: axisSafe(s.openAlerts,
			[2]string{"environment", "temperature"},
			[2]string{"environment", "wet"},
			[2]string{"imu", "slope"},
		),
		BoundarySafe:   !hasOpenAlertFromSource(s.openAlerts, "boundary"),
		Measured:       measured,
		Alerts:         alerts,
		Components:     components,
		ResponseTimeMS: float64(elapsed) / float64(time.Millisecond),
	}
	s.mu.Unlock()

	payload, err := fabric.EncodeJSON(status)
	if err != nil {
		s.logger.Error("failed to encode safety status", zap.Error(err))
		return
	}
	s.f.Publish(fabric.TopicSafetyStatus, payload, fabric.QoS1, true, worst == LevelEmergencyStop || worst == LevelSystemShutdown)
}

// hasOpenAlertFromSource reports whether any alert — regardless of
// severity — is currently open under the given source, since a boundary
// violation is binary (inside/outside), not graded like the sensor checks.
func hasOpenAlertFromSource(openAlerts map[string]*Alert, source string) bool {
	for _, a := range openAlerts {
		if a.Source == source {
			return true
		}
	}
	return false
}

// SetStormSignal lets an external rain-sensor bridge override the humidity
// heuristic in checkWet, per the §9 open question's resolution.
func (s *Supervisor) SetStormSignal(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stormSignal = active
}
