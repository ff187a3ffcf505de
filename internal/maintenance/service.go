package maintenance

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/fabric"
	"github.com/lawnberry/safetycore/internal/orientation"
	"github.com/lawnberry/safetycore/internal/sensors"
)

// EvalConfig carries the thresholds §4.8 names, sourced from
// config.MaintenanceConfig/config.SafetyConfig at wiring time.
type EvalConfig struct {
	BladeBaselineA         float64
	BladeWearAttentionPct  float64
	BladeWearCriticalPct   float64
	BladeVibrationCriticalG float64
	Battery                BatteryThresholds
	Slope                  Thresholds
	RainSensorTopic        string
}

// Snapshot is the latest derived maintenance picture, returned by Latest.
// The safety supervisor does not read it; it learns of maintenance hazards
// from the lockout topic.
type Snapshot struct {
	Time    time.Time
	Blade   BladeEvaluation
	Battery BatteryEvaluation
	Slope   SlopeGate
}

// Service folds raw power/IMU/environment readings into the blade, battery,
// and slope/weather evaluations, engaging LockoutRegistry entries when a
// condition crosses its critical threshold and publishing the resulting
// lockout on the maintenance topic.
type Service struct {
	f        *fabric.Fabric
	logger   *zap.Logger
	cfg      EvalConfig
	lockouts *LockoutRegistry
	blade    *BladeWindow

	latest Snapshot

	lastIMU   *sensors.IMU
	lastEnv   *sensors.Environment
	stormSignal bool
}

// NewService builds a Service bound to fabric f, with lockouts already
// constructed by the caller.
func NewService(f *fabric.Fabric, logger *zap.Logger, cfg EvalConfig, lockouts *LockoutRegistry) *Service {
	return &Service{
		f:        f,
		logger:   logger,
		cfg:      cfg,
		lockouts: lockouts,
		blade:    NewBladeWindow(cfg.BladeBaselineA, 10*time.Minute),
	}
}

// Latest returns the most recent derived Snapshot.
func (s *Service) Latest() Snapshot { return s.latest }

// Run subscribes to the raw readings this subsystem derives from and
// evaluates once per second until ctx is canceled.
func (s *Service) Run(ctx context.Context) {
	power := s.f.Subscribe(fabric.TopicSensorPower, fabric.QoS0)
	imu := s.f.Subscribe(fabric.TopicSensorIMU, fabric.QoS0)
	env := s.f.Subscribe(fabric.TopicSensorEnvironment, fabric.QoS0)
	defer power.Unsubscribe()
	defer imu.Unsubscribe()
	defer env.Unsubscribe()

	var rainCh <-chan fabric.Envelope
	if s.cfg.RainSensorTopic != "" {
		rain := s.f.Subscribe(s.cfg.RainSensorTopic, fabric.QoS0)
		defer rain.Unsubscribe()
		rainCh = rain.Inbox()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-power.Inbox():
			s.handlePower(e)
		case e := <-imu.Inbox():
			s.handleIMU(e)
		case e := <-env.Inbox():
			s.handleEnv(e)
		case e := <-rainCh:
			s.handleRainSignal(e)
		case <-ticker.C:
			s.evaluate()
		}
	}
}

func (s *Service) handlePower(e fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(e.Payload, &r); err != nil || r.Power == nil {
		return
	}
	p := r.Power
	vibG := 0.0
	if s.lastIMU != nil {
		vibG = vibrationG(s.lastIMU)
	}
	s.blade.Add(BladeSample{Time: p.Timestamp, CurrentA: p.LoadCurrentA, VibrationG: vibG})

	capacityPct := estimateCapacityPct(p)
	s.latest.Battery = EvaluateBattery(BatteryReading{
		VoltageV:    p.BatteryVoltageV,
		CapacityPct: capacityPct,
		CellTempC:   p.CellTemperatureC,
	}, s.cfg.Battery)

	if s.latest.Battery.LockoutRequired {
		s.lockouts.Acquire("battery", "battery safety threshold exceeded", SeverityCritical,
			[]string{"drive", "blade"}, "operator", 0)
		s.publishLockout("battery")
	}
}

func (s *Service) handleIMU(e fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(e.Payload, &r); err != nil || r.IMU == nil {
		return
	}
	s.lastIMU = r.IMU
}

func (s *Service) handleEnv(e fabric.Envelope) {
	var r sensors.Reading
	if err := fabric.DecodeJSON(e.Payload, &r); err != nil || r.Environment == nil {
		return
	}
	s.lastEnv = r.Environment
}

func (s *Service) handleRainSignal(e fabric.Envelope) {
	var p struct {
		Active bool `json:"active"`
	}
	if err := fabric.DecodeJSON(e.Payload, &p); err != nil {
		return
	}
	s.stormSignal = p.Active
}

// evaluate recomputes blade wear and the slope/weather gate from the
// latest buffered readings, ticked once a second rather than on every
// reading since these are slow-moving signals.
func (s *Service) evaluate() {
	wearPct, peakVib := s.blade.WearPct()
	s.latest.Blade = EvaluateBlade(wearPct, peakVib, s.cfg.BladeWearAttentionPct, s.cfg.BladeWearCriticalPct, s.cfg.BladeVibrationCriticalG)
	s.latest.Time = time.Now()

	if s.latest.Blade.LockoutRequired {
		s.lockouts.Acquire("blade", "blade wear or vibration threshold exceeded", SeverityCritical,
			[]string{"blade"}, "operator", 0)
		s.publishLockout("blade")
	}

	if s.lastIMU != nil {
		slopeDeg := orientation.MaxTiltDeg(s.lastIMU.Orientation.W, s.lastIMU.Orientation.X, s.lastIMU.Orientation.Y, s.lastIMU.Orientation.Z)
		humidity, tempC := 0.0, 20.0
		if s.lastEnv != nil {
			humidity = s.lastEnv.HumidityPct
			tempC = s.lastEnv.TemperatureC
		}
		s.latest.Slope = EvaluateSlopeGate(slopeDeg, humidity, tempC, s.stormSignal, s.cfg.Slope)
	}
}

func (s *Service) publishLockout(id string) {
	l, ok := s.findLockout(id)
	if !ok {
		return
	}
	payload, err := fabric.EncodeJSON(l)
	if err != nil {
		return
	}
	s.f.Publish(fabric.TopicMaintenanceLockout, payload, fabric.QoS1, true, l.Severity == SeverityCritical)
}

func (s *Service) findLockout(id string) (Lockout, bool) {
	for _, l := range s.lockouts.All() {
		if l.ID == id {
			return l, true
		}
	}
	return Lockout{}, false
}

// vibrationG estimates vibration as the magnitude of deviation of measured
// acceleration from gravity — a bench-grade motor imbalance shows up as
// high-frequency departure from the otherwise-constant 1g gravity vector.
func vibrationG(imu *sensors.IMU) float64 {
	const g = 9.80665
	ax, ay, az := imu.LinearAccelMPS2.X, imu.LinearAccelMPS2.Y, imu.LinearAccelMPS2.Z
	mag := math.Sqrt(ax*ax + ay*ay + az*az)
	return math.Abs(mag-g) / g
}

// estimateCapacityPct derives a rough remaining-capacity percentage from
// battery voltage when no dedicated coulomb-counter reading is present,
// assuming a nominal 10-14.6V lead-acid/LiFePO4-style pack range — a
// placeholder estimate the real firmware's charge controller supersedes
// with an actual coulomb count.
func estimateCapacityPct(p *sensors.Power) float64 {
	const minV, maxV = 10.0, 14.6
	pct := (p.BatteryVoltageV - minV) / (maxV - minV) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
