// Command safetycore is the process entrypoint: it loads configuration,
// builds the message fabric and every subsystem named in spec.md §4, wires
// them onto the fabric, and runs until SIGINT/SIGTERM, at which point it
// cancels every loop and waits for them to exit before returning. It is the
// generalization of the teacher gateway's cmd/gateway/main.go wiring
// sequence (config -> logger -> degraded-mode collaborators -> core
// components -> background loops -> signal wait -> graceful shutdown) from
// a websocket/robot-adapter gateway to this process's fabric-centric
// subsystems.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lawnberry/safetycore/internal/boundary"
	"github.com/lawnberry/safetycore/internal/config"
	"github.com/lawnberry/safetycore/internal/emergency"
	"github.com/lawnberry/safetycore/internal/fabric"
	"github.com/lawnberry/safetycore/internal/localization"
	"github.com/lawnberry/safetycore/internal/maintenance"
	"github.com/lawnberry/safetycore/internal/obstacle"
	"github.com/lawnberry/safetycore/internal/safety"
	"github.com/lawnberry/safetycore/internal/sensors"
	"github.com/lawnberry/safetycore/internal/sensors/sim"
	"github.com/lawnberry/safetycore/internal/telemetry"
)

// Exit codes per spec §6.
const (
	exitOK            = 0
	exitFatalInit     = 1
	exitConfigError   = 2
	exitSIGINT        = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := os.Getenv("SAFETYCORE_CONFIG")
	if configPath == "" {
		configPath = "config/safety.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return exitFatalInit
	}
	defer logger.Sync()

	logger.Info("starting lawnberry safety core",
		zap.String("device_model", string(cfg.Device.Model)),
		zap.Bool("sim_mode", cfg.Device.SimMode),
	)

	reg := prometheus.NewRegistry()
	f := fabric.New(fabric.DefaultPolicies(), logger, reg)

	// Redis archiving is an audit convenience, not a safety function — a
	// failed connection degrades to "archiving disabled," never a fatal
	// startup error, mirroring the teacher's redisPublisher nil-on-failure
	// pattern in cmd/gateway/main.go.
	var archiver *telemetry.Archiver
	if cfg.Redis.Enabled {
		archiver, err = telemetry.NewArchiver(cfg.Redis.URL, logger)
		if err != nil {
			logger.Warn("redis archive disabled, continuing without it", zap.Error(err))
			archiver = nil
		}
	}

	// The outbound MQTT bridge mirrors fabric publishes to an external
	// broker without in-process consumers changing; it too is optional.
	var mqttBridge *fabric.MQTTBridge
	if cfg.MQTT.Enabled {
		mqttBridge, err = fabric.NewMQTTBridge(fabric.MQTTBridgeConfig{
			BrokerHost:  cfg.MQTT.BrokerHost,
			BrokerPort:  cfg.MQTT.BrokerPort,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		if err != nil {
			logger.Warn("mqtt bridge disabled, continuing without it", zap.Error(err))
			mqttBridge = nil
		} else if err := mqttBridge.Connect(); err != nil {
			logger.Warn("mqtt bridge connect failed, continuing without it", zap.Error(err))
			mqttBridge = nil
		} else {
			mqttBridge.Attach(f, "#")
		}
	}

	emergencyCfg := emergency.DefaultConfig()
	emergencyCfg.EnforcementWatchdog = cfg.Emergency.EnforcementWatchdog()
	emergencyCfg.HeartbeatTimeout = cfg.Emergency.HeartbeatTimeout()
	emergencyCfg.AutoReset = cfg.Emergency.AutoReset()
	controller := emergency.New(f, logger, emergencyCfg, reg)

	supervisor := safety.New(f, logger, cfg.Safety, controller)

	locCfg := localization.DefaultConfig()
	locSvc := localization.NewService(f, logger, locCfg)

	obsCfg := obstacle.DefaultConfig()
	obsSvc := obstacle.NewService(f, logger, obsCfg)

	boundaryCfg := boundary.DefaultConfig()
	boundaryCfg.SafetyMarginM = cfg.Safety.BoundaryMarginM
	boundaryCfg.ExitCriticalM = cfg.Safety.BoundaryCriticalM
	boundaryMonitor := boundary.NewMonitor(boundaryCfg)
	boundarySvc := boundary.NewService(f, logger, boundaryMonitor)

	lockouts := maintenance.NewLockoutRegistry(logger)
	maintCfg := maintenance.EvalConfig{
		BladeBaselineA:          cfg.Maintenance.BladeBaselineCurrentA,
		BladeWearAttentionPct:   cfg.Safety.BladeWearAttentionPct,
		BladeWearCriticalPct:    cfg.Safety.BladeWearCriticalPct,
		BladeVibrationCriticalG: cfg.Maintenance.BladeVibrationCriticalG,
		Battery: maintenance.BatteryThresholds{
			OverheatC:      cfg.Maintenance.BatteryOverheatC,
			UndervoltageV:  cfg.Maintenance.BatteryUndervoltageV,
			LowCapacityPct: cfg.Maintenance.BatteryLowCapacityPct,
			ColdC:          cfg.Maintenance.BatteryColdC,
		},
		Slope: maintenance.Thresholds{
			SlopeCautionDeg: cfg.Safety.SlopeCautionDeg,
			SlopeUnsafeDeg:  cfg.Safety.SlopeUnsafeDeg,
			WetHumidityPct:  cfg.Safety.WetHumidityThresholdPct,
			TempMinC:        cfg.Safety.TempMinC,
			TempMaxC:        cfg.Safety.TempMaxC,
		},
		RainSensorTopic: cfg.Safety.RainSensorTopic,
	}
	maintSvc := maintenance.NewService(f, logger, maintCfg, lockouts)

	telemetryAggregator := telemetry.NewAggregator(f, logger, archiver, cfg.Device.TelemetryHz())

	sensorReg := sensors.NewRegistry(logger)
	publish := sensors.FabricPublisher(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mower *sim.Mower
	if cfg.Device.SimMode {
		mower, err = sim.StartAll(ctx, sensorReg, publish, logger)
		if err != nil {
			logger.Error("failed to start simulated sensors", zap.Error(err))
			return exitFatalInit
		}
	} else {
		// Real hardware ingress adapters (serial GNSS/IMU, I2C ToF/BME,
		// camera inference) are provisioned from cfg.Device here in a
		// production deployment; §1 scopes the concrete hardware driver
		// code itself out of this core (it lives in the ingress-adapter
		// layer below sensors.Registry, selected by cfg.Device.GPSDevice
		// and friends). SIM_MODE is what this repo exercises end to end.
		logger.Warn("SIM_MODE disabled and no hardware adapters configured; running with no sensor ingress")
	}

	var wg sync.WaitGroup
	runLoop := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			logger.Info("loop exited", zap.String("loop", name))
		}()
	}

	runLoop("localization", locSvc.Run)
	runLoop("obstacle", obsSvc.Run)
	runLoop("safety_supervisor", supervisor.Run)
	runLoop("emergency_controller", controller.Run)
	runLoop("boundary_monitor", boundarySvc.Run)
	runLoop("maintenance", maintSvc.Run)
	runLoop("telemetry_aggregator", telemetryAggregator.Run)
	runLoop("sensor_health_sweep", sensorHealthSweepLoop(sensorReg))
	runLoop("heartbeat_publisher", heartbeatPublisherLoop(f))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received, stopping gracefully", zap.String("signal", sig.String()))

	cancel()
	wg.Wait()

	if err := sensorReg.StopAll(); err != nil {
		logger.Warn("error stopping sensor adapters", zap.Error(err))
	}
	if mqttBridge != nil {
		mqttBridge.Close()
	}
	if archiver != nil {
		if err := archiver.Close(); err != nil {
			logger.Warn("error closing redis archive connection", zap.Error(err))
		}
	}
	_ = mower

	logger.Info("lawnberry safety core stopped")
	if sig == syscall.SIGINT {
		return exitSIGINT
	}
	return exitOK
}

// sensorHealthSweepLoop periodically recomputes each adapter's health flag
// (§4.2's "2x nominal period" rule) independent of reading traffic, so an
// adapter that has gone silent is flagged even with no other activity to
// trigger the check.
func sensorHealthSweepLoop(reg *sensors.Registry) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				reg.SweepHealth(now)
			}
		}
	}
}

// heartbeatPublisherLoop is the system heartbeat publisher of §2's data
// flow diagram: a publish every 2 s on TopicHeartbeat that resets the emergency
// controller's watchdog (§4.6). In this process the heartbeat itself
// stands for "the control loop supervising this process is alive"; a
// production deployment can instead forward a heartbeat sourced from the
// higher-level navigation/mowing-pattern process this core's watchdog is
// ultimately meant to supervise.
func heartbeatPublisherLoop(f *fabric.Fabric) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				payload, err := fabric.EncodeJSON(map[string]any{"time": time.Now().UTC()})
				if err != nil {
					continue
				}
				f.Publish(fabric.TopicHeartbeat, payload, fabric.QoS0, false, false)
			}
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
