package safety

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/emergency"
	"github.com/lawnberry/safetycore/internal/fabric"
	"github.com/lawnberry/safetycore/internal/sensors"
)

func criticalTiltIMU() *sensors.IMU {
	rad := 30 * math.Pi / 180 / 2
	return &sensors.IMU{
		Orientation: sensors.Quaternion{W: math.Cos(rad), X: math.Sin(rad), Y: 0, Z: 0},
	}
}

func newTestSupervisor(t *testing.T) (*Supervisor, *fabric.Fabric, *emergency.Controller) {
	t.Helper()
	f := fabric.New(fabric.NewPolicyTable(), zap.NewNop(), nil)
	ctrl := emergency.New(f, zap.NewNop(), emergency.DefaultConfig(), nil)
	sup := New(f, zap.NewNop(), testCfg(), ctrl)
	return sup, f, ctrl
}

func TestRaise_DedupesByKeyInsteadOfDuplicating(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	sup.raise(context.Background(), "imu", "tilt", SeverityMedium, "first")
	sup.raise(context.Background(), "imu", "tilt", SeverityHigh, "second")

	sup.mu.Lock()
	defer sup.mu.Unlock()
	require.Len(t, sup.openAlerts, 1)
	a := sup.openAlerts[alertKey("imu", "tilt")]
	assert.Equal(t, SeverityHigh, a.Severity, "a higher-severity refresh should promote the stored severity")
	assert.Equal(t, "second", a.Description)
}

func TestEscalateStale_PromotesOneRungPastTimeout(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	sup.raise(context.Background(), "environment", "temperature", SeverityMedium, "hot")

	sup.mu.Lock()
	a := sup.openAlerts[alertKey("environment", "temperature")]
	a.FirstSeen = time.Now().Add(-6 * time.Minute) // past warning's 5-minute timeout
	sup.mu.Unlock()

	sup.escalateStale(context.Background(), time.Now())

	sup.mu.Lock()
	defer sup.mu.Unlock()
	assert.Equal(t, LevelCaution, sup.openAlerts[alertKey("environment", "temperature")].Level)
}

func TestClear_RemovesOpenAlert(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	sup.raise(context.Background(), "imu", "tilt", SeverityMedium, "x")
	sup.clear("imu", "tilt")

	sup.mu.Lock()
	defer sup.mu.Unlock()
	assert.Len(t, sup.openAlerts, 0)
}

func TestComponentStale_RespectsStartupGrace(t *testing.T) {
	cfg := testCfg()
	cfg.StartupGraceSeconds = 1
	start := time.Now()
	assert.False(t, componentStale(time.Time{}, start, start, cfg.StartupGraceSeconds), "never-seen component is safe within grace")
	assert.True(t, componentStale(time.Time{}, start, start.Add(2*time.Second), cfg.StartupGraceSeconds), "never-seen component is unhealthy past grace")
}

func TestRunEmergencyLoop_CriticalTiltTriggersController(t *testing.T) {
	sup, f, ctrl := newTestSupervisor(t)
	motorStop := f.Subscribe(fabric.TopicMotorStop, fabric.QoS1)
	defer motorStop.Unsubscribe()

	sup.mu.Lock()
	sup.latestIMU = criticalTiltIMU()
	sup.mu.Unlock()

	sup.runEmergencyLoop(context.Background())

	select {
	case <-motorStop.Inbox():
	case <-time.After(time.Second):
		t.Fatal("expected a critical tilt to trigger the emergency controller")
	}
	assert.True(t, ctrl.Snapshot().Active)
}

func TestPublish_ReportsWorstOpenAlertLevel(t *testing.T) {
	sup, f, _ := newTestSupervisor(t)
	status := f.Subscribe(fabric.TopicSafetyStatus, fabric.QoS1)
	defer status.Unsubscribe()

	sup.raise(context.Background(), "environment", "temperature", SeverityMedium, "warm")
	sup.raise(context.Background(), "boundary", "boundary_exit", SeverityCritical, "outside")

	sup.publish(time.Now(), 0)

	select {
	case env := <-status.Inbox():
		var s Status
		require.NoError(t, fabric.DecodeJSON(env.Payload, &s))
		assert.Equal(t, LevelImmediateAction, s.Level)
		assert.Len(t, s.Alerts, 2)
	case <-time.After(time.Second):
		t.Fatal("expected a published safety status")
	}
}
