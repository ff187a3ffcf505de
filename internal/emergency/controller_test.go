package emergency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lawnberry/safetycore/internal/fabric"
)

func newTestController(t *testing.T, cfg Config) (*Controller, *fabric.Fabric) {
	t.Helper()
	f := fabric.New(fabric.NewPolicyTable(), zap.NewNop(), nil)
	return New(f, zap.NewNop(), cfg, nil), f
}

func TestTrigger_DispatchesPriorityOneAndTwoWithinDeadline(t *testing.T) {
	c, f := newTestController(t, DefaultConfig())
	motorStop := f.Subscribe(fabric.TopicMotorStop, fabric.QoS1)
	bladeDisable := f.Subscribe(fabric.TopicBladeDisable, fabric.QoS1)
	defer motorStop.Unsubscribe()
	defer bladeDisable.Unsubscribe()

	start := time.Now()
	err := c.Trigger(context.Background(), "obstacle_collision_imminent", "obstacle_service")
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond, "priority 1/2 actions must complete within the 100ms contract")

	select {
	case <-motorStop.Inbox():
	case <-time.After(time.Second):
		t.Fatal("expected a motor stop command")
	}
	select {
	case <-bladeDisable.Inbox():
	case <-time.After(time.Second):
		t.Fatal("expected a blade disable command")
	}

	snap := c.Snapshot()
	assert.True(t, snap.Active)
	assert.Equal(t, "obstacle_collision_imminent", snap.Reason)
}

func TestTrigger_IsIdempotentWhileActive(t *testing.T) {
	c, _ := newTestController(t, DefaultConfig())
	require.NoError(t, c.Trigger(context.Background(), "first_reason", "a"))
	require.NoError(t, c.Trigger(context.Background(), "second_reason", "b"))

	snap := c.Snapshot()
	assert.Equal(t, "first_reason", snap.Reason, "a second trigger while already active must not overwrite the original reason")
}

func TestAcknowledgeThenReset(t *testing.T) {
	c, _ := newTestController(t, DefaultConfig())
	require.NoError(t, c.Trigger(context.Background(), "manual_emergency_stop", "operator"))

	err := c.Reset(context.Background())
	assert.ErrorIs(t, err, ErrNotAcknowledged)

	require.NoError(t, c.Acknowledge(context.Background(), "operator"))
	require.NoError(t, c.Reset(context.Background()))

	assert.False(t, c.Snapshot().Active)
}

func TestAutoResetClearsUnacknowledgedEmergencyPastTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoReset = 10 * time.Millisecond
	c, _ := newTestController(t, cfg)
	require.NoError(t, c.Trigger(context.Background(), "heartbeat_timeout", "watchdog"))

	c.autoReset(time.Now().Add(20 * time.Millisecond))

	assert.False(t, c.Snapshot().Active)
}

func TestEnforce_RedispatchesUntilConfirmed(t *testing.T) {
	c, f := newTestController(t, DefaultConfig())
	require.NoError(t, c.Trigger(context.Background(), "test", "t"))

	motorStop := f.Subscribe(fabric.TopicMotorStop, fabric.QoS1)
	defer motorStop.Unsubscribe()

	c.enforce(context.Background())
	select {
	case <-motorStop.Inbox():
	case <-time.After(time.Second):
		t.Fatal("enforce should re-issue stop_motors while unconfirmed")
	}

	c.ConfirmMotorsStopped()
	c.ConfirmBladeDisabled()

	drain(motorStop.Inbox())
	c.enforce(context.Background())
	select {
	case <-motorStop.Inbox():
		t.Fatal("enforce must not re-issue stop_motors once confirmed")
	case <-time.After(50 * time.Millisecond):
	}
}

func drain(ch <-chan fabric.Envelope) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestHeartbeatWatchdog_FiresOnceThenRearms(t *testing.T) {
	fired := make(chan struct{}, 10)
	w := NewHeartbeatWatchdog(20*time.Millisecond, func() { fired <- struct{}{} }, zap.NewNop())

	w.check(time.Now().Add(30 * time.Millisecond))
	w.check(time.Now().Add(31 * time.Millisecond))
	assert.Len(t, fired, 1, "a sustained outage must fire onTimeout exactly once")

	w.Beat()
	w.check(time.Now().Add(31 * time.Millisecond).Add(30 * time.Millisecond))
	assert.Len(t, fired, 2, "a fresh Beat must rearm the watchdog for the next lapse")
}
