package emergency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lawnberry/safetycore/internal/fabric"
)

// ErrNotAcknowledged is returned by Reset when the current emergency has
// not yet been acknowledged, per §4.6's "reset is only accepted after
// acknowledgment."
var ErrNotAcknowledged = errors.New("emergency: reset requires prior acknowledge")

// Controller owns EmergencyState exclusively; every other subsystem reads
// it only through Snapshot() or the fabric request handlers it registers.
// It mirrors the teacher gateway's EStopManager (estop.go) generalized
// from a per-robot map to the system's single emergency lifecycle, and its
// enforcement loop is the same ticker-driven re-issue pattern as
// timeout_watchdog.go's checkTimeouts sweep.
type Controller struct {
	mu    sync.Mutex
	state State

	f      *fabric.Fabric
	logger *zap.Logger
	cfg    Config
	m      metrics

	breakers map[ActionID]*gobreaker.CircuitBreaker
}

// New builds a Controller bound to fabric f, registering metrics against
// reg (nil skips registration, as in fabric.New).
func New(f *fabric.Fabric, logger *zap.Logger, cfg Config, reg prometheus.Registerer) *Controller {
	c := &Controller{
		f:             f,
		logger:        logger,
		cfg:           cfg,
		m:             newMetrics(reg),
		breakers: make(map[ActionID]*gobreaker.CircuitBreaker),
	}
	for _, spec := range actionTable {
		spec := spec
		c.breakers[spec.ID] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(spec.ID),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					c.logger.Error("emergency action circuit breaker tripped, promoting response level",
						zap.String("action", name))
					c.promoteResponseLevel(spec)
				}
			},
		})
	}
	return c
}

// Snapshot returns a copy of the current state for publication or display.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger activates an emergency (idempotent for the same already-active
// emergency: spec's testable property that repeated calls don't re-dispatch
// priority-1/2 actions for the same trigger instant). Priority 1 and 2 run
// concurrently; their combined completion is the 100ms contract the
// caller's test observes. Lower priorities continue in the background so
// Trigger itself returns promptly.
func (c *Controller) Trigger(ctx context.Context, reason, triggeredBy string) error {
	c.mu.Lock()
	alreadyActive := c.state.Active
	if !alreadyActive {
		c.state = State{
			Active:      true,
			Reason:      reason,
			TriggeredBy: triggeredBy,
			TriggeredAt: time.Now(),
		}
	}
	c.mu.Unlock()

	if alreadyActive {
		return nil
	}
	c.m.emergencyCount.Inc()
	c.publishState()

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range actionTable {
		if spec.Priority > 2 {
			continue
		}
		spec := spec
		g.Go(func() error {
			c.dispatch(gctx, spec, reason)
			return nil
		})
	}
	_ = g.Wait()

	go c.dispatchRemaining(context.Background(), reason)

	return nil
}

// dispatchRemaining runs priorities 3, 4, and 10 sequentially, each
// awaited before the next begins (§5's ordering guarantee for the
// emergency controller).
func (c *Controller) dispatchRemaining(ctx context.Context, reason string) {
	for _, spec := range actionTable {
		if spec.Priority <= 2 {
			continue
		}
		c.dispatch(ctx, spec, reason)
	}
}

func (c *Controller) dispatch(ctx context.Context, spec ActionSpec, reason string) {
	breaker := c.breakers[spec.ID]
	_, _ = breaker.Execute(func() (interface{}, error) {
		outcome := runAction(ctx, c.f, spec, reason)
		c.m.actionLatencyMS.Observe(outcome.ElapsedMS)
		c.recordOutcome(outcome)
		if !outcome.Success {
			c.m.failedResponses.Inc()
			return nil, errors.New(outcome.Error)
		}
		return nil, nil
	})
}

func (c *Controller) recordOutcome(o ActionOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ResponseHistory = append(c.state.ResponseHistory, o)
}

// promoteResponseLevel is invoked by a tripped circuit breaker (3
// consecutive missed deadlines on one action, §7). It re-dispatches the
// alert-all action at an escalated reason so the supervisor's consolidated
// status reflects a coordination failure even if the underlying actuator
// keeps failing.
func (c *Controller) promoteResponseLevel(spec ActionSpec) {
	reason := "coordination_failure:" + string(spec.ID)
	payload, err := fabric.EncodeJSON(map[string]any{"level": "critical", "reason": reason})
	if err != nil {
		return
	}
	c.f.Publish(fabric.TopicHazardAlert, payload, fabric.QoS2, false, true)
}

// publishState republishes the current EmergencyState on
// fabric.TopicEmergencyState, the only channel other subsystems (the
// telemetry aggregator, an external operator console) learn of an
// emergency lifecycle transition through.
func (c *Controller) publishState() {
	snapshot := c.Snapshot()
	payload, err := fabric.EncodeJSON(snapshot)
	if err != nil {
		return
	}
	c.f.Publish(fabric.TopicEmergencyState, payload, fabric.QoS1, true, snapshot.Active)
}

// ConfirmMotorsStopped and ConfirmBladeDisabled are called by the status
// listeners in Run when the corresponding actuator status topic reports
// the confirmed state, per §4.6's "confirmations are harvested from
// motor/blade status topics."
func (c *Controller) ConfirmMotorsStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MotorsConfirmedStopped = true
}

func (c *Controller) ConfirmBladeDisabled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.BladeConfirmedDisabled = true
}

// Acknowledge transitions an active emergency to acknowledged.
func (c *Controller) Acknowledge(_ context.Context, _ string) error {
	c.mu.Lock()
	if !c.state.Active {
		c.mu.Unlock()
		return errors.New("emergency: no active emergency to acknowledge")
	}
	c.state.Acknowledged = true
	c.mu.Unlock()
	c.publishState()
	return nil
}

// Reset clears an acknowledged emergency back to inactive. It is rejected
// if the emergency was never acknowledged.
func (c *Controller) Reset(_ context.Context) error {
	c.mu.Lock()
	if c.state.Active && !c.state.Acknowledged {
		c.mu.Unlock()
		return ErrNotAcknowledged
	}
	c.state = State{}
	c.mu.Unlock()
	c.publishState()
	return nil
}

// autoReset clears an emergency that has gone unacknowledged past
// Config.AutoReset, per §3's "5-minute auto-timeout transitions
// active->cleared if never acknowledged."
func (c *Controller) autoReset(now time.Time) {
	c.mu.Lock()
	shouldReset := c.state.Active && !c.state.Acknowledged && now.Sub(c.state.TriggeredAt) > c.cfg.AutoReset
	reason := c.state.Reason
	if shouldReset {
		c.state = State{}
	}
	c.mu.Unlock()
	if shouldReset {
		c.logger.Warn("emergency auto-reset after unacknowledged timeout", zap.String("reason", reason))
		c.publishState()
	}
}

// enforce re-issues stop-motors/disable-blade on the 1Hz enforcement tick
// while active, not acknowledged, and not yet confirmed, per §4.6.
func (c *Controller) enforce(ctx context.Context) {
	c.mu.Lock()
	active := c.state.Active
	acknowledged := c.state.Acknowledged
	motorsConfirmed := c.state.MotorsConfirmedStopped
	bladeConfirmed := c.state.BladeConfirmedDisabled
	reason := c.state.Reason
	c.mu.Unlock()

	if !active || acknowledged {
		return
	}
	if !motorsConfirmed {
		c.dispatch(ctx, actionTable[0], reason)
	}
	if !bladeConfirmed {
		c.dispatch(ctx, actionTable[1], reason)
	}
}
