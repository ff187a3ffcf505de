package emergency

import (
	"context"
	"time"

	"github.com/lawnberry/safetycore/internal/fabric"
)

// Run wires the Controller onto the fabric: it listens for hazard alerts
// and the manual emergency-stop command as triggers, harvests actuator
// confirmations, drives the enforcement and auto-reset ticks, and runs the
// heartbeat watchdog, until ctx is canceled. The priority-3+ actions and
// watchdog-synthesized triggers run on context.Background(), so they finish
// under their own deadlines after cancellation; the priority-1/2 dispatches
// started from this loop (hazard, manual stop, enforcement) use ctx.
func (c *Controller) Run(ctx context.Context) {
	c.f.RegisterRequestHandler("emergency.acknowledge", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		who, _ := params["acknowledged_by"].(string)
		if err := c.Acknowledge(ctx, who); err != nil {
			return nil, err
		}
		return map[string]any{"acknowledged": true}, nil
	})
	c.f.RegisterRequestHandler("emergency.reset", func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		if err := c.Reset(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"active": false}, nil
	})

	hazard := c.f.Subscribe(fabric.TopicHazardAlert, fabric.QoS2)
	manualStop := c.f.Subscribe(fabric.TopicEmergencyStop, fabric.QoS2)
	motorStatus := c.f.Subscribe(fabric.TopicMotorStatus, fabric.QoS0)
	bladeStatus := c.f.Subscribe(fabric.TopicBladeStatus, fabric.QoS0)
	heartbeat := c.f.Subscribe(fabric.TopicHeartbeat, fabric.QoS0)
	defer hazard.Unsubscribe()
	defer manualStop.Unsubscribe()
	defer motorStatus.Unsubscribe()
	defer bladeStatus.Unsubscribe()
	defer heartbeat.Unsubscribe()

	watchdog := NewHeartbeatWatchdog(c.cfg.HeartbeatTimeout, func() {
		_ = c.Trigger(context.Background(), "heartbeat_timeout", "watchdog")
	}, c.logger)
	watchdogDone := make(chan struct{})
	go watchdog.Run(watchdogDone, c.cfg.HeartbeatTimeout/2)
	defer close(watchdogDone)

	enforceTicker := time.NewTicker(c.cfg.EnforcementInterval)
	autoResetTicker := time.NewTicker(5 * time.Second)
	defer enforceTicker.Stop()
	defer autoResetTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-hazard.Inbox():
			c.handleHazard(ctx, env)
		case env := <-manualStop.Inbox():
			c.handleManualStop(ctx, env)
		case env := <-motorStatus.Inbox():
			if statusConfirms(env.Payload, "stopped") {
				c.ConfirmMotorsStopped()
			}
		case env := <-bladeStatus.Inbox():
			if statusConfirms(env.Payload, "disabled") {
				c.ConfirmBladeDisabled()
			}
		case <-heartbeat.Inbox():
			watchdog.Beat()
		case <-enforceTicker.C:
			c.enforce(ctx)
		case now := <-autoResetTicker.C:
			c.autoReset(now)
		}
	}
}

type hazardPayload struct {
	Level                    string `json:"level"`
	ImmediateResponseRequired bool  `json:"immediate_response_required"`
	Description              string `json:"description"`
	Reason                   string `json:"reason"`
}

func (c *Controller) handleHazard(ctx context.Context, env fabric.Envelope) {
	var h hazardPayload
	if err := fabric.DecodeJSON(env.Payload, &h); err != nil {
		return
	}
	if h.Level != "critical" && !h.ImmediateResponseRequired {
		return
	}
	reason := h.Reason
	if reason == "" {
		reason = h.Description
	}
	if reason == "" {
		reason = "critical_hazard"
	}
	_ = c.Trigger(ctx, reason, "safety_supervisor")
}

type manualStopPayload struct {
	Reason      string `json:"reason"`
	TriggeredBy string `json:"triggered_by"`
}

func (c *Controller) handleManualStop(ctx context.Context, env fabric.Envelope) {
	var p manualStopPayload
	if err := fabric.DecodeJSON(env.Payload, &p); err != nil {
		return
	}
	reason := p.Reason
	if reason == "" {
		reason = "manual_emergency_stop"
	}
	_ = c.Trigger(ctx, reason, p.TriggeredBy)
}

// statusConfirms reports whether a status payload indicates the named
// confirmation, by either an explicit boolean flag or (for throttle-style
// status) a near-neutral PWM value, per §4.6: "confirmations ... indicated
// by explicit flags or PWM ~= 1500us neutral for throttle."
func statusConfirms(payload []byte, want string) bool {
	var p struct {
		Stopped       bool    `json:"stopped"`
		Disabled      bool    `json:"disabled"`
		ThrottlePWMus float64 `json:"throttle_pwm_us"`
	}
	if err := fabric.DecodeJSON(payload, &p); err != nil {
		return false
	}
	switch want {
	case "stopped":
		return p.Stopped || (p.ThrottlePWMus > 0 && abs(p.ThrottlePWMus-1500) <= 10)
	case "disabled":
		return p.Disabled
	default:
		return false
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
