package emergency

import (
	"context"
	"time"

	"github.com/lawnberry/safetycore/internal/fabric"
)

// dispatchFunc runs one action table entry, publishing its command onto the
// fabric and returning once the publish is done (the "completion" the
// deadline measures — actual actuator confirmation arrives later on a
// status topic and is tracked separately by the enforcement loop).
type dispatchFunc func(ctx context.Context, f *fabric.Fabric, reason string) error

var dispatchers = map[ActionID]dispatchFunc{
	ActionStopMotors:     dispatchStopMotors,
	ActionDisableBlade:   dispatchDisableBlade,
	ActionAlertAll:       dispatchAlertAll,
	ActionSafePosition:   dispatchSafePosition,
	ActionSystemShutdown: dispatchSystemShutdown,
}

func dispatchStopMotors(_ context.Context, f *fabric.Fabric, reason string) error {
	payload, err := fabric.EncodeJSON(map[string]any{"command": "stop", "reason": reason})
	if err != nil {
		return err
	}
	_, err = f.Publish(fabric.TopicMotorStop, payload, fabric.QoS1, false, true)
	return err
}

func dispatchDisableBlade(_ context.Context, f *fabric.Fabric, reason string) error {
	payload, err := fabric.EncodeJSON(map[string]any{"command": "disable", "reason": reason})
	if err != nil {
		return err
	}
	_, err = f.Publish(fabric.TopicBladeDisable, payload, fabric.QoS1, false, true)
	return err
}

func dispatchAlertAll(_ context.Context, f *fabric.Fabric, reason string) error {
	payload, err := fabric.EncodeJSON(map[string]any{"level": "critical", "reason": reason})
	if err != nil {
		return err
	}
	_, err = f.Publish(fabric.TopicHazardAlert, payload, fabric.QoS2, false, true)
	return err
}

func dispatchSafePosition(_ context.Context, f *fabric.Fabric, reason string) error {
	payload, err := fabric.EncodeJSON(map[string]any{"command": "safe_position", "reason": reason})
	if err != nil {
		return err
	}
	_, err = f.Publish(fabric.TopicSafePosition, payload, fabric.QoS1, false, true)
	return err
}

func dispatchSystemShutdown(_ context.Context, f *fabric.Fabric, reason string) error {
	payload, err := fabric.EncodeJSON(map[string]any{"command": "shutdown", "reason": reason, "grace_s": 30})
	if err != nil {
		return err
	}
	_, err = f.Publish(fabric.TopicSystemShutdown, payload, fabric.QoS1, false, true)
	return err
}

// runAction executes one action against its own deadline, returning the
// outcome record regardless of success or timeout — a missed deadline is a
// coordination failure (§7), not a panic or a propagated error.
func runAction(ctx context.Context, f *fabric.Fabric, spec ActionSpec, reason string) ActionOutcome {
	start := time.Now()
	actionCtx, cancel := context.WithTimeout(ctx, spec.Deadline)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- dispatchers[spec.ID](actionCtx, f, reason) }()

	var err error
	select {
	case err = <-done:
	case <-actionCtx.Done():
		err = actionCtx.Err()
	}

	outcome := ActionOutcome{Action: spec.ID, At: start, ElapsedMS: float64(time.Since(start).Microseconds()) / 1000.0}
	if err != nil {
		outcome.Error = err.Error()
	} else {
		outcome.Success = true
	}
	return outcome
}
