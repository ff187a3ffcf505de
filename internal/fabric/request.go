package fabric

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RegisterRequestHandler binds handler as the single responder for command.
// A second registration for the same command replaces the first — the
// contract is "bound to a single subscriber per command name" (§4.1), so
// callers are expected to register once at startup.
func (f *Fabric) RegisterRequestHandler(command string, handler RequestHandler) {
	f.requestMu.Lock()
	defer f.requestMu.Unlock()
	f.handlers[command] = handler
}

// Dispatch runs the registered handler for command, if any, and returns its
// result to the caller; nothing is published.
func (f *Fabric) Dispatch(ctx context.Context, command string, params map[string]any) (map[string]any, error) {
	f.requestMu.Lock()
	handler, ok := f.handlers[command]
	f.requestMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fabric: no handler registered for command %q", command)
	}
	return handler(ctx, params)
}

// Request calls Dispatch for command in process, with the handler's context
// bounded by timeout (when positive) and by ctx. target is not used: no
// RequestMessage is published, no correlation ID is assigned, and the
// response is the handler's return value rather than a message on a topic.
func (f *Fabric) Request(ctx context.Context, target, command string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := f.Dispatch(reqCtx, command, params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EncodeRequest serializes a RequestMessage for transports (e.g. the MQTT
// bridge) that need bytes on the wire rather than an in-process call.
func EncodeRequest(correlationID, command string, params map[string]any) ([]byte, error) {
	msg := RequestMessage{Command: command, Params: params}
	return EncodeJSON(map[string]any{"correlation_id": correlationID, "request": msg})
}

// newCorrelationID generates a fresh correlation ID for a request/response
// round trip.
func newCorrelationID() string { return uuid.NewString() }
