package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// health tracks the last-reading time for one adapter so the Registry can
// flag it unhealthy after 2x its nominal period with no reading.
type health struct {
	lastReading time.Time
	period      time.Duration
	healthy     bool
}

// Registry owns the set of active ingress adapters and tracks their health.
// Adapters register their nominal period at Add time; the Registry's sweep
// loop compares it against time-since-last-reading to flag degradation,
// reported through Healthy and AllHealthy (§4.2: "an adapter that fails to
// produce readings within 2x nominal period is flagged unhealthy").
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	health   map[string]*health
	logger   *zap.Logger
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		health:   make(map[string]*health),
		logger:   logger,
	}
}

// Add registers an adapter and starts its ingestion loop. publish wraps the
// caller's sink so every reading also updates the adapter's health record.
func (r *Registry) Add(ctx context.Context, a Adapter, publish PublishFunc) error {
	r.mu.Lock()
	if _, exists := r.adapters[a.Name()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("adapter already registered: %s", a.Name())
	}
	h := &health{period: time.Duration(a.NominalPeriod().Nanoseconds()), healthy: true, lastReading: time.Now()}
	r.adapters[a.Name()] = a
	r.health[a.Name()] = h
	r.mu.Unlock()

	wrapped := func(reading Reading) {
		r.mu.Lock()
		h.lastReading = time.Now()
		h.healthy = true
		r.mu.Unlock()
		publish(reading)
	}

	if err := a.Start(ctx, wrapped); err != nil {
		r.mu.Lock()
		delete(r.adapters, a.Name())
		delete(r.health, a.Name())
		r.mu.Unlock()
		return fmt.Errorf("starting adapter %s: %w", a.Name(), err)
	}
	r.logger.Info("sensor adapter started", zap.String("adapter", a.Name()))
	return nil
}

// Remove stops and deregisters an adapter by name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	a, ok := r.adapters[name]
	if ok {
		delete(r.adapters, name)
		delete(r.health, name)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return a.Stop()
}

// SweepHealth recomputes healthy flags against the current time; call it
// periodically (the ingress health loop) rather than on every reading so a
// genuinely idle adapter gets flagged even with no new Add/publish traffic.
func (r *Registry) SweepHealth(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, h := range r.health {
		wasHealthy := h.healthy
		h.healthy = now.Sub(h.lastReading) <= 2*h.period
		if wasHealthy && !h.healthy {
			r.logger.Warn("sensor adapter unhealthy", zap.String("adapter", name),
				zap.Duration("since_last_reading", now.Sub(h.lastReading)))
		}
	}
}

// Healthy reports whether the named adapter has produced a reading within
// its unhealthy window.
func (r *Registry) Healthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.health[name]
	if !ok {
		return false
	}
	return h.healthy
}

// AllHealthy reports a snapshot of every adapter's health by name.
func (r *Registry) AllHealthy() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]bool, len(r.health))
	for name, h := range r.health {
		result[name] = h.healthy
	}
	return result
}

// Names lists the currently registered adapters.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// StopAll stops every registered adapter, collecting (not short-circuiting
// on) individual errors.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	adapters := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.mu.Unlock()

	var firstErr error
	for _, a := range adapters {
		if err := a.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
