// Package maintenance derives the blade-wear, battery-health, and
// slope/weather signals the safety supervisor folds into its hazard table,
// and owns the Lockout lease registry those signals feed into when a
// condition crosses a safety threshold (§4.8).
//
// LockoutRegistry is a direct generalization of the teacher gateway's
// per-robot exclusive operation lease (operation_lock.go): the same
// acquire/release/auto-expire pattern, applied to a safety-severity lease
// instead of a single-operator access lease.
package maintenance

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Severity mirrors the wider hazard-level vocabulary.
type Severity string

const (
	SeverityAttention Severity = "attention"
	SeverityCritical  Severity = "critical"
)

// Lockout is a maintenance-issued restriction: a severity, the subsystems
// it restricts, the override level required to clear it early, and an
// optional lease expiry, per §4.8's "Lockouts carry severity, affected-
// subsystem list, required override level, and optional expiry."
type Lockout struct {
	ID               string
	Reason           string
	Severity         Severity
	AffectedSystems  []string
	RequiredOverride string
	AcquiredAt       time.Time
	ExpiresAt        time.Time // zero means no expiry
}

// LockoutRegistry holds the set of currently active lockouts, leased with
// an expiry the way the teacher's OperationLock leases exclusive control:
// a lockout not refreshed or explicitly released clears itself.
type LockoutRegistry struct {
	mu       sync.RWMutex
	lockouts map[string]*Lockout
	logger   *zap.Logger
}

// NewLockoutRegistry builds an empty registry.
func NewLockoutRegistry(logger *zap.Logger) *LockoutRegistry {
	return &LockoutRegistry{lockouts: make(map[string]*Lockout), logger: logger}
}

// Acquire installs or refreshes a lockout under id, leased until ttl from
// now (ttl <= 0 means no expiry).
func (r *LockoutRegistry) Acquire(id, reason string, sev Severity, systems []string, override string, ttl time.Duration) Lockout {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := &Lockout{
		ID:               id,
		Reason:           reason,
		Severity:         sev,
		AffectedSystems:  systems,
		RequiredOverride: override,
		AcquiredAt:       time.Now(),
	}
	if ttl > 0 {
		l.ExpiresAt = l.AcquiredAt.Add(ttl)
	}
	r.lockouts[id] = l
	r.logger.Warn("maintenance lockout engaged",
		zap.String("id", id), zap.String("reason", reason), zap.String("severity", string(sev)))
	return *l
}

// Release clears a lockout early, e.g. once an operator supplies the
// required override.
func (r *LockoutRegistry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lockouts[id]; ok {
		delete(r.lockouts, id)
		r.logger.Info("maintenance lockout released", zap.String("id", id))
	}
}

// Active reports whether id currently has a live (unexpired) lockout.
func (r *LockoutRegistry) Active(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lockouts[id]
	if !ok {
		return false
	}
	return l.ExpiresAt.IsZero() || time.Now().Before(l.ExpiresAt)
}

// All returns a snapshot of every currently live lockout, expired entries
// excluded.
func (r *LockoutRegistry) All() []Lockout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now()
	out := make([]Lockout, 0, len(r.lockouts))
	for _, l := range r.lockouts {
		if l.ExpiresAt.IsZero() || now.Before(l.ExpiresAt) {
			out = append(out, *l)
		}
	}
	return out
}

// AnyCritical reports whether any currently active lockout is critical
// severity — per §4.8, that forces a coordinated emergency response.
func (r *LockoutRegistry) AnyCritical() bool {
	for _, l := range r.All() {
		if l.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// cleanupExpired removes leases whose expiry has passed. Call it
// periodically (StartCleanup) rather than relying solely on Active's
// lazy check, so All()'s snapshot stays small even with no readers.
func (r *LockoutRegistry) cleanupExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.lockouts {
		if !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt) {
			delete(r.lockouts, id)
		}
	}
}

// StartCleanup launches a background sweep of expired lockouts every
// interval, until ctx is done (the caller passes a context-derived done
// channel so it stops with the rest of the process).
func (r *LockoutRegistry) StartCleanup(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				r.cleanupExpired(now)
			}
		}
	}()
}
