package emergency

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// HeartbeatWatchdog expects a system heartbeat within Config.HeartbeatTimeout
// of the last one seen; on timeout it invokes onTimeout exactly once per
// lapse. It is a direct generalization of the teacher gateway's
// per-robot command-timeout watchdog (internal/safety/timeout_watchdog.go):
// the same record-then-sweep ticker loop, narrowed from a map of robot IDs
// to the single system-wide heartbeat key spec §4.6 describes.
type HeartbeatWatchdog struct {
	mu        sync.Mutex
	lastSeen  time.Time
	timeout   time.Duration
	fired     bool
	onTimeout func()
	logger    *zap.Logger
}

// NewHeartbeatWatchdog builds a watchdog armed from the moment it is
// created (a process that never receives its first heartbeat within
// timeout is itself a timeout condition).
func NewHeartbeatWatchdog(timeout time.Duration, onTimeout func(), logger *zap.Logger) *HeartbeatWatchdog {
	return &HeartbeatWatchdog{lastSeen: time.Now(), timeout: timeout, onTimeout: onTimeout, logger: logger}
}

// Beat records a received heartbeat, re-arming the watchdog.
func (w *HeartbeatWatchdog) Beat() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = time.Now()
	w.fired = false
}

// Run ticks at checkInterval until done is closed, invoking onTimeout the
// first time the heartbeat goes stale (and not again until a Beat resets
// fired), so a sustained outage synthesizes exactly one trigger rather than
// one per tick.
func (w *HeartbeatWatchdog) Run(done <-chan struct{}, checkInterval time.Duration) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			w.check(now)
		}
	}
}

func (w *HeartbeatWatchdog) check(now time.Time) {
	w.mu.Lock()
	stale := now.Sub(w.lastSeen) > w.timeout
	alreadyFired := w.fired
	if stale {
		w.fired = true
	}
	w.mu.Unlock()

	if stale && !alreadyFired {
		w.logger.Warn("heartbeat timeout", zap.Duration("timeout", w.timeout))
		w.onTimeout()
	}
}
