package sensors

import "context"

// PublishFunc is how an ingress adapter hands a validated Reading to the
// fabric. Adapters never talk to the fabric directly — decoupling adapter
// lifetime from fabric lifetime keeps an adapter restart from requiring a
// fabric restart.
type PublishFunc func(Reading)

// Adapter is the uniform contract every physical sensor source implements:
// consume raw bytes or decoded frames, apply sanity filters, emit a typed
// reading at a configured cadence. An adapter may suspend during I/O but
// must never block the caller of Start — it runs its own loop in a
// goroutine and returns once that loop is launched.
type Adapter interface {
	// Name identifies the adapter for logging and health reporting, e.g.
	// "gnss_primary", "imu_main", "tof_front".
	Name() string

	// NominalPeriod is the expected interval between readings under normal
	// operation. An adapter that produces nothing within 2x this period is
	// flagged unhealthy by the Registry.
	NominalPeriod() Period

	// Start launches the adapter's ingestion loop. It must return promptly;
	// long-running work happens on a goroutine tied to ctx.
	Start(ctx context.Context, publish PublishFunc) error

	// Stop releases adapter resources. Idempotent.
	Stop() error
}

// Period is a named duration in milliseconds, kept as its own type so
// adapter cadences read clearly in config and logs.
type Period struct {
	Millis int64
}

func (p Period) Nanoseconds() int64 { return p.Millis * 1_000_000 }
