// Package fabric implements the in-process, MQTT-semantics message fabric
// that every other subsystem shares state over: topic-addressed pub/sub
// with QoS, wildcard subscriptions, a per-topic policy table, rate limits,
// and bounded per-subscriber queues with back-pressure.
package fabric

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Failure kinds a Publish can return, per the external contract: publish
// never panics or blocks indefinitely, it returns one of these.
var (
	ErrDisconnected  = errors.New("fabric: external broker disconnected")
	ErrQueueFull     = errors.New("fabric: publish queue full")
	ErrRateLimited   = errors.New("fabric: rate limit exceeded")
	ErrInvalidPayload = errors.New("fabric: payload failed topic validator")
)

// Result reports the outcome of a successful publish.
type Result struct {
	Topic     string
	MessageID string
	Delivered int // number of subscribers the envelope was handed to
}

// Subscription is a live subscriber: a bounded inbox plus the pattern it
// was registered under. Callers range over Inbox() or select on it.
type Subscription struct {
	ID      string
	Pattern string
	qos     QoS
	inbox   chan Envelope
	dropped prometheus.Counter
	fabric  *Fabric
}

// Inbox returns the receive-only channel of delivered envelopes.
func (s *Subscription) Inbox() <-chan Envelope { return s.inbox }

// Unsubscribe removes the subscription and closes its inbox.
func (s *Subscription) Unsubscribe() {
	s.fabric.unsubscribe(s)
}

// defaultInboxSize bounds a subscriber's queue absent an explicit override.
const defaultInboxSize = 256

// Fabric is the process-local pub/sub hub. It holds no transport of its
// own — an optional MQTT bridge (mqttbridge.go) mirrors publishes out to an
// external broker without in-process subscribers needing to know it exists.
type Fabric struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription // by subscription ID
	byPattern     map[string][]*Subscription
	retained      map[string]Envelope
	policies      *PolicyTable
	limiter       *rateLimiter
	requestMu     sync.Mutex
	pending       map[string]chan Envelope // correlation ID -> response waiter
	handlers      map[string]RequestHandler
	logger        *zap.Logger

	published    prometheus.Counter
	dropped      prometheus.Counter
	rateLimited  prometheus.Counter
	failed       prometheus.Counter
}

// RequestHandler answers a single command bound via RegisterRequestHandler.
type RequestHandler func(ctx context.Context, params map[string]any) (map[string]any, error)

// New creates a Fabric with the given policy table (may be empty) and
// registers its counters against reg. Passing a nil reg (tests, or a
// process that doesn't mount a metrics exporter) skips registration.
func New(policies *PolicyTable, logger *zap.Logger, reg prometheus.Registerer) *Fabric {
	if policies == nil {
		policies = NewPolicyTable()
	}
	f := &Fabric{
		subscriptions: make(map[string]*Subscription),
		byPattern:     make(map[string][]*Subscription),
		retained:      make(map[string]Envelope),
		policies:      policies,
		limiter:       newRateLimiter(),
		pending:       make(map[string]chan Envelope),
		handlers:      make(map[string]RequestHandler),
		logger:        logger,

		published:   prometheus.NewCounter(prometheus.CounterOpts{Name: "fabric_published_total", Help: "envelopes successfully published"}),
		dropped:     prometheus.NewCounter(prometheus.CounterOpts{Name: "fabric_dropped_total", Help: "envelopes dropped from a full subscriber queue"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{Name: "fabric_rate_limited_total", Help: "publishes rejected by a topic rate limit"}),
		failed:      prometheus.NewCounter(prometheus.CounterOpts{Name: "fabric_failed_total", Help: "publishes that failed outright"}),
	}
	if reg != nil {
		reg.MustRegister(f.published, f.dropped, f.rateLimited, f.failed)
	}
	return f
}

// Publish encodes and fans payload out to every matching subscriber. qos
// and retain are the caller's request; if a policy matches the topic its
// recommended QoS/retain/validator/rate-limit apply on top. critical
// publishes bypass the rate limit, per §4.1.
func (f *Fabric) Publish(topic string, payload []byte, qos QoS, retain bool, critical bool) (Result, error) {
	policy, hasPolicy := f.policies.Lookup(topic)
	if hasPolicy {
		if policy.QoS > qos {
			qos = policy.QoS
		}
		if policy.Validate != nil {
			if err := policy.Validate(payload); err != nil {
				f.failed.Inc()
				return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		retain = retain || policy.Retain
		rate := policy.RateLimitPerMin
		if !critical && !f.limiter.allow(topic, rate) {
			f.rateLimited.Inc()
			return Result{}, ErrRateLimited
		}
	}

	env := NewEnvelope(topic, payload, qos, retain)
	env.Critical = critical

	f.mu.Lock()
	if retain {
		f.retained[topic] = env
	}
	subs := f.matchingSubscribers(topic)
	f.mu.Unlock()

	delivered := 0
	for _, sub := range subs {
		if f.deliver(sub, env) {
			delivered++
		}
	}
	f.published.Inc()
	return Result{Topic: topic, MessageID: env.ID, Delivered: delivered}, nil
}

// matchingSubscribers must be called with mu held.
func (f *Fabric) matchingSubscribers(topic string) []*Subscription {
	var out []*Subscription
	for _, sub := range f.subscriptions {
		if MatchTopic(sub.Pattern, topic) {
			out = append(out, sub)
		}
	}
	return out
}

// deliver attempts a non-blocking send; on a full queue it drops the oldest
// buffered envelope (unless it was critical) to make room, per §4.1's
// back-pressure contract, and otherwise drops the new envelope. Either drop
// is counted.
func (f *Fabric) deliver(sub *Subscription, env Envelope) bool {
	select {
	case sub.inbox <- env:
		return true
	default:
	}

	select {
	case old := <-sub.inbox:
		if old.Critical && !env.Critical {
			// Put the critical one back; drop the new non-critical envelope instead.
			select {
			case sub.inbox <- old:
			default:
			}
			sub.dropped.Inc()
			f.dropped.Inc()
			return false
		}
		sub.dropped.Inc()
		f.dropped.Inc()
	default:
	}

	select {
	case sub.inbox <- env:
		return true
	default:
		sub.dropped.Inc()
		f.dropped.Inc()
		return false
	}
}

// Subscribe registers pattern with a bounded inbox and immediately delivers
// any retained message whose topic matches.
func (f *Fabric) Subscribe(pattern string, qos QoS) *Subscription {
	return f.SubscribeBuffered(pattern, qos, defaultInboxSize)
}

// SubscribeBuffered is Subscribe with an explicit inbox capacity.
func (f *Fabric) SubscribeBuffered(pattern string, qos QoS, bufferSize int) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		Pattern: pattern,
		qos:     qos,
		inbox:   make(chan Envelope, bufferSize),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{Name: "fabric_subscriber_dropped", Help: "dropped envelopes for one subscriber"}),
		fabric:  f,
	}

	f.mu.Lock()
	f.subscriptions[sub.ID] = sub
	f.byPattern[pattern] = append(f.byPattern[pattern], sub)
	var retainedMatches []Envelope
	for topic, env := range f.retained {
		if MatchTopic(pattern, topic) {
			retainedMatches = append(retainedMatches, env)
		}
	}
	f.mu.Unlock()

	for _, env := range retainedMatches {
		f.deliver(sub, env)
	}
	return sub
}

func (f *Fabric) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscriptions, sub.ID)
	peers := f.byPattern[sub.Pattern]
	for i, s := range peers {
		if s.ID == sub.ID {
			f.byPattern[sub.Pattern] = append(peers[:i], peers[i+1:]...)
			break
		}
	}
	close(sub.inbox)
}

// SubscriberCount reports how many live subscriptions exist, for tests and
// diagnostics.
func (f *Fabric) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscriptions)
}

// DefaultTimestamp returns the current wall-clock time, so tests can stamp
// envelopes without reaching into time.Now() directly; production code uses
// NewEnvelope.
func DefaultTimestamp() time.Time { return time.Now() }
