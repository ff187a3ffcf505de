package fabric

import "sort"

// TopicPolicy is the per-topic-pattern contract looked up by longest-prefix
// match on every publish: recommended QoS, whether to retain, a rate limit
// in messages/minute, and an optional payload validator. This concretizes
// the richer per-topic envelope validation the original Python service's
// enhanced message-protocols module performed ad hoc per consumer.
type TopicPolicy struct {
	Pattern         string
	QoS             QoS
	Retain          bool
	RateLimitPerMin int // 0 = unlimited
	Validate        func(payload []byte) error
}

// PolicyTable resolves a concrete topic to its governing TopicPolicy by
// longest-prefix pattern match, falling back to a zero-value (unlimited,
// QoS 0) policy when nothing matches.
type PolicyTable struct {
	policies []TopicPolicy // kept sorted by descending specificity
}

// NewPolicyTable builds a table from the given policies.
func NewPolicyTable(policies ...TopicPolicy) *PolicyTable {
	t := &PolicyTable{policies: append([]TopicPolicy(nil), policies...)}
	t.resort()
	return t
}

// Set adds or replaces the policy for a pattern.
func (t *PolicyTable) Set(p TopicPolicy) {
	for i, existing := range t.policies {
		if existing.Pattern == p.Pattern {
			t.policies[i] = p
			t.resort()
			return
		}
	}
	t.policies = append(t.policies, p)
	t.resort()
}

func (t *PolicyTable) resort() {
	sort.SliceStable(t.policies, func(i, j int) bool {
		return specificity(t.policies[i].Pattern) > specificity(t.policies[j].Pattern)
	})
}

// Lookup returns the most specific policy matching topic, or ok=false if
// none do — callers should treat a miss as the permissive default (QoS 0,
// no rate limit, no validator).
func (t *PolicyTable) Lookup(topic string) (TopicPolicy, bool) {
	for _, p := range t.policies {
		if MatchTopic(p.Pattern, topic) {
			return p, true
		}
	}
	return TopicPolicy{}, false
}

// DefaultPolicies is the process-wide policy table cmd/safetycore/main.go
// installs: high-rate raw sensor streams are rate-limited generously and
// not retained. The hazard alert, emergency-stop and actuator stop/disable/
// shutdown commands get QoS 2 without retain; emergency state gets QoS 2
// with retain; safety status, boundary violations and lockouts get QoS 1
// with retain, so a late subscriber still observes the latest state. None
// of these has a rate limit; the obstacle alert is QoS 2 and limited to
// 2400/min.
func DefaultPolicies() *PolicyTable {
	return NewPolicyTable(
		TopicPolicy{Pattern: "sensors.#", QoS: QoS0, RateLimitPerMin: 6000},
		TopicPolicy{Pattern: "vision.#", QoS: QoS0, RateLimitPerMin: 1200},
		TopicPolicy{Pattern: "navigation.pose.estimate", QoS: QoS0, Retain: true, RateLimitPerMin: 1200},
		TopicPolicy{Pattern: "safety.pose.shortcut", QoS: QoS0, Retain: true, RateLimitPerMin: 2400},
		TopicPolicy{Pattern: "safety.obstacles.map", QoS: QoS0, Retain: true, RateLimitPerMin: 1200},
		TopicPolicy{Pattern: "safety.obstacles.alert", QoS: QoS2, RateLimitPerMin: 2400},
		TopicPolicy{Pattern: "safety.hazard.alert", QoS: QoS2, Retain: false},
		TopicPolicy{Pattern: "safety.status", QoS: QoS1, Retain: true},
		TopicPolicy{Pattern: "safety.boundary.violation", QoS: QoS1, Retain: true},
		TopicPolicy{Pattern: "safety.emergency_stop", QoS: QoS2},
		TopicPolicy{Pattern: "emergency.state", QoS: QoS2, Retain: true},
		TopicPolicy{Pattern: "commands.motors.stop", QoS: QoS2},
		TopicPolicy{Pattern: "commands.blade.disable", QoS: QoS2},
		TopicPolicy{Pattern: "commands.navigation.safe_position", QoS: QoS1},
		TopicPolicy{Pattern: "commands.system.shutdown", QoS: QoS2},
		TopicPolicy{Pattern: "maintenance.lockout", QoS: QoS1, Retain: true},
		TopicPolicy{Pattern: "system.heartbeat", QoS: QoS0, RateLimitPerMin: 60},
		TopicPolicy{Pattern: "system.performance_metrics", QoS: QoS0, Retain: true, RateLimitPerMin: 120},
		TopicPolicy{Pattern: "system.telemetry.snapshot", QoS: QoS0, Retain: true, RateLimitPerMin: 600},
	)
}
