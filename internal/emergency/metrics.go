package emergency

import "github.com/prometheus/client_golang/prometheus"

// metrics are the operational counters §7 requires on the performance
// metrics topic: how many emergencies fired, how many individual action
// dispatches failed their deadline, and the dispatch latency distribution.
type metrics struct {
	emergencyCount    prometheus.Counter
	failedResponses   prometheus.Counter
	actionLatencyMS   prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) metrics {
	m := metrics{
		emergencyCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emergency_triggered_total", Help: "number of emergency stops triggered"}),
		failedResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emergency_failed_responses_total", Help: "action dispatches that returned an error or missed their deadline"}),
		actionLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "emergency_action_latency_ms", Help: "emergency action dispatch latency",
			Buckets: []float64{5, 10, 25, 50, 75, 100, 150, 250, 500}}),
	}
	if reg != nil {
		reg.MustRegister(m.emergencyCount, m.failedResponses, m.actionLatencyMS)
	}
	return m
}
