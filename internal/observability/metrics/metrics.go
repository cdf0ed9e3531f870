package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for call and model-backend flows.
// All observe methods are nil-safe so wiring metrics stays optional in tests.
type CallMetrics struct {
	callsStarted *prometheus.CounterVec
	callsEnded   *prometheus.CounterVec
	turnsTotal   *prometheus.CounterVec
	leadsTotal   prometheus.Counter
	llmLatency   *prometheus.HistogramVec
	llmTokens    *prometheus.CounterVec
	callDuration prometheus.Histogram
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "conversation",
			Name:      "calls_started_total",
			Help:      "Total calls started",
		}, []string{"mode"}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "conversation",
			Name:      "calls_ended_total",
			Help:      "Total calls ended",
		}, []string{"reason"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total conversation turns processed",
		}, []string{"status"}),
		leadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "conversation",
			Name:      "leads_total",
			Help:      "Total conversations classified as leads",
		}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceagent",
			Subsystem: "conversation",
			Name:      "llm_latency_seconds",
			Help:      "Latency of language-model completions",
			// Focus on sub-10s buckets with a few higher ones for visibility.
			Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
		}, []string{"model", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "conversation",
			Name:      "llm_tokens_total",
			Help:      "Tokens used by the language model",
		}, []string{"model", "type"}), // type: input, output, total
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voiceagent",
			Subsystem: "conversation",
			Name:      "call_duration_seconds",
			Help:      "Duration of finished calls",
			Buckets:   []float64{15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsStarted, m.callsEnded, m.turnsTotal, m.leadsTotal,
		m.llmLatency, m.llmTokens, m.callDuration)
	return m
}

func (m *CallMetrics) ObserveCallStarted(mode string) {
	if m == nil {
		return
	}
	m.callsStarted.WithLabelValues(mode).Inc()
}

func (m *CallMetrics) ObserveCallEnded(reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.callsEnded.WithLabelValues(reason).Inc()
	m.callDuration.Observe(durationSeconds)
}

func (m *CallMetrics) ObserveTurn(status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(status).Inc()
}

func (m *CallMetrics) ObserveLead() {
	if m == nil {
		return
	}
	m.leadsTotal.Inc()
}

func (m *CallMetrics) ObserveLLMLatency(model, status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(model, status).Observe(seconds)
}

func (m *CallMetrics) ObserveLLMTokens(model string, usage TokenCounts) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues(model, "input").Add(float64(usage.Input))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(usage.Output))
	m.llmTokens.WithLabelValues(model, "total").Add(float64(usage.Total))
}

// TokenCounts mirrors a backend's token usage report.
type TokenCounts struct {
	Input  int
	Output int
	Total  int
}
