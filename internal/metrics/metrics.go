package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the quiz counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheFlushes     *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	ProviderTokens   prometheus.Counter
	Answers          *prometheus.CounterVec
}

// New creates the counters and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordquiz",
			Name:      "cache_hits_total",
			Help:      "Content cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordquiz",
			Name:      "cache_misses_total",
			Help:      "Content cache misses by cache name.",
		}, []string{"cache"}),
		CacheFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordquiz",
			Name:      "cache_flushes_total",
			Help:      "Content cache flushes by cache name and result.",
		}, []string{"cache", "result"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordquiz",
			Name:      "provider_calls_total",
			Help:      "Content provider requests by operation.",
		}, []string{"operation"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordquiz",
			Name:      "provider_failures_total",
			Help:      "Content provider requests that failed after retries.",
		}, []string{"operation"}),
		ProviderTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wordquiz",
			Name:      "provider_tokens_total",
			Help:      "Tokens consumed by the content provider.",
		}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordquiz",
			Name:      "answers_total",
			Help:      "Graded answers by item kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheHits,
			m.CacheMisses,
			m.CacheFlushes,
			m.ProviderCalls,
			m.ProviderFailures,
			m.ProviderTokens,
			m.Answers,
		)
	}
	return m
}

func (m *Metrics) CacheHit(cache string) {
	if m != nil {
		m.CacheHits.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) CacheMiss(cache string) {
	if m != nil {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) CacheFlush(cache string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CacheFlushes.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) ProviderCall(operation string, err error) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(operation).Inc()
	if err != nil {
		m.ProviderFailures.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) TokensUsed(n int) {
	if m != nil && n > 0 {
		m.ProviderTokens.Add(float64(n))
	}
}

func (m *Metrics) Answer(kind string, correct bool) {
	if m == nil {
		return
	}
	outcome := "incorrect"
	if correct {
		outcome = "correct"
	}
	m.Answers.WithLabelValues(kind, outcome).Inc()
}
