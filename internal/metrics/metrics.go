package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the pipeline counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsOpened  prometheus.Counter
	itemsQueued     prometheus.Counter
	queueFailures   prometheus.Counter
	feedbacks       *prometheus.CounterVec
	patternsMined   *prometheus.CounterVec
	miningFailures  *prometheus.CounterVec
	rulesCompiled   prometheus.Counter
	learnedPatterns prometheus.Gauge
}

// New registers the pipeline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "looktrainer_review_sessions_opened_total",
			Help: "Total number of review sessions opened",
		}),
		itemsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "looktrainer_items_queued_total",
			Help: "Total number of items queued into review sessions",
		}),
		queueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "looktrainer_partial_queue_failures_total",
			Help: "Review sessions whose item queueing did not fully succeed",
		}),
		feedbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "looktrainer_feedback_total",
			Help: "Reviewer decisions recorded",
		}, []string{"decision"}),
		patternsMined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "looktrainer_patterns_mined_total",
			Help: "Patterns persisted by the miner",
		}, []string{"pattern_type"}),
		miningFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "looktrainer_mining_failures_total",
			Help: "Absorbed pattern mining failures",
		}, []string{"stage"}),
		rulesCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "looktrainer_rules_compiled_total",
			Help: "Rulesets compiled",
		}),
		learnedPatterns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "looktrainer_learned_patterns",
			Help: "Learned patterns included in the last compiled ruleset",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.sessionsOpened,
			m.itemsQueued,
			m.queueFailures,
			m.feedbacks,
			m.patternsMined,
			m.miningFailures,
			m.rulesCompiled,
			m.learnedPatterns,
		)
	}
	return m
}

func (m *Metrics) SessionOpened(queued int, partial bool) {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
	m.itemsQueued.Add(float64(queued))
	if partial {
		m.queueFailures.Inc()
	}
}

func (m *Metrics) FeedbackRecorded(approved bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	m.feedbacks.WithLabelValues(decision).Inc()
}

func (m *Metrics) PatternMined(patternType string) {
	if m == nil {
		return
	}
	m.patternsMined.WithLabelValues(patternType).Inc()
}

func (m *Metrics) MiningFailed(stage string) {
	if m == nil {
		return
	}
	m.miningFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) RulesCompiled(learned int) {
	if m == nil {
		return
	}
	m.rulesCompiled.Inc()
	m.learnedPatterns.Set(float64(learned))
}
