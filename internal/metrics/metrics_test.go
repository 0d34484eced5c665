package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionOpened(12, true)
	m.FeedbackRecorded(true)
	m.FeedbackRecorded(false)
	m.FeedbackRecorded(false)
	m.PatternMined("content_keyword")
	m.MiningFailed("persist")
	m.RulesCompiled(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsOpened))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.itemsQueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.feedbacks.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.patternsMined.WithLabelValues("content_keyword")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.learnedPatterns))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.SessionOpened(1, false)
	m.FeedbackRecorded(true)
	m.PatternMined("x")
	m.MiningFailed("fetch")
	m.RulesCompiled(0)
}
