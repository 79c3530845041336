package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	assert.NotNil(t, r.Registry)
}

func TestRecordBacktest(t *testing.T) {
	r := NewRegistry()

	r.RecordBacktest("done", 2*time.Second, 5)
	r.RecordBacktest("done", time.Second, 3)
	r.RecordBacktest("failed", time.Second, 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.backtestsTotal.WithLabelValues("done")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.backtestsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(8), testutil.ToFloat64(r.tradesSimulated))
}

func TestRecordGridEvaluation(t *testing.T) {
	r := NewRegistry()

	r.RecordGridEvaluation("kept")
	r.RecordGridEvaluation("kept")
	r.RecordGridEvaluation("below_min_trades")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.gridEvaluations.WithLabelValues("kept")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.gridEvaluations.WithLabelValues("below_min_trades")))
}

func TestRecordWindowAndStudy(t *testing.T) {
	r := NewRegistry()

	r.RecordWindow()
	r.RecordWindow()
	r.RecordStudy("done", time.Minute)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.windowsEvaluated))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.studiesTotal.WithLabelValues("done")))
}
