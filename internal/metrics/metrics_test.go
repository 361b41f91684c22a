package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderObserveAttemptIncrementsCounters(t *testing.T) {
	r := Recorder{}
	before := testutil.ToFloat64(AttemptsTotal.WithLabelValues("http://a", "success"))

	r.ObserveAttempt("http://a", true, 5*time.Millisecond)

	after := testutil.ToFloat64(AttemptsTotal.WithLabelValues("http://a", "success"))
	assert.Equal(t, before+1, after)
}

func TestRecorderObserveRetryIncrementsCounter(t *testing.T) {
	r := Recorder{}
	before := testutil.ToFloat64(RetriesTotal.WithLabelValues("http://b"))

	r.ObserveRetry("http://b")

	after := testutil.ToFloat64(RetriesTotal.WithLabelValues("http://b"))
	assert.Equal(t, before+1, after)
}

func TestSetHealthyTogglesGauge(t *testing.T) {
	r := Recorder{}
	r.SetHealthy("http://c", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(EndpointHealthy.WithLabelValues("http://c")))

	r.SetHealthy("http://c", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(EndpointHealthy.WithLabelValues("http://c")))
}
