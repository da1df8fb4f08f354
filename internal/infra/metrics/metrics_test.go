package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.QuotaDecision("view", "consumed")
	m.QuotaDecision("view", "consumed")
	m.QuotaDecision("create", "refused")
	m.WebhookEvent("customer.subscription.updated", "applied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotaDecisions.WithLabelValues("view", "consumed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaDecisions.WithLabelValues("create", "refused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("customer.subscription.updated", "applied")))
}

func TestHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveGeneration(2*time.Second, nil)
	m.ObserveGeneration(time.Second, errors.New("upstream"))
	m.ObserveRequest("GET", "/api/v1/plans", "200", 10*time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "iteach_generation_duration_seconds", "iteach_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QuotaDecision("view", "allowed")
		m.WebhookEvent("x", "ignored")
		m.ObserveGeneration(time.Second, nil)
		m.ObserveRequest("GET", "/", "200", time.Millisecond)
	})
}
