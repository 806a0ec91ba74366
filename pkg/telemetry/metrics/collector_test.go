package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewCollector(Config{Enabled: true}, registry), registry
}

func TestRecordRequest(t *testing.T) {
	c, registry := testCollector(t)
	c.RecordRequest("success", 1200*time.Millisecond, 100, 400, 0.005)
	c.RecordRequest("error", 300*time.Millisecond, 50, 0, 0)

	want := `
		# HELP sherpa_orchestrator_requests_total Completed generation requests by final status
		# TYPE sherpa_orchestrator_requests_total counter
		sherpa_orchestrator_requests_total{status="error"} 1
		sherpa_orchestrator_requests_total{status="success"} 1
	`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(want),
		"sherpa_orchestrator_requests_total"); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(c.costTotal); got != 0.005 {
		t.Errorf("cost_total = %v, want 0.005", got)
	}
}

func TestGauges(t *testing.T) {
	c, _ := testCollector(t)
	c.SetCredentialCount("active", 3)
	c.SetCredentialCount("error", 1)
	c.SetQueueDepth("low", 7)
	c.SetQueueInFlight(2)
	c.SetBudgetRatio("daily", 0.42)

	if got := testutil.ToFloat64(c.credentialGauge.WithLabelValues("active")); got != 3 {
		t.Errorf("credentials{active} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.queuePending.WithLabelValues("low")); got != 7 {
		t.Errorf("queue_pending{low} = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.budgetRatio.WithLabelValues("daily")); got != 0.42 {
		t.Errorf("budget_ratio{daily} = %v, want 0.42", got)
	}
}

func TestDisabledCollectorIsNoop(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(Config{Enabled: false}, registry)
	c.RecordRequest("success", time.Second, 10, 10, 0.1)
	c.RecordAttemptError("NETWORK")

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("success")); got != 0 {
		t.Errorf("requests_total = %v, want 0 when disabled", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordRequest("success", time.Second, 1, 1, 0.1)
	c.RecordAttemptError("GENERIC")
	c.RecordRetryDelay(time.Second)
	c.SetBudgetRatio("daily", 1)
	c.SetCredentialCount("active", 1)
	c.SetQueueDepth("high", 1)
	c.SetQueueInFlight(1)
}
