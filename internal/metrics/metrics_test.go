package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSuccess(t *testing.T) {
	c := New()
	c.Observe(Observation{
		Mode:       "smart",
		Success:    true,
		Candidates: 12,
		Kept:       9,
		Deleted:    3,
		Duration:   2 * time.Second,
		Finished:   time.Unix(1700000000, 0),
	})

	if got := testutil.ToFloat64(c.runs.WithLabelValues("smart", "success")); got != 1 {
		t.Fatalf("runs_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.candidates); got != 12 {
		t.Fatalf("candidates = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.deleted); got != 3 {
		t.Fatalf("deleted_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.lastSuccess); got != 1700000000 {
		t.Fatalf("last_success = %v", got)
	}
}

func TestObserveFailureLeavesGauges(t *testing.T) {
	c := New()
	c.Observe(Observation{Mode: "days", Success: true, Candidates: 5, Finished: time.Unix(10, 0)})
	c.Observe(Observation{Mode: "days", Success: false, Candidates: 0})

	if got := testutil.ToFloat64(c.runs.WithLabelValues("days", "failure")); got != 1 {
		t.Fatalf("runs_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.candidates); got != 5 {
		t.Fatalf("failed run must not reset candidates, got %v", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.Observe(Observation{Mode: "smart", Success: true})
}

func TestHandlerServesMetrics(t *testing.T) {
	c := New()
	c.Observe(Observation{Mode: "count", Success: true, Deleted: 2, Finished: time.Now()})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "backupprune_deleted_total 2") {
		t.Fatalf("metrics output missing deleted_total:\n%s", body)
	}
}
