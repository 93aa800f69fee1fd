package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRecord(t *testing.T) {
	c := New()
	c.SnapshotRun(2*time.Second, 3)
	c.QuoteFailed()
	c.HoldingMutated("add")
	c.HoldingMutated("add")
	c.UpstreamRequest("coins", errors.New("boom"))

	if got := testutil.ToFloat64(c.snapshotFailures); got != 3 {
		t.Fatalf("snapshot failures = %v", got)
	}
	if got := testutil.ToFloat64(c.holdingMutations.WithLabelValues("add")); got != 2 {
		t.Fatalf("add mutations = %v", got)
	}
	if got := testutil.ToFloat64(c.upstreamRequests.WithLabelValues("coins", "error")); got != 1 {
		t.Fatalf("upstream errors = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.QuoteFailed()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "crypto_portfolio_quote_failures_total 1") {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	c.SnapshotRun(time.Second, 1)
	c.QuoteFailed()
	c.HoldingMutated("edit")
	c.UpstreamRequest("global", nil)
}
