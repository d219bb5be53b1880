package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryExposesCommitCounter(t *testing.T) {
	r := NewRegistry()
	r.CommitTotal.WithLabelValues("observation").Inc()
	r.FanoutSubscribers.Set(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "ledgerd_commits_total") {
		t.Fatalf("expected commits_total in metrics output, got:\n%s", body)
	}
	if !strings.Contains(body, "ledgerd_fanout_subscribers 3") {
		t.Fatalf("expected fanout_subscribers gauge value 3, got:\n%s", body)
	}
}
