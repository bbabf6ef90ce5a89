package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollector_RecordsAndExposes(t *testing.T) {
	c := NewCollector(nil)

	c.RecordDecision("block", map[string]int{"critical": 1, "high": 2}, 5*time.Millisecond)
	c.RecordDecision("allow", nil, time.Millisecond)
	c.RecordOverride("created")
	c.RecordAlert("critical")
	c.RecordWebhookDelivery(true, "", 100*time.Millisecond)
	c.RecordWebhookDelivery(false, "timeout_error", time.Second)
	c.RecordEventPublished(3)
	c.SetAuditRetained(42)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`arbiter_decisions_total{decision="block"} 1`,
		`arbiter_violations_total{severity="critical"} 1`,
		`arbiter_violations_total{severity="high"} 2`,
		`arbiter_overrides_total{action="created"} 1`,
		`arbiter_alerts_total{priority="critical"} 1`,
		`arbiter_webhook_deliveries_total{outcome="success"} 1`,
		`arbiter_webhook_errors_total{class="timeout_error"} 1`,
		`arbiter_events_dropped_total 3`,
		`arbiter_audit_entries_retained 42`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
