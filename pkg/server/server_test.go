package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sonate-hq/arbiter/pkg/alerting"
	"sonate-hq/arbiter/pkg/audit"
	"sonate-hq/arbiter/pkg/config"
	"sonate-hq/arbiter/pkg/events"
	"sonate-hq/arbiter/pkg/override"
	"sonate-hq/arbiter/pkg/policy"
	"sonate-hq/arbiter/pkg/policy/rules"
	"sonate-hq/arbiter/pkg/receipt"
	"sonate-hq/arbiter/pkg/webhook"
)

type testEnv struct {
	server    *httptest.Server
	overrides *override.Manager
	alerter   *alerting.Alerter
	webhooks  *webhook.Manager
	hub       *events.Hub
	audit     *audit.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry := policy.NewRegistry()
	if err := rules.RegisterBuiltins(registry); err != nil {
		t.Fatal(err)
	}

	overrides, err := override.NewManager(override.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	engine := policy.NewEngine(registry, overrides, policy.DefaultEngineConfig())

	env := &testEnv{
		overrides: overrides,
		alerter:   alerting.NewAlerter(alerting.DefaultConfig()),
		webhooks:  webhook.NewManager(webhook.ManagerConfig{AllowPrivateNetworks: true}),
		hub:       events.NewHub(),
		audit:     audit.NewLogger(audit.Config{Capacity: 1000}),
	}

	srv := NewServer(config.ServerConfig{ShutdownTimeout: time.Second}, "/metrics", Deps{
		Engine:    engine,
		Overrides: overrides,
		Alerter:   env.alerter,
		Webhooks:  env.webhooks,
		Events:    env.hub,
		Audit:     env.audit,
	})
	env.server = httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		env.server.Close()
		env.webhooks.Close()
		env.hub.Close()
		env.audit.Close()
	})
	return env
}

func signedReceipt(id string) *receipt.TrustReceipt {
	return &receipt.TrustReceipt{
		ID:        id,
		AgentDID:  "did:sonate:agent-1",
		Timestamp: time.Now().UTC(),
		Telemetry: receipt.Telemetry{
			ResonanceScore: 0.9,
			CoherenceScore: 0.9,
			TruthDebt:      0.1,
			Volatility:     0.2,
		},
		Chain:     &receipt.Chain{PreviousHash: "aa", ChainHash: "bb", ChainLength: 2},
		Signature: &receipt.Signature{Algorithm: "Ed25519", Value: "sig"},
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/v1/evaluate", map[string]any{
		"receipt": signedReceipt("r-1"),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result policy.EvaluationResult
	decodeBody(t, resp, &result)
	if !result.Passed {
		t.Errorf("Passed = false, want true: %+v", result.Violations)
	}
}

func TestEvaluateEndpoint_UnsignedReceiptFails(t *testing.T) {
	env := newTestEnv(t)

	rcpt := signedReceipt("r-2")
	rcpt.Signature = nil
	resp := postJSON(t, env.server.URL+"/v1/evaluate", map[string]any{"receipt": rcpt})

	var result policy.EvaluationResult
	decodeBody(t, resp, &result)
	if result.Passed {
		t.Error("Passed = true, want false for unsigned receipt")
	}
}

func TestEvaluateEndpoint_MissingReceipt(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/v1/evaluate", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestDecideEndpoint_Block(t *testing.T) {
	env := newTestEnv(t)

	rcpt := signedReceipt("r-3")
	rcpt.Signature = nil
	resp := postJSON(t, env.server.URL+"/v1/decide", map[string]any{"receipt": rcpt})

	var decision decisionResponse
	decodeBody(t, resp, &decision)
	if decision.Decision != policy.DecisionBlock {
		t.Errorf("Decision = %q, want %q", decision.Decision, policy.DecisionBlock)
	}
	if decision.ReceiptID != "r-3" {
		t.Errorf("ReceiptID = %q, want r-3", decision.ReceiptID)
	}
}

func TestEvaluateBatchEndpoint(t *testing.T) {
	env := newTestEnv(t)

	bad := signedReceipt("r-bad")
	bad.Signature = nil
	resp := postJSON(t, env.server.URL+"/v1/evaluate/batch", map[string]any{
		"receipts": []*receipt.TrustReceipt{signedReceipt("r-good"), bad},
	})

	var result policy.BatchResult
	decodeBody(t, resp, &result)
	if result.Total != 2 || result.Passed != 1 || result.Failed != 1 {
		t.Errorf("batch = %d/%d/%d, want 2/1/1", result.Total, result.Passed, result.Failed)
	}
}

func TestOverrideLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/v1/overrides", override.CreateRequest{
		ReceiptID:    "r-10",
		AgentID:      "did:sonate:agent-1",
		PrincipleIDs: []string{rules.PrincipleIntegrity},
		AuthorizedBy: "did:sonate:human-1",
		Reason:       "known test fixture",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created override.Override
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("created override has empty id")
	}

	getResp, err := http.Get(env.server.URL + "/v1/overrides/" + created.ID)
	if err != nil {
		t.Fatal(err)
	}
	var fetched override.Override
	decodeBody(t, getResp, &fetched)
	if fetched.ID != created.ID {
		t.Errorf("fetched id = %q, want %q", fetched.ID, created.ID)
	}

	revokeResp := postJSON(t, env.server.URL+"/v1/overrides/"+created.ID+"/revoke", map[string]string{
		"revoked_by": "did:sonate:human-2",
		"reason":     "no longer needed",
	})
	var revoked override.Override
	decodeBody(t, revokeResp, &revoked)
	if revoked.RevokedAt == nil || revoked.RevokedBy != "did:sonate:human-2" {
		t.Errorf("revoked state = %v/%q", revoked.RevokedAt, revoked.RevokedBy)
	}

	missing := postJSON(t, env.server.URL+"/v1/overrides/nope/revoke", map[string]string{
		"revoked_by": "did:sonate:human-2",
	})
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("revoke missing status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestOverrideCreate_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/v1/overrides", override.CreateRequest{ReceiptID: "r-11"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestWebhookEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/v1/webhooks", webhook.RegisterRequest{
		Name:       "ops",
		URL:        "http://127.0.0.1:9999/hook",
		EventTypes: []webhook.EventType{webhook.EventTrustViolationCritical},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var registered struct {
		webhook.Config
		Secret string `json:"secret"`
	}
	decodeBody(t, resp, &registered)
	if registered.ID == "" || registered.Secret == "" {
		t.Fatalf("registration response incomplete: id=%q secret set=%v", registered.ID, registered.Secret != "")
	}

	getResp, err := http.Get(env.server.URL + "/v1/webhooks/" + registered.ID)
	if err != nil {
		t.Fatal(err)
	}
	raw := new(bytes.Buffer)
	if _, err := raw.ReadFrom(getResp.Body); err != nil {
		t.Fatal(err)
	}
	getResp.Body.Close()
	if strings.Contains(raw.String(), registered.Secret) {
		t.Error("webhook read leaks the secret")
	}

	disableResp := postJSON(t, env.server.URL+"/v1/webhooks/"+registered.ID+"/disable", struct{}{})
	var disabled webhook.Config
	decodeBody(t, disableResp, &disabled)
	if disabled.Enabled {
		t.Error("Enabled = true after disable")
	}

	req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/v1/webhooks/"+registered.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", delResp.StatusCode, http.StatusNoContent)
	}
}

func TestWebhookRegister_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/v1/webhooks", webhook.RegisterRequest{
		Name: "bad",
		URL:  "ftp://example.com/hook",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAlertEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rcpt := signedReceipt("r-20")
	alert := env.alerter.Detect(rcpt, &policy.EvaluationResult{
		Passed: false,
		Violations: []policy.Violation{{
			RuleID:   rules.RuleSignatureVerification,
			Severity: policy.SeverityCritical,
			Message:  "receipt carries no signature",
		}},
	})
	if alert == nil {
		t.Fatal("Detect() = nil, want alert")
	}

	listResp, err := http.Get(env.server.URL + "/v1/alerts")
	if err != nil {
		t.Fatal(err)
	}
	var listing struct {
		Alerts []*alerting.Alert `json:"alerts"`
	}
	decodeBody(t, listResp, &listing)
	if len(listing.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(listing.Alerts))
	}

	ackResp := postJSON(t, env.server.URL+"/v1/alerts/"+alert.ID+"/ack", map[string]string{
		"acknowledged_by": "did:sonate:human-1",
	})
	var acked alerting.Alert
	decodeBody(t, ackResp, &acked)
	if !acked.Acknowledged || acked.AcknowledgedBy != "did:sonate:human-1" {
		t.Errorf("ack state = %v/%q", acked.Acknowledged, acked.AcknowledgedBy)
	}
}

func TestAuditEndpoints(t *testing.T) {
	env := newTestEnv(t)

	env.audit.Log(audit.Entry{
		EntryType: audit.EntryDecision,
		ReceiptID: "r-30",
		AgentDID:  "did:sonate:agent-1",
		Decision:  "block",
		Violations: audit.ViolationCounts{
			Total: 1, Critical: 1,
		},
		Reason: "unsigned receipt",
	})

	entriesResp, err := http.Get(env.server.URL + "/v1/audit/entries?decision=block")
	if err != nil {
		t.Fatal(err)
	}
	var listing struct {
		Entries []*audit.Entry `json:"entries"`
	}
	decodeBody(t, entriesResp, &listing)
	if len(listing.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(listing.Entries))
	}

	exportResp, err := http.Get(env.server.URL + "/v1/audit/export?format=csv")
	if err != nil {
		t.Fatal(err)
	}
	body := new(bytes.Buffer)
	if _, err := body.ReadFrom(exportResp.Body); err != nil {
		t.Fatal(err)
	}
	exportResp.Body.Close()
	if got := exportResp.Header.Get("Content-Type"); got != "text/csv" {
		t.Errorf("export content type = %q, want text/csv", got)
	}
	if !strings.Contains(body.String(), "r-30") {
		t.Errorf("CSV export missing entry:\n%s", body.String())
	}

	reportResp, err := http.Get(env.server.URL + "/v1/audit/report")
	if err != nil {
		t.Fatal(err)
	}
	var report audit.ComplianceReport
	decodeBody(t, reportResp, &report)
	if report.Decisions != 1 || report.Blocked != 1 {
		t.Errorf("report = %d decisions / %d blocked, want 1/1", report.Decisions, report.Blocked)
	}

	badFormat, err := http.Get(env.server.URL + "/v1/audit/export?format=xml")
	if err != nil {
		t.Fatal(err)
	}
	badFormat.Body.Close()
	if badFormat.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want %d", badFormat.StatusCode, http.StatusBadRequest)
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/v1/events/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", got)
	}

	// The subscription races with Publish; retry until the subscriber is
	// attached and one event flows through.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			env.hub.Publish(events.NewEvent("trust_violation_critical", map[string]any{"receipt_id": "r-40"}))
			time.Sleep(10 * time.Millisecond)
		}
	}()

	buf := make([]byte, 4096)
	deadline := time.Now().Add(3 * time.Second)
	var stream string
	for time.Now().Before(deadline) {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			stream += string(buf[:n])
		}
		if strings.Contains(stream, "event: trust_violation_critical") &&
			strings.Contains(stream, "r-40") {
			break
		}
		if err != nil {
			break
		}
	}
	<-done

	if !strings.Contains(stream, "event: trust_violation_critical") {
		t.Errorf("stream missing event frame:\n%s", stream)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health struct {
		Status     string          `json:"status"`
		Subsystems map[string]bool `json:"subsystems"`
	}
	decodeBody(t, resp, &health)
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	for name, up := range health.Subsystems {
		if !up {
			t.Errorf("subsystem %s reported absent", name)
		}
	}
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(RequestIDHeader, "test-correlation-id")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "test-correlation-id" {
		t.Errorf("request id = %q, want test-correlation-id", got)
	}

	plain, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	plain.Body.Close()
	if plain.Header.Get(RequestIDHeader) == "" {
		t.Error("generated request id missing from response")
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/v1/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestConcurrentEvaluations(t *testing.T) {
	env := newTestEnv(t)

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			raw, err := json.Marshal(map[string]any{
				"receipt": signedReceipt(fmt.Sprintf("r-c%d", n)),
			})
			if err != nil {
				errs <- err
				return
			}
			resp, err := http.Post(env.server.URL+"/v1/evaluate", "application/json", bytes.NewReader(raw))
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("status %d", resp.StatusCode)
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < 10; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}
