package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xraph/courier"
	"github.com/xraph/courier/api"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/store/memory"
)

func setup(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.New()
	c, err := courier.New(courier.WithStore(store))
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(api.NewHandler(c, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("response is not JSON: %s", raw)
		}
	}
	return resp, decoded
}

func createWebhook(t *testing.T, srv *httptest.Server, url string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/webhooks", map[string]any{
		"tenant_id": "t1",
		"name":      "CRM Sync",
		"url":       url,
		"events":    []string{"deal.created"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", resp.StatusCode, body)
	}
	return body["id"].(string)
}

func TestCreateWebhook(t *testing.T) {
	srv := setup(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/webhooks", map[string]any{
		"tenant_id": "t1",
		"name":      "CRM Sync",
		"url":       "https://example.com/hook",
		"events":    []string{"deal.created", "deal.updated"},
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["name"] != "CRM Sync" {
		t.Errorf("name = %v", body["name"])
	}
	if body["is_active"] != true {
		t.Errorf("is_active = %v", body["is_active"])
	}
	if _, leaked := body["secret"]; leaked {
		t.Error("secret echoed in create response")
	}
}

func TestCreateWebhookValidation(t *testing.T) {
	srv := setup(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/webhooks", map[string]any{
		"name": "No URL",
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] != "validation failed" {
		t.Errorf("error = %v", body["error"])
	}
	if _, ok := body["fields"]; !ok {
		t.Error("missing per-field errors")
	}
}

func TestGetWebhook(t *testing.T) {
	srv := setup(t)
	webhookID := createWebhook(t, srv, "https://example.com/hook")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/webhooks/"+webhookID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["id"] != webhookID {
		t.Errorf("id = %v", body["id"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/webhooks/"+id.NewSubscriptionID().String(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing webhook status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/webhooks/not-a-typeid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed ID status = %d", resp.StatusCode)
	}
}

func TestUpdateWebhook(t *testing.T) {
	srv := setup(t)
	webhookID := createWebhook(t, srv, "https://example.com/hook")

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/webhooks/"+webhookID, map[string]any{
		"name": "Renamed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["name"] != "Renamed" {
		t.Errorf("name = %v", body["name"])
	}
	if body["url"] != "https://example.com/hook" {
		t.Errorf("url changed on name-only update: %v", body["url"])
	}
}

func TestDeleteWebhook(t *testing.T) {
	srv := setup(t)
	webhookID := createWebhook(t, srv, "https://example.com/hook")

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/webhooks/"+webhookID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/webhooks/"+webhookID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d", resp.StatusCode)
	}
}

func TestActivateDeactivate(t *testing.T) {
	srv := setup(t)
	webhookID := createWebhook(t, srv, "https://example.com/hook")

	resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/webhooks/"+webhookID+"/deactivate", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate status = %d", resp.StatusCode)
	}

	_, body := doJSON(t, http.MethodGet, srv.URL+"/webhooks/"+webhookID, nil)
	if body["is_active"] != false {
		t.Error("webhook still active after deactivate")
	}

	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/webhooks/"+webhookID+"/activate", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("activate status = %d", resp.StatusCode)
	}
}

func TestRotateSecret(t *testing.T) {
	srv := setup(t)
	webhookID := createWebhook(t, srv, "https://example.com/hook")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/webhooks/"+webhookID+"/rotate-secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	secret, _ := body["secret"].(string)
	if len(secret) != 70 {
		t.Errorf("rotated secret = %q", secret)
	}
}

func TestListWebhooks(t *testing.T) {
	srv := setup(t)
	createWebhook(t, srv, "https://example.com/hook-a")
	createWebhook(t, srv, "https://example.com/hook-b")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/webhooks?tenant_id=t1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	records, _ := body["records"].([]any)
	if len(records) != 2 {
		t.Errorf("records = %d", len(records))
	}
	summary, _ := body["summary"].(map[string]any)
	if summary["total"] != float64(2) || summary["active"] != float64(2) {
		t.Errorf("summary = %v", summary)
	}
}

func TestListEvents(t *testing.T) {
	srv := setup(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	events, _ := body["events"].([]any)
	if len(events) != 19 {
		t.Errorf("events = %d, want the full catalog", len(events))
	}

	_, body = doJSON(t, http.MethodGet, srv.URL+"/events?group=payments", nil)
	events, _ = body["events"].([]any)
	if len(events) != 2 {
		t.Errorf("payments events = %d, want 2", len(events))
	}
}

func TestTrigger(t *testing.T) {
	received := 0
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	defer dest.Close()

	srv := setup(t)
	createWebhook(t, srv, dest.URL)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/trigger", map[string]any{
		"event":     "deal.created",
		"tenant_id": "t1",
		"payload":   map[string]any{"deal_id": "d1"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}

	if body["total_webhooks"] != float64(1) {
		t.Errorf("total_webhooks = %v", body["total_webhooks"])
	}
	if body["successful_deliveries"] != float64(1) {
		t.Errorf("successful_deliveries = %v", body["successful_deliveries"])
	}
	deliveries, _ := body["deliveries"].([]any)
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d", len(deliveries))
	}
	first, _ := deliveries[0].(map[string]any)
	if first["success"] != true {
		t.Errorf("delivery = %v", first)
	}
	if received != 1 {
		t.Errorf("destination received %d calls", received)
	}
}

func TestTriggerUnknownEvent(t *testing.T) {
	srv := setup(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/trigger", map[string]any{
		"event":   "made.up",
		"payload": map[string]any{},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDeliveryHistoryAndStats(t *testing.T) {
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer dest.Close()

	srv := setup(t)
	webhookID := createWebhook(t, srv, dest.URL)

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/trigger", map[string]any{
		"event":     "deal.created",
		"tenant_id": "t1",
		"payload":   map[string]any{},
	}); resp.StatusCode != http.StatusOK {
		t.Fatalf("trigger status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/webhooks/"+webhookID+"/deliveries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliveries status = %d", resp.StatusCode)
	}
	deliveries, _ := body["deliveries"].([]any)
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d", len(deliveries))
	}

	deliveryID, _ := deliveries[0].(map[string]any)["id"].(string)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/deliveries/"+deliveryID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get delivery status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/webhooks/"+webhookID+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	if body["total_deliveries"] != float64(1) {
		t.Errorf("stats = %v", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/webhooks/"+webhookID+"/retries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retries status = %d", resp.StatusCode)
	}
}

func TestActivityLog(t *testing.T) {
	srv := setup(t)
	webhookID := createWebhook(t, srv, "https://example.com/hook")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/activity", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	activity, _ := body["activity"].([]any)
	if len(activity) != 1 {
		t.Fatalf("activity = %d entries", len(activity))
	}
	entry, _ := activity[0].(map[string]any)
	if entry["action"] != "webhook.created" {
		t.Errorf("action = %v", entry["action"])
	}
	if entry["entity_id"] != webhookID {
		t.Errorf("entity_id = %v", entry["entity_id"])
	}
}
