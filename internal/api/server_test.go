package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/surveypulse/courier/internal/delivery"
	"github.com/surveypulse/courier/internal/webhooks"
	"github.com/surveypulse/courier/internal/worker"
)

type mapConfigs map[string]*webhooks.Config

func (c mapConfigs) GetWebhookConfig(_ context.Context, businessID string) (*webhooks.Config, error) {
	return c[businessID], nil
}

func newTestServer(t *testing.T, configs mapConfigs) (*httptest.Server, *webhooks.MemoryStore) {
	t.Helper()
	store := webhooks.NewMemoryStore()
	client := delivery.NewClient()
	service := webhooks.NewService(store, configs, client)
	w := worker.New(store, client, worker.DefaultConfig())

	server := httptest.NewServer(NewServer(service, w).Handler())
	t.Cleanup(server.Close)
	return server, store
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestResponseRecordedEnqueues(t *testing.T) {
	server, store := newTestServer(t, mapConfigs{
		"biz_1": {URL: "https://example.com/hook", Secret: "whk_secret"},
	})

	resp := postJSON(t, server.URL+"/v1/events/response-recorded",
		`{"business_id":"biz_1","survey_id":"survey_1","subject_id":"subject_1","score":9,"comment":"Great!"}`)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["enqueued"] != true {
		t.Errorf("expected enqueued=true, got %v", body)
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected job_id in response")
	}
	if _, ok := store.Get(jobID); !ok {
		t.Error("job not found in store")
	}
}

func TestResponseRecordedSkipsUnconfigured(t *testing.T) {
	server, _ := newTestServer(t, mapConfigs{})

	resp := postJSON(t, server.URL+"/v1/events/response-recorded",
		`{"business_id":"biz_1","survey_id":"survey_1","subject_id":"subject_1","score":5}`)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["enqueued"] != false {
		t.Errorf("expected enqueued=false, got %v", body)
	}
}

func TestResponseRecordedValidation(t *testing.T) {
	server, _ := newTestServer(t, mapConfigs{})

	tests := []string{
		`not json`,
		`{"survey_id":"s","subject_id":"x","score":5}`,
		`{"business_id":"b","survey_id":"s","subject_id":"x","score":11}`,
		`{"business_id":"b","survey_id":"s","subject_id":"x","score":-1}`,
	}
	for _, body := range tests {
		resp := postJSON(t, server.URL+"/v1/events/response-recorded", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestResponseCommentAmendsPendingJob(t *testing.T) {
	server, store := newTestServer(t, mapConfigs{
		"biz_1": {URL: "https://example.com/hook", Secret: "whk_secret"},
	})

	resp := postJSON(t, server.URL+"/v1/events/response-recorded",
		`{"business_id":"biz_1","survey_id":"survey_1","subject_id":"subject_1","score":9}`)
	jobID := decodeBody(t, resp)["job_id"].(string)

	resp = postJSON(t, server.URL+"/v1/events/response-comment",
		`{"business_id":"biz_1","survey_id":"survey_1","subject_id":"subject_1","comment":"Late thoughts"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["updated"] != true {
		t.Errorf("expected updated=true, got %v", body)
	}

	job, _ := store.Get(jobID)
	if job.Comment == nil || *job.Comment != "Late thoughts" {
		t.Errorf("expected amended comment, got %v", job.Comment)
	}
}

func TestDeliveriesEndpoint(t *testing.T) {
	server, store := newTestServer(t, mapConfigs{})
	store.Put(&webhooks.Job{ID: "j1", BusinessID: "biz_1", Status: webhooks.StatusDelivered, CreatedAt: time.Now()})

	resp, err := http.Get(server.URL + "/v1/businesses/biz_1/deliveries?limit=5")
	if err != nil {
		t.Fatalf("GET deliveries: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Deliveries []webhooks.Job `json:"deliveries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Deliveries) != 1 || body.Deliveries[0].ID != "j1" {
		t.Errorf("unexpected deliveries %+v", body.Deliveries)
	}
}

func TestDeliveriesLimitValidation(t *testing.T) {
	server, _ := newTestServer(t, mapConfigs{})

	for _, limit := range []string{"0", "-3", "101", "abc"} {
		resp, err := http.Get(server.URL + "/v1/businesses/biz_1/deliveries?limit=" + limit)
		if err != nil {
			t.Fatalf("GET deliveries: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit %q: expected 400, got %d", limit, resp.StatusCode)
		}
	}
}

func TestTestDeliveryNotConfigured(t *testing.T) {
	server, _ := newTestServer(t, mapConfigs{})

	resp := postJSON(t, server.URL+"/v1/businesses/biz_1/test-delivery", ``)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTestDeliveryConfigured(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	server, _ := newTestServer(t, mapConfigs{
		"biz_1": {URL: endpoint.URL, Secret: "whk_secret"},
	})

	resp := postJSON(t, server.URL+"/v1/businesses/biz_1/test-delivery", ``)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("expected success=true, got %v", body)
	}
}

func TestWorkerStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t, mapConfigs{})

	resp, err := http.Get(server.URL + "/v1/worker/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()

	body := decodeBody(t, resp)
	if body["running"] != false {
		t.Errorf("expected running=false for unstarted worker, got %v", body)
	}
}

func TestGenerateSecretEndpoint(t *testing.T) {
	server, _ := newTestServer(t, mapConfigs{})

	resp := postJSON(t, server.URL+"/v1/secrets", ``)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	secret, _ := body["secret"].(string)
	if !strings.HasPrefix(secret, "whk_") {
		t.Errorf("expected whk_ prefixed secret, got %q", secret)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, mapConfigs{})

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
