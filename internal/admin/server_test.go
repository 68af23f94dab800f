package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/testutil/testlog"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	client, err := gateway.New(gateway.Config{
		URL:   "ws://127.0.0.1:18789",
		Token: "test-token",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return New(Config{Name: "gatectl-test", Addr: "127.0.0.1:0"}, client)
}

func TestHealthEndpoint(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "gatectl-test" {
		t.Fatalf("unexpected response body: %#v", body)
	}
}

func TestReadyReportsDisconnectedSession(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 while disconnected, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ready"] != false {
		t.Fatalf("unexpected response body: %#v", body)
	}
}

func TestStatusSnapshot(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var status Status
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if status.State != "disconnected" || status.Connected {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Endpoint != "ws://127.0.0.1:18789" {
		t.Fatalf("unexpected endpoint: %q", status.Endpoint)
	}
	if status.Pending != 0 {
		t.Fatalf("unexpected pending count: %d", status.Pending)
	}
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected metrics exposition output")
	}
}
