package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/danmuck/ovsfront/internal/config"
	"github.com/danmuck/ovsfront/internal/ovn/monitor"
	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

func newTestServer(t *testing.T, token string) (*Server, *monitor.PortStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := monitor.NewPortStore()
	store.SetPortStatusUp("port1")
	store.SetPortStatusDown("port2")
	return New(config.HTTPConfig{Addr: "127.0.0.1:0", AuthToken: token}, store), store
}

func get(s *Server, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "")
	rec := get(s, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != Service {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "")
	if rec := get(s, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestPorts(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "")
	rec := get(s, "/ports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Ports []monitor.PortStatus `json:"ports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var names []string
	var up []bool
	for _, p := range body.Ports {
		names = append(names, p.Name)
		up = append(up, p.Up)
	}
	if diff := cmp.Diff([]string{"port1", "port2"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true, false}, up); diff != "" {
		t.Fatalf("up (-want +got):\n%s", diff)
	}

	if rec := get(s, "/ports/port2", ""); rec.Code != http.StatusOK {
		t.Fatalf("port2 status=%d", rec.Code)
	}
	if rec := get(s, "/ports/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", rec.Code)
	}
}

func TestPortsRequireToken(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "secret")
	if rec := get(s, "/ports", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token=%d", rec.Code)
	}
	if rec := get(s, "/ports", "secret"); rec.Code != http.StatusOK {
		t.Fatalf("status with token=%d", rec.Code)
	}
	if rec := get(s, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health should stay open, status=%d", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
