package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vurg/notification-service/app/metrics"
)

type stubBroker struct {
	connected bool
}

func (b stubBroker) IsConnected() bool { return b.connected }

func newStatusServer(connected bool) (*echo.Echo, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	e := echo.New()
	NewStatusController(stubBroker{connected: connected}, reg).Register(e)
	return e, m
}

func TestStatusControllerHealthConnected(t *testing.T) {
	t.Parallel()

	e, _ := newStatusServer(true)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" || body["broker"] != "connected" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestStatusControllerHealthDisconnected(t *testing.T) {
	t.Parallel()

	e, _ := newStatusServer(false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStatusControllerMetrics(t *testing.T) {
	t.Parallel()

	e, m := newStatusServer(true)
	m.Dispatch.WithLabelValues("sent", "").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `notifications_dispatch_total{outcome="sent",reason=""} 1`) {
		t.Fatalf("expected dispatch counter in exposition, got:\n%s", rec.Body.String())
	}
}
