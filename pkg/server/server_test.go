package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"draftwire/pkg/logging"
	"draftwire/pkg/monitoring"
)

func TestSetupServiceRouterHealthEndpoint(t *testing.T) {
	logger := logging.NewLoggerWithService("test")
	health := monitoring.NewHealthChecker("test", "dev")
	health.AddCheck("always", func() monitoring.CheckResult {
		return monitoring.CheckResult{Status: monitoring.StatusHealthy}
	})

	router := SetupServiceRouter(logger, "test", health, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header to be set")
	}
}

func TestSetupServiceRouterUnhealthy(t *testing.T) {
	logger := logging.NewLoggerWithService("test")
	health := monitoring.NewHealthChecker("test", "dev")
	health.AddCheck("broken", func() monitoring.CheckResult {
		return monitoring.CheckResult{Status: monitoring.StatusUnhealthy, Message: "down"}
	})

	router := SetupServiceRouter(logger, "test", health, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
