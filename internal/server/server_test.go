package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hmarstrand/ledgersample/internal/config"
	"github.com/hmarstrand/ledgersample/internal/ledger"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8080",
		Env:               "development",
		LogLevel:          "error",
		PlanCacheTTL:      time.Minute,
		MaxPopulationSize: 10000,
		RateLimitRPM:      10000,
		AllowedOrigins:    "*",
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	population := ledger.NewMemoryStore()
	txns := make([]ledger.Transaction, 200)
	for i := range txns {
		txns[i] = ledger.Transaction{
			ID:              fmt.Sprintf("tx-%d", i),
			TransactionDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			AccountNumber:   "6000",
			Description:     "supplies",
			Amount:          float64(100 + i),
		}
	}
	population.Load("client-1", txns)

	srv, err := New(testConfig(), WithPopulationStore(population))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %s", resp.Status)
	}
}

func TestLivenessEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/health/live")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestReadinessBeforeRun(t *testing.T) {
	srv := newTestServer(t)

	// Run has not been called, so the server is not ready yet.
	w := get(srv, "/health/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ledgersample_") {
		t.Error("metrics output missing namespace")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %s, want req-123", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/health")
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not applied")
	}
}

func TestSamplingRoutesMounted(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"clientId":"client-1","fiscalYear":2025,"seed":1}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/sampling/plans", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestSamplingSaveWithoutPlanStore(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"clientId":"client-1","fiscalYear":2025,"seed":1,"save":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/sampling/plans", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	// WithPopulationStore leaves planStore nil, so save must fail cleanly.
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/v1/unknown")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}
