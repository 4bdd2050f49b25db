package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPMetrics_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/indexers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/indexers/"+id, nil))
	}

	got := promtest.ToFloat64(metrics.requestsTotal.WithLabelValues(http.MethodGet, "/indexers/{id}", "404"))
	if got != 3 {
		t.Errorf("expected 3 requests under the route pattern, got %v", got)
	}
	if n := promtest.CollectAndCount(metrics.requestsTotal); n != 1 {
		t.Errorf("expected a single label set, got %d", n)
	}
}

func TestLogger_LogsServerErrorsAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Use(Logger(zap.New(core)))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("unexpected levels: %s, %s", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["status"] != int64(500) {
		t.Errorf("expected status field 500, got %v", entries[1].ContextMap()["status"])
	}
}

func TestRateLimiter(t *testing.T) {
	handler := RateLimiter(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["success"] != false {
		t.Errorf("expected error envelope, got %v", body)
	}
}
