package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/metrics"
)

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		want      string
	}{
		{name: "single forwarded", forwarded: "203.0.113.1", want: "203.0.113.1"},
		{name: "forwarded list uses first", forwarded: "203.0.113.1, 198.51.100.2", realIP: "192.0.2.9", want: "203.0.113.1"},
		{name: "forwarded wins over real ip", forwarded: "2001:db8::1", realIP: "192.0.2.9", want: "2001:db8::1"},
		{name: "empty first forwarded entry", forwarded: " ,198.51.100.2", want: "0.0.0.0"},
		{name: "real ip", realIP: "192.0.2.9", want: "192.0.2.9"},
		{name: "no headers", want: "0.0.0.0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/generateImages", nil)
			req.RemoteAddr = "10.0.0.1:4444"
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIdentity(req); got != tc.want {
				t.Fatalf("ClientIdentity() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(zerolog.New(&buf), "")

	h := m.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Fatalf("log line missing request id: %s", buf.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("no request id generated")
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	m := NewMiddleware(zerolog.Nop(), "https://blinkshot.example")
	called := false
	h := m.CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/generateImages", nil))

	if called {
		t.Fatal("preflight reached the handler")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://blinkshot.example" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestLoggerMiddlewareLabelsUnknownPathsOnce(t *testing.T) {
	router := NewRouter(NewImageHandler(nil), NewMiddleware(zerolog.Nop(), "*"))

	unmatchedBefore := testutil.ToFloat64(metrics.ResponseCodes.WithLabelValues(unmatchedRoute, "404"))
	seriesBefore := testutil.CollectAndCount(metrics.ResponseCodes)

	for _, path := range []string{"/x1", "/x2", "/wp-login.php"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s status = %d, want 404", path, rec.Code)
		}
	}

	if got := testutil.CollectAndCount(metrics.ResponseCodes); got != seriesBefore {
		t.Fatalf("series = %d, want %d: unknown paths created new series", got, seriesBefore)
	}
	if got := testutil.ToFloat64(metrics.ResponseCodes.WithLabelValues(unmatchedRoute, "404")); got != unmatchedBefore+3 {
		t.Fatalf("unmatched 404 count = %v, want %v", got, unmatchedBefore+3)
	}
}
