package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

func TestLoggingRecordsRoutePatternAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api-test", Output: &buf})

	r := chi.NewRouter()
	r.Use(RequestID(logg), Logging(logg))
	r.Post("/api/v1/investments/{id}/cancel", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/investments/7d2c/cancel", nil)
	req.Header.Set(requestIDHeader, "req-abc")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	out := buf.String()
	for _, want := range []string{
		`"route":"/api/v1/investments/{id}/cancel"`,
		`"status":409`,
		`"request_id":"req-abc"`,
		`"message":"request completed"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestLoggingWarnsOnServerError(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api-test", Output: &buf})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("expected warn entry, got %s", buf.String())
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	cases := []struct {
		in   string
		kept bool
	}{
		{"req-123", true},
		{"", false},
		{"has space", false},
		{strings.Repeat("x", 200), false},
		{"line\nbreak", false},
	}
	for _, tc := range cases {
		in, kept := tc.in, tc.kept
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if in != "" {
			req.Header[requestIDHeader] = []string{in}
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		got := resp.Header().Get(requestIDHeader)
		if got == "" {
			t.Fatalf("missing request id for %q", in)
		}
		if (got == in) != kept {
			t.Fatalf("input %q: got %q, kept=%v", in, got, kept)
		}
	}
}
