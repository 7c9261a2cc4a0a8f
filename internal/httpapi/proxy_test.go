package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestProcessorProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("API-Key"); got != "secret" {
			t.Errorf("API-Key = %q, want secret", got)
		}
		if r.URL.Path != "/rates/USDC/0.5/NGN" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.RawQuery != "provider=x" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer backend.Close()

	proxy := NewProcessorProxy(backend.URL, "secret", time.Second, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/proxy/paycrest/rates/USDC/0.5/NGN?provider=x", nil)
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("code = %d, want passthrough 418", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "success") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProcessorProxy_Unreachable(t *testing.T) {
	proxy := NewProcessorProxy("http://127.0.0.1:1", "secret", 200*time.Millisecond, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/proxy/paycrest/rates/USDC/0.5/NGN", nil)
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("code = %d, want 502", rec.Code)
	}
}
