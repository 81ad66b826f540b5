package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsGet(t *testing.T, c *CORS, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := c.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/checks", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowAllEchoesOrigin(t *testing.T) {
	rec := corsGet(t, NewCORSMiddleware(), http.MethodGet, "https://status.example.com")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://status.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("expected Vary: Origin on a CORS response")
	}
}

func TestCORSAllowlistFiltersOrigins(t *testing.T) {
	c := NewCORSMiddleware("https://dashboard.example.com")

	allowed := corsGet(t, c, http.MethodGet, "https://dashboard.example.com")
	if allowed.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected allowlisted origin to receive CORS headers")
	}

	denied := corsGet(t, c, http.MethodGet, "https://evil.example.com")
	if denied.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected unknown origin to receive no CORS headers")
	}
	if denied.Code != http.StatusOK {
		t.Errorf("denied origin should still reach the handler, got %d", denied.Code)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	rec := corsGet(t, NewCORSMiddleware(), http.MethodOptions, "https://status.example.com")

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected allowed methods on preflight response")
	}
}
