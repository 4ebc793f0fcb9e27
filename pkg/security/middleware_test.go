package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Role", r.Header.Get("X-Role-Name"))
		w.WriteHeader(http.StatusOK)
	})
}

func testCfg() SecConfig {
	return SecConfig{
		RPS:          100,
		Burst:        100,
		BackendKeys:  map[string]struct{}{"bk": {}},
		FrontendKeys: map[string]struct{}{"fk": {}},
		AdminKeys:    map[string]struct{}{"ak": {}},
	}
}

func do(t *testing.T, h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRoles(t *testing.T) {
	h := AuthenticateRequestMiddleware(testCfg())(testHandler())

	t.Run("NoKey", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/v1/submissions", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("code = %d, want 401", rec.Code)
		}
	})

	t.Run("UnknownKey", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/v1/submissions", "nope"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("code = %d, want 401", rec.Code)
		}
	})

	t.Run("HealthzWithoutKey", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", rec.Code)
		}
	})

	t.Run("BackendKey", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/v1/submissions", "bk")
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("X-Seen-Role"); got != "backend" {
			t.Fatalf("role = %q, want backend", got)
		}
	})

	t.Run("AdminKey", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/admin/stats", "ak")
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("X-Seen-Role"); got != "admin" {
			t.Fatalf("role = %q, want admin", got)
		}
	})
}

func TestFrontendRestrictions(t *testing.T) {
	h := AuthenticateRequestMiddleware(testCfg())(testHandler())

	allowed := []struct{ method, path string }{
		{http.MethodPost, "/v1/submissions"},
		{http.MethodGet, "/v1/submissions/sub-1"},
		{http.MethodGet, "/v1/submissions/sub-1/timeline"},
		{http.MethodPost, "/v1/rotations/check"},
		{http.MethodGet, "/v1/authorities"},
	}
	for _, c := range allowed {
		if rec := do(t, h, c.method, c.path, "fk"); rec.Code != http.StatusOK {
			t.Fatalf("%s %s = %d, want 200", c.method, c.path, rec.Code)
		}
	}

	blocked := []struct{ method, path string }{
		{http.MethodGet, "/v1/submissions/sub-1/payload"},
		{http.MethodGet, "/admin/stats"},
		{http.MethodPost, "/v1/authorities"},
	}
	for _, c := range blocked {
		if rec := do(t, h, c.method, c.path, "fk"); rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s = %d, want 403", c.method, c.path, rec.Code)
		}
	}
}

func TestIPWhitelist(t *testing.T) {
	cfg := testCfg()
	cfg.IPWhitelist = []string{"10.1.2.3"}
	h := AuthenticateRequestMiddleware(cfg)(testHandler())

	// httptest sets RemoteAddr to 192.0.2.1:1234
	if rec := do(t, h, http.MethodGet, "/v1/submissions", "bk"); rec.Code != http.StatusForbidden {
		t.Fatalf("non-whitelisted ip = %d, want 403", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/submissions", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-API-Key", "bk")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("whitelisted ip = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testCfg()
	cfg.RPS = 1
	cfg.Burst = 2
	h := AuthenticateRequestMiddleware(cfg)(testHandler())

	codes := []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, do(t, h, http.MethodGet, "/v1/submissions", "bk").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests should pass: %v", codes)
	}
	if codes[3] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst: %v", codes)
	}
}

func TestPreflight(t *testing.T) {
	cfg := testCfg()
	cfg.AllowedOrigins = []string{"https://ops.example.com"}
	h := AuthenticateRequestMiddleware(cfg)(testHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/submissions", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://ops.example.com" {
		t.Fatalf("missing CORS header")
	}
}
