package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	expected := map[string]string{
		"X-Frame-Options":        "deny",
		"X-Content-Type-Options": "nosniff",
		"X-XSS-Protection":       "1; mode=block",
	}
	for k, v := range expected {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("Expected %s to be %q, got %q", k, v, got)
		}
	}
}

func TestNoCache(t *testing.T) {
	rec := httptest.NewRecorder()
	NoCache(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Expected no-cache, got %q", got)
	}
	if vary := rec.Header().Values("Vary"); len(vary) != 2 {
		t.Errorf("Expected 2 Vary values, got %v", vary)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	var fromCtx *zerolog.Logger
	h := chimw.RequestID(RequestLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	if fromCtx == nil || fromCtx.GetLevel() == zerolog.Disabled {
		t.Fatal("Expected a logger in the request context")
	}

	out := buf.String()
	for _, want := range []string{`"status":418`, `"method":"GET"`, `"path":"/api/posts"`, `"req_id"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log line to contain %s, got %s", want, out)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(context.Background(), 2, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Limit(okHandler)
	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, rec.Code)
		}
	}

	rec := do("10.0.0.1:5555")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Too many requests"`) {
		t.Errorf("Expected JSON error body, got %s", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}

	if rec := do("10.0.0.2:1234"); rec.Code != http.StatusOK {
		t.Errorf("Expected other IP to pass, got %d", rec.Code)
	}

	now = now.Add(time.Minute + time.Second)
	if rec := do("10.0.0.1:1234"); rec.Code != http.StatusOK {
		t.Errorf("Expected new window to pass, got %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(context.Background(), 1, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	rl.cleanup()

	if _, ok := rl.visitors["a"]; ok {
		t.Error("Expected stale visitor to be evicted")
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Error("Expected fresh visitor to be kept")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(context.Background(), 0, time.Minute)
	for i := 0; i < 100; i++ {
		if ok, _ := rl.Allow("x"); !ok {
			t.Fatal("Expected disabled limiter to allow every request")
		}
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.GaugeFunc("sse_clients", "Connected event streams.", func() float64 { return 3 })
	m.ObservePostChange("post.created")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`warroom_http_requests_total{code="404",method="GET",route="/api/posts/{id}"} 1`,
		`warroom_post_changes_total{kind="post.created"} 1`,
		`warroom_sse_clients 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
}
