package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/form/submit", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(h, postFrom("192.168.1.1:12345"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, postFrom("10.0.0.1:9999")).Code)
	}

	w := serve(h, postFrom("10.0.0.1:9999"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_Keys(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    RateLimitConfig
		first  func(*http.Request)
		second func(*http.Request)
		want   int
	}{
		{
			name:   "different IPs are independent",
			first:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			second: func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1234" },
			want:   http.StatusOK,
		},
		{
			name:   "same IP, different port",
			first:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			second: func(r *http.Request) { r.RemoteAddr = "10.0.0.1:5678" },
			want:   http.StatusTooManyRequests,
		},
		{
			name: "first forwarded hop",
			first: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.1:4444"
				r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
			},
			second: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.2:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
			},
			want: http.StatusTooManyRequests,
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-Session")
			}},
			first:  func(r *http.Request) { r.Header.Set("X-Session", "a") },
			second: func(r *http.Request) { r.Header.Set("X-Session", "b") },
			want:   http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.Max, cfg.Window = 1, time.Minute
			h := RateLimit(cfg)(okHandler())

			req := postFrom("")
			tc.first(req)
			require.Equal(t, http.StatusOK, serve(h, req).Code)

			req = postFrom("")
			tc.second(req)
			assert.Equal(t, tc.want, serve(h, req).Code)
		})
	}
}

func TestRateLimit_SkipSafeMethods(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Skip: SkipSafeMethods})(okHandler())

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1"
		w := serve(h, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}

	assert.Equal(t, http.StatusOK, serve(h, postFrom("10.0.0.1:1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, postFrom("10.0.0.1:1")).Code)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := l.take("k", start)
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(time.Second))
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(2*time.Second))
	require.False(t, ok)

	// A quarter into the next window, three quarters of the previous count
	// still weigh in: 1.5 used, then 2.47.
	_, _, ok = l.take("k", start.Add(75*time.Second))
	assert.True(t, ok)
	_, _, ok = l.take("k", start.Add(76*time.Second))
	assert.False(t, ok)

	l.evict(start.Add(5 * time.Minute))
	assert.Empty(t, l.windows)
}
