package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shalynjjj/prompt2CAD/api/handlers"
	"github.com/shalynjjj/prompt2CAD/config"
	"github.com/shalynjjj/prompt2CAD/internal/ctxkeys"
	"github.com/shalynjjj/prompt2CAD/types"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorInfo {
	t.Helper()
	var resp handlers.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	return *resp.Error
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))

	w = serve(SecurityHeaders()(okHandler), httptest.NewRequest(http.MethodGet, "/static/meshes/a.stl", nil))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRequestID(t *testing.T) {
	var gotReq, gotTrace string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq, _ = types.RequestID(r.Context())
		gotTrace, _ = types.TraceID(r.Context())
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), gotReq)
	assert.Equal(t, gotReq, gotTrace)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "client-1")
	w = serve(h, r)
	assert.Equal(t, "client-1", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-1", gotReq)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	serve(Chain(okHandler, mark("a"), mark("b"), mark("c")), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInternalError), decodeError(t, w).Code)
}

func TestTracing_SetsTraceID(t *testing.T) {
	mux := http.NewServeMux()
	var traceID string
	mux.HandleFunc("GET /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = types.TraceID(r.Context())
	})
	h := Chain(mux, RequestID(), Tracing(noop.NewTracerProvider(), mux))
	r := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	r.Header.Set("X-Request-ID", "req-7")
	serve(h, r)
	// The noop provider yields no trace id, so the request id stays.
	assert.Equal(t, "req-7", traceID)
}

type httpRecord struct {
	method, path string
	status       int
	respBytes    int64
}

type fakeHTTPRecorder struct {
	mu      sync.Mutex
	records []httpRecord
}

func (f *fakeHTTPRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration, _, resp int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, httpRecord{method, path, status, resp})
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("hello"))
	})
	rec := &fakeHTTPRecorder{}
	h := Metrics(rec, mux)(mux)

	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-123", nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, rec.records, 2)
	assert.Equal(t, httpRecord{"GET", "/api/v1/sessions/{id}", http.StatusAccepted, 5}, rec.records[0])
	assert.Equal(t, "unmatched", rec.records[1].path)
	assert.Equal(t, http.StatusNotFound, rec.records[1].status)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := serve(h, r)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = serve(h, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(CORS(nil)(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(1, 2, zap.NewNop())
	h := l.Middleware()(okHandler)

	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = ip + ":1234"
		return r
	}

	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.1")).Code)
	w := serve(h, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, string(types.ErrRateLimited), decodeError(t, w).Code)

	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.2")).Code, "buckets are per client")

	l.SetLimit(1000, 100)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.1")).Code)

	assert.Equal(t, 2, l.Len())
	l.Sweep(time.Now().Add(10 * time.Minute))
	assert.Equal(t, 0, l.Len())
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, 0, zap.NewNop())
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("x"))
	}
	assert.Equal(t, 0, l.Len())
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthenticate(t *testing.T) {
	keys := NewKeySet([]string{"k1"})
	h := Authenticate(AuthOptions{
		Keys:          keys,
		JWT:           config.JWTConfig{Secret: "s3cret", Issuer: "prompt2cad"},
		AllowQueryKey: true,
		SkipPaths:     []string{"/health"},
		SkipPrefixes:  []string{"/static/"},
	}, zap.NewNop())(okHandler)

	valid := signToken(t, "s3cret", jwt.MapClaims{
		"sub": "user-1",
		"iss": "prompt2cad",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, "s3cret", jwt.MapClaims{
		"iss": "prompt2cad",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, "other", jwt.MapClaims{
		"iss": "prompt2cad",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"skip path", "/health", nil, http.StatusOK},
		{"skip prefix", "/static/meshes/a.stl", nil, http.StatusOK},
		{"missing", "/api/v1/extrude", nil, http.StatusUnauthorized},
		{"header key", "/api/v1/extrude", map[string]string{"X-API-Key": "k1"}, http.StatusOK},
		{"wrong key", "/api/v1/extrude", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"query key", "/api/v1/extrude?api_key=k1", nil, http.StatusOK},
		{"valid jwt", "/api/v1/extrude", map[string]string{"Authorization": "Bearer " + valid}, http.StatusOK},
		{"expired jwt", "/api/v1/extrude", map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized},
		{"foreign jwt", "/api/v1/extrude", map[string]string{"Authorization": "Bearer " + wrongKey}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			w := serve(h, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, string(types.ErrUnauthorized), decodeError(t, w).Code)
			}
		})
	}

	keys.Set([]string{"k2"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/extrude", nil)
	r.Header.Set("X-API-Key", "k1")
	assert.Equal(t, http.StatusUnauthorized, serve(h, r).Code, "rotated key is rejected")
	r.Header.Set("X-API-Key", "k2")
	assert.Equal(t, http.StatusOK, serve(h, r).Code)
}

func TestAuthenticate_OpenWithoutCredentials(t *testing.T) {
	keys := NewKeySet(nil)
	h := Authenticate(AuthOptions{Keys: keys}, zap.NewNop())(okHandler)
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/extrude", nil)).Code)

	keys.Set([]string{"k"})
	assert.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/extrude", nil)).Code)
}

func TestAuthenticate_QueryKeyDisallowed(t *testing.T) {
	h := Authenticate(AuthOptions{Keys: NewKeySet([]string{"k1"})}, zap.NewNop())(okHandler)
	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/x?api_key=k1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPromptVersion(t *testing.T) {
	var got string
	var ok bool
	h := PromptVersion(func() string { return "v3" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = ctxkeys.PromptVersion(r.Context())
	}))
	serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/cad/chat", nil))
	assert.True(t, ok)
	assert.Equal(t, "v3", got)

	h = PromptVersion(func() string { return "" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = ctxkeys.PromptVersion(r.Context())
	}))
	serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/cad/chat", nil))
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
}
