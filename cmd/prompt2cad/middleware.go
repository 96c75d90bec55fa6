package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shalynjjj/prompt2CAD/api/handlers"
	"github.com/shalynjjj/prompt2CAD/config"
	"github.com/shalynjjj/prompt2CAD/internal/ctxkeys"
	"github.com/shalynjjj/prompt2CAD/types"
)

// Middleware 类型定义
type Middleware func(http.Handler) http.Handler

// Chain 将多个中间件串联，第一个位于最外层
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// writeJSONError writes the handlers envelope for middleware rejections.
func writeJSONError(w http.ResponseWriter, status int, code types.ErrorCode, message string) {
	handlers.WriteJSON(w, status, handlers.Response{
		Success:   false,
		Error:     &handlers.ErrorInfo{Code: string(code), Message: message},
		Timestamp: time.Now(),
	})
}

// Recovery panic 恢复中间件
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					writeJSONError(w, http.StatusInternalServerError, types.ErrInternalError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID keeps a client supplied X-Request-ID or generates one, and puts it
// on the context as both request and fallback trace id.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 128 {
				id = "req-" + uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := types.WithRequestID(r.Context(), id)
			if _, ok := types.TraceID(ctx); !ok {
				ctx = types.WithTraceID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders adds common security response headers to every request.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			if !strings.HasPrefix(r.URL.Path, "/static/") {
				w.Header().Set("Content-Security-Policy", "default-src 'self'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Router resolves the route pattern a request will be served by.
type Router interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// routeLabel returns the matched pattern without its method prefix.
func routeLabel(router Router, r *http.Request) string {
	_, p := router.Handler(r)
	if p == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(p, " "); ok {
		return path
	}
	return p
}

// Tracing starts a server span per request, continuing any incoming trace
// context, and replaces the fallback trace id with the span's.
func Tracing(tp trace.TracerProvider, router Router) Middleware {
	tracer := tp.Tracer("prompt2cad/http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+routeLabel(router, r),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				ctx = types.WithTraceID(ctx, sc.TraceID().String())
			}

			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.response.status_code", rw.StatusCode))
		})
	}
}

// RequestLogger 请求日志中间件
func RequestLogger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.StatusCode),
				zap.Int("bytes", rw.Bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if id, ok := types.RequestID(r.Context()); ok {
				fields = append(fields, zap.String("request_id", id))
			}
			if rw.StatusCode >= http.StatusInternalServerError {
				logger.Warn("request", fields...)
				return
			}
			logger.Info("request", fields...)
		})
	}
}

// HTTPRecorder receives per-request metrics.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64)
}

// Metrics records request duration and sizes, labelled by the matched route
// pattern so session ids never become label values.
func Metrics(rec HTTPRecorder, router Router) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			size := r.ContentLength
			if size < 0 {
				size = 0
			}
			rec.RecordHTTPRequest(r.Method, routeLabel(router, r), rw.StatusCode, time.Since(start), size, int64(rw.Bytes))
		})
	}
}

// CORS 跨域中间件
// 未配置来源时不设置任何 CORS 头，跨域预检直接拒绝。
func CORS(allowedOrigins []string) Middleware {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, listed := originSet[origin]
			if origin != "" && (allowAll || listed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			} else if origin != "" && r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.Method == http.MethodOptions && origin != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// RateLimiter: 基于客户端 IP 的令牌桶，参数可热更新
// =============================================================================

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	visitors map[string]*visitor
	idle     time.Duration
	logger   *zap.Logger
}

// NewRateLimiter creates a limiter. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		idle:     3 * time.Minute,
		logger:   logger,
	}
}

// SetLimit changes the rate for existing and future clients.
func (l *RateLimiter) SetLimit(rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = rate.Limit(rps)
	l.burst = burst
	for _, v := range l.visitors {
		v.limiter.SetLimit(l.rps)
		v.limiter.SetBurst(burst)
	}
	l.logger.Info("rate limit updated", zap.Float64("rps", rps), zap.Int("burst", burst))
}

// Allow reports whether the client may proceed.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	if l.rps <= 0 {
		l.mu.Unlock()
		return true
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()
	return v.limiter.Allow()
}

// Len returns the number of tracked clients.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Sweep drops clients idle longer than the idle window.
func (l *RateLimiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, ip)
		}
	}
}

// Run sweeps idle clients every minute until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// Middleware rejects over-limit clients with 429.
func (l *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, types.ErrRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// =============================================================================
// Authenticate: API Key 或 JWT Bearer
// =============================================================================

// KeySet is a hot-swappable set of API keys.
type KeySet struct {
	keys atomic.Pointer[map[string]struct{}]
}

// NewKeySet creates a KeySet holding keys.
func NewKeySet(keys []string) *KeySet {
	ks := &KeySet{}
	ks.Set(keys)
	return ks
}

// Set replaces the accepted keys.
func (ks *KeySet) Set(keys []string) {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			m[k] = struct{}{}
		}
	}
	ks.keys.Store(&m)
}

// Empty reports whether no key is configured.
func (ks *KeySet) Empty() bool {
	return len(*ks.keys.Load()) == 0
}

// Contains reports whether key is accepted.
func (ks *KeySet) Contains(key string) bool {
	if key == "" {
		return false
	}
	_, ok := (*ks.keys.Load())[key]
	return ok
}

// AuthOptions configures Authenticate.
type AuthOptions struct {
	Keys          *KeySet
	JWT           config.JWTConfig
	AllowQueryKey bool
	// SkipPaths are matched exactly; SkipPrefixes by prefix.
	SkipPaths    []string
	SkipPrefixes []string
}

// Authenticate accepts a request carrying a configured X-API-Key (or api_key
// query parameter when allowed) or a valid HS256 bearer token. With neither
// API keys nor a JWT secret configured every request passes.
func Authenticate(opts AuthOptions, logger *zap.Logger) Middleware {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}
	if opts.Keys == nil {
		opts.Keys = NewKeySet(nil)
	}

	var parser *jwt.Parser
	secret := []byte(opts.JWT.Secret)
	if opts.JWT.Enabled() {
		parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired()}
		if opts.JWT.Issuer != "" {
			parserOpts = append(parserOpts, jwt.WithIssuer(opts.JWT.Issuer))
		}
		if opts.JWT.Audience != "" {
			parserOpts = append(parserOpts, jwt.WithAudience(opts.JWT.Audience))
		}
		parser = jwt.NewParser(parserOpts...)
	}
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range opts.SkipPrefixes {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if opts.Keys.Empty() && parser == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" && opts.AllowQueryKey {
				key = r.URL.Query().Get("api_key")
			}
			if opts.Keys.Contains(key) {
				next.ServeHTTP(w, r)
				return
			}

			if parser != nil {
				if raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
					token, err := parser.Parse(raw, keyFunc)
					if err == nil && token.Valid {
						if sub, _ := token.Claims.GetSubject(); sub != "" {
							logger.Debug("jwt accepted", zap.String("subject", sub))
						}
						next.ServeHTTP(w, r)
						return
					}
					logger.Debug("jwt rejected", zap.Error(err))
					writeJSONError(w, http.StatusUnauthorized, types.ErrUnauthorized, "invalid or expired token")
					return
				}
			}

			writeJSONError(w, http.StatusUnauthorized, types.ErrUnauthorized, "invalid or missing credentials")
		})
	}
}

// PromptVersion tags requests with the configured CAD prompt version.
func PromptVersion(version func() string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v := version(); v != "" {
				r = r.WithContext(ctxkeys.WithPromptVersion(r.Context(), v))
			}
			next.ServeHTTP(w, r)
		})
	}
}
