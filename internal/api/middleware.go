// CLAUDE:SUMMARY HTTP middleware — security headers, wallet auth with identity, per-caller rate limiter, request instrumentation
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hazyhaar/proofmine/internal/auth"
	"github.com/hazyhaar/proofmine/internal/db"
	"github.com/hazyhaar/proofmine/internal/metrics"
	"github.com/hazyhaar/proofmine/pkg/audit"
)

// SecurityHeaders wraps a handler with standard security headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the bearer token to a wallet, auto-creates the user
// and stores the identity on the request context.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := a.auth.ExtractClaims(r)
		if claims == nil {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		wallet, err := claims.Wallet()
		if err != nil {
			jsonError(w, "token carries no usable wallet address", http.StatusUnauthorized)
			return
		}
		user, err := a.store.GetOrCreateUser(r.Context(), wallet)
		if err != nil {
			storeError(w, err, "user")
			return
		}
		if slot, ok := r.Context().Value(callerKey{}).(*string); ok {
			*slot = user.ID
		}
		ctx := auth.WithIdentity(r.Context(), auth.Identity{WalletAddress: wallet, UserID: user.ID})
		ctx = audit.WithTransport(ctx, "http")
		next(w, r.WithContext(ctx))
	}
}

// RateLimiter tracks request counts per key within a rolling window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateBucket
	limit   int
	window  time.Duration
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a limiter with the given request limit per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
	}
}

// Allow returns true if the request from key is within the rate limit.
// Expired buckets are swept opportunistically.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, ok := rl.clients[key]
	if !ok || now.After(bucket.resetAt) {
		if len(rl.clients) > 4096 {
			for k, b := range rl.clients {
				if now.After(b.resetAt) {
					delete(rl.clients, k)
				}
			}
		}
		rl.clients[key] = &rateBucket{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	bucket.count++
	return bucket.count <= rl.limit
}

// RateLimitMiddleware wraps a handler with rate limiting (429 Too Many Requests).
// Authenticated callers are keyed by wallet, anonymous ones by IP.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if id, ok := auth.FromContext(r.Context()); ok {
			key = id.WalletAddress
		}
		if !rl.Allow(key) {
			jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = fwd
	}
	// Strip port from RemoteAddr (e.g. "127.0.0.1:54321" -> "127.0.0.1")
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}

// callerKey holds a *string that requireAuth fills with the user id, so
// Instrument can attribute the request after the handler returns.
type callerKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument records every request in the prometheus collectors and, when
// mdb is non-nil, in the SQLite request ledger. Routes are labelled by
// their mux pattern to keep cardinality bounded.
func Instrument(mdb *db.MetricsDB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		var userID string
		r = r.WithContext(context.WithValue(r.Context(), callerKey{}, &userID))
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		if mdb != nil {
			mdb.RecordHTTPRequest(r.Method, route, rec.status, int(elapsed.Milliseconds()), userID)
		}
	})
}
