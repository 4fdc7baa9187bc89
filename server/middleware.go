package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/safemed/safemed-api/config"
	"github.com/safemed/safemed-api/logging"
	"github.com/safemed/safemed-api/metrics"
)

// Token bucket parameters shared by every client.
const (
	bucketRate     = 3    // tokens refilled per second
	bucketCapacity = 1000 // burst budget per client
)

// Per-endpoint token costs. Assessments price in the rule evaluation they
// trigger; reads stay cheap; index and metrics are free.
var tokenCosts = map[string]int64{
	"/":                   0,
	"/metrics":            0, // scrapers poll on a tight interval
	"/health":             5,
	"/api/v1/drugs":       10,
	"/api/v1/assess":      100,
	"/api/v1/quick-check": 50,
}

const (
	drugInfoTokenCost = 20
	defaultTokenCost  = 20
)

// RealIPMiddleware replaces RemoteAddr with the client IP announced by the
// reverse proxy
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Only the first hop is the client, the rest are proxies
			first, _, _ := strings.Cut(xff, ",")
			r.RemoteAddr = strings.TrimSpace(first)
		}
		next.ServeHTTP(w, r)
	})
}

// BlockDirectAccessMiddleware rejects requests that bypassed the reverse
// proxy. Requests carrying proxy headers pass through; bare requests are
// accepted only from localhost so development keeps working.
func BlockDirectAccessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Real-IP") != "" || r.Header.Get("X-Forwarded-For") != "" {
			next.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// RemoteAddr came without a port, treat the whole value as the host
			host = r.RemoteAddr
		}

		if host == "127.0.0.1" || host == "::1" || host == "localhost" {
			next.ServeHTTP(w, r)
			return
		}

		logging.Warn("Direct access blocked", "remote_addr", r.RemoteAddr, "user_agent", r.Header.Get("User-Agent"))
		http.Error(w, "Direct access not allowed", http.StatusForbidden)
	})
}

// RequestSizeMiddleware rejects oversized bodies and header blocks before
// they reach a handler
func RequestSizeMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if length := declaredBodySize(r); length > cfg.MaxRequestBody {
				logging.Warn("Request body too large",
					"content_length", length,
					"max_allowed", cfg.MaxRequestBody,
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent())

				respondWithJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error": fmt.Sprintf("Request body too large. Maximum allowed size is %d bytes", cfg.MaxRequestBody),
				})
				return
			}

			if size := headerBlockSize(r); size > cfg.MaxHeaderSize {
				logging.Warn("Request headers too large",
					"header_size", size,
					"max_allowed", cfg.MaxHeaderSize,
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent())

				respondWithJSON(w, http.StatusRequestHeaderFieldsTooLarge, map[string]string{
					"error": fmt.Sprintf("Request headers too large. Maximum allowed size is %d bytes", cfg.MaxHeaderSize),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// declaredBodySize reads the Content-Length header. Absent or unparseable
// values count as zero, which never exceeds the cap.
func declaredBodySize(r *http.Request) int64 {
	contentLength := r.Header.Get("Content-Length")
	if contentLength == "" {
		return 0
	}

	length, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil {
		return 0
	}
	return length
}

// headerBlockSize estimates the total size of all header keys and values
func headerBlockSize(r *http.Request) int64 {
	var size int64
	for key, values := range r.Header {
		size += int64(len(key))
		for _, value := range values {
			size += int64(len(value))
		}
	}
	return size
}

// RateLimiter tracks one token bucket per client IP
type RateLimiter struct {
	clients map[string]*ratelimit.Bucket
	mu      sync.RWMutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*ratelimit.Bucket),
	}
}

// getBucket returns the client's bucket, creating it on first sight
func (rl *RateLimiter) getBucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[clientIP]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// Another request may have created the bucket while we upgraded the lock
	if bucket, exists = rl.clients[clientIP]; !exists {
		bucket = ratelimit.NewBucketWithRate(bucketRate, bucketCapacity)
		rl.clients[clientIP] = bucket
	}
	return bucket
}

// startCleanup evicts idle clients in the background. A bucket back at full
// capacity has not been touched for at least capacity/rate seconds.
func (rl *RateLimiter) startCleanup() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			rl.mu.Lock()
			for ip, bucket := range rl.clients {
				if bucket.Available() == bucket.Capacity() {
					delete(rl.clients, ip)
				}
			}
			metrics.RateLimiterBucketsTotal.Set(float64(len(rl.clients)))
			rl.mu.Unlock()
		}
	}()
}

var globalRateLimiter = NewRateLimiter()

func init() {
	globalRateLimiter.startCleanup()
}

// getTokenCost prices a request by its path
func getTokenCost(r *http.Request) int64 {
	path := r.URL.Path

	if cost, ok := tokenCosts[path]; ok {
		return cost
	}

	// Single drug lookups under /api/v1/drugs/{name} share one price
	if rest, ok := strings.CutPrefix(path, "/api/v1/drugs/"); ok && rest != "" {
		return drugInfoTokenCost
	}

	return defaultTokenCost
}

// RateLimitHandler deducts the request's token cost from the client's bucket
// and rejects the request with 429 once the bucket runs dry
func RateLimitHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket := globalRateLimiter.getBucket(r.RemoteAddr)
		tokenCost := getTokenCost(r)

		// Budget headers go out on every response, limited or not
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(bucketCapacity))
		w.Header().Set("X-RateLimit-Rate", strconv.Itoa(bucketRate))

		if bucket.TakeAvailable(tokenCost) < tokenCost {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))

		next.ServeHTTP(w, r)
	})
}

// respondWithJSON writes payload with the given status. Encoding failures are
// only logged, the status line is already on the wire.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logging.Error("Failed to encode JSON response", "error", err)
		}
	}
}
