package chi

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/db"
	"github.com/kailas-cloud/biorag/internal/domain"
)

const rateLimitKeyPrefix = domain.KeyPrefix + "ratelimit:"

// RateLimitMiddleware enforces a fixed-window request limit per client
// IP, backed by the shared KV store so all replicas count together.
// limit <= 0 disables the limiter. Store errors fail open: a broken
// counter must not take the query path down with it.
func RateLimitMiddleware(kv db.KVStore, limit int, window time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := rateLimitKeyPrefix + clientIP(r)

			count, err := kv.IncrBy(r.Context(), key, 1)
			if err != nil {
				logger.Warn("rate limit counter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			// First hit in the window starts the clock. NX keeps a
			// racing replica from extending an existing window.
			if count == 1 {
				if err := kv.Expire(r.Context(), key, window, true); err != nil {
					logger.Warn("rate limit window not set", zap.Error(err))
				}
			}

			if count > int64(limit) {
				writeError(w, http.StatusTooManyRequests, CodeRateLimited,
					fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the requester's address, preferring X-Forwarded-For
// set by a trusted proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
