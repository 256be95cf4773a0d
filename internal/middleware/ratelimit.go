package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/brightcart/support-assistant/internal/ratelimit"
	"github.com/brightcart/support-assistant/pkg/logger"
)

// maxBodyBytes bounds how much of the request body the admission check will
// buffer while peeking at the session id.
const maxBodyBytes = 64 * 1024

// Admission enforces the session/global rate limit for chat turns. The
// session id is peeked from the JSON body and the body is restored for the
// handler. Internal failures fail open; a missing session id is a caller
// error.
func Admission(limiter *ratelimit.Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				log.Error("admission body read failed, failing open", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var peek struct {
				SessionID string `json:"sessionId"`
			}
			if err := json.Unmarshal(body, &peek); err != nil || peek.SessionID == "" {
				writeJSONError(w, http.StatusBadRequest, "Session ID is required")
				return
			}

			decision := limiter.Check(r.Context(), peek.SessionID)

			w.Header().Set("X-RateLimit-Session-Remaining", strconv.Itoa(decision.Session.Remaining))
			w.Header().Set("X-RateLimit-Session-Reset", decision.Session.ResetAt.UTC().Format(time.RFC3339))
			w.Header().Set("X-RateLimit-Global-Remaining", strconv.Itoa(decision.Global.Remaining))
			w.Header().Set("X-RateLimit-Global-Reset", decision.Global.ResetAt.UTC().Format(time.RFC3339))

			if !decision.Allowed {
				reset := decision.Session.ResetAt
				if decision.Reason == "Global rate limit exceeded" {
					reset = decision.Global.ResetAt
				}
				retryAfter := int(math.Ceil(time.Until(reset).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}

				log.Warn("rate limit exceeded",
					zap.String("session_id", peek.SessionID),
					zap.String("reason", decision.Reason),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"message":    "Rate limit exceeded. Please try again later.",
						"reason":     decision.Reason,
						"retryAfter": retryAfter,
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimit is a coarse per-IP limiter in front of the Redis-backed
// admission check, guarding against clients that never send a session id.
func IPRateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limit exceeded","retryAfter":60}}`))
		}),
	)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": message},
	})
}

