package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/brightcart/support-assistant/internal/kv"
	"github.com/brightcart/support-assistant/internal/ratelimit"
	"github.com/brightcart/support-assistant/pkg/logger"
)

func newAdmission(t *testing.T, sessionLimit int) func(http.Handler) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	store := kv.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	limiter := ratelimit.New(store, sessionLimit, 1000, time.Minute, logger.NewNop())
	return Admission(limiter, logger.NewNop())
}

func chatBody(sessionID string) *strings.Reader {
	return strings.NewReader(`{"sessionId":"` + sessionID + `","message":"hi"}`)
}

func TestAdmissionMissingSessionID(t *testing.T) {
	mw := newAdmission(t, 10)
	called := false
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestAdmissionAllowsAndSetsHeaders(t *testing.T) {
	mw := newAdmission(t, 10)
	var gotBody string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody("s1")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "9", rec.Header().Get("X-RateLimit-Session-Remaining"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Session-Reset"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Global-Remaining"))

	// The body must be restored for the handler after the peek.
	require.Contains(t, gotBody, `"sessionId":"s1"`)
}

func TestAdmissionDenies(t *testing.T) {
	mw := newAdmission(t, 1)
	calls := 0
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody("s1")))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody("s1")))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Session-Remaining"))
	require.Contains(t, rec.Body.String(), "Session rate limit exceeded")
	require.Equal(t, 1, calls)
}
