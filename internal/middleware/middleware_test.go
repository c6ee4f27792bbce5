package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRateLimiterBlocksExcessRequests(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	defer limiter.Close()
	handler := NewRateLimiter(limiter, discard()).Limit(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/views/home", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/views/home", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body["error"], "Too many requests")

	// another address has its own bucket
	req = httptest.NewRequest(http.MethodGet, "/api/views/home", nil)
	req.RemoteAddr = "10.0.0.2:12345"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	handler := NewRateLimiter(failingLimiter{}, discard()).Limit(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type recordingLimiter struct{ ids []string }

func (l *recordingLimiter) Allow(_ context.Context, id string) (bool, error) {
	l.ids = append(l.ids, id)
	return true, nil
}

func TestRateLimiterIdentifiesClient(t *testing.T) {
	limiter := &recordingLimiter{}
	handler := ClientID(false)(NewRateLimiter(limiter, discard()).Limit(okHandler))

	clientID := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: clientID})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	NewRateLimiter(limiter, discard()).Limit(okHandler).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"client:" + clientID, "ip:203.0.113.7"}, limiter.ids)
}

func TestClientIDIssuesCookie(t *testing.T) {
	var seen string
	handler := ClientID(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClientIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookieName, cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestClientIDKeepsValidCookie(t *testing.T) {
	var seen string
	handler := ClientID(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClientIDFromContext(r.Context())
	}))

	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: existing})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, existing, seen)
	assert.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "not-a-uuid"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", seen)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestLoggerWritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	var requestID string
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ = GetRequestIDFromContext(r.Context())
		http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/movie/abc", nil))

	require.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get("X-Request-ID"))
	line := buf.String()
	assert.Contains(t, line, "GET /api/movie/abc 404")
	assert.Contains(t, line, requestID)
}

func TestLoggerKeepsIncomingRequestID(t *testing.T) {
	handler := Logger(discard())(okHandler)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, incoming, rec.Header().Get("X-Request-ID"))
}
