package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/liamwears/flowkh/internal/services"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// upstream fakes the catalog API by path
type upstream struct {
	mu     sync.Mutex
	routes map[string]roundTripFunc
	seen   []*url.URL
}

func newUpstream() *upstream {
	u := &upstream{routes: make(map[string]roundTripFunc)}
	u.json("/genre/movie/list", 200, map[string]any{"genres": []map[string]any{{"id": 28, "name": "Action"}}})
	u.json("/genre/tv/list", 200, map[string]any{"genres": []map[string]any{{"id": 18, "name": "Drama"}}})
	return u
}

func response(status int, body any) *http.Response {
	raw, _ := json.Marshal(body)
	header := make(http.Header)
	header.Set("Content-Type", "application/json;charset=utf-8")
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(bytes.NewReader(raw))}
}

func (u *upstream) json(path string, status int, body any) {
	u.routes[path] = func(*http.Request) (*http.Response, error) {
		return response(status, body), nil
	}
}

func (u *upstream) handle(path string, fn roundTripFunc) {
	u.routes[path] = fn
}

func (u *upstream) requests() []*url.URL {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*url.URL(nil), u.seen...)
}

func (u *upstream) client() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		u.mu.Lock()
		u.seen = append(u.seen, req.URL)
		route, ok := u.routes[req.URL.Path]
		u.mu.Unlock()

		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		if !ok {
			return response(http.StatusNotFound, map[string]any{"status_message": "not found"}), nil
		}
		return route(req)
	})}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newCatalogMux(u *upstream) *http.ServeMux {
	tmdb := services.NewTMDBService(services.TMDBConfig{
		APIKey:       "test-key",
		BaseURL:      "https://tmdb.test",
		ImageBaseURL: "https://img.test/t/p",
		HTTPClient:   u.client(),
	})
	catalog := services.NewCatalogService(tmdb, nil, nil, discardLogger())

	mux := http.NewServeMux()
	NewCatalogHandler(catalog, services.NewSuperseder(), discardLogger()).Register(mux, func(h http.Handler) http.Handler { return h })
	return mux
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// memoryCache is a ResponseCache kept in a map
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("redis: connection refused")
	}
	body, ok := c.entries[key]
	return body, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = body
	return nil
}

type downPinger struct{}

func (downPinger) Health(context.Context) error {
	return errors.New("dial tcp: connection refused")
}
