package services

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/liamwears/flowkh/internal/cache"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// fakeTMDB answers catalog requests from a path → handler table and counts
// every request it sees
type fakeTMDB struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string]func(*http.Request) (int, any)
	calls  map[string]int
	total  int
}

func newFakeTMDB(t *testing.T) *fakeTMDB {
	f := &fakeTMDB{
		t:      t,
		routes: make(map[string]func(*http.Request) (int, any)),
		calls:  make(map[string]int),
	}
	f.handle("/genre/movie/list", 200, map[string]any{"genres": []map[string]any{
		{"id": 28, "name": "Action"}, {"id": 18, "name": "Drama"}, {"id": 35, "name": "Comedy"},
	}})
	f.handle("/genre/tv/list", 200, map[string]any{"genres": []map[string]any{
		{"id": 18, "name": "Drama"}, {"id": 16, "name": "Animation"}, {"id": 10765, "name": "Sci-Fi & Fantasy"},
	}})
	return f
}

func (f *fakeTMDB) handle(path string, status int, body any) {
	f.routes[path] = func(*http.Request) (int, any) { return status, body }
}

func (f *fakeTMDB) handleFunc(path string, fn func(*http.Request) (int, any)) {
	f.routes[path] = fn
}

func (f *fakeTMDB) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeTMDB) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *fakeTMDB) client() *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			f.mu.Lock()
			f.calls[req.URL.Path]++
			f.total++
			route, ok := f.routes[req.URL.Path]
			f.mu.Unlock()

			if err := req.Context().Err(); err != nil {
				return nil, err
			}
			if !ok {
				f.t.Logf("Unhandled request: %s %s", req.Method, req.URL.String())
				return jsonResponse(http.StatusNotFound, map[string]any{"status_message": "not found"}), nil
			}
			status, body := route(req)
			return jsonResponse(status, body), nil
		}),
	}
}

func jsonResponse(status int, body any) *http.Response {
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		raw, _ = json.Marshal(b)
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(raw)), Header: make(http.Header)}
}

var testNow = time.Date(2024, 7, 4, 15, 30, 0, 0, time.UTC)

func newTestTMDB(f *fakeTMDB) *TMDBService {
	return NewTMDBService(TMDBConfig{
		APIKey:       "test-key",
		BaseURL:      "https://tmdb.test",
		ImageBaseURL: "https://img.test/t/p",
		HTTPClient:   f.client(),
		Now:          func() time.Time { return testNow },
	})
}

func newTestCatalog(f *fakeTMDB) *CatalogService {
	logger := log.New(io.Discard, "", 0)
	return NewCatalogService(newTestTMDB(f), cache.New(cache.DefaultTTL), NewGenreLookup(), logger)
}

// title builds a complete listing record
func title(id int, rating float64, mediaType string) map[string]any {
	record := map[string]any{
		"id":            id,
		"title":         "Title " + strconv.Itoa(id),
		"overview":      "Overview",
		"poster_path":   "/p" + strconv.Itoa(id) + ".jpg",
		"backdrop_path": "/b" + strconv.Itoa(id) + ".jpg",
		"vote_average":  rating,
		"release_date":  "2021-07-04",
		"genre_ids":     []int{28, 18},
	}
	if mediaType != "" {
		record["media_type"] = mediaType
	}
	return record
}

func page(results ...map[string]any) map[string]any {
	if results == nil {
		results = []map[string]any{}
	}
	return map[string]any{"page": 1, "results": results, "total_pages": 3, "total_results": len(results)}
}
