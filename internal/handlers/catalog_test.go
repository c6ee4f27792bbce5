package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamwears/flowkh/internal/middleware"
	"github.com/liamwears/flowkh/internal/models"
)

func listing(ids ...int) map[string]any {
	results := make([]map[string]any, len(ids))
	for i, id := range ids {
		results[i] = map[string]any{
			"id":            id,
			"title":         "Title " + strconv.Itoa(id),
			"overview":      "Overview",
			"poster_path":   "/p.jpg",
			"backdrop_path": "/b.jpg",
			"vote_average":  7.5,
			"release_date":  "2020-01-01",
			"genre_ids":     []int{28},
			"media_type":    "movie",
		}
	}
	return map[string]any{"page": 1, "results": results, "total_pages": 1}
}

func TestViewReturnsRows(t *testing.T) {
	u := newUpstream()
	u.json("/movie/popular", 200, listing(1, 2))
	mux := newCatalogMux(u)

	rec := get(t, mux, "/api/views/movies")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows []models.Genre
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "popular_movies", rows[0].Key)
	assert.Len(t, rows[0].Movies, 2)
	assert.Equal(t, []string{"Action"}, rows[0].Movies[0].Genres)
}

func TestViewEmptyIsArray(t *testing.T) {
	rec := get(t, newCatalogMux(newUpstream()), "/api/views/anime")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUnknownViewIsNotFound(t *testing.T) {
	rec := get(t, newCatalogMux(newUpstream()), "/api/views/sports")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
}

func TestDetailInvalidIDIsNotFound(t *testing.T) {
	u := newUpstream()
	mux := newCatalogMux(u)

	for _, target := range []string{"/api/movie/abc", "/api/movie/-4", "/api/person/0", "/api/episode/3"} {
		rec := get(t, mux, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String(), target)
	}
	assert.Empty(t, u.requests())
}

func TestDetailUpstreamNotFound(t *testing.T) {
	rec := get(t, newCatalogMux(newUpstream()), "/api/tv/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetailPage(t *testing.T) {
	u := newUpstream()
	u.json("/movie/27205", 200, map[string]any{
		"id": 27205, "title": "Inception", "overview": "Dreams.", "poster_path": "/i.jpg",
		"backdrop_path": "/ib.jpg", "release_date": "2010-07-15", "runtime": 148,
	})
	u.json("/movie/27205/credits", 200, map[string]any{"cast": []map[string]any{
		{"id": 6193, "name": "Leonardo DiCaprio", "character": "Cobb"},
	}})

	rec := get(t, newCatalogMux(u), "/api/movie/27205")
	require.Equal(t, http.StatusOK, rec.Code)

	var page models.DetailPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, "Inception", page.Details.Title)
	assert.Equal(t, 148, page.Details.Runtime)
	require.Len(t, page.Cast, 1)
	assert.Equal(t, "Cobb", page.Cast[0].Character)
	assert.NotNil(t, page.Similar)
}

func TestCategoryFailureIsServerError(t *testing.T) {
	u := newUpstream()
	u.json("/movie/upcoming", http.StatusInternalServerError, map[string]any{})

	rec := get(t, newCatalogMux(u), "/api/categories/upcoming_movies?page=2")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch category"}`, rec.Body.String())
}

func TestDiscoverQuery(t *testing.T) {
	u := newUpstream()
	u.json("/discover/tv", 200, listing(5))
	mux := newCatalogMux(u)

	rec := get(t, mux, "/api/discover/tv?genres=16,18&networks=213&providers=8%7C9&year=2022&page=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var paged models.PagedMovies
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paged))
	require.Len(t, paged.Results, 1)
	assert.Equal(t, models.MediaTypeTV, paged.Results[0].MediaType)

	var discover []string
	for _, seen := range u.requests() {
		if seen.Path == "/discover/tv" {
			q := seen.Query()
			discover = append(discover, q.Get("with_genres"), q.Get("with_networks"), q.Get("with_watch_providers"), q.Get("first_air_date_year"), q.Get("page"))
		}
	}
	assert.Equal(t, []string{"16,18", "213", "8|9", "2022", "3"}, discover)

	rec = get(t, mux, "/api/discover/tv?genres=drama")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEmptyQuery(t *testing.T) {
	u := newUpstream()
	rec := get(t, newCatalogMux(u), "/api/search?query=")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[],"totalPages":1,"totalResults":0}`, rec.Body.String())
	assert.Empty(t, u.requests())
}

func TestPlayTarget(t *testing.T) {
	mux := newCatalogMux(newUpstream())

	rec := get(t, mux, "/api/tv/1399/play")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1399,"media_type":"tv","season":1,"episode":1}`, rec.Body.String())

	rec = get(t, mux, "/api/tv/1399/play?season=3&episode=9")
	assert.JSONEq(t, `{"id":1399,"media_type":"tv","season":3,"episode":9}`, rec.Body.String())

	rec = get(t, mux, "/api/movie/550/play?season=2")
	assert.JSONEq(t, `{"id":550,"media_type":"movie"}`, rec.Body.String())
}

func TestLogo(t *testing.T) {
	u := newUpstream()
	u.json("/tv/1399/images", 200, map[string]any{"logos": []map[string]any{
		{"iso_639_1": "en", "file_path": "/got.png"},
	}})

	rec := get(t, newCatalogMux(u), "/api/tv/1399/logo")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logoUrl":"https://img.test/t/p/w500/got.png"}`, rec.Body.String())
}

func TestSupersededDetailAnswersNoContent(t *testing.T) {
	u := newUpstream()
	started := make(chan struct{})
	u.handle("/movie/1", func(req *http.Request) (*http.Response, error) {
		close(started)
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	u.json("/movie/2", 200, map[string]any{"id": 2, "title": "Second"})
	u.json("/movie/2/credits", 200, map[string]any{"cast": []any{}})
	handler := middleware.ClientID(false)(newCatalogMux(u))

	cookie := &http.Cookie{Name: middleware.ClientCookieName, Value: uuid.NewString()}
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- get(t, handler, "/api/movie/1", cookie)
	}()
	<-started

	second := get(t, handler, "/api/movie/2", cookie)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"Second"`)

	stale := <-first
	assert.Equal(t, http.StatusNoContent, stale.Code)
	assert.Empty(t, stale.Body.String())
}

func TestOtherClientsAreNotSuperseded(t *testing.T) {
	u := newUpstream()
	u.json("/movie/2", 200, map[string]any{"id": 2, "title": "Second"})
	handler := middleware.ClientID(false)(newCatalogMux(u))

	a := &http.Cookie{Name: middleware.ClientCookieName, Value: uuid.NewString()}
	b := &http.Cookie{Name: middleware.ClientCookieName, Value: uuid.NewString()}
	assert.Equal(t, http.StatusOK, get(t, handler, "/api/movie/2", a).Code)
	assert.Equal(t, http.StatusOK, get(t, handler, "/api/movie/2", b).Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","redis":"disabled"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(downPinger{}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","redis":"down"}`, rec.Body.String())
}
