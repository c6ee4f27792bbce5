package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/liamwears/flowkh/internal/middleware"
	"github.com/liamwears/flowkh/internal/models"
	"github.com/liamwears/flowkh/internal/services"
)

// CatalogHandler serves the catalog JSON API
type CatalogHandler struct {
	catalog    *services.CatalogService
	superseder *services.Superseder
	logger     *log.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *services.CatalogService, superseder *services.Superseder, logger *log.Logger) *CatalogHandler {
	if superseder == nil {
		superseder = services.NewSuperseder()
	}
	return &CatalogHandler{
		catalog:    catalog,
		superseder: superseder,
		logger:     logger,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
}

// writeError maps a service error to a JSON error response
func (h *CatalogHandler) writeError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrUnknownView) {
		notFound(w)
		return
	}
	h.logger.Printf("Failed to fetch %s: %v", what, err)
	http.Error(w, `{"error":"Failed to fetch `+what+`"}`, http.StatusInternalServerError)
}

// latest runs fetch as the newest request of its client on this route. When a
// newer request from the same client arrives first the older one is canceled
// and answers 204 instead of overwriting what the client already shows.
func (h *CatalogHandler) latest(w http.ResponseWriter, r *http.Request, what string, fetch func(ctx context.Context) (any, error)) {
	clientID, ok := middleware.GetClientIDFromContext(r.Context())
	if !ok {
		result, err := fetch(r.Context())
		if err != nil {
			h.writeError(w, err, what)
			return
		}
		writeJSON(w, result)
		return
	}

	ctx, ticket := h.superseder.Begin(r.Context(), clientID+" "+r.Pattern)
	defer h.superseder.Done(ticket)

	result, err := fetch(ctx)
	committed := h.superseder.Commit(ticket, func() {
		if err != nil {
			h.writeError(w, err, what)
			return
		}
		writeJSON(w, result)
	})
	if !committed {
		w.WriteHeader(http.StatusNoContent)
	}
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryPage(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	return page
}

// parseIDs parses a comma or pipe separated list of numeric IDs
func parseIDs(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '|' })
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// View handles GET /api/views/{view}
func (h *CatalogHandler) View(w http.ResponseWriter, r *http.Request) {
	view := r.PathValue("view")
	h.latest(w, r, "movie data", func(ctx context.Context) (any, error) {
		rows, err := h.catalog.FetchMoviesData(ctx, view)
		if rows == nil {
			rows = []models.Genre{}
		}
		return rows, err
	})
}

// Hero handles GET /api/views/{view}/hero
func (h *CatalogHandler) Hero(w http.ResponseWriter, r *http.Request) {
	view := r.PathValue("view")
	h.latest(w, r, "hero titles", func(ctx context.Context) (any, error) {
		hero, err := h.catalog.FetchHeroMovies(ctx, view)
		if hero == nil {
			hero = []models.Movie{}
		}
		return hero, err
	})
}

// Category handles GET /api/categories/{key}
func (h *CatalogHandler) Category(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	page := queryPage(r)
	h.latest(w, r, "category", func(ctx context.Context) (any, error) {
		return h.catalog.FetchCategoryPageData(ctx, key, page)
	})
}

// Detail handles GET /api/{mediaType}/{id}
func (h *CatalogHandler) Detail(w http.ResponseWriter, r *http.Request) {
	mediaType, err := models.ParseMediaType(r.PathValue("mediaType"))
	if err != nil {
		notFound(w)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w)
		return
	}

	h.latest(w, r, "details", func(ctx context.Context) (any, error) {
		return h.catalog.FetchDetailPageData(ctx, id, mediaType)
	})
}

// Person handles GET /api/person/{id}
func (h *CatalogHandler) Person(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w)
		return
	}

	h.latest(w, r, "actor details", func(ctx context.Context) (any, error) {
		return h.catalog.FetchActorCredits(ctx, id)
	})
}

// Discover handles GET /api/discover/{mediaType}
func (h *CatalogHandler) Discover(w http.ResponseWriter, r *http.Request) {
	mediaType, err := models.ParseMediaType(r.PathValue("mediaType"))
	if err != nil {
		notFound(w)
		return
	}

	query := r.URL.Query()
	filters := services.DiscoverFilters{
		MediaType: mediaType,
		SortBy:    query.Get("sort_by"),
		Country:   query.Get("country"),
		Year:      query.Get("year"),
		Page:      queryPage(r),
	}
	if filters.Genres, err = parseIDs(query.Get("genres")); err != nil {
		http.Error(w, `{"error":"Invalid genres"}`, http.StatusBadRequest)
		return
	}
	if filters.ProviderIDs, err = parseIDs(query.Get("providers")); err != nil {
		http.Error(w, `{"error":"Invalid providers"}`, http.StatusBadRequest)
		return
	}
	if filters.NetworkIDs, err = parseIDs(query.Get("networks")); err != nil {
		http.Error(w, `{"error":"Invalid networks"}`, http.StatusBadRequest)
		return
	}

	h.latest(w, r, "discover results", func(ctx context.Context) (any, error) {
		return h.catalog.FetchDiscoverResults(ctx, filters)
	})
}

// Search handles GET /api/search
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	kind := query.Get("type")
	if kind == "" {
		kind = services.SearchMulti
	}
	text := query.Get("query")
	page := queryPage(r)

	h.latest(w, r, "search results", func(ctx context.Context) (any, error) {
		return h.catalog.SearchContent(ctx, text, kind, page)
	})
}

// Seasons handles GET /api/tv/{id}/seasons
func (h *CatalogHandler) Seasons(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w)
		return
	}

	seasons, err := h.catalog.FetchTVSeasons(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "seasons")
		return
	}
	if seasons == nil {
		seasons = []models.Season{}
	}
	writeJSON(w, seasons)
}

// Episodes handles GET /api/tv/{id}/season/{season}
func (h *CatalogHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w)
		return
	}
	season, err := strconv.Atoi(r.PathValue("season"))
	if err != nil || season < 0 {
		notFound(w)
		return
	}

	h.latest(w, r, "episodes", func(ctx context.Context) (any, error) {
		episodes, err := h.catalog.FetchSeasonEpisodes(ctx, id, season)
		if episodes == nil {
			episodes = []models.Episode{}
		}
		return episodes, err
	})
}

// Genres handles GET /api/genres/{mediaType}
func (h *CatalogHandler) Genres(w http.ResponseWriter, r *http.Request) {
	mediaType, err := models.ParseMediaType(r.PathValue("mediaType"))
	if err != nil {
		notFound(w)
		return
	}

	genres, err := h.catalog.FetchGenreList(r.Context(), mediaType)
	if err != nil {
		h.writeError(w, err, "genres")
		return
	}
	if genres == nil {
		genres = []models.GenreItem{}
	}
	writeJSON(w, genres)
}

// Countries handles GET /api/countries
func (h *CatalogHandler) Countries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.catalog.FetchCountriesList(r.Context())
	if err != nil {
		h.writeError(w, err, "countries")
		return
	}
	if countries == nil {
		countries = []models.Country{}
	}
	writeJSON(w, countries)
}

// Logo handles GET /api/{mediaType}/{id}/logo
func (h *CatalogHandler) Logo(w http.ResponseWriter, r *http.Request) {
	mediaType, err := models.ParseMediaType(r.PathValue("mediaType"))
	if err != nil {
		notFound(w)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w)
		return
	}

	writeJSON(w, map[string]string{"logoUrl": h.catalog.FetchLogoURL(r.Context(), id, mediaType)})
}

// Play handles GET /api/{mediaType}/{id}/play. It only resolves what the
// embed player should load; TV defaults to the first episode.
func (h *CatalogHandler) Play(w http.ResponseWriter, r *http.Request) {
	mediaType, err := models.ParseMediaType(r.PathValue("mediaType"))
	if err != nil {
		notFound(w)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w)
		return
	}

	target := models.PlaybackTarget{ID: id, MediaType: mediaType}
	if mediaType == models.MediaTypeTV {
		target.Season, target.Episode = 1, 1
		if season, err := strconv.Atoi(r.URL.Query().Get("season")); err == nil && season >= 0 {
			target.Season = season
		}
		if episode, err := strconv.Atoi(r.URL.Query().Get("episode")); err == nil && episode > 0 {
			target.Episode = episode
		}
	}
	writeJSON(w, target)
}

// Register adds the catalog routes to mux, each wrapped by wrap
func (h *CatalogHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET /api/views/{view}":            h.View,
		"GET /api/views/{view}/hero":       h.Hero,
		"GET /api/categories/{key}":        h.Category,
		"GET /api/{mediaType}/{id}":        h.Detail,
		"GET /api/{mediaType}/{id}/logo":   h.Logo,
		"GET /api/{mediaType}/{id}/play":   h.Play,
		"GET /api/tv/{id}/seasons":         h.Seasons,
		"GET /api/tv/{id}/season/{season}": h.Episodes,
		"GET /api/person/{id}":             h.Person,
		"GET /api/discover/{mediaType}":    h.Discover,
		"GET /api/search":                  h.Search,
		"GET /api/genres/{mediaType}":      h.Genres,
		"GET /api/countries":               h.Countries,
	}
	for pattern, handler := range routes {
		mux.Handle(pattern, wrap(handler))
	}
}
