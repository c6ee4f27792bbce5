package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"

	"github.com/liamwears/flowkh/internal/cache"
	"github.com/liamwears/flowkh/internal/models"
)

const (
	maxTotalPages = 500
	heroSize      = 10
	topRatedTitle = "Top Rated"
)

// CatalogService composes catalog calls into the data each page needs. It owns
// the response cache and the genre lookup for the lifetime of the process.
//
// Every operation treats a canceled context as a superseded request: it returns
// a neutral result and a nil error.
type CatalogService struct {
	tmdb       *TMDBService
	cache      *cache.Cache
	genres     *GenreLookup
	normalizer *Normalizer
	logger     *log.Logger

	warmMu sync.Mutex
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(tmdb *TMDBService, c *cache.Cache, genres *GenreLookup, logger *log.Logger) *CatalogService {
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}
	if genres == nil {
		genres = NewGenreLookup()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &CatalogService{
		tmdb:       tmdb,
		cache:      c,
		genres:     genres,
		normalizer: NewNormalizer(tmdb.GetImageURL, genres),
		logger:     logger,
	}
}

// Reset clears the cache and the genre lookup
func (s *CatalogService) Reset() {
	s.cache.Clear()
	s.genres.Reset()
}

// EnsureGenres fills the genre lookup unless it is already populated
func (s *CatalogService) EnsureGenres(ctx context.Context) error {
	if s.genres.Populated() {
		return nil
	}

	s.warmMu.Lock()
	defer s.warmMu.Unlock()
	if s.genres.Populated() {
		return nil
	}

	var (
		wg                    conc.WaitGroup
		movieGenres, tvGenres []models.GenreItem
		movieErr, tvErr       error
	)
	wg.Go(func() {
		movieGenres, movieErr = s.tmdb.GenreList(ctx, models.MediaTypeMovie)
	})
	wg.Go(func() {
		tvGenres, tvErr = s.tmdb.GenreList(ctx, models.MediaTypeTV)
	})
	wg.Wait()

	if err := errors.Join(movieErr, tvErr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to fetch genres: %w", err)
	}

	s.genres.Load(movieGenres, tvGenres)
	return nil
}

// rowResult pairs an endpoint with the outcome of fetching it
type rowResult struct {
	endpoint Endpoint
	movies   []models.Movie
	err      error
}

// fetchRows fetches every endpoint in parallel. Results keep the order of eps
// whatever order the requests complete in.
func (s *CatalogService) fetchRows(ctx context.Context, eps []Endpoint) []rowResult {
	mapper := iter.Mapper[Endpoint, rowResult]{MaxGoroutines: len(eps)}
	return mapper.Map(eps, func(ep *Endpoint) rowResult {
		resp, err := s.tmdb.FetchEndpoint(ctx, ep.Path, 0)
		if err != nil {
			return rowResult{endpoint: *ep, err: err}
		}
		return rowResult{endpoint: *ep, movies: s.normalizer.Movies(resp.Results, ep.MediaType)}
	})
}

// FetchMoviesData returns the rows of a browse view. Rows whose endpoint failed
// or produced no usable titles are left out.
func (s *CatalogService) FetchMoviesData(ctx context.Context, view string) ([]models.Genre, error) {
	cacheKey := "view_" + view
	if rows, ok := cache.Lookup[[]models.Genre](s.cache, cacheKey); ok {
		return rows, nil
	}

	eps, ok := viewEndpoints(view)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}

	if err := s.EnsureGenres(ctx); err != nil {
		if IsCanceled(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch movie data: %w", err)
	}

	results := s.fetchRows(ctx, eps)
	if ctx.Err() == context.Canceled {
		return nil, nil
	}

	rows := make([]models.Genre, 0, len(results))
	for _, result := range results {
		if result.err != nil {
			s.logger.Printf("Row %s failed: %v", result.endpoint.Key, result.err)
			continue
		}
		if len(result.movies) == 0 {
			continue
		}
		rows = append(rows, models.Genre{
			Key:    result.endpoint.Key,
			Title:  result.endpoint.Title,
			Movies: result.movies,
		})
	}

	if view == ViewHome {
		rows = mergeTopRated(rows)
	}

	if len(rows) > 0 {
		s.cache.Set(cacheKey, rows)
	}
	return rows, nil
}

// mergeTopRated folds the top rated TV row into the top rated movies row,
// keeping the movies row's key and position. Without the movies row the TV
// row is dropped; home never shows it on its own.
func mergeTopRated(rows []models.Genre) []models.Genre {
	movieIdx, tvIdx := -1, -1
	for i, row := range rows {
		switch row.Key {
		case "top_rated_movies":
			movieIdx = i
		case "top_rated_tv":
			tvIdx = i
		}
	}
	if tvIdx == -1 {
		return rows
	}
	if movieIdx == -1 {
		kept := make([]models.Genre, 0, len(rows)-1)
		kept = append(kept, rows[:tvIdx]...)
		return append(kept, rows[tvIdx+1:]...)
	}

	combined := make([]models.Movie, 0, len(rows[movieIdx].Movies)+len(rows[tvIdx].Movies))
	combined = append(combined, rows[movieIdx].Movies...)
	combined = append(combined, rows[tvIdx].Movies...)
	sortByRating(combined)

	merged := make([]models.Genre, 0, len(rows)-1)
	for i, row := range rows {
		switch i {
		case movieIdx:
			merged = append(merged, models.Genre{Key: row.Key, Title: topRatedTitle, Movies: combined})
		case tvIdx:
		default:
			merged = append(merged, row)
		}
	}
	return merged
}

func sortByRating(movies []models.Movie) {
	sort.SliceStable(movies, func(i, j int) bool {
		return movies[i].Rating > movies[j].Rating
	})
}

// clampPages keeps a reported page count within 1..500, the upstream limit
func clampPages(total int) int {
	if total > maxTotalPages {
		return maxTotalPages
	}
	if total < 1 {
		return 1
	}
	return total
}

func emptyPage() *models.PagedMovies {
	return &models.PagedMovies{Results: []models.Movie{}, TotalPages: 1}
}

// FetchCategoryPageData returns one page of the listing behind a row
func (s *CatalogService) FetchCategoryPageData(ctx context.Context, key string, page int) (*models.PagedMovies, error) {
	if page < 1 {
		page = 1
	}

	cacheKey := fmt.Sprintf("cat_%s_p%d", key, page)
	if cached, ok := cache.Lookup[*models.PagedMovies](s.cache, cacheKey); ok {
		return cached, nil
	}

	endpoint, ok := LookupEndpoint(key)
	if !ok {
		return nil, fmt.Errorf("category %q: %w", key, ErrNotFound)
	}

	path := endpoint.Path
	if override, ok := categoryOverrides[key]; ok {
		path = override
	}

	if err := s.EnsureGenres(ctx); err != nil {
		if IsCanceled(err) {
			return emptyPage(), nil
		}
		return nil, err
	}

	resp, err := s.tmdb.FetchEndpoint(ctx, path, page)
	if err != nil {
		if IsCanceled(err) {
			return emptyPage(), nil
		}
		return nil, fmt.Errorf("failed to fetch page %d for %s: %w", page, key, err)
	}

	result := &models.PagedMovies{
		Results:    s.normalizer.Movies(resp.Results, endpoint.MediaType),
		TotalPages: clampPages(resp.TotalPages),
	}
	s.cache.Set(cacheKey, result)
	return result, nil
}

// FetchDetailPageData returns a title with its cast and similar titles. The
// details and the credits are fetched in parallel; missing credits leave the
// cast empty.
func (s *CatalogService) FetchDetailPageData(ctx context.Context, id int, mediaType models.MediaType) (*models.DetailPage, error) {
	if id <= 0 || !mediaType.Valid() {
		return nil, ErrNotFound
	}

	cacheKey := fmt.Sprintf("detail_%s_%d", mediaType, id)
	if cached, ok := cache.Lookup[*models.DetailPage](s.cache, cacheKey); ok {
		return cached, nil
	}

	if err := s.EnsureGenres(ctx); err != nil {
		if IsCanceled(err) {
			return nil, nil
		}
		return nil, err
	}

	var (
		wg         conc.WaitGroup
		details    *tmdbDetailResponse
		credits    *tmdbCreditsResponse
		detailsErr error
		creditsErr error
	)
	wg.Go(func() {
		details, detailsErr = s.tmdb.Details(ctx, id, mediaType)
	})
	wg.Go(func() {
		credits, creditsErr = s.tmdb.Credits(ctx, id, mediaType)
	})
	wg.Wait()

	if detailsErr != nil {
		if IsCanceled(detailsErr) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch details for %s %d: %w", mediaType, id, detailsErr)
	}

	cast := []models.Actor{}
	if creditsErr != nil {
		if IsCanceled(creditsErr) {
			return nil, nil
		}
		s.logger.Printf("Credits for %s %d unavailable: %v", mediaType, id, creditsErr)
	} else {
		cast = s.normalizer.Cast(credits.Cast)
	}

	similar := []models.Movie{}
	if details.Similar != nil {
		similar = s.normalizer.Movies(details.Similar.Results, mediaType)
	}

	result := &models.DetailPage{
		Details: s.normalizer.Detail(details, mediaType),
		Cast:    cast,
		Similar: similar,
	}
	s.cache.Set(cacheKey, result)
	return result, nil
}

// FetchActorCredits returns a person with their credits, best rated first, and
// a large backdrop taken from the first credit
func (s *CatalogService) FetchActorCredits(ctx context.Context, actorID int) (*models.ActorPage, error) {
	if actorID <= 0 {
		return nil, ErrNotFound
	}

	cacheKey := fmt.Sprintf("actor_%d", actorID)
	if cached, ok := cache.Lookup[*models.ActorPage](s.cache, cacheKey); ok {
		return cached, nil
	}

	if err := s.EnsureGenres(ctx); err != nil {
		if IsCanceled(err) {
			return nil, nil
		}
		return nil, err
	}

	var (
		wg         conc.WaitGroup
		person     *tmdbPersonResponse
		credits    *tmdbCombinedCreditsResponse
		personErr  error
		creditsErr error
	)
	wg.Go(func() {
		person, personErr = s.tmdb.Person(ctx, actorID)
	})
	wg.Go(func() {
		credits, creditsErr = s.tmdb.CombinedCredits(ctx, actorID)
	})
	wg.Wait()

	if personErr != nil {
		if IsCanceled(personErr) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch actor details %d: %w", actorID, personErr)
	}

	movies := []models.Movie{}
	if creditsErr != nil {
		if IsCanceled(creditsErr) {
			return nil, nil
		}
		s.logger.Printf("Credits for person %d unavailable: %v", actorID, creditsErr)
	} else {
		movies = s.normalizer.Movies(credits.Cast, "")
		sortByRating(movies)
	}

	result := &models.ActorPage{
		Actor:   s.normalizer.Person(person),
		Credits: movies,
	}
	for _, m := range movies {
		if m.BackdropURL != "" {
			result.BackdropURL = strings.Replace(m.BackdropURL, "/"+backdropSize+"/", "/"+largeBackdropSize+"/", 1)
			break
		}
	}

	s.cache.Set(cacheKey, result)
	return result, nil
}

// DiscoverFilters narrows a discover query
type DiscoverFilters struct {
	MediaType   models.MediaType
	SortBy      string
	Genres      []int
	Country     string
	Year        string
	Page        int
	ProviderIDs []int
	NetworkIDs  []int // TV only
}

// Params builds the upstream query parameters
func (f DiscoverFilters) Params() url.Values {
	page := f.Page
	if page < 1 {
		page = 1
	}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "popularity.desc"
	}

	params := url.Values{
		"page":    {strconv.Itoa(page)},
		"sort_by": {sortBy},
	}
	if len(f.Genres) > 0 {
		params.Set("with_genres", joinInts(f.Genres, ","))
	}
	if f.Country != "" {
		params.Set("with_origin_country", f.Country)
	}
	if f.Year != "" {
		switch f.MediaType {
		case models.MediaTypeMovie:
			params.Set("primary_release_year", f.Year)
		case models.MediaTypeTV:
			params.Set("first_air_date_year", f.Year)
		}
	}
	if len(f.ProviderIDs) > 0 {
		params.Set("with_watch_providers", joinInts(f.ProviderIDs, "|"))
		params.Set("watch_region", "US")
	}
	if len(f.NetworkIDs) > 0 && f.MediaType == models.MediaTypeTV {
		params.Set("with_networks", joinInts(f.NetworkIDs, "|"))
	}
	return params
}

func joinInts(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}

// FetchDiscoverResults runs a filtered discover query
func (s *CatalogService) FetchDiscoverResults(ctx context.Context, filters DiscoverFilters) (*models.PagedMovies, error) {
	if !filters.MediaType.Valid() {
		return nil, fmt.Errorf("discover %q: %w", filters.MediaType, ErrNotFound)
	}

	if err := s.EnsureGenres(ctx); err != nil {
		if IsCanceled(err) {
			return emptyPage(), nil
		}
		return nil, err
	}

	resp, err := s.tmdb.Discover(ctx, filters.MediaType, filters.Params())
	if err != nil {
		if IsCanceled(err) {
			return emptyPage(), nil
		}
		return nil, fmt.Errorf("discover request failed: %w", err)
	}

	return &models.PagedMovies{
		Results:    s.normalizer.Movies(resp.Results, filters.MediaType),
		TotalPages: clampPages(resp.TotalPages),
	}, nil
}

// Search kinds accepted by SearchContent
const (
	SearchMulti = "multi"
	SearchMovie = "movie"
	SearchTV    = "tv"
)

// SearchContent searches one catalog or both. People are left out of multi
// searches.
func (s *CatalogService) SearchContent(ctx context.Context, query, kind string, page int) (*models.SearchResults, error) {
	empty := &models.SearchResults{Results: []models.Movie{}, TotalPages: 1}
	if strings.TrimSpace(query) == "" {
		return empty, nil
	}

	var forced models.MediaType
	switch kind {
	case SearchMulti, "":
		kind = SearchMulti
	case SearchMovie, SearchTV:
		forced = models.MediaType(kind)
	default:
		return nil, fmt.Errorf("search kind %q: %w", kind, ErrNotFound)
	}

	if err := s.EnsureGenres(ctx); err != nil {
		if IsCanceled(err) {
			return empty, nil
		}
		return nil, err
	}

	resp, err := s.tmdb.Search(ctx, kind, query, page)
	if err != nil {
		if IsCanceled(err) {
			return empty, nil
		}
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	records := resp.Results
	if kind == SearchMulti {
		records = make([]RawTitle, 0, len(resp.Results))
		for _, r := range resp.Results {
			if r.MediaType.Valid() {
				records = append(records, r)
			}
		}
	}

	return &models.SearchResults{
		Results:      s.normalizer.Movies(records, forced),
		TotalPages:   clampPages(resp.TotalPages),
		TotalResults: resp.TotalResults,
	}, nil
}

// FetchSeasonEpisodes returns the episodes of one season
func (s *CatalogService) FetchSeasonEpisodes(ctx context.Context, tvID, seasonNumber int) ([]models.Episode, error) {
	if tvID <= 0 || seasonNumber < 0 {
		return nil, ErrNotFound
	}

	cacheKey := fmt.Sprintf("episodes_%d_s%d", tvID, seasonNumber)
	if cached, ok := cache.Lookup[[]models.Episode](s.cache, cacheKey); ok {
		return cached, nil
	}

	resp, err := s.tmdb.Season(ctx, tvID, seasonNumber)
	if err != nil {
		if IsCanceled(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not fetch episodes for tv %d season %d: %w", tvID, seasonNumber, err)
	}

	episodes := s.normalizer.Episodes(resp.Episodes)
	s.cache.Set(cacheKey, episodes)
	return episodes, nil
}

// FetchTVSeasons returns the regular seasons of a series that have episodes
func (s *CatalogService) FetchTVSeasons(ctx context.Context, tvID int) ([]models.Season, error) {
	if tvID <= 0 {
		return nil, ErrNotFound
	}

	resp, err := s.tmdb.TVSeasons(ctx, tvID)
	if err != nil {
		if IsCanceled(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not fetch seasons for tv %d: %w", tvID, err)
	}
	return normalizeSeasons(resp.Seasons, true), nil
}

// FetchGenreList returns the genre list of a catalog
func (s *CatalogService) FetchGenreList(ctx context.Context, mediaType models.MediaType) ([]models.GenreItem, error) {
	if !mediaType.Valid() {
		return nil, ErrNotFound
	}

	cacheKey := fmt.Sprintf("genres_%s", mediaType)
	if cached, ok := cache.Lookup[[]models.GenreItem](s.cache, cacheKey); ok {
		return cached, nil
	}

	genres, err := s.tmdb.GenreList(ctx, mediaType)
	if err != nil {
		if IsCanceled(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch genre list: %w", err)
	}
	s.cache.Set(cacheKey, genres)
	return genres, nil
}

// FetchCountriesList returns the upstream countries sorted by english name
func (s *CatalogService) FetchCountriesList(ctx context.Context) ([]models.Country, error) {
	if cached, ok := cache.Lookup[[]models.Country](s.cache, "countries"); ok {
		return cached, nil
	}

	countries, err := s.tmdb.Countries(ctx)
	if err != nil {
		if IsCanceled(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch countries list: %w", err)
	}

	sort.SliceStable(countries, func(i, j int) bool {
		return countries[i].EnglishName < countries[j].EnglishName
	})
	s.cache.Set("countries", countries)
	return countries, nil
}

// FetchLogoURL returns the title logo, preferring english. An unavailable logo
// is an empty string, not an error.
func (s *CatalogService) FetchLogoURL(ctx context.Context, id int, mediaType models.MediaType) string {
	cacheKey := fmt.Sprintf("logo_%s_%d", mediaType, id)
	if cached, ok := cache.Lookup[string](s.cache, cacheKey); ok {
		return cached
	}

	images, err := s.tmdb.Images(ctx, id, mediaType)
	if err != nil {
		if !IsCanceled(err) {
			s.logger.Printf("Logo for %s %d unavailable: %v", mediaType, id, err)
		}
		return ""
	}

	logo := s.normalizer.pickLogo(images.Logos)
	s.cache.Set(cacheKey, logo)
	return logo
}

// FetchHeroMovies returns the carousel titles of a view: the first ten titles
// of its trending row, each with its logo
func (s *CatalogService) FetchHeroMovies(ctx context.Context, view string) ([]models.Movie, error) {
	rows, err := s.FetchMoviesData(ctx, view)
	if err != nil || rows == nil {
		return nil, err
	}

	var hero []models.Movie
	for _, row := range rows {
		if row.Key == heroKeys[view] {
			n := min(len(row.Movies), heroSize)
			hero = make([]models.Movie, n)
			copy(hero, row.Movies[:n])
			break
		}
	}
	if len(hero) == 0 {
		return []models.Movie{}, nil
	}

	mapper := iter.Mapper[models.Movie, string]{MaxGoroutines: len(hero)}
	logos := mapper.Map(hero, func(m *models.Movie) string {
		return s.FetchLogoURL(ctx, m.ID, m.MediaType)
	})
	if ctx.Err() == context.Canceled {
		return nil, nil
	}
	for i := range hero {
		hero[i].LogoURL = logos[i]
	}
	return hero, nil
}
