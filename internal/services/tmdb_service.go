package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liamwears/flowkh/internal/models"
)

// TMDBService handles interactions with The Movie Database API
type TMDBService struct {
	client       *http.Client
	apiKey       string
	readToken    string
	baseURL      string
	imageBaseURL string
	now          func() time.Time
	logger       *log.Logger
}

// TMDBConfig holds TMDB service configuration
type TMDBConfig struct {
	APIKey       string // v3 key, sent as api_key
	ReadToken    string // v4 read access token, sent as a bearer token
	BaseURL      string
	ImageBaseURL string
	HTTPClient   *http.Client
	Now          func() time.Time
	Logger       *log.Logger
}

// NewTMDBService creates a new TMDB service
func NewTMDBService(cfg TMDBConfig) *TMDBService {
	s := &TMDBService{
		client:       cfg.HTTPClient,
		apiKey:       cfg.APIKey,
		readToken:    cfg.ReadToken,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
	if s.client == nil {
		s.client = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if s.baseURL == "" {
		s.baseURL = "https://api.themoviedb.org/3"
	}
	if s.imageBaseURL == "" {
		s.imageBaseURL = "https://image.tmdb.org/t/p"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

// RawTitle is a movie or TV record as listed by TMDB
type RawTitle struct {
	ID           int              `json:"id"`
	MediaType    models.MediaType `json:"media_type,omitempty"`
	Title        string           `json:"title,omitempty"`
	Name         string           `json:"name,omitempty"`
	Overview     string           `json:"overview"`
	PosterPath   *string          `json:"poster_path"`
	BackdropPath *string          `json:"backdrop_path"`
	VoteAverage  float64          `json:"vote_average"`
	ReleaseDate  string           `json:"release_date,omitempty"`
	FirstAirDate string           `json:"first_air_date,omitempty"`
	GenreIDs     []int            `json:"genre_ids"`
}

// TMDBPagedResponse is a page of titles
type TMDBPagedResponse struct {
	Page         int        `json:"page"`
	Results      []RawTitle `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

func (r *TMDBPagedResponse) validate() error {
	if r.Results == nil {
		return errors.New("missing results")
	}
	return nil
}

type tmdbGenreListResponse struct {
	Genres []models.GenreItem `json:"genres"`
}

func (r *tmdbGenreListResponse) validate() error {
	if r.Genres == nil {
		return errors.New("missing genres")
	}
	return nil
}

type tmdbLogo struct {
	ISO639_1 string `json:"iso_639_1"`
	FilePath string `json:"file_path"`
}

type tmdbImagesResponse struct {
	Logos []tmdbLogo `json:"logos"`
}

type tmdbVideo struct {
	Site string `json:"site"`
	Type string `json:"type"`
	Key  string `json:"key"`
}

type tmdbSeason struct {
	ID           int    `json:"id"`
	SeasonNumber int    `json:"season_number"`
	Name         string `json:"name"`
	EpisodeCount int    `json:"episode_count"`
}

// tmdbDetailResponse is GET /{movie|tv}/{id} with similar, videos, images and
// external_ids appended
type tmdbDetailResponse struct {
	RawTitle
	Genres          []models.GenreItem  `json:"genres"`
	Runtime         int                 `json:"runtime"`
	EpisodeRunTime  []int               `json:"episode_run_time"`
	NumberOfSeasons int                 `json:"number_of_seasons"`
	Seasons         []*tmdbSeason       `json:"seasons"`
	Images          *tmdbImagesResponse `json:"images"`
	Videos          *struct {
		Results []tmdbVideo `json:"results"`
	} `json:"videos"`
	Similar     *TMDBPagedResponse `json:"similar"`
	ExternalIDs *struct {
		IMDbID *string `json:"imdb_id"`
	} `json:"external_ids"`
}

func (r *tmdbDetailResponse) validate() error {
	if r.ID <= 0 {
		return errors.New("missing id")
	}
	return nil
}

// tmdbCastMember covers both /credits (character) and /aggregate_credits (roles)
type tmdbCastMember struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Character   string  `json:"character"`
	ProfilePath *string `json:"profile_path"`
	Roles       []struct {
		Character string `json:"character"`
	} `json:"roles"`
}

type tmdbCreditsResponse struct {
	Cast []tmdbCastMember `json:"cast"`
}

type tmdbPersonResponse struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	ProfilePath        *string `json:"profile_path"`
	Biography          string  `json:"biography"`
	Birthday           *string `json:"birthday"`
	PlaceOfBirth       *string `json:"place_of_birth"`
	KnownForDepartment string  `json:"known_for_department"`
}

func (r *tmdbPersonResponse) validate() error {
	if r.ID <= 0 {
		return errors.New("missing id")
	}
	return nil
}

type tmdbCombinedCreditsResponse struct {
	Cast []RawTitle `json:"cast"`
}

type tmdbEpisode struct {
	ID            int     `json:"id"`
	EpisodeNumber int     `json:"episode_number"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	StillPath     *string `json:"still_path"`
	AirDate       *string `json:"air_date"`
	Runtime       *int    `json:"runtime"`
}

type tmdbSeasonResponse struct {
	Episodes []tmdbEpisode `json:"episodes"`
}

type tmdbTVSeasonsResponse struct {
	Seasons []*tmdbSeason `json:"seasons"`
}

type validator interface {
	validate() error
}

// ResolveDates replaces the date tokens of an endpoint template with
// YYYY-MM-DD dates relative to the current time
func (s *TMDBService) ResolveDates(template string) string {
	now := s.now().UTC()
	daysAgo := func(n int) string {
		return now.AddDate(0, 0, -n).Format("2006-01-02")
	}
	return strings.NewReplacer(
		token30DaysAgo, daysAgo(30),
		token7DaysAgo, daysAgo(7),
		token90DaysAgo, daysAgo(90),
		tokenToday, now.Format("2006-01-02"),
	).Replace(template)
}

// doRequest performs an HTTP request to TMDB API. endpoint may carry its own
// query string; params are added on top of it. An empty language param sends
// the request without any language.
func (s *TMDBService) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u, err := url.Parse(s.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to build url for %s: %w", endpoint, err)
	}

	q := u.Query()
	if q.Get("language") == "" {
		q.Set("language", "en-US")
	}
	for key, values := range params {
		q.Del(key)
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if q.Get("language") == "" {
		q.Del("language")
	}
	if s.readToken == "" && s.apiKey != "" {
		q.Set("api_key", s.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.readToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.readToken))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to execute request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Printf("TMDB %s returned %d", u.Path, resp.StatusCode)
		return nil, &APIError{Endpoint: u.Path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// getJSON fetches endpoint and decodes it into v, validating v when it knows how
func (s *TMDBService) getJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	body, err := s.doRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &ParseError{Endpoint: endpoint, Err: err}
	}
	if val, ok := v.(validator); ok {
		if err := val.validate(); err != nil {
			return &ParseError{Endpoint: endpoint, Err: err}
		}
	}
	return nil
}

// FetchEndpoint retrieves one page of a listing endpoint. A page below 1
// leaves the page parameter to the upstream default.
func (s *TMDBService) FetchEndpoint(ctx context.Context, path string, page int) (*TMDBPagedResponse, error) {
	var params url.Values
	if page > 0 {
		params = url.Values{"page": {fmt.Sprintf("%d", page)}}
	}

	var response TMDBPagedResponse
	if err := s.getJSON(ctx, s.ResolveDates(path), params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GenreList retrieves the genre id/name list of a catalog
func (s *TMDBService) GenreList(ctx context.Context, mediaType models.MediaType) ([]models.GenreItem, error) {
	var response tmdbGenreListResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/genre/%s/list", mediaType), nil, &response); err != nil {
		return nil, err
	}
	return response.Genres, nil
}

// Countries retrieves the upstream country list
func (s *TMDBService) Countries(ctx context.Context) ([]models.Country, error) {
	var countries []models.Country
	if err := s.getJSON(ctx, "/configuration/countries", nil, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

// Images retrieves the images (logos) of a title
func (s *TMDBService) Images(ctx context.Context, id int, mediaType models.MediaType) (*tmdbImagesResponse, error) {
	var response tmdbImagesResponse
	// no language filter: a title whose only logo is korean still has one
	params := url.Values{"language": {""}}
	if err := s.getJSON(ctx, fmt.Sprintf("/%s/%d/images", mediaType, id), params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Details retrieves a title with its similar titles, videos, images and external ids
func (s *TMDBService) Details(ctx context.Context, id int, mediaType models.MediaType) (*tmdbDetailResponse, error) {
	params := url.Values{"append_to_response": {"similar,videos,images,external_ids"}}

	var response tmdbDetailResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/%s/%d", mediaType, id), params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Credits retrieves the cast of a title. TV titles use aggregate credits so
// every season's cast is included.
func (s *TMDBService) Credits(ctx context.Context, id int, mediaType models.MediaType) (*tmdbCreditsResponse, error) {
	creditsEndpoint := "credits"
	if mediaType == models.MediaTypeTV {
		creditsEndpoint = "aggregate_credits"
	}

	var response tmdbCreditsResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/%s/%d/%s", mediaType, id, creditsEndpoint), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Person retrieves a person by ID
func (s *TMDBService) Person(ctx context.Context, personID int) (*tmdbPersonResponse, error) {
	var response tmdbPersonResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/person/%d", personID), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// CombinedCredits retrieves the movie and TV credits of a person
func (s *TMDBService) CombinedCredits(ctx context.Context, personID int) (*tmdbCombinedCreditsResponse, error) {
	var response tmdbCombinedCreditsResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/person/%d/combined_credits", personID), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Season retrieves the episodes of one season of a TV series
func (s *TMDBService) Season(ctx context.Context, tvID, seasonNumber int) (*tmdbSeasonResponse, error) {
	var response tmdbSeasonResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/tv/%d/season/%d", tvID, seasonNumber), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// TVSeasons retrieves the season list of a TV series
func (s *TMDBService) TVSeasons(ctx context.Context, tvID int) (*tmdbTVSeasonsResponse, error) {
	var response tmdbTVSeasonsResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/tv/%d", tvID), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Search searches one catalog, or both with kind "multi"
func (s *TMDBService) Search(ctx context.Context, kind, query string, page int) (*TMDBPagedResponse, error) {
	if page < 1 {
		page = 1
	}

	params := url.Values{
		"query":         {query},
		"include_adult": {"false"},
		"page":          {fmt.Sprintf("%d", page)},
	}

	var response TMDBPagedResponse
	if err := s.getJSON(ctx, "/search/"+kind, params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Discover runs a discover query with prebuilt parameters
func (s *TMDBService) Discover(ctx context.Context, mediaType models.MediaType, params url.Values) (*TMDBPagedResponse, error) {
	var response TMDBPagedResponse
	if err := s.getJSON(ctx, fmt.Sprintf("/discover/%s", mediaType), params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetImageURL returns the full URL for an image path at the given size
func (s *TMDBService) GetImageURL(size, path string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", s.imageBaseURL, size, path)
}
