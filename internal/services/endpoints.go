package services

import "github.com/liamwears/flowkh/internal/models"

// Date tokens substituted into endpoint templates right before a request
const (
	tokenToday      = "__TODAY__"
	token7DaysAgo   = "__DATE_7_DAYS_AGO__"
	token30DaysAgo  = "__DATE_30_DAYS_AGO__"
	token90DaysAgo  = "__DATE_90_DAYS_AGO__"
	animeKeywordIDs = "210024"
)

// Endpoint describes one listing the catalog can render as a row
type Endpoint struct {
	Key       string
	Title     string
	Path      string
	MediaType models.MediaType // empty when results carry their own media_type
}

var endpoints = []Endpoint{
	{Key: "trending_today", Title: "Trending Today", Path: "/trending/all/day?language=en-US"},
	{Key: "trending_tv", Title: "Trending TV Shows", Path: "/trending/tv/week?language=en-US", MediaType: models.MediaTypeTV},
	{Key: "k_drama", Title: "Popular K-Dramas", Path: "/discover/tv?with_origin_country=KR&with_genres=18&language=en-US&sort_by=popularity.desc&first_air_date.gte=2023-01-01&air_date.gte=" + token30DaysAgo + "&air_date.lte=" + tokenToday, MediaType: models.MediaTypeTV},
	{Key: "c_drama", Title: "Popular C-Dramas", Path: "/discover/tv?with_origin_country=CN&with_genres=18&language=en-US&sort_by=popularity.desc&first_air_date.gte=2023-01-01&air_date.gte=" + token30DaysAgo + "&air_date.lte=" + tokenToday, MediaType: models.MediaTypeTV},
	{Key: "j_drama", Title: "Popular J-Dramas", Path: "/discover/tv?with_origin_country=JP&with_genres=18&without_genres=16&language=en-US&sort_by=popularity.desc&first_air_date.gte=2023-01-01&air_date.gte=" + token30DaysAgo + "&air_date.lte=" + tokenToday, MediaType: models.MediaTypeTV},
	{Key: "anime", Title: "Anime", Path: "/discover/tv?with_origin_country=JP&with_genres=16&language=en-US&sort_by=popularity.desc&first_air_date.gte=2023-01-01&air_date.gte=" + token30DaysAgo + "&air_date.lte=" + tokenToday, MediaType: models.MediaTypeTV},
	{Key: "on_the_air_tv", Title: "On The Air TV Shows", Path: "/tv/on_the_air?language=en-US", MediaType: models.MediaTypeTV},
	{Key: "top_rated_tv", Title: "Top Rated TV Shows", Path: "/tv/top_rated?language=en-US", MediaType: models.MediaTypeTV},
	{Key: "trending_movies", Title: "Trending Movies", Path: "/trending/movie/week?language=en-US", MediaType: models.MediaTypeMovie},
	{Key: "popular_movies", Title: "Popular Movies", Path: "/movie/popular?language=en-US", MediaType: models.MediaTypeMovie},
	{Key: "now_playing_movies", Title: "Now Playing Movies", Path: "/movie/now_playing?language=en-US", MediaType: models.MediaTypeMovie},
	{Key: "upcoming_movies", Title: "Upcoming Movies", Path: "/movie/upcoming?language=en-US", MediaType: models.MediaTypeMovie},
	{Key: "top_rated_movies", Title: "Top Rated Movies", Path: "/movie/top_rated?language=en-US", MediaType: models.MediaTypeMovie},
	{Key: "anime_trending", Title: "Trending", Path: "/discover/tv?with_genres=16&with_keywords=" + animeKeywordIDs + "&language=en-US&sort_by=popularity.desc", MediaType: models.MediaTypeTV},
	{Key: "anime_latest", Title: "Latest Episode", Path: "/discover/tv?with_genres=16&with_keywords=" + animeKeywordIDs + "&language=en-US&air_date.lte=" + tokenToday + "&air_date.gte=" + token7DaysAgo + "&sort_by=popularity.desc", MediaType: models.MediaTypeTV},
	{Key: "anime_top_airing", Title: "Top Airing", Path: "/discover/tv?with_genres=16&with_keywords=" + animeKeywordIDs + "&language=en-US&air_date.lte=" + tokenToday + "&air_date.gte=" + token90DaysAgo + "&sort_by=vote_average.desc&vote_count.gte=50", MediaType: models.MediaTypeTV},
	{Key: "anime_movies", Title: "Movie Anime", Path: "/discover/movie?with_genres=16&with_keywords=" + animeKeywordIDs + "&language=en-US&sort_by=popularity.desc", MediaType: models.MediaTypeMovie},
	{Key: "anime_animation", Title: "Animation", Path: "/discover/tv?with_genres=16&without_keywords=" + animeKeywordIDs + "&language=en-US&sort_by=popularity.desc", MediaType: models.MediaTypeTV},
}

// Category pages for the drama and anime rows list newest first instead of
// the row's recent-airing window.
var categoryOverrides = map[string]string{
	"k_drama": "/discover/tv?with_origin_country=KR&with_genres=18&language=en-US&sort_by=first_air_date.desc",
	"c_drama": "/discover/tv?with_origin_country=CN&with_genres=18&language=en-US&sort_by=first_air_date.desc",
	"j_drama": "/discover/tv?with_origin_country=JP&with_genres=18&without_genres=16&language=en-US&sort_by=first_air_date.desc",
	"anime":   "/discover/tv?with_origin_country=JP&with_genres=16&language=en-US&sort_by=first_air_date.desc",
}

// View names accepted by FetchMoviesData
const (
	ViewHome   = "home"
	ViewMovies = "movies"
	ViewTV     = "tv"
	ViewAnime  = "anime"
)

var viewKeys = map[string][]string{
	ViewHome:   {"trending_today", "k_drama", "c_drama", "j_drama", "anime", "popular_movies", "top_rated_movies", "top_rated_tv"},
	ViewMovies: {"trending_movies", "popular_movies", "now_playing_movies", "upcoming_movies", "top_rated_movies"},
	ViewTV:     {"trending_tv", "k_drama", "c_drama", "j_drama", "anime", "on_the_air_tv", "top_rated_tv"},
	ViewAnime:  {"anime_trending", "anime_latest", "anime_top_airing", "anime_movies", "anime_animation"},
}

// heroKeys names the row whose first titles feed each view's carousel
var heroKeys = map[string]string{
	ViewHome:   "trending_today",
	ViewMovies: "trending_movies",
	ViewTV:     "trending_tv",
	ViewAnime:  "anime_trending",
}

// LookupEndpoint finds an endpoint by key
func LookupEndpoint(key string) (Endpoint, bool) {
	for _, ep := range endpoints {
		if ep.Key == key {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// viewEndpoints returns the endpoints of a view in display order
func viewEndpoints(view string) ([]Endpoint, bool) {
	keys, ok := viewKeys[view]
	if !ok {
		return nil, false
	}
	eps := make([]Endpoint, 0, len(keys))
	for _, key := range keys {
		if ep, ok := LookupEndpoint(key); ok {
			eps = append(eps, ep)
		}
	}
	return eps, true
}
