package models

import "fmt"

// MediaType identifies which TMDB catalog a title belongs to
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Valid reports whether the media type is one the catalog knows about
func (m MediaType) Valid() bool {
	return m == MediaTypeMovie || m == MediaTypeTV
}

// ParseMediaType converts a path segment into a MediaType
func ParseMediaType(s string) (MediaType, error) {
	m := MediaType(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown media type %q", s)
	}
	return m, nil
}

// Movie is the summary record rendered in rows, grids and the hero carousel.
// Despite the name it describes TV titles too; MediaType tells them apart.
type Movie struct {
	ID          int       `json:"id"`
	MediaType   MediaType `json:"media_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PosterURL   string    `json:"posterUrl"`
	BackdropURL string    `json:"backdropUrl"`
	Rating      float64   `json:"rating"`
	ReleaseYear string    `json:"releaseYear"`
	Genres      []string  `json:"genres"`
	LogoURL     string    `json:"logoUrl,omitempty"`
}

// Key returns the identity of a title across both catalogs
func (m Movie) Key() string {
	return fmt.Sprintf("%s:%d", m.MediaType, m.ID)
}

// MovieDetail is the full record shown on a detail page
type MovieDetail struct {
	Movie
	Runtime         int      `json:"runtime"`
	TrailerURL      string   `json:"trailerUrl,omitempty"`
	IMDbID          string   `json:"imdb_id,omitempty"`
	NumberOfSeasons int      `json:"numberOfSeasons,omitempty"`
	Seasons         []Season `json:"seasons,omitempty"`
}

// Genre is a named row of titles, e.g. "Trending Today"
type Genre struct {
	Key    string  `json:"key"`
	Title  string  `json:"title"`
	Movies []Movie `json:"movies"`
}

// GenreItem is an entry of the upstream genre list
type GenreItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Country is an entry of the upstream country list
type Country struct {
	ISO3166_1   string `json:"iso_3166_1"`
	EnglishName string `json:"english_name"`
	NativeName  string `json:"native_name,omitempty"`
}

// PagedMovies is one page of a category, discover or similar listing
type PagedMovies struct {
	Results    []Movie `json:"results"`
	TotalPages int     `json:"totalPages"`
}

// SearchResults is one page of search results
type SearchResults struct {
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"totalPages"`
	TotalResults int     `json:"totalResults"`
}

// DetailPage bundles everything a detail page needs
type DetailPage struct {
	Details MovieDetail `json:"details"`
	Cast    []Actor     `json:"cast"`
	Similar []Movie     `json:"similar"`
}

// PlaybackTarget identifies what an embed player should load
type PlaybackTarget struct {
	ID        int       `json:"id"`
	MediaType MediaType `json:"media_type"`
	Season    int       `json:"season,omitempty"`
	Episode   int       `json:"episode,omitempty"`
}
