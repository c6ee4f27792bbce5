package services

import (
	"sync"

	"github.com/liamwears/flowkh/internal/models"
)

// GenreLookup maps genre ids to names for both catalogs. It is filled once per
// process and never revalidated.
type GenreLookup struct {
	mu    sync.RWMutex
	movie map[int]string
	tv    map[int]string
}

// NewGenreLookup creates an empty lookup
func NewGenreLookup() *GenreLookup {
	return &GenreLookup{
		movie: make(map[int]string),
		tv:    make(map[int]string),
	}
}

// Populated reports whether both maps hold at least one genre
func (g *GenreLookup) Populated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.movie) > 0 && len(g.tv) > 0
}

// Load replaces the maps with the given lists
func (g *GenreLookup) Load(movieGenres, tvGenres []models.GenreItem) {
	movie := make(map[int]string, len(movieGenres))
	for _, genre := range movieGenres {
		movie[genre.ID] = genre.Name
	}
	tv := make(map[int]string, len(tvGenres))
	for _, genre := range tvGenres {
		tv[genre.ID] = genre.Name
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.movie = movie
	g.tv = tv
}

// Name resolves a genre id in the catalog of mediaType
func (g *GenreLookup) Name(mediaType models.MediaType, id int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m := g.movie
	if mediaType == models.MediaTypeTV {
		m = g.tv
	}
	name, ok := m[id]
	return name, ok
}

// Reset empties both maps so the next warm-up fetches again
func (g *GenreLookup) Reset() {
	g.Load(nil, nil)
}
