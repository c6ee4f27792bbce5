// Package watchlist keeps the "My List" titles of a client in a JSON file.
package watchlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/liamwears/flowkh/internal/models"
)

// Store is a file-backed list of titles. The whole file is rewritten on every
// change; entries are unique by media type and ID.
type Store struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewStore creates a store backed by path on fsys
func NewStore(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// List returns the saved titles in the order they were added. A missing file
// is an empty list.
func (s *Store) List() ([]models.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Contains reports whether the title is saved
func (s *Store) Contains(id int, mediaType models.MediaType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.load()
	if err != nil {
		return false, err
	}
	return indexOf(movies, id, mediaType) != -1, nil
}

// Toggle adds the title when absent and removes it when present. It returns
// whether the title is saved afterwards.
func (s *Store) Toggle(movie models.Movie) (bool, error) {
	if movie.ID <= 0 || !movie.MediaType.Valid() {
		return false, fmt.Errorf("invalid title %q", movie.Key())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	movies, err := s.load()
	if err != nil {
		return false, err
	}

	saved := false
	if i := indexOf(movies, movie.ID, movie.MediaType); i != -1 {
		movies = append(movies[:i], movies[i+1:]...)
	} else {
		movies = append(movies, movie)
		saved = true
	}

	if err := s.save(movies); err != nil {
		return false, err
	}
	return saved, nil
}

func (s *Store) load() ([]models.Movie, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Movie{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}

	var movies []models.Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist %s: %w", s.path, err)
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	return movies, nil
}

// save writes to a temporary file and renames it so a crash never leaves a
// truncated list behind
func (s *Store) save(movies []models.Movie) error {
	data, err := json.MarshalIndent(movies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode watchlist: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create watchlist directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write watchlist: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace watchlist: %w", err)
	}
	return nil
}

func indexOf(movies []models.Movie, id int, mediaType models.MediaType) int {
	for i, m := range movies {
		if m.ID == id && m.MediaType == mediaType {
			return i
		}
	}
	return -1
}
