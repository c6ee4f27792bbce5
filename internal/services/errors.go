package services

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks ids, categories or upstream resources that do not exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownView is returned for a browse view other than home, movies, tv or anime
	ErrUnknownView = errors.New("unknown view")
)

// APIError is a non-2xx answer from the catalog API
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("TMDB API error: %s: status %d, body: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match upstream 404s
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// ParseError is a catalog payload that could not be decoded or failed validation
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err comes from a superseded or abandoned request.
// Deadlines are failures, not cancellations.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
