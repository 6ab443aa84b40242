// Package repository holds the storage errors shared by the SQLite stores
// and their callers.
package repository

import "errors"

var (
	// ErrNotFound is returned when no API key or fixture matches.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an API key hash is already stored.
	ErrConflict = errors.New("already exists")

	// ErrInvalidInput is returned for rows the store refuses to write.
	ErrInvalidInput = errors.New("invalid input")
)
