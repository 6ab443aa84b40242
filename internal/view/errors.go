package view

import "errors"

var (
	// ErrClosed is returned by operations on a controller that was closed.
	ErrClosed = errors.New("view closed")
	// ErrInvalidSchema indicates a schema that cannot drive a view.
	ErrInvalidSchema = errors.New("invalid view schema")
)
