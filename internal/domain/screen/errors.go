package screen

import "errors"

var (
	// ErrForbidden is returned when the session's role may not open a screen.
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownRole is returned for roles missing from the dispatch table.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownScreen is returned for screen ids missing from the catalog.
	ErrUnknownScreen = errors.New("unknown screen")
	// ErrNotOpen is returned when no instance is mounted for a screen.
	ErrNotOpen = errors.New("screen not open")
	// ErrNotImportable is returned when a screen has no import endpoint.
	ErrNotImportable = errors.New("screen does not accept imports")
	// ErrInvalidCatalog is returned when a catalog fails validation.
	ErrInvalidCatalog = errors.New("invalid catalog")
)
