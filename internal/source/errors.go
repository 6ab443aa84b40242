package source

import "errors"

// ErrNotFound is returned when the backend answers 404 for a detail lookup.
var ErrNotFound = errors.New("not found")

// FetchError is a network or HTTP failure talking to the backend. Message is
// shown to the user as-is. Status is zero for network failures and is kept
// for logs and spans.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string { return e.Message }

// Is lets a 404 FetchError match ErrNotFound.
func (e *FetchError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}
