package domain

import "errors"

var (
	// ErrUnknownFeed is returned when a requested feed URI does not name one
	// of this generator's algorithms.
	ErrUnknownFeed = errors.New("unknown feed")

	// ErrInvalidCursor is returned when a pagination cursor cannot be parsed.
	ErrInvalidCursor = errors.New("invalid cursor")
)
