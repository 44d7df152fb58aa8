package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const cursorSeparator = "::"

// Cursor is a position in the (IndexedAt, URI) feed order. Pagination
// resumes strictly after it, towards older posts.
type Cursor struct {
	IndexedAt time.Time

	// URI breaks ties between posts indexed in the same microsecond. An
	// empty URI means "strictly older than IndexedAt".
	URI string
}

// CursorAfter returns the cursor positioned at p.
func CursorAfter(p Post) *Cursor {
	return &Cursor{IndexedAt: p.IndexedAt, URI: p.URI}
}

// String encodes the cursor as "<unix micros>::<uri>".
func (c Cursor) String() string {
	micros := strconv.FormatInt(c.IndexedAt.UnixMicro(), 10)
	if c.URI == "" {
		return micros
	}
	return micros + cursorSeparator + c.URI
}

// ParseCursor decodes a token produced by Cursor.String. A bare timestamp is
// accepted as well.
func ParseCursor(s string) (*Cursor, error) {
	micros, uri, _ := strings.Cut(s, cursorSeparator)

	ts, err := strconv.ParseInt(micros, 10, 64)
	if err != nil || ts < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCursor, s)
	}
	if strings.Contains(s, cursorSeparator) && uri == "" {
		return nil, fmt.Errorf("%w: %q has an empty uri", ErrInvalidCursor, s)
	}

	return &Cursor{IndexedAt: time.UnixMicro(ts).UTC(), URI: uri}, nil
}
