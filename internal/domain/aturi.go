package domain

import (
	"fmt"
	"strings"
)

const (
	// PostCollection is the NSID of post records.
	PostCollection = "app.bsky.feed.post"

	// GeneratorCollection is the NSID of feed generator records.
	GeneratorCollection = "app.bsky.feed.generator"
)

// ATURI is a record-level AT-URI: at://<did>/<collection>/<rkey>.
type ATURI struct {
	DID        string
	Collection string
	RKey       string
}

// ParseATURI parses a record-level AT-URI. The authority must be a DID.
func ParseATURI(s string) (ATURI, error) {
	rest, ok := strings.CutPrefix(s, "at://")
	if !ok {
		return ATURI{}, fmt.Errorf("record uri must start with %q", "at://")
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return ATURI{}, fmt.Errorf("record uri must have the form at://<did>/<collection>/<rkey>")
	}
	if !strings.HasPrefix(parts[0], "did:") {
		return ATURI{}, fmt.Errorf("record uri authority must be a DID, got %q", parts[0])
	}

	return ATURI{DID: parts[0], Collection: parts[1], RKey: parts[2]}, nil
}

func (u ATURI) String() string {
	return fmt.Sprintf("at://%s/%s/%s", u.DID, u.Collection, u.RKey)
}
