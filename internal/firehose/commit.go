package firehose

import "github.com/blackmichael/music-feeds/internal/codec"

// Repository operation actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Commit is the body of a #commit message: one atomic batch of record
// operations on a single repository, with the blocks they reference.
type Commit struct {
	Seq    int64       `cbor:"seq"`
	Rebase bool        `cbor:"rebase"`
	TooBig bool        `cbor:"tooBig"`
	Repo   string      `cbor:"repo"`
	Commit *codec.Link `cbor:"commit"`
	Rev    string      `cbor:"rev"`
	Since  *string     `cbor:"since"`

	// Blocks is a CARv1 archive holding the records created or updated by
	// Ops, among other repository blocks.
	Blocks []byte   `cbor:"blocks"`
	Ops    []RepoOp `cbor:"ops"`
	Time   string   `cbor:"time"`
}

// RepoOp is a single record operation inside a commit.
type RepoOp struct {
	Action string `cbor:"action"`

	// Path is "<collection>/<rkey>".
	Path string `cbor:"path"`

	// CID addresses the new record. It is nil for deletes.
	CID *codec.Link `cbor:"cid"`
}

// PostRecord is the decoded content of an app.bsky.feed.post record. Only
// the fields needed for link matching are decoded.
type PostRecord struct {
	Type      string   `cbor:"$type"`
	Text      string   `cbor:"text"`
	CreatedAt string   `cbor:"createdAt"`
	Langs     []string `cbor:"langs,omitempty"`
	Facets    []Facet  `cbor:"facets,omitempty"`
}

// Facet annotates a byte range of the post text.
type Facet struct {
	Features []FacetFeature `cbor:"features"`
}

// FacetFeature is one facet feature. Link features carry the full URI,
// which clients often shorten in the visible text.
type FacetFeature struct {
	Type string `cbor:"$type"`
	URI  string `cbor:"uri,omitempty"`
}

const facetLinkType = "app.bsky.richtext.facet#link"

// LinkURIs returns the URIs of all link facets.
func (r *PostRecord) LinkURIs() []string {
	var uris []string
	for _, f := range r.Facets {
		for _, feat := range f.Features {
			if feat.Type == facetLinkType && feat.URI != "" {
				uris = append(uris, feat.URI)
			}
		}
	}
	return uris
}
