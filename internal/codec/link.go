package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// linkTag is the CBOR tag DAG-CBOR reserves for content links.
const linkTag = 42

// Link is a DAG-CBOR content link. On the wire it is CBOR tag 42 wrapping
// a byte string made of a 0x00 multibase prefix followed by the binary CID.
type Link struct {
	CID cid.Cid
}

// NewLink wraps c as a Link.
func NewLink(c cid.Cid) *Link {
	return &Link{CID: c}
}

// String returns the base32 string form of the linked CID.
func (l Link) String() string {
	return l.CID.String()
}

// MarshalCBOR implements cbor.Marshaler.
func (l Link) MarshalCBOR() ([]byte, error) {
	if !l.CID.Defined() {
		return nil, errors.New("codec: cannot encode undefined CID link")
	}
	content := append([]byte{0x00}, l.CID.Bytes()...)
	return encMode.Marshal(cbor.Tag{Number: linkTag, Content: content})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.RawTag
	if err := decMode.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("codec: decode link tag: %w", err)
	}
	if tag.Number != linkTag {
		return fmt.Errorf("codec: expected CBOR tag %d for link, got %d", linkTag, tag.Number)
	}

	var content []byte
	if err := decMode.Unmarshal(tag.Content, &content); err != nil {
		return fmt.Errorf("codec: decode link bytes: %w", err)
	}
	if len(content) < 2 || content[0] != 0x00 {
		return errors.New("codec: link bytes missing identity multibase prefix")
	}

	c, err := cid.Cast(content[1:])
	if err != nil {
		return fmt.Errorf("codec: parse linked CID: %w", err)
	}
	l.CID = c
	return nil
}
