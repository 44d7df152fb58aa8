// Package car reads and writes CARv1 block archives, the container a relay
// commit uses to ship the blocks it references.
//
// An archive is a varint-length-prefixed DAG-CBOR header followed by zero or
// more sections. Each section is a varint length, a binary CID and the
// block bytes that CID addresses.
package car

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/blackmichael/music-feeds/internal/codec"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"
)

// ErrArchiveCorrupt is returned for any archive that cannot be read in full
// or whose blocks do not hash to their CIDs.
var ErrArchiveCorrupt = errors.New("archive corrupt")

// maxSectionSize bounds a single section so a bad length prefix cannot
// force a huge allocation. Relay blocks are far smaller.
const maxSectionSize = 2 << 20

type header struct {
	Version uint64       `cbor:"version"`
	Roots   []codec.Link `cbor:"roots"`
}

// Archive is a parsed block archive, indexed by full CID.
type Archive struct {
	Roots  []cid.Cid
	blocks map[cid.Cid][]byte
}

// Get returns the block addressed by c. Lookups compare the complete CID,
// never a prefix of its hash.
func (a *Archive) Get(c cid.Cid) ([]byte, bool) {
	b, ok := a.blocks[c]
	return b, ok
}

// Len returns the number of distinct blocks in the archive.
func (a *Archive) Len() int {
	return len(a.blocks)
}

// Read parses data as a CARv1 archive and verifies every block against its
// CID. An empty input is treated as an archive with no blocks.
func Read(data []byte) (*Archive, error) {
	archive := &Archive{blocks: make(map[cid.Cid][]byte)}
	if len(data) == 0 {
		return archive, nil
	}

	r := bytes.NewReader(data)

	headerBytes, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrArchiveCorrupt, err)
	}

	var h header
	if err := codec.Unmarshal(headerBytes, &h); err != nil {
		return nil, fmt.Errorf("%w: decode header: %v", ErrArchiveCorrupt, err)
	}
	if h.Version != 1 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrArchiveCorrupt, h.Version)
	}
	for _, root := range h.Roots {
		archive.Roots = append(archive.Roots, root.CID)
	}

	for r.Len() > 0 {
		section, err := readSection(r)
		if err != nil {
			return nil, fmt.Errorf("%w: read section %d: %v", ErrArchiveCorrupt, archive.Len(), err)
		}

		n, c, err := cid.CidFromBytes(section)
		if err != nil {
			return nil, fmt.Errorf("%w: parse section CID: %v", ErrArchiveCorrupt, err)
		}
		block := section[n:]

		if err := verify(c, block); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
		}
		archive.blocks[c] = block
	}

	return archive, nil
}

func readSection(r *bytes.Reader) ([]byte, error) {
	size, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	if size == 0 {
		return nil, errors.New("zero-length section")
	}
	if size > maxSectionSize || size > uint64(r.Len()) {
		return nil, fmt.Errorf("section length %d exceeds remaining %d bytes", size, r.Len())
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func verify(c cid.Cid, block []byte) error {
	sum, err := c.Prefix().Sum(block)
	if err != nil {
		return fmt.Errorf("hash block %s: %v", c, err)
	}
	if !sum.Equals(c) {
		return fmt.Errorf("block %s does not match its content (hashes to %s)", c, sum)
	}
	return nil
}
