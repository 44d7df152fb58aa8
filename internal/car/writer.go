package car

import (
	"bytes"
	"fmt"
	"io"

	"github.com/blackmichael/music-feeds/internal/codec"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

// Block is one content-addressed entry of an archive.
type Block struct {
	CID  cid.Cid
	Data []byte
}

// NewBlock addresses data the way repository records are addressed: CIDv1,
// dag-cbor codec, sha2-256.
func NewBlock(data []byte) (Block, error) {
	pref := cid.Prefix{
		Version:  1,
		Codec:    cid.DagCBOR,
		MhType:   mh.SHA2_256,
		MhLength: -1,
	}

	c, err := pref.Sum(data)
	if err != nil {
		return Block{}, fmt.Errorf("sum block: %w", err)
	}
	return Block{CID: c, Data: data}, nil
}

// Write encodes roots and blocks as a CARv1 archive.
func Write(w io.Writer, roots []cid.Cid, blocks []Block) error {
	h := header{Version: 1, Roots: make([]codec.Link, 0, len(roots))}
	for _, root := range roots {
		h.Roots = append(h.Roots, codec.Link{CID: root})
	}

	headerBytes, err := codec.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := writeSection(w, headerBytes); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, b := range blocks {
		section := append(b.CID.Bytes(), b.Data...)
		if err := writeSection(w, section); err != nil {
			return fmt.Errorf("write block %s: %w", b.CID, err)
		}
	}
	return nil
}

// Encode is Write into a byte slice.
func Encode(roots []cid.Cid, blocks []Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, roots, blocks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSection(w io.Writer, data []byte) error {
	if _, err := w.Write(varint.ToUvarint(uint64(len(data)))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
