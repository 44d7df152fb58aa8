package codec

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCID(t *testing.T, data string) cid.Cid {
	t.Helper()
	c, err := cid.Prefix{Version: 1, Codec: cid.DagCBOR, MhType: mh.SHA2_256, MhLength: -1}.Sum([]byte(data))
	require.NoError(t, err)
	return c
}

type withLink struct {
	Name string `cbor:"name"`
	Ref  *Link  `cbor:"ref"`
}

func TestLinkRoundtrip(t *testing.T) {
	original := withLink{Name: "post", Ref: NewLink(testCID(t, "hello"))}

	data, err := Marshal(original)
	require.NoError(t, err)

	var decoded withLink
	require.NoError(t, Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Ref)
	assert.True(t, decoded.Ref.CID.Equals(original.Ref.CID))
	assert.Equal(t, original.Ref.String(), decoded.Ref.String())
}

func TestLinkNullDecodesToNil(t *testing.T) {
	data, err := Marshal(map[string]any{"name": "x", "ref": nil})
	require.NoError(t, err)

	var decoded withLink
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Ref)
}

func TestLinkRejectsWrongTag(t *testing.T) {
	c := testCID(t, "hello")
	data, err := Marshal(cbor.Tag{Number: 43, Content: append([]byte{0x00}, c.Bytes()...)})
	require.NoError(t, err)

	var l Link
	assert.Error(t, Unmarshal(data, &l))
}

func TestLinkRejectsMissingPrefix(t *testing.T) {
	c := testCID(t, "hello")
	data, err := Marshal(cbor.Tag{Number: linkTag, Content: c.Bytes()})
	require.NoError(t, err)

	var l Link
	assert.Error(t, Unmarshal(data, &l))
}

func TestUnmarshalFirstReturnsRest(t *testing.T) {
	first, err := Marshal(map[string]any{"op": 1})
	require.NoError(t, err)
	second, err := Marshal("tail")
	require.NoError(t, err)

	var m map[string]any
	rest, err := UnmarshalFirst(append(first, second...), &m)
	require.NoError(t, err)
	assert.Equal(t, second, rest)
	assert.NoError(t, Wellformed(rest))
	assert.Error(t, Wellformed(rest[:len(rest)-1]))
}
