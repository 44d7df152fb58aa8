// Package codec is the single place the service configures CBOR. Relay
// frames, commit bodies, archive headers and records are all DAG-CBOR, so
// every package encodes and decodes through the modes defined here instead
// of importing fxamacker/cbor directly.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses RFC 7049 canonical ordering (length-first map keys,
// smallest integer encoding), which is the key order DAG-CBOR requires.
var encMode cbor.EncMode

// decMode accepts standard CBOR and silently skips unknown struct fields,
// so new relay fields never break decoding.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// DAG-CBOR only has string keys; decode any-typed maps the way
		// encoding/json would.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR data item from data into v. Trailing
// bytes are an error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// UnmarshalFirst decodes the first CBOR data item in data into v and
// returns the bytes that follow it.
func UnmarshalFirst(data []byte, v any) (rest []byte, err error) {
	return decMode.UnmarshalFirst(data, v)
}

// Wellformed reports an error unless data is exactly one well-formed CBOR
// data item.
func Wellformed(data []byte) error {
	return decMode.Wellformed(data)
}

// RawMessage is a raw encoded CBOR value, used to defer decoding of a
// frame body until its type tag is known.
type RawMessage = cbor.RawMessage
