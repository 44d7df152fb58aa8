package firehose

import (
	"errors"
	"fmt"

	"github.com/blackmichael/music-feeds/internal/codec"
)

// ErrMalformedFrame is returned when a payload is not a valid frame. The
// frame must be dropped; the stream itself is still usable.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameKind is the header op code of a frame.
type FrameKind int64

const (
	FrameMessage FrameKind = 1
	FrameError   FrameKind = -1
)

func (k FrameKind) String() string {
	switch k {
	case FrameMessage:
		return "message"
	case FrameError:
		return "error"
	default:
		return fmt.Sprintf("op(%d)", int64(k))
	}
}

// Message type tags carried in the header of message frames.
const (
	TypeCommit   = "#commit"
	TypeIdentity = "#identity"
	TypeAccount  = "#account"
	TypeSync     = "#sync"
	TypeInfo     = "#info"
)

type frameHeader struct {
	Op   FrameKind `cbor:"op"`
	Type string    `cbor:"t,omitempty"`
}

// Frame is one relay payload: a header followed by a body whose schema
// depends on the header. Each websocket message is exactly one frame.
type Frame struct {
	Kind FrameKind

	// Type is the message type tag. It is empty for error frames.
	Type string

	// Body is the raw CBOR body, decoded lazily with DecodeBody.
	Body codec.RawMessage
}

// ErrorBody is the body of an error frame.
type ErrorBody struct {
	Error   string `cbor:"error"`
	Message string `cbor:"message,omitempty"`
}

// SequencedBody holds the sequence number every stream event carries. It
// decodes #identity, #account and #sync bodies for cursor tracking only.
type SequencedBody struct {
	Seq int64 `cbor:"seq"`
}

// InfoBody is the body of an #info message.
type InfoBody struct {
	Name    string `cbor:"name"`
	Message string `cbor:"message,omitempty"`
}

// DecodeFrame splits payload into its header and body. Both must be
// well-formed CBOR and nothing may follow the body.
func DecodeFrame(payload []byte) (*Frame, error) {
	var h frameHeader
	rest, err := codec.UnmarshalFirst(payload, &h)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedFrame, err)
	}

	switch h.Op {
	case FrameMessage:
		if h.Type == "" {
			return nil, fmt.Errorf("%w: message frame without type tag", ErrMalformedFrame)
		}
	case FrameError:
	default:
		return nil, fmt.Errorf("%w: unknown op %d", ErrMalformedFrame, int64(h.Op))
	}

	if err := codec.Wellformed(rest); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrMalformedFrame, err)
	}

	return &Frame{Kind: h.Op, Type: h.Type, Body: rest}, nil
}

// NewMessageFrame builds a message frame with the given type tag and body.
func NewMessageFrame(typ string, body any) (*Frame, error) {
	raw, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", typ, err)
	}
	return &Frame{Kind: FrameMessage, Type: typ, Body: raw}, nil
}

// NewErrorFrame builds an error frame.
func NewErrorFrame(name, message string) (*Frame, error) {
	raw, err := codec.Marshal(ErrorBody{Error: name, Message: message})
	if err != nil {
		return nil, fmt.Errorf("encode error body: %w", err)
	}
	return &Frame{Kind: FrameError, Body: raw}, nil
}

// Encode returns the wire form of the frame.
func (f *Frame) Encode() ([]byte, error) {
	h := frameHeader{Op: f.Kind}
	if f.Kind == FrameMessage {
		h.Type = f.Type
	}

	header, err := codec.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode frame header: %w", err)
	}
	return append(header, f.Body...), nil
}

// DecodeBody decodes the frame body into v.
func (f *Frame) DecodeBody(v any) error {
	if err := codec.Unmarshal(f.Body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", f.describe(), err)
	}
	return nil
}

func (f *Frame) describe() string {
	if f.Kind == FrameMessage {
		return f.Type
	}
	return f.Kind.String()
}
