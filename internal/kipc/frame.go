package kipc

import (
	"encoding/binary"
	"fmt"

	"github.com/tickship/tickship/internal/domain"
)

// MsgKind is the message kind byte in the frame header.
type MsgKind byte

const (
	// MsgAsync is a fire-and-forget message; the server sends no reply.
	MsgAsync MsgKind = 0
	// MsgSync is a request the server answers with exactly one MsgResponse.
	MsgSync MsgKind = 1
	// MsgResponse is the server's answer to a MsgSync request.
	MsgResponse MsgKind = 2
)

// HeaderSize is the fixed message header length: endianness marker, message
// kind, compression flag, reserved byte, then the 4-byte total length
// (header included).
const HeaderSize = 8

// DefaultMaxFrameBytes bounds inbound frames; a declared length beyond the
// limit means a misbehaving or incompatible peer.
const DefaultMaxFrameBytes = 64 << 20

// Header is a parsed message header.
type Header struct {
	LittleEndian bool
	Kind         MsgKind
	Compressed   bool
	Length       uint32
}

// PayloadLen returns the body length that follows the header.
func (h Header) PayloadLen() int { return int(h.Length) - HeaderSize }

// Frame prepends the message header to an encoded payload. Frames are
// written big-endian (marker byte 0), matching the codec.
func Frame(payload []byte, kind MsgKind) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[1] = byte(kind)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// ParseHeader validates the first HeaderSize bytes of b. It returns
// domain.ErrIncompleteFrame when b is shorter than a header and
// domain.ErrFrameTooLarge when the declared length exceeds maxBytes.
func ParseHeader(b []byte, maxBytes uint32) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d of %d header bytes",
			domain.ErrIncompleteFrame, len(b), HeaderSize)
	}
	h := Header{
		LittleEndian: b[0] == 1,
		Kind:         MsgKind(b[1]),
		Compressed:   b[2] == 1,
	}
	if h.LittleEndian {
		h.Length = binary.LittleEndian.Uint32(b[4:8])
	} else {
		h.Length = binary.BigEndian.Uint32(b[4:8])
	}
	if h.Length < HeaderSize {
		return Header{}, fmt.Errorf("%w: declared length %d below header size",
			domain.ErrMalformedValue, h.Length)
	}
	if maxBytes > 0 && h.Length > maxBytes {
		return Header{}, fmt.Errorf("%w: declared length %d exceeds limit %d",
			domain.ErrFrameTooLarge, h.Length, maxBytes)
	}
	return h, nil
}

// Unframe extracts the payload from a complete framed message. It returns
// domain.ErrIncompleteFrame when fewer bytes are available than the header
// declares (the caller should read more) and domain.ErrFrameTooLarge when the
// declared length exceeds maxBytes (the caller must abort the connection).
// Compressed payloads are decompressed transparently.
func Unframe(b []byte, maxBytes uint32) (MsgKind, []byte, error) {
	h, err := ParseHeader(b, maxBytes)
	if err != nil {
		return 0, nil, err
	}
	if uint32(len(b)) < h.Length {
		return 0, nil, fmt.Errorf("%w: have %d of %d declared bytes",
			domain.ErrIncompleteFrame, len(b), h.Length)
	}
	payload := b[HeaderSize:h.Length]
	if h.Compressed {
		payload, err = uncompressBody(payload, h.LittleEndian)
		if err != nil {
			return 0, nil, err
		}
	}
	return h.Kind, payload, nil
}
