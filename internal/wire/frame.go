// Package wire implements the length-prefixed frame codec that multiplexes
// the Mumble message kinds over one TLS stream.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Type identifies one of the 26 message kinds carried on the wire.
type Type uint16

// Message kinds, in wire order. Index equals the on-the-wire type value.
const (
	TypeVersion Type = iota
	TypeUDPTunnel
	TypeAuthenticate
	TypePing
	TypeReject
	TypeServerSync
	TypeChannelRemove
	TypeChannelState
	TypeUserRemove
	TypeUserState
	TypeBanList
	TypeTextMessage
	TypePermissionDenied
	TypeACL
	TypeQueryUsers
	TypeCryptSetup
	TypeContextActionModify
	TypeContextAction
	TypeUserList
	TypeVoiceTarget
	TypePermissionQuery
	TypeCodecVersion
	TypeUserStats
	TypeRequestBlob
	TypeServerConfig
	TypeSuggestConfig

	numTypes
)

// headerSize is the TYPE(2) + LENGTH(4) prefix on every frame.
const headerSize = 6

// MaxPayload bounds a single frame's payload. A LENGTH beyond this is
// treated as a protocol violation rather than an allocation hazard.
const MaxPayload = 8 << 20 // 8 MiB

// ErrShortBuffer is returned by Decode when the buffered bytes do not yet
// contain a full frame. The caller should read more bytes and retry.
var ErrShortBuffer = errors.New("wire: need more bytes")

// ErrFrameTooLarge is returned by Decode when a frame's declared LENGTH
// exceeds MaxPayload. The connection that produced it must be torn down.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum payload size")

// Frame is one decoded wire message: a type and its raw payload bytes.
// Payload for TypeUDPTunnel is the opaque voice blob; for every other
// type it is a protobuf-wire-encoded record (see package mumbleproto).
type Frame struct {
	Type    Type
	Payload []byte
}

// Valid reports whether t is one of the 26 known message kinds.
func (t Type) Valid() bool {
	return t < numTypes
}

// Decoder turns a growing byte buffer into a stream of Frames. It holds no
// state beyond the unconsumed tail of the buffer and performs no I/O —
// callers own reading bytes off the wire and feeding them in via Feed.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends newly-read bytes to the decoder's buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Decode attempts to consume one full frame from the buffered bytes.
//
// On success it returns the frame and advances past exactly 6+LENGTH
// bytes. If fewer bytes than a full frame are buffered, it returns
// ErrShortBuffer and leaves the buffer untouched; the caller should Feed
// more bytes and call Decode again. Unknown types are reported back to
// the caller as a Frame whose Type is not Valid(); callers must silently
// drop those per the wire contract.
func (d *Decoder) Decode() (Frame, error) {
	if len(d.buf) < headerSize {
		return Frame{}, ErrShortBuffer
	}
	typ := Type(binary.BigEndian.Uint16(d.buf[0:2]))
	length := binary.BigEndian.Uint32(d.buf[2:6])
	if length > MaxPayload {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	total := headerSize + int(length)
	if len(d.buf) < total {
		return Frame{}, ErrShortBuffer
	}

	payload := make([]byte, length)
	copy(payload, d.buf[headerSize:total])

	remaining := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:remaining]

	return Frame{Type: typ, Payload: payload}, nil
}

// Encode serializes typ and payload into the wire frame format. UDPTunnel
// payloads are copied verbatim; every other type's payload must already be
// protobuf-wire-encoded by the caller.
func Encode(typ Type, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint16(out[0:2], uint16(typ))
	binary.BigEndian.PutUint32(out[2:6], uint32(len(payload)))
	copy(out[headerSize:], payload)
	return out
}
