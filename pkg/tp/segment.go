// Package tp implements the SOME/IP Transport Protocol: segmentation of
// oversized messages into ordered, offset-aligned fragments and reassembly
// tolerant of reordering, duplicates and timeouts. The segment state
// machine (toggle/offset bookkeeping, header-stripping on the first
// fragment) is grounded on pkg/sdo/download_segmented.go and
// download_block.go in the teacher stack, adapted from SDO's single
// in-flight transfer to SOME/IP's many-concurrent-transfers model.
package tp

import (
	"encoding/binary"

	someip "github.com/waheedejaz/opensomeip"
)

// tpHeaderSize is the 4-byte TP segment header that follows the 16-byte
// SOME/IP header on every TP_* frame: offset (28 bits, in 16-byte units)
// || reserved (3 bits) || more_segments (1 bit).
const tpHeaderSize = 4

// offsetUnit is the alignment granularity of segment_offset.
const offsetUnit = 16

// Kind distinguishes the four segment roles of spec.md §3's tp_message_type.
// Unlike MessageType this never rides the wire directly: SINGLE_MESSAGE is
// just the plain message, and FIRST/CONSECUTIVE/LAST are told apart on the
// wire by segment_offset (0 vs >0) and the more_segments bit.
type Kind uint8

const (
	KindSingle Kind = iota
	KindFirst
	KindConsecutive
	KindLast
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "SINGLE_MESSAGE"
	case KindFirst:
		return "FIRST_SEGMENT"
	case KindConsecutive:
		return "CONSECUTIVE_SEGMENT"
	case KindLast:
		return "LAST_SEGMENT"
	default:
		return "UNKNOWN_SEGMENT"
	}
}

// Segment is one fragment produced by Segmenter.Segment or parsed back out
// of a received TP_* frame by Reassembler. Offset and the payload slices
// are always relative to the original message's payload, never to the
// wire frame that carries them.
//
// The outer RequestId actually placed on the wire for First/Consecutive/Last
// frames is {ClientId: RequestId.ClientId, SessionId: uint16(SequenceNumber)}
// rather than RequestId itself: it is a synthetic per-transfer correlator
// the segmenter mints so that notifications sharing a disabled (zero)
// session_id can still be told apart while in flight. The genuine
// RequestId the application used travels inline, embedded in the
// FIRST_SEGMENT's copy of the original 16-byte header, and is what the
// Reassembler hands back on completion.
type Segment struct {
	MessageId        someip.MessageId
	RequestId        someip.RequestId
	InterfaceVersion uint8
	BaseType         someip.MessageType
	ReturnCode       someip.ReturnCode

	Kind           Kind
	SequenceNumber uint8
	Offset         uint32
	MessageLength  uint32

	// Payload is the segment's own contribution: the fully encoded message
	// for KindSingle, or a payload-only slice for the other three kinds.
	Payload []byte
	// EmbeddedHeader is set only on KindFirst: the 16 original header bytes
	// that precede the first slice of payload in that frame.
	EmbeddedHeader []byte
}

// MoreSegments reports the wire more_segments bit for this kind.
func (s Segment) MoreSegments() bool {
	return s.Kind == KindFirst || s.Kind == KindConsecutive
}

// Frame renders the segment as wire-ready bytes: for KindSingle this is
// simply the already fully-encoded message; the other kinds are wrapped in
// a fresh SOME/IP header bearing the TP_* message type and the 4-byte TP
// header, per spec.md §6.
func (s Segment) Frame(encode func(someip.Message) []byte) []byte {
	if s.Kind == KindSingle {
		return s.Payload
	}

	tpVariant, ok := someip.TPVariant(s.BaseType)
	if !ok {
		tpVariant = s.BaseType
	}

	body := make([]byte, 0, tpHeaderSize+len(s.EmbeddedHeader)+len(s.Payload))
	body = append(body, packTPHeader(s.Offset, s.MoreSegments())...)
	if s.Kind == KindFirst {
		body = append(body, s.EmbeddedHeader...)
	}
	body = append(body, s.Payload...)

	outer := someip.NewMessage(
		s.MessageId,
		someip.RequestId{ClientId: s.RequestId.ClientId, SessionId: uint16(s.SequenceNumber)},
		s.InterfaceVersion,
		tpVariant,
		s.ReturnCode,
		body,
	)
	return encode(outer)
}

// packTPHeader packs the 28-bit offset-in-16-byte-units and more_segments
// bit into the 4-byte TP header.
func packTPHeader(offsetBytes uint32, more bool) []byte {
	units := offsetBytes / offsetUnit
	word := units << 4
	if more {
		word |= 1
	}
	buf := make([]byte, tpHeaderSize)
	binary.BigEndian.PutUint32(buf, word)
	return buf
}

// unpackTPHeader is the symmetric decode.
func unpackTPHeader(buf []byte) (offsetBytes uint32, more bool) {
	word := binary.BigEndian.Uint32(buf)
	more = word&1 != 0
	offsetBytes = (word >> 4) * offsetUnit
	return
}
