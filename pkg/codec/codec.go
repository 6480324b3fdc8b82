// Package codec implements the SOME/IP wire codec: bit-exact big-endian
// framing of the 16-byte header plus payload, with the strict invariants
// and recoverable failure modes spec.md §4.1 requires. Dispatch here
// mirrors the type-switch style of pkg/od/encoding.go in the teacher
// stack, adapted from CANopen's little-endian object values to SOME/IP's
// big-endian wire format.
package codec

import (
	"encoding/binary"

	someip "github.com/waheedejaz/opensomeip"
)

// Options configures strictness of Decode. The zero value performs every
// check except interface-version validation, which spec.md allows a
// caller to defer to a higher layer.
type Options struct {
	// ExpectedInterfaceVersion is the value Decode compares InterfaceVersion
	// against when CheckInterfaceVersion is set; on its own it enables no check.
	ExpectedInterfaceVersion uint8
	// CheckInterfaceVersion enables the interface-version check even when
	// ExpectedInterfaceVersion is zero (since zero is a legal configured
	// value).
	CheckInterfaceVersion bool
}

// Encode serializes a Message into wire bytes: 16 bytes of header plus the
// payload, recomputing the `length` field from the payload before
// emitting (per spec.md §4.1, encode never trusts a caller-set length).
func Encode(m someip.Message) []byte {
	out := make([]byte, someip.HeaderSize+len(m.Payload))

	binary.BigEndian.PutUint16(out[0:2], m.MessageId.ServiceId)
	binary.BigEndian.PutUint16(out[2:4], m.MessageId.MethodId)
	binary.BigEndian.PutUint32(out[4:8], m.Length())
	binary.BigEndian.PutUint16(out[8:10], m.RequestId.ClientId)
	binary.BigEndian.PutUint16(out[10:12], m.RequestId.SessionId)
	out[12] = someip.ProtocolVersion
	out[13] = m.InterfaceVersion
	out[14] = uint8(m.MessageType)
	out[15] = uint8(m.ReturnCode)
	copy(out[16:], m.Payload)

	return out
}

// Decode parses wire bytes into a Message, enforcing every invariant of
// spec.md §4.1. It never panics and never reads past the end of data.
func Decode(data []byte, opts Options) (someip.Message, error) {
	var m someip.Message

	if len(data) < someip.HeaderSize {
		return m, someip.NewError(someip.KindMalformedMessage, errShortHeader)
	}

	length := binary.BigEndian.Uint32(data[4:8])
	if length < 8 {
		return m, someip.NewError(someip.KindMalformedMessage, errLengthTooSmall)
	}

	wantTotal := someip.HeaderSize + int(length-8)
	if len(data) != wantTotal {
		return m, someip.NewError(someip.KindMalformedMessage, errLengthMismatch)
	}

	protocolVersion := data[12]
	if protocolVersion != someip.ProtocolVersion {
		return m, someip.NewError(someip.KindWrongProtocolVersion, nil)
	}

	interfaceVersion := data[13]
	if opts.CheckInterfaceVersion && interfaceVersion != opts.ExpectedInterfaceVersion {
		return m, someip.NewError(someip.KindWrongInterfaceVersion, nil)
	}

	messageType := someip.MessageType(data[14])
	if !messageType.IsValid() {
		return m, someip.NewError(someip.KindMalformedMessage, errBadMessageType)
	}

	returnCode := someip.ReturnCode(data[15])
	if !returnCode.IsValid() {
		return m, someip.NewError(someip.KindMalformedMessage, errBadReturnCode)
	}

	payload := make([]byte, length-8)
	copy(payload, data[16:])

	m = someip.Message{
		MessageId:        someip.MessageId{ServiceId: binary.BigEndian.Uint16(data[0:2]), MethodId: binary.BigEndian.Uint16(data[2:4])},
		RequestId:        someip.RequestId{ClientId: binary.BigEndian.Uint16(data[8:10]), SessionId: binary.BigEndian.Uint16(data[10:12])},
		ProtocolVersion:  protocolVersion,
		InterfaceVersion: interfaceVersion,
		MessageType:      messageType,
		ReturnCode:       returnCode,
		Payload:          payload,
	}
	return m, nil
}
