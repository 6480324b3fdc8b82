package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/waheedejaz/opensomeip"
)

// Scenario 1 from spec.md §8: basic RPC round-trip with the exact byte
// sequence given in the spec.
func TestEncodeBasicRPC(t *testing.T) {
	m := someip.NewMessage(
		someip.MessageId{ServiceId: 0x1234, MethodId: 0x5678},
		someip.RequestId{ClientId: 0x9ABC, SessionId: 0xDEF0},
		1,
		someip.MessageTypeRequest,
		someip.EOk,
		[]byte{0x01, 0x02, 0x03, 0x04, 0x05},
	)

	want := []byte{
		0x12, 0x34, 0x56, 0x78,
		0x00, 0x00, 0x00, 0x0D,
		0x9A, 0xBC, 0xDE, 0xF0,
		0x01, 0x01, 0x00, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05,
	}

	got := Encode(m)
	assert.Equal(t, want, got)
	assert.Len(t, got, 21)

	decoded, err := Decode(got, Options{})
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestDecodeRoundTripAllMessageTypes(t *testing.T) {
	types := []someip.MessageType{
		someip.MessageTypeRequest, someip.MessageTypeRequestNoReturn,
		someip.MessageTypeNotification, someip.MessageTypeRequestAck,
		someip.MessageTypeResponse, someip.MessageTypeError,
		someip.MessageTypeResponseAck, someip.MessageTypeErrorAck,
		someip.MessageTypeTPRequest, someip.MessageTypeTPRequestNoReturn,
		someip.MessageTypeTPNotification, someip.MessageTypeTPResponse,
		someip.MessageTypeTPError,
	}
	for _, mt := range types {
		t.Run(mt.String(), func(t *testing.T) {
			m := someip.NewMessage(someip.MessageId{ServiceId: 1, MethodId: 2},
				someip.RequestId{ClientId: 3, SessionId: 4}, 0, mt, someip.EOk, []byte("payload"))
			decoded, err := Decode(Encode(m), Options{})
			require.NoError(t, err)
			assert.Equal(t, m, decoded)
		})
	}
}

func TestEncodeLengthIsDerived(t *testing.T) {
	m := someip.NewMessage(someip.MessageId{}, someip.RequestId{}, 0,
		someip.MessageTypeNotification, someip.EOk, make([]byte, 100))
	got := Encode(m)
	assert.Len(t, got, someip.HeaderSize+100)
}

func TestDecodeBoundaries(t *testing.T) {
	t.Run("15 byte input is malformed", func(t *testing.T) {
		_, err := Decode(make([]byte, 15), Options{})
		assertKind(t, err, someip.KindMalformedMessage)
	})

	t.Run("length field of 7 is malformed", func(t *testing.T) {
		data := []byte{
			0x12, 0x34, 0x56, 0x78,
			0x00, 0x00, 0x00, 0x07,
			0x00, 0x00, 0x00, 0x00,
			0x01, 0x00, 0x00, 0x00,
		}
		_, err := Decode(data, Options{})
		assertKind(t, err, someip.KindMalformedMessage)
	})

	t.Run("payload one byte shorter than length implies is malformed", func(t *testing.T) {
		// length = 8 + 4 = 12, but 16 + 3 bytes actually supplied.
		data := make([]byte, someip.HeaderSize+3)
		data[7] = 12
		data[12] = someip.ProtocolVersion
		_, err := Decode(data, Options{})
		assertKind(t, err, someip.KindMalformedMessage)
	})

	t.Run("wrong protocol version", func(t *testing.T) {
		data := make([]byte, someip.HeaderSize)
		data[7] = 8
		data[12] = 0x02
		_, err := Decode(data, Options{})
		assertKind(t, err, someip.KindWrongProtocolVersion)
	})

	t.Run("wrong interface version when checked", func(t *testing.T) {
		data := make([]byte, someip.HeaderSize)
		data[7] = 8
		data[12] = someip.ProtocolVersion
		data[13] = 5
		_, err := Decode(data, Options{CheckInterfaceVersion: true, ExpectedInterfaceVersion: 1})
		assertKind(t, err, someip.KindWrongInterfaceVersion)
	})

	t.Run("interface version ignored unless CheckInterfaceVersion set", func(t *testing.T) {
		data := make([]byte, someip.HeaderSize)
		data[7] = 8
		data[12] = someip.ProtocolVersion
		data[13] = 5
		_, err := Decode(data, Options{})
		assert.NoError(t, err)
	})

	t.Run("unknown message type is malformed", func(t *testing.T) {
		data := make([]byte, someip.HeaderSize)
		data[7] = 8
		data[12] = someip.ProtocolVersion
		data[14] = 0x99
		_, err := Decode(data, Options{})
		assertKind(t, err, someip.KindMalformedMessage)
	})

	t.Run("unknown return code is malformed", func(t *testing.T) {
		data := make([]byte, someip.HeaderSize)
		data[7] = 8
		data[12] = someip.ProtocolVersion
		data[15] = 0x0B
		_, err := Decode(data, Options{})
		assertKind(t, err, someip.KindMalformedMessage)
	})

	t.Run("never reads past the slice", func(t *testing.T) {
		assert.NotPanics(t, func() {
			_, _ = Decode(nil, Options{})
			_, _ = Decode([]byte{1, 2, 3}, Options{})
		})
	})
}

func assertKind(t *testing.T, err error, kind someip.Kind) {
	t.Helper()
	require.Error(t, err)
	serr, ok := err.(*someip.Error)
	require.True(t, ok, "expected *someip.Error, got %T", err)
	assert.Equal(t, kind, serr.Kind)
}
