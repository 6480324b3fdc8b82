package tp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/waheedejaz/opensomeip"
	"github.com/waheedejaz/opensomeip/pkg/codec"
)

func bigMessage(n int) someip.Message {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i)
	}
	return someip.NewMessage(
		someip.MessageId{ServiceId: 0x1234, MethodId: 0x0001},
		someip.RequestId{ClientId: 0x0042, SessionId: 7},
		1,
		someip.MessageTypeRequest,
		someip.EOk,
		payload,
	)
}

func TestSegmentFitsInSingleMessage(t *testing.T) {
	sg := NewSegmenter()
	msg := bigMessage(32)

	segments, err := sg.Segment(msg, 1392, 1<<20)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, KindSingle, segments[0].Kind)
	assert.Equal(t, codec.Encode(msg), segments[0].Payload)
}

// Scenario 3 from spec.md §8: a 4096-byte payload segmented with
// max_segment_size=1392 and reassembled out of order.
func TestSegmentAndReassembleOutOfOrder(t *testing.T) {
	sg := NewSegmenter()
	msg := bigMessage(4096)

	segments, err := sg.Segment(msg, 1392, 1<<20)
	require.NoError(t, err)
	require.True(t, len(segments) >= 3, "4096 bytes at max_segment_size=1392 needs at least FIRST+CONSECUTIVE+LAST")

	assert.Equal(t, KindFirst, segments[0].Kind)
	assert.Equal(t, KindLast, segments[len(segments)-1].Kind)
	var reconstructed int
	for i, seg := range segments {
		frame := seg.Frame(codec.Encode)
		assert.LessOrEqual(t, len(frame), 1392)
		reconstructed += len(seg.Payload)
		if i != 0 && i != len(segments)-1 {
			assert.Equal(t, KindConsecutive, seg.Kind)
		}
	}
	assert.Equal(t, 4096, reconstructed)

	ra := NewReassembler(1<<20, 0)
	sender := someip.Endpoint{Address: "10.0.0.5", Port: 30509, Protocol: someip.ProtocolUDP}

	// Deliver in reverse order to exercise out-of-order tolerance.
	var got someip.Message
	var completed bool
	for i := len(segments) - 1; i >= 0; i-- {
		frame := segments[i].Frame(codec.Encode)
		outer, err := codec.Decode(frame, codec.Options{})
		require.NoError(t, err)
		require.True(t, outer.MessageType.IsTP())

		msgOut, ok, err := ra.Receive(sender, outer, time.Now())
		require.NoError(t, err)
		if ok {
			got = msgOut
			completed = true
		}
	}

	require.True(t, completed, "reassembly should complete once all segments arrive")
	assert.Equal(t, msg.Payload, got.Payload)
	assert.Equal(t, msg.MessageId, got.MessageId)
	assert.Equal(t, msg.RequestId, got.RequestId)
	assert.Equal(t, msg.MessageType, got.MessageType)
}

func TestSegmentMessageTooLarge(t *testing.T) {
	sg := NewSegmenter()
	msg := bigMessage(100)

	_, err := sg.Segment(msg, 1392, 50)
	assert.ErrorIs(t, err, someip.ErrMessageTooLarge)
}

func TestReassemblerDuplicateSegmentIsIdempotent(t *testing.T) {
	sg := NewSegmenter()
	msg := bigMessage(4096)
	segments, err := sg.Segment(msg, 1392, 1<<20)
	require.NoError(t, err)

	ra := NewReassembler(1<<20, 0)
	sender := someip.Endpoint{Address: "10.0.0.5", Port: 30509, Protocol: someip.ProtocolUDP}

	frame0 := segments[0].Frame(codec.Encode)
	outer0, err := codec.Decode(frame0, codec.Options{})
	require.NoError(t, err)

	_, ok, err := ra.Receive(sender, outer0, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	// Re-deliver FIRST_SEGMENT: accept-and-discard, not a second partial copy.
	_, ok, err = ra.Receive(sender, outer0, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	for i := 1; i < len(segments); i++ {
		frame := segments[i].Frame(codec.Encode)
		outer, err := codec.Decode(frame, codec.Options{})
		require.NoError(t, err)
		msgOut, ok, err := ra.Receive(sender, outer, time.Now())
		require.NoError(t, err)
		if i == len(segments)-1 {
			require.True(t, ok)
			assert.Equal(t, msg.Payload, msgOut.Payload)
		}
	}
}

func TestReassemblerDropsConsecutiveWithNoMatchingBuffer(t *testing.T) {
	sg := NewSegmenter()
	msg := bigMessage(4096)
	segments, err := sg.Segment(msg, 1392, 1<<20)
	require.NoError(t, err)

	ra := NewReassembler(1<<20, 0)
	sender := someip.Endpoint{Address: "10.0.0.5", Port: 30509, Protocol: someip.ProtocolUDP}

	frame := segments[1].Frame(codec.Encode) // CONSECUTIVE_SEGMENT, no FIRST seen yet
	outer, err := codec.Decode(frame, codec.Options{})
	require.NoError(t, err)

	_, ok, err := ra.Receive(sender, outer, time.Now())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestSessionChangeSupersedesInFlightBuffer(t *testing.T) {
	sg := NewSegmenter()
	msg := bigMessage(4096)
	ra := NewReassembler(1<<20, 0)
	sender := someip.Endpoint{Address: "10.0.0.5", Port: 30509, Protocol: someip.ProtocolUDP}

	firstTransfer, err := sg.Segment(msg, 1392, 1<<20)
	require.NoError(t, err)
	frame := firstTransfer[0].Frame(codec.Encode)
	outer, err := codec.Decode(frame, codec.Options{})
	require.NoError(t, err)
	_, ok, err := ra.Receive(sender, outer, time.Now())
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, ra.buffers, 1)

	// A second transfer for the same (sender, MessageId, RequestId) begins
	// before the first completed: it gets a new sequence_number and the old
	// buffer must be discarded.
	secondTransfer, err := sg.Segment(msg, 1392, 1<<20)
	require.NoError(t, err)
	frame2 := secondTransfer[0].Frame(codec.Encode)
	outer2, err := codec.Decode(frame2, codec.Options{})
	require.NoError(t, err)
	_, ok, err = ra.Receive(sender, outer2, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	assert.Len(t, ra.buffers, 1, "the superseded first-transfer buffer must be gone")
}
