package tp

import (
	"sync"

	someip "github.com/waheedejaz/opensomeip"
	"github.com/waheedejaz/opensomeip/pkg/codec"
)

// Segmenter splits oversized messages into ordered TP segments per
// spec.md §4.3. It owns one monotonic 8-bit sequence counter per service,
// the way the teacher's SDO client owns one toggle bit per transfer -
// scoped to the thing that must stay distinct across concurrent transfers,
// not global.
type Segmenter struct {
	mu    sync.Mutex
	seqOf map[uint16]uint8
}

func NewSegmenter() *Segmenter {
	return &Segmenter{seqOf: make(map[uint16]uint8)}
}

func (sg *Segmenter) nextSequence(serviceId uint16) uint8 {
	sg.mu.Lock()
	defer sg.mu.Unlock()
	seq := sg.seqOf[serviceId]
	sg.seqOf[serviceId] = seq + 1 // uint8 wraps 0xFF -> 0x00
	return seq
}

// Segment implements segment(message, max_segment_size) -> Vec<TpSegment>.
// maxMessageSize bounds the *original* payload; exceeding it fails
// MESSAGE_TOO_LARGE before anything is segmented.
func (sg *Segmenter) Segment(msg someip.Message, maxSegmentSize, maxMessageSize int) ([]Segment, error) {
	if len(msg.Payload) > maxMessageSize {
		return nil, someip.NewError(someip.KindMessageTooLarge, nil)
	}

	encoded := codec.Encode(msg)
	if len(encoded) <= maxSegmentSize {
		return []Segment{{
			MessageId:     msg.MessageId,
			RequestId:     msg.RequestId,
			Kind:          KindSingle,
			MessageLength: uint32(len(msg.Payload)),
			Payload:       encoded,
		}}, nil
	}

	// max_segment_size bounds the whole wire frame (outer SOME/IP header +
	// TP header + carried bytes), the way a real deployment picks it to
	// clear the network MTU. FIRST_SEGMENT additionally carries a copy of
	// the original 16-byte header ahead of its payload slice.
	firstCapacity := (maxSegmentSize - 2*someip.HeaderSize - tpHeaderSize) / offsetUnit * offsetUnit
	consecutiveCapacity := (maxSegmentSize - someip.HeaderSize - tpHeaderSize) / offsetUnit * offsetUnit
	if firstCapacity <= 0 || consecutiveCapacity <= 0 {
		return nil, errSegmentSizeTooSmall
	}

	seq := sg.nextSequence(msg.MessageId.ServiceId)
	total := len(msg.Payload)
	originalHeader := append([]byte(nil), encoded[:someip.HeaderSize]...)

	shared := Segment{
		MessageId:        msg.MessageId,
		RequestId:        msg.RequestId,
		InterfaceVersion: msg.InterfaceVersion,
		BaseType:         msg.MessageType,
		ReturnCode:       msg.ReturnCode,
		SequenceNumber:   seq,
		MessageLength:    uint32(total),
	}

	firstN := firstCapacity
	if firstN > total {
		firstN = total
	}
	first := shared
	first.Kind = KindFirst
	first.Offset = 0
	first.Payload = msg.Payload[:firstN]
	first.EmbeddedHeader = originalHeader
	segments := []Segment{first}

	offset := firstN
	for offset < total {
		remaining := total - offset
		seg := shared
		seg.Offset = uint32(offset)
		if remaining <= consecutiveCapacity {
			seg.Kind = KindLast
			seg.Payload = msg.Payload[offset:total]
			offset = total
		} else {
			seg.Kind = KindConsecutive
			seg.Payload = msg.Payload[offset : offset+consecutiveCapacity]
			offset += consecutiveCapacity
		}
		segments = append(segments, seg)
	}

	return segments, nil
}
