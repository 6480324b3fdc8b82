package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	someip "github.com/waheedejaz/opensomeip"
)

// StreamFramer implements spec.md §4.8's TCP framing rule: "Stream
// transports must frame messages by reading the 16-byte header,
// extracting length, and delivering exactly 16 + (length-8) bytes
// upward." Grounded on pkg/can/virtual.Bus.Recv's read-header-then-
// read-body shape, adapted from a 4-byte length prefix to SOME/IP's
// self-describing 16-byte header.
type StreamFramer struct {
	r io.Reader
}

// NewStreamFramer wraps a byte stream (a net.Conn, typically) for
// message-at-a-time reading.
func NewStreamFramer(r io.Reader) *StreamFramer {
	return &StreamFramer{r: r}
}

// ReadMessage blocks until one complete SOME/IP frame is available,
// returning its raw bytes (header + payload) ready for codec.Decode.
func (f *StreamFramer) ReadMessage() ([]byte, error) {
	header := make([]byte, someip.HeaderSize)
	if _, err := io.ReadFull(f.r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[4:8])
	if length < 8 {
		return nil, fmt.Errorf("transport: stream frame declares length %d, below the 8-byte minimum", length)
	}

	payload := make([]byte, length-8)
	if len(payload) > 0 {
		if _, err := io.ReadFull(f.r, payload); err != nil {
			return nil, err
		}
	}

	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	frame = append(frame, payload...)
	return frame, nil
}
