package tp

import "errors"

var (
	errSegmentSizeTooSmall = errors.New("max_segment_size too small to carry a TP header and original header")
	errShortTPHeader       = errors.New("TP frame payload shorter than the 4-byte TP header")
	errBadEmbeddedHeader   = errors.New("FIRST_SEGMENT embedded header is malformed")
	errNoMatchingBuffer    = errors.New("segment has no matching reassembly buffer")
	errSegmentOutOfRange   = errors.New("segment_offset + segment_length exceeds message_length")
	errMessageLengthBad    = errors.New("message_length exceeds the configured maximum")

	// ErrTransferTableFull is returned by Manager.BeginSend when
	// max_concurrent_transfers is already reached.
	ErrTransferTableFull = errors.New("send-transfer table is at max_concurrent_transfers")
	// ErrUnknownTransfer is returned by Manager operations given a
	// transfer_id that is not (or no longer) tracked.
	ErrUnknownTransfer = errors.New("unknown transfer_id")
)
