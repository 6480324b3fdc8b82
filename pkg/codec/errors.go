package codec

import "errors"

// Package-level sentinel causes wrapped inside someip.Error, grounded on
// the teacher's flat errors.go (one var per failure mode, no payload).
var (
	errShortHeader    = errors.New("slice shorter than the 16-byte header")
	errLengthTooSmall = errors.New("length field smaller than 8")
	errLengthMismatch = errors.New("slice length does not match 16 + (length - 8)")
	errBadMessageType = errors.New("message type not in the enumerated set")
	errBadReturnCode  = errors.New("return code not in the enumerated set")
)
