// Package payload implements the SOME/IP RPC-argument serialization layer:
// primitive encoders, fixed/dynamic strings and arrays, structs, enums and
// tagged unions, all big-endian per spec.md §4.1. The type-dispatch style
// (one function per wire type, returning an error rather than panicking)
// is grounded on pkg/od/encoding.go in the teacher stack; unlike that
// one-shot byte-slice API, Writer/Reader here are streaming since payload
// values compose (a struct of arrays of strings needs a running cursor
// for AlignTo to measure padding from the start of the message).
package payload

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Writer accumulates a SOME/IP payload. All AlignTo calls are measured
// from the start of the buffer Writer was constructed with (normally the
// start of the message payload), matching spec.md §4.1.
type Writer struct {
	buf    []byte
	origin int
}

// NewWriter returns a Writer appending to buf (which may be non-empty;
// origin marks where alignment measurement should start, typically 0).
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len is the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 0x01)
	} else {
		w.buf = append(w.buf, 0x00)
	}
}

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }
func (w *Writer) I8(v int8)  { w.buf = append(w.buf, byte(v)) }

func (w *Writer) U16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) I16(v int16) { w.U16(uint16(v)) }

func (w *Writer) U32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

func (w *Writer) U64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// AlignTo pads with zero bytes until Len() is a multiple of n, measured
// from origin (normally the start of the message). n must be a power of
// two; n<=1 is a no-op.
func (w *Writer) AlignTo(n int) {
	if n <= 1 {
		return
	}
	pos := len(w.buf) - w.origin
	rem := pos % n
	if rem == 0 {
		return
	}
	pad := n - rem
	w.buf = append(w.buf, make([]byte, pad)...)
}

// Utf16BOM is the byte-order-mark SOME/IP strings carry when encoded as
// UTF-16BE, per spec.md §4.1.
var Utf16BOM = [2]byte{0xFE, 0xFF}

// FixedString writes exactly width bytes: a 2-byte BOM followed by the
// UTF-16BE encoding of s, zero-padded to width. If the encoding does not
// fit in width-2 bytes, nothing is written and errStringTooLong is returned.
func (w *Writer) FixedString(s string, width int) error {
	encoded := encodeUTF16BE(s)
	body := make([]byte, width-2)
	if len(encoded) > len(body) {
		return errStringTooLong
	}
	copy(body, encoded)
	w.buf = append(w.buf, Utf16BOM[0], Utf16BOM[1])
	w.buf = append(w.buf, body...)
	return nil
}

// DynamicString writes a u32 byte-length prefix (covering the BOM and the
// encoded bytes) followed by the BOM and the UTF-16BE encoding of s.
func (w *Writer) DynamicString(s string) {
	encoded := encodeUTF16BE(s)
	w.U32(uint32(len(encoded) + 2))
	w.buf = append(w.buf, Utf16BOM[0], Utf16BOM[1])
	w.buf = append(w.buf, encoded...)
}

func encodeUTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.BigEndian.PutUint16(out[i*2:], u)
	}
	return out
}

// DynamicArrayLength writes the u32 element-count/byte-length prefix for a
// dynamic-length array; the caller writes the elements themselves
// immediately after.
func (w *Writer) DynamicArrayLength(n uint32) { w.U32(n) }

// Raw appends raw bytes verbatim (used for fixed-length arrays and struct
// padding the caller has already serialized).
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }
