package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrips(t *testing.T) {
	w := NewWriter(nil)
	w.Bool(true)
	w.U8(0x42)
	w.I8(-5)
	w.U16(0xBEEF)
	w.I16(-1000)
	w.U32(0xDEADBEEF)
	w.I32(-70000)
	w.U64(0x0102030405060708)
	w.I64(-1)
	w.F32(3.5)
	w.F64(2.71828)

	r := NewReader(w.Bytes())

	b, err := r.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	u8, err := r.U8()
	require.NoError(t, err)
	assert.EqualValues(t, 0x42, u8)

	i8, err := r.I8()
	require.NoError(t, err)
	assert.EqualValues(t, -5, i8)

	u16, err := r.U16()
	require.NoError(t, err)
	assert.EqualValues(t, 0xBEEF, u16)

	i16, err := r.I16()
	require.NoError(t, err)
	assert.EqualValues(t, -1000, i16)

	u32, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 0xDEADBEEF, u32)

	i32, err := r.I32()
	require.NoError(t, err)
	assert.EqualValues(t, -70000, i32)

	u64, err := r.U64()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0102030405060708, u64)

	i64, err := r.I64()
	require.NoError(t, err)
	assert.EqualValues(t, -1, i64)

	f32, err := r.F32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)

	f64, err := r.F64()
	require.NoError(t, err)
	assert.Equal(t, 2.71828, f64)

	assert.Zero(t, r.Remaining())
}

func TestU32IsBigEndianOnWire(t *testing.T) {
	w := NewWriter(nil)
	w.U32(0x12345678)
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, w.Bytes())
}

func TestAlignToPadsAndAdvancesSymmetrically(t *testing.T) {
	w := NewWriter(nil)
	w.U8(1)
	w.AlignTo(4)
	w.U32(0xAABBCCDD)

	assert.Len(t, w.Bytes(), 8)

	r := NewReader(w.Bytes())
	v, err := r.U8()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	require.NoError(t, r.AlignTo(4))
	u, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 0xAABBCCDD, u)
}

func TestAlignToNoopWhenAlreadyAligned(t *testing.T) {
	w := NewWriter(nil)
	w.U32(1)
	w.AlignTo(4)
	assert.Len(t, w.Bytes(), 4)
}

func TestFixedStringRoundTrip(t *testing.T) {
	w := NewWriter(nil)
	err := w.FixedString("hi", 16)
	require.NoError(t, err)
	assert.Len(t, w.Bytes(), 16)

	r := NewReader(w.Bytes())
	s, err := r.FixedString(16)
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
}

func TestFixedStringTooLong(t *testing.T) {
	w := NewWriter(nil)
	err := w.FixedString("too long to fit", 4)
	assert.ErrorIs(t, err, errStringTooLong)
}

func TestDynamicStringRoundTrip(t *testing.T) {
	w := NewWriter(nil)
	w.DynamicString("hello, SOME/IP")

	r := NewReader(w.Bytes())
	s, err := r.DynamicString()
	require.NoError(t, err)
	assert.Equal(t, "hello, SOME/IP", s)
}

func TestDynamicArrayRoundTrip(t *testing.T) {
	values := []uint32{1, 2, 3, 4, 5}

	w := NewWriter(nil)
	w.DynamicArrayLength(uint32(len(values)))
	for _, v := range values {
		w.U32(v)
	}

	r := NewReader(w.Bytes())
	n, err := r.DynamicArrayLength()
	require.NoError(t, err)

	got := make([]uint32, n)
	for i := range got {
		got[i], err = r.U32()
		require.NoError(t, err)
	}
	assert.Equal(t, values, got)
}

func TestShortReadIsMalformed(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.U32()
	assert.ErrorIs(t, err, errShortRead)
}

func TestStructLikeComposition(t *testing.T) {
	// struct { u8 tag; u32 value; } sequential, no padding between fields.
	w := NewWriter(nil)
	w.U8(7)
	w.U32(12345)

	r := NewReader(w.Bytes())
	tag, err := r.U8()
	require.NoError(t, err)
	value, err := r.U32()
	require.NoError(t, err)

	assert.EqualValues(t, 7, tag)
	assert.EqualValues(t, 12345, value)
}
