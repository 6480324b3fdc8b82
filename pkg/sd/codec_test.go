package sd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ep := NewIPv4EndpointOption([4]byte{10, 0, 0, 5}, L4UDP, 30509)
	msg := Message{
		Reboot:  true,
		Unicast: false,
		Entries: []Entry{
			NewOfferService(0x1111, 0x0001, 1, 0, 10, ep),
			NewSubscribeEventgroup(0x1111, 0x0001, 1, 5, 0x0001, ep),
		},
	}

	encoded := Encode(msg)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.Len(t, decoded.Entries, 2)
	assert.True(t, decoded.Reboot)
	assert.False(t, decoded.Unicast)

	offer := decoded.Entries[0]
	assert.Equal(t, KindOfferService, offer.Kind)
	assert.Equal(t, uint16(0x1111), offer.ServiceId)
	assert.Equal(t, uint32(10), offer.TTL)
	require.Len(t, offer.Options1, 1)
	assert.Equal(t, ep, offer.Options1[0])

	sub := decoded.Entries[1]
	assert.Equal(t, KindSubscribeEventgroup, sub.Kind)
	assert.Equal(t, uint16(0x0001), sub.EventgroupId)
	require.Len(t, sub.Options1, 1)
	assert.Equal(t, ep, sub.Options1[0])
}

func TestEncodeDeduplicatesSharedOption(t *testing.T) {
	ep := NewIPv4EndpointOption([4]byte{10, 0, 0, 5}, L4UDP, 30509)
	msg := Message{Entries: []Entry{
		NewOfferService(0x1111, 0x0001, 1, 0, 10, ep),
		NewOfferService(0x2222, 0x0001, 1, 0, 10, ep),
	}}

	encoded := Encode(msg)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, decoded.Entries[0].Options1, decoded.Entries[1].Options1)

	// Exactly one option in the wire options array, not two.
	options, err := decodeOptions(encoded[entriesArrayEnd(encoded)+4:])
	require.NoError(t, err)
	assert.Len(t, options, 1)
}

func entriesArrayEnd(encoded []byte) int {
	entriesLen := int(uint32(encoded[4])<<24 | uint32(encoded[5])<<16 | uint32(encoded[6])<<8 | uint32(encoded[7]))
	return sdHeaderSize + entriesLen
}

func TestStopOfferServiceHasZeroTTL(t *testing.T) {
	e := NewOfferService(0x1111, 0x0001, 1, 0, 0)
	assert.Equal(t, KindStopOfferService, e.Kind)

	msg := Message{Entries: []Entry{e}}
	decoded, err := Decode(Encode(msg))
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, KindStopOfferService, decoded.Entries[0].Kind)
	assert.Equal(t, uint32(0), decoded.Entries[0].TTL)
}

func TestSubscribeEventgroupNackHasZeroTTL(t *testing.T) {
	e := NewSubscribeEventgroupAck(0x1111, 0x0001, 1, 0, 0x0002)
	assert.Equal(t, KindSubscribeEventgroupNack, e.Kind)
}

func TestDecodeSkipsUnrecognizedEntryType(t *testing.T) {
	msg := Message{Entries: []Entry{NewFindService(0x1111, 3)}}
	encoded := Encode(msg)
	// Corrupt the one entry's type byte to something outside the enumerated set.
	encoded[sdHeaderSize] = 0x0F

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded.Entries)
}

func TestDecodeUnknownOptionTypeIsSkippedNotFatal(t *testing.T) {
	ep := NewIPv4EndpointOption([4]byte{10, 0, 0, 5}, L4UDP, 30509)
	msg := Message{Entries: []Entry{NewOfferService(0x1111, 0x0001, 1, 0, 10, ep)}}
	encoded := Encode(msg)

	optionsStart := entriesArrayEnd(encoded) + 4
	encoded[optionsStart] = 0x7F // unrecognized option type byte

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	require.Len(t, decoded.Entries[0].Options1, 1)
	assert.Equal(t, OptionType(optionUnknown), decoded.Entries[0].Options1[0].Type)
}

// Scenario 6 from spec.md §8: a malformed SD header is rejected without panicking.
func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := Decode([]byte{0x80, 0x00, 0x00})
	assert.Error(t, err)
}

func TestDecodeRejectsEntriesLengthNotMultipleOfEntrySize(t *testing.T) {
	data := make([]byte, sdHeaderSize+4)
	data[7] = 17 // claims 17 bytes of entries, not a multiple of 16
	_, err := Decode(data)
	assert.Error(t, err)
}

func TestDecodeRejectsOutOfBoundsOptionReference(t *testing.T) {
	e := NewOfferService(0x1111, 0x0001, 1, 0, 10)
	// Hand-build: one entry, zero options, but index1/num1 claim an option.
	raw := encodeEntry(e, 0, 1, 0, 0)
	data := make([]byte, sdHeaderSize+len(raw)+4)
	data[7] = byte(len(raw))
	copy(data[sdHeaderSize:], raw)
	// options_array_length stays zero: no options exist, yet num1=1 references one.

	_, err := Decode(data)
	assert.Error(t, err)
}

func TestConfigurationOptionRoundTrip(t *testing.T) {
	opt := Option{Type: OptionConfiguration, ConfigEntries: []string{"protocol=someip", "path=/v1"}}
	msg := Message{Entries: []Entry{NewOfferService(0x1111, 0x0001, 1, 0, 10, opt)}}

	decoded, err := Decode(Encode(msg))
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	require.Len(t, decoded.Entries[0].Options1, 1)
	assert.Equal(t, []string{"protocol=someip", "path=/v1"}, decoded.Entries[0].Options1[0].ConfigEntries)
}

func TestLoadBalancingOptionRoundTrip(t *testing.T) {
	opt := Option{Type: OptionLoadBalancing, Priority: 1, Weight: 200}
	msg := Message{Entries: []Entry{NewOfferService(0x1111, 0x0001, 1, 0, 10, opt)}}

	decoded, err := Decode(Encode(msg))
	require.NoError(t, err)
	require.Equal(t, uint16(1), decoded.Entries[0].Options1[0].Priority)
	require.Equal(t, uint16(200), decoded.Entries[0].Options1[0].Weight)
}
