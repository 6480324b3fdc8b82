package sd

import (
	"encoding/binary"

	someip "github.com/waheedejaz/opensomeip"
)

// Message is spec.md's SdMessage: the flags/entries/options payload
// carried inside a SOME/IP NOTIFICATION frame addressed to
// (service_id=0xFFFF, method_id=0x8100).
type Message struct {
	Reboot  bool
	Unicast bool
	Entries []Entry
}

const (
	sdHeaderSize  = 8 // flags(1) + reserved(3) + entries_array_length(4)
	optionHdrSize = 4 // type(1) + reserved(1) + length(2), per spec.md §4.6's stated field order
)

// Encode serializes msg into the bytes that ride as a NOTIFICATION's
// payload. An entry's lone option that is identical to one already in the
// options array is shared by index rather than written again, per spec.md
// §4.6 ("encode assigns indices to minimize duplication"); a run of two or
// more options is always written fresh.
func Encode(msg Message) []byte {
	pool := newOptionPool()
	entryBytes := make([]byte, 0, len(msg.Entries)*entrySize)
	for _, e := range msg.Entries {
		idx1, num1 := pool.add(e.Options1)
		idx2, num2 := pool.add(e.Options2)
		entryBytes = append(entryBytes, encodeEntry(e, idx1, num1, idx2, num2)...)
	}
	optionBytes := pool.encode()

	out := make([]byte, sdHeaderSize, sdHeaderSize+len(entryBytes)+4+len(optionBytes))
	var flags uint8
	if msg.Reboot {
		flags |= 0x80
	}
	if msg.Unicast {
		flags |= 0x40
	}
	out[0] = flags
	binary.BigEndian.PutUint32(out[4:8], uint32(len(entryBytes)))
	out = append(out, entryBytes...)

	lenField := make([]byte, 4)
	binary.BigEndian.PutUint32(lenField, uint32(len(optionBytes)))
	out = append(out, lenField...)
	out = append(out, optionBytes...)
	return out
}

// Decode parses an SD payload, per the validation rules in spec.md §4.6.
// Entries with an unrecognized type byte are silently skipped; unknown
// option types are kept (so index/count references stay aligned) but
// carry no structured fields.
func Decode(data []byte) (Message, error) {
	var msg Message
	if len(data) < sdHeaderSize {
		return msg, someip.NewError(someip.KindMalformedMessage, errShortHeader)
	}

	flags := data[0]
	msg.Reboot = flags&0x80 != 0
	msg.Unicast = flags&0x40 != 0

	entriesLen := binary.BigEndian.Uint32(data[4:8])
	entriesEnd := sdHeaderSize + int(entriesLen)
	if entriesLen%entrySize != 0 || entriesEnd+4 > len(data) {
		return msg, someip.NewError(someip.KindMalformedMessage, errEntriesLengthBad)
	}
	entriesRaw := data[sdHeaderSize:entriesEnd]

	optionsLen := binary.BigEndian.Uint32(data[entriesEnd : entriesEnd+4])
	optionsStart := entriesEnd + 4
	if optionsStart+int(optionsLen) > len(data) {
		return msg, someip.NewError(someip.KindMalformedMessage, errOptionsLengthBad)
	}
	optionsRaw := data[optionsStart : optionsStart+int(optionsLen)]

	options, err := decodeOptions(optionsRaw)
	if err != nil {
		return msg, someip.NewError(someip.KindMalformedMessage, err)
	}

	for off := 0; off+entrySize <= len(entriesRaw); off += entrySize {
		entry, idx1, num1, idx2, num2, ok := decodeEntry(entriesRaw[off : off+entrySize])
		if !ok {
			continue // unrecognized type byte: skip per spec.md §4.6
		}
		opts1, err := sliceOptions(options, idx1, num1)
		if err != nil {
			return Message{}, someip.NewError(someip.KindMalformedMessage, err)
		}
		opts2, err := sliceOptions(options, idx2, num2)
		if err != nil {
			return Message{}, someip.NewError(someip.KindMalformedMessage, err)
		}
		entry.Options1 = opts1
		entry.Options2 = opts2
		msg.Entries = append(msg.Entries, entry)
	}
	return msg, nil
}

func sliceOptions(options []Option, idx, num uint8) ([]Option, error) {
	if num == 0 {
		return nil, nil
	}
	end := int(idx) + int(num)
	if end > len(options) {
		return nil, errOptionRefOOB
	}
	return append([]Option(nil), options[idx:end]...), nil
}

func encodeEntry(e Entry, idx1, num1, idx2, num2 uint8) []byte {
	b := make([]byte, entrySize)
	b[1] = idx1
	b[2] = idx2
	b[3] = (num1 << 4) | (num2 & 0x0F)
	binary.BigEndian.PutUint16(b[4:6], e.ServiceId)
	binary.BigEndian.PutUint16(b[6:8], e.InstanceId)
	b[8] = e.MajorVersion
	putUint24(b[9:12], e.TTL)

	if e.Kind.IsEventgroup() {
		if e.Kind == KindSubscribeEventgroupAck || e.Kind == KindSubscribeEventgroupNack {
			b[0] = wireTypeEventAck
		} else {
			b[0] = wireTypeEventgrp
		}
		b[12] = e.Counter & 0x0F
		binary.BigEndian.PutUint16(b[13:15], e.EventgroupId&eventgroupMask)
	} else if e.Kind == KindFindService {
		b[0] = wireTypeFind
		binary.BigEndian.PutUint32(b[12:16], e.MinorVersion)
	} else {
		b[0] = wireTypeOffer
		binary.BigEndian.PutUint32(b[12:16], e.MinorVersion)
	}
	return b
}

func decodeEntry(b []byte) (e Entry, idx1, num1, idx2, num2 uint8, ok bool) {
	idx1, idx2 = b[1], b[2]
	num1, num2 = b[3]>>4, b[3]&0x0F
	serviceId := binary.BigEndian.Uint16(b[4:6])
	instanceId := binary.BigEndian.Uint16(b[6:8])
	major := b[8]
	ttl := getUint24(b[9:12])

	switch b[0] {
	case wireTypeFind:
		e = Entry{
			Kind: KindFindService, ServiceId: serviceId, InstanceId: instanceId,
			MajorVersion: major, MinorVersion: binary.BigEndian.Uint32(b[12:16]), TTL: ttl,
		}
		return e, idx1, num1, idx2, num2, true
	case wireTypeOffer:
		kind := KindOfferService
		if ttl == 0 {
			kind = KindStopOfferService
		}
		e = Entry{
			Kind: kind, ServiceId: serviceId, InstanceId: instanceId,
			MajorVersion: major, MinorVersion: binary.BigEndian.Uint32(b[12:16]), TTL: ttl,
		}
		return e, idx1, num1, idx2, num2, true
	case wireTypeEventgrp:
		kind := KindSubscribeEventgroup
		if ttl == 0 {
			kind = KindStopSubscribeEventgroup
		}
		e = Entry{
			Kind: kind, ServiceId: serviceId, InstanceId: instanceId, MajorVersion: major, TTL: ttl,
			Counter: b[12] & 0x0F, EventgroupId: binary.BigEndian.Uint16(b[13:15]) & eventgroupMask,
		}
		return e, idx1, num1, idx2, num2, true
	case wireTypeEventAck:
		kind := KindSubscribeEventgroupAck
		if ttl == 0 {
			kind = KindSubscribeEventgroupNack
		}
		e = Entry{
			Kind: kind, ServiceId: serviceId, InstanceId: instanceId, MajorVersion: major, TTL: ttl,
			Counter: b[12] & 0x0F, EventgroupId: binary.BigEndian.Uint16(b[13:15]) & eventgroupMask,
		}
		return e, idx1, num1, idx2, num2, true
	default:
		return Entry{}, 0, 0, 0, 0, false
	}
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
