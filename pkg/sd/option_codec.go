package sd

import "encoding/binary"

// optionPool deduplicates options across a whole Message by their encoded
// bytes, so two entries referencing an identical endpoint share one slot
// (spec.md §4.6: "encode assigns indices to minimize duplication").
type optionPool struct {
	encoded []string // canonical bytes, in assigned-index order
	byKey   map[string]uint8
}

func newOptionPool() *optionPool {
	return &optionPool{byKey: make(map[string]uint8)}
}

// add registers opts (an entry's Options1 or Options2) and returns the
// (index, count) pair referencing their contiguous run in the pool.
// The single-option case - overwhelmingly the common one in practice, an
// entry pointing at one endpoint - dedupes against any identical option
// already in the pool. A multi-option run is always appended fresh so its
// indices stay contiguous; sharing across multi-option runs would need a
// subsequence search this format has no pressure to support.
func (p *optionPool) add(opts []Option) (index, count uint8) {
	if len(opts) == 0 {
		return 0, 0
	}
	if len(opts) == 1 {
		return p.indexOf(opts[0]), 1
	}
	index = uint8(len(p.encoded))
	for _, o := range opts {
		key := string(encodeOption(o))
		p.encoded = append(p.encoded, key)
		p.byKey[key] = uint8(len(p.encoded) - 1)
	}
	return index, uint8(len(opts))
}

func (p *optionPool) indexOf(o Option) uint8 {
	key := string(encodeOption(o))
	if idx, ok := p.byKey[key]; ok {
		return idx
	}
	idx := uint8(len(p.encoded))
	p.encoded = append(p.encoded, key)
	p.byKey[key] = idx
	return idx
}

func (p *optionPool) encode() []byte {
	var out []byte
	for _, enc := range p.encoded {
		out = append(out, []byte(enc)...)
	}
	return out
}

func encodeOption(o Option) []byte {
	var payload []byte
	switch o.Type {
	case OptionIPv4Endpoint, OptionIPv4Multicast, OptionIPv4SdEndpoint:
		payload = make([]byte, 8)
		copy(payload[0:4], o.Address[:])
		payload[4] = 0 // reserved
		payload[5] = byte(o.Proto)
		binary.BigEndian.PutUint16(payload[6:8], o.Port)
	case OptionLoadBalancing:
		payload = make([]byte, 4)
		binary.BigEndian.PutUint16(payload[0:2], o.Priority)
		binary.BigEndian.PutUint16(payload[2:4], o.Weight)
	case OptionConfiguration:
		for _, kv := range o.ConfigEntries {
			payload = append(payload, byte(len(kv)))
			payload = append(payload, []byte(kv)...)
		}
	default:
		payload = o.raw
	}

	header := make([]byte, optionHdrSize)
	header[0] = byte(o.Type)
	header[1] = 0 // reserved
	binary.BigEndian.PutUint16(header[2:4], uint16(len(payload)))
	return append(header, payload...)
}

// decodeOptions parses the whole options array in order, keeping an entry
// (marked optionUnknown) for every option whose type isn't recognized so
// later index/count references stay aligned with the array position.
func decodeOptions(data []byte) ([]Option, error) {
	var options []Option
	for off := 0; off < len(data); {
		if off+optionHdrSize > len(data) {
			return nil, errShortOptionHeader
		}
		optType := OptionType(data[off])
		length := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		payloadStart := off + optionHdrSize
		if payloadStart+length > len(data) {
			return nil, errShortOption
		}
		payload := data[payloadStart : payloadStart+length]

		opt, err := decodeOption(optType, payload)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
		off = payloadStart + length
	}
	return options, nil
}

func decodeOption(t OptionType, payload []byte) (Option, error) {
	switch t {
	case OptionIPv4Endpoint, OptionIPv4Multicast, OptionIPv4SdEndpoint:
		if len(payload) < 8 {
			return Option{}, errShortOption
		}
		var addr [4]byte
		copy(addr[:], payload[0:4])
		return Option{Type: t, Address: addr, Proto: L4Protocol(payload[5]), Port: binary.BigEndian.Uint16(payload[6:8])}, nil
	case OptionLoadBalancing:
		if len(payload) < 4 {
			return Option{}, errShortOption
		}
		return Option{Type: t, Priority: binary.BigEndian.Uint16(payload[0:2]), Weight: binary.BigEndian.Uint16(payload[2:4])}, nil
	case OptionConfiguration:
		var entries []string
		for off := 0; off < len(payload); {
			n := int(payload[off])
			off++
			if off+n > len(payload) {
				return Option{}, errShortConfigPair
			}
			if n > 0 {
				entries = append(entries, string(payload[off:off+n]))
			}
			off += n
		}
		return Option{Type: t, ConfigEntries: entries}, nil
	default:
		// Unknown option type: skip validation, keep raw bytes so re-encode
		// is byte-stable and the slot still occupies an index.
		raw := append([]byte(nil), payload...)
		return Option{Type: optionUnknown, raw: raw}, nil
	}
}
