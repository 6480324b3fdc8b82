package sd

import "fmt"

// OptionType is the wire type byte of an SD option (spec.md §3's Option
// variants), using the same numbering real-world SOME/IP-SD assigns so
// the TP/SD split stays consistent with the rest of this module's choice
// to follow the real protocol where spec.md itself leaves a value open.
type OptionType uint8

const (
	OptionConfiguration  OptionType = 0x01
	OptionLoadBalancing  OptionType = 0x02
	OptionIPv4Endpoint   OptionType = 0x04
	OptionIPv4Multicast  OptionType = 0x14
	OptionIPv4SdEndpoint OptionType = 0x24
	// optionUnknown is never produced by an encoder; Decode uses it to
	// hold a skipped option's raw bytes so entry index/count references
	// into the options array stay aligned (spec.md §4.6: "unknown option
	// types are skipped but do not abort parsing").
	optionUnknown OptionType = 0xFF
)

// L4Protocol is the carried-protocol byte of an IPv4*Endpoint option.
type L4Protocol uint8

const (
	L4TCP L4Protocol = 0x06
	L4UDP L4Protocol = 0x11
)

// Option is spec.md's Option, generalized across variants the way Entry
// is. Fields unused by a given Type are left zero.
type Option struct {
	Type OptionType

	// IPv4Endpoint / IPv4Multicast / IPv4SdEndpoint
	Address [4]byte
	Proto   L4Protocol
	Port    uint16

	// Configuration: DNS-SD style key[=value] strings
	ConfigEntries []string

	// LoadBalancing
	Priority uint16
	Weight   uint16

	raw []byte // only set for optionUnknown, preserved verbatim on re-encode
}

func (o Option) String() string {
	switch o.Type {
	case OptionIPv4Endpoint, OptionIPv4Multicast, OptionIPv4SdEndpoint:
		return fmt.Sprintf("%s{%d.%d.%d.%d:%d/%s}", optionTypeName(o.Type),
			o.Address[0], o.Address[1], o.Address[2], o.Address[3], o.Port, o.protoName())
	case OptionConfiguration:
		return fmt.Sprintf("Configuration%v", o.ConfigEntries)
	case OptionLoadBalancing:
		return fmt.Sprintf("LoadBalancing{priority=%d weight=%d}", o.Priority, o.Weight)
	default:
		return fmt.Sprintf("UnknownOption(%#02x, %d bytes)", uint8(o.Type), len(o.raw))
	}
}

func (o Option) protoName() string {
	if o.Proto == L4TCP {
		return "tcp"
	}
	return "udp"
}

func optionTypeName(t OptionType) string {
	switch t {
	case OptionIPv4Endpoint:
		return "IPv4Endpoint"
	case OptionIPv4Multicast:
		return "IPv4Multicast"
	case OptionIPv4SdEndpoint:
		return "IPv4SdEndpoint"
	default:
		return fmt.Sprintf("Option(%#02x)", uint8(t))
	}
}

// NewIPv4EndpointOption builds an IPv4Endpoint option carrying the
// application endpoint a FindService response or a subscribe-ack resolves
// to (spec.md §3: "each carries ipv4 address, protocol ..., port").
func NewIPv4EndpointOption(addr [4]byte, proto L4Protocol, port uint16) Option {
	return Option{Type: OptionIPv4Endpoint, Address: addr, Proto: proto, Port: port}
}

// NewIPv4MulticastOption builds an IPv4Multicast option, used to tell an
// eventgroup subscriber which multicast group its events arrive on.
func NewIPv4MulticastOption(addr [4]byte, port uint16) Option {
	return Option{Type: OptionIPv4Multicast, Address: addr, Port: port}
}

// NewIPv4SdEndpointOption builds an IPv4SdEndpoint option.
func NewIPv4SdEndpointOption(addr [4]byte, proto L4Protocol, port uint16) Option {
	return Option{Type: OptionIPv4SdEndpoint, Address: addr, Proto: proto, Port: port}
}
