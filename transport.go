package someip

import "fmt"

// Protocol is the underlying carrier of an Endpoint.
type Protocol uint8

const (
	ProtocolUDP Protocol = iota
	ProtocolTCP
	ProtocolMulticastUDP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	case ProtocolMulticastUDP:
		return "multicast-udp"
	default:
		return "unknown"
	}
}

// Endpoint is an (address, port, protocol) triple identifying a sender or
// destination. Address is kept as a string (dotted-quad or hostname) since
// this core never resolves or dials it; the integrator's Transport does.
type Endpoint struct {
	Address  string
	Port     uint16
	Protocol Protocol
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d/%s", e.Address, e.Port, e.Protocol)
}

// Listener is the interface a core component (the EndpointManager, an SD
// service, a TP manager) implements to receive frames handed up by a
// Transport. Handle must not block or re-enter the Transport that invoked
// it (see DESIGN.md Callbacks and ownership).
type Listener interface {
	Handle(data []byte, sender Endpoint)
}

// Transport is the external collaborator the core consumes: send-to-
// endpoint, receive-from (pushed via Listener), multicast group
// management, and connection lifecycle callbacks. The core packages
// depend only on this interface; pkg/transport supplies Loopback and UDP
// implementations and a StreamFramer for TCP framing. Grounded on
// pkg/can.Bus / FrameListener in the teacher stack.
type Transport interface {
	// Send transmits data to the given endpoint.
	Send(data []byte, to Endpoint) error
	// Subscribe registers a listener for all frames this transport
	// receives. Returns a cancel func that removes the subscription.
	Subscribe(listener Listener) (cancel func(), err error)
	// JoinMulticast joins a multicast group on the given port.
	JoinMulticast(group string, port uint16) error
	// LeaveMulticast leaves a previously joined multicast group.
	LeaveMulticast(group string, port uint16) error
	// Close shuts down the transport, releasing any sockets or goroutines.
	Close() error
}

// ConnectionListener is implemented by callers interested in transport
// connection lifecycle events (relevant mainly to stream transports).
type ConnectionListener interface {
	ConnectionEstablished(endpoint Endpoint)
	ConnectionLost(endpoint Endpoint)
}
