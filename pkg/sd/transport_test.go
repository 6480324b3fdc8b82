package sd

import (
	"sync"

	someip "github.com/waheedejaz/opensomeip"
)

const multicastAddr = "224.224.1.1"

// fakeTransport is an in-memory someip.Transport double wiring senders and
// listeners directly together, grounded on pkg/can/virtual's loopback bus
// idiom but without any encoding/decoding of its own.
type fakeTransport struct {
	mu       sync.Mutex
	self     someip.Endpoint
	net      *fakeNetwork
	listener someip.Listener
}

// fakeNetwork wires a set of fakeTransports together so Send on one
// invokes Handle on every other member whose endpoint matches the
// destination, or on every member for a multicast destination.
type fakeNetwork struct {
	mu      sync.Mutex
	members map[string][]*fakeTransport // keyed by Address
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{members: make(map[string][]*fakeTransport)}
}

func (n *fakeNetwork) newTransport(addr string, port uint16) *fakeTransport {
	t := &fakeTransport{
		self: someip.Endpoint{Address: addr, Port: port, Protocol: someip.ProtocolUDP},
		net:  n,
	}
	n.mu.Lock()
	n.members[addr] = append(n.members[addr], t)
	n.mu.Unlock()
	return t
}

func (t *fakeTransport) Send(data []byte, to someip.Endpoint) error {
	t.net.mu.Lock()
	var targets []*fakeTransport
	if to.Address == multicastAddr {
		for _, members := range t.net.members {
			targets = append(targets, members...)
		}
	} else {
		targets = append(targets, t.net.members[to.Address]...)
	}
	t.net.mu.Unlock()

	for _, target := range targets {
		target.mu.Lock()
		listener := target.listener
		target.mu.Unlock()
		if listener != nil && target != t {
			listener.Handle(data, t.self)
		}
	}
	return nil
}

func (t *fakeTransport) Subscribe(listener someip.Listener) (func(), error) {
	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.listener = nil
		t.mu.Unlock()
	}, nil
}

func (t *fakeTransport) JoinMulticast(group string, port uint16) error  { return nil }
func (t *fakeTransport) LeaveMulticast(group string, port uint16) error { return nil }
func (t *fakeTransport) Close() error                                   { return nil }
