// Package transport supplies the integrator-facing someip.Transport
// implementations the core depends on but never constructs itself: a
// process-local Loopback for tests and single-process deployments, and a
// real UDP socket transport with multicast join/leave support.
package transport

import (
	"sync"

	someip "github.com/waheedejaz/opensomeip"
)

// Loopback wires a set of endpoints together in a single process, the way
// pkg/can/virtual.Bus loopbacks a frame straight to its own listener when
// receiveOwn is set, generalized here to route between distinct members of
// a shared Network rather than only back to the sender.
type Loopback struct {
	mu       sync.Mutex
	self     someip.Endpoint
	net      *Network
	listener someip.Listener
	joined   map[string]bool
}

// Network is the shared registry a set of Loopback transports join to
// reach each other. A send reaches every member that joined the
// destination address as a multicast group (the endpoint's Protocol is
// not consulted) and every member whose own endpoint address matches it.
type Network struct {
	mu      sync.Mutex
	members []*Loopback
}

// NewNetwork creates an empty Network.
func NewNetwork() *Network {
	return &Network{}
}

// NewLoopback registers a new member of net at self, its own address.
func (net *Network) NewLoopback(self someip.Endpoint) *Loopback {
	lb := &Loopback{self: self, net: net, joined: make(map[string]bool)}
	net.mu.Lock()
	net.members = append(net.members, lb)
	net.mu.Unlock()
	return lb
}

// Send implements someip.Transport. A multicast destination (one whose
// address any member has joined) fans out to every joined member; a
// unicast destination is delivered to every member whose own endpoint
// address equals to.Address.
func (lb *Loopback) Send(data []byte, to someip.Endpoint) error {
	lb.net.mu.Lock()
	var targets []*Loopback
	for _, m := range lb.net.members {
		m.mu.Lock()
		matches := m.joined[to.Address] || m.self.Address == to.Address
		listener := m.listener
		m.mu.Unlock()
		if matches && listener != nil && m != lb {
			targets = append(targets, m)
		}
	}
	lb.net.mu.Unlock()

	for _, m := range targets {
		m.mu.Lock()
		listener := m.listener
		m.mu.Unlock()
		if listener != nil {
			listener.Handle(data, lb.self)
		}
	}
	return nil
}

// Subscribe registers listener as the receiver for frames addressed to lb.
func (lb *Loopback) Subscribe(listener someip.Listener) (func(), error) {
	lb.mu.Lock()
	lb.listener = listener
	lb.mu.Unlock()
	return func() {
		lb.mu.Lock()
		lb.listener = nil
		lb.mu.Unlock()
	}, nil
}

// JoinMulticast marks lb as a member of group; subsequent Sends to group
// from any member of the Network reach lb.
func (lb *Loopback) JoinMulticast(group string, port uint16) error {
	lb.mu.Lock()
	lb.joined[group] = true
	lb.mu.Unlock()
	return nil
}

// LeaveMulticast reverses JoinMulticast.
func (lb *Loopback) LeaveMulticast(group string, port uint16) error {
	lb.mu.Lock()
	delete(lb.joined, group)
	lb.mu.Unlock()
	return nil
}

// Close detaches lb from receiving further frames.
func (lb *Loopback) Close() error {
	lb.mu.Lock()
	lb.listener = nil
	lb.joined = make(map[string]bool)
	lb.mu.Unlock()
	return nil
}
