package someip

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// MessageListener receives fully-formed Messages decoded off the wire for
// a specific MessageId, along with the endpoint that sent them.
type MessageListener interface {
	HandleMessage(msg Message, sender Endpoint)
}

type messageSubscriber struct {
	id       uint64
	callback MessageListener
}

// EndpointManager is a thin wrapper around a Transport, the counterpart of
// the teacher's BusManager: it owns the single Transport, decodes raw
// frames as they arrive, and fans Messages out to MessageId-keyed
// subscribers (RPC dispatchers, SD, TP reassembly) without any one of
// them needing to touch the Transport directly.
type EndpointManager struct {
	logger *logrus.Entry
	mu     sync.Mutex

	transport Transport
	listeners map[MessageId][]messageSubscriber
	nextSubId uint64
	decode    func([]byte) (Message, error)
}

// NewEndpointManager wires a Transport to a decode function (normally
// codec.Decode, injected to avoid an import cycle between this root
// package and pkg/codec).
func NewEndpointManager(transport Transport, decode func([]byte) (Message, error), logger *logrus.Entry) *EndpointManager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	em := &EndpointManager{
		logger:    logger.WithField("component", "endpoint-manager"),
		transport: transport,
		listeners: make(map[MessageId][]messageSubscriber),
		nextSubId: 1,
		decode:    decode,
	}
	return em
}

// Transport returns the underlying Transport.
func (em *EndpointManager) Transport() Transport {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.transport
}

// Start subscribes this manager to the transport as a raw Listener.
func (em *EndpointManager) Start() (cancel func(), err error) {
	return em.transport.Subscribe(em)
}

// Handle implements Listener: decode the wire frame and dispatch it to
// any subscriber registered for its MessageId. Decode failures are
// logged and dropped (the frame never reaches application code), matching
// spec.md's propagation policy that malformed frames are not surfaced as
// a delivered Message.
func (em *EndpointManager) Handle(data []byte, sender Endpoint) {
	msg, err := em.decode(data)
	if err != nil {
		em.logger.WithError(err).WithField("sender", sender).Debug("dropping undecodable frame")
		return
	}

	em.mu.Lock()
	subs := append([]messageSubscriber(nil), em.listeners[msg.MessageId]...)
	em.mu.Unlock()

	for _, sub := range subs {
		sub.callback.HandleMessage(msg, sender)
	}
}

// SubscribeMessageId registers a listener for a specific MessageId.
// Returns a cancel func that removes the subscription, grounded on
// BusManager.Subscribe.
func (em *EndpointManager) SubscribeMessageId(id MessageId, listener MessageListener) (cancel func()) {
	em.mu.Lock()
	defer em.mu.Unlock()

	subId := em.nextSubId
	em.nextSubId++
	em.listeners[id] = append(em.listeners[id], messageSubscriber{id: subId, callback: listener})

	return func() {
		em.mu.Lock()
		defer em.mu.Unlock()
		subs := em.listeners[id]
		for i, sub := range subs {
			if sub.id == subId {
				em.listeners[id] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Send transmits an already-encoded frame to an endpoint through the
// underlying Transport; it does no encoding of its own.
func (em *EndpointManager) Send(data []byte, to Endpoint) error {
	return em.transport.Send(data, to)
}
