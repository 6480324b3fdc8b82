package sd

import (
	"fmt"
	"sync"
	"time"

	someip "github.com/waheedejaz/opensomeip"
	"github.com/waheedejaz/opensomeip/pkg/codec"
)

func ipv4String(addr [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", addr[0], addr[1], addr[2], addr[3])
}

// ServiceInstance is a remote offer a Client currently believes is
// available, per spec.md's glossary entry: "service_id, instance_id,
// major_version, minor_version, endpoint information extracted from
// associated options, ttl deadline."
type ServiceInstance struct {
	ServiceId    uint16
	InstanceId   uint16
	MajorVersion uint8
	MinorVersion uint32
	Endpoint     someip.Endpoint
	Deadline     time.Time
}

type pendingFind struct {
	serviceId uint16
	timer     *time.Timer
}

// Client implements spec.md §4.7's finding role: multicast FindService,
// an available-services registry refreshed/expired from received
// OfferService/StopOfferService entries, and reboot detection, grounded
// on pkg/heartbeat.HBConsumer's per-entry TTL tracking idiom.
type Client struct {
	mu          sync.Mutex
	transport   someip.Transport
	sdEndpoint  someip.Endpoint
	session     *outgoingSession
	reboot      *rebootTracker
	instances   map[serviceKey]*ServiceInstance
	pending     map[uint16]*pendingFind
	onAvailable func(ServiceInstance)
	onUnavail   func(ServiceInstance)
	unsubscribe func()
}

// NewClient builds a Client. onAvailable/onUnavailable may be nil.
func NewClient(transport someip.Transport, sdEndpoint someip.Endpoint, onAvailable, onUnavailable func(ServiceInstance)) *Client {
	return &Client{
		transport:   transport,
		sdEndpoint:  sdEndpoint,
		session:     newOutgoingSession(),
		reboot:      newRebootTracker(),
		instances:   make(map[serviceKey]*ServiceInstance),
		pending:     make(map[uint16]*pendingFind),
		onAvailable: onAvailable,
		onUnavail:   onUnavailable,
	}
}

// Start joins the SD multicast group and begins listening for offers.
func (c *Client) Start() error {
	if err := c.transport.JoinMulticast(c.sdEndpoint.Address, c.sdEndpoint.Port); err != nil {
		return err
	}
	cancel, err := c.transport.Subscribe(listenerFunc(c.Handle))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.unsubscribe = cancel
	c.mu.Unlock()
	return nil
}

// Stop cancels every pending find and unsubscribes from the transport.
func (c *Client) Stop() {
	c.mu.Lock()
	for _, p := range c.pending {
		p.timer.Stop()
	}
	c.pending = make(map[uint16]*pendingFind)
	unsubscribe := c.unsubscribe
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// FindService emits a multicast FindService entry for serviceId with
// ttl=3 and arms timeout, per spec.md §4.7's find_service operation. If a
// matching offer is already known, onAvailable fires immediately and no
// wire traffic is sent.
func (c *Client) FindService(serviceId uint16, timeout time.Duration) {
	if existing := c.matchExisting(serviceId); existing != nil {
		c.notifyAvailable(*existing)
		return
	}

	c.mu.Lock()
	if p, ok := c.pending[serviceId]; ok {
		p.timer.Stop()
	}
	timer := time.AfterFunc(timeout, func() { c.onFindTimeout(serviceId) })
	c.pending[serviceId] = &pendingFind{serviceId: serviceId, timer: timer}
	c.mu.Unlock()

	sessionId, reboot := c.session.next()
	sdMsg := Message{Reboot: reboot, Unicast: false, Entries: []Entry{NewFindService(serviceId, 3)}}
	outer := someip.NewMessage(
		someip.MessageId{ServiceId: someip.SDServiceId, MethodId: someip.SDMethodId},
		someip.RequestId{ClientId: 0, SessionId: sessionId},
		someip.ProtocolVersion,
		someip.MessageTypeNotification,
		someip.EOk,
		Encode(sdMsg),
	)
	_ = c.transport.Send(codec.Encode(outer), c.sdEndpoint)
}

func (c *Client) matchExisting(serviceId uint16) *ServiceInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, inst := range c.instances {
		if k.ServiceId == serviceId {
			cp := *inst
			return &cp
		}
	}
	return nil
}

func (c *Client) onFindTimeout(serviceId uint16) {
	c.mu.Lock()
	delete(c.pending, serviceId)
	c.mu.Unlock()
}

// Handle implements someip.Listener, consuming incoming SD frames.
func (c *Client) Handle(data []byte, sender someip.Endpoint) {
	outer, err := codec.Decode(data, codec.Options{})
	if err != nil || !outer.MessageId.IsSD() {
		return
	}
	sdMsg, err := Decode(outer.Payload)
	if err != nil {
		return
	}

	if c.reboot.Observe(sender.String(), outer.RequestId.SessionId, sdMsg.Reboot) {
		c.invalidateSender(sender)
	}

	for _, entry := range sdMsg.Entries {
		c.handleEntry(entry, sender)
	}
}

func (c *Client) handleEntry(entry Entry, sender someip.Endpoint) {
	switch entry.Kind {
	case KindOfferService:
		c.handleOffer(entry, sender)
	case KindStopOfferService:
		c.handleStopOffer(entry)
	}
}

func endpointFromOptions(opts []Option, fallback someip.Endpoint) someip.Endpoint {
	for _, o := range opts {
		switch o.Type {
		case OptionIPv4Endpoint, OptionIPv4SdEndpoint:
			proto := someip.ProtocolUDP
			if o.Proto == L4TCP {
				proto = someip.ProtocolTCP
			}
			return someip.Endpoint{
				Address:  ipv4String(o.Address),
				Port:     o.Port,
				Protocol: proto,
			}
		}
	}
	return fallback
}

func (c *Client) handleOffer(entry Entry, sender someip.Endpoint) {
	key := serviceKey{entry.ServiceId, entry.InstanceId}
	endpoint := endpointFromOptions(entry.Options1, sender)
	deadline := deadlineFromTTL(entry.TTL)

	c.mu.Lock()
	_, existed := c.instances[key]
	inst := &ServiceInstance{
		ServiceId: entry.ServiceId, InstanceId: entry.InstanceId,
		MajorVersion: entry.MajorVersion, MinorVersion: entry.MinorVersion,
		Endpoint: endpoint, Deadline: deadline,
	}
	c.instances[key] = inst
	if p, ok := c.pending[entry.ServiceId]; ok {
		p.timer.Stop()
		delete(c.pending, entry.ServiceId)
	}
	c.mu.Unlock()

	if !existed {
		c.notifyAvailable(*inst)
	}
}

func (c *Client) handleStopOffer(entry Entry) {
	key := serviceKey{entry.ServiceId, entry.InstanceId}
	c.mu.Lock()
	inst, ok := c.instances[key]
	if ok {
		delete(c.instances, key)
	}
	c.mu.Unlock()
	if ok {
		c.notifyUnavailable(*inst)
	}
}

// SweepExpired treats every ServiceInstance whose deadline has elapsed as
// an implicit StopOfferService, per spec.md §4.7's periodic TTL-expiry
// task. Returns the number of instances evicted.
func (c *Client) SweepExpired(now time.Time) int {
	c.mu.Lock()
	var expired []ServiceInstance
	for k, inst := range c.instances {
		if inst.Deadline.IsZero() {
			continue // infinite ttl
		}
		if now.After(inst.Deadline) {
			expired = append(expired, *inst)
			delete(c.instances, k)
		}
	}
	c.mu.Unlock()

	for _, inst := range expired {
		c.notifyUnavailable(inst)
	}
	return len(expired)
}

// invalidateSender drops every tracked instance whose endpoint matches
// sender, following a detected reboot.
func (c *Client) invalidateSender(sender someip.Endpoint) {
	c.mu.Lock()
	var dropped []ServiceInstance
	for k, inst := range c.instances {
		if inst.Endpoint.Address == sender.Address {
			dropped = append(dropped, *inst)
			delete(c.instances, k)
		}
	}
	c.mu.Unlock()

	for _, inst := range dropped {
		c.notifyUnavailable(inst)
	}
}

func (c *Client) notifyAvailable(inst ServiceInstance) {
	if c.onAvailable != nil {
		c.onAvailable(inst)
	}
}

func (c *Client) notifyUnavailable(inst ServiceInstance) {
	if c.onUnavail != nil {
		c.onUnavail(inst)
	}
}

// Instances returns a snapshot of every currently available ServiceInstance.
func (c *Client) Instances() []ServiceInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ServiceInstance, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, *inst)
	}
	return out
}

// ClientStats is a point-in-time snapshot of Client occupancy, for pkg/metrics.
type ClientStats struct {
	KnownInstances int
	PendingFinds   int
}

// Snapshot reports the current number of known instances and pending
// find_service calls.
func (c *Client) Snapshot() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientStats{KnownInstances: len(c.instances), PendingFinds: len(c.pending)}
}

func deadlineFromTTL(ttl uint32) time.Time {
	if ttl == ttlInfinite {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(ttl) * time.Second)
}
