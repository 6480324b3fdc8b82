package sd

import (
	"sync"
	"time"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	someip "github.com/waheedejaz/opensomeip"
	"github.com/waheedejaz/opensomeip/pkg/codec"
)

// offerState is a single offered service's position in spec.md §4.7's
// Server state machine, grounded on pkg/nmt.NMT's enumerated-state plus
// timer field shape.
type offerState uint8

const (
	offerNotReady offerState = iota
	offerInitialWait
	offerRepetition
	offerMain
	offerStopped
)

type serviceKey struct {
	ServiceId  uint16
	InstanceId uint16
}

type subscriberKey struct {
	ServiceId    uint16
	InstanceId   uint16
	EventgroupId uint16
	Endpoint     string
}

// subscriber is one eventgroup subscription tracked against an offer,
// identified externally by an opaque rs/xid token the way pkg/tp.Manager
// mints opaque transfer ids rather than a wire-visible counter.
type subscriber struct {
	Token    xid.ID
	Endpoint someip.Endpoint
	Deadline time.Time
}

type offeredService struct {
	mu sync.Mutex

	key         serviceKey
	major       uint8
	minor       uint32
	ttl         uint32
	options     []Option
	eventgroups map[uint16]bool

	state           offerState
	timer           *time.Timer
	repetitionDelay time.Duration
	repetitionsDone int

	subscribers map[subscriberKey]*subscriber
}

// Server implements spec.md §4.7's offering role: per-service timed
// offer lifecycles (InitialWait -> Repetition -> Main), FindService
// replies, and eventgroup subscription bookkeeping.
type Server struct {
	mu               sync.Mutex
	transport        someip.Transport
	sdEndpoint       someip.Endpoint // multicast destination for offers/stop-offers
	interfaceVersion uint8
	timing           Timing
	session          *outgoingSession
	offered          map[serviceKey]*offeredService
	unsubscribe      func()
}

// NewServer wires srv to transport's shared SD multicast endpoint. Call
// Start to join the multicast group and begin receiving.
func NewServer(transport someip.Transport, sdEndpoint someip.Endpoint, interfaceVersion uint8, timing Timing) *Server {
	return &Server{
		transport:        transport,
		sdEndpoint:       sdEndpoint,
		interfaceVersion: interfaceVersion,
		timing:           timing,
		session:          newOutgoingSession(),
		offered:          make(map[serviceKey]*offeredService),
	}
}

// Start joins the SD multicast group and subscribes to incoming frames.
func (s *Server) Start() error {
	if err := s.transport.JoinMulticast(s.sdEndpoint.Address, s.sdEndpoint.Port); err != nil {
		return err
	}
	cancel, err := s.transport.Subscribe(listenerFunc(s.Handle))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unsubscribe = cancel
	s.mu.Unlock()
	return nil
}

// Stop disables every offered service (StopOfferService) and unsubscribes.
func (s *Server) Stop() {
	s.mu.Lock()
	keys := make([]serviceKey, 0, len(s.offered))
	for k := range s.offered {
		keys = append(keys, k)
	}
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	for _, k := range keys {
		_ = s.Disable(k.ServiceId, k.InstanceId)
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Enable begins offering (service_id, instance_id) per spec.md §4.7's
// NotReady -> InitialWait -> Repetition -> Main progression.
func (s *Server) Enable(serviceId, instanceId uint16, major uint8, minor uint32, ttl uint32, opts ...Option) error {
	key := serviceKey{serviceId, instanceId}
	offer := &offeredService{
		key: key, major: major, minor: minor, ttl: ttl, options: opts,
		eventgroups: make(map[uint16]bool),
		subscribers: make(map[subscriberKey]*subscriber),
		state:       offerNotReady,
	}

	s.mu.Lock()
	s.offered[key] = offer
	s.mu.Unlock()

	s.armInitialWait(offer)
	return nil
}

// EnableEventgroup declares that an already-offered (service, instance)
// accepts subscriptions to eventgroupId. A SubscribeEventgroup for an
// undeclared eventgroup is NACKed.
func (s *Server) EnableEventgroup(serviceId, instanceId, eventgroupId uint16) error {
	offer := s.lookup(serviceId, instanceId)
	if offer == nil {
		return ErrUnknownServiceInstance
	}
	offer.mu.Lock()
	offer.eventgroups[eventgroupId] = true
	offer.mu.Unlock()
	return nil
}

// Disable stops offering (service_id, instance_id): emits one
// StopOfferService and discards local state, per spec.md's Main->Stopped.
func (s *Server) Disable(serviceId, instanceId uint16) error {
	key := serviceKey{serviceId, instanceId}
	s.mu.Lock()
	offer, ok := s.offered[key]
	if ok {
		delete(s.offered, key)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotOffering
	}

	offer.mu.Lock()
	if offer.timer != nil {
		offer.timer.Stop()
	}
	offer.state = offerStopped
	offer.mu.Unlock()

	s.sendOffer(offer, 0)
	return nil
}

func (s *Server) lookup(serviceId, instanceId uint16) *offeredService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offered[serviceKey{serviceId, instanceId}]
}

func (s *Server) armInitialWait(offer *offeredService) {
	offer.mu.Lock()
	offer.state = offerInitialWait
	delay := randomUpTo(s.timing.InitialDelay)
	offer.timer = time.AfterFunc(delay, func() { s.onInitialWaitElapsed(offer) })
	offer.mu.Unlock()
}

func (s *Server) onInitialWaitElapsed(offer *offeredService) {
	offer.mu.Lock()
	offer.state = offerRepetition
	offer.repetitionsDone = 0
	offer.repetitionDelay = s.timing.RepetitionBaseDelay
	delay := offer.repetitionDelay
	offer.mu.Unlock()

	s.sendOffer(offer, offer.ttl)
	s.armTimer(offer, delay, s.onRepetitionElapsed)
}

func (s *Server) onRepetitionElapsed(offer *offeredService) {
	offer.mu.Lock()
	offer.repetitionsDone++
	done := offer.repetitionsDone >= s.timing.RepetitionsMax
	var delay time.Duration
	if !done {
		next := offer.repetitionDelay * 2
		if next > s.timing.RepetitionMax {
			next = s.timing.RepetitionMax
		}
		offer.repetitionDelay = next
		delay = next
	} else {
		offer.state = offerMain
		delay = s.timing.CyclicOfferDelay
	}
	offer.mu.Unlock()

	s.sendOffer(offer, offer.ttl)
	if !done {
		s.armTimer(offer, delay, s.onRepetitionElapsed)
	} else {
		s.armTimer(offer, delay, s.onCyclicElapsed)
	}
}

func (s *Server) onCyclicElapsed(offer *offeredService) {
	s.sendOffer(offer, offer.ttl)
	s.armTimer(offer, s.timing.CyclicOfferDelay, s.onCyclicElapsed)
}

func (s *Server) armTimer(offer *offeredService, delay time.Duration, fn func(*offeredService)) {
	offer.mu.Lock()
	offer.timer = time.AfterFunc(delay, func() { fn(offer) })
	offer.mu.Unlock()
}

// sendOffer multicasts an OfferService (or, with ttl=0, a
// StopOfferService) for offer to the SD group.
func (s *Server) sendOffer(offer *offeredService, ttl uint32) {
	offer.mu.Lock()
	entry := NewOfferService(offer.key.ServiceId, offer.key.InstanceId, offer.major, offer.minor, ttl, offer.options...)
	offer.mu.Unlock()

	s.sendMessage(Message{Entries: []Entry{entry}}, s.sdEndpoint, false)
}

func (s *Server) sendMessage(sdMsg Message, dest someip.Endpoint, unicast bool) {
	sessionId, reboot := s.session.next()
	sdMsg.Reboot = reboot
	sdMsg.Unicast = unicast

	outer := someip.NewMessage(
		someip.MessageId{ServiceId: someip.SDServiceId, MethodId: someip.SDMethodId},
		someip.RequestId{ClientId: 0, SessionId: sessionId},
		s.interfaceVersion,
		someip.MessageTypeNotification,
		someip.EOk,
		Encode(sdMsg),
	)
	if err := s.transport.Send(codec.Encode(outer), dest); err != nil {
		log.Warnf("[SD][SERVER] failed to send SD message to %s: %v", dest, err)
	}
}

// Handle implements someip.Listener, dispatching incoming SD frames
// addressed to the SD reserved MessageId.
func (s *Server) Handle(data []byte, sender someip.Endpoint) {
	outer, err := codec.Decode(data, codec.Options{})
	if err != nil || !outer.MessageId.IsSD() {
		return
	}
	sdMsg, err := Decode(outer.Payload)
	if err != nil {
		return // SD decode failures are dropped silently, per spec.md §7
	}
	for _, entry := range sdMsg.Entries {
		s.handleEntry(entry, sender)
	}
}

func (s *Server) handleEntry(entry Entry, sender someip.Endpoint) {
	switch entry.Kind {
	case KindFindService:
		s.handleFind(entry, sender)
	case KindSubscribeEventgroup:
		s.handleSubscribe(entry, sender, true)
	case KindStopSubscribeEventgroup:
		s.handleSubscribe(entry, sender, false)
	}
}

func (s *Server) handleFind(entry Entry, sender someip.Endpoint) {
	offer := s.lookup(entry.ServiceId, entry.InstanceId)
	if offer == nil {
		return
	}
	s.unicastOfferTo(offer, sender)
}

func (s *Server) unicastOfferTo(offer *offeredService, to someip.Endpoint) {
	offer.mu.Lock()
	entry := NewOfferService(offer.key.ServiceId, offer.key.InstanceId, offer.major, offer.minor, offer.ttl, offer.options...)
	offer.mu.Unlock()
	s.sendMessage(Message{Entries: []Entry{entry}}, to, true)
}

func (s *Server) handleSubscribe(entry Entry, sender someip.Endpoint, subscribe bool) {
	offer := s.lookup(entry.ServiceId, entry.InstanceId)
	if offer == nil {
		return
	}

	offer.mu.Lock()
	allowed := offer.eventgroups[entry.EventgroupId]
	offer.mu.Unlock()

	key := subscriberKey{entry.ServiceId, entry.InstanceId, entry.EventgroupId, sender.String()}

	if !subscribe {
		offer.mu.Lock()
		delete(offer.subscribers, key)
		offer.mu.Unlock()
		return
	}

	if !allowed {
		s.sendMessage(Message{Entries: []Entry{NewSubscribeEventgroupAck(entry.ServiceId, entry.InstanceId, entry.MajorVersion, 0, entry.EventgroupId)}}, sender, true)
		return
	}

	offer.mu.Lock()
	offer.subscribers[key] = &subscriber{
		Token:    xid.New(),
		Endpoint: sender,
		Deadline: time.Now().Add(time.Duration(entry.TTL) * time.Second),
	}
	offer.mu.Unlock()

	s.sendMessage(Message{Entries: []Entry{NewSubscribeEventgroupAck(entry.ServiceId, entry.InstanceId, entry.MajorVersion, entry.TTL, entry.EventgroupId)}}, sender, true)
}

// Subscribers returns the endpoints currently subscribed to
// (serviceId, instanceId, eventgroupId), for an event publisher to fan
// events out to.
func (s *Server) Subscribers(serviceId, instanceId, eventgroupId uint16) []someip.Endpoint {
	offer := s.lookup(serviceId, instanceId)
	if offer == nil {
		return nil
	}
	offer.mu.Lock()
	defer offer.mu.Unlock()
	out := make([]someip.Endpoint, 0, len(offer.subscribers))
	for k, sub := range offer.subscribers {
		if k.EventgroupId == eventgroupId {
			out = append(out, sub.Endpoint)
		}
	}
	return out
}

// SweepSubscribers drops subscribers whose TTL has elapsed, mirroring the
// TTL expiry sweep spec.md §4.7 requires on the client side but applying
// it symmetrically to server-held subscriptions.
func (s *Server) SweepSubscribers(now time.Time) int {
	s.mu.Lock()
	offers := make([]*offeredService, 0, len(s.offered))
	for _, o := range s.offered {
		offers = append(offers, o)
	}
	s.mu.Unlock()

	evicted := 0
	for _, offer := range offers {
		offer.mu.Lock()
		for k, sub := range offer.subscribers {
			if now.After(sub.Deadline) {
				delete(offer.subscribers, k)
				evicted++
			}
		}
		offer.mu.Unlock()
	}
	return evicted
}

// OfferSummary describes one currently-offered service, for introspection
// by callers such as an HTTP debug gateway.
type OfferSummary struct {
	ServiceId    uint16
	InstanceId   uint16
	MajorVersion uint8
	MinorVersion uint32
	TTL          uint32
	Subscribers  int
}

// Offered returns a snapshot of every service this Server currently offers.
func (s *Server) Offered() []OfferSummary {
	s.mu.Lock()
	offers := make([]*offeredService, 0, len(s.offered))
	for _, o := range s.offered {
		offers = append(offers, o)
	}
	s.mu.Unlock()

	out := make([]OfferSummary, 0, len(offers))
	for _, offer := range offers {
		offer.mu.Lock()
		out = append(out, OfferSummary{
			ServiceId: offer.key.ServiceId, InstanceId: offer.key.InstanceId,
			MajorVersion: offer.major, MinorVersion: offer.minor, TTL: offer.ttl,
			Subscribers: len(offer.subscribers),
		})
		offer.mu.Unlock()
	}
	return out
}

// Stats is a point-in-time snapshot of Server occupancy, for pkg/metrics.
type Stats struct {
	OfferedServices int
	Subscribers     int
}

// Snapshot reports the current number of offered services and, summed
// across them, active eventgroup subscribers.
func (s *Server) Snapshot() Stats {
	s.mu.Lock()
	offers := make([]*offeredService, 0, len(s.offered))
	for _, o := range s.offered {
		offers = append(offers, o)
	}
	s.mu.Unlock()

	stats := Stats{OfferedServices: len(offers)}
	for _, offer := range offers {
		offer.mu.Lock()
		stats.Subscribers += len(offer.subscribers)
		offer.mu.Unlock()
	}
	return stats
}

// listenerFunc adapts a plain func to someip.Listener.
type listenerFunc func(data []byte, sender someip.Endpoint)

func (f listenerFunc) Handle(data []byte, sender someip.Endpoint) { f(data, sender) }
