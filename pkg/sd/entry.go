// Package sd implements Service Discovery per spec.md §4.6-§4.7: the
// entry/option wire codec and the Server/Client timer-driven state
// machines that sit on top of it. Entries and options are modelled as a
// shared struct with a Kind discriminant, the way pkg/tp.Segment carries
// a Kind rather than a variant hierarchy - spec.md §10 asks for a sum type
// dispatched on a tag, not dynamic dispatch at the application boundary.
package sd

import "fmt"

// EntryKind is the logical variant of an Entry, resolved from the raw
// wire type byte plus whether ttl is zero (spec.md §3: "An entry with
// ttl=0 conveys the 'stop' form of its type").
type EntryKind uint8

const (
	KindFindService EntryKind = iota
	KindOfferService
	KindStopOfferService
	KindSubscribeEventgroup
	KindStopSubscribeEventgroup
	KindSubscribeEventgroupAck
	KindSubscribeEventgroupNack
)

var entryKindNames = map[EntryKind]string{
	KindFindService:             "FindService",
	KindOfferService:            "OfferService",
	KindStopOfferService:        "StopOfferService",
	KindSubscribeEventgroup:     "SubscribeEventgroup",
	KindStopSubscribeEventgroup: "StopSubscribeEventgroup",
	KindSubscribeEventgroupAck:  "SubscribeEventgroupAck",
	KindSubscribeEventgroupNack: "SubscribeEventgroupNack",
}

func (k EntryKind) String() string {
	if name, ok := entryKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EntryKind(%d)", uint8(k))
}

// IsEventgroup reports whether this kind belongs to the eventgroup entry
// family (Subscribe/StopSubscribe/Ack/Nack) rather than the service family
// (Find/Offer/StopOffer).
func (k EntryKind) IsEventgroup() bool {
	return k >= KindSubscribeEventgroup
}

// raw wire type bytes, numbered the way real-world SOME/IP-SD assigns them.
const (
	wireTypeFind     uint8 = 0x00 // FindService
	wireTypeOffer    uint8 = 0x01 // OfferService / StopOfferService (ttl=0)
	wireTypeEventgrp uint8 = 0x06 // SubscribeEventgroup / StopSubscribeEventgroup (ttl=0)
	wireTypeEventAck uint8 = 0x07 // SubscribeEventgroupAck / SubscribeEventgroupNack (ttl=0)
)

const (
	entrySize      = 16
	ttlInfinite    = 0xFFFFFF
	ttlMask        = 0x00FFFFFF
	eventgroupMask = 0x1FFF // 13 bits
)

// Entry is spec.md's 16-byte SD entry, generalized across both families.
// Fields unused by a given Kind are left zero.
type Entry struct {
	Kind EntryKind

	ServiceId    uint16
	InstanceId   uint16
	MajorVersion uint8
	MinorVersion uint32 // FindService / OfferService only
	TTL          uint32 // 24-bit; ttlInfinite (0xFFFFFF) never expires

	EventgroupId uint16 // eventgroup family only, 13 bits
	Counter      uint8  // eventgroup family only, 4 bits

	// Options1/Options2 are the options this entry references, resolved
	// by index during decode and assigned an index during encode.
	Options1 []Option
	Options2 []Option
}

func (e Entry) String() string {
	if e.Kind.IsEventgroup() {
		return fmt.Sprintf("%s{service=%#04x instance=%#04x eventgroup=%#04x ttl=%d}",
			e.Kind, e.ServiceId, e.InstanceId, e.EventgroupId, e.TTL)
	}
	return fmt.Sprintf("%s{service=%#04x instance=%#04x major=%d minor=%d ttl=%d}",
		e.Kind, e.ServiceId, e.InstanceId, e.MajorVersion, e.MinorVersion, e.TTL)
}

// NewFindService builds a FindService entry per spec.md §4.7's
// find_service operation (ttl=3 is the conventional finder lifetime).
func NewFindService(serviceId uint16, ttl uint32) Entry {
	return Entry{Kind: KindFindService, ServiceId: serviceId, InstanceId: 0xFFFF, MajorVersion: 0xFF, MinorVersion: 0xFFFFFFFF, TTL: ttl}
}

// NewOfferService builds an OfferService (ttl>0) or StopOfferService
// (ttl==0) entry depending on ttl, per the ttl=0 "stop" convention.
func NewOfferService(serviceId, instanceId uint16, major uint8, minor uint32, ttl uint32, opts ...Option) Entry {
	kind := KindOfferService
	if ttl == 0 {
		kind = KindStopOfferService
	}
	return Entry{Kind: kind, ServiceId: serviceId, InstanceId: instanceId, MajorVersion: major, MinorVersion: minor, TTL: ttl, Options1: opts}
}

// NewSubscribeEventgroup builds a SubscribeEventgroup (ttl>0) or
// StopSubscribeEventgroup (ttl==0) entry.
func NewSubscribeEventgroup(serviceId, instanceId uint16, major uint8, ttl uint32, eventgroupId uint16, opts ...Option) Entry {
	kind := KindSubscribeEventgroup
	if ttl == 0 {
		kind = KindStopSubscribeEventgroup
	}
	return Entry{Kind: kind, ServiceId: serviceId, InstanceId: instanceId, MajorVersion: major, TTL: ttl, EventgroupId: eventgroupId, Options1: opts}
}

// NewSubscribeEventgroupAck builds a SubscribeEventgroupAck (ttl>0) or
// SubscribeEventgroupNack (ttl==0) entry.
func NewSubscribeEventgroupAck(serviceId, instanceId uint16, major uint8, ttl uint32, eventgroupId uint16) Entry {
	kind := KindSubscribeEventgroupAck
	if ttl == 0 {
		kind = KindSubscribeEventgroupNack
	}
	return Entry{Kind: kind, ServiceId: serviceId, InstanceId: instanceId, MajorVersion: major, TTL: ttl, EventgroupId: eventgroupId}
}
