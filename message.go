package someip

import "fmt"

// ProtocolVersion is the only version this stack speaks. Fixed per spec.
const ProtocolVersion uint8 = 0x01

// Reserved service/method identifying the Service Discovery protocol.
const (
	SDServiceId uint16 = 0xFFFF
	SDMethodId  uint16 = 0x8100
)

// HeaderSize is the fixed length, in bytes, of a SOME/IP header.
const HeaderSize = 16

// tpFlag is the bit that marks a message-type byte as a TP segment carrier.
const tpFlag uint8 = 0x20

// MessageId identifies the endpoint of an operation.
type MessageId struct {
	ServiceId uint16
	MethodId  uint16
}

func (id MessageId) String() string {
	return fmt.Sprintf("%#04x/%#04x", id.ServiceId, id.MethodId)
}

// IsSD reports whether this MessageId addresses Service Discovery.
func (id MessageId) IsSD() bool {
	return id.ServiceId == SDServiceId && id.MethodId == SDMethodId
}

// RequestId correlates a response to its request. SessionId 0x0000 means
// correlation is disabled for this message.
type RequestId struct {
	ClientId  uint16
	SessionId uint16
}

// MessageType is the wire message-type byte. The TP_* variants are the
// plain variants with tpFlag (0x20) set, signalling a TP-segmented frame.
//
// The five TP-capable base codes (REQUEST, REQUEST_NO_RETURN, NOTIFICATION,
// RESPONSE, ERROR) are assigned 0x00-0x04 so that base|tpFlag reproduces the
// literal TP_* hex values spec.md gives (0x20-0x24); the three ack variants
// have no TP_* counterpart and are placed outside that range.
type MessageType uint8

const (
	MessageTypeRequest           MessageType = 0x00
	MessageTypeRequestNoReturn   MessageType = 0x01
	MessageTypeNotification      MessageType = 0x02
	MessageTypeResponse          MessageType = 0x03
	MessageTypeError             MessageType = 0x04
	MessageTypeRequestAck        MessageType = 0x40
	MessageTypeResponseAck       MessageType = 0xC0
	MessageTypeErrorAck          MessageType = 0xC1
	MessageTypeTPRequest         MessageType = MessageTypeRequest | MessageType(tpFlag)
	MessageTypeTPRequestNoReturn MessageType = MessageTypeRequestNoReturn | MessageType(tpFlag)
	MessageTypeTPNotification    MessageType = MessageTypeNotification | MessageType(tpFlag)
	MessageTypeTPResponse        MessageType = MessageTypeResponse | MessageType(tpFlag)
	MessageTypeTPError           MessageType = MessageTypeError | MessageType(tpFlag)
)

var messageTypeNames = map[MessageType]string{
	MessageTypeRequest:           "REQUEST",
	MessageTypeRequestNoReturn:   "REQUEST_NO_RETURN",
	MessageTypeNotification:      "NOTIFICATION",
	MessageTypeRequestAck:        "REQUEST_ACK",
	MessageTypeResponse:          "RESPONSE",
	MessageTypeError:             "ERROR",
	MessageTypeResponseAck:       "RESPONSE_ACK",
	MessageTypeErrorAck:          "ERROR_ACK",
	MessageTypeTPRequest:         "TP_REQUEST",
	MessageTypeTPRequestNoReturn: "TP_REQUEST_NO_RETURN",
	MessageTypeTPNotification:    "TP_NOTIFICATION",
	MessageTypeTPResponse:        "TP_RESPONSE",
	MessageTypeTPError:           "TP_ERROR",
}

func (mt MessageType) String() string {
	if name, ok := messageTypeNames[mt]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%#02x)", uint8(mt))
}

// IsTP reports whether this message-type byte carries the TP segmentation
// flag (bit 0x20).
func (mt MessageType) IsTP() bool {
	return uint8(mt)&tpFlag != 0
}

// Base strips the TP flag, mapping a TP_* variant back to its plain form.
// A no-op on message types that were never TP-flagged.
func (mt MessageType) Base() MessageType {
	return mt &^ MessageType(tpFlag)
}

// tpCapable are the base message types that have a TP_* counterpart; the
// three ack variants carry no payload and are never segmented.
var tpCapable = map[MessageType]bool{
	MessageTypeRequest:         true,
	MessageTypeRequestNoReturn: true,
	MessageTypeNotification:    true,
	MessageTypeResponse:        true,
	MessageTypeError:           true,
}

// TPVariant returns the TP_* message type for base, and false if base has
// no TP-segmented form.
func TPVariant(base MessageType) (MessageType, bool) {
	if !tpCapable[base] {
		return 0, false
	}
	return base | MessageType(tpFlag), true
}

// IsValid reports whether mt is one of the thirteen enumerated variants.
func (mt MessageType) IsValid() bool {
	_, ok := messageTypeNames[mt]
	return ok
}

// ReturnCode is the RPC-level outcome carried by RESPONSE/ERROR frames.
type ReturnCode uint8

const (
	EOk                    ReturnCode = 0x00
	ENotOk                 ReturnCode = 0x01
	EUnknownService        ReturnCode = 0x02
	EUnknownMethod         ReturnCode = 0x03
	ENotReady              ReturnCode = 0x04
	ENotReachable          ReturnCode = 0x05
	ETimeout               ReturnCode = 0x06
	EWrongProtocolVersion  ReturnCode = 0x07
	EWrongInterfaceVersion ReturnCode = 0x08
	EMalformedMessage      ReturnCode = 0x09
	EWrongMessageType      ReturnCode = 0x0A
	// 0x20-0x5E reserved for E2E protection, not implemented by this core.
)

var returnCodeNames = map[ReturnCode]string{
	EOk:                    "E_OK",
	ENotOk:                 "E_NOT_OK",
	EUnknownService:        "E_UNKNOWN_SERVICE",
	EUnknownMethod:         "E_UNKNOWN_METHOD",
	ENotReady:              "E_NOT_READY",
	ENotReachable:          "E_NOT_REACHABLE",
	ETimeout:               "E_TIMEOUT",
	EWrongProtocolVersion:  "E_WRONG_PROTOCOL_VERSION",
	EWrongInterfaceVersion: "E_WRONG_INTERFACE_VERSION",
	EMalformedMessage:      "E_MALFORMED_MESSAGE",
	EWrongMessageType:      "E_WRONG_MESSAGE_TYPE",
}

func (rc ReturnCode) String() string {
	if name, ok := returnCodeNames[rc]; ok {
		return name
	}
	if rc >= 0x20 && rc <= 0x5E {
		return fmt.Sprintf("E2E_RESERVED(%#02x)", uint8(rc))
	}
	return fmt.Sprintf("ReturnCode(%#02x)", uint8(rc))
}

// IsValid reports whether rc is one of the enumerated codes or an
// E2E-reserved code (0x20-0x5E), per spec.
func (rc ReturnCode) IsValid() bool {
	if _, ok := returnCodeNames[rc]; ok {
		return true
	}
	return rc >= 0x20 && rc <= 0x5E
}

// ReturnCodeFor maps an internal error Kind onto the wire ReturnCode used
// to carry it back to a caller in an ERROR frame, grounded on
// sdo.ConvertOdToSdoAbort's kind-to-wire-code bridge.
func ReturnCodeFor(kind Kind) ReturnCode {
	switch kind {
	case KindMalformedMessage:
		return EMalformedMessage
	case KindWrongProtocolVersion:
		return EWrongProtocolVersion
	case KindWrongInterfaceVersion:
		return EWrongInterfaceVersion
	case KindUnknownService:
		return EUnknownService
	case KindUnknownMethod:
		return EUnknownMethod
	case KindNotReady:
		return ENotReady
	case KindNotReachable:
		return ENotReachable
	case KindTimeout:
		return ETimeout
	default:
		return ENotOk
	}
}

// Message is the carrier type for every SOME/IP frame: RPC, event, or a
// TP segment wrapped back up with a TP_* message type by the transport
// layer. Length is always derived from the payload on encode; decode uses
// it to locate the payload boundary and validates it against the slice it
// was handed.
type Message struct {
	MessageId        MessageId
	RequestId        RequestId
	ProtocolVersion  uint8
	InterfaceVersion uint8
	MessageType      MessageType
	ReturnCode       ReturnCode
	Payload          []byte
}

// NewMessage builds a Message with ProtocolVersion already set to the
// fixed wire value, the way callers are expected to construct one before
// handing it to codec.Encode.
func NewMessage(id MessageId, reqId RequestId, interfaceVersion uint8, mt MessageType, rc ReturnCode, payload []byte) Message {
	return Message{
		MessageId:        id,
		RequestId:        reqId,
		ProtocolVersion:  ProtocolVersion,
		InterfaceVersion: interfaceVersion,
		MessageType:      mt,
		ReturnCode:       rc,
		Payload:          payload,
	}
}

// Length is the wire `length` field: 8 (request_id + protocol_version +
// interface_version + message_type + return_code) plus the payload.
func (m Message) Length() uint32 {
	return uint32(8 + len(m.Payload))
}

func (m Message) String() string {
	return fmt.Sprintf("Message{%s %s req=%04x/%04x rc=%s len=%d}",
		m.MessageId, m.MessageType, m.RequestId.ClientId, m.RequestId.SessionId, m.ReturnCode, len(m.Payload))
}
