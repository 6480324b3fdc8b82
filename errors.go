// Package someip is a pure Go implementation of the SOME/IP middleware
// core: wire codec, service discovery, transport-protocol segmentation and
// session/RPC correlation. Raw socket I/O, CLI scaffolding and end-to-end
// protection are left to the integrator.
package someip

import "errors"

// Kind is the flat error taxonomy of the SOME/IP core. Every outstanding
// operation resolves to either success, one of these kinds, or TIMEOUT.
type Kind uint8

const (
	KindNone Kind = iota
	KindMalformedMessage
	KindWrongProtocolVersion
	KindWrongInterfaceVersion
	KindUnknownService
	KindUnknownMethod
	KindNotReady
	KindNotReachable
	KindTimeout
	KindMessageTooLarge
	KindResourceExhausted
	KindInvalidSegment
	KindNetworkError
)

var kindDescription = map[Kind]string{
	KindNone:                  "no error",
	KindMalformedMessage:      "malformed message",
	KindWrongProtocolVersion:  "wrong protocol version",
	KindWrongInterfaceVersion: "wrong interface version",
	KindUnknownService:        "unknown service",
	KindUnknownMethod:         "unknown method",
	KindNotReady:              "not ready",
	KindNotReachable:          "not reachable",
	KindTimeout:               "timeout",
	KindMessageTooLarge:       "message too large",
	KindResourceExhausted:     "resource exhausted",
	KindInvalidSegment:        "invalid TP segment",
	KindNetworkError:          "network error",
}

func (k Kind) String() string {
	if desc, ok := kindDescription[k]; ok {
		return desc
	}
	return "unknown error kind"
}

// Error wraps a Kind with an optional underlying cause, the way
// sdo.SDOAbortCode pairs a wire code with a description in the teacher
// stack, except this Kind never itself rides the wire; pkg/codec bridges
// it to a ReturnCode when a response frame must be sent.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err carries the given Kind, allowing
// errors.Is(err, someip.KindMalformedMessage) style checks against a
// wrapped *Error by comparing against a bare Kind sentinel below.
func (e *Error) Is(target error) bool {
	k, ok := target.(sentinelKind)
	return ok && e.Kind == Kind(k)
}

type sentinelKind Kind

func (k sentinelKind) Error() string { return Kind(k).String() }

// Sentinel errors for errors.Is comparisons against a bare Kind, e.g.
//
//	if errors.Is(err, someip.ErrMalformedMessage) { ... }
var (
	ErrMalformedMessage      error = sentinelKind(KindMalformedMessage)
	ErrWrongProtocolVersion  error = sentinelKind(KindWrongProtocolVersion)
	ErrWrongInterfaceVersion error = sentinelKind(KindWrongInterfaceVersion)
	ErrUnknownService        error = sentinelKind(KindUnknownService)
	ErrUnknownMethod         error = sentinelKind(KindUnknownMethod)
	ErrNotReady              error = sentinelKind(KindNotReady)
	ErrNotReachable          error = sentinelKind(KindNotReachable)
	ErrTimeout               error = sentinelKind(KindTimeout)
	ErrMessageTooLarge       error = sentinelKind(KindMessageTooLarge)
	ErrResourceExhausted     error = sentinelKind(KindResourceExhausted)
	ErrInvalidSegment        error = sentinelKind(KindInvalidSegment)
	ErrNetworkError          error = sentinelKind(KindNetworkError)
)

// Package level sentinels for argument/lifecycle errors not part of the
// wire taxonomy, grounded on the teacher's flat errors.go.
var (
	ErrIllegalArgument = errors.New("illegal argument")
	ErrIdRange         = errors.New("node or client id out of range")
	ErrNotFound        = errors.New("not found")
	ErrClosed          = errors.New("component is closed")
)
