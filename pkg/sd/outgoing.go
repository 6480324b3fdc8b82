package sd

import (
	"math/rand"
	"sync"
	"time"
)

// outgoingSession is the per-role SD session counter: spec.md §3 "SD
// session_id increments monotonically per message; starts at 1, wraps
// 0xFFFF -> 1. The reboot flag remains set from boot until the first
// wrap." A Server and a Client each own one, since each is an independent
// sender identity on the wire.
type outgoingSession struct {
	mu         sync.Mutex
	sessionId  uint16
	rebootFlag bool
}

func newOutgoingSession() *outgoingSession {
	return &outgoingSession{rebootFlag: true}
}

// next returns the session_id and reboot flag to stamp on the next
// outgoing SD message.
func (s *outgoingSession) next() (sessionId uint16, reboot bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.sessionId == 0:
		s.sessionId = 1
	case s.sessionId == 0xFFFF:
		s.sessionId = 1
		s.rebootFlag = false
	default:
		s.sessionId++
	}
	return s.sessionId, s.rebootFlag
}

// randomUpTo returns a uniformly random duration in [0, max), or 0 if max<=0.
func randomUpTo(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
