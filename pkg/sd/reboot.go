package sd

import "sync"

// rebootTracker implements spec.md §4.7's reboot detection: "the receiver
// tracks the remote (sender_ip, session_id, reboot_flag) triple. A
// received session_id lower than the last observed for the same sender
// with the reboot flag set indicates reboot." Shared by Client (which
// invalidates its ServiceInstance registry for that sender) and, in
// principle, any other SD-receiving role.
type rebootTracker struct {
	mu          sync.Mutex
	lastSession map[string]uint16
}

func newRebootTracker() *rebootTracker {
	return &rebootTracker{lastSession: make(map[string]uint16)}
}

// Observe records sessionId for sender and reports whether this message
// indicates sender rebooted since the last one observed from it.
func (rt *rebootTracker) Observe(sender string, sessionId uint16, rebootFlag bool) (rebooted bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	last, seen := rt.lastSession[sender]
	rt.lastSession[sender] = sessionId
	if seen && rebootFlag && sessionId < last {
		return true
	}
	return false
}

// Forget drops tracked state for sender, e.g. on transport disconnect.
func (rt *rebootTracker) Forget(sender string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.lastSession, sender)
}
