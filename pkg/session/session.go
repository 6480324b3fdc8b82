// Package session implements the SOME/IP Session Manager of spec.md §4.2:
// per-client session-id allocation with wrap semantics, and an
// outstanding-request table correlating responses back to requests.
// Sharded locking (one mutex per bucket of client ids, rather than one
// mutex for the whole manager) is grounded on the teacher's
// per-monitored-entry mutex in pkg/heartbeat.hbConsumerEntry — many
// independent clients should not contend on a single lock.
package session

import (
	"sync"
	"time"
)

// numShards is the number of independent lock buckets. Chosen as a small
// power of two, the way the teacher's BusManager sizes its CAN-id lookup
// table for cheap masking rather than modulo by a prime.
const numShards = 16

// firstSessionId is the first value allocate() returns for a new client;
// 0x0000 is reserved to mean "correlation disabled" and must never be
// allocated (spec.md §3).
const firstSessionId uint16 = 0x0001

// TimedOutRequest is yielded by Sweep for every outstanding request whose
// deadline has passed.
type TimedOutRequest struct {
	ClientId  uint16
	SessionId uint16
}

type outstandingEntry struct {
	deadline time.Time
}

type clientState struct {
	nextSessionId uint16
	outstanding   map[uint16]outstandingEntry
}

type shard struct {
	mu      sync.Mutex
	clients map[uint16]*clientState
}

// Manager owns per-client session counters and the outstanding-request
// table. Safe for concurrent use; correlate is atomic with respect to
// register/remove per spec.md §4.2.
type Manager struct {
	shards [numShards]*shard
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	m := &Manager{}
	for i := range m.shards {
		m.shards[i] = &shard{clients: make(map[uint16]*clientState)}
	}
	return m
}

func (m *Manager) shardFor(clientId uint16) *shard {
	return m.shards[clientId%numShards]
}

func (s *shard) stateFor(clientId uint16) *clientState {
	cs, ok := s.clients[clientId]
	if !ok {
		cs = &clientState{nextSessionId: firstSessionId, outstanding: make(map[uint16]outstandingEntry)}
		s.clients[clientId] = cs
	}
	return cs
}

// Allocate returns the current session-id counter for clientId (creating
// state at 0x0001 on first call) and advances it, wrapping 0xFFFF ->
// 0x0001. Never returns 0x0000.
func (m *Manager) Allocate(clientId uint16) uint16 {
	s := m.shardFor(clientId)
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.stateFor(clientId)
	id := cs.nextSessionId
	if cs.nextSessionId == 0xFFFF {
		cs.nextSessionId = firstSessionId
	} else {
		cs.nextSessionId++
	}
	return id
}

// RegisterOutstanding records a pending request with the given deadline.
// A duplicate (clientId, sessionId) overwrites the previous entry.
func (m *Manager) RegisterOutstanding(clientId, sessionId uint16, deadline time.Time) {
	s := m.shardFor(clientId)
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.stateFor(clientId)
	cs.outstanding[sessionId] = outstandingEntry{deadline: deadline}
}

// Correlate looks up and atomically removes the outstanding entry for
// (clientId, sessionId). An unknown pair returns ok=false; the caller
// treats this as a spurious response.
func (m *Manager) Correlate(clientId, sessionId uint16) (ok bool) {
	s := m.shardFor(clientId)
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, exists := s.clients[clientId]
	if !exists {
		return false
	}
	if _, exists := cs.outstanding[sessionId]; !exists {
		return false
	}
	delete(cs.outstanding, sessionId)
	return true
}

// Sweep removes every outstanding entry whose deadline is at or before
// now, returning them as timeout events for the caller to dispatch.
func (m *Manager) Sweep(now time.Time) []TimedOutRequest {
	var timedOut []TimedOutRequest

	for _, s := range m.shards {
		s.mu.Lock()
		for clientId, cs := range s.clients {
			for sessionId, entry := range cs.outstanding {
				if !entry.deadline.After(now) {
					delete(cs.outstanding, sessionId)
					timedOut = append(timedOut, TimedOutRequest{ClientId: clientId, SessionId: sessionId})
				}
			}
		}
		s.mu.Unlock()
	}
	return timedOut
}

// RemoveClient destroys all state for clientId (explicit teardown or
// client-scoped cleanup per spec.md §3 Session lifecycle).
func (m *Manager) RemoveClient(clientId uint16) {
	s := m.shardFor(clientId)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientId)
}

// Stats is a point-in-time snapshot of Manager occupancy, for pkg/metrics.
type Stats struct {
	Clients     int
	Outstanding int
}

// Snapshot reports the current number of tracked clients and outstanding
// requests across all shards.
func (m *Manager) Snapshot() Stats {
	var s Stats
	for _, shard := range m.shards {
		shard.mu.Lock()
		s.Clients += len(shard.clients)
		for _, cs := range shard.clients {
			s.Outstanding += len(cs.outstanding)
		}
		shard.mu.Unlock()
	}
	return s
}
