package tp

import (
	"sync"
	"time"

	"github.com/google/uuid"

	someip "github.com/waheedejaz/opensomeip"
	"github.com/waheedejaz/opensomeip/pkg/codec"
)

// TransferState is the lifecycle of a send-side TpTransfer, per spec.md §3.
type TransferState uint8

const (
	StatePending TransferState = iota
	StateSending
	StateComplete
	StateFailed
	StateTimeout
)

func (s TransferState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSending:
		return "SENDING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	case StateTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// transfer is the send-side bookkeeping spec.md §3 calls TpTransfer,
// identified externally by an opaque transfer_id (a google/uuid, the way
// the wider retrieval pack mints opaque transfer handles rather than
// reusing a wire-visible counter that could collide across restarts).
type transfer struct {
	messageId someip.MessageId
	segments  []Segment
	cursor    int
	state     TransferState
	lastTouch time.Time
}

// Options configures a Manager's ceilings, mirroring spec.md §6's tp.*
// configuration keys.
type Options struct {
	MaxSegmentSize         int
	MaxMessageSize         int
	MaxConcurrentTransfers int
	ReassemblyTimeout      time.Duration
}

// Statistics is the snapshot returned by Manager.Statistics.
type Statistics struct {
	ActiveSendTransfers int
	CompletedTransfers  uint64
	FailedTransfers     uint64
	SegmentsSent        uint64
	SegmentsReceived    uint64
	ReassembliesOK      uint64
	ReassembliesDropped uint64
	ReassemblyTimeouts  uint64
}

// Manager implements spec.md §4.5: owns active send-transfers and
// delegates receive-side work to a Reassembler. The send-transfer table
// and the statistics share one lock; the Reassembler locks its own buffers.
type Manager struct {
	mu          sync.Mutex
	opts        Options
	segmenter   *Segmenter
	reassembler *Reassembler
	transfers   map[string]*transfer
	stats       Statistics
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:        opts,
		segmenter:   NewSegmenter(),
		reassembler: NewReassembler(opts.MaxMessageSize, opts.ReassemblyTimeout),
		transfers:   make(map[string]*transfer),
	}
}

// NeedsSegmentation reports whether msg's encoded size exceeds
// max_segment_size and must go through BeginSend rather than a direct
// transport.Send.
func (m *Manager) NeedsSegmentation(msg someip.Message) bool {
	return someip.HeaderSize+len(msg.Payload) > m.opts.MaxSegmentSize
}

// BeginSend segments msg and registers a new send-transfer, failing
// RESOURCE_EXHAUSTED if max_concurrent_transfers is already reached.
func (m *Manager) BeginSend(msg someip.Message) (string, error) {
	segments, err := m.segmenter.Segment(msg, m.opts.MaxSegmentSize, m.opts.MaxMessageSize)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.transfers) >= m.opts.MaxConcurrentTransfers {
		return "", someip.NewError(someip.KindResourceExhausted, ErrTransferTableFull)
	}

	id := uuid.NewString()
	m.transfers[id] = &transfer{
		messageId: msg.MessageId,
		segments:  segments,
		state:     StateSending,
		lastTouch: time.Now(),
	}
	return id, nil
}

// NextSegment returns the wire-ready bytes for the next pending segment of
// transferId, or done=true once every segment has been handed out (the
// transfer moves to COMPLETE and is retired).
func (m *Manager) NextSegment(transferId string) (frame []byte, done bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[transferId]
	if !ok {
		return nil, true, ErrUnknownTransfer
	}
	if t.cursor >= len(t.segments) {
		t.state = StateComplete
		delete(m.transfers, transferId)
		m.stats.CompletedTransfers++
		return nil, true, nil
	}

	seg := t.segments[t.cursor]
	t.cursor++
	t.lastTouch = time.Now()
	m.stats.SegmentsSent++
	return seg.Frame(codec.Encode), false, nil
}

// OnReceived feeds one decoded TP_* frame to the reassembler. Callers
// should only route frames whose MessageType.IsTP() is true here - a plain
// SINGLE_MESSAGE never reaches the TP layer at all.
func (m *Manager) OnReceived(sender someip.Endpoint, outer someip.Message) (someip.Message, bool, error) {
	now := time.Now()
	msg, ok, err := m.reassembler.Receive(sender, outer, now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SegmentsReceived++
	if err != nil {
		m.stats.ReassembliesDropped++
		return someip.Message{}, false, err
	}
	if ok {
		m.stats.ReassembliesOK++
	}
	return msg, ok, nil
}

// Cancel retires a send-transfer without completing it.
func (m *Manager) Cancel(transferId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transfers[transferId]; !ok {
		return ErrUnknownTransfer
	}
	delete(m.transfers, transferId)
	m.stats.FailedTransfers++
	return nil
}

// GetStatus reports a send-transfer's current state.
func (m *Manager) GetStatus(transferId string) (TransferState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[transferId]
	if !ok {
		return StateFailed, ErrUnknownTransfer
	}
	return t.state, nil
}

// Statistics returns a point-in-time snapshot of this Manager's counters.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.ActiveSendTransfers = len(m.transfers)
	return s
}

// Tick sweeps both the reassembler's stale buffers and send-transfers that
// have sat idle past the reassembly timeout, per spec.md §5's "every
// outstanding ... TP send transfer, and reassembly buffer has a deadline"
// requirement.
func (m *Manager) Tick(now time.Time) {
	evicted := m.reassembler.Sweep(now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.ReassemblyTimeouts += uint64(evicted)

	for id, t := range m.transfers {
		if now.Sub(t.lastTouch) > m.opts.ReassemblyTimeout {
			t.state = StateTimeout
			delete(m.transfers, id)
			m.stats.FailedTransfers++
		}
	}
}
