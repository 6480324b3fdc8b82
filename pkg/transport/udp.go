package transport

import (
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	someip "github.com/waheedejaz/opensomeip"
)

// UDP is a real-socket someip.Transport, modelled on pkg/can/virtual.Bus's
// connect/subscribe/receive-loop shape but built on net.UDPConn/
// net.ListenMulticastUDP instead of a TCP broker connection.
type UDP struct {
	mu        sync.Mutex
	conn      *net.UDPConn
	mcastConn *net.UDPConn
	listener  someip.Listener
	stopCh    chan struct{}
	wg        sync.WaitGroup
	maxFrame  int
}

// NewUDP binds a UDP socket on localAddr:port. maxFrame bounds the size of
// a single datagram read (spec.md's MaxSegmentSize governs TP segment
// sizing upstream of this transport; maxFrame just needs to be at least
// that large).
func NewUDP(localAddr string, port uint16, maxFrame int) (*UDP, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(localAddr), Port: int(port)})
	if err != nil {
		return nil, err
	}
	if maxFrame <= 0 {
		maxFrame = 65507
	}
	return &UDP{conn: conn, stopCh: make(chan struct{}), maxFrame: maxFrame}, nil
}

// Send writes data as a single UDP datagram to to.
func (u *UDP) Send(data []byte, to someip.Endpoint) error {
	addr := &net.UDPAddr{IP: net.ParseIP(to.Address), Port: int(to.Port)}
	_, err := u.conn.WriteToUDP(data, addr)
	return err
}

// Subscribe registers listener as the frame recipient and, when no
// listener was registered before the call, starts a receive loop on each
// open socket.
func (u *UDP) Subscribe(listener someip.Listener) (func(), error) {
	u.mu.Lock()
	alreadyRunning := u.listener != nil
	u.listener = listener
	u.mu.Unlock()

	if !alreadyRunning {
		u.wg.Add(1)
		go u.receiveLoop(u.conn)
		if u.mcastConn != nil {
			u.wg.Add(1)
			go u.receiveLoop(u.mcastConn)
		}
	}

	return func() {
		u.mu.Lock()
		u.listener = nil
		u.mu.Unlock()
	}, nil
}

func (u *UDP) receiveLoop(conn *net.UDPConn) {
	defer u.wg.Done()
	buf := make([]byte, u.maxFrame)
	for {
		select {
		case <-u.stopCh:
			return
		default:
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.stopCh:
				return
			default:
				log.Warnf("[SOMEIP][UDP] read error: %v", err)
				return
			}
		}

		u.mu.Lock()
		listener := u.listener
		u.mu.Unlock()
		if listener == nil {
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])
		listener.Handle(frame, someip.Endpoint{Address: from.IP.String(), Port: uint16(from.Port), Protocol: someip.ProtocolUDP})
	}
}

// JoinMulticast opens a second socket bound to group:port in multicast
// mode so both unicast replies and multicast SD traffic are received.
func (u *UDP) JoinMulticast(group string, port uint16) error {
	conn, err := net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{IP: net.ParseIP(group), Port: int(port)})
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.mcastConn = conn
	hasListener := u.listener != nil
	u.mu.Unlock()

	if hasListener {
		u.wg.Add(1)
		go u.receiveLoop(conn)
	}
	return nil
}

// LeaveMulticast closes the multicast socket opened by JoinMulticast.
func (u *UDP) LeaveMulticast(group string, port uint16) error {
	u.mu.Lock()
	conn := u.mcastConn
	u.mcastConn = nil
	u.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Close shuts down the receive loop(s) and both sockets.
func (u *UDP) Close() error {
	close(u.stopCh)
	u.mu.Lock()
	mcast := u.mcastConn
	u.mu.Unlock()
	_ = u.conn.Close()
	if mcast != nil {
		_ = mcast.Close()
	}
	u.wg.Wait()
	return nil
}
