// Package transport abstracts the datagram socket every layer above it
// is built on: the bind/send/recv syscalls live behind this interface,
// plus the one real implementation (UDP) the runtime ships with.
package transport

import (
	"errors"
	"net"
	"time"
)

// Transport sends byte buffers to a peer address and lets the caller
// poll for arrivals with a timeout, mirroring the single-threaded
// "wait for readiness, then drain one datagram" event loop driver runs.
type Transport interface {
	SendTo(addr *net.UDPAddr, data []byte) error

	// Recv waits up to timeout for one datagram. ok is false if the
	// timeout elapsed with nothing to read; err is non-nil only for
	// a genuine I/O failure, not a timeout.
	Recv(timeout time.Duration) (data []byte, from *net.UDPAddr, ok bool, err error)

	LocalAddr() *net.UDPAddr
	Close() error
}

// UDP is the production Transport, a single bound datagram socket.
type UDP struct {
	conn *net.UDPConn
	buf  []byte
}

// Listen binds a UDP socket on addr and returns a ready-to-use Transport.
func Listen(addr *net.UDPAddr) (*UDP, error) {
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return &UDP{conn: conn, buf: make([]byte, 65536)}, nil
}

func (u *UDP) SendTo(addr *net.UDPAddr, data []byte) error {
	_, err := u.conn.WriteToUDP(data, addr)
	return err
}

func (u *UDP) Recv(timeout time.Duration) ([]byte, *net.UDPAddr, bool, error) {
	if err := u.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, false, err
	}
	n, from, err := u.conn.ReadFromUDP(u.buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	data := make([]byte, n)
	copy(data, u.buf[:n])
	return data, from, true, nil
}

func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

func (u *UDP) Close() error {
	return u.conn.Close()
}
