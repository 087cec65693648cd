// Package transporttest provides an in-memory Transport fake used by the
// layer test suites to drive multi-process scenarios (message loss,
// crashes) deterministically and without real sockets.
package transporttest

import (
	"net"
	"sync"
	"time"
)

type packet struct {
	from *net.UDPAddr
	data []byte
}

// LossFunc decides whether a datagram from->to should be dropped.
// Returning true drops the datagram; the sender is never told.
type LossFunc func(from, to *net.UDPAddr, data []byte) bool

// Network is a shared medium that a set of Transport fakes deliver
// datagrams through, used to simulate loss and crashes. Datagrams that
// are not dropped reach each inbox in the order they were sent.
type Network struct {
	mu         sync.Mutex
	transports map[string]*Transport
	loss       LossFunc
}

// NewNetwork creates an empty medium with no configured loss.
func NewNetwork() *Network {
	return &Network{transports: make(map[string]*Transport)}
}

// SetLoss installs (or clears, with nil) the loss policy for this medium.
func (n *Network) SetLoss(f LossFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loss = f
}

// NewTransport registers a new endpoint bound to addr and returns its
// Transport handle.
func (n *Network) NewTransport(addr *net.UDPAddr) *Transport {
	t := &Transport{addr: addr, net: n}
	n.mu.Lock()
	n.transports[addr.String()] = t
	n.mu.Unlock()
	return t
}

// Crash removes addr from the medium; sends to it vanish silently and
// it stops being able to send (as if the process halted).
func (n *Network) Crash(addr *net.UDPAddr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.transports[addr.String()]; ok {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
	}
	delete(n.transports, addr.String())
}

func (n *Network) resolve(addr *net.UDPAddr) (*Transport, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.transports[addr.String()]
	return t, ok
}

func (n *Network) shouldDrop(from, to *net.UDPAddr, data []byte) bool {
	n.mu.Lock()
	f := n.loss
	n.mu.Unlock()
	return f != nil && f(from, to, data)
}

// Transport is one endpoint's handle into a Network; it implements
// transport.Transport.
type Transport struct {
	addr *net.UDPAddr
	net  *Network

	mu     sync.Mutex
	inbox  []packet
	closed bool
}

func (t *Transport) SendTo(addr *net.UDPAddr, data []byte) error {
	t.mu.Lock()
	dead := t.closed
	t.mu.Unlock()
	if dead {
		return nil
	}
	dst, ok := t.net.resolve(addr)
	if !ok {
		return nil // no such peer reachable; a real UDP send would also vanish
	}
	if t.net.shouldDrop(t.addr, addr, data) {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	dst.deliver(t.addr, cp)
	return nil
}

func (t *Transport) deliver(from *net.UDPAddr, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.inbox = append(t.inbox, packet{from: from, data: data})
}

// Recv implements transport.Transport. The fake never actually sleeps
// for timeout: tests drive delivery synchronously by calling SendTo on
// a peer and then Recv on the destination, so an empty inbox simply
// means "nothing pending" rather than a real timeout condition.
func (t *Transport) Recv(_ time.Duration) ([]byte, *net.UDPAddr, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbox) == 0 {
		return nil, nil, false, nil
	}
	p := t.inbox[0]
	t.inbox = t.inbox[1:]
	return p.data, p.from, true, nil
}

func (t *Transport) LocalAddr() *net.UDPAddr {
	return t.addr
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
