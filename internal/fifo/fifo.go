// Package fifo implements FIFO Broadcast on top of URB: messages from
// the same origin are delivered to the layer above in the order their
// origin broadcast them. Messages from different origins may interleave
// freely.
package fifo

import (
	"github.com/programmer229/CS451-2025-project/internal/hostfile"
	"github.com/programmer229/CS451-2025-project/internal/transport"
	"github.com/programmer229/CS451-2025-project/internal/urb"
	"github.com/programmer229/CS451-2025-project/internal/wire"
)

// DeliverFunc is upcalled once per message, in FIFO order per origin.
type DeliverFunc func(originID, originSeq uint64, payload string)

// FIFO is one process's FIFO Broadcast instance.
type FIFO struct {
	self      uint64
	urb       *urb.URB
	onDeliver DeliverFunc

	// mySeq is this process's own origin sequence counter: FIFO owns
	// origin_seq assignment, not URB.
	mySeq uint64

	// expect[origin] is the last origin sequence number this process has
	// delivered for that origin (0 if none yet); buffered holds
	// out-of-order arrivals until their predecessors show up.
	expect   map[uint64]uint64
	buffered map[uint64]map[uint64]string
}

// New builds a FIFO layer for self on top of a freshly constructed URB
// instance.
func New(self uint64, roster hostfile.Roster, tr transport.Transport, onDeliver DeliverFunc) *FIFO {
	f := &FIFO{
		self:      self,
		onDeliver: onDeliver,
		expect:    make(map[uint64]uint64),
		buffered:  make(map[uint64]map[uint64]string),
	}
	f.urb = urb.New(self, roster, tr, f.onURBDeliver)
	return f
}

// Tick drives the underlying URB (and, through it, PL) retransmit loop.
func (f *FIFO) Tick() {
	f.urb.Tick()
}

// OnReceive feeds one inbound datagram down to URB/PL.
func (f *FIFO) OnReceive(data []byte) {
	f.urb.OnReceive(data)
}

// Broadcast assigns the next origin sequence number for self, hands the
// pre-populated message to URB, and returns that sequence number.
func (f *FIFO) Broadcast(payload string) uint64 {
	f.mySeq++
	seq := f.mySeq
	f.urb.Broadcast(wire.Message{OriginID: f.self, OriginSeq: seq, Payload: payload})
	return seq
}

func (f *FIFO) onURBDeliver(originID, originSeq uint64, payload string) {
	if originSeq <= f.expect[originID] {
		// Already delivered (or stale): discard rather than re-buffer.
		return
	}
	if f.buffered[originID] == nil {
		f.buffered[originID] = make(map[uint64]string)
	}
	f.buffered[originID][originSeq] = payload
	f.drain(originID)
}

// drain upcalls every contiguous run of buffered messages from origin
// starting at the next sequence number it is expecting.
func (f *FIFO) drain(origin uint64) {
	next := f.expect[origin] + 1
	for {
		payload, ok := f.buffered[origin][next]
		if !ok {
			return
		}
		delete(f.buffered[origin], next)
		f.expect[origin] = next
		if f.onDeliver != nil {
			f.onDeliver(origin, next, payload)
		}
		next++
	}
}
