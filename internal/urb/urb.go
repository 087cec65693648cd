// Package urb implements Uniform Reliable Broadcast on top of Perfect
// Link: every broadcast is relayed to all n peers, and a message is
// delivered once it has been acknowledged, directly or by relay, by a
// majority of processes.
package urb

import (
	"github.com/programmer229/CS451-2025-project/internal/hostfile"
	"github.com/programmer229/CS451-2025-project/internal/link"
	"github.com/programmer229/CS451-2025-project/internal/transport"
	"github.com/programmer229/CS451-2025-project/internal/wire"
)

// DeliverFunc is upcalled exactly once per message, in delivery order
// determined by quorum, not arrival order.
type DeliverFunc func(originID, originSeq uint64, payload string)

type msgID struct {
	originID  uint64
	originSeq uint64
}

// entry tracks, per message, which process ids have acknowledged it
// (by first-hand delivery or relay) and whether it has already been
// upcalled to the layer above.
type entry struct {
	payload   string
	ackedBy   map[uint64]struct{}
	delivered bool
}

// URB is one process's URB instance, relaying through a Link it owns
// the delivery callback for.
type URB struct {
	self      uint64
	n         int
	pl        *link.Link
	onDeliver DeliverFunc

	entries map[msgID]*entry
}

// New builds a URB layer for self. roster and tr are handed straight to
// the underlying PL instance it constructs.
func New(self uint64, roster hostfile.Roster, tr transport.Transport, onDeliver DeliverFunc) *URB {
	u := &URB{
		self:      self,
		n:         roster.Len(),
		onDeliver: onDeliver,
		entries:   make(map[msgID]*entry),
	}
	u.pl = link.New(self, roster, tr, u.onLinkDeliver)
	return u
}

// Tick drives the underlying Link's retransmit loop.
func (u *URB) Tick() {
	u.pl.Tick()
}

// OnReceive feeds one inbound datagram to the underlying Link.
func (u *URB) OnReceive(data []byte) {
	u.pl.OnReceive(data)
}

// Broadcast relays msg to every process in the roster, including self.
// The caller (FIFO) has already assigned OriginID and OriginSeq; URB
// never mints a sequence number of its own.
func (u *URB) Broadcast(msg wire.Message) {
	id := msgID{originID: msg.OriginID, originSeq: msg.OriginSeq}
	u.entries[id] = &entry{payload: msg.Payload, ackedBy: map[uint64]struct{}{u.self: {}}}
	u.relay(msg.OriginID, msg.OriginSeq, msg.Payload)
	u.maybeDeliver(id)
}

func (u *URB) relay(originID, originSeq uint64, payload string) {
	for target := 1; target <= u.n; target++ {
		u.pl.Send(uint64(target), wire.Message{
			Kind:      wire.URBMsg,
			OriginID:  originID,
			OriginSeq: originSeq,
			Payload:   payload,
		})
	}
}

// onLinkDeliver is PL's upcall: every process that PL-delivers a URB
// message relays it onward (if this is the first time it has seen that
// origin/seq pair) and records the relayer as having acknowledged it.
func (u *URB) onLinkDeliver(msg wire.Message) {
	id := msgID{originID: msg.OriginID, originSeq: msg.OriginSeq}
	e, ok := u.entries[id]
	first := !ok
	if !ok {
		e = &entry{payload: msg.Payload, ackedBy: make(map[uint64]struct{})}
		u.entries[id] = e
	}
	e.ackedBy[msg.SenderID] = struct{}{}
	if first {
		u.relay(msg.OriginID, msg.OriginSeq, msg.Payload)
	}
	u.maybeDeliver(id)
}

// maybeDeliver checks the uniform-majority predicate and upcalls at
// most once per message.
func (u *URB) maybeDeliver(id msgID) {
	e := u.entries[id]
	if e.delivered {
		return
	}
	majority := u.n/2 + 1
	if len(e.ackedBy) < majority {
		return
	}
	e.delivered = true
	if u.onDeliver != nil {
		u.onDeliver(id.originID, id.originSeq, e.payload)
	}
}
