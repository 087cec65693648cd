// Package link implements Perfect Link (PL): the stubborn, duplicate-free
// point-to-point delivery abstraction every layer above is built on. It
// guarantees three properties — reliable delivery, no duplication, no
// creation — by tracking every outbound message until acked and
// retransmitting it from Tick whenever its retransmit interval has
// elapsed, and by deduplicating every inbound
// message against a seen-set before the layer above ever hears about it.
package link

import (
	"log"
	"time"

	"github.com/programmer229/CS451-2025-project/internal/hostfile"
	"github.com/programmer229/CS451-2025-project/internal/transport"
	"github.com/programmer229/CS451-2025-project/internal/wire"
)

// DefaultRetransmitInterval is how long an unacked message waits after
// its last send before Tick resends it.
const DefaultRetransmitInterval = 1000 * time.Millisecond

// DeliverFunc is upcalled once per distinct (sender, seq_no) pair, in
// whatever order datagrams actually arrive — ordering is URB/FIFO's job,
// not PL's.
type DeliverFunc func(msg wire.Message)

type pendingEntry struct {
	msg      wire.Message
	target   uint64
	lastSent time.Time
}

type deliverKey struct {
	sender uint64
	seq    uint64
}

// Link is one process's Perfect Link endpoint, fanning out to every
// peer in the roster over a single shared Transport.
type Link struct {
	self   uint64
	roster hostfile.Roster
	tr     transport.Transport
	onDeliver DeliverFunc

	nextSeq   uint64
	pending   map[deliverKey]*pendingEntry
	delivered map[deliverKey]struct{}

	RetransmitInterval time.Duration
}

// New wires a Link for self, using roster to resolve peer addresses and
// tr to actually move bytes. onDeliver is called for every newly-seen
// data message this link receives (acks never reach it).
func New(self uint64, roster hostfile.Roster, tr transport.Transport, onDeliver DeliverFunc) *Link {
	return &Link{
		self:               self,
		roster:             roster,
		tr:                 tr,
		onDeliver:          onDeliver,
		pending:            make(map[deliverKey]*pendingEntry),
		delivered:          make(map[deliverKey]struct{}),
		RetransmitInterval: DefaultRetransmitInterval,
	}
}

// Send hands msg to PL for delivery to target. sender_id and seq_no are
// always (re)assigned here: no caller, however many layers up, is
// allowed to mint PL sequence numbers itself. This is the one wrinkle
// the original C++ runtime got wrong with a shared static counter; each
// Link instance owns its own counter instead.
func (l *Link) Send(target uint64, msg wire.Message) {
	l.nextSeq++
	msg.SenderID = l.self
	msg.SeqNo = l.nextSeq

	key := deliverKey{sender: l.self, seq: msg.SeqNo}
	l.pending[key] = &pendingEntry{msg: msg, target: target, lastSent: time.Now()}
	l.transmit(target, msg)
}

// OnReceive decodes one datagram and dispatches it to the ack or data
// handling path. Malformed datagrams are logged and dropped.
func (l *Link) OnReceive(data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		log.Printf("[PL] -> dropping malformed datagram: %v", err)
		return
	}
	if msg.Kind == wire.PLAck {
		l.handleAck(msg)
		return
	}
	l.handleIncoming(msg)
}

// Tick retransmits every pending message whose last send is older than
// RetransmitInterval. Called once per event-loop iteration.
func (l *Link) Tick() {
	now := time.Now()
	for _, e := range l.pending {
		if now.Sub(e.lastSent) < l.RetransmitInterval {
			continue
		}
		e.lastSent = now
		l.transmit(e.target, e.msg)
	}
}

func (l *Link) handleIncoming(msg wire.Message) {
	key := deliverKey{sender: msg.SenderID, seq: msg.SeqNo}
	l.sendAck(msg)
	if _, seen := l.delivered[key]; seen {
		return
	}
	l.delivered[key] = struct{}{}
	if l.onDeliver != nil {
		l.onDeliver(msg)
	}
}

func (l *Link) handleAck(msg wire.Message) {
	key := deliverKey{sender: l.self, seq: msg.SeqNo}
	e, ok := l.pending[key]
	if !ok || e.msg.OriginID != msg.OriginID || e.msg.OriginSeq != msg.OriginSeq {
		return
	}
	delete(l.pending, key)
}

func (l *Link) sendAck(msg wire.Message) {
	ack := wire.Message{
		Kind:      wire.PLAck,
		SenderID:  l.self,
		SeqNo:     msg.SeqNo,
		OriginID:  msg.OriginID,
		OriginSeq: msg.OriginSeq,
	}
	l.transmit(msg.SenderID, ack)
}

// transmit moves msg to target, special-casing target == self: URB (and
// therefore PL underneath it) must deliver broadcasts to the sender
// too, but Transport models one bound UDP socket that cannot usefully
// send itself a datagram and read it back. Looping directly into the
// receive path keeps that guarantee without round-tripping through the
// kernel.
func (l *Link) transmit(target uint64, msg wire.Message) {
	if target == l.self {
		l.OnReceive(msg.Encode())
		return
	}
	host, ok := l.roster.Lookup(target)
	if !ok {
		log.Printf("[PL] -> unknown target %d, dropping send", target)
		return
	}
	if err := l.tr.SendTo(host.Addr, msg.Encode()); err != nil {
		log.Printf("[PL] -> send to %d failed: %v", target, err)
	}
}
