// Package lattice implements multi-shot Lattice Agreement directly on
// top of Perfect Link, with no URB in between: each slot runs an
// independent proposer/acceptor instance, and the lattice order is
// plain integer-set subset inclusion.
package lattice

import (
	"github.com/programmer229/CS451-2025-project/internal/hostfile"
	"github.com/programmer229/CS451-2025-project/internal/intset"
	"github.com/programmer229/CS451-2025-project/internal/link"
	"github.com/programmer229/CS451-2025-project/internal/transport"
	"github.com/programmer229/CS451-2025-project/internal/wire"
)

// DecideFunc is upcalled exactly once per slot, with the decided value
// V, a superset of every initial value this process proposed for slot.
type DecideFunc func(slot uint64, value intset.Set)

type proposerState struct {
	proposed  intset.Set
	activePn  uint64
	ackCount  int
	nackCount int
	active    bool
	decided   bool
}

type acceptorState struct {
	accepted intset.Set
}

// Agreement is one process's LA instance, running any number of
// independently-numbered slots over a single shared Link.
type Agreement struct {
	self     uint64
	n        int
	pl       *link.Link
	onDecide DecideFunc

	proposers map[uint64]*proposerState
	acceptors map[uint64]*acceptorState
}

// New builds an LA layer for self, talking PL directly.
func New(self uint64, roster hostfile.Roster, tr transport.Transport, onDecide DecideFunc) *Agreement {
	a := &Agreement{
		self:      self,
		n:         roster.Len(),
		onDecide:  onDecide,
		proposers: make(map[uint64]*proposerState),
		acceptors: make(map[uint64]*acceptorState),
	}
	a.pl = link.New(self, roster, tr, a.onLinkDeliver)
	return a
}

// Tick drives the underlying Link's retransmit loop.
func (a *Agreement) Tick() {
	a.pl.Tick()
}

// OnReceive feeds one inbound datagram to the underlying Link.
func (a *Agreement) OnReceive(data []byte) {
	a.pl.OnReceive(data)
}

// Propose initiates (or re-initiates, for a later shot at the same
// slot) agreement on slot with initial value v.
func (a *Agreement) Propose(slot uint64, v intset.Set) {
	p := a.proposer(slot)
	p.proposed = v.Clone()
	p.activePn++
	p.ackCount = 0
	p.nackCount = 0
	p.active = true
	a.broadcastProposal(slot, p)
}

func (a *Agreement) proposer(slot uint64) *proposerState {
	p, ok := a.proposers[slot]
	if !ok {
		p = &proposerState{proposed: intset.New()}
		a.proposers[slot] = p
	}
	return p
}

func (a *Agreement) acceptor(slot uint64) *acceptorState {
	ac, ok := a.acceptors[slot]
	if !ok {
		ac = &acceptorState{accepted: intset.New()}
		a.acceptors[slot] = ac
	}
	return ac
}

func (a *Agreement) broadcastProposal(slot uint64, p *proposerState) {
	for target := 1; target <= a.n; target++ {
		a.pl.Send(uint64(target), wire.Message{
			Kind:      wire.LAProposal,
			OriginID:  slot,
			OriginSeq: p.activePn,
			Payload:   p.proposed.Encode(),
		})
	}
}

// onLinkDeliver is PL's upcall for LA traffic.
func (a *Agreement) onLinkDeliver(msg wire.Message) {
	switch msg.Kind {
	case wire.LAProposal:
		a.handleProposal(msg)
	case wire.LAAck:
		a.handleAck(msg)
	case wire.LANack:
		a.handleNack(msg)
	}
}

func (a *Agreement) handleProposal(msg wire.Message) {
	slot, pn := msg.OriginID, msg.OriginSeq
	v, err := intset.Parse(msg.Payload)
	if err != nil {
		return
	}
	ac := a.acceptor(slot)
	if ac.accepted.Subset(v) {
		ac.accepted = v
		a.pl.Send(msg.SenderID, wire.Message{
			Kind:      wire.LAAck,
			OriginID:  slot,
			OriginSeq: pn,
		})
		return
	}
	ac.accepted = ac.accepted.Union(v)
	a.pl.Send(msg.SenderID, wire.Message{
		Kind:      wire.LANack,
		OriginID:  slot,
		OriginSeq: pn,
		Payload:   ac.accepted.Encode(),
	})
}

func (a *Agreement) handleAck(msg wire.Message) {
	slot, pn := msg.OriginID, msg.OriginSeq
	p, ok := a.proposers[slot]
	if !ok || !p.active || pn != p.activePn {
		return
	}
	p.ackCount++
	a.evaluate(slot, p)
}

func (a *Agreement) handleNack(msg wire.Message) {
	slot, pn := msg.OriginID, msg.OriginSeq
	p, ok := a.proposers[slot]
	if !ok || !p.active || pn != p.activePn {
		return
	}
	s, err := intset.Parse(msg.Payload)
	if err != nil {
		return
	}
	p.proposed = p.proposed.Union(s)
	p.nackCount++
	a.evaluate(slot, p)
}

// evaluate checks decide before retry: a decide-quorum of acks wins
// outright; only once that fails do we consider retrying on the
// strength of outstanding nacks.
func (a *Agreement) evaluate(slot uint64, p *proposerState) {
	quorum := a.n/2 + 1
	if p.ackCount >= quorum {
		p.decided = true
		p.active = false
		if a.onDecide != nil {
			a.onDecide(slot, p.proposed.Clone())
		}
		return
	}
	total := p.ackCount + p.nackCount
	if p.nackCount > 0 && total >= quorum {
		p.activePn++
		p.ackCount = 0
		p.nackCount = 0
		a.broadcastProposal(slot, p)
	}
}
