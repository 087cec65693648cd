// Package driver is the single-threaded cooperative event loop that
// owns every layer's state, the transport socket, and the output log.
// There is no shared mutable state across threads and no locking; each
// iteration waits for datagram readiness, drains at most one datagram
// through the active layer stack, then ticks retransmits.
package driver

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/programmer229/CS451-2025-project/internal/fifo"
	"github.com/programmer229/CS451-2025-project/internal/hostfile"
	"github.com/programmer229/CS451-2025-project/internal/intset"
	"github.com/programmer229/CS451-2025-project/internal/lattice"
	"github.com/programmer229/CS451-2025-project/internal/outlog"
	"github.com/programmer229/CS451-2025-project/internal/runconfig"
	"github.com/programmer229/CS451-2025-project/internal/transport"
)

// RecvTimeout is the readiness-wait budget for each iteration of the
// event loop.
const RecvTimeout = 10 * time.Millisecond

// layer is whatever this process's active mode drives: either the FB
// chain (broadcast mode) or LA (agreement mode), never both.
type layer interface {
	OnReceive(data []byte)
	Tick()
}

// Driver ties the transport, the active layer, and the output log
// together and runs the event loop.
type Driver struct {
	self uint64
	tr   transport.Transport
	log  *outlog.Log

	active layer

	// Agreement-mode slot-ordering buffer: decide() may fire out of
	// slot order, but the log is only ever written in order.
	nextSlotToEmit   uint64
	pendingDecisions map[uint64]intset.Set
}

// NewBroadcast builds a Driver running FIFO Broadcast: it originates
// cfg.M messages immediately, then relays/delivers forever.
func NewBroadcast(self uint64, roster hostfile.Roster, tr transport.Transport, out *outlog.Log, cfg runconfig.BroadcastConfig) *Driver {
	d := &Driver{self: self, tr: tr, log: out}
	fb := fifo.New(self, roster, tr, d.onFBDeliver)
	d.active = fb

	for i := 1; i <= cfg.M; i++ {
		seq := fb.Broadcast(strconv.Itoa(i))
		if err := d.log.WriteLine(fmt.Sprintf("b %d", seq)); err != nil {
			log.Printf("[DRIVER] -> write failed: %v", err)
		}
	}
	if err := d.log.Flush(); err != nil {
		log.Printf("[DRIVER] -> flush failed: %v", err)
	}
	return d
}

// NewAgreement builds a Driver running multi-shot Lattice Agreement: it
// proposes every slot in cfg.Proposals immediately, then drives
// acceptor/proposer traffic forever, writing each slot's decided set to
// the log in strict slot order.
func NewAgreement(self uint64, roster hostfile.Roster, tr transport.Transport, out *outlog.Log, cfg runconfig.AgreementConfig) *Driver {
	d := &Driver{
		self:             self,
		tr:               tr,
		log:              out,
		pendingDecisions: make(map[uint64]intset.Set),
	}
	la := lattice.New(self, roster, tr, d.onDecide)
	d.active = la

	for slot, vals := range cfg.Proposals {
		la.Propose(uint64(slot), intset.New(vals...))
	}
	return d
}

// Run drives the event loop until sig delivers a shutdown signal, then
// flushes the output log and returns. The receive loop and the shutdown
// check both run on this one goroutine — Driver has no locking because
// nothing else ever touches its state.
func (d *Driver) Run(sig <-chan os.Signal) {
	for {
		select {
		case s := <-sig:
			log.Printf("[DRIVER] -> received %v, flushing and exiting", s)
			if err := d.log.Flush(); err != nil {
				log.Printf("[DRIVER] -> flush on shutdown failed: %v", err)
			}
			return
		default:
		}

		data, _, ok, err := d.tr.Recv(RecvTimeout)
		if err != nil {
			log.Printf("[DRIVER] -> recv error: %v", err)
		} else if ok {
			d.active.OnReceive(data)
		}
		d.active.Tick()
	}
}

func (d *Driver) onFBDeliver(originID, originSeq uint64, payload string) {
	if err := d.log.WriteLine(fmt.Sprintf("d %d %s", originID, payload)); err != nil {
		log.Printf("[DRIVER] -> write failed: %v", err)
	}
}

func (d *Driver) onDecide(slot uint64, value intset.Set) {
	d.pendingDecisions[slot] = value
	for {
		v, ok := d.pendingDecisions[d.nextSlotToEmit]
		if !ok {
			return
		}
		delete(d.pendingDecisions, d.nextSlotToEmit)
		if err := d.log.WriteLine(v.Encode()); err != nil {
			log.Printf("[DRIVER] -> write failed: %v", err)
		}
		if err := d.log.Flush(); err != nil {
			log.Printf("[DRIVER] -> flush failed: %v", err)
		}
		d.nextSlotToEmit++
	}
}
