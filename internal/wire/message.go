// Package wire implements the single wire object every layer in this
// runtime speaks: a space-separated ASCII envelope carrying five decimal
// header integers and a raw payload tail.
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the five message shapes that travel over the wire.
// The integer values are part of the wire format, not just Go identity.
type Kind int

const (
	PLAck Kind = iota
	URBMsg
	LAProposal
	LAAck
	LANack
)

func (k Kind) String() string {
	switch k {
	case PLAck:
		return "PL_ACK"
	case URBMsg:
		return "URB_MSG"
	case LAProposal:
		return "LA_PROPOSAL"
	case LAAck:
		return "LA_ACK"
	case LANack:
		return "LA_NACK"
	default:
		return fmt.Sprintf("KIND(%d)", int(k))
	}
}

// Message is the only object that ever crosses the wire. sender_id/seq_no
// are PL-level (last-hop); origin_id/origin_seq are overloaded per layer:
// broadcast originator/sequence for URB and FB, slot/proposal-number for LA.
type Message struct {
	Kind      Kind
	SenderID  uint64
	SeqNo     uint64
	OriginID  uint64
	OriginSeq uint64
	Payload   string
}

// Encode renders a Message in the wire grammar:
//
//	<kind-int> <sender_id> <seq_no> <origin_id> <origin_seq> <payload>
//
// Exactly one space separates the five header integers and precedes the
// payload, even when the payload is empty.
func (m Message) Encode() []byte {
	var b strings.Builder
	b.Grow(32 + len(m.Payload))
	b.WriteString(strconv.Itoa(int(m.Kind)))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(m.SenderID, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(m.SeqNo, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(m.OriginID, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(m.OriginSeq, 10))
	b.WriteByte(' ')
	b.WriteString(m.Payload)
	return []byte(b.String())
}

// Decode parses a datagram produced by Encode. Any malformed header
// (missing field, non-numeric field, unknown kind) is reported as an
// error; callers on the receive path drop the datagram and move on
// rather than propagate the failure.
func Decode(data []byte) (Message, error) {
	rest := string(data)
	var nums [5]uint64
	for i := 0; i < 5; i++ {
		idx := strings.IndexByte(rest, ' ')
		if idx < 0 {
			return Message{}, fmt.Errorf("wire: truncated header at field %d", i)
		}
		tok := rest[:idx]
		rest = rest[idx+1:]
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return Message{}, fmt.Errorf("wire: non-numeric header field %d: %w", i, err)
		}
		nums[i] = v
	}
	if nums[0] > uint64(LANack) {
		return Message{}, fmt.Errorf("wire: unknown kind %d", nums[0])
	}
	return Message{
		Kind:      Kind(nums[0]),
		SenderID:  nums[1],
		SeqNo:     nums[2],
		OriginID:  nums[3],
		OriginSeq: nums[4],
		Payload:   rest,
	}, nil
}
