// Package slip implements RFC 1055 byte-stuffed framing over a byte
// stream. Grounded on the original decom library's src/prot/prot_slip.h.
package slip

import (
	"github.com/mpaland/decom/internal/declog"
	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

// Special SLIP byte codes, per RFC 1055.
const (
	End    byte = 0xC0
	Esc    byte = 0xDB
	EscEnd byte = 0xDC
	EscEsc byte = 0xDD
)

type rxState int

const (
	rxIdle rxState = iota
	rxData
	rxEsc
)

// Stack is a SLIP framer/deframer sitting between a byte-stream
// communicator (serial line, TCP socket) and whatever protocol or device
// sits above it.
type Stack struct {
	*layer.Base

	pool *msg.Pool

	rxState rxState
	rxMsg   *msg.Msg

	txMsg *msg.Msg
}

// NewStack builds a SLIP layer on top of lower.
func NewStack(lower layer.Layer, pool *msg.Pool, name string) *Stack {
	s := &Stack{pool: pool}
	s.Base = layer.NewBase(lower, name, s)
	return s
}

// Open resets the framer state and opens the lower layer. Refuses if no
// upper layer is registered, per the safety gate every protocol enforces.
func (s *Stack) Open(address string, id layer.EID) bool {
	if s.Upper() == nil {
		return false
	}
	ok := s.Base.Open(address, id)
	s.rxState = rxIdle
	return ok
}

// Close discards any buffered partial frame and closes the lower layer.
func (s *Stack) Close(id layer.EID) {
	if s.rxMsg != nil {
		s.rxMsg.Free()
		s.rxMsg = nil
	}
	if s.txMsg != nil {
		s.txMsg.Free()
		s.txMsg = nil
	}
	s.rxState = rxIdle
	s.Base.Close(id)
}

// Send byte-stuffs packet and forwards it down as END DATA END. When more
// is true, the fragment is accumulated but not flushed yet — the caller
// signals it is done by sending its final fragment with more=false — and
// this layer synthesizes a tx_done indication for the intermediate
// fragments, matching prot_slip.h's send() behavior of only forwarding to
// the lower layer once the whole packet has been stuffed.
func (s *Stack) Send(packet *msg.Msg, id layer.EID, more bool) bool {
	if s.txMsg == nil {
		s.txMsg = msg.New(s.pool)
		s.txMsg.Clear()
	}
	if s.txMsg.Empty() {
		// flush any line noise accumulated at the receiver before this frame
		s.txMsg.PushBack(End)
	}

	packet.ForEach(func(b byte) {
		switch b {
		case End:
			s.txMsg.PushBack(Esc)
			s.txMsg.PushBack(EscEnd)
		case Esc:
			s.txMsg.PushBack(Esc)
			s.txMsg.PushBack(EscEsc)
		default:
			s.txMsg.PushBack(b)
		}
	})

	if !more {
		s.txMsg.PushBack(End)
		res := s.Base.Send(s.txMsg, id, false)
		s.txMsg.Clear()
		return res
	}

	s.Base.Indication(layer.TxDone, id)
	return true
}

// Receive scans an incoming byte stream, delivering each complete,
// non-empty frame to the upper layer as it is found. A stream fragment can
// contain zero, one, or several frames; malformed escape sequences discard
// the in-progress frame and resync on the next END, matching
// prot_slip.h's per-byte state machine.
func (s *Stack) Receive(data *msg.Msg, id layer.EID, more bool) {
	if s.rxMsg == nil {
		s.rxMsg = msg.New(s.pool)
		s.rxMsg.Clear()
	}

	data.ForEach(func(b byte) {
		switch s.rxState {
		case rxIdle:
			if b == End {
				s.rxState = rxData
			}

		case rxData:
			switch b {
			case Esc:
				s.rxState = rxEsc
			case End:
				if !s.rxMsg.Empty() {
					out := s.rxMsg.Clone()
					s.Base.Receive(out, id, false)
					s.rxMsg.Clear()
				}
				s.rxState = rxIdle
			default:
				s.rxMsg.PushBack(b)
			}

		case rxEsc:
			switch b {
			case EscEnd:
				s.rxMsg.PushBack(End)
				s.rxState = rxData
			case EscEsc:
				s.rxMsg.PushBack(Esc)
				s.rxState = rxData
			default:
				declog.Error(s.Name(), "unexpected byte after ESC, discarding frame")
				s.rxMsg.Clear()
				s.rxState = rxIdle
			}
		}
	})
}
