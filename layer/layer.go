// Package layer defines the stack abstraction every protocol, device, and
// communicator in this module is built from: a symmetric five-operation
// contract (Open/Close/Send/Receive/Indication) that lets layers be
// assembled bottom-up into an OSI-style chain and torn down top-down.
// Grounded on the original decom library's layer.h.
package layer

import (
	"sync/atomic"

	"github.com/mpaland/decom/internal/declog"
	"github.com/mpaland/decom/msg"
)

// Status is the closed set of indication codes a lower layer raises toward
// its upper layer, matching layer.h's status_type (minus tx_overrun, which
// spec.md's closed set of eight codes does not carry — see DESIGN.md).
type Status int

const (
	Connected Status = iota
	Disconnected
	TxDone
	TxError
	TxTimeout
	RxError
	RxTimeout
	RxOverrun
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case TxDone:
		return "tx_done"
	case TxError:
		return "tx_error"
	case TxTimeout:
		return "tx_timeout"
	case RxError:
		return "rx_error"
	case RxTimeout:
		return "rx_timeout"
	case RxOverrun:
		return "rx_overrun"
	default:
		return "unknown"
	}
}

// Layer is the contract every node of the stack implements. Data moves
// down the stack via Send, up the stack via Receive, and status codes
// propagate up via Indication. more marks a Send/Receive as one fragment of
// a larger message with further fragments still to come.
//
// Ownership: the caller of Send/Receive owns data and must Free it once
// the call returns, unless the callee explicitly hands the same *msg.Msg
// further up/down the stack (RefCopy or a direct pass-through) rather than
// copying out of it — in that case ownership follows the message, not the
// call stack.
type Layer interface {
	Open(address string, id EID) bool
	Close(id EID)
	Send(data *msg.Msg, id EID, more bool) bool
	Receive(data *msg.Msg, id EID, more bool)
	Indication(code Status, id EID)
	Name() string
}

// Stats holds the optional per-layer counters layer.h compiles in under
// DECOM_STATS. They are always collected here — cheap atomic increments,
// not worth hiding behind a build tag in Go — and read via Base.Stats().
type Stats struct {
	BytesIn, BytesOut     atomic.Int64
	PacketsIn, PacketsOut atomic.Int64
	ErrorsIn, ErrorsOut   atomic.Int64
}

// Base is an embeddable implementation of the pass-through defaults every
// concrete layer builds on: forwarding Send down, Receive up, Indication
// up, and wiring lower_/upper_ back-references at construction time the
// way layer.h's two constructors do.
type Base struct {
	name  string
	lower Layer
	upper Layer
	stats Stats
}

// NewCommunicatorBase builds the base for a layer with no lower neighbor
// (a communicator sits at the bottom of the stack) — mirrors layer's
// single-argument ctor.
func NewCommunicatorBase(name string) *Base {
	return &Base{name: name}
}

// NewBase builds the base for a protocol or device layer, splicing self
// above lower in the stack and notifying lower of its new upper neighbor —
// mirrors layer's two-argument ctor, which splices the new layer in
// dynamically so stacks can be extended at runtime.
//
// self must be the concrete value embedding this Base (typically a pointer
// to the struct under construction, passed after that pointer is allocated
// but before its fields are all set). Without it, lower would register this
// bare *Base as its upper neighbor instead of the wrapping type, and every
// Send/Receive/Indication arriving from below would dispatch to Base's own
// pass-through defaults instead of the wrapper's overrides. Pass nil when
// building a bare *Base with no overrides of its own.
func NewBase(lower Layer, name string, self Layer) *Base {
	b := &Base{name: name, lower: lower}
	if self == nil {
		self = b
	}
	if lb, ok := lower.(interface{ setUpper(Layer) }); ok {
		lb.setUpper(self)
	}
	return b
}

func (b *Base) setUpper(l Layer) { b.upper = l }

// Name returns the layer's diagnostic name, used as the declog module tag.
func (b *Base) Name() string { return b.name }

// Unbind detaches this layer from the stack, splicing lower directly to
// upper — mirrors layer's dtor, which unbinds so a layer can be removed at
// runtime without invalidating its neighbors.
func (b *Base) Unbind() {
	if setter, ok := b.lower.(interface{ setUpper(Layer) }); ok && b.lower != nil {
		setter.setUpper(b.upper)
	}
	if setter, ok := b.upper.(interface{ setLower(Layer) }); ok && b.upper != nil {
		setter.setLower(b.lower)
	}
}

func (b *Base) setLower(l Layer) { b.lower = l }

// Lower returns the layer directly below this one, or nil at the bottom of
// the stack.
func (b *Base) Lower() Layer { return b.lower }

// Upper returns the layer directly above this one, or nil at the top of
// the stack.
func (b *Base) Upper() Layer { return b.upper }

// Open forwards down the stack, matching layer::open()'s default of simply
// delegating to the lower layer.
func (b *Base) Open(address string, id EID) bool {
	if b.lower == nil {
		return false
	}
	return b.lower.Open(address, id)
}

// Close forwards down the stack.
func (b *Base) Close(id EID) {
	if b.lower != nil {
		b.lower.Close(id)
	}
}

// Send forwards data down the stack, counting stats on success and errors
// on failure, matching layer::send()'s bookkeeping.
func (b *Base) Send(data *msg.Msg, id EID, more bool) bool {
	if b.lower == nil {
		return false
	}
	if b.lower.Send(data, id, more) {
		b.stats.BytesOut.Add(int64(data.Size()))
		b.stats.PacketsOut.Add(1)
		return true
	}
	b.stats.ErrorsOut.Add(1)
	return false
}

// Receive forwards data up the stack, counting stats, matching
// layer::receive()'s default.
func (b *Base) Receive(data *msg.Msg, id EID, more bool) {
	b.stats.BytesIn.Add(int64(data.Size()))
	b.stats.PacketsIn.Add(1)
	if b.upper != nil {
		b.upper.Receive(data, id, more)
	}
}

// Indication forwards a status code up the stack, matching
// layer::indication()'s default.
func (b *Base) Indication(code Status, id EID) {
	if b.upper != nil {
		b.upper.Indication(code, id)
	} else {
		declog.Debug(b.name, "indication dropped, no upper layer", "status", code.String())
	}
}

// Stats returns this layer's traffic counters.
func (b *Base) Stats() *Stats { return &b.stats }
