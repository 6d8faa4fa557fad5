// Package dev provides the thin, test-oriented application devices this
// module ships concretely: a generic blocking read/write facade and an
// echo device used in end-to-end tests. Other application devices spec.md
// names (an SNTP client, an Intel-HEX ingester) stay out of scope, per
// spec.md — they are specified only via the layer.Layer contract they
// would consume. Grounded on the original decom library's
// src/dev/dev_skeleton.h, src/dev/dev_generic.h, and src/dev/dev_echo.h.
package dev

import (
	"time"

	"github.com/mpaland/decom/event"
	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

// Generic is the top-of-stack device spec.md's "collaborator
// expectations" describe: an application-facing Write/Read pair built on
// top of the layer.Layer contract, with Read able to block up to a
// timeout for the next inbound message. Grounded on dev_generic.h /
// dev_skeleton.h.
type Generic struct {
	*layer.Base

	inbox    chan *msg.Msg
	inboxRdy *event.Event
	lastCode layer.Status
}

// NewGeneric builds a generic device on top of lower.
func NewGeneric(lower layer.Layer, name string, inboxSize int) *Generic {
	g := &Generic{
		inbox:    make(chan *msg.Msg, inboxSize),
		inboxRdy: event.New(),
	}
	g.Base = layer.NewBase(lower, name, g)
	return g
}

// Write sends payload down the stack under id, blocking only long enough
// for the lower layers' synchronous Send calls to return (never for the
// full transport-layer round trip) — matching dev_generic.h's write(),
// which is a thin wrapper over layer::send().
func (g *Generic) Write(pool *msg.Pool, payload []byte, id layer.EID) bool {
	m := msg.NewFromBytes(pool, payload)
	defer m.Free()
	return g.Base.Send(m, id, false)
}

// Receive is called by the lower layer with an inbound, reassembled
// message; Generic queues it for Read instead of doing anything with it
// itself, matching dev_generic.h's role as a thin application-facing
// shim.
func (g *Generic) Receive(data *msg.Msg, id layer.EID, more bool) {
	select {
	case g.inbox <- data:
	default:
		data.Free() // inbox full, drop rather than block the stack
	}
}

// Read blocks up to timeout for the next inbound message, returning
// (msg, true) if one arrived in time. The caller owns the returned
// message and must Free it.
func (g *Generic) Read(timeout time.Duration) (*msg.Msg, bool) {
	select {
	case m := <-g.inbox:
		return m, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Indication records the most recent status code from below, for a caller
// polling LastStatus, and forwards it up per the default contract.
func (g *Generic) Indication(code layer.Status, id layer.EID) {
	g.lastCode = code
	g.Base.Indication(code, id)
}

// LastStatus returns the most recent status code this device observed.
func (g *Generic) LastStatus() layer.Status { return g.lastCode }
