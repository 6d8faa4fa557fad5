// Package debugprot provides thin, test-oriented pass-through protocols:
// a logging tap and a fault injector for exercising a protocol stack's
// error paths without real hardware. Grounded on the original decom
// library's src/prot/prot_debug.h and src/prot/prot_disturb.h. Neither is
// a shipped production protocol; both exist purely to make the rest of
// this module's stacks testable end to end.
package debugprot

import (
	"github.com/mpaland/decom/internal/declog"
	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

// Passthrough forwards every Open/Close/Send/Receive/Indication unchanged,
// logging each call at debug level. Splicing one into a stack under test
// gives visibility into traffic crossing that point without changing
// behavior, matching prot_debug.h's role.
type Passthrough struct {
	*layer.Base
}

// NewPassthrough builds a logging tap on top of lower.
func NewPassthrough(lower layer.Layer, name string) *Passthrough {
	p := &Passthrough{}
	p.Base = layer.NewBase(lower, name, p)
	return p
}

func (p *Passthrough) Open(address string, id layer.EID) bool {
	declog.Debug(p.Name(), "open", "address", address)
	return p.Base.Open(address, id)
}

func (p *Passthrough) Close(id layer.EID) {
	declog.Debug(p.Name(), "close")
	p.Base.Close(id)
}

func (p *Passthrough) Send(data *msg.Msg, id layer.EID, more bool) bool {
	declog.Debug(p.Name(), "send", "bytes", data.Size(), "more", more)
	return p.Base.Send(data, id, more)
}

func (p *Passthrough) Receive(data *msg.Msg, id layer.EID, more bool) {
	declog.Debug(p.Name(), "receive", "bytes", data.Size(), "more", more)
	p.Base.Receive(data, id, more)
}

func (p *Passthrough) Indication(code layer.Status, id layer.EID) {
	declog.Debug(p.Name(), "indication", "status", code.String())
	p.Base.Indication(code, id)
}
