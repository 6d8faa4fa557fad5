package debugprot

import (
	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

// DropPolicy decides whether a frame crossing the Disturb layer should be
// dropped. It is called once per Send and once per Receive; returning true
// discards that frame instead of forwarding it.
type DropPolicy func(data *msg.Msg) bool

// Disturb sits inline in a stack and deliberately misbehaves according to
// its policies, so a protocol's timeout and error-recovery paths can be
// exercised deterministically in tests instead of relying on flaky real
// hardware. Grounded on src/prot/prot_disturb.h.
type Disturb struct {
	*layer.Base
	DropSend    DropPolicy
	DropReceive DropPolicy
	Corrupt     func(data *msg.Msg) // mutates data in place before forwarding
}

// NewDisturb builds a fault injector on top of lower. Both drop policies
// default to never dropping; set them to inject specific failures.
func NewDisturb(lower layer.Layer, name string) *Disturb {
	d := &Disturb{}
	d.Base = layer.NewBase(lower, name, d)
	return d
}

func (d *Disturb) Send(data *msg.Msg, id layer.EID, more bool) bool {
	if d.DropSend != nil && d.DropSend(data) {
		return true // pretend it was accepted; the far end never sees it
	}
	if d.Corrupt != nil {
		d.Corrupt(data)
	}
	return d.Base.Send(data, id, more)
}

func (d *Disturb) Receive(data *msg.Msg, id layer.EID, more bool) {
	if d.DropReceive != nil && d.DropReceive(data) {
		return
	}
	d.Base.Receive(data, id, more)
}
