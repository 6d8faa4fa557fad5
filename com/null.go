package com

import (
	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

// Null is a communicator that discards everything it is asked to send and
// never produces incoming data, acknowledging every send with tx_done —
// the Go equivalent of /dev/null for a protocol stack, used to benchmark
// layers above it in isolation. Grounded on src/com/com_null.h.
type Null struct {
	*layer.Base
}

// NewNull builds a null communicator.
func NewNull(name string) *Null {
	return &Null{Base: layer.NewCommunicatorBase(name)}
}

func (n *Null) Open(address string, id layer.EID) bool { return true }

func (n *Null) Close(id layer.EID) {}

// Send discards data without taking ownership of it — the caller that
// built the message remains responsible for freeing it once Send returns,
// the same contract every layer.Layer.Send implementation in this module
// honors.
func (n *Null) Send(data *msg.Msg, id layer.EID, more bool) bool {
	n.Base.Indication(layer.TxDone, id)
	return true
}
