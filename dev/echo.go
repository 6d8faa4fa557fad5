package dev

import (
	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

// Echo is a device that sends every message it receives straight back
// down the stack unchanged, used by this module's own end-to-end tests to
// exercise a full stack round trip without a second application. Grounded
// on src/dev/dev_echo.h.
type Echo struct {
	*layer.Base
}

// NewEcho builds an echo device on top of lower.
func NewEcho(lower layer.Layer, name string) *Echo {
	e := &Echo{}
	e.Base = layer.NewBase(lower, name, e)
	return e
}

func (e *Echo) Receive(data *msg.Msg, id layer.EID, more bool) {
	e.Base.Send(data, id, more)
	data.Free()
}
