package com

import (
	"testing"
	"time"

	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

type recvUpper struct {
	*layer.Base
	got chan []byte
}

func wireRecvUpper(lower layer.Layer) *recvUpper {
	u := &recvUpper{got: make(chan []byte, 8)}
	u.Base = layer.NewBase(lower, "recvupper", u)
	return u
}

func (u *recvUpper) Open(address string, id layer.EID) bool { return true }
func (u *recvUpper) Close(id layer.EID)                      {}
func (u *recvUpper) Send(data *msg.Msg, id layer.EID, more bool) bool {
	return true
}
func (u *recvUpper) Receive(data *msg.Msg, id layer.EID, more bool) {
	u.got <- data.Bytes()
	data.Free()
}
func (u *recvUpper) Indication(code layer.Status, id layer.EID) {}

func TestLoopbackRelaysBetweenPeers(t *testing.T) {
	pool := msg.NewPool(64, 32)
	a := NewLoopback("a")
	b := NewLoopback("b")
	Pair(a, b)
	defer a.Shutdown()
	defer b.Shutdown()

	upA := wireRecvUpper(a)
	upB := wireRecvUpper(b)
	_ = upA

	if !a.Open("", layer.Any) {
		t.Fatal("Open on a fully paired loopback with an upper layer should succeed")
	}
	if !b.Open("", layer.Any) {
		t.Fatal("Open on b should succeed")
	}

	m := msg.NewFromBytes(pool, []byte{1, 2, 3})
	if !a.Send(m, layer.Any, false) {
		t.Fatal("Send from a should succeed once both sides are open")
	}
	m.Free() // caller frees immediately, per this module's ownership contract

	select {
	case got := <-upB.got:
		want := []byte{1, 2, 3}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("b received % X, want % X", got, want)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("b never received the relayed frame")
	}
}

func TestLoopbackOpenRefusedWithoutPeer(t *testing.T) {
	a := NewLoopback("lonely")
	defer a.Shutdown()
	wireRecvUpper(a)

	if a.Open("", layer.Any) {
		t.Fatal("Open on an unpaired loopback should fail")
	}
}

func TestLoopbackOpenRefusedWithoutUpper(t *testing.T) {
	a := NewLoopback("a")
	b := NewLoopback("b")
	Pair(a, b)
	defer a.Shutdown()
	defer b.Shutdown()

	if a.Open("", layer.Any) {
		t.Fatal("Open on a loopback with no upper layer registered should fail")
	}
}
