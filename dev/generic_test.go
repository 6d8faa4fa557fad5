package dev

import (
	"testing"
	"time"

	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

type captureComm struct {
	*layer.Base
	sent []byte
}

func newCaptureComm() *captureComm {
	return &captureComm{Base: layer.NewCommunicatorBase("comm")}
}

func (c *captureComm) Open(address string, id layer.EID) bool { return true }
func (c *captureComm) Close(id layer.EID)                      {}
func (c *captureComm) Send(data *msg.Msg, id layer.EID, more bool) bool {
	c.sent = data.Bytes()
	c.Base.Indication(layer.TxDone, id)
	return true
}

func TestGenericWriteSendsDownstream(t *testing.T) {
	pool := msg.NewPool(64, 8)
	comm := newCaptureComm()
	g := NewGeneric(comm, "gen", 4)

	if !g.Write(pool, []byte{1, 2, 3}, layer.Any) {
		t.Fatal("Write should succeed")
	}
	want := []byte{1, 2, 3}
	for i := range want {
		if comm.sent[i] != want[i] {
			t.Fatalf("comm.sent = % X, want % X", comm.sent, want)
		}
	}
}

func TestGenericReadReceivesQueuedMessage(t *testing.T) {
	pool := msg.NewPool(64, 8)
	comm := newCaptureComm()
	g := NewGeneric(comm, "gen", 4)

	m := msg.NewFromBytes(pool, []byte{9, 8, 7})
	g.Receive(m, layer.Any, false)

	got, ok := g.Read(time.Second)
	if !ok {
		t.Fatal("Read should return the queued message")
	}
	defer got.Free()
	want := []byte{9, 8, 7}
	gotBytes := got.Bytes()
	for i := range want {
		if gotBytes[i] != want[i] {
			t.Fatalf("Read() = % X, want % X", gotBytes, want)
		}
	}
}

func TestGenericReadTimesOutWhenEmpty(t *testing.T) {
	comm := newCaptureComm()
	g := NewGeneric(comm, "gen", 4)

	_, ok := g.Read(20 * time.Millisecond)
	if ok {
		t.Fatal("Read on an empty inbox should time out")
	}
}

func TestGenericTracksLastStatus(t *testing.T) {
	comm := newCaptureComm()
	g := NewGeneric(comm, "gen", 4)

	g.Indication(layer.RxOverrun, layer.Any)
	if g.LastStatus() != layer.RxOverrun {
		t.Fatalf("LastStatus() = %v, want RxOverrun", g.LastStatus())
	}
}
