// Package com provides the test-oriented communicator collaborators this
// module ships concretely: a loopback pair for exercising a full stack
// without hardware, and a null sink for benchmarking protocol layers in
// isolation. Concrete hardware communicators (serial, TCP/UDP, IOCP worker
// pools) stay out of this module's scope, per spec.md — they are
// specified only via the layer.Layer contract every communicator must
// honor. Grounded on the original decom library's src/com/com_loopback.h
// and src/com/com_null.h.
package com

import (
	"sync"

	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

type loopbackFrame struct {
	data *msg.Msg
	id   layer.EID
	more bool
}

// Loopback is a communicator that hands everything it sends to its
// registered peer's Receive, and vice versa, so two stacks can be wired
// together end to end for testing. Delivery happens on a dedicated
// goroutine per side, mirroring com_loopback.h's dedicated worker thread
// and condition-variable-guarded send queue.
type Loopback struct {
	*layer.Base

	mu     sync.Mutex
	isOpen bool
	peer   *Loopback

	queue  chan loopbackFrame
	closed chan struct{}
	once   sync.Once
}

// NewLoopback builds one half of a loopback pair. Call Pair to connect two
// instances before opening either.
func NewLoopback(name string) *Loopback {
	l := &Loopback{
		Base:   layer.NewCommunicatorBase(name),
		queue:  make(chan loopbackFrame, 64),
		closed: make(chan struct{}),
	}
	go l.worker()
	return l
}

// Pair connects two loopback communicators so that whatever one sends, the
// other receives — the two-instance topology com_loopback.h describes.
func Pair(a, b *Loopback) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

func (l *Loopback) worker() {
	for {
		select {
		case f := <-l.queue:
			l.mu.Lock()
			peer, open := l.peer, l.isOpen
			l.mu.Unlock()
			if open && peer != nil {
				peer.Receive(f.data, f.id, f.more)
			}
			f.data.Free()
		case <-l.closed:
			return
		}
	}
}

// Open marks the communicator ready to relay traffic, refusing if no peer
// has been paired or no upper layer is registered.
func (l *Loopback) Open(address string, id layer.EID) bool {
	l.mu.Lock()
	ready := l.Upper() != nil && l.peer != nil
	if ready {
		l.isOpen = true
	}
	l.mu.Unlock()
	if !ready {
		return false
	}
	l.Base.Indication(layer.Connected, id)
	return true
}

// Close stops relaying traffic.
func (l *Loopback) Close(id layer.EID) {
	l.mu.Lock()
	l.isOpen = false
	l.mu.Unlock()
}

// Send hands a deep copy of data to the paired loopback's Receive via the
// worker goroutine, immediately acknowledging tx_done — matching
// com_loopback.h's send(), which fires the tx_done indication before the
// worker thread has even dequeued the frame, and queues a full physical
// copy of the message (its txdata_type stores msg by value) rather than a
// reference, so the caller remains free to release data the moment Send
// returns.
func (l *Loopback) Send(data *msg.Msg, id layer.EID, more bool) bool {
	l.Base.Indication(layer.TxDone, id)

	l.mu.Lock()
	open := l.isOpen && l.peer != nil
	l.mu.Unlock()
	if !open {
		return false
	}

	cp := data.Clone()
	select {
	case l.queue <- loopbackFrame{data: cp, id: id, more: more}:
		return true
	default:
		cp.Free()
		return false
	}
}

// Shutdown stops the worker goroutine. Call once a Loopback is no longer
// needed.
func (l *Loopback) Shutdown() {
	l.once.Do(func() { close(l.closed) })
}
