package isotp

import (
	"sync"
	"time"

	"github.com/mpaland/decom/event"
	"github.com/mpaland/decom/internal/declog"
	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
	"github.com/mpaland/decom/timer"
)

type txPhase int

const (
	txIdle txPhase = iota
	txWaitFC
	txSendingCF
)

type rxPhase int

const (
	rxIdle rxPhase = iota
	rxReceiving
)

// Stack is the ISO 15765-2 sender/receiver pair. It sits as a protocol
// layer between a device/application above and a CAN communicator below,
// segmenting outgoing payloads into SF/FF/CF frames and reassembling
// incoming ones, exactly as prot_iso15765.h does for the original decom
// library.
//
// Stack's Send/Receive/Indication are not safe to call concurrently with
// each other for the same instance: per spec.md's concurrency model, the
// caller (typically one dedicated RX goroutine per communicator, one TX
// path per producer) is responsible for that serialization. The internal
// mutex guards the sender and receiver phases, the pending transmit data
// and the reassembly buffer, which the timer callbacks, the blocking
// CF-pacing loop and a concurrent Indication call all touch; it does not
// serialize whole Send/Receive calls.
type Stack struct {
	*layer.Base

	cfg  Config
	addr Address
	pool *msg.Pool

	mu sync.Mutex

	txPhase    txPhase
	txPending  []byte
	txSN       int
	txBS       int
	txSTmin    int
	txWaitSeen int
	txID       layer.EID
	txFCTimer  *timer.Timer
	txDoneEv   *event.Event

	rxPhase      rxPhase
	rxBuf        *msg.Msg
	rxExpectLen  int
	rxSN         int
	rxSinceFC    int
	rxTimer      *timer.Timer

	lastErr error
}

// NewStack builds an ISO-TP protocol layer on top of lower, using pool for
// its internal buffers.
func NewStack(lower layer.Layer, cfg Config, addr Address, pool *msg.Pool, name string) *Stack {
	s := &Stack{
		cfg:       cfg,
		addr:      addr,
		pool:      pool,
		txFCTimer: timer.New(),
		txDoneEv:  event.New(),
		rxTimer:   timer.New(),
	}
	s.Base = layer.NewBase(lower, name, s)
	return s
}

// LastError returns the most recent protocol-level error this stack hit,
// for diagnostics. The Layer interface itself never carries it.
func (s *Stack) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Stack) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	declog.Warn(s.Name(), err.Error())
}

// Open refuses to open if no upper layer is registered — the same safety
// gate against dangling stacks that layer.h's protocol ctor enforces —
// then resets both state machines and opens the lower layer.
func (s *Stack) Open(address string, id layer.EID) bool {
	if s.Upper() == nil {
		return false
	}
	s.mu.Lock()
	s.txPhase = txIdle
	s.rxPhase = rxIdle
	s.mu.Unlock()
	return s.Base.Open(address, id)
}

// Close tears the stack down top-down: stop this layer's timers first,
// then close the lower layer, mirroring prot_iso15765.h's close().
func (s *Stack) Close(id layer.EID) {
	s.txFCTimer.Stop()
	s.rxTimer.Stop()
	s.mu.Lock()
	s.txPhase = txIdle
	s.rxPhase = rxIdle
	if s.rxBuf != nil {
		s.rxBuf.Free()
		s.rxBuf = nil
	}
	s.mu.Unlock()
	s.Base.Close(id)
}

// Send segments data into SF or FF+CF* frames. For a payload that fits a
// Single Frame, Send completes synchronously. For a longer payload, Send
// transmits the First Frame and returns — the Consecutive Frames are
// pumped by the blocking CF loop once a CTS flow control frame arrives
// (see handleFlowControl), matching the original's non-blocking send()
// entry point plus its one deliberate blocking point inside send_CF.
func (s *Stack) Send(data *msg.Msg, id layer.EID, more bool) bool {
	payload := data.Bytes()

	if len(payload) <= maxSFPayload(s.addr) {
		frame := msg.NewFromBytes(s.pool, encodeSF(s.addr, payload, s.cfg.UseZeroPadding))
		defer frame.Free()
		return s.Base.Send(frame, id, more)
	}

	if len(payload) > s.cfg.MaxPayload {
		s.setErr(FrameTooLongError{base: newError("payload exceeds configured maximum")})
		return false
	}

	s.mu.Lock()
	if s.txPhase != txIdle {
		s.mu.Unlock()
		declog.Warn(s.Name(), "send refused, transmission already in progress")
		return false
	}
	firstChunk := payload[:maxFFFirstPayload(s.addr)]
	s.txPending = payload[maxFFFirstPayload(s.addr):]
	s.txSN = 1
	s.txID = id
	s.txPhase = txWaitFC
	s.txWaitSeen = 0
	s.mu.Unlock()

	frame := msg.NewFromBytes(s.pool, encodeFF(s.addr, len(payload), firstChunk, s.cfg.UseZeroPadding))
	defer frame.Free()
	if !s.Base.Send(frame, id, more) {
		s.mu.Lock()
		s.txPhase = txIdle
		s.mu.Unlock()
		return false
	}

	s.txFCTimer.Start(s.cfg.TimeoutNBs, false, func() {
		s.mu.Lock()
		aborted := s.txPhase == txWaitFC
		s.txPhase = txIdle
		s.mu.Unlock()
		if aborted {
			s.setErr(FlowControlTimeoutError{base: newError("")})
			s.Base.Indication(layer.TxTimeout, id)
		}
	})
	return true
}

// Receive parses one incoming CAN-TP frame and drives whichever state
// machine it belongs to.
func (s *Stack) Receive(data *msg.Msg, id layer.EID, more bool) {
	raw := data.Bytes()
	p, ok, discard := decodePDU(s.addr, raw)
	if !ok {
		if discard {
			return // addressed to a different extension byte, not our concern
		}
		s.setErr(Error{"malformed frame"})
		s.Base.Indication(layer.RxError, id)
		return
	}

	switch p.kind {
	case kindSingle:
		s.deliverAndReset(p.data, id)
	case kindFirst:
		s.handleFirstFrame(p, id)
	case kindConsecutive:
		s.handleConsecutiveFrame(p, id)
	case kindFlowControl:
		s.handleFlowControl(p, id)
	}
}

func (s *Stack) deliverAndReset(data []byte, id layer.EID) {
	s.mu.Lock()
	if s.rxPhase == rxReceiving {
		declog.Warn(s.Name(), "reception interrupted by single frame")
		s.rxTimer.Stop()
		if s.rxBuf != nil {
			s.rxBuf.Free()
			s.rxBuf = nil
		}
		s.rxPhase = rxIdle
	}
	s.mu.Unlock()

	out := msg.NewFromBytes(s.pool, data)
	s.Base.Receive(out, id, false)
}

func (s *Stack) handleFirstFrame(p pdu, id layer.EID) {
	if p.length > s.cfg.MaxPayload {
		s.setErr(FrameTooLongError{base: newError("first frame declares a length beyond the configured maximum")})
		s.Base.Indication(layer.RxError, id)
		return
	}

	s.mu.Lock()
	if s.rxPhase == rxReceiving {
		declog.Warn(s.Name(), "reception interrupted by first frame")
		if s.rxBuf != nil {
			s.rxBuf.Free()
		}
	}
	s.rxBuf = msg.New(s.pool)
	s.rxBuf.Put(p.data)
	s.rxExpectLen = p.length
	s.rxSN = 1
	s.rxSinceFC = 0
	s.rxPhase = rxReceiving
	s.mu.Unlock()

	s.sendFC(fsContinueToSend, id)
	s.rxTimer.Start(s.cfg.TimeoutNCr, false, func() {
		s.mu.Lock()
		timedOut := s.rxPhase == rxReceiving
		if timedOut {
			s.rxPhase = rxIdle
			if s.rxBuf != nil {
				s.rxBuf.Free()
				s.rxBuf = nil
			}
		}
		s.mu.Unlock()
		if timedOut {
			s.setErr(ConsecutiveFrameTimeoutError{base: newError("")})
			s.Base.Indication(layer.RxTimeout, id)
		}
	})
}

func (s *Stack) handleConsecutiveFrame(p pdu, id layer.EID) {
	s.mu.Lock()
	if s.rxPhase != rxReceiving {
		s.mu.Unlock()
		declog.Warn(s.Name(), "unexpected consecutive frame, no reassembly in progress")
		s.setErr(Error{"consecutive frame received with no reassembly in progress"})
		s.Base.Indication(layer.RxError, id)
		return
	}
	expectedSN := s.rxSN % 16
	if p.sn != expectedSN {
		s.rxPhase = rxIdle
		buf := s.rxBuf
		s.rxBuf = nil
		s.mu.Unlock()
		s.rxTimer.Stop()
		if buf != nil {
			buf.Free()
		}
		s.setErr(WrongSequenceNumberError{base: newError("")})
		s.Base.Indication(layer.RxError, id)
		return
	}

	overrun := false
	for _, b := range p.data {
		if s.rxBuf.Size() >= s.rxExpectLen {
			break
		}
		if !s.rxBuf.PushBack(b) {
			overrun = true
			break
		}
	}
	s.rxSN++
	s.rxSinceFC++
	complete := s.rxBuf.Size() >= s.rxExpectLen
	needFC := !complete && s.cfg.BlockSize > 0 && s.rxSinceFC >= s.cfg.BlockSize
	if needFC {
		s.rxSinceFC = 0
	}
	var delivered *msg.Msg
	if complete {
		delivered = s.rxBuf
		s.rxBuf = nil
		s.rxPhase = rxIdle
	}
	s.mu.Unlock()

	if overrun {
		s.setErr(Error{"reassembly buffer exhausted, remainder of frame dropped"})
		s.Base.Indication(layer.RxOverrun, id)
	}

	if complete {
		s.rxTimer.Stop()
		s.Base.Receive(delivered, id, false)
		return
	}

	s.rxTimer.Start(s.cfg.TimeoutNCr, false, func() {
		s.mu.Lock()
		timedOut := s.rxPhase == rxReceiving
		if timedOut {
			s.rxPhase = rxIdle
			if s.rxBuf != nil {
				s.rxBuf.Free()
				s.rxBuf = nil
			}
		}
		s.mu.Unlock()
		if timedOut {
			s.setErr(ConsecutiveFrameTimeoutError{base: newError("")})
			s.Base.Indication(layer.RxTimeout, id)
		}
	})
	if needFC {
		s.sendFC(fsContinueToSend, id)
	}
}

func (s *Stack) sendFC(fs flowStatus, id layer.EID) {
	frame := msg.NewFromBytes(s.pool, encodeFC(s.addr, fs, s.cfg.BlockSize, s.cfg.STmin, s.cfg.UseZeroPadding))
	defer frame.Free()
	s.Base.Send(frame, id, false)
}

func (s *Stack) handleFlowControl(p pdu, id layer.EID) {
	s.mu.Lock()
	if s.txPhase != txWaitFC {
		s.mu.Unlock()
		declog.Warn(s.Name(), "unexpected flow control frame received")
		return
	}
	s.txFCTimer.Stop()

	switch p.fs {
	case fsOverflow:
		s.txPhase = txIdle
		s.mu.Unlock()
		s.setErr(OverflowError{base: newError("")})
		s.Base.Indication(layer.TxError, id)
		return

	case fsWait:
		s.txWaitSeen++
		exceeded := s.txWaitSeen > s.cfg.MaxWaitFrames
		s.mu.Unlock()
		if exceeded {
			s.mu.Lock()
			s.txPhase = txIdle
			s.mu.Unlock()
			s.setErr(MaximumWaitFrameReachedError{base: newError("")})
			s.Base.Indication(layer.TxError, id)
			return
		}
		s.txFCTimer.Start(s.cfg.TimeoutNBs, false, func() {
			s.mu.Lock()
			aborted := s.txPhase == txWaitFC
			s.txPhase = txIdle
			s.mu.Unlock()
			if aborted {
				s.setErr(FlowControlTimeoutError{base: newError("")})
				s.Base.Indication(layer.TxTimeout, id)
			}
		})
		return

	case fsContinueToSend:
		s.txWaitSeen = 0
		s.txBS = p.bs
		s.txSTmin = p.stMin
		s.txPhase = txSendingCF
		s.mu.Unlock()
		s.sendConsecutiveFrames(id)
	}
}

// sendConsecutiveFrames is the one deliberate blocking point in this
// package: it pumps Consecutive Frames, waiting up to N_As after each one
// for the lower layer to report tx_done before sending the next, and
// pausing for another flow control frame every BlockSize frames.
// Grounded on prot_iso15765.h's send_CF(), which blocks on
// tx_ev_.wait_for(N_As) the same way.
func (s *Stack) sendConsecutiveFrames(id layer.EID) {
	sentThisBlock := 0
	for {
		s.mu.Lock()
		remaining := s.txPending
		sn := s.txSN
		s.mu.Unlock()

		if len(remaining) == 0 {
			s.mu.Lock()
			s.txPhase = txIdle
			s.mu.Unlock()
			s.Base.Indication(layer.TxDone, id)
			return
		}

		n := maxCFPayload(s.addr)
		if n > len(remaining) {
			n = len(remaining)
		}
		chunk := remaining[:n]

		s.txDoneEv.Reset()
		frame := msg.NewFromBytes(s.pool, encodeCF(s.addr, sn, chunk, s.cfg.UseZeroPadding))
		ok := s.Base.Send(frame, id, len(remaining) > n)
		frame.Free()
		if !ok {
			s.abortTx(id, layer.TxError)
			return
		}
		if !s.txDoneEv.WaitFor(s.cfg.TimeoutNAs) {
			s.setErr(Error{"timed out waiting for tx_done on consecutive frame"})
			s.abortTx(id, layer.TxTimeout)
			return
		}

		s.mu.Lock()
		s.txPending = remaining[n:]
		s.txSN = (sn + 1) % 16
		s.mu.Unlock()
		sentThisBlock++

		if s.txBS > 0 && sentThisBlock >= s.txBS && len(remaining) > n {
			s.mu.Lock()
			if len(s.txPending) > 0 {
				s.txPhase = txWaitFC
			}
			s.mu.Unlock()
			s.txFCTimer.Start(s.cfg.TimeoutNBs, false, func() {
				s.mu.Lock()
				aborted := s.txPhase == txWaitFC
				s.txPhase = txIdle
				s.mu.Unlock()
				if aborted {
					s.setErr(FlowControlTimeoutError{base: newError("")})
					s.Base.Indication(layer.TxTimeout, id)
				}
			})
			return
		}

		if s.txSTmin > 0 {
			time.Sleep(time.Duration(s.txSTmin) * time.Millisecond)
		}
	}
}

func (s *Stack) abortTx(id layer.EID, code layer.Status) {
	s.mu.Lock()
	s.txPhase = txIdle
	s.txPending = nil
	s.mu.Unlock()
	s.Base.Indication(code, id)
}

// Indication consumes tx_done notifications raised while this stack is
// actively pumping Consecutive Frames (see sendConsecutiveFrames) and
// forwards everything else up, matching prot_iso15765.h's indication()
// override which does the same for tx_done alone.
func (s *Stack) Indication(code layer.Status, id layer.EID) {
	s.mu.Lock()
	pumping := s.txPhase == txSendingCF
	s.mu.Unlock()

	if code == layer.TxDone && pumping {
		s.txDoneEv.Set()
		return
	}
	s.Base.Indication(code, id)
}
