package layer

import (
	"testing"

	"github.com/mpaland/decom/msg"
)

// recorder is a minimal Layer used to observe what Base forwards.
type recorder struct {
	*Base
	opened     bool
	closed     bool
	sent       *msg.Msg
	received   *msg.Msg
	indication Status
}

func newRecorder(lower Layer, name string) *recorder {
	r := &recorder{}
	r.Base = NewBase(lower, name, r)
	return r
}

func (r *recorder) Open(address string, id EID) bool { r.opened = true; return true }
func (r *recorder) Close(id EID)                      { r.closed = true }
func (r *recorder) Send(data *msg.Msg, id EID, more bool) bool {
	r.sent = data
	return true
}
func (r *recorder) Receive(data *msg.Msg, id EID, more bool) { r.received = data }
func (r *recorder) Indication(code Status, id EID)           { r.indication = code }

func TestBaseWiresLowerAndUpper(t *testing.T) {
	bottom := newRecorder(nil, "bottom")
	top := NewBase(bottom, "top", nil)

	if bottom.Upper() != top {
		t.Fatal("constructing a layer on top of bottom should register it as bottom's upper")
	}
	if top.Lower() != bottom {
		t.Fatal("NewBase should record the lower layer passed to it")
	}
}

func TestBaseSendForwardsDown(t *testing.T) {
	pool := msg.NewPool(64, 4)
	bottom := newRecorder(nil, "bottom")
	top := NewBase(bottom, "top", nil)

	m := msg.NewFromBytes(pool, []byte{1, 2, 3})
	defer m.Free()

	if !top.Send(m, Any, false) {
		t.Fatal("Send through Base should forward to the lower layer and report success")
	}
	if bottom.sent != m {
		t.Fatal("bottom layer should have received the exact message pointer sent")
	}
	if top.Stats().PacketsOut.Load() != 1 {
		t.Fatalf("PacketsOut = %d, want 1", top.Stats().PacketsOut.Load())
	}
}

func TestBaseReceiveForwardsUp(t *testing.T) {
	pool := msg.NewPool(64, 4)
	bottomBase := NewCommunicatorBase("bottom")
	top := newRecorder(nil, "top")
	bottomBase.setUpper(top)

	m := msg.NewFromBytes(pool, []byte{9})
	defer m.Free()

	bottomBase.Receive(m, Any, false)
	if top.received != m {
		t.Fatal("Base.Receive should forward the message to the upper layer")
	}
	if bottomBase.Stats().PacketsIn.Load() != 1 {
		t.Fatalf("PacketsIn = %d, want 1", bottomBase.Stats().PacketsIn.Load())
	}
}

func TestBaseIndicationForwardsUpOrDrops(t *testing.T) {
	bottomBase := NewCommunicatorBase("bottom")
	top := newRecorder(nil, "top")
	bottomBase.setUpper(top)

	bottomBase.Indication(Connected, Any)
	if top.indication != Connected {
		t.Fatalf("indication = %v, want Connected", top.indication)
	}

	// No upper layer: should not panic, just log-and-drop.
	orphan := NewCommunicatorBase("orphan")
	orphan.Indication(TxError, Any)
}

func TestUnbindSplicesAroundLayer(t *testing.T) {
	bottom := newRecorder(nil, "bottom")
	middle := newRecorder(bottom, "middle")
	top := newRecorder(middle, "top")

	middle.Unbind()

	if bottom.Upper() != top {
		t.Fatal("Unbind should splice bottom's upper directly to top")
	}
	if top.Lower() != bottom {
		t.Fatal("Unbind should splice top's lower directly to bottom")
	}
}

func TestEIDAnyAndOrdering(t *testing.T) {
	if !Any.IsAny() {
		t.Fatal("zero-value EID should report IsAny")
	}
	a := NewPortEID(1)
	b := NewPortEID(2)
	if !a.Less(b) {
		t.Fatal("EID with lower port should sort first")
	}
	if a.IsAny() {
		t.Fatal("a non-zero port EID should not be Any")
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		Connected:    "connected",
		Disconnected: "disconnected",
		TxDone:       "tx_done",
		TxError:      "tx_error",
		TxTimeout:    "tx_timeout",
		RxError:      "rx_error",
		RxTimeout:    "rx_timeout",
		RxOverrun:    "rx_overrun",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", code, got, want)
		}
	}
}
