package isotp

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/mpaland/decom/layer"
	"github.com/mpaland/decom/msg"
)

// TestRaceSendAndReceive is meant to be run with `go test -race`: one
// goroutine keeps sending single-frame payloads while another keeps feeding
// the stack flow control frames that arrive with no transfer in progress,
// exercising the mutex around txPhase concurrently the way a real
// communicator's RX goroutine and an application's TX goroutine would. Only
// this combination is covered: no multi-frame transfer or reassembly is
// ever in flight.
func TestRaceSendAndReceive(t *testing.T) {
	pool := msg.NewPool(128, 128)
	s, _, _ := newTestStack(pool, DefaultConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	stop := make(chan struct{})

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			size := rand.Intn(6) + 1
			payload := make([]byte, size)
			m := msg.NewFromBytes(pool, payload)
			s.Send(m, layer.Any, false)
			m.Free()
			time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
		}
		close(stop)
	}()

	go func() {
		defer wg.Done()
		fc := encodeFC(Address{}, fsContinueToSend, 0, 0, false)
		for {
			select {
			case <-stop:
				return
			default:
				m := msg.NewFromBytes(pool, fc)
				s.Receive(m, layer.Any, false)
				m.Free()
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()

	wg.Wait()
}
