package node

import (
	"testing"
	"time"

	"github.com/go-kit/kit/log/term"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"

	"github.com/mixbytes/randpa/types"
)

// testingLoggerColorFn assigns each reactor index a distinct terminal
// color, the same log.TestingLoggerWithColorFn/term.FgBgColor convention
// the teacher's mempool/reactor_test.go uses to keep a multi-node test's
// interleaved log lines tellable apart.
func testingLoggerColorFn(idx int) func(keyvals ...interface{}) term.FgBgColor {
	return func(keyvals ...interface{}) term.FgBgColor {
		return term.FgBgColor{Fg: term.Color(uint8(idx%8) + 1)}
	}
}

// makeConnectedReactors wires n RANDPA reactors through n real p2p
// switches, grounded on the teacher's own
// consensus/reactor_test.go:makeAndConnectReactors (same
// p2p.MakeConnectedSwitches/p2p.Connect2Switches pattern), swapped to the
// gadget's single-channel Reactor.
func makeConnectedReactors(t *testing.T, n int) ([]*Reactor, []chan []byte) {
	config := cfg.ResetTestRoot("randpa_reactor_test")

	reactors := make([]*Reactor, n)
	received := make([]chan []byte, n)
	for i := range reactors {
		idx := i
		received[idx] = make(chan []byte, 8)
		reactors[idx] = NewReactor(
			func(ses types.SessionId, msgType uint32, payload []byte) { received[idx] <- payload },
			func(ses types.SessionId) {},
		)
		reactors[idx].SetLogger(log.TestingLoggerWithColorFn(testingLoggerColorFn(idx)))
	}

	switches := p2p.MakeConnectedSwitches(config.P2P, n, func(i int, s *p2p.Switch) *p2p.Switch {
		s.AddReactor("RANDPA", reactors[i])
		return s
	}, p2p.Connect2Switches)

	t.Cleanup(func() {
		for _, s := range switches {
			s.Stop()
		}
	})

	return reactors, received
}

func firstSession(t *testing.T, r *Reactor) types.SessionId {
	var ses types.SessionId
	require.Eventually(t, func() bool {
		r.mtx.Lock()
		defer r.mtx.Unlock()
		for s := range r.peers {
			ses = s
			return true
		}
		return false
	}, time.Second, 10*time.Millisecond)
	return ses
}

func TestReactorDeliversAcrossSwitches(t *testing.T) {
	reactors, received := makeConnectedReactors(t, 2)

	ses := firstSession(t, reactors[0])
	require.NoError(t, reactors[0].SendTo(ses, 102, []byte("hello")))

	select {
	case payload := <-received[1]:
		require.Equal(t, []byte("hello"), payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestReactorSendToUnknownSessionErrors(t *testing.T) {
	reactors, _ := makeConnectedReactors(t, 1)
	require.Error(t, reactors[0].SendTo(types.SessionId(999), 102, []byte("x")))
}
