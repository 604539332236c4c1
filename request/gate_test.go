package request_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/fcgx-go/request"
)

func TestGateMutualExclusion(t *testing.T) {
	const workers = 8
	const cycles = 200

	rt, eng := newRuntime(t)
	for i := 0; i < cycles; i++ {
		eng.Push(map[string]string{"REQUEST_URI": fmt.Sprintf("/%d", i)}, nil)
	}
	eng.Close() // workers drain the queue, then exit

	var gate request.AcceptGate
	var wg sync.WaitGroup
	var served sync.Map

	for w := 0; w < workers; w++ {
		r, err := rt.NewRequest()
		require.NoError(t, err)
		wg.Add(1)
		go func(r *request.Request) {
			defer wg.Done()
			defer r.Close()
			for gate.Accept(r) {
				uri, ok := r.GetParam("REQUEST_URI")
				if ok {
					served.Store(uri, struct{}{})
				}
				r.Finish()
			}
		}(r)
	}
	wg.Wait()

	assert.LessOrEqual(t, eng.PeakConcurrentAccepts(), 1,
		"the gate must keep all but one worker out of the native accept call")

	n := 0
	served.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, cycles, n, "every scripted cycle must be served exactly once")
}

func TestAcceptedCycleDoesNotBlockOnOthersAccept(t *testing.T) {
	rt, eng := newRuntime(t)
	eng.Push(nil, []byte("body"))

	var gate request.AcceptGate

	// Worker A takes the only scripted cycle.
	a, err := rt.NewRequest()
	require.NoError(t, err)
	require.True(t, gate.Accept(a))

	// Worker B parks inside accept on the now-empty channel.
	b, err := rt.NewRequest()
	require.NoError(t, err)
	bDone := make(chan bool, 1)
	go func() {
		bDone <- gate.Accept(b)
	}()

	// A's read/write/finish phase must make progress while B blocks.
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		assert.Equal(t, "body", a.ReadAll())
		a.Write("Content-type: text/plain\r\n\r\nok")
		a.Flush(request.StreamOut)
		a.Finish()
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("accepted cycle blocked behind another worker's accept")
	}

	eng.Close()
	select {
	case ok := <-bDone:
		assert.False(t, ok, "closing the channel must unblock the parked accept with false")
	case <-time.After(5 * time.Second):
		t.Fatal("parked accept did not observe channel close")
	}
}

func TestGateSingleWorker(t *testing.T) {
	rt, eng := newRuntime(t)
	eng.Push(nil, nil)
	eng.Close()

	var gate request.AcceptGate
	r, err := rt.NewRequest()
	require.NoError(t, err)
	require.True(t, gate.Accept(r))
	r.Finish()
	assert.False(t, gate.Accept(r))
}
