package fcgx_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fcgx "github.com/machinefabric/fcgx-go"
	"github.com/machinefabric/fcgx-go/fcgitest"
)

// Mirrors the classic multi-worker echo service: eight workers share one
// listening channel, the accept step is gated, and everything after the
// accept runs concurrently.
func TestMultiWorkerEchoService(t *testing.T) {
	const workers = 8
	const cycles = 100

	eng := fcgitest.NewEngine()
	rt := fcgx.NewRuntime(eng)
	require.NoError(t, rt.Initialize())

	for i := 0; i < cycles; i++ {
		eng.Push(map[string]string{
			"REQUEST_URI":    fmt.Sprintf("/echo/%d", i),
			"REQUEST_METHOD": "POST",
		}, []byte(fmt.Sprintf("payload %d", i)))
	}
	eng.Close()

	var gate fcgx.AcceptGate
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		r, err := rt.NewRequest()
		require.NoError(t, err)
		wg.Add(1)
		go func(r *fcgx.Request) {
			defer wg.Done()
			defer r.Close()
			for gate.Accept(r) {
				received := r.ReadAll()
				r.Write("Content-type: text/plain\r\n")
				r.Write("\r\n")
				r.Write(received)
				r.Flush(fcgx.StreamOut)
				r.Finish()
			}
		}(r)
	}
	wg.Wait()

	tr := eng.Transcript()
	require.Len(t, tr, cycles)
	for _, c := range tr {
		assert.Equal(t, "Content-type: text/plain\r\n\r\n"+string(c.Stdin), string(c.Stdout))
	}
	assert.LessOrEqual(t, eng.PeakConcurrentAccepts(), 1)
}

// Single worker, no body: the response carries only headers.
func TestHeaderOnlyService(t *testing.T) {
	eng := fcgitest.NewEngine()
	rt := fcgx.NewRuntime(eng)
	require.NoError(t, rt.Initialize())

	eng.Push(map[string]string{"REQUEST_METHOD": "GET"}, nil)
	eng.Close()

	r, err := rt.NewRequest()
	require.NoError(t, err)
	for r.Accept() {
		r.Write("Content-type: text/plain\r\n\r\n")
		r.Write("")
		r.Finish()
	}
	r.Close()

	tr := eng.Transcript()
	require.Len(t, tr, 1)
	assert.Equal(t, "Content-type: text/plain\r\n\r\n", string(tr[0].Stdout))
	assert.Empty(t, tr[0].Stdin)
}
