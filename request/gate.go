package request

import "sync"

// AcceptGate serializes the accept step across workers sharing one
// listening channel. At most one worker is inside the native accept call
// at any instant; the lock is released the moment accept returns, so the
// read/process/write/finish phase of already-accepted cycles runs fully
// concurrently across workers.
//
// The zero value is ready to use. One gate per listening channel; the
// gate is the only state shared between workers.
type AcceptGate struct {
	mu sync.Mutex
}

// Accept runs r.Accept under the gate's lock. The lock covers only the
// accept call itself.
func (g *AcceptGate) Accept(r *Request) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return r.Accept()
}
