// Package fcgitest provides an in-memory request.Engine for tests and
// local development. Request cycles are scripted ahead of time with
// Push, served to workers through the normal Accept path, and captured
// into a transcript once finished. No sockets, no front-end server.
package fcgitest

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/machinefabric/fcgx-go/request"
)

// cycle is one scripted request: its parameters, its body, and the
// output captured while it was active.
type cycle struct {
	params map[string]string
	stdin  []byte
	stdout []byte
	stderr []byte
	offset int // read position into stdin
}

// record is the per-handle state of one native request slot.
type record struct {
	current *cycle // nil between cycles
}

// Engine is an in-memory FastCGI protocol engine. It is safe for use by
// multiple worker goroutines; every scripted cycle is handed to exactly
// one accepting worker.
type Engine struct {
	mu      sync.Mutex
	wake    *sync.Cond
	queue   []*cycle
	records map[request.Handle]*record
	nextH   request.Handle
	closed  bool
	inited  bool

	transcript []Cycle

	// scripted failures
	initErr    error
	initReqErr error
	writeRC    *int
	cgi        bool

	inAccept   atomic.Int32
	peakAccept atomic.Int32
}

// NewEngine returns an empty engine with no scripted cycles.
func NewEngine() *Engine {
	e := &Engine{
		records: make(map[request.Handle]*record),
		nextH:   1,
	}
	e.wake = sync.NewCond(&e.mu)
	return e
}

// Push scripts one request cycle. params and body are copied. Cycles are
// accepted in the order they were pushed.
func (e *Engine) Push(params map[string]string, body []byte) {
	c := &cycle{
		params: make(map[string]string, len(params)),
		stdin:  append([]byte(nil), body...),
	}
	for k, v := range params {
		c.params[k] = v
	}
	e.mu.Lock()
	e.queue = append(e.queue, c)
	e.mu.Unlock()
	e.wake.Signal()
}

// Close shuts the listening channel: every blocked and future Accept
// returns false. Cycles already accepted are unaffected.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wake.Broadcast()
}

// FailInit makes Init return err.
func (e *Engine) FailInit(err error) {
	e.mu.Lock()
	e.initErr = err
	e.mu.Unlock()
}

// FailInitRequest makes InitRequest return err.
func (e *Engine) FailInitRequest(err error) {
	e.mu.Lock()
	e.initReqErr = err
	e.mu.Unlock()
}

// ForceWriteResult makes every Write report rc instead of the real byte
// count, emulating a native I/O failure when rc is negative.
func (e *Engine) ForceWriteResult(rc int) {
	e.mu.Lock()
	e.writeRC = &rc
	e.mu.Unlock()
}

// SetCGI controls what IsCGI reports.
func (e *Engine) SetCGI(cgi bool) {
	e.mu.Lock()
	e.cgi = cgi
	e.mu.Unlock()
}

// PeakConcurrentAccepts returns the highest number of goroutines that
// were ever simultaneously inside Accept. Under a correctly used
// AcceptGate this never exceeds 1.
func (e *Engine) PeakConcurrentAccepts() int {
	return int(e.peakAccept.Load())
}

// Init implements request.Engine.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initErr != nil {
		return e.initErr
	}
	e.inited = true
	return nil
}

// IsCGI implements request.Engine.
func (e *Engine) IsCGI() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cgi
}

// InitRequest implements request.Engine.
func (e *Engine) InitRequest() (request.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		panic("fcgitest: InitRequest before Init; the native layer leaves this undefined")
	}
	if e.initReqErr != nil {
		return 0, e.initReqErr
	}
	h := e.nextH
	e.nextH++
	e.records[h] = &record{}
	return h, nil
}

// Accept implements request.Engine. Blocks until a scripted cycle is
// available or the engine is closed.
func (e *Engine) Accept(h request.Handle) bool {
	n := e.inAccept.Add(1)
	for {
		peak := e.peakAccept.Load()
		if n <= peak || e.peakAccept.CompareAndSwap(peak, n) {
			break
		}
	}
	defer e.inAccept.Add(-1)

	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.mustRecord(h)
	for len(e.queue) == 0 && !e.closed {
		e.wake.Wait()
	}
	if len(e.queue) == 0 {
		return false
	}
	rec.current = e.queue[0]
	e.queue = e.queue[1:]
	return true
}

// Finish implements request.Engine. The finished cycle is appended to
// the transcript.
func (e *Engine) Finish(h request.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.mustRecord(h)
	c := rec.current
	if c == nil {
		panic("fcgitest: Finish on a handle with no accepted cycle")
	}
	e.transcript = append(e.transcript, Cycle{
		ID:     uuid.NewString(),
		Params: c.params,
		Stdin:  c.stdin,
		Stdout: c.stdout,
		Stderr: c.stderr,
	})
	rec.current = nil
}

// GetParam implements request.Engine.
func (e *Engine) GetParam(h request.Handle, name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.mustCycle(h)
	v, ok := c.params[name]
	return v, ok
}

// Write implements request.Engine.
func (e *Engine) Write(h request.Handle, kind request.StreamKind, p []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.mustCycle(h)
	if e.writeRC != nil {
		return *e.writeRC
	}
	switch kind {
	case request.StreamOut:
		c.stdout = append(c.stdout, p...)
	case request.StreamErr:
		c.stderr = append(c.stderr, p...)
	default:
		panic("fcgitest: Write to stream " + kind.String())
	}
	return len(p)
}

// Read implements request.Engine.
func (e *Engine) Read(h request.Handle, kind request.StreamKind, p []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.mustCycle(h)
	if kind != request.StreamIn {
		panic("fcgitest: Read from stream " + kind.String())
	}
	n := copy(p, c.stdin[c.offset:])
	c.offset += n
	return n
}

// Flush implements request.Engine. Output is unbuffered, so this is a
// no-op beyond validating the handle.
func (e *Engine) Flush(h request.Handle, kind request.StreamKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustCycle(h)
	_ = kind.String() // reject unknown kinds
}

// Release implements request.Engine.
func (e *Engine) Release(h request.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.mustRecord(h)
	if rec.current != nil {
		panic("fcgitest: Release on a handle with an accepted cycle")
	}
	delete(e.records, h)
}

func (e *Engine) mustRecord(h request.Handle) *record {
	rec, ok := e.records[h]
	if !ok {
		panic("fcgitest: unknown request handle")
	}
	return rec
}

func (e *Engine) mustCycle(h request.Handle) *cycle {
	rec := e.mustRecord(h)
	if rec.current == nil {
		panic("fcgitest: stream operation on a handle with no accepted cycle")
	}
	return rec.current
}
