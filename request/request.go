package request

import (
	"bytes"
	"fmt"
)

type state int

const (
	stateIdle state = iota
	stateActive
	stateFinished
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateActive:
		return "active"
	case stateFinished:
		return "finished"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Request owns one native request record for its entire lifetime and
// exposes the accept/read/write/finish cycle as safe operations.
//
// A Request is exclusively owned by the worker goroutine that created
// it; it must never be shared across goroutines. The only cross-worker
// coordination is the AcceptGate serializing the accept step.
//
// Lifecycle: idle → Accept → active → Finish → finished → Accept → ...
// Read, write, flush, and parameter lookups are valid only while active;
// calling them on an idle or finished request is a programming error and
// panics rather than returning a sentinel.
type Request struct {
	eng    Engine
	handle Handle
	state  state
	limits Limits
}

// SetLimits updates the request's limits
func (r *Request) SetLimits(limits Limits) {
	if limits.ChunkSize <= 0 {
		panic("request: ChunkSize must be positive")
	}
	r.limits = limits
}

// Active reports whether the request is inside an accepted cycle.
func (r *Request) Active() bool {
	return r.state == stateActive
}

// Accept blocks until the engine binds a new request cycle to this
// handle, then returns true. A false return means the listening channel
// was closed and the worker should leave its serving loop; the request
// stays re-acceptable but no cycle is active.
//
// When several workers share one listening channel, the accept step must
// be serialized through an AcceptGate; Accept itself performs no
// cross-worker locking.
func (r *Request) Accept() bool {
	if r.state == stateActive {
		panic("request: Accept called on an active request; Finish the current cycle first")
	}
	r.mustBeOpen("Accept")
	if !r.eng.Accept(r.handle) {
		return false
	}
	r.state = stateActive
	return true
}

// Finish flushes and closes the current cycle's streams and notifies the
// front-end server that the response is complete. Call exactly once per
// accepted cycle; skipping it leaks the underlying connection.
func (r *Request) Finish() {
	r.mustBeActive("Finish")
	r.eng.Finish(r.handle)
	r.state = stateFinished
}

// GetParam looks up a parameter of the current request cycle, as
// supplied by the front-end server (REQUEST_URI, REQUEST_METHOD, ...).
// The second result is false when the parameter is unset; an empty value
// and an unset one are distinct outcomes.
func (r *Request) GetParam(name string) (string, bool) {
	r.mustBeActive("GetParam")
	return r.eng.GetParam(r.handle, name)
}

// Write sends msg to the output stream and returns the byte count
// reported by the engine. A negative count signals an I/O failure and is
// propagated untouched. The text is written verbatim through a
// formatting-free path; it is never interpreted as a format template.
func (r *Request) Write(msg string) int {
	r.mustBeActive("Write")
	return r.eng.Write(r.handle, StreamOut, []byte(msg))
}

// WriteBytes sends p verbatim to the output stream. Same count contract
// as Write.
func (r *Request) WriteBytes(p []byte) int {
	r.mustBeActive("WriteBytes")
	return r.eng.Write(r.handle, StreamOut, p)
}

// Error sends msg to the error stream. Same count contract as Write.
func (r *Request) Error(msg string) int {
	r.mustBeActive("Error")
	return r.eng.Write(r.handle, StreamErr, []byte(msg))
}

// ReadBytes reads up to n bytes from the input stream. The second result
// is the actual byte count; a count smaller than n means the end of the
// stream was reached. This is the byte-exact read path; bodies with
// binary payloads must use it.
func (r *Request) ReadBytes(n int) ([]byte, int) {
	r.mustBeActive("ReadBytes")
	if n < 0 {
		panic(fmt.Sprintf("request: ReadBytes with negative count %d", n))
	}
	buf := make([]byte, n)
	got := r.eng.Read(r.handle, StreamIn, buf)
	if got < 0 || got > n {
		panic(fmt.Sprintf("request: engine reported %d bytes for a %d byte read", got, n))
	}
	return buf[:got], got
}

// Read reads up to n bytes from the input stream and decodes them as
// text. The count is the raw number of bytes consumed from the stream,
// which can exceed the length of the returned text: the text contract is
// lossy and truncates at the first NUL byte. Callers that need the body
// byte-for-byte must use ReadBytes.
func (r *Request) Read(n int) (string, int) {
	b, got := r.ReadBytes(n)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), got
}

// ReadAllBytes drains the input stream in ChunkSize reads and returns
// the body byte-for-byte. An absent body yields an empty slice.
func (r *Request) ReadAllBytes() []byte {
	var body []byte
	for {
		chunk, got := r.ReadBytes(r.limits.ChunkSize)
		body = append(body, chunk...)
		if got < r.limits.ChunkSize {
			return body
		}
	}
}

// ReadAll drains the input stream into a string, concatenating ChunkSize
// text reads until a short read signals the end of the stream. An absent
// body yields the empty string. Inherits Read's lossy text contract.
func (r *Request) ReadAll() string {
	var body bytes.Buffer
	for {
		chunk, got := r.Read(r.limits.ChunkSize)
		body.WriteString(chunk)
		if got < r.limits.ChunkSize {
			return body.String()
		}
	}
}

// Flush drains buffered writes on the given stream. No-op if nothing is
// buffered.
func (r *Request) Flush(kind StreamKind) {
	r.mustBeActive("Flush")
	r.eng.Flush(r.handle, kind)
}

// Close releases the native request record. Valid only between cycles
// (idle or finished); closing an active request would tear the record
// out from under the engine. The request is unusable afterwards.
func (r *Request) Close() {
	if r.state == stateActive {
		panic("request: Close called on an active request; Finish the current cycle first")
	}
	if r.state == stateClosed {
		return
	}
	r.eng.Release(r.handle)
	r.state = stateClosed
}

func (r *Request) mustBeActive(op string) {
	if r.state != stateActive {
		panic(fmt.Sprintf("request: %s called on %s request; the operation requires an accepted cycle", op, r.state))
	}
}

func (r *Request) mustBeOpen(op string) {
	if r.state == stateClosed {
		panic(fmt.Sprintf("request: %s called on closed request", op))
	}
}
