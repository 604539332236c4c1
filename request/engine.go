package request

// Handle is an opaque token naming one native request record. Handles are
// minted by an Engine and have no meaning outside the engine that issued
// them; callers must never fabricate or arithmetic on one.
type Handle uintptr

// Engine is the narrow call surface of the FastCGI protocol engine. The
// engine owns connection multiplexing, record framing, and role
// negotiation; this interface only moves requests, parameters, and stream
// bytes across that boundary.
//
// All methods taking a Handle require a handle previously returned by
// InitRequest on the same engine. Accept, Read, and Flush block on the
// calling goroutine for as long as the underlying I/O does; none of them
// support cancellation beyond closing the listening channel at the
// process level, which makes every pending and future Accept return
// false.
type Engine interface {
	// Init binds the engine's listening mechanism. The native layer does
	// not guarantee idempotency; callers must invoke it at most once per
	// process (Runtime enforces this).
	Init() error

	// IsCGI reports whether the process was launched under the legacy
	// single-shot CGI protocol rather than FastCGI. Pure query, safe
	// before Init.
	IsCGI() bool

	// InitRequest allocates and initializes one native request record.
	InitRequest() (Handle, error)

	// Accept blocks until a new request arrives on the listening channel
	// and binds it to h. Returns false when the channel has been closed
	// or shut down.
	Accept(h Handle) bool

	// Finish flushes and closes the streams of the request currently
	// bound to h and tells the front-end server the response is
	// complete. Call exactly once per accepted cycle.
	Finish(h Handle)

	// GetParam looks up a per-request parameter supplied by the
	// front-end server. The second result is false when the parameter
	// was not set. Implementations must copy the value out of any
	// engine-owned storage before returning.
	GetParam(h Handle, name string) (string, bool)

	// Write sends p to the given stream and returns the byte count
	// reported by the engine; negative counts signal an I/O failure and
	// are passed through untouched.
	Write(h Handle, kind StreamKind, p []byte) int

	// Read fills p from the given stream and returns the number of bytes
	// read. A count smaller than len(p) means the stream is drained.
	Read(h Handle, kind StreamKind, p []byte) int

	// Flush drains buffered writes on the given stream.
	Flush(h Handle, kind StreamKind)

	// Release frees the native record behind h. The handle must not be
	// bound to an accepted cycle and is invalid afterwards.
	Release(h Handle)
}
