// Package fcgx provides a safe binding to the C FastCGI application
// library. The wire protocol — record framing, connection multiplexing,
// role negotiation — stays in the native engine; this package owns the
// request lifecycle around it: accept, parameter lookup, body reads,
// response writes, finish.
//
// The root package is a flat re-export of the request core. Engine
// implementations are imported explicitly, like database drivers:
// libfcgi for production, fcgitest for tests and local development.
//
// # Basic usage
//
// Configure the front-end server to reach the process, e.g. lighttpd:
//
//	fastcgi.server = (
//	       "/app" => ((
//	               "host" => "127.0.0.1",
//	               "port" => 8080,
//	               "max-procs" => "1",
//	               "check-local" => "disable"
//	        ))
//	)
//
// start the binary under spawn-fcgi:
//
//	spawn-fcgi ./echo -n -p 8080
//
// and serve:
//
//	rt := fcgx.NewRuntime(libfcgi.New())
//	if err := rt.Initialize(); err != nil {
//		log.Fatal(err)
//	}
//	r, err := rt.NewRequest()
//	if err != nil {
//		log.Fatal(err)
//	}
//	for r.Accept() {
//		body := r.ReadAll()
//		r.Write("Content-type: text/plain\r\n\r\n")
//		r.Write(body)
//		r.Flush(fcgx.StreamOut)
//		r.Finish()
//	}
//
// Multi-worker serving with accept coordination lives in the pool
// package.
package fcgx

import (
	"github.com/machinefabric/fcgx-go/request"
)

// Request lifecycle core
type Request = request.Request
type Runtime = request.Runtime
type Engine = request.Engine
type Handle = request.Handle
type AcceptGate = request.AcceptGate
type Limits = request.Limits

// Stream tags
type StreamKind = request.StreamKind

const (
	StreamOut = request.StreamOut
	StreamIn  = request.StreamIn
	StreamErr = request.StreamErr
)

const DefaultChunkSize = request.DefaultChunkSize

var NewRuntime = request.NewRuntime
var DefaultLimits = request.DefaultLimits

// ErrNotInitialized is returned by Runtime.NewRequest before Initialize
// has succeeded.
var ErrNotInitialized = request.ErrNotInitialized
