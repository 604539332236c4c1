//go:build cgo

// Package libfcgi provides the production request.Engine backed by the C
// FastCGI application library (libfcgi). The C library owns the wire
// protocol end to end; this package only moves calls and buffers across
// the cgo boundary.
//
// The process must be started with its listening socket on stdin, the
// way spawn-fcgi, systemd socket activation, or a front-end server sets
// it up. See examples/ for wiring.
package libfcgi

/*
#cgo LDFLAGS: -lfcgi
#include <stdlib.h>
#include <fcgiapp.h>

static FCGX_Request *fcgx_alloc_request(void) {
	return (FCGX_Request *)calloc(1, sizeof(FCGX_Request));
}

static void fcgx_free_request(FCGX_Request *req) {
	free(req);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/machinefabric/fcgx-go/request"
)

// Engine implements request.Engine over libfcgi. One engine per process;
// the C library keeps its listening state in process-wide globals.
type Engine struct {
	mu   sync.Mutex
	reqs map[request.Handle]*C.FCGX_Request
}

// New returns an engine. Call request.Runtime.Initialize before
// constructing any request on it.
func New() *Engine {
	return &Engine{reqs: make(map[request.Handle]*C.FCGX_Request)}
}

// Init implements request.Engine.
func (e *Engine) Init() error {
	if rc := C.FCGX_Init(); rc != 0 {
		return fmt.Errorf("libfcgi: FCGX_Init failed with code %d", int(rc))
	}
	return nil
}

// IsCGI implements request.Engine.
func (e *Engine) IsCGI() bool {
	return C.FCGX_IsCGI() != 0
}

// InitRequest implements request.Engine. The record lives on the C heap
// so the engine never hands a Go pointer to C.
func (e *Engine) InitRequest() (request.Handle, error) {
	req := C.fcgx_alloc_request()
	if req == nil {
		return 0, errors.New("libfcgi: request record allocation failed")
	}
	if rc := C.FCGX_InitRequest(req, 0, 0); rc != 0 {
		C.fcgx_free_request(req)
		return 0, fmt.Errorf("libfcgi: FCGX_InitRequest failed with code %d", int(rc))
	}
	h := request.Handle(uintptr(unsafe.Pointer(req)))
	e.mu.Lock()
	e.reqs[h] = req
	e.mu.Unlock()
	return h, nil
}

// Accept implements request.Engine. Blocks in FCGX_Accept_r; the caller
// serializes concurrent accepts through a request.AcceptGate.
func (e *Engine) Accept(h request.Handle) bool {
	return C.FCGX_Accept_r(e.get(h)) == 0
}

// Finish implements request.Engine.
func (e *Engine) Finish(h request.Handle) {
	C.FCGX_Finish_r(e.get(h))
}

// GetParam implements request.Engine. The pointer FCGX_GetParam returns
// is borrowed from the request's parameter storage and only valid for
// the current cycle; the value is copied before returning and the
// pointer is never retained or freed.
func (e *Engine) GetParam(h request.Handle, name string) (string, bool) {
	req := e.get(h)
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	val := C.FCGX_GetParam(cname, req.envp)
	if val == nil {
		return "", false
	}
	return C.GoString(val), true
}

// Write implements request.Engine. FCGX_PutStr takes an explicit length,
// so the payload is never run through a format parser.
func (e *Engine) Write(h request.Handle, kind request.StreamKind, p []byte) int {
	if len(p) == 0 {
		return 0
	}
	s := stream(e.get(h), kind)
	return int(C.FCGX_PutStr((*C.char)(unsafe.Pointer(&p[0])), C.int(len(p)), s))
}

// Read implements request.Engine.
func (e *Engine) Read(h request.Handle, kind request.StreamKind, p []byte) int {
	if len(p) == 0 {
		return 0
	}
	s := stream(e.get(h), kind)
	n := int(C.FCGX_GetStr((*C.char)(unsafe.Pointer(&p[0])), C.int(len(p)), s))
	if n < 0 {
		return 0
	}
	return n
}

// Flush implements request.Engine.
func (e *Engine) Flush(h request.Handle, kind request.StreamKind) {
	C.FCGX_FFlush(stream(e.get(h), kind))
}

// Release implements request.Engine.
func (e *Engine) Release(h request.Handle) {
	e.mu.Lock()
	req, ok := e.reqs[h]
	delete(e.reqs, h)
	e.mu.Unlock()
	if !ok {
		panic("libfcgi: Release of unknown request handle")
	}
	C.FCGX_Free(req, 1)
	C.fcgx_free_request(req)
}

func (e *Engine) get(h request.Handle) *C.FCGX_Request {
	e.mu.Lock()
	req, ok := e.reqs[h]
	e.mu.Unlock()
	if !ok {
		panic("libfcgi: unknown request handle")
	}
	return req
}

// stream maps a StreamKind to the record's native stream pointer.
func stream(req *C.FCGX_Request, kind request.StreamKind) *C.FCGX_Stream {
	switch kind {
	case request.StreamOut:
		return req.out
	case request.StreamIn:
		return req.in
	case request.StreamErr:
		return req.err
	default:
		panic(fmt.Sprintf("libfcgi: unknown stream kind %d", int(kind)))
	}
}
