package request

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNotInitialized is returned by NewRequest when the runtime was never
// successfully initialized.
var ErrNotInitialized = errors.New("request: runtime not initialized")

// Runtime holds the process-wide initialization state of one engine.
// Create a single Runtime per process, call Initialize before
// constructing any request, and hand it to every worker.
type Runtime struct {
	eng  Engine
	once sync.Once
	err  error
	up   atomic.Bool
}

// NewRuntime wraps an engine. The runtime starts uninitialized.
func NewRuntime(eng Engine) *Runtime {
	return &Runtime{eng: eng}
}

// Initialize binds the engine's listening mechanism. The native layer
// does not guarantee idempotency, so the underlying call runs at most
// once per Runtime; repeated calls return the first outcome. Failure is
// fatal for serving: no request may be constructed afterwards.
func (rt *Runtime) Initialize() error {
	rt.once.Do(func() {
		if err := rt.eng.Init(); err != nil {
			rt.err = fmt.Errorf("request: engine init: %w", err)
			return
		}
		rt.up.Store(true)
	})
	return rt.err
}

// Initialized reports whether Initialize has run successfully.
func (rt *Runtime) Initialized() bool {
	return rt.up.Load()
}

// IsCGI reports whether the process was launched under legacy CGI. Safe
// to call before Initialize.
func (rt *Runtime) IsCGI() bool {
	return rt.eng.IsCGI()
}

// NewRequest allocates one native request record and wraps it in an idle
// Request. Call once per worker, not once per request cycle. Returns
// ErrNotInitialized if Initialize has not succeeded.
func (rt *Runtime) NewRequest() (*Request, error) {
	if !rt.up.Load() {
		return nil, ErrNotInitialized
	}
	h, err := rt.eng.InitRequest()
	if err != nil {
		return nil, fmt.Errorf("request: init request record: %w", err)
	}
	return &Request{
		eng:    rt.eng,
		handle: h,
		state:  stateIdle,
		limits: DefaultLimits(),
	}, nil
}
