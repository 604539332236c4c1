// Package pool runs a group of FastCGI worker goroutines over one
// runtime. Each worker owns a single request record for its whole life
// and loops accept → handle → finish; the accept step is serialized
// through a shared request.AcceptGate, everything after it runs
// concurrently across workers.
package pool

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/machinefabric/fcgx-go/request"
)

// Handler processes one accepted request cycle. The handler may call
// Finish itself; if it returns (or panics) with the cycle still active,
// the pool finishes it.
type Handler func(r *request.Request)

// Pool is a fixed-size group of workers sharing one listening channel.
type Pool struct {
	rt      *request.Runtime
	handler Handler
	cfg     Config
	logger  logrus.FieldLogger
	gate    request.AcceptGate
}

// New creates a pool. A nil logger falls back to the logrus standard
// logger.
func New(rt *request.Runtime, handler Handler, cfg Config, logger logrus.FieldLogger) (*Pool, error) {
	if handler == nil {
		return nil, fmt.Errorf("pool: handler must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pool{
		rt:      rt,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Run initializes the runtime if needed, constructs every worker's
// request record, and serves until the listening channel is closed and
// all workers have drained their last cycle. A construction failure
// aborts before any worker starts serving.
func (p *Pool) Run() error {
	if err := p.rt.Initialize(); err != nil {
		return err
	}

	reqs := make([]*request.Request, p.cfg.Workers)
	for i := range reqs {
		r, err := p.rt.NewRequest()
		if err != nil {
			for _, built := range reqs[:i] {
				built.Close()
			}
			return fmt.Errorf("pool: worker %d: %w", i, err)
		}
		r.SetLimits(request.Limits{ChunkSize: p.cfg.ChunkSize})
		reqs[i] = r
	}

	p.logger.WithField("workers", p.cfg.Workers).Info("pool serving")

	var wg sync.WaitGroup
	for i, r := range reqs {
		wg.Add(1)
		go p.serve(i, r, &wg)
	}
	wg.Wait()

	p.logger.Info("pool stopped")
	return nil
}

func (p *Pool) serve(id int, r *request.Request, wg *sync.WaitGroup) {
	defer wg.Done()
	defer r.Close()
	log := p.logger.WithField("worker", id)
	for {
		if !p.gate.Accept(r) {
			log.Debug("listening channel closed, worker exiting")
			return
		}
		p.handleCycle(r, log.WithField("cycle", uuid.NewString()))
	}
}

// handleCycle runs the handler for one accepted cycle and guarantees the
// cycle is finished afterwards, even when the handler panics. A panicking
// handler loses its cycle, not its worker.
func (p *Pool) handleCycle(r *request.Request, log logrus.FieldLogger) {
	defer func() {
		if v := recover(); v != nil {
			log.WithField("panic", v).Error("handler panicked")
		}
		if r.Active() {
			r.Finish()
		}
	}()
	p.handler(r)
}
