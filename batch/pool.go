// Package batch verifies many methods in parallel, one verifier per
// method, optionally consulting a verdict cache keyed by method content.
package batch

import (
	"crypto/sha256"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
	"github.com/chazu/bcverify/verifier"
	"github.com/chazu/bcverify/wire"
)

var log = commonlog.GetLogger("bcverify.batch")

// Cache stores verdicts by content hash. *hierarchy.Store implements it.
type Cache interface {
	LookupVerdict(hash [32]byte) (hierarchy.Verdict, bool, error)
	RecordVerdict(hash [32]byte, v hierarchy.Verdict) error
}

// Options configures a Pool.
type Options struct {
	Workers    int    // 0 means runtime.NumCPU()
	DumpFrames bool   // include entry frames in reports
	Cache      Cache  // optional
	Salt       []byte // mixed into cache keys; changes when the classpath does
}

// request is a unit of work for a pool worker.
type request struct {
	method *bytecode.Method
	done   chan *wire.Report
}

// Pool runs verifications on a fixed set of worker goroutines. The
// resolver must be safe for concurrent use.
type Pool struct {
	classes  hierarchy.Resolver
	opts     Options
	run      string
	requests chan request
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a Pool and starts its workers.
func NewPool(classes hierarchy.Resolver, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	p := &Pool{
		classes:  classes,
		opts:     opts,
		run:      "run_" + uuid.New().String(),
		requests: make(chan request, opts.Workers*4),
	}
	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go p.loop()
	}
	return p
}

// loop verifies requests until the pool is stopped.
func (p *Pool) loop() {
	defer p.wg.Done()
	for req := range p.requests {
		r := p.verify(req.method)
		r.Run = p.run
		req.done <- r
	}
}

// RunID identifies this pool's reports.
func (p *Pool) RunID() string { return p.run }

// Verify submits a method and blocks until its report is ready.
func (p *Pool) Verify(m *bytecode.Method) *wire.Report {
	req := request{method: m, done: make(chan *wire.Report, 1)}
	p.requests <- req
	return <-req.done
}

// VerifyAll verifies methods concurrently and returns their reports in
// input order.
func (p *Pool) VerifyAll(methods []*bytecode.Method) []*wire.Report {
	reports := make([]*wire.Report, len(methods))
	var wg sync.WaitGroup
	wg.Add(len(methods))
	for i, m := range methods {
		go func() {
			defer wg.Done()
			reports[i] = p.Verify(m)
		}()
	}
	wg.Wait()
	return reports
}

// Stop shuts down the workers after queued requests finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.requests)
		p.wg.Wait()
	})
}

// verify runs one verifier, recovering from panics.
func (p *Pool) verify(m *bytecode.Method) (report *wire.Report) {
	key, keyed := p.cacheKey(m)
	if keyed {
		if v, ok, err := p.opts.Cache.LookupVerdict(key); err != nil {
			log.Warningf("verdict cache lookup for %s: %v", m, err)
		} else if ok {
			log.Debugf("%s: cached verdict", m)
			return wire.FromVerdict(m.String(), v)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("verifier panic on %s: %v", m, r)
			report = &wire.Report{
				Method: m.String(),
				Kind:   wire.KindStructural,
				Error:  fmt.Sprintf("internal error: %v", r),
				Block:  int(bytecode.NoBlock),
				Offset: -1,
			}
		}
	}()

	v := verifier.New(m, p.classes)
	err := v.Verify()
	report = wire.NewReport(v, err, p.opts.DumpFrames)
	if keyed {
		if err := p.opts.Cache.RecordVerdict(key, report.Verdict()); err != nil {
			log.Warningf("verdict cache store for %s: %v", m, err)
		}
	}
	return report
}

func (p *Pool) cacheKey(m *bytecode.Method) ([32]byte, bool) {
	if p.opts.Cache == nil {
		return [32]byte{}, false
	}
	h, err := wire.MethodHash(m)
	if err != nil {
		log.Warningf("hashing %s: %v", m, err)
		return [32]byte{}, false
	}
	if len(p.opts.Salt) == 0 {
		return h, true
	}
	return sha256.Sum256(append(h[:], p.opts.Salt...)), true
}
