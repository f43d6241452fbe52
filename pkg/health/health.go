// Package health serves the /livez and /readyz probes of the API server.
//
// Checks are polled in the background and flip state only after a number of
// consecutive failures or successes, so a single slow ping does not take the
// instance out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Check reports whether a component is healthy.
type Check func(ctx context.Context) error

// Kind selects the probe a check belongs to.
type Kind int

const (
	// Liveness checks failing means the process should be restarted.
	Liveness Kind = iota
	// Readiness checks failing means the instance should not receive traffic.
	Readiness
)

func (k Kind) String() string {
	if k == Liveness {
		return "liveness"
	}
	return "readiness"
}

// Options tunes a single check. Zero values use the defaults.
type Options struct {
	Timeout          time.Duration // default 2s
	FailureThreshold int           // default 3
	SuccessThreshold int           // default 1
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 3
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = 1
	}
	return o
}

type probe struct {
	name  string
	kind  Kind
	check Check
	opts  Options

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Only touched by the polling goroutine.
	fails, oks int
}

func (p *probe) poll(ctx context.Context) (changed bool) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	err := p.check(ctx)
	was := p.healthy.Load()
	if err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		p.fails++
		if p.fails >= p.opts.FailureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.lastErr.Store(nil)
		p.fails = 0
		p.oks++
		if p.oks >= p.opts.SuccessThreshold {
			p.healthy.Store(true)
		}
	}
	return was != p.healthy.Load()
}

func (p *probe) result() Result {
	r := Result{Name: p.name, Healthy: p.healthy.Load()}
	if msg := p.lastErr.Load(); msg != nil {
		r.Error = *msg
	}
	return r
}

// Result is the current state of one check.
type Result struct {
	Name    string
	Healthy bool
	// Error is the most recent failure, kept until the next success.
	Error string
}

// Registry holds the registered checks and the manual readiness gate.
type Registry struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
}

// New creates an empty Registry. It reports not ready until SetReady(true).
func New() *Registry {
	return &Registry{}
}

// Register adds a check. Checks start healthy and should be registered
// before Run.
func (g *Registry) Register(kind Kind, name string, check Check, opts Options) {
	p := &probe{name: name, kind: kind, check: check, opts: opts.withDefaults()}
	p.healthy.Store(true)

	g.mu.Lock()
	g.probes = append(g.probes, p)
	g.mu.Unlock()
}

// SetReady opens or closes the readiness gate. The server closes it on
// shutdown before draining connections.
func (g *Registry) SetReady(ready bool) {
	g.ready.Store(ready)
}

// Ready reports whether the gate is open and every readiness check passes.
func (g *Registry) Ready() bool {
	if !g.ready.Load() {
		return false
	}
	for _, r := range g.Results(Readiness) {
		if !r.Healthy {
			return false
		}
	}
	return true
}

// Results returns the state of the checks of one kind in registration order.
func (g *Registry) Results(kind Kind) []Result {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Result
	for _, p := range g.probes {
		if p.kind == kind {
			out = append(out, p.result())
		}
	}
	return out
}

// Run polls every check at the interval until ctx is done. State changes
// are logged with the logger from ctx.
func (g *Registry) Run(ctx context.Context, interval time.Duration) error {
	g.mu.RLock()
	probes := slices.Clone(g.probes)
	g.mu.RUnlock()

	lg := zctx.From(ctx)
	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if p.poll(ctx) {
					r := p.result()
					lg.Info("Health check changed",
						zap.String("check", r.Name),
						zap.Stringer("kind", p.kind),
						zap.Bool("healthy", r.Healthy),
						zap.String("error", r.Error),
					)
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

// LiveHandler serves the liveness probe.
func (g *Registry) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		results := g.Results(Liveness)
		write(w, healthy(results), results, true)
	})
}

// ReadyHandler serves the readiness probe.
func (g *Registry) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		results := g.Results(Readiness)
		gate := g.ready.Load()
		write(w, gate && healthy(results), results, gate)
	})
}

func healthy(results []Result) bool {
	for _, r := range results {
		if !r.Healthy {
			return false
		}
	}
	return true
}

// write renders {"status":"ok"} or {"status":"unhealthy","checks":{...}}
// listing the failing checks.
func write(w http.ResponseWriter, ok bool, results []Result, gate bool) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if ok {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				if !gate {
					e.Field("_gate", func(e *jx.Encoder) { e.Str("not ready") })
				}
				for _, r := range results {
					if r.Healthy {
						continue
					}
					msg := r.Error
					if msg == "" {
						msg = "unhealthy"
					}
					e.Field(r.Name, func(e *jx.Encoder) { e.Str(msg) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(e.Bytes())
}
