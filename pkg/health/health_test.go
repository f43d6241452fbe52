package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func get(t *testing.T, h http.Handler) (int, body) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var b body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return w.Code, b
}

// switchable returns a check whose result is controlled by the test.
func switchable() (Check, *atomic.Pointer[error]) {
	var state atomic.Pointer[error]
	return func(context.Context) error {
		if p := state.Load(); p != nil {
			return *p
		}
		return nil
	}, &state
}

func pollN(g *Registry, name string, n int) {
	for _, p := range g.probes {
		if p.name == name {
			for range n {
				p.poll(context.Background())
			}
		}
	}
}

func TestLiveHandler(t *testing.T) {
	g := New()
	check, state := switchable()
	g.Register(Liveness, "goroutines", check, Options{})

	code, b := get(t, g.LiveHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", b.Status)

	err := errors.New("too many")
	state.Store(&err)
	pollN(g, "goroutines", 2)
	code, _ = get(t, g.LiveHandler())
	assert.Equal(t, http.StatusOK, code, "below failure threshold")

	pollN(g, "goroutines", 1)
	code, b = get(t, g.LiveHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", b.Status)
	assert.Equal(t, "too many", b.Checks["goroutines"])

	state.Store(nil)
	pollN(g, "goroutines", 1)
	code, _ = get(t, g.LiveHandler())
	assert.Equal(t, http.StatusOK, code)
}

func TestLiveHandler_IgnoresGate(t *testing.T) {
	g := New()
	code, _ := get(t, g.LiveHandler())
	assert.Equal(t, http.StatusOK, code)
}

func TestReadyHandler(t *testing.T) {
	g := New()
	db, dbState := switchable()
	g.Register(Readiness, "postgres", db, Options{FailureThreshold: 1})
	g.Register(Readiness, "amqp", func(context.Context) error { return nil }, Options{})

	t.Run("GateClosed", func(t *testing.T) {
		code, b := get(t, g.ReadyHandler())
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, b.Checks, "_gate")
		assert.False(t, g.Ready())
	})

	g.SetReady(true)
	t.Run("Ready", func(t *testing.T) {
		code, b := get(t, g.ReadyHandler())
		assert.Equal(t, http.StatusOK, code)
		assert.Empty(t, b.Checks)
		assert.True(t, g.Ready())
	})
	t.Run("DependencyDown", func(t *testing.T) {
		err := errors.New("connection refused")
		dbState.Store(&err)
		pollN(g, "postgres", 1)

		code, b := get(t, g.ReadyHandler())
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"postgres": "connection refused"}, b.Checks)
		assert.False(t, g.Ready())
	})
	t.Run("ShuttingDown", func(t *testing.T) {
		dbState.Store(nil)
		pollN(g, "postgres", 1)
		g.SetReady(false)

		code, b := get(t, g.ReadyHandler())
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"_gate": "not ready"}, b.Checks)
	})
}

func TestSuccessThreshold(t *testing.T) {
	g := New()
	check, state := switchable()
	g.Register(Readiness, "cache", check, Options{FailureThreshold: 1, SuccessThreshold: 2})

	err := errors.New("down")
	state.Store(&err)
	pollN(g, "cache", 1)
	require.False(t, g.Results(Readiness)[0].Healthy)

	state.Store(nil)
	pollN(g, "cache", 1)
	assert.False(t, g.Results(Readiness)[0].Healthy)
	assert.Empty(t, g.Results(Readiness)[0].Error)
	pollN(g, "cache", 1)
	assert.True(t, g.Results(Readiness)[0].Healthy)
}

func TestRun(t *testing.T) {
	g := New()
	var calls atomic.Int32
	g.Register(Liveness, "counter", func(context.Context) error {
		calls.Add(1)
		return nil
	}, Options{})
	g.Register(Readiness, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, Options{Timeout: 5 * time.Millisecond, FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		return calls.Load() >= 2 && !g.Results(Readiness)[0].Healthy
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NotEmpty(t, g.Results(Readiness)[0].Error)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPing(t *testing.T) {
	assert.NoError(t, Ping("postgres", fakePinger{})(context.Background()))

	err := Ping("postgres", fakePinger{err: errors.New("refused")})(context.Background())
	require.Error(t, err)
	assert.Equal(t, "ping postgres: refused", err.Error())
}

func TestGoroutines(t *testing.T) {
	assert.NoError(t, Goroutines(1_000_000)(context.Background()))
	assert.Error(t, Goroutines(0)(context.Background()))
}

func TestGCPause(t *testing.T) {
	assert.NoError(t, GCPause(time.Hour)(context.Background()))
}
