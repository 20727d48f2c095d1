// Package readiness tracks startup state. All serving traffic is gated on
// the outcome of an ordered initialization sequence; liveness is not.
package readiness

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the gate lifecycle state.
type State int32

const (
	// Uninitialized means Initialize has not been called.
	Uninitialized State = iota
	// Initializing means startup steps are running.
	Initializing
	// Ready means all fatal steps succeeded; the service accepts traffic.
	Ready
	// Failed means a fatal step failed. The gate never leaves this state;
	// the process is expected to terminate.
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Step is one initialization step. Fatal steps abort startup on failure;
// optional steps log a warning and leave their capability unavailable.
type Step struct {
	Name  string
	Fatal bool
	Run   func(ctx context.Context) error
}

// Gate runs startup steps in order and exposes the resulting state.
// State reads are safe from any goroutine once Initialize has started.
type Gate struct {
	logger *zap.Logger

	state atomic.Int32

	mu      sync.RWMutex
	start   time.Time
	loaded  map[string]bool
	failure error
}

// New creates a gate in the Uninitialized state.
func New(logger *zap.Logger) *Gate {
	return &Gate{
		logger: logger,
		loaded: make(map[string]bool),
	}
}

// Initialize runs the steps in order. The start time for uptime reporting
// is recorded first. The gate becomes Ready only if every fatal step
// succeeded; the first fatal failure moves it to Failed and is returned.
func (g *Gate) Initialize(ctx context.Context, steps ...Step) error {
	if !g.state.CompareAndSwap(int32(Uninitialized), int32(Initializing)) {
		return fmt.Errorf("initialize called in state %s", g.State())
	}

	g.mu.Lock()
	g.start = time.Now()
	g.mu.Unlock()

	for _, step := range steps {
		err := step.Run(ctx)
		if err == nil {
			g.setLoaded(step.Name, true)
			g.logger.Info("Startup step completed", zap.String("step", step.Name))
			continue
		}

		if step.Fatal {
			g.mu.Lock()
			g.failure = err
			g.mu.Unlock()
			g.state.Store(int32(Failed))
			return fmt.Errorf("startup step %s: %w", step.Name, err)
		}

		g.setLoaded(step.Name, false)
		g.logger.Warn("Optional startup step failed, capability disabled",
			zap.String("step", step.Name),
			zap.Error(err),
		)
	}

	// loaded map writes above happen-before this store; handlers check
	// IsReady before reading capabilities.
	g.state.Store(int32(Ready))
	return nil
}

// State returns the current lifecycle state.
func (g *Gate) State() State { return State(g.state.Load()) }

// IsReady reports whether the service accepts traffic. This is the single
// check every serving path uses.
func (g *Gate) IsReady() bool { return g.State() == Ready }

// Loaded reports whether the named step completed successfully.
func (g *Gate) Loaded(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded[name]
}

// Uptime returns the time elapsed since initialization started, zero
// before that.
func (g *Gate) Uptime() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.start.IsZero() {
		return 0
	}
	return time.Since(g.start)
}

// Failure returns the fatal startup error, nil unless state is Failed.
func (g *Gate) Failure() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failure
}

func (g *Gate) setLoaded(name string, ok bool) {
	g.mu.Lock()
	g.loaded[name] = ok
	g.mu.Unlock()
}
