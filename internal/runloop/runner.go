// Package runloop hosts the engine: it owns the Engine on the frame loop's
// goroutine, applies queued commands between ticks and publishes every
// snapshot to a feed.Hub.
package runloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signalsfoundry/intercept-engine/core"
	"github.com/signalsfoundry/intercept-engine/internal/feed"
	"github.com/signalsfoundry/intercept-engine/internal/logging"
	"github.com/signalsfoundry/intercept-engine/timectrl"
)

// ErrAlreadyRunning is returned by Run on a runner that has been started.
var ErrAlreadyRunning = errors.New("runner already started")

type command struct {
	ctx  context.Context
	fn   func(context.Context, *core.Engine) error
	done chan error
}

// Runner drives an Engine from a TimeController. Commands submitted with Do
// run on the loop goroutine immediately before the next tick.
type Runner struct {
	engine *core.Engine
	hub    *feed.Hub
	tc     *timectrl.TimeController
	log    logging.Logger

	cmds    chan command
	stopped chan struct{}
	onFrame func(*core.Snapshot)

	startOnce sync.Once
	ctx       context.Context
	failures  uint64
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// OnFrame registers fn to be called with each snapshot after it is
// published. fn runs on the loop goroutine.
func OnFrame(fn func(*core.Snapshot)) Option {
	return func(r *Runner) { r.onFrame = fn }
}

// NewRunner binds engine to tc. Snapshots go to hub.
func NewRunner(engine *core.Engine, hub *feed.Hub, tc *timectrl.TimeController, opts ...Option) *Runner {
	r := &Runner{
		engine:  engine,
		hub:     hub,
		tc:      tc,
		log:     logging.Noop(),
		cmds:    make(chan command),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	tc.AddListener(r.frame)
	return r
}

// Run drives frames until ctx is done or the summed frame deltas reach
// duration (0 runs until cancelled). It closes the hub on return.
func (r *Runner) Run(ctx context.Context, duration time.Duration) error {
	started := false
	r.startOnce.Do(func() { started = true })
	if !started {
		return ErrAlreadyRunning
	}

	if logging.RunIDFromContext(ctx) == "" {
		ctx = logging.ContextWithRunID(ctx, logging.NewRunID())
	}
	r.ctx = ctx

	r.log.Info(ctx, "frame loop starting",
		logging.String("mode", r.tc.Mode.String()),
		logging.Duration("tick", r.tc.Tick),
		logging.Duration("duration", duration),
	)
	<-r.tc.Start(ctx, duration)

	close(r.stopped)
	r.hub.Close()
	r.engine.Close()
	r.log.Info(ctx, "frame loop stopped",
		logging.Uint64("frames", r.tc.Frames()),
		logging.Float64("elapsed_seconds", r.engine.Elapsed()),
	)
	return nil
}

// Done is closed once the loop has stopped.
func (r *Runner) Done() <-chan struct{} { return r.stopped }

// Do queues fn to run against the engine before the next tick and waits for
// its result. It returns feed.ErrStopped once the loop has stopped.
func (r *Runner) Do(ctx context.Context, fn func(context.Context, *core.Engine) error) error {
	cmd := command{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case <-r.stopped:
		return feed.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case r.cmds <- cmd:
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) frame(realDelta float64) {
	r.drain()

	snap, err := r.engine.Tick(r.ctx, realDelta)
	if err != nil {
		r.failures++
		if r.failures == 1 || r.failures%100 == 0 {
			r.log.Warn(r.ctx, "tick failed", logging.Err(err), logging.Uint64("failures", r.failures))
		}
		return
	}
	r.hub.Publish(snap)
	if r.onFrame != nil {
		r.onFrame(snap)
	}
}

// drain runs every command whose sender is already waiting.
func (r *Runner) drain() {
	for {
		select {
		case cmd := <-r.cmds:
			cmd.done <- cmd.fn(cmd.ctx, r.engine)
		default:
			return
		}
	}
}

// RemoveBody implements feed.Controller.
func (r *Runner) RemoveBody(ctx context.Context, bodyID string) error {
	return r.Do(ctx, func(ctx context.Context, e *core.Engine) error {
		return e.RemoveBody(ctx, bodyID)
	})
}

// ResetSwarm implements feed.Controller. A non-empty targetID retargets the
// swarm, which also restarts it.
func (r *Runner) ResetSwarm(ctx context.Context, targetID string) error {
	return r.Do(ctx, func(ctx context.Context, e *core.Engine) error {
		if targetID != "" {
			return e.Retarget(ctx, targetID)
		}
		e.ResetInterceptors(ctx)
		return nil
	})
}

// BodyPath implements feed.Controller.
func (r *Runner) BodyPath(ctx context.Context, bodyID string, samples int) ([]core.Vec3, error) {
	var pts []core.Vec3
	err := r.Do(ctx, func(_ context.Context, e *core.Engine) error {
		var err error
		pts, err = e.PathOf(bodyID, samples)
		return err
	})
	return pts, err
}

// ContactPlan implements feed.Controller.
func (r *Runner) ContactPlan(ctx context.Context, horizon, step float64) (core.ContactPlan, error) {
	var plan core.ContactPlan
	err := r.Do(ctx, func(_ context.Context, e *core.Engine) error {
		var err error
		plan, err = e.ContactPlan(horizon, step)
		return err
	})
	return plan, err
}

var _ feed.Controller = (*Runner)(nil)
