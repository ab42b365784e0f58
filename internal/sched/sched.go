// Package sched is the cooperative tick loop.
// Per tick: run every task in registration order, dispatch bus queue
// followed by Tick{N}, toggle heartbeat. Nothing runs concurrently with a tick.
package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/zeos/helpers/atomic_clock"
	"github.com/temoto/zeos/internal/bus"
	"github.com/temoto/zeos/internal/types"
	"github.com/temoto/zeos/log2"
)

const DefaultPeriod = 200 * time.Millisecond

type TaskFunc = func(context.Context) error

type task struct {
	name string
	fun  TaskFunc
}

type Run struct {
	Log    *log2.Log
	Bus    *bus.Bus
	Period time.Duration
	// Heartbeat is called with alternating value at the end of every tick.
	Heartbeat func(on bool) error
	// Blink enables heartbeat toggling.
	Blink bool

	tasks []task
	n     uint64
	beat  bool
	last  time.Duration
	slow  time.Duration
}

func New(log *log2.Log, b *bus.Bus, period time.Duration) *Run {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Run{
		Log:    log,
		Bus:    b,
		Period: period,
		Blink:  true,
		slow:   period * 5,
	}
}

// AddTask appends to tick task list. Name is used in logs only.
func (r *Run) AddTask(name string, fun TaskFunc) {
	if fun == nil {
		panic("code error sched AddTask fun=nil name=" + name)
	}
	r.tasks = append(r.tasks, task{name: name, fun: fun})
}

func (r *Run) Tasks() []string {
	names := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		names[i] = t.name
	}
	return names
}

// N is the number of completed ticks.
func (r *Run) N() uint64 { return r.n }

// LastDuration of previous Tick.
func (r *Run) LastDuration() time.Duration { return r.last }

func (r *Run) Tick(ctx context.Context) {
	begin := atomic_clock.Now()
	for _, t := range r.tasks {
		if err := r.runTask(ctx, t); err != nil {
			r.Log.Errorf("%s", errors.ErrorStack(err))
		}
	}
	r.n++
	r.Bus.Dispatch(types.Tick{N: r.n})
	if r.Blink && r.Heartbeat != nil {
		r.beat = !r.beat
		if err := r.Heartbeat(r.beat); err != nil {
			r.Log.Errorf("heartbeat err=%v", err)
		}
	}
	r.last = atomic_clock.Since(begin)
	if r.last > r.slow {
		r.Log.Debugf("slow tick n=%d duration=%v", r.n, r.last)
	}
}

// Loop ticks until parent is stopped or ctx is cancelled.
func (r *Run) Loop(ctx context.Context, parent *alive.Alive) error {
	stopch := parent.StopChan()
	timer := time.NewTimer(r.Period)
	defer timer.Stop()
	for parent.IsRunning() {
		r.Tick(ctx)
		if !parent.IsRunning() {
			break
		}
		timer.Reset(r.Period)
		select {
		case <-timer.C:
		case <-stopch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Run) runTask(ctx context.Context, t task) (err error) {
	defer func() {
		if x := recover(); x != nil {
			err = errors.Errorf("sched task=%s panic: %v\n%s", t.name, x, debug.Stack())
		}
	}()
	if err = t.fun(ctx); err != nil {
		err = errors.Annotate(err, fmt.Sprintf("sched task=%s", t.name))
	}
	return err
}
