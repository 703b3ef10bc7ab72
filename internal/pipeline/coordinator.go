package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
)

// ErrClosed is returned by a Coordinator that has been closed.
var ErrClosed = errors.New("coordinator closed")

// Runner is what the Coordinator serializes.
type Runner interface {
	Run(ctx context.Context, doc domain.RawDocument, mode domain.Mode, opts ...RunOption) *Result
	Reload(ctx context.Context) error
}

type job struct {
	ctx context.Context
	fn  func(ctx context.Context)
}

// Coordinator owns the pipeline. A single goroutine executes submitted runs and
// reloads one at a time, in arrival order.
type Coordinator struct {
	runner Runner
	jobs   chan job
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *observability.Logger
}

// NewCoordinator starts the owning goroutine. queueSize bounds how many jobs may
// wait behind the running one.
func NewCoordinator(runner Runner, queueSize int, logger *observability.Logger) *Coordinator {
	if queueSize < 0 {
		queueSize = 0
	}
	c := &Coordinator{
		runner: runner,
		jobs:   make(chan job, queueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: observability.OrNop(logger).WithComponent("coordinator"),
	}
	go c.loop()
	return c
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case j := <-c.jobs:
			c.execute(j)
		case <-c.quit:
			// drain what was accepted before Close
			for {
				select {
				case j := <-c.jobs:
					c.execute(j)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) execute(j job) {
	if j.ctx.Err() != nil {
		c.logger.Debug().Err(j.ctx.Err()).Msg("Dropping job: caller gave up")
		return
	}
	j.fn(j.ctx)
}

// Submit runs doc through the pipeline and waits for its result. It only fails
// when ctx ends first or the coordinator is closed.
func (c *Coordinator) Submit(ctx context.Context, doc domain.RawDocument, mode domain.Mode, opts ...RunOption) (*Result, error) {
	reply := make(chan *Result, 1)
	err := c.do(ctx, func(ctx context.Context) {
		reply <- c.runner.Run(ctx, doc, mode, opts...)
	})
	if err != nil {
		return nil, err
	}
	return <-reply, nil
}

// Reload loads the stored model snapshot, ordered with the runs around it.
func (c *Coordinator) Reload(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := c.do(ctx, func(ctx context.Context) {
		reply <- c.runner.Reload(ctx)
	}); err != nil {
		return err
	}
	return <-reply
}

// do enqueues fn and waits until it has run.
func (c *Coordinator) do(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	j := job{ctx: ctx, fn: func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}}

	select {
	case <-c.quit:
		return ErrClosed
	default:
	}

	select {
	case c.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops accepting jobs, finishes the queued ones and waits for the owning
// goroutine to exit.
func (c *Coordinator) Close() {
	c.once.Do(func() {
		close(c.quit)
	})
	<-c.done
}
