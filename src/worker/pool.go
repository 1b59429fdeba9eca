package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menusync/src/lib"
	"menusync/src/queue"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Handler func(ctx context.Context, lease *queue.Lease) error

// Pool runs Concurrency goroutines that pull tasks and dispatch them by kind.
type Pool struct {
	Queue        queue.Queue
	Handlers     map[string]Handler
	Concurrency  int
	PollInterval time.Duration
	Lease        time.Duration
	Log          *zap.Logger
}

// Run blocks until ctx is cancelled. A task in flight is settled before its
// worker exits.
func (p *Pool) Run(ctx context.Context) error {
	n := p.Concurrency
	if n < 1 {
		n = 1
	}
	log := p.logger()
	log.Info("worker pool started", zap.Int("concurrency", n))
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			p.loop(ctx, log.With(zap.Int("worker", id)))
			return nil
		})
	}
	err := g.Wait()
	log.Info("worker pool stopped")
	return err
}

func (p *Pool) loop(ctx context.Context, log *zap.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		worked, err := p.Once(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("dequeue failed", zap.Error(err))
		}
		if worked {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.poll()):
		}
	}
}

// Once claims and runs at most one task. It reports whether a task was
// claimed.
func (p *Pool) Once(ctx context.Context) (bool, error) {
	lease, err := p.Queue.Dequeue(ctx, p.lease())
	if errors.Is(err, queue.ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// settle on a context that survives shutdown
	settleCtx := context.WithoutCancel(ctx)
	log := p.logger().With(
		zap.String("task_id", lease.Task.ID),
		zap.String("kind", lease.Task.Kind),
		zap.Int("attempt", lease.Attempt),
	)

	handler, ok := p.Handlers[lease.Task.Kind]
	if !ok {
		cause := fmt.Errorf("no handler for task kind %q", lease.Task.Kind)
		log.Error("unroutable task")
		return true, p.Queue.Fail(settleCtx, lease, cause)
	}

	runCtx, cancel := context.WithDeadline(lib.WithLogger(ctx, log), lease.Until)
	err = p.safeRun(runCtx, handler, lease)
	cancel()
	if err != nil {
		log.Warn("task failed", zap.Error(err))
		if ferr := p.Queue.Fail(settleCtx, lease, err); ferr != nil {
			log.Error("could not reschedule task", zap.Error(ferr))
		}
		return true, nil
	}
	if aerr := p.Queue.Ack(settleCtx, lease); aerr != nil {
		log.Error("could not ack task", zap.Error(aerr))
	}
	return true, nil
}

func (p *Pool) safeRun(ctx context.Context, h Handler, lease *queue.Lease) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, lease)
}

func (p *Pool) poll() time.Duration {
	if p.PollInterval > 0 {
		return p.PollInterval
	}
	return 2 * time.Second
}

func (p *Pool) lease() time.Duration {
	if p.Lease > 0 {
		return p.Lease
	}
	return time.Minute
}

func (p *Pool) logger() *zap.Logger {
	if p.Log != nil {
		return p.Log
	}
	return lib.Logger()
}
