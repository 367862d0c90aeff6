package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// operation is one unit of serialized work. Errors are logged, never fatal;
// the next event re-drives the state machine.
type operation struct {
	name string
	fn   func(context.Context) error
}

// queue executes operations strictly one after another. All read-modify-write
// sequences on storage happen inside a single operation, so no operation ever
// observes another's partial writes.
type queue struct {
	ops    chan operation
	logger zerolog.Logger
	done   chan struct{}
}

func newQueue(size int, logger zerolog.Logger) *queue {
	return &queue{
		ops:    make(chan operation, size),
		logger: logger.With().Str("component", "queue").Logger(),
		done:   make(chan struct{}),
	}
}

// run drains the queue until ctx is cancelled.
func (q *queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-q.ops:
			q.exec(ctx, op)
		}
	}
}

func (q *queue) exec(ctx context.Context, op operation) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Str("operation", op.name).
				Msg("Queued operation panicked")
		}
	}()
	if err := op.fn(ctx); err != nil {
		q.logger.Error().Err(err).Str("operation", op.name).Msg("Queued operation failed")
	}
}

// enqueue submits an operation without waiting for it.
func (q *queue) enqueue(ctx context.Context, op operation) error {
	select {
	case q.ops <- op:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueueWait submits an operation and blocks until it has run.
func (q *queue) enqueueWait(ctx context.Context, op operation) error {
	done := make(chan error, 1)
	wrapped := operation{name: op.name, fn: func(qctx context.Context) error {
		err := op.fn(qctx)
		done <- err
		return nil
	}}
	if err := q.enqueue(ctx, wrapped); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
