package corpus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Subscriber starts delivering raw record payloads to handle and blocks
// until ctx is cancelled. pkg/kafka consumers are adapted to this shape by
// the indexer command.
type Subscriber func(ctx context.Context, handle func(ctx context.Context, value []byte) error) error

// errIdle stops the subscription once no record arrived for the idle window.
var errIdle = errors.New("corpus stream idle")

// Stream materialises a corpus from a subscription. It stops after idle
// passes without a new record (or when ctx ends) and fails fast on the first
// malformed payload.
func Stream(ctx context.Context, subscribe Subscriber, idle time.Duration) (*Corpus, error) {
	logger := slog.Default().With("component", "corpus-stream")
	records := make(chan Record, 256)
	g, gctx := errgroup.WithContext(ctx)
	subCtx, stop := context.WithCancelCause(gctx)
	defer stop(nil)

	idleTimer := time.AfterFunc(idle, func() { stop(errIdle) })
	defer idleTimer.Stop()

	g.Go(func() error {
		defer close(records)
		err := subscribe(subCtx, func(ctx context.Context, value []byte) error {
			rec, err := ParseRecord(value)
			if err != nil {
				stop(err)
				return err
			}
			select {
			case records <- rec:
				idleTimer.Reset(idle)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		cause := context.Cause(subCtx)
		switch {
		case errors.Is(cause, errIdle):
			logger.Info("corpus stream idle, stopping", "idle", idle)
			return nil
		case cause != nil && !errors.Is(cause, context.Canceled):
			return cause
		case err != nil && subCtx.Err() == nil:
			return err
		}
		return nil
	})

	var c *Corpus
	g.Go(func() error {
		var err error
		c, err = Collect(gctx, records)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logger.Info("corpus stream collected", "documents", c.Len())
	return c, nil
}
