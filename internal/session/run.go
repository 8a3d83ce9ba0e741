package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run drives the countdown and the participant refresh until ctx is
// cancelled. The two loops are independent: a slow refresh never delays a
// tick.
func (c *Controller) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return every(gctx, c.opts.TickInterval, func(ctx context.Context) {
			c.tick(ctx, c.opts.Now())
		})
	})
	g.Go(func() error {
		return every(gctx, c.opts.PollInterval, c.poll)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// every calls fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
