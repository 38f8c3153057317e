package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner drops state that has been idle or expired as of now.
type Pruner interface {
	Prune(ctx context.Context, now time.Time) int
}

// Sweeper periodically prunes expired sessions and the runtime state tied to
// them.
type Sweeper struct {
	pruners  []Pruner
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(interval time.Duration, logger zerolog.Logger, pruners ...Pruner) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		pruners:  pruners,
		logger:   logger.With().Str("component", "session_sweeper").Logger(),
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until context cancellation.
func (w *Sweeper) Run(ctx context.Context) error {
	if len(w.pruners) == 0 {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Sweeper) tick(ctx context.Context) int {
	now := w.now()
	total := 0
	for _, p := range w.pruners {
		total += p.Prune(ctx, now)
	}
	if total > 0 {
		w.logger.Debug().Int("pruned", total).Msg("expired sessions pruned")
	}
	return total
}
