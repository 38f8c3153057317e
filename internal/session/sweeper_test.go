package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type countingPruner struct {
	calls int
}

func (p *countingPruner) Prune(context.Context, time.Time) int {
	p.calls++
	return 1
}

func TestSweeperTickPrunesAll(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now.Add(-2 * time.Minute) }
	_ = store.Save(context.Background(), "old", []byte("{}"))

	extra := &countingPruner{}
	w := NewSweeper(time.Second, zerolog.Nop(), store, extra)
	w.now = func() time.Time { return now }

	assert.Equal(t, 2, w.tick(context.Background()))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 1, extra.calls)
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewSweeper(time.Millisecond, zerolog.Nop(), NewMemoryStore(time.Minute)).Run(ctx)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
