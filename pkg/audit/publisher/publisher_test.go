package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/pkg/audit"
	auditmem "timeclock/pkg/audit/memory"
	"timeclock/pkg/requestcontext"
)

func TestEmit_SyncEnrichesEvent(t *testing.T) {
	store := auditmem.NewInMemoryStore()
	p := NewPublisher(store)

	now := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")

	require.NoError(t, p.Emit(ctx, audit.Event{
		Action:    audit.ActionEventFlagged,
		SubjectID: 7,
		Reason:    "future_timestamp",
	}))

	events := store.List()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.True(t, events[0].Timestamp.Equal(now))
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, audit.ActionEventFlagged, events[0].Action)
}

func TestEmit_AsyncFlushesOnClose(t *testing.T) {
	store := auditmem.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(8))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Emit(ctx, audit.Event{Action: audit.ActionEventDuplicate}))
	}
	p.Close()

	assert.Len(t, store.List(), 5)
}

func TestClose_RacingEmitDoesNotPanic(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		store := auditmem.NewInMemoryStore()
		p := NewPublisher(store, WithAsyncBuffer(4))

		var wg sync.WaitGroup
		start := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 10; j++ {
					_ = p.Emit(ctx, audit.Event{Action: audit.ActionEventDuplicate})
				}
			}()
		}
		close(start)
		p.Close()
		wg.Wait()

		// Emits that land after Close are dropped, never stored twice or lost
		// mid-append.
		assert.LessOrEqual(t, len(store.List()), 40)
	}
}

func TestClose_Idempotent(t *testing.T) {
	store := auditmem.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(4))

	require.NoError(t, p.Emit(context.Background(), audit.Event{Action: audit.ActionEventDuplicate}))
	p.Close()
	p.Close()

	assert.Len(t, store.List(), 1)
}

func TestEmit_DropsWhenBufferFull(t *testing.T) {
	store := auditmem.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(1))

	// Flood faster than the drain loop can possibly keep up; Emit must never
	// block or fail.
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, p.Emit(ctx, audit.Event{Action: audit.ActionEventDuplicate}))
	}
	p.Close()

	assert.LessOrEqual(t, len(store.List()), 1000)
}
