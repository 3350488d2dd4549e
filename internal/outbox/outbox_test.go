package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
	"github.com/roach88/sentinel/internal/testutil"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	clock := testutil.NewSteppingClock(testutil.Epoch, time.Second)
	s := testutil.OpenStore(t, clock)
	return New(s, WithIDGenerator(&record.SequenceIDs{}), WithClock(clock.Now))
}

func TestEnqueue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	item, err := q.Enqueue(ctx, "Automatic alert", "North • 19 Oct 2026", &record.OutboxContext{
		Type:    record.ContextAlert,
		TrapID:  "t1",
		RuleIDs: []string{"al_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wa_1", item.ID)
	assert.Equal(t, record.OutboxPending, item.Status)
	assert.Equal(t, record.ChannelWhatsApp, item.Channel)
	assert.Equal(t, "2026-10-19T08:00:00Z", item.CreatedAt)

	got, found, err := q.Get(ctx, "wa_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, item, got)
}

func TestMarkSent(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	item, err := q.Enqueue(ctx, "Nearby trap", "North at ~150m", nil)
	require.NoError(t, err)

	sent, err := q.MarkSent(ctx, item.ID, "edited body", "393331112233")
	require.NoError(t, err)
	assert.Equal(t, record.OutboxSent, sent.Status)
	assert.Equal(t, "edited body", sent.Body)
	assert.Equal(t, "393331112233", sent.TargetPhone)
	assert.NotEmpty(t, sent.SentAt)
	assert.Equal(t, item.CreatedAt, sent.CreatedAt)

	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkSent_Twice(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	item, err := q.Enqueue(ctx, "t", "b", nil)
	require.NoError(t, err)

	first, err := q.MarkSent(ctx, item.ID, "first", "1")
	require.NoError(t, err)

	_, err = q.MarkSent(ctx, item.ID, "second", "2")
	assert.True(t, errors.Is(err, ErrAlreadySent), "got %v", err)

	got, _, err := q.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestMarkSent_Concurrent(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	item, err := q.Enqueue(ctx, "t", "b", nil)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := q.MarkSent(ctx, item.ID, "b", "1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one MarkSent wins")
}

func TestMarkSent_Missing(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.MarkSent(context.Background(), "wa_404", "b", "1")
	assert.True(t, store.IsNotFound(err), "got %v", err)
}

func TestListPending_OldestFirst(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(ctx, title, "", nil)
		require.NoError(t, err)
	}
	_, err := q.MarkSent(ctx, "wa_2", "", "")
	require.NoError(t, err)

	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].Title)
	assert.Equal(t, "c", pending[1].Title)

	all, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRemoveAndClearPending(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, "x", "", nil)
		require.NoError(t, err)
	}
	_, err := q.MarkSent(ctx, "wa_3", "", "")
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, "wa_1"))
	require.NoError(t, q.Remove(ctx, "wa_1"))

	n, err := q.ClearPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "wa_3", all[0].ID)
}
