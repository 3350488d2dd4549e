// Package outbox holds notifications awaiting manual dispatch.
//
// An item is created pending and moves to sent exactly once:
//
//	pending --MarkSent--> sent
//	pending --Remove----> (gone)
//
// Sent items are kept as history until removed.
package outbox

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// ErrAlreadySent is returned by MarkSent for an item that is not pending.
var ErrAlreadySent = errors.New("outbox item already sent")

// Queue is the outbox over a store.
type Queue struct {
	store *store.Store
	ids   record.IDGenerator
	now   func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithIDGenerator sets the generator for new item ids.
func WithIDGenerator(g record.IDGenerator) Option {
	return func(q *Queue) {
		q.ids = g
	}
}

// WithClock sets the clock used for createdAt and sentAt.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// New creates a Queue over s.
func New(s *store.Store, opts ...Option) *Queue {
	q := &Queue{
		store: s,
		ids:   record.UUIDv7IDs{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Compose builds a new pending whatsapp item without storing it, for
// callers that write it together with other records.
func (q *Queue) Compose(title, body string, c *record.OutboxContext) record.OutboxItem {
	item := record.OutboxItem{
		ID:        q.ids.NewID(record.PrefixOutbox),
		Channel:   record.ChannelWhatsApp,
		Status:    record.OutboxPending,
		CreatedAt: Timestamp(q.now()),
		Title:     title,
		Body:      body,
		Context:   c,
	}
	return item.Normalize()
}

// Enqueue stores a new pending whatsapp item.
func (q *Queue) Enqueue(ctx context.Context, title, body string, c *record.OutboxContext) (record.OutboxItem, error) {
	item := q.Compose(title, body, c)
	if err := q.store.Put(ctx, item); err != nil {
		return record.OutboxItem{}, fmt.Errorf("enqueue: %w", err)
	}

	slog.Debug("outbox item enqueued", "id", item.ID, "context", contextType(c))
	return item, nil
}

// MarkSent records that id was dispatched to target with finalBody, which
// replaces the stored body. Only a pending item can be marked; anything
// else returns ErrAlreadySent and leaves the item untouched.
func (q *Queue) MarkSent(ctx context.Context, id, finalBody, target string) (record.OutboxItem, error) {
	sentAt := Timestamp(q.now())
	item, err := store.Modify(ctx, q.store, id, func(o record.OutboxItem) (record.OutboxItem, error) {
		if o.Status != record.OutboxPending {
			return o, fmt.Errorf("%w: %s is %s", ErrAlreadySent, id, o.Status)
		}
		o.Status = record.OutboxSent
		o.SentAt = sentAt
		o.TargetPhone = target
		o.Body = finalBody
		return o, nil
	})
	if err != nil {
		return record.OutboxItem{}, err
	}

	slog.Info("outbox item sent", "id", id, "target", target)
	return item, nil
}

// Get returns the item with id.
func (q *Queue) Get(ctx context.Context, id string) (record.OutboxItem, bool, error) {
	return store.Get[record.OutboxItem](ctx, q.store, id)
}

// Remove deletes the item with id in any status. Removing an absent id succeeds.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.store.Delete(ctx, record.Outbox, id)
}

// ListPending returns the pending items, oldest first.
func (q *Queue) ListPending(ctx context.Context) ([]record.OutboxItem, error) {
	items, err := store.QueryByIndex[record.OutboxItem](ctx, q.store, record.OutboxByStatus, string(record.OutboxPending))
	if err != nil {
		return nil, err
	}
	sortOldestFirst(items)
	return items, nil
}

// List returns every item, oldest first.
func (q *Queue) List(ctx context.Context) ([]record.OutboxItem, error) {
	items, err := store.GetAll[record.OutboxItem](ctx, q.store)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(items)
	return items, nil
}

// ClearPending removes every pending item and returns how many went.
// Sent items are kept.
func (q *Queue) ClearPending(ctx context.Context) (int, error) {
	n, err := q.store.DeleteByIndex(ctx, record.OutboxByStatus, string(record.OutboxPending))
	if err != nil {
		return 0, err
	}
	slog.Debug("outbox cleared", "removed", n)
	return n, nil
}

func sortOldestFirst(items []record.OutboxItem) {
	slices.SortStableFunc(items, func(a, b record.OutboxItem) int {
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Timestamp formats t the way every stored instant is written.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func contextType(c *record.OutboxContext) string {
	if c == nil {
		return ""
	}
	return c.Type
}
