package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/sentinel/internal/outbox"
	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// ErrUnknownItem is returned when the outbox has no item with the given id.
var ErrUnknownItem = errors.New("unknown outbox item")

// Dispatcher sends outbox items through its sinks.
//
// Delivery is at least once. Sinks are tried in order and the item is
// marked sent only after all of them succeed, so when a later sink fails
// the item stays pending and a retry delivers it again to the earlier
// sinks. Sinks that cannot tolerate a repeat should be listed last.
type Dispatcher struct {
	store *store.Store
	queue *outbox.Queue
	sinks []Sink
}

// New creates a Dispatcher. With no sinks, Send only marks items sent.
func New(s *store.Store, q *outbox.Queue, sinks ...Sink) *Dispatcher {
	return &Dispatcher{store: s, queue: q, sinks: sinks}
}

// Send delivers the item with id and marks it sent.
//
// An empty body sends the item's title and body. An empty target sends to
// the first configured target (default number, then contacts); with none
// configured the message goes out without a phone.
func (d *Dispatcher) Send(ctx context.Context, id, target, body string) (record.OutboxItem, error) {
	item, found, err := d.queue.Get(ctx, id)
	if err != nil {
		return record.OutboxItem{}, err
	}
	if !found {
		return record.OutboxItem{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if item.Status != record.OutboxPending {
		return record.OutboxItem{}, fmt.Errorf("%w: %s", outbox.ErrAlreadySent, id)
	}

	if strings.TrimSpace(body) == "" {
		body = outbox.Text(item)
	}
	phone := outbox.CleanPhone(target)
	if phone == "" {
		settings, err := d.store.Settings(ctx)
		if err != nil {
			return record.OutboxItem{}, err
		}
		if targets := outbox.Targets(settings); len(targets) > 0 {
			phone = targets[0].Phone
		}
	}

	msg := Message{ItemID: id, Title: item.Title, Body: body, Phone: phone}
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			slog.Warn("dispatch failed", "id", id, "sink", sink.Name(), "error", err)
			return record.OutboxItem{}, fmt.Errorf("sink %s: %w", sink.Name(), err)
		}
		slog.Debug("dispatched", "id", id, "sink", sink.Name())
	}

	return d.queue.MarkSent(ctx, id, body, phone)
}

// SendPending sends every pending item, oldest first, to the default
// target. It stops at the first failure and returns the items sent so far.
func (d *Dispatcher) SendPending(ctx context.Context) ([]record.OutboxItem, error) {
	pending, err := d.queue.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	sent := make([]record.OutboxItem, 0, len(pending))
	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		out, err := d.Send(ctx, item.ID, "", "")
		if err != nil {
			return sent, err
		}
		sent = append(sent, out)
	}
	return sent, nil
}
