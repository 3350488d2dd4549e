// Package dispatch delivers outbox items and records them as sent.
//
// Delivery goes through one or more Sinks. An item is marked sent only
// after every sink accepted it; a failing sink leaves it pending.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/roach88/sentinel/internal/outbox"
)

// Message is what a sink delivers.
type Message struct {
	ItemID string
	Title  string
	Body   string
	// Phone is the digits-only destination, empty when the user picks it.
	Phone string
}

// Sink delivers a message somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// LinkSink "delivers" by writing a wa.me link the user opens to send the
// message from their own phone.
type LinkSink struct {
	W io.Writer
}

// Name implements Sink.
func (LinkSink) Name() string { return "whatsapp-link" }

// Send writes the link for msg on its own line.
func (s LinkSink) Send(_ context.Context, msg Message) error {
	if _, err := fmt.Fprintln(s.W, outbox.WhatsAppURL(msg.Body, msg.Phone)); err != nil {
		return fmt.Errorf("write link: %w", err)
	}
	return nil
}

// ShoutrrrSink forwards messages to shoutrrr service URLs
// (telegram://, slack://, smtp://, ...).
type ShoutrrrSink struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrSink builds a sender for urls. A zero timeout keeps the
// router's default.
func NewShoutrrrSink(urls []string, timeout time.Duration) (*ShoutrrrSink, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create shoutrrr sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrSink{urls: slices.Clone(urls), sender: sender}, nil
}

// Name implements Sink.
func (s *ShoutrrrSink) Name() string {
	schemes := make([]string, 0, len(s.urls))
	for _, u := range s.urls {
		scheme, _, _ := strings.Cut(u, "://")
		schemes = append(schemes, scheme)
	}
	return "shoutrrr(" + strings.Join(schemes, ",") + ")"
}

// Send delivers msg to every configured URL and returns the first failure.
func (s *ShoutrrrSink) Send(_ context.Context, msg Message) error {
	params := stypes.Params{}
	if msg.Title != "" {
		params.SetTitle(msg.Title)
	}
	// The router applies its own timeout.
	for _, err := range s.sender.Send(msg.Body, &params) {
		if err != nil {
			return fmt.Errorf("shoutrrr send: %w", err)
		}
	}
	return nil
}
