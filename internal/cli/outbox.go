package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sentinel/internal/dispatch"
	"github.com/roach88/sentinel/internal/outbox"
	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// NewOutboxCommand creates the outbox command and its subcommands.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Manage queued WhatsApp notifications",
		Long: `Manage the outbox of WhatsApp notifications produced by alert rules.

Sending writes a wa.me link to open on a phone and marks the item sent.
With SENTINEL_SHOUTRRR_URLS set, items are also forwarded to those services.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newOutboxListCommand(rootOpts))
	cmd.AddCommand(newOutboxSendCommand(rootOpts))
	cmd.AddCommand(newOutboxRemoveCommand(rootOpts))
	cmd.AddCommand(newOutboxClearCommand(rootOpts))
	cmd.AddCommand(newOutboxTargetsCommand(rootOpts))
	return cmd
}

// OutboxListResult lists outbox items.
type OutboxListResult struct {
	Items []record.OutboxItem `json:"items"`
}

func (r OutboxListResult) String() string {
	if len(r.Items) == 0 {
		return "Outbox empty."
	}
	var b strings.Builder
	for i, it := range r.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-7s  %s  %s", it.ID, it.Status, it.CreatedAt, it.Title)
		if it.Status == record.OutboxSent && it.TargetPhone != "" {
			fmt.Fprintf(&b, " -> %s", it.TargetPhone)
		}
	}
	return b.String()
}

func newOutboxListCommand(rootOpts *RootOptions) *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List outbox items, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				q := rootOpts.newQueue(st)
				var (
					items []record.OutboxItem
					err   error
				)
				if pending {
					items, err = q.ListPending(ctx)
				} else {
					items, err = q.List(ctx)
				}
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list outbox", err)
				}
				return rootOpts.formatter(cmd).Success(OutboxListResult{Items: items})
			})
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only pending items")
	return cmd
}

// OutboxSendResult lists the items just sent.
type OutboxSendResult struct {
	Sent []record.OutboxItem `json:"sent"`
}

func (r OutboxSendResult) String() string {
	if len(r.Sent) == 0 {
		return "Nothing to send."
	}
	ids := make([]string, len(r.Sent))
	for i, it := range r.Sent {
		ids[i] = it.ID
	}
	return fmt.Sprintf("Sent %d: %s", len(r.Sent), strings.Join(ids, ", "))
}

// dispatcher builds a dispatcher whose link sink writes to w, plus a
// shoutrrr sink when the config names service URLs.
func (o *RootOptions) dispatcher(st *store.Store, w io.Writer) (*dispatch.Dispatcher, error) {
	sinks := []dispatch.Sink{dispatch.LinkSink{W: w}}
	if o.Config != nil && len(o.Config.ShoutrrrURLs) > 0 {
		sh, err := dispatch.NewShoutrrrSink(o.Config.ShoutrrrURLs, o.Config.DispatchTimeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sh)
	}
	return dispatch.New(st, o.newQueue(st), sinks...), nil
}

func newOutboxSendCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		all    bool
		target string
		body   string
	)

	cmd := &cobra.Command{
		Use:   "send [id]",
		Short: "Send an outbox item, or every pending one",
		Long: `Send one outbox item by id, or every pending item with --all.

--target picks the phone number (default: the settings' number, then the
first contact). --body replaces the text of a single item.`,
		Example: `  sentinel outbox send wa_1 --target "+39 333 111 2222"
  sentinel outbox send --all`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return NewExitError(ExitCommandError, "give an item id or --all")
			}
			if all && (target != "" || body != "") {
				return NewExitError(ExitCommandError, "--target and --body apply to a single item")
			}

			links := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				links = cmd.ErrOrStderr()
			}

			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				d, err := rootOpts.dispatcher(st, links)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid dispatch configuration", err)
				}

				var res OutboxSendResult
				if all {
					res.Sent, err = d.SendPending(ctx)
				} else {
					var item record.OutboxItem
					item, err = d.Send(ctx, args[0], target, body)
					if err == nil {
						res.Sent = []record.OutboxItem{item}
					}
				}
				switch {
				case errors.Is(err, dispatch.ErrUnknownItem), errors.Is(err, outbox.ErrAlreadySent):
					return WrapExitError(ExitCommandError, "cannot send", err)
				case err != nil:
					return WrapExitError(ExitFailure, "send failed", err)
				}
				return rootOpts.formatter(cmd).Success(res)
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "send every pending item")
	cmd.Flags().StringVar(&target, "target", "", "destination phone number")
	cmd.Flags().StringVar(&body, "body", "", "replacement message text")
	return cmd
}

// OutboxChangeResult reports items removed from the outbox.
type OutboxChangeResult struct {
	Removed int `json:"removed"`
}

func (r OutboxChangeResult) String() string {
	return fmt.Sprintf("Removed %d item(s).", r.Removed)
}

func newOutboxRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <id>",
		Short:         "Remove an outbox item",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				q := rootOpts.newQueue(st)
				_, found, err := q.Get(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "failed to load item", err)
				}
				if !found {
					return NewExitError(ExitCommandError, fmt.Sprintf("outbox item %s not found", args[0]))
				}
				if err := q.Remove(ctx, args[0]); err != nil {
					return WrapExitError(ExitFailure, "failed to remove item", err)
				}
				return rootOpts.formatter(cmd).Success(OutboxChangeResult{Removed: 1})
			})
		},
	}
}

func newOutboxClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove every pending item",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				n, err := rootOpts.newQueue(st).ClearPending(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to clear outbox", err)
				}
				return rootOpts.formatter(cmd).Success(OutboxChangeResult{Removed: n})
			})
		},
	}
}

// TargetsResult lists the numbers items can be sent to.
type TargetsResult struct {
	Targets []outbox.Target `json:"targets"`
}

func (r TargetsResult) String() string {
	if len(r.Targets) == 0 {
		return "No targets configured."
	}
	var b strings.Builder
	for i, t := range r.Targets {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s", t.Phone, t.Label)
	}
	return b.String()
}

func newOutboxTargetsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "targets",
		Short:         "List configured phone numbers",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				settings, err := st.Settings(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to load settings", err)
				}
				return rootOpts.formatter(cmd).Success(TargetsResult{Targets: outbox.Targets(settings)})
			})
		},
	}
}
