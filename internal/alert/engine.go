package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sentinel/internal/outbox"
	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// Firing is one rule that fired.
type Firing struct {
	RuleID    string        `json:"ruleId"`
	RuleName  string        `json:"ruleName"`
	Metric    record.Metric `json:"metric"`
	Threshold float64       `json:"threshold"`
	// Value is the observed count, or the distance in meters for nearby.
	Value  float64 `json:"value"`
	TrapID string  `json:"trapId"`
}

// Result is the outcome of one evaluation.
//
// MessageID and OutboxID are empty when nothing fired or, for OutboxID,
// when the channel toggle is off.
type Result struct {
	Fired      []Firing     `json:"fired"`
	MessageID  string       `json:"messageId,omitempty"`
	OutboxID   string       `json:"outboxId,omitempty"`
	RuleErrors []*RuleError `json:"ruleErrors,omitempty"`
}

// Engine evaluates alert rules against a store.
type Engine struct {
	store *store.Store
	queue *outbox.Queue
	ids   record.IDGenerator
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the generator for message ids.
func WithIDGenerator(g record.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the clock used for message dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine. Outbox items are composed by q.
func New(s *store.Store, q *outbox.Queue, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		queue: q,
		ids:   record.UUIDv7IDs{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// activeRules returns the active rules in id order, with the malformed
// ones split out.
func (e *Engine) activeRules(ctx context.Context) ([]record.AlertRule, []*RuleError, error) {
	rules, err := store.QueryByIndex[record.AlertRule](ctx, e.store, record.AlertsByActive, true)
	if err != nil {
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}
	ok := make([]record.AlertRule, 0, len(rules))
	var bad []*RuleError
	for _, r := range rules {
		if rerr := checkRule(r); rerr != nil {
			slog.Warn("skipping alert rule", "rule_id", r.ID, "code", rerr.Code, "error", rerr.Message)
			bad = append(bad, rerr)
			continue
		}
		ok = append(ok, r)
	}
	return ok, bad, nil
}

// EvaluateInspection checks insp against every active adults and larvae
// rule. All hits are batched into one message and at most one outbox item.
func (e *Engine) EvaluateInspection(ctx context.Context, insp record.Inspection) (Result, error) {
	rules, ruleErrs, err := e.activeRules(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Fired: []Firing{}, RuleErrors: ruleErrs}

	var hits []record.AlertRule
	for _, r := range rules {
		matched, value := matchInspection(r, insp)
		if !matched {
			continue
		}
		hits = append(hits, r)
		res.Fired = append(res.Fired, Firing{
			RuleID:    r.ID,
			RuleName:  r.Name,
			Metric:    r.Metric,
			Threshold: r.Threshold,
			Value:     value,
			TrapID:    insp.TrapID,
		})
	}
	if len(hits) == 0 {
		return res, nil
	}

	trap, _, err := store.Get[record.Trap](ctx, e.store, insp.TrapID)
	if err != nil {
		return Result{}, err
	}
	trapName := trap.Name
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return Result{}, err
	}

	msg := record.Message{
		ID:      e.ids.NewID(record.PrefixMessage),
		Date:    outbox.Timestamp(e.now()),
		Channel: TeamChannel,
		Title:   AlertTitle,
		Body:    inspectionMessageBody(trapName, insp, hits),
		Tags:    []string{"alert", "auto"},
	}
	writes := []record.Record{msg}
	res.MessageID = msg.ID

	if settings.EnableWhatsappAlerts {
		ruleIDs := make([]string, len(hits))
		for i, h := range hits {
			ruleIDs[i] = h.ID
		}
		item := e.queue.Compose(AlertTitle, inspectionOutboxBody(trapName, insp, hits), &record.OutboxContext{
			Type:         record.ContextAlert,
			InspectionID: insp.ID,
			TrapID:       insp.TrapID,
			RuleIDs:      ruleIDs,
		})
		writes = append(writes, item)
		res.OutboxID = item.ID
	}

	if err := e.store.PutAll(ctx, writes...); err != nil {
		return Result{}, fmt.Errorf("record alert: %w", err)
	}

	slog.Info("inspection alert",
		"inspection_id", insp.ID,
		"trap_id", insp.TrapID,
		"rules", len(hits),
		"message_id", res.MessageID,
		"outbox_id", res.OutboxID,
	)
	return res, nil
}

// EvaluateProximity fires the first active nearby rule for the single
// closest trap within its radius. Nothing fires when nearby alerts are
// disabled in Settings or no nearby rule is active.
func (e *Engine) EvaluateProximity(ctx context.Context, pos record.Position) (Result, error) {
	if !validPosition(pos) {
		return Result{}, fmt.Errorf("%w: %v,%v", ErrInvalidPosition, pos.Lat, pos.Lng)
	}

	settings, err := e.store.Settings(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Fired: []Firing{}}
	if !settings.EnableNearbyAlert {
		return res, nil
	}

	rules, ruleErrs, err := e.activeRules(ctx)
	if err != nil {
		return Result{}, err
	}
	res.RuleErrors = ruleErrs

	var rule *record.AlertRule
	for i := range rules {
		if rules[i].Metric == record.MetricNearby {
			rule = &rules[i]
			break
		}
	}
	if rule == nil {
		return res, nil
	}

	traps, err := store.GetAll[record.Trap](ctx, e.store)
	if err != nil {
		return Result{}, err
	}
	nearby := NearbyTraps(pos, traps, radiusFor(*rule, settings))
	if len(nearby) == 0 {
		return res, nil
	}

	top := nearby[0]
	dist := roundMeters(top.DistanceM)
	body := nearbyBody(top.Trap.Name, dist)
	res.Fired = append(res.Fired, Firing{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Metric:    rule.Metric,
		Threshold: radiusFor(*rule, settings),
		Value:     top.DistanceM,
		TrapID:    top.Trap.ID,
	})

	msg := record.Message{
		ID:      e.ids.NewID(record.PrefixMessage),
		Date:    outbox.Timestamp(e.now()),
		Channel: TeamChannel,
		Title:   NearbyTitle,
		Body:    body,
		Tags:    []string{"nearby", "auto"},
	}
	writes := []record.Record{msg}
	res.MessageID = msg.ID

	if settings.EnableWhatsappNearby {
		item := e.queue.Compose(NearbyTitle, body, &record.OutboxContext{
			Type:     record.ContextNearby,
			TrapID:   top.Trap.ID,
			Distance: &dist,
		})
		writes = append(writes, item)
		res.OutboxID = item.ID
	}

	if err := e.store.PutAll(ctx, writes...); err != nil {
		return Result{}, fmt.Errorf("record nearby alert: %w", err)
	}

	slog.Info("nearby alert", "trap_id", top.Trap.ID, "distance_m", dist, "outbox_id", res.OutboxID)
	return res, nil
}

// RecordInspection saves insp and then evaluates it. A missing id is
// generated. The saved inspection is returned with the result.
func (e *Engine) RecordInspection(ctx context.Context, insp record.Inspection) (record.Inspection, Result, error) {
	if insp.ID == "" {
		insp.ID = e.ids.NewID(record.PrefixInspection)
	}
	insp = insp.Normalize()
	if err := e.store.SaveInspection(ctx, insp); err != nil {
		return record.Inspection{}, Result{}, err
	}
	res, err := e.EvaluateInspection(ctx, insp)
	if err != nil {
		return insp, Result{}, err
	}
	return insp, res, nil
}
