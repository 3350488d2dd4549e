package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roach88/sentinel/internal/alert"
	"github.com/roach88/sentinel/internal/dispatch"
	"github.com/roach88/sentinel/internal/outbox"
	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
	"github.com/roach88/sentinel/internal/testutil"
)

// Harness holds the wiring for one scenario run.
type Harness struct {
	store      *store.Store
	engine     *alert.Engine
	dispatcher *dispatch.Dispatcher
}

// Run executes a scenario against a fresh store in a temporary directory
// and returns the result. An error means the scenario could not be set up;
// failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	start, err := scenario.start()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "sentinel-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ids := &record.SequenceIDs{}
	clock := testutil.NewSteppingClock(start, time.Second)

	st, err := store.Open(filepath.Join(dir, "scenario.db"),
		store.WithIDGenerator(ids),
		store.WithClock(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	queue := outbox.New(st, outbox.WithIDGenerator(ids), outbox.WithClock(clock.Now))
	h := &Harness{
		store:      st,
		engine:     alert.New(st, queue, alert.WithIDGenerator(ids), alert.WithClock(clock.Now)),
		dispatcher: dispatch.New(st, queue, dispatch.LinkSink{W: io.Discard}),
	}

	ctx := context.Background()
	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		h.executeStep(ctx, i, step, result)
	}

	for _, msg := range evaluateAssertions(ctx, st, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// setup writes settings, traps and rules.
func (h *Harness) setup(ctx context.Context, s *Scenario) error {
	if len(s.Settings) > 0 {
		fields := make(map[string]json.RawMessage, len(s.Settings))
		for k, v := range s.Settings {
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("settings.%s: %w", k, err)
			}
			fields[k] = raw
		}
		if err := h.store.MergeSettingsFields(ctx, fields); err != nil {
			return err
		}
	}

	recs := make([]record.Record, 0, len(s.Traps)+len(s.Rules))
	for _, t := range s.Traps {
		recs = append(recs, record.Trap{
			ID:     t.ID,
			Name:   t.Name,
			Code:   t.Code,
			Lat:    t.Lat,
			Lng:    t.Lng,
			Status: record.ParseStatus(t.Status),
			Tags:   []string{},
		})
	}
	for _, r := range s.Rules {
		name := r.Name
		if name == "" {
			name = r.ID
		}
		recs = append(recs, record.AlertRule{
			ID:        r.ID,
			Name:      name,
			Metric:    record.Metric(r.Metric),
			Threshold: r.Threshold,
			Active:    r.Active == nil || *r.Active,
			Scope:     "any",
			Note:      r.Note,
		})
	}
	return h.store.PutAll(ctx, recs...)
}

// executeStep runs one step, appends its trace event and checks its
// expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	var (
		ev  TraceEvent
		res alert.Result
		err error
	)
	ev.Step = i

	switch {
	case step.Inspect != nil:
		ev.Type = EventInspect
		var insp record.Inspection
		insp, res, err = h.engine.RecordInspection(ctx, record.Inspection{
			ID:          step.Inspect.ID,
			TrapID:      step.Inspect.Trap,
			Date:        step.Inspect.Date,
			Adults:      step.Inspect.Adults,
			Females:     step.Inspect.Females,
			Larvae:      step.Inspect.Larvae,
			Temperature: step.Inspect.Temperature,
			Source:      record.SourceManual,
			MediaIDs:    []string{},
		})
		ev.InspectionID = insp.ID
		ev.TrapID = step.Inspect.Trap

	case step.Locate != nil:
		ev.Type = EventLocate
		res, err = h.engine.EvaluateProximity(ctx, record.Position{Lat: step.Locate.Lat, Lng: step.Locate.Lng})
		if len(res.Fired) > 0 {
			ev.TrapID = res.Fired[0].TrapID
			d := int(math.Round(res.Fired[0].Value))
			ev.Distance = &d
		}

	case step.SendPending:
		ev.Type = EventSend
		var sent []record.OutboxItem
		sent, err = h.dispatcher.SendPending(ctx)
		ev.Sent = []string{}
		for _, item := range sent {
			ev.Sent = append(ev.Sent, item.ID)
		}
	}

	ev.Fired = []string{}
	for _, f := range res.Fired {
		ev.Fired = append(ev.Fired, f.RuleID)
	}
	ev.MessageID = res.MessageID
	ev.OutboxID = res.OutboxID
	if err != nil {
		ev.Error = err.Error()
	}
	result.Trace = append(result.Trace, ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(i, ev, *step.Expect) {
			result.AddError(msg)
		}
	}
}

// checkExpect compares one trace event against its expect clause.
func checkExpect(i int, ev TraceEvent, want Expect) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("flow[%d]: ", i)+fmt.Sprintf(format, args...))
	}

	if want.Error != "" {
		if ev.Error == "" {
			fail("expected error containing %q, step succeeded", want.Error)
		} else if !strings.Contains(ev.Error, want.Error) {
			fail("expected error containing %q, got %q", want.Error, ev.Error)
		}
		return errs
	}
	if ev.Error != "" {
		fail("unexpected error: %s", ev.Error)
		return errs
	}

	if want.Fired != nil && !slices.Equal(want.Fired, ev.Fired) {
		fail("fired: expected %v, got %v", want.Fired, ev.Fired)
	}
	if want.Trap != "" && want.Trap != ev.TrapID {
		fail("trap: expected %q, got %q", want.Trap, ev.TrapID)
	}
	if want.Outbox != nil && *want.Outbox != (ev.OutboxID != "") {
		fail("outbox: expected %v, got item %q", *want.Outbox, ev.OutboxID)
	}
	if want.Sent != nil && *want.Sent != len(ev.Sent) {
		fail("sent: expected %d, got %d", *want.Sent, len(ev.Sent))
	}
	return errs
}
