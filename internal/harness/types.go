package harness

// Trace event types.
const (
	EventInspect = "inspect"
	EventLocate  = "locate"
	EventSend    = "send"
)

// TraceEvent is the observable outcome of one flow step.
type TraceEvent struct {
	Step         int      `json:"step"`
	Type         string   `json:"type"`
	InspectionID string   `json:"inspectionId,omitempty"`
	TrapID       string   `json:"trapId,omitempty"`
	Fired        []string `json:"fired"`
	MessageID    string   `json:"messageId,omitempty"`
	OutboxID     string   `json:"outboxId,omitempty"`
	Distance     *int     `json:"distance,omitempty"`
	Sent         []string `json:"sent,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// firedCount counts how often ruleID fired across the trace.
func (r *Result) firedCount(ruleID string) int {
	n := 0
	for _, ev := range r.Trace {
		for _, id := range ev.Fired {
			if id == ruleID {
				n++
			}
		}
	}
	return n
}
