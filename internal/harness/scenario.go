package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sentinel/internal/record"
)

// Scenario is one replayable field session.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Now is the RFC 3339 start of the scenario clock.
	Now string `yaml:"now,omitempty"`

	// Settings are merged over the defaults before the flow runs.
	Settings map[string]any `yaml:"settings,omitempty"`

	Traps []TrapSpec `yaml:"traps"`
	Rules []RuleSpec `yaml:"rules,omitempty"`

	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TrapSpec is a trap created before the flow.
type TrapSpec struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Code   string  `yaml:"code,omitempty"`
	Lat    float64 `yaml:"lat"`
	Lng    float64 `yaml:"lng"`
	Status string  `yaml:"status,omitempty"`
}

// RuleSpec is an alert rule created before the flow. Rules are active
// unless active is false.
type RuleSpec struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name,omitempty"`
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
	Active    *bool   `yaml:"active,omitempty"`
	Note      string  `yaml:"note,omitempty"`
}

// Step is one flow entry. Exactly one of Inspect, Locate or SendPending
// is set.
type Step struct {
	Inspect     *InspectStep `yaml:"inspect,omitempty"`
	Locate      *LocateStep  `yaml:"locate,omitempty"`
	SendPending bool         `yaml:"send_pending,omitempty"`

	// Expect is checked against the step outcome. Nil checks nothing.
	Expect *Expect `yaml:"expect,omitempty"`
}

// InspectStep records an inspection and evaluates it.
type InspectStep struct {
	ID          string   `yaml:"id,omitempty"`
	Trap        string   `yaml:"trap"`
	Date        string   `yaml:"date"`
	Adults      int      `yaml:"adults"`
	Females     int      `yaml:"females"`
	Larvae      int      `yaml:"larvae"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// LocateStep evaluates proximity at a position.
type LocateStep struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Fired lists the rule ids that must fire, in order. An empty list
	// means nothing fires; omitted means not checked.
	Fired []string `yaml:"fired"`

	// Trap is the trap a proximity alert must name.
	Trap string `yaml:"trap,omitempty"`

	// Outbox tells whether an outbox item must have been enqueued.
	Outbox *bool `yaml:"outbox,omitempty"`

	// Sent is the number of items a send_pending step must dispatch.
	Sent *int `yaml:"sent,omitempty"`

	// Error is a substring the step error must contain. The step must fail.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the final state.
type Assertion struct {
	// Type is one of outbox_count, message_count, fired_count, risk.
	Type string `yaml:"type"`

	// Status filters outbox_count (pending or sent).
	Status string `yaml:"status,omitempty"`

	// Tag filters message_count.
	Tag string `yaml:"tag,omitempty"`

	// Rule is the rule id counted by fired_count.
	Rule string `yaml:"rule,omitempty"`

	// Trap is the trap scored by risk.
	Trap string `yaml:"trap,omitempty"`

	// Level and Score are the expected risk; either may be omitted.
	Level string `yaml:"level,omitempty"`
	Score *int   `yaml:"score,omitempty"`

	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertOutboxCount  = "outbox_count"
	AssertMessageCount = "message_count"
	AssertFiredCount   = "fired_count"
	AssertRisk         = "risk"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// start returns the parsed clock start, or zero for the default.
func (s *Scenario) start() (time.Time, error) {
	if s.Now == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s.Now)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := s.start(); err != nil {
		return fmt.Errorf("now: %w", err)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	traps := make(map[string]bool, len(s.Traps))
	for i, t := range s.Traps {
		if t.ID == "" {
			return fmt.Errorf("traps[%d]: id is required", i)
		}
		if traps[t.ID] {
			return fmt.Errorf("traps[%d]: duplicate id %q", i, t.ID)
		}
		traps[t.ID] = true
	}
	for i, r := range s.Rules {
		if r.ID == "" {
			return fmt.Errorf("rules[%d]: id is required", i)
		}
	}

	for i, step := range s.Flow {
		set := 0
		if step.Inspect != nil {
			set++
		}
		if step.Locate != nil {
			set++
		}
		if step.SendPending {
			set++
		}
		if set != 1 {
			return fmt.Errorf("flow[%d]: exactly one of inspect, locate, send_pending is required", i)
		}
		if step.Inspect != nil && step.Inspect.Trap == "" {
			return fmt.Errorf("flow[%d].inspect: trap is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutboxCount:
		if a.Status != "" && a.Status != string(record.OutboxPending) && a.Status != string(record.OutboxSent) {
			return fmt.Errorf("assertions[%d]: unknown outbox status %q", index, a.Status)
		}
	case AssertMessageCount:
	case AssertFiredCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fired_count", index)
		}
	case AssertRisk:
		if a.Trap == "" {
			return fmt.Errorf("assertions[%d]: trap is required for risk", index)
		}
		if a.Level == "" && a.Score == nil {
			return fmt.Errorf("assertions[%d]: level or score is required for risk", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
