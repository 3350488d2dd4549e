package alert

import (
	"errors"
	"fmt"
)

// RuleErrorCode categorizes rule evaluation errors.
type RuleErrorCode string

const (
	// ErrCodeUnknownMetric indicates the rule's metric is not one this build evaluates.
	ErrCodeUnknownMetric RuleErrorCode = "UNKNOWN_METRIC"

	// ErrCodeInvalidThreshold indicates the threshold is NaN, infinite or negative.
	ErrCodeInvalidThreshold RuleErrorCode = "INVALID_THRESHOLD"
)

// RuleError reports a rule that was skipped during evaluation.
type RuleError struct {
	// Code identifies the error category.
	Code RuleErrorCode `json:"code"`

	// RuleID identifies the offending rule.
	RuleID string `json:"ruleId"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.RuleID)
}

// IsRuleError returns true if err is a RuleError with code.
// Uses errors.As to handle wrapped errors.
func IsRuleError(err error, code RuleErrorCode) bool {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// ErrInvalidPosition is returned by EvaluateProximity for a position that
// is not a finite point on the earth.
var ErrInvalidPosition = errors.New("invalid position")

func unknownMetric(ruleID, metric string) *RuleError {
	return &RuleError{
		Code:    ErrCodeUnknownMetric,
		RuleID:  ruleID,
		Message: fmt.Sprintf("metric %q is not supported", metric),
	}
}

func invalidThreshold(ruleID string, threshold float64) *RuleError {
	return &RuleError{
		Code:    ErrCodeInvalidThreshold,
		RuleID:  ruleID,
		Message: fmt.Sprintf("threshold %v is not a finite non-negative number", threshold),
	}
}
