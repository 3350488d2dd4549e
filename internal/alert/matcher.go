package alert

import (
	"math"

	"github.com/roach88/sentinel/internal/record"
)

// checkRule validates the parts of a rule evaluation depends on.
func checkRule(rule record.AlertRule) *RuleError {
	switch rule.Metric {
	case record.MetricAdults, record.MetricLarvae, record.MetricNearby:
	default:
		return unknownMetric(rule.ID, string(rule.Metric))
	}
	t := rule.Threshold
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return invalidThreshold(rule.ID, t)
	}
	return nil
}

// matchInspection reports whether rule fires for insp, and the observed
// value it compared. Nearby rules never match an inspection.
func matchInspection(rule record.AlertRule, insp record.Inspection) (bool, float64) {
	var value float64
	switch rule.Metric {
	case record.MetricAdults:
		value = float64(insp.Adults)
	case record.MetricLarvae:
		value = float64(insp.Larvae)
	default:
		return false, 0
	}
	return value >= rule.Threshold, value
}

// radiusFor returns the distance ceiling of a nearby rule: its own
// threshold when positive, otherwise the configured radius.
func radiusFor(rule record.AlertRule, settings record.Settings) float64 {
	if rule.Threshold > 0 {
		return rule.Threshold
	}
	return settings.NearRadiusM
}
