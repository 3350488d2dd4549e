package alert

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/roach88/sentinel/internal/record"
)

// Log channel and titles of the records evaluation writes.
const (
	TeamChannel     = "Team"
	AlertTitle      = "Automatic alert"
	NearbyTitle     = "Nearby trap"
	unknownTrapName = "Trap"
)

// displayDate renders a YYYY-MM-DD date as "19 Oct 2026". Anything that
// does not parse is returned unchanged.
func displayDate(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		if date == "" {
			return "-"
		}
		return date
	}
	return t.Format("02 Jan 2006")
}

// inspectionSummary is the one-line headline of an inspection alert:
// trap, date, and the names of every rule that fired.
func inspectionSummary(trapName string, insp record.Inspection, hits []record.AlertRule) string {
	if trapName == "" {
		trapName = unknownTrapName
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.Name
	}
	return fmt.Sprintf("%s • %s • %s", trapName, displayDate(insp.Date), strings.Join(names, ", "))
}

func ruleLines(hits []record.AlertRule) string {
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = "- " + h.Label()
	}
	return strings.Join(lines, "\n")
}

// inspectionMessageBody is the log entry: headline plus one line per rule.
func inspectionMessageBody(trapName string, insp record.Inspection, hits []record.AlertRule) string {
	return inspectionSummary(trapName, insp, hits) + "\n" + ruleLines(hits)
}

// inspectionOutboxBody adds the counts to the log entry so the recipient
// has the numbers without opening the app.
func inspectionOutboxBody(trapName string, insp record.Inspection, hits []record.AlertRule) string {
	return strings.Join([]string{
		inspectionSummary(trapName, insp, hits),
		ruleLines(hits),
		fmt.Sprintf("Adults: %d | Females: %d | Larvae: %d", insp.Adults, insp.Females, insp.Larvae),
	}, "\n")
}

// nearbyBody asks the user to record an inspection at the closest trap.
func nearbyBody(trapName string, distance int) string {
	return fmt.Sprintf("%s at ~%dm. Record an inspection?", trapName, distance)
}

func roundMeters(d float64) int {
	return int(math.Round(d))
}
