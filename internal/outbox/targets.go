package outbox

import (
	"net/url"
	"strings"

	"github.com/roach88/sentinel/internal/record"
)

// Target is a phone number an item can be sent to.
type Target struct {
	Label string `json:"label"`
	Phone string `json:"phone"`
}

// DefaultTargetLabel labels the settings' default number.
const DefaultTargetLabel = "Default number"

// CleanPhone keeps only the digits of n.
func CleanPhone(n string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, n)
}

// Targets lists where a notification can go: the default number first,
// then each contact. Numbers are reduced to digits; empty and repeated
// numbers are skipped.
func Targets(s record.Settings) []Target {
	targets := []Target{}
	seen := map[string]bool{}

	if def := CleanPhone(s.WhatsappNumber); def != "" {
		targets = append(targets, Target{Label: DefaultTargetLabel, Phone: def})
		seen[def] = true
	}
	for _, c := range s.Contacts {
		phone := CleanPhone(c.Phone)
		if phone == "" || seen[phone] {
			continue
		}
		label := c.Name
		if c.Role != "" {
			label = c.Name + " • " + c.Role
		}
		targets = append(targets, Target{Label: label, Phone: phone})
		seen[phone] = true
	}
	return targets
}

// WhatsAppURL builds a wa.me link that opens a chat with text prefilled.
// An empty phone (after cleaning) lets the user pick the chat.
func WhatsAppURL(text, phone string) string {
	encoded := encodeComponent(text)
	if p := CleanPhone(phone); p != "" {
		return "https://wa.me/" + p + "?text=" + encoded
	}
	return "https://wa.me/?text=" + encoded
}

// Text is the message an item sends by default: title, newline, body.
func Text(item record.OutboxItem) string {
	return item.Title + "\n" + item.Body
}

// encodeComponent escapes s for a query value, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
