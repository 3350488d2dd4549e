package record

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// legacyStatuses maps the labels written by older field builds onto TrapStatus.
var legacyStatuses = map[string]TrapStatus{
	"attiva":          StatusActive,
	"active":          StatusActive,
	"in manutenzione": StatusMaintenance,
	"maintenance":     StatusMaintenance,
	"dismessa":        StatusDecommissioned,
	"decommissioned":  StatusDecommissioned,
}

// nfc returns s in Unicode Normalization Form C.
// Names typed on different devices compare equal only after this step.
func nfc(s string) string {
	return norm.NFC.String(s)
}

func nfcAll(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(nfc(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseStatus maps a status label, including legacy labels, onto TrapStatus.
// Unknown labels are returned unchanged so validation can reject them.
func ParseStatus(label string) TrapStatus {
	if label == "" {
		return StatusActive
	}
	if st, ok := legacyStatuses[strings.ToLower(strings.TrimSpace(label))]; ok {
		return st
	}
	return TrapStatus(label)
}

// Normalize returns t with text fields in NFC and defaults applied.
func (t Trap) Normalize() Trap {
	t.Name = strings.TrimSpace(nfc(t.Name))
	t.Code = strings.TrimSpace(nfc(t.Code))
	t.Type = nfc(t.Type)
	t.Bait = nfc(t.Bait)
	t.Notes = nfc(t.Notes)
	t.Tags = nfcAll(t.Tags)
	t.Status = ParseStatus(string(t.Status))
	return t
}

// Normalize returns i with text fields in NFC and defaults applied.
func (i Inspection) Normalize() Inspection {
	i.Notes = nfc(i.Notes)
	i.Operator = nfc(i.Operator)
	i.SourceNote = nfc(i.SourceNote)
	if i.Source == "" {
		i.Source = SourceManual
	}
	if i.MediaIDs == nil {
		i.MediaIDs = []string{}
	}
	return i
}

// Normalize returns a with text fields in NFC and defaults applied.
func (a AlertRule) Normalize() AlertRule {
	a.Name = strings.TrimSpace(nfc(a.Name))
	a.Note = nfc(a.Note)
	if a.Scope == "" {
		a.Scope = "any"
	}
	return a
}

// Normalize returns m with text fields in NFC and defaults applied.
func (m Message) Normalize() Message {
	m.Channel = nfc(m.Channel)
	m.Title = nfc(m.Title)
	m.Body = nfc(m.Body)
	m.Tags = nfcAll(m.Tags)
	return m
}

// Normalize returns m with defaults applied.
func (m Media) Normalize() Media {
	if m.Kind == "" {
		m.Kind = MediaKindImage
	}
	return m
}

// Normalize returns o with text fields in NFC and defaults applied.
func (o OutboxItem) Normalize() OutboxItem {
	if o.Channel == "" {
		o.Channel = ChannelWhatsApp
	}
	if o.Status == "" {
		o.Status = OutboxPending
	}
	o.Title = nfc(o.Title)
	o.Body = nfc(o.Body)
	return o
}

// Normalize dispatches to the type-specific Normalize.
func Normalize(rec Record) Record {
	switch r := rec.(type) {
	case Trap:
		return r.Normalize()
	case Inspection:
		return r.Normalize()
	case AlertRule:
		return r.Normalize()
	case Message:
		return r.Normalize()
	case Media:
		return r.Normalize()
	case OutboxItem:
		return r.Normalize()
	default:
		return rec
	}
}
