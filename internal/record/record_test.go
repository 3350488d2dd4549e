package record

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTrap() Trap {
	return Trap{
		ID:     "trap_1",
		Name:   "Loseto Nord",
		Lat:    41.03,
		Lng:    16.85,
		Status: StatusActive,
	}
}

func TestTrapValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Trap)
		wantErr bool
	}{
		{"valid", func(*Trap) {}, false},
		{"missing name", func(tr *Trap) { tr.Name = "" }, true},
		{"lat out of range", func(tr *Trap) { tr.Lat = 91 }, true},
		{"lat NaN", func(tr *Trap) { tr.Lat = math.NaN() }, true},
		{"lng infinite", func(tr *Trap) { tr.Lng = math.Inf(1) }, true},
		{"unknown status", func(tr *Trap) { tr.Status = "Broken" }, true},
		{"bad install date", func(tr *Trap) { tr.InstallDate = "19/10/2026" }, true},
		{"good install date", func(tr *Trap) { tr.InstallDate = "2026-10-19" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrap()
			tt.mutate(&tr)
			err := Validate(tr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInspectionValidate(t *testing.T) {
	insp := Inspection{ID: "insp_1", TrapID: "trap_1", Date: "2026-10-19", Source: SourceManual}
	require.NoError(t, Validate(insp))

	neg := insp
	neg.Larvae = -1
	assert.Error(t, Validate(neg))

	noDate := insp
	noDate.Date = ""
	assert.Error(t, Validate(noDate))

	badSource := insp
	badSource.Source = "satellite"
	assert.Error(t, Validate(badSource))
}

func TestParseStatus_LegacyLabels(t *testing.T) {
	assert.Equal(t, StatusActive, ParseStatus("Attiva"))
	assert.Equal(t, StatusMaintenance, ParseStatus("In manutenzione"))
	assert.Equal(t, StatusDecommissioned, ParseStatus("dismessa"))
	assert.Equal(t, StatusActive, ParseStatus(""))
	assert.Equal(t, TrapStatus("Broken"), ParseStatus("Broken"))
}

func TestTrapNormalize_NFC(t *testing.T) {
	// "Città" written with a combining grave accent.
	decomposed := "Citta\u0300"
	tr := Trap{Name: "  " + decomposed + " ", Tags: []string{" a ", "", decomposed}}

	got := tr.Normalize()
	assert.Equal(t, "Citt\u00e0", got.Name)
	assert.Equal(t, []string{"a", "Citt\u00e0"}, got.Tags)
	assert.Equal(t, StatusActive, got.Status)
}

func TestInspectionNormalize_Defaults(t *testing.T) {
	got := Inspection{ID: "insp_1"}.Normalize()
	assert.Equal(t, SourceManual, got.Source)
	assert.NotNil(t, got.MediaIDs)
	assert.Empty(t, got.MediaIDs)
}

func TestNormalize_Dispatch(t *testing.T) {
	got := Normalize(OutboxItem{ID: "wa_1"})
	item, ok := got.(OutboxItem)
	require.True(t, ok)
	assert.Equal(t, OutboxPending, item.Status)
	assert.Equal(t, ChannelWhatsApp, item.Channel)
}

func TestRecordCollections(t *testing.T) {
	assert.Equal(t, Traps, Trap{}.Collection())
	assert.Equal(t, Inspections, Inspection{}.Collection())
	assert.Equal(t, Alerts, AlertRule{}.Collection())
	assert.Equal(t, Messages, Message{}.Collection())
	assert.Equal(t, MediaItems, Media{}.Collection())
	assert.Equal(t, Outbox, OutboxItem{}.Collection())
}

func TestUUIDv7IDs(t *testing.T) {
	a := NewID(PrefixTrap)
	b := NewID(PrefixTrap)
	assert.True(t, strings.HasPrefix(a, "trap_"))
	assert.Len(t, a, len("trap_")+36)
	assert.NotEqual(t, a, b)
}

func TestSequenceIDs(t *testing.T) {
	var g SequenceIDs
	assert.Equal(t, "trap_1", g.NewID(PrefixTrap))
	assert.Equal(t, "trap_2", g.NewID(PrefixTrap))
	assert.Equal(t, "msg_1", g.NewID(PrefixMessage))
}

func TestSettingsFromFields_MergesOverDefaults(t *testing.T) {
	s, err := SettingsFromFields(map[string]json.RawMessage{
		"nearRadiusM": json.RawMessage(`150`),
		"unit":        json.RawMessage(`"trappole"`),
	})
	require.NoError(t, err)

	assert.Equal(t, 150.0, s.NearRadiusM)
	assert.Equal(t, 5.0, s.DefaultThreshold)
	assert.True(t, s.EnableNearbyAlert)
	assert.True(t, s.EnableWhatsappAlerts)
	assert.False(t, s.EnableWhatsappNearby)
	assert.NotNil(t, s.Contacts)
}

func TestSettingsPatch_OnlySetFields(t *testing.T) {
	radius := 120.0
	fields, err := SettingsPatch{NearRadiusM: &radius}.Fields()
	require.NoError(t, err)
	assert.Len(t, fields, 1)
	assert.JSONEq(t, `120`, string(fields["nearRadiusM"]))
}

func TestMergeFields_KeepsUnknownKeys(t *testing.T) {
	base := map[string]json.RawMessage{"unit": json.RawMessage(`"trappole"`), "nearRadiusM": json.RawMessage(`300`)}
	patch := map[string]json.RawMessage{"nearRadiusM": json.RawMessage(`200`)}

	merged := MergeFields(base, patch)
	assert.JSONEq(t, `"trappole"`, string(merged["unit"]))
	assert.JSONEq(t, `200`, string(merged["nearRadiusM"]))
	assert.JSONEq(t, `300`, string(base["nearRadiusM"]), "base must not be mutated")
}

func TestAlertRuleLabel(t *testing.T) {
	assert.Equal(t, "note", AlertRule{Name: "name", Note: "note"}.Label())
	assert.Equal(t, "name", AlertRule{Name: "name"}.Label())
}
