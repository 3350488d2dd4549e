package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/sentinel/internal/record"
)

func TestTargets(t *testing.T) {
	s := record.DefaultSettings()
	s.WhatsappNumber = "+39 333 111 2233"
	s.Contacts = []record.Contact{
		{Name: "Anna", Role: "agronomist", Phone: "333-444-5566"},
		{Name: "Dup", Phone: "39 333 1112233"},
		{Name: "Empty", Phone: "n/a"},
		{Name: "Marco", Phone: "(080) 555 0101"},
	}

	assert.Equal(t, []Target{
		{Label: DefaultTargetLabel, Phone: "393331112233"},
		{Label: "Anna • agronomist", Phone: "3334445566"},
		{Label: "Marco", Phone: "0805550101"},
	}, Targets(s))
}

func TestTargets_None(t *testing.T) {
	assert.Empty(t, Targets(record.DefaultSettings()))
	assert.NotNil(t, Targets(record.DefaultSettings()))
}

func TestWhatsAppURL(t *testing.T) {
	assert.Equal(t,
		"https://wa.me/393331112233?text=Nearby%20trap%0ANorth%20at%20~150m",
		WhatsAppURL("Nearby trap\nNorth at ~150m", "+39 333 111 2233"))
	assert.Equal(t, "https://wa.me/?text=a%2Bb%26c", WhatsAppURL("a+b&c", ""))
}

func TestText(t *testing.T) {
	item := record.OutboxItem{Title: "Automatic alert", Body: "North"}
	assert.Equal(t, "Automatic alert\nNorth", Text(item))
}
