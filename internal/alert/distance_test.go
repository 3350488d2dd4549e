package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/sentinel/internal/record"
)

func TestDistanceM(t *testing.T) {
	assert.InDelta(t, 0, DistanceM(site, site), 1e-9)
	// One degree of latitude on a 6371 km sphere.
	assert.InDelta(t, 111194.93, DistanceM(record.Position{Lat: 0, Lng: 0}, record.Position{Lat: 1, Lng: 0}), 0.01)
	assert.InDelta(t, 150, DistanceM(site, north(site, 150)), 0.001)
}

func TestNearbyTraps(t *testing.T) {
	a := north(site, 50)
	b := north(site, 250)
	traps := []record.Trap{
		{ID: "far", Lat: b.Lat, Lng: b.Lng},
		{ID: "near", Lat: a.Lat, Lng: a.Lng},
		{ID: "out", Lat: site.Lat + 1, Lng: site.Lng},
	}

	got := NearbyTraps(site, traps, 300)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "near", got[0].Trap.ID)
		assert.Equal(t, "far", got[1].Trap.ID)
	}
	assert.Empty(t, NearbyTraps(site, traps, 10))
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "18 Oct 2026", displayDate("2026-10-18"))
	assert.Equal(t, "yesterday", displayDate("yesterday"))
	assert.Equal(t, "-", displayDate(""))
}
