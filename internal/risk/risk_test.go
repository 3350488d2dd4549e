package risk

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/testutil"
)

func series(trapID string, adults []int, temp float64) []record.Inspection {
	out := make([]record.Inspection, len(adults))
	for i, a := range adults {
		date := fmt.Sprintf("2026-10-%02d", i+1)
		insp := testutil.Inspection("i"+date, trapID, date, a, 0)
		insp.Temperature = testutil.Float(temp)
		out[i] = insp
	}
	return out
}

func TestScore_AdultsOnly(t *testing.T) {
	insps := series("t1", []int{2, 4, 6, 8, 10, 1, 1}, 18)

	score := Score(insps)
	assert.Equal(t, 34, score)
	assert.Equal(t, Low, LabelFor(score))
}

func TestScore_Empty(t *testing.T) {
	assert.Equal(t, 0, Score(nil))
	assert.Equal(t, 0, Score([]record.Inspection{}))
}

func TestScore_Saturates(t *testing.T) {
	insps := series("t1", []int{20, 20, 20}, 40)
	insps[1].Larvae = 3

	score := Score(insps)
	assert.Equal(t, 100, score)
	assert.Equal(t, High, LabelFor(score))
}

func TestScore_LarvaeAndModerateAdults(t *testing.T) {
	insps := series("t1", []int{4, 4}, 10)
	insps[0].Larvae = 1

	score := Score(insps)
	assert.Equal(t, 55, score)
	assert.Equal(t, Medium, LabelFor(score))
}

func TestScore_MissingTemperatureCountsAsZero(t *testing.T) {
	insps := series("t1", []int{0, 0}, 30)
	insps[1].Temperature = nil

	// avgTemp = 15, below the 18 degree floor
	assert.Equal(t, 0, Score(insps))
}

func TestScore_UsesLastSevenByDate(t *testing.T) {
	insps := series("t1", []int{80, 0, 0, 0, 0, 0, 0, 0}, 18)
	// Reverse so input order differs from date order.
	for i, j := 0, len(insps)-1; i < j; i, j = i+1, j-1 {
		insps[i], insps[j] = insps[j], insps[i]
	}

	assert.Equal(t, 0, Score(insps), "the oldest inspection is outside the window")
}

func TestScore_StaysInRange(t *testing.T) {
	for _, adults := range [][]int{{0}, {1000}, {3, 7, 1}} {
		for _, temp := range []float64{-40, 0, 18, 24, 60} {
			s := Score(series("t1", adults, temp))
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}
	}
}

func TestLabelFor_Boundaries(t *testing.T) {
	assert.Equal(t, High, LabelFor(75))
	assert.Equal(t, Medium, LabelFor(74))
	assert.Equal(t, Medium, LabelFor(45))
	assert.Equal(t, Low, LabelFor(44))
	assert.Equal(t, Low, LabelFor(0))
}

func TestForTrapAndRank(t *testing.T) {
	s := testutil.OpenStore(t, nil)
	ctx := context.Background()

	testutil.Put(t, s,
		testutil.Trap("t1", "North", 41.03, 16.85),
		testutil.Trap("t2", "South", 41.02, 16.85),
		testutil.Trap("t3", "Idle", 41.01, 16.85),
		testutil.Inspection("i1", "t1", "2026-10-18", 8, 0),
		testutil.Inspection("i2", "t2", "2026-10-18", 4, 1),
	)

	score, err := ForTrap(ctx, s, "t1")
	require.NoError(t, err)
	assert.Equal(t, 60, score)

	ranked, err := Rank(ctx, s)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "t1", ranked[0].Trap.ID)
	assert.Equal(t, "t2", ranked[1].Trap.ID)
	assert.Equal(t, 55, ranked[1].Score)
	assert.Equal(t, Medium, ranked[1].Level)
	assert.Equal(t, "t3", ranked[2].Trap.ID)
	assert.Equal(t, 0, ranked[2].Score)
}
