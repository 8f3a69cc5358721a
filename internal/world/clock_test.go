package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockAdvanceNoRollover(t *testing.T) {
	c := Clock{Day: 1, MinuteOfDay: 1410} // 23:30
	c = c.Advance(15)
	assert.Equal(t, 1, c.Day)
	assert.Equal(t, 1425, c.MinuteOfDay)
}

func TestClockAdvanceRollover(t *testing.T) {
	c := Clock{Day: 1, MinuteOfDay: 1425}
	c = c.Advance(15)
	assert.Equal(t, 2, c.Day, "day increments exactly once on rollover")
	assert.Equal(t, 0, c.MinuteOfDay)
}

func TestClockAdvanceMultiDay(t *testing.T) {
	c := Clock{Day: 1, MinuteOfDay: 0}
	c = c.Advance(3 * MinutesPerDay)
	assert.Equal(t, Clock{Day: 4, MinuteOfDay: 0}, c)
}

// N advances of the increment must equal a single advance of N*increment.
func TestClockAdvanceComposes(t *testing.T) {
	for _, inc := range []int{1, 5, 15, 60, 90, 1439, 1440} {
		stepped := Clock{Day: 2, MinuteOfDay: 317}
		for i := 0; i < 200; i++ {
			stepped = stepped.Advance(inc)
		}
		jumped := Clock{Day: 2, MinuteOfDay: 317}.Advance(200 * inc)
		require.Equal(t, jumped, stepped, "increment %d", inc)
	}
}

func TestClockAbsoluteMinuteMonotonic(t *testing.T) {
	c := Clock{Day: 1, MinuteOfDay: 0}
	prev := c.AbsoluteMinute()
	for i := 0; i < 500; i++ {
		c = c.Advance(15)
		abs := c.AbsoluteMinute()
		require.Greater(t, abs, prev)
		require.GreaterOrEqual(t, c.MinuteOfDay, 0)
		require.Less(t, c.MinuteOfDay, MinutesPerDay)
		require.GreaterOrEqual(t, c.Day, 1)
		prev = abs
	}
}

func TestCanonicalPairSymmetric(t *testing.T) {
	loAB, hiAB := CanonicalPair("npc-b", "npc-a")
	loBA, hiBA := CanonicalPair("npc-a", "npc-b")
	assert.Equal(t, loAB, loBA)
	assert.Equal(t, hiAB, hiBA)
	assert.Equal(t, PairKey("npc-b", "npc-a"), PairKey("npc-a", "npc-b"))
}

func TestActionStartAbsolute(t *testing.T) {
	ai := ActionInstance{StartMin: 540}
	assert.Equal(t, 540, ai.StartAbsolute(1))
	assert.Equal(t, MinutesPerDay+540, ai.StartAbsolute(2))
}
