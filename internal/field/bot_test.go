package field

import (
	"testing"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBot_PlaysRoundAtConfiguredPace(t *testing.T) {
	f := newFixture(t)
	farm, _ := f.reg.AddPlotPair()
	c := farmer(map[Item]int{ItemSeed: 1, ItemWateringCan: 1})

	durations := map[action.Kind]time.Duration{
		action.KindPlant:   300 * time.Millisecond,
		action.KindWater:   500 * time.Millisecond,
		action.KindHarvest: 200 * time.Millisecond,
	}
	bot := NewBot(f.reg, func(kind action.Kind) time.Duration { return durations[kind] }, []Step{
		{Caller: c, Target: farm.ID()},
		{Caller: c, Target: farm.ID()},
		{Caller: c, Target: farm.ID()},
	})

	ticks := bot.Run(f.sched, 100*time.Millisecond, 100)

	assert.Equal(t, 10, ticks)
	assert.Equal(t, time.Second, f.sched.Now())
	assert.Equal(t, StateFarmEmpty, farm.State().Name())
	assert.Equal(t, 1, c.Bag.Count(ItemCarrot))
	assert.Zero(t, c.Bag.Count(ItemSeed))
	assert.Equal(t, BotStats{Completed: 3}, bot.Stats())
}

func TestBot_WaitsForActionBeforeNextStep(t *testing.T) {
	f := newFixture(t)
	farm, _ := f.reg.AddPlotPair()
	c := farmer(map[Item]int{ItemSeed: 1, ItemWateringCan: 1})
	bot := NewBot(f.reg, seconds(1), []Step{
		{Caller: c, Target: farm.ID()},
		{Caller: c, Target: farm.ID()},
	})

	require.True(t, bot.Tick())
	f.sched.Advance(500 * time.Millisecond)
	require.True(t, bot.Tick())
	assert.True(t, farm.State().Busy())
	assert.Equal(t, StateFarmEmpty, farm.State().Name())

	f.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, StateFarmPlanted, farm.State().Name())
	require.True(t, bot.Tick())
	f.sched.Advance(time.Second)
	assert.False(t, bot.Tick())
	assert.Equal(t, StateFarmRipe, farm.State().Name())
}

func TestBot_SkipsIneligibleStep(t *testing.T) {
	f := newFixture(t)
	farm, _ := f.reg.AddPlotPair()
	bot := NewBot(f.reg, seconds(1), []Step{
		{Caller: mole(nil), Target: farm.ID()},
		{Caller: farmer(nil), Target: 999},
	})

	assert.True(t, bot.Tick())
	assert.True(t, bot.Tick())
	assert.False(t, bot.Tick())
	assert.Equal(t, BotStats{Skipped: 2}, bot.Stats())
	assert.Empty(t, f.cues, "Eligible без побочных эффектов")
}
