package field

import (
	"testing"

	"github.com/annel0/burrow/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SequentialIDsAndLinks(t *testing.T) {
	f := newFixture(t)
	farm, under := f.reg.AddPlotPair()
	barn := f.reg.AddStorage(action.RoleFarmer, 1)

	assert.Equal(t, uint64(1), farm.ID())
	assert.Equal(t, uint64(2), under.ID())
	assert.Equal(t, uint64(3), barn.ID())
	assert.Same(t, under, farm.Linked())
	assert.Same(t, farm, under.Linked())

	got, ok := f.reg.Interactable(3)
	require.True(t, ok)
	assert.Same(t, barn, got)
	_, ok = f.reg.Interactable(42)
	assert.False(t, ok)
}

func TestRegistry_SnapshotAndRanked(t *testing.T) {
	f := newFixture(t)
	farmA, _ := f.reg.AddPlotPair()
	farmB, underB := f.reg.AddPlotPair()
	f.reg.AddStorage(action.RoleMole, 0)

	_, err := farmA.Apply(StateFarmRipe)
	require.NoError(t, err)
	_, err = farmB.Apply(StateFarmRipe)
	require.NoError(t, err)
	_, err = underB.Apply(StateUndergroundTunnel)
	require.NoError(t, err)

	snap := f.reg.Snapshot()
	require.Len(t, snap, 5)
	assert.Equal(t, Snapshot{ID: 1, Kind: "farm", State: StateFarmRipe, Priority: 50, Active: true, Linked: 2}, snap[0])
	assert.Equal(t, Snapshot{ID: 5, Kind: KindStorage, State: "stock:0", Active: true}, snap[4])

	ranked := f.reg.Ranked()
	require.Len(t, ranked, 4)
	ids := make([]uint64, 0, len(ranked))
	for _, row := range ranked {
		ids = append(ids, row.ID)
	}
	// farmB критична (100), ход под ней 60, farmA 50, нетронутая земля 10
	assert.Equal(t, []uint64{3, 4, 1, 2}, ids)
}

func TestRegistry_RestoreRoundTrip(t *testing.T) {
	src := newFixture(t)
	farm, under := src.reg.AddPlotPair()
	barn := src.reg.AddStorage(action.RoleFarmer, 0)
	_, err := under.Apply(StateUndergroundOpen)
	require.NoError(t, err)
	_, err = farm.Apply(StateFarmMound)
	require.NoError(t, err)
	_, err = barn.Apply("stock:7")
	require.NoError(t, err)
	farm.SetActive(false)

	dst := newFixture(t)
	dst.reg.AddPlotPair()
	dst.reg.AddStorage(action.RoleFarmer, 0)

	require.NoError(t, dst.reg.Restore(src.reg.Snapshot()))
	assert.Equal(t, src.reg.Snapshot(), dst.reg.Snapshot())

	// Повторное восстановление ничего не меняет
	e, _ := dst.reg.Entity(1)
	enters, _ := e.Lifecycle()
	require.NoError(t, dst.reg.Restore(src.reg.Snapshot()))
	again, _ := e.Lifecycle()
	assert.Equal(t, enters, again)
}

func TestRegistry_RestoreUnknown(t *testing.T) {
	f := newFixture(t)
	err := f.reg.Restore([]Snapshot{{ID: 9, Kind: "farm", State: StateFarmEmpty}})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}
