package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/authority"
	"github.com/annel0/burrow/internal/config"
	"github.com/annel0/burrow/internal/field"
	"github.com/annel0/burrow/internal/schedule"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepoContract общие проверки для всех реализаций StateRepo
func testRepoContract(t *testing.T, repo StateRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		rows := []field.Snapshot{
			{ID: 2, Kind: "underground", State: field.StateUndergroundTunnel, Priority: 60, Active: true, Linked: 1},
			{ID: 1, Kind: "farm", State: field.StateFarmRipe, Priority: 100, Active: true, Linked: 2},
		}
		require.NoError(t, repo.Save(ctx, rows))

		got, found, err := repo.Load(ctx, 1)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, rows[1], got)
	})

	t.Run("Load Missing", func(t *testing.T) {
		_, found, err := repo.Load(ctx, 999)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Overwrite and LoadAll Sorted", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, []field.Snapshot{
			{ID: 1, Kind: "farm", State: field.StateFarmEmpty, Priority: 10, Active: true, Linked: 2},
			{ID: 300, Kind: field.KindStorage, State: "stock:3", Active: true},
		}))

		all, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uint64{1, 2, 300}, []uint64{all[0].ID, all[1].ID, all[2].ID})
		assert.Equal(t, field.StateFarmEmpty, all[0].State)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, 300))
		assert.ErrorIs(t, repo.Delete(ctx, 300), ErrNotFound)
	})

	t.Run("Invalid Rows", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, []field.Snapshot{{ID: 0, State: field.StateFarmEmpty}}))
		assert.Error(t, repo.Save(ctx, []field.Snapshot{{ID: 5}}))
	})
}

func TestMemoryStateRepo(t *testing.T) {
	repo := NewMemoryStateRepo()
	defer repo.Close()
	testRepoContract(t, repo)
	assert.Equal(t, 2, repo.Count())
}

// TestRedisStateRepo требует живой Redis: BURROW_TEST_REDIS=localhost:6379
func TestRedisStateRepo(t *testing.T) {
	addr := os.Getenv("BURROW_TEST_REDIS")
	if addr == "" {
		t.Skip("BURROW_TEST_REDIS не задан")
	}

	// Уникальный префикс изолирует прогоны на общем сервере
	repo, err := NewRedisStateRepo(&RedisConfig{Addr: addr, KeyPrefix: "burrow:test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		if rows, err := repo.LoadAll(ctx); err == nil {
			for _, row := range rows {
				_ = repo.Delete(ctx, row.ID)
			}
		}
		_ = repo.Close()
	})

	testRepoContract(t, repo)

	all, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBadgerStateRepo(t *testing.T) {
	repo, err := NewBadgerStateRepo(t.TempDir())
	require.NoError(t, err)
	testRepoContract(t, repo)
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	_, err = repo.LoadAll(context.Background())
	assert.Error(t, err)
}

func TestBadgerStateRepo_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewBadgerStateRepo(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), []field.Snapshot{{ID: 7, Kind: "farm", State: field.StateFarmMound}}))
	require.NoError(t, repo.Close())

	repo, err = NewBadgerStateRepo(dir)
	require.NoError(t, err)
	defer repo.Close()
	row, found, err := repo.Load(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, field.StateFarmMound, row.State)
}

func TestOpen_Backends(t *testing.T) {
	repo, err := Open(config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStateRepo{}, repo)

	repo, err = Open(config.StorageConfig{Backend: "badger", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStateRepo{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(config.StorageConfig{Backend: "mysql"})
	assert.Error(t, err)
}

func newRegistry() *field.Registry {
	reg := field.NewRegistry(field.NewEnv(authority.NewGate(nil), schedule.NewScheduler()))
	reg.AddPlotPair()
	reg.AddStorage(action.RoleFarmer, 0)
	return reg
}

func TestAutosaver_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStateRepo()
	reg := newRegistry()
	saver := NewAutosaver(repo, reg, 0)

	wrote, err := saver.SaveNow(ctx)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = saver.SaveNow(ctx)
	require.NoError(t, err)
	assert.False(t, wrote)

	_, err = reg.Apply(1, field.StateFarmPlanted)
	require.NoError(t, err)
	wrote, err = saver.SaveNow(ctx)
	require.NoError(t, err)
	assert.True(t, wrote)

	row, found, err := repo.Load(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, field.StateFarmPlanted, row.State)
}

func TestAutosaver_StopSavesFinalSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStateRepo()
	reg := newRegistry()
	saver := NewAutosaver(repo, reg, time.Hour)
	saver.Start(ctx)

	_, err := reg.Apply(3, "stock:5")
	require.NoError(t, err)
	require.NoError(t, saver.Stop(ctx))

	row, found, err := repo.Load(ctx, 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "stock:5", row.State)
}

func TestRestore_SkipsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStateRepo()
	require.NoError(t, repo.Save(ctx, []field.Snapshot{
		{ID: 1, Kind: "farm", State: field.StateFarmRipe, Active: true},
		{ID: 2, Kind: "underground", State: field.StateUndergroundTunnel, Active: true},
		{ID: 3, Kind: field.KindStorage, State: "stock:2", Active: true},
		{ID: 40, Kind: "farm", State: field.StateFarmRipe, Active: true},
	}))

	reg := newRegistry()
	n, err := Restore(ctx, repo, reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ranked := reg.Ranked()
	require.Len(t, ranked, 2)
	assert.Equal(t, uint64(1), ranked[0].ID)
	assert.Equal(t, 100, ranked[0].Priority)

	barn, ok := reg.Storage(3)
	require.True(t, ok)
	assert.Equal(t, 2, barn.Stock())
}

func TestRestore_BadState(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStateRepo()
	require.NoError(t, repo.Save(ctx, []field.Snapshot{{ID: 1, Kind: "farm", State: field.StateUndergroundOpen}}))

	_, err := Restore(ctx, repo, newRegistry())
	assert.ErrorIs(t, err, field.ErrWrongKind)
}
