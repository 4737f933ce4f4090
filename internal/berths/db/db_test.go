package db_test

import (
	"context"
	"errors"
	"testing"

	berthdb "ms-reservation/internal/berths/db"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database/dbtest"
	"ms-reservation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceLayout() config.InventoryConfig {
	return config.InventoryConfig{
		TrainName:         "Express",
		TrainNumber:       "12951",
		Coaches:           3,
		SeatsPerCoach:     21,
		SideCoaches:       3,
		SideSeatsPerCoach: 3,
	}
}

func setupInventory(t *testing.T) *berthdb.DB {
	t.Helper()
	d := berthdb.New(dbtest.New(t))
	n, err := d.Seed(context.Background(), referenceLayout())
	require.NoError(t, err)
	require.Equal(t, 72, n)
	return d
}

func TestBuildLayout(t *testing.T) {
	berths := berthdb.BuildLayout(referenceLayout())
	require.Len(t, berths, 72)

	byType := map[models.BerthType]int{}
	for _, b := range berths {
		byType[b.Type]++
	}
	assert.Equal(t, 21, byType[models.BerthLower])
	assert.Equal(t, 21, byType[models.BerthMiddle])
	assert.Equal(t, 21, byType[models.BerthUpper])
	assert.Equal(t, 9, byType[models.BerthSideLower])

	assert.Equal(t, "A1", berths[0].CoachNumber)
	assert.Equal(t, "101", berths[0].SeatNumber)
	assert.Equal(t, models.BerthLower, berths[0].Type)
	assert.Equal(t, models.BerthUpper, berths[2].Type)
	assert.Equal(t, "R301", berths[69].SeatNumber)
}

func TestSeedIsIdempotent(t *testing.T) {
	d := setupInventory(t)

	n, err := d.Seed(context.Background(), referenceLayout())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnsureTrain(t *testing.T) {
	d := berthdb.New(dbtest.New(t))
	ctx := context.Background()

	first, err := d.EnsureTrain(ctx, "Express", "12951")
	require.NoError(t, err)
	second, err := d.EnsureTrain(ctx, "Renamed", "12951")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Express", second.Name)
}

func TestFreeConfirmedOrdering(t *testing.T) {
	d := setupInventory(t)

	free, err := d.FreeConfirmed(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, free, 63)

	for i := 1; i < len(free); i++ {
		prev, cur := free[i-1], free[i]
		assert.NotEqual(t, models.BerthSideLower, cur.Type)
		if prev.Type == cur.Type {
			assert.Less(t, prev.ID, cur.ID)
		} else {
			assert.Less(t, string(prev.Type), string(cur.Type))
		}
	}
	assert.Equal(t, models.BerthLower, free[0].Type)
}

func TestClaimAndRelease(t *testing.T) {
	d := setupInventory(t)
	ctx := context.Background()

	free, err := d.FreeConfirmed(ctx, false)
	require.NoError(t, err)
	target := free[0]

	require.NoError(t, d.ClaimBerth(ctx, target.ID, "p-1"))

	err = d.ClaimBerth(ctx, target.ID, "p-2")
	assert.True(t, errors.Is(err, berthdb.ErrBerthTaken))

	allocated, err := d.CountAllocated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, allocated)

	held, err := d.ByPassengers(ctx, []string{"p-1"})
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, target.ID, held[0].ID)

	counts, err := d.CountFreeByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, counts[target.Type])
	assert.Equal(t, 9, counts[models.BerthSideLower])

	released, err := d.ReleaseByPassengers(ctx, []string{"p-1", "p-unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	allocated, err = d.CountAllocated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, allocated)

	require.NoError(t, d.ClaimBerth(ctx, target.ID, "p-2"), "released berth can be claimed again")
}

func TestReleaseWithNoPassengers(t *testing.T) {
	d := setupInventory(t)
	n, err := d.ReleaseByPassengers(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
