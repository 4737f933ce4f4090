package db_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	berthdb "ms-reservation/internal/berths/db"
	"ms-reservation/internal/booking"
	bookingdb "ms-reservation/internal/booking/db"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database/dbtest"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLockTimeoutIsTransient(t *testing.T) {
	bunDB := dbtest.Postgres(t)
	ctx := context.Background()

	train, err := berthdb.New(bunDB).EnsureTrain(ctx, "Express", "12951")
	require.NoError(t, err)

	holder, err := bunDB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer holder.Rollback()
	_, err = holder.ExecContext(ctx, "SELECT id FROM trains WHERE id = ? FOR UPDATE", train.ID)
	require.NoError(t, err)

	store := bookingdb.New(bunDB, 100*time.Millisecond)
	start := time.Now()
	err = store.RunInTx(ctx, func(ctx context.Context, uow booking.UnitOfWork) error {
		return uow.LockInventory(ctx, train.ID)
	})

	assert.True(t, errors.Is(err, booking.ErrTransientConflict), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPostgresConcurrentBookingsAndCancels(t *testing.T) {
	bunDB := dbtest.Postgres(t)
	ctx := context.Background()

	layout := config.InventoryConfig{Coaches: 3, SeatsPerCoach: 21, SideCoaches: 3, SideSeatsPerCoach: 3}
	inventory := berthdb.New(bunDB)
	train, err := inventory.EnsureTrain(ctx, "Express", "12951")
	require.NoError(t, err)
	_, err = inventory.Seed(ctx, layout)
	require.NoError(t, err)

	svc := booking.NewBookingService(
		bookingdb.New(bunDB, 2*time.Second),
		nil, nil,
		validation.New(),
		logger.Discard(),
		booking.Options{
			TrainID:           train.ID,
			BaseFare:          500,
			ConfirmedCapacity: layout.ConfirmedCapacity(),
			RACCapacity:       9,
			WaitingCapacity:   10,
			MaxAttempts:       10,
			RetryInitial:      5 * time.Millisecond,
			RetryMax:          100 * time.Millisecond,
			PNRAttempts:       5,
		},
	)

	const attempts = 90
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		booked   []*models.Ticket
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket, err := svc.Book(ctx, &models.BookingRequest{
				TrainID: train.ID,
				Passengers: []models.PassengerRequest{
					{Name: fmt.Sprintf("Passenger %d", i), Age: 30, Gender: "other"},
				},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked = append(booked, ticket)
			case errors.Is(err, booking.ErrRejected):
				rejected++
			default:
				t.Errorf("booking %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, booked, 82)
	assert.Equal(t, 8, rejected)

	// cancel a handful of confirmed tickets concurrently; the cascade must
	// keep every tier inside its capacity
	var confirmed []*models.Ticket
	for _, tk := range booked {
		if tk.Tier == models.TierConfirmed && len(confirmed) < 5 {
			confirmed = append(confirmed, tk)
		}
	}
	for _, tk := range confirmed {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Cancel(ctx, id)
			assert.NoError(t, err)
		}(tk.ID)
	}
	wg.Wait()

	tiers := map[models.Tier]int{}
	for _, tier := range []models.Tier{models.TierConfirmed, models.TierRAC, models.TierWaiting} {
		list, err := svc.ListBooked(ctx, string(tier))
		require.NoError(t, err)
		tiers[tier] = len(list)
	}
	assert.Equal(t, 63, tiers[models.TierConfirmed])
	assert.Equal(t, 9, tiers[models.TierRAC])
	assert.Equal(t, 5, tiers[models.TierWaiting])

	var shared int
	err = bunDB.NewRaw(`SELECT COUNT(*) FROM (
		SELECT passenger_id FROM berths WHERE passenger_id IS NOT NULL GROUP BY passenger_id HAVING COUNT(*) > 1
	) dup`).Scan(ctx, &shared)
	require.NoError(t, err)
	assert.Zero(t, shared)

	allocated, err := inventory.CountAllocated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 63, allocated)
}
