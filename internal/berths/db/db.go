package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/config"
	"ms-reservation/internal/database"
	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

// ErrBerthTaken is returned when a claim loses the race for a berth.
var ErrBerthTaken = errors.New("berth already allocated")

// DB is the berth inventory. Bun may be the pool or an open transaction.
type DB struct {
	Bun bun.IDB
}

func New(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

// BuildLayout expands the configured coach layout into berth rows. Regular
// coaches cycle LOWER, MIDDLE, UPPER by seat; side coaches are all SIDE_LOWER.
func BuildLayout(layout config.InventoryConfig) []*models.Berth {
	berths := make([]*models.Berth, 0, layout.ConfirmedCapacity()+layout.SideLowerCount())

	for coach := 1; coach <= layout.Coaches; coach++ {
		for seat := 1; seat <= layout.SeatsPerCoach; seat++ {
			var berthType models.BerthType
			switch seat % 3 {
			case 1:
				berthType = models.BerthLower
			case 2:
				berthType = models.BerthMiddle
			default:
				berthType = models.BerthUpper
			}
			berths = append(berths, &models.Berth{
				CoachNumber: fmt.Sprintf("A%d", coach),
				SeatNumber:  fmt.Sprintf("%d%02d", coach, seat),
				Type:        berthType,
			})
		}
	}

	for coach := 1; coach <= layout.SideCoaches; coach++ {
		for seat := 1; seat <= layout.SideSeatsPerCoach; seat++ {
			berths = append(berths, &models.Berth{
				CoachNumber: fmt.Sprintf("R%d", coach),
				SeatNumber:  fmt.Sprintf("R%d%02d", coach, seat),
				Type:        models.BerthSideLower,
			})
		}
	}

	return berths
}

// EnsureTrain returns the train with the given number, creating it if needed.
func (d *DB) EnsureTrain(ctx context.Context, name, number string) (*models.Train, error) {
	var train models.Train
	err := d.Bun.NewSelect().
		Model(&train).
		Where("number = ?", number).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &train, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get train %s: %w", number, err)
	}

	train = models.Train{Name: name, Number: number, CreatedAt: time.Now().UTC()}
	if _, err := d.Bun.NewInsert().Model(&train).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert train %s: %w", number, err)
	}
	return &train, nil
}

// Seed inserts the berth layout when the inventory is empty and reports how
// many rows it created. A populated inventory is left untouched.
func (d *DB) Seed(ctx context.Context, layout config.InventoryConfig) (int, error) {
	count, err := d.Bun.NewSelect().Model((*models.Berth)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count berths: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	berths := BuildLayout(layout)
	if len(berths) == 0 {
		return 0, nil
	}
	if _, err := d.Bun.NewInsert().Model(&berths).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert berths: %w", err)
	}
	return len(berths), nil
}

// FreeConfirmed lists unallocated berths outside the side-lower pool in
// allocation order. With lock set the rows are held until the transaction ends.
func (d *DB) FreeConfirmed(ctx context.Context, lock bool) ([]*models.Berth, error) {
	var berths []*models.Berth
	q := d.Bun.NewSelect().
		Model(&berths).
		Where("is_allocated = ?", false).
		Where("type != ?", models.BerthSideLower).
		OrderExpr("type ASC, id ASC")
	if lock {
		q = database.ForUpdate(q, d.Bun)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list free berths: %w", err)
	}
	return berths, nil
}

// ClaimBerth marks the berth as held by passengerID. The update only matches
// a free berth, so a concurrent claim makes it fail with ErrBerthTaken.
func (d *DB) ClaimBerth(ctx context.Context, berthID int64, passengerID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Berth)(nil)).
		Set("is_allocated = ?", true).
		Set("passenger_id = ?", passengerID).
		Where("id = ?", berthID).
		Where("is_allocated = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("claim berth %d: %w", berthID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim berth %d: %w", berthID, err)
	}
	if n == 0 {
		return fmt.Errorf("claim berth %d: %w", berthID, ErrBerthTaken)
	}
	return nil
}

// ReleaseByPassengers frees every berth held by the given passengers.
func (d *DB) ReleaseByPassengers(ctx context.Context, passengerIDs []string) (int, error) {
	if len(passengerIDs) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Berth)(nil)).
		Set("is_allocated = ?", false).
		Set("passenger_id = NULL").
		Where("passenger_id IN (?)", bun.In(passengerIDs)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("release berths: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release berths: %w", err)
	}
	return int(n), nil
}

// ByPassengers returns the berths currently held by the given passengers.
func (d *DB) ByPassengers(ctx context.Context, passengerIDs []string) ([]*models.Berth, error) {
	var berths []*models.Berth
	if len(passengerIDs) == 0 {
		return berths, nil
	}
	err := d.Bun.NewSelect().
		Model(&berths).
		Where("passenger_id IN (?)", bun.In(passengerIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get berths by passengers: %w", err)
	}
	return berths, nil
}

// CountFreeByType aggregates unallocated berths per type.
func (d *DB) CountFreeByType(ctx context.Context) (map[models.BerthType]int, error) {
	var rows []struct {
		Type  models.BerthType `bun:"type"`
		Count int              `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Berth)(nil)).
		Column("type").
		ColumnExpr("COUNT(*) AS count").
		Where("is_allocated = ?", false).
		Group("type").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count free berths: %w", err)
	}

	free := make(map[models.BerthType]int, len(rows))
	for _, r := range rows {
		free[r.Type] = r.Count
	}
	return free, nil
}

func (d *DB) CountAllocated(ctx context.Context) (int, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Berth)(nil)).
		Where("is_allocated = ?", true).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count allocated berths: %w", err)
	}
	return count, nil
}
