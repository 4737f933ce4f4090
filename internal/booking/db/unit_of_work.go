package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	berthdb "ms-reservation/internal/berths/db"
	"ms-reservation/internal/booking"
	"ms-reservation/internal/database"
	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

type unitOfWork struct {
	tx     bun.Tx
	berths *berthdb.DB
}

var _ booking.UnitOfWork = (*unitOfWork)(nil)

// LockInventory locks the train row. Every booking and cancellation takes
// this lock first, so berth and ticket locks are always acquired in the
// same order.
func (u *unitOfWork) LockInventory(ctx context.Context, trainID int64) error {
	var train models.Train
	q := u.tx.NewSelect().
		Model(&train).
		Where("tr.id = ?", trainID)
	err := database.ForUpdate(q, u.tx).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.NewValidationError(booking.FieldError{Field: "trainId", Message: "unknown train"})
	}
	if err != nil {
		return fmt.Errorf("lock train %d: %w", trainID, err)
	}
	return nil
}

func (u *unitOfWork) FreeBerths(ctx context.Context) ([]*models.Berth, error) {
	return u.berths.FreeConfirmed(ctx, true)
}

func (u *unitOfWork) AdultsInTier(ctx context.Context, trainID int64, tier models.Tier, unberthedOnly bool) (int, error) {
	q := u.tx.NewSelect().
		Model((*models.Passenger)(nil)).
		Join("JOIN tickets AS t ON t.id = p.ticket_id").
		Where("t.train_id = ?", trainID).
		Where("t.tier = ?", tier).
		Where("p.age >= ?", models.ChildAgeThreshold)
	if unberthedOnly {
		q = q.Where("NOT EXISTS (SELECT 1 FROM berths AS b WHERE b.passenger_id = p.id)")
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s adults: %w", tier, err)
	}
	return n, nil
}

func (u *unitOfWork) PNRExists(ctx context.Context, pnr string) (bool, error) {
	exists, err := u.tx.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("t.pnr = ?", pnr).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check pnr: %w", err)
	}
	return exists, nil
}

func (u *unitOfWork) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if _, err := u.tx.NewInsert().Model(t).Exec(ctx); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	if len(t.Passengers) == 0 {
		return nil
	}
	if _, err := u.tx.NewInsert().Model(&t.Passengers).Exec(ctx); err != nil {
		return fmt.Errorf("insert passengers: %w", err)
	}
	return nil
}

func (u *unitOfWork) ClaimBerth(ctx context.Context, berthID int64, passengerID string) error {
	err := u.berths.ClaimBerth(ctx, berthID, passengerID)
	if errors.Is(err, berthdb.ErrBerthTaken) {
		return fmt.Errorf("%w: %v", booking.ErrTransientConflict, err)
	}
	return err
}

func (u *unitOfWork) GetTicket(ctx context.Context, id string, lock bool) (*models.Ticket, error) {
	var ticket models.Ticket
	q := u.tx.NewSelect().
		Model(&ticket).
		Where("t.id = ?", id)
	if lock {
		q = database.ForUpdate(q, u.tx)
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	if err := loadPassengers(ctx, u.tx, []*models.Ticket{&ticket}); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (u *unitOfWork) OldestTicket(ctx context.Context, trainID int64, tier models.Tier) (*models.Ticket, error) {
	var ticket models.Ticket
	q := u.tx.NewSelect().
		Model(&ticket).
		Where("t.train_id = ?", trainID).
		Where("t.tier = ?", tier).
		OrderExpr("t.booked_at ASC, t.id ASC").
		Limit(1)
	err := database.ForUpdate(q, u.tx).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("oldest %s ticket: %w", tier, err)
	}
	if err := loadPassengers(ctx, u.tx, []*models.Ticket{&ticket}); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (u *unitOfWork) UpdateTier(ctx context.Context, ticketID string, from, to models.Tier) error {
	res, err := u.tx.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("tier = ?", to).
		Where("id = ?", ticketID).
		Where("tier = ?", from).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("promote ticket %s: %w", ticketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("promote ticket %s: %w", ticketID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: ticket %s is no longer %s", booking.ErrTransientConflict, ticketID, from)
	}
	return nil
}

func (u *unitOfWork) ReleaseBerths(ctx context.Context, passengerIDs []string) (int, error) {
	return u.berths.ReleaseByPassengers(ctx, passengerIDs)
}

func (u *unitOfWork) DeleteTicket(ctx context.Context, ticketID string) error {
	_, err := u.tx.NewDelete().
		Model((*models.Passenger)(nil)).
		Where("ticket_id = ?", ticketID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete passengers of %s: %w", ticketID, err)
	}

	res, err := u.tx.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id = ?", ticketID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", ticketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", ticketID, err)
	}
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}
