package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	berthdb "ms-reservation/internal/berths/db"
	"ms-reservation/internal/booking"
	"ms-reservation/internal/database"
	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

// DB is the ticket store. It implements booking.Store on top of bun and
// hands out booking.UnitOfWork values bound to one transaction.
type DB struct {
	Bun         *bun.DB
	LockTimeout time.Duration
}

func New(bunDB *bun.DB, lockTimeout time.Duration) *DB {
	return &DB{Bun: bunDB, LockTimeout: lockTimeout}
}

var _ booking.Store = (*DB)(nil)

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, uow booking.UnitOfWork) error) error {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := database.SetLockTimeout(ctx, tx, d.LockTimeout); err != nil {
			return err
		}
		return fn(ctx, &unitOfWork{tx: tx, berths: berthdb.New(tx)})
	})
	return classify("transaction", err)
}

// classify maps driver errors onto the booking error kinds. Errors that
// already carry a kind pass through unchanged.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, booking.ErrRejected),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrTransientConflict),
		errors.Is(err, booking.ErrStorageFailure):
		return err
	case errors.Is(err, berthdb.ErrBerthTaken), database.IsTransient(err):
		return fmt.Errorf("%w: %s: %v", booking.ErrTransientConflict, op, err)
	default:
		return booking.StorageFailure(op, err)
	}
}

// ListTickets returns tickets newest first. An empty tier lists all of them.
func (d *DB) ListTickets(ctx context.Context, tier models.Tier) ([]*models.Ticket, error) {
	tickets := []*models.Ticket{}
	q := d.Bun.NewSelect().
		Model(&tickets).
		OrderExpr("t.booked_at DESC, t.id DESC")
	if tier != "" {
		q = q.Where("t.tier = ?", tier)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, classify("list tickets", err)
	}
	if err := loadPassengers(ctx, d.Bun, tickets); err != nil {
		return nil, classify("list tickets", err)
	}
	return tickets, nil
}

func (d *DB) GetTicketByPNR(ctx context.Context, pnr string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("t.pnr = ?", pnr).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, classify("get ticket by pnr", err)
	}
	if err := loadPassengers(ctx, d.Bun, []*models.Ticket{&ticket}); err != nil {
		return nil, classify("get ticket by pnr", err)
	}
	return &ticket, nil
}

func (d *DB) CountFreeByType(ctx context.Context) (map[models.BerthType]int, error) {
	counts, err := berthdb.New(d.Bun).CountFreeByType(ctx)
	if err != nil {
		return nil, classify("count free berths", err)
	}
	return counts, nil
}

// loadPassengers fills Passengers and their berths for every ticket.
func loadPassengers(ctx context.Context, idb bun.IDB, tickets []*models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	byTicket := make(map[string]*models.Ticket, len(tickets))
	ticketIDs := make([]string, 0, len(tickets))
	for _, t := range tickets {
		t.Passengers = []*models.Passenger{}
		byTicket[t.ID] = t
		ticketIDs = append(ticketIDs, t.ID)
	}

	var passengers []*models.Passenger
	err := idb.NewSelect().
		Model(&passengers).
		Where("p.ticket_id IN (?)", bun.In(ticketIDs)).
		OrderExpr("p.ticket_id ASC, p.seq ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("load passengers: %w", err)
	}
	if len(passengers) == 0 {
		return nil
	}

	passengerIDs := make([]string, 0, len(passengers))
	for _, p := range passengers {
		passengerIDs = append(passengerIDs, p.ID)
	}
	berths, err := berthdb.New(idb).ByPassengers(ctx, passengerIDs)
	if err != nil {
		return err
	}
	byPassenger := make(map[string]*models.Berth, len(berths))
	for _, b := range berths {
		if b.PassengerID != nil {
			byPassenger[*b.PassengerID] = b
		}
	}

	for _, p := range passengers {
		p.Berth = byPassenger[p.ID]
		if t, ok := byTicket[p.TicketID]; ok {
			t.Passengers = append(t.Passengers, p)
		}
	}
	return nil
}
