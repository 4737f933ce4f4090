package booking

import (
	"context"
	"errors"
	"time"

	"ms-reservation/internal/models"
)

// Store is the persistent side of the booking engine. Every mutation runs
// through RunInTx; the read methods serve the query endpoints.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	ListTickets(ctx context.Context, tier models.Tier) ([]*models.Ticket, error)
	GetTicketByPNR(ctx context.Context, pnr string) (*models.Ticket, error)
	CountFreeByType(ctx context.Context) (map[models.BerthType]int, error)
}

// UnitOfWork is one open transaction. Implementations return ErrNotFound,
// ErrTransientConflict or a StorageFailure so the orchestrator can decide
// whether to retry.
type UnitOfWork interface {
	// LockInventory takes the exclusive inventory lock for the train.
	LockInventory(ctx context.Context, trainID int64) error
	// FreeBerths lists claimable berths in allocation order, locked.
	FreeBerths(ctx context.Context) ([]*models.Berth, error)
	// AdultsInTier counts berth-needing passengers on tickets in tier. With
	// unberthedOnly set, passengers already holding a berth are skipped.
	AdultsInTier(ctx context.Context, trainID int64, tier models.Tier, unberthedOnly bool) (int, error)
	PNRExists(ctx context.Context, pnr string) (bool, error)
	// CreateTicket inserts the ticket and its passengers.
	CreateTicket(ctx context.Context, t *models.Ticket) error
	// ClaimBerth fails with ErrTransientConflict when the berth is no longer free.
	ClaimBerth(ctx context.Context, berthID int64, passengerID string) error
	// GetTicket loads a ticket with passengers and berths.
	GetTicket(ctx context.Context, id string, lock bool) (*models.Ticket, error)
	// OldestTicket returns the locked FIFO head of tier, or nil when empty.
	OldestTicket(ctx context.Context, trainID int64, tier models.Tier) (*models.Ticket, error)
	// UpdateTier moves a ticket from one tier to another. It fails with
	// ErrTransientConflict when the ticket is no longer in from.
	UpdateTier(ctx context.Context, ticketID string, from, to models.Tier) error
	ReleaseBerths(ctx context.Context, passengerIDs []string) (int, error)
	DeleteTicket(ctx context.Context, ticketID string) error
}

type AvailabilityCache interface {
	Get(ctx context.Context) (map[models.BerthType]int, bool, error)
	Set(ctx context.Context, counts map[models.BerthType]int) error
	Invalidate(ctx context.Context) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev models.TicketEvent) error
}

// Publishers fans one event out to every sink. All sinks are attempted even
// when an earlier one fails.
type Publishers []EventPublisher

func (ps Publishers) Publish(ctx context.Context, ev models.TicketEvent) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Validator interface {
	ValidateBooking(req *models.BookingRequest) error
}

// Recorder receives booking metrics.
type Recorder interface {
	ObserveOperation(op, outcome string, d time.Duration)
	ObserveTier(tier models.Tier)
	IncPromotion(from, to models.Tier)
	IncRetry(op string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}
func (nopRecorder) ObserveTier(models.Tier)                        {}
func (nopRecorder) IncPromotion(models.Tier, models.Tier)          {}
func (nopRecorder) IncRetry(string)                                {}
