package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/utils"

	"github.com/google/uuid"
)

// Options are the fixed capacities and policies of one deployment.
type Options struct {
	TrainID           int64
	BaseFare          float64
	ConfirmedCapacity int
	RACCapacity       int
	WaitingCapacity   int
	MaxAttempts       int
	RetryInitial      time.Duration
	RetryMax          time.Duration
	PNRAttempts       int
}

type BookingService struct {
	DB        Store
	Cache     AvailabilityCache
	Events    EventPublisher
	Validator Validator
	Metrics   Recorder
	Logger    *logger.Logger

	Now    func() time.Time
	NewPNR func() (string, error)
	NewID  func() string

	opts    Options
	cascade PromotionCascade
}

func NewBookingService(db Store, cache AvailabilityCache, events EventPublisher, validator Validator, log *logger.Logger, opts Options) *BookingService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.PNRAttempts < 1 {
		opts.PNRAttempts = 1
	}
	return &BookingService{
		DB:        db,
		Cache:     cache,
		Events:    events,
		Validator: validator,
		Metrics:   nopRecorder{},
		Logger:    log,
		Now:       time.Now,
		NewPNR:    utils.GeneratePNR,
		NewID:     uuid.NewString,
		opts:      opts,
	}
}

func (s *BookingService) Options() Options {
	return s.opts
}

// Book admits the party into a tier, persists it and assigns berths.
func (s *BookingService) Book(ctx context.Context, req *models.BookingRequest) (*models.Ticket, error) {
	start := time.Now()
	ticket, err := s.book(ctx, req)
	s.Metrics.ObserveOperation("book", Kind(err), time.Since(start))
	if err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("Booking failed (%s): %v", Kind(err), err))
		return nil, err
	}

	s.Metrics.ObserveTier(ticket.Tier)
	s.Logger.LogBooking("BOOK", ticket.PNR, fmt.Sprintf("tier %s, %d passengers, fare %.2f", ticket.Tier, len(ticket.Passengers), ticket.TotalFare))
	s.afterCommit(ctx, models.NewTicketEvent(models.TicketEventBooked, ticket, s.Now().UTC()))
	return ticket, nil
}

func (s *BookingService) book(ctx context.Context, req *models.BookingRequest) (*models.Ticket, error) {
	if req == nil {
		return nil, NewValidationError(FieldError{Field: "body", Message: "request body is required"})
	}
	if s.Validator != nil {
		if err := s.Validator.ValidateBooking(req); err != nil {
			return nil, err
		}
	}
	if req.TrainID != s.opts.TrainID {
		return nil, NewValidationError(FieldError{Field: "trainId", Message: "unknown train"})
	}

	adults := CountAdults(req.Passengers)
	fare := Fare(adults, s.opts.BaseFare)

	var ticket *models.Ticket
	err := s.withRetry(ctx, "book", func() error {
		ticket = s.newTicket(req, fare)
		return s.DB.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
			return s.admit(ctx, uow, ticket, adults)
		})
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *BookingService) admit(ctx context.Context, uow UnitOfWork, ticket *models.Ticket, adults int) error {
	if err := uow.LockInventory(ctx, ticket.TrainID); err != nil {
		return err
	}
	// Stamped under the lock so queue order follows admission order.
	ticket.BookedAt = s.Now().UTC()

	occ, err := s.occupancy(ctx, uow, ticket.TrainID)
	if err != nil {
		return err
	}
	tier, err := DecideTier(adults, occ)
	if err != nil {
		return err
	}
	ticket.Tier = tier

	pnr, err := s.uniquePNR(ctx, uow)
	if err != nil {
		return err
	}
	ticket.PNR = pnr

	if err := uow.CreateTicket(ctx, ticket); err != nil {
		return err
	}

	if tier == models.TierConfirmed || tier == models.TierRAC {
		if _, err := allocate(ctx, uow, ticket); err != nil {
			return err
		}
	}
	return nil
}

// occupancy reads the live counts under the inventory lock.
func (s *BookingService) occupancy(ctx context.Context, uow UnitOfWork, trainID int64) (Occupancy, error) {
	free, err := uow.FreeBerths(ctx)
	if err != nil {
		return Occupancy{}, err
	}
	racUsed, err := uow.AdultsInTier(ctx, trainID, models.TierRAC, true)
	if err != nil {
		return Occupancy{}, err
	}
	waitingUsed, err := uow.AdultsInTier(ctx, trainID, models.TierWaiting, false)
	if err != nil {
		return Occupancy{}, err
	}
	return Occupancy{
		FreeConfirmed:    len(free),
		RACRemaining:     RemainingSlots(s.opts.RACCapacity, racUsed),
		WaitingRemaining: RemainingSlots(s.opts.WaitingCapacity, waitingUsed),
	}, nil
}

func (s *BookingService) uniquePNR(ctx context.Context, uow UnitOfWork) (string, error) {
	for i := 0; i < s.opts.PNRAttempts; i++ {
		pnr, err := s.NewPNR()
		if err != nil {
			return "", StorageFailure("generate pnr", err)
		}
		exists, err := uow.PNRExists(ctx, pnr)
		if err != nil {
			return "", err
		}
		if !exists {
			return pnr, nil
		}
		s.Logger.Debug("BOOKING", fmt.Sprintf("PNR collision on %s, regenerating", pnr))
	}
	return "", StorageFailure("generate pnr", fmt.Errorf("no unique code after %d attempts", s.opts.PNRAttempts))
}

func (s *BookingService) newTicket(req *models.BookingRequest, fare float64) *models.Ticket {
	t := &models.Ticket{
		ID:        s.NewID(),
		TrainID:   req.TrainID,
		TotalFare: fare,
	}
	for i, p := range req.Passengers {
		t.Passengers = append(t.Passengers, &models.Passenger{
			ID:              s.NewID(),
			TicketID:        t.ID,
			Seq:             i,
			Name:            p.Name,
			Age:             p.Age,
			Gender:          p.Gender,
			BerthPreference: p.BerthPreference,
			IsWithChild:     p.IsWithChild,
		})
	}
	return t
}

// Cancel deletes the ticket, frees its berths and runs the promotion cascade.
func (s *BookingService) Cancel(ctx context.Context, ticketID string) (*models.CancelResponse, error) {
	start := time.Now()

	var cancelled models.TicketEvent
	var result *CascadeResult
	err := s.withRetry(ctx, "cancel", func() error {
		return s.DB.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
			peek, err := uow.GetTicket(ctx, ticketID, false)
			if err != nil {
				return err
			}
			if err := uow.LockInventory(ctx, peek.TrainID); err != nil {
				return err
			}
			ticket, err := uow.GetTicket(ctx, ticketID, true)
			if err != nil {
				return err
			}

			cancelled = models.NewTicketEvent(models.TicketEventCancelled, ticket, s.Now().UTC())
			res, err := s.cascade.OnCancel(ctx, uow, ticket)
			if err != nil {
				return err
			}
			if err := uow.DeleteTicket(ctx, ticket.ID); err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	s.Metrics.ObserveOperation("cancel", Kind(err), time.Since(start))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.Logger.Warn("BOOKING", fmt.Sprintf("Cancel %s failed (%s): %v", ticketID, Kind(err), err))
		}
		return nil, err
	}

	s.Logger.LogBooking("CANCEL", cancelled.PNR, fmt.Sprintf("released %d berths", result.Released))
	events := []models.TicketEvent{cancelled}
	for _, p := range result.Promotions {
		s.Metrics.IncPromotion(p.From, p.To)
		s.Logger.LogCascade(string(p.From), string(p.To), p.Ticket.PNR)
		ev := models.NewTicketEvent(models.TicketEventPromoted, p.Ticket, s.Now().UTC())
		ev.FromTier = p.From
		events = append(events, ev)
	}
	s.afterCommit(ctx, events...)

	return &models.CancelResponse{Message: "Ticket cancelled successfully"}, nil
}

// ListBooked returns tickets newest first, optionally filtered by tier.
func (s *BookingService) ListBooked(ctx context.Context, status string) ([]*models.Ticket, error) {
	var tier models.Tier
	if status != "" {
		t, ok := models.ParseTier(status)
		if !ok {
			return nil, NewValidationError(FieldError{Field: "status", Message: "must be one of CONFIRMED, RAC, WAITING"})
		}
		tier = t
	}
	return s.DB.ListTickets(ctx, tier)
}

func (s *BookingService) GetByPNR(ctx context.Context, pnr string) (*models.Ticket, error) {
	if pnr == "" {
		return nil, ErrNotFound
	}
	return s.DB.GetTicketByPNR(ctx, pnr)
}

// Availability serves free counts from the cache and falls back to the
// inventory when the cache misses or fails.
func (s *BookingService) Availability(ctx context.Context) (*models.Availability, error) {
	counts, ok := s.cachedCounts(ctx)
	if !ok {
		var err error
		counts, err = s.DB.CountFreeByType(ctx)
		if err != nil {
			return nil, err
		}
		if s.Cache != nil {
			if err := s.Cache.Set(ctx, counts); err != nil {
				s.Logger.Warn("CACHE", fmt.Sprintf("Failed to store availability: %v", err))
			}
		}
	}

	return &models.Availability{
		Available:      counts,
		TotalConfirmed: s.opts.ConfirmedCapacity,
		TotalRAC:       s.opts.RACCapacity,
		TotalWaiting:   s.opts.WaitingCapacity,
	}, nil
}

func (s *BookingService) cachedCounts(ctx context.Context) (map[models.BerthType]int, bool) {
	if s.Cache == nil {
		return nil, false
	}
	counts, ok, err := s.Cache.Get(ctx)
	if err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Availability cache unavailable, recomputing: %v", err))
		return nil, false
	}
	return counts, ok
}

// afterCommit drops the cached availability and publishes events. Neither
// can fail a committed booking.
func (s *BookingService) afterCommit(ctx context.Context, events ...models.TicketEvent) {
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Failed to invalidate availability: %v", err))
		}
	}
	if s.Events == nil {
		return
	}
	for _, ev := range events {
		if err := s.Events.Publish(ctx, ev); err != nil {
			s.Logger.Error("EVENTS", fmt.Sprintf("Failed to publish %s for %s: %v", ev.Type, ev.PNR, err))
		}
	}
}
