package analytics

import (
	"context"
	"fmt"
	"sort"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

// Service aggregates bookings for the operator dashboard. It reads committed
// rows only and never takes the inventory lock.
type Service struct {
	db bun.IDB
}

func NewService(db bun.IDB) *Service {
	return &Service{db: db}
}

// TierMetrics summarises the tickets currently held in one tier.
type TierMetrics struct {
	Tier       models.Tier `json:"tier"`
	Tickets    int         `json:"tickets"`
	Passengers int         `json:"passengers"`
	Adults     int         `json:"adults"`
	Revenue    float64     `json:"revenue"`
}

// BerthMetrics is the allocation state of one berth type.
type BerthMetrics struct {
	Type      models.BerthType `json:"type"`
	Allocated int              `json:"allocated"`
	Free      int              `json:"free"`
}

// DailyBookingMetrics contains metrics for a single booking day
type DailyBookingMetrics struct {
	Date    string  `json:"date"`
	Tickets int     `json:"tickets"`
	Revenue float64 `json:"revenue"`
}

// OccupancyReport represents aggregated occupancy for a train
type OccupancyReport struct {
	TrainID       int64                 `json:"train_id"`
	TotalTickets  int                   `json:"total_tickets"`
	TotalRevenue  float64               `json:"total_revenue"`
	ByTier        []TierMetrics         `json:"by_tier"`
	Berths        []BerthMetrics        `json:"berths"`
	DailyBookings []DailyBookingMetrics `json:"daily_bookings"`
}

var tierOrder = map[models.Tier]int{models.TierConfirmed: 0, models.TierRAC: 1, models.TierWaiting: 2}

// GetOccupancy returns tier, berth and daily breakdowns for a train. Every
// tier is present in ByTier even when it holds no tickets.
func (s *Service) GetOccupancy(ctx context.Context, trainID int64) (*OccupancyReport, error) {
	report := &OccupancyReport{TrainID: trainID}

	byTier, err := s.tierMetrics(ctx, trainID)
	if err != nil {
		return nil, err
	}
	for _, m := range byTier {
		report.TotalTickets += m.Tickets
		report.TotalRevenue += m.Revenue
	}
	report.ByTier = byTier

	if report.Berths, err = s.berthMetrics(ctx); err != nil {
		return nil, err
	}
	if report.DailyBookings, err = s.dailyBookings(ctx, trainID); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) tierMetrics(ctx context.Context, trainID int64) ([]TierMetrics, error) {
	type tierRevenueRaw struct {
		Tier    models.Tier `bun:"tier"`
		Tickets int         `bun:"tickets"`
		Revenue float64     `bun:"revenue"`
	}
	var revenue []tierRevenueRaw
	err := s.db.NewRaw(`
		SELECT tier, COUNT(*) AS tickets, COALESCE(SUM(total_fare), 0) AS revenue
		FROM tickets
		WHERE train_id = ?
		GROUP BY tier`, trainID).Scan(ctx, &revenue)
	if err != nil {
		return nil, fmt.Errorf("tier revenue: %w", err)
	}

	type tierPassengersRaw struct {
		Tier       models.Tier `bun:"tier"`
		Passengers int         `bun:"passengers"`
		Adults     int         `bun:"adults"`
	}
	var passengers []tierPassengersRaw
	err = s.db.NewRaw(`
		SELECT t.tier,
			COUNT(p.id) AS passengers,
			COALESCE(SUM(CASE WHEN p.age >= ? THEN 1 ELSE 0 END), 0) AS adults
		FROM tickets t
		JOIN passengers p ON p.ticket_id = t.id
		WHERE t.train_id = ?
		GROUP BY t.tier`, models.ChildAgeThreshold, trainID).Scan(ctx, &passengers)
	if err != nil {
		return nil, fmt.Errorf("tier passengers: %w", err)
	}

	metrics := map[models.Tier]*TierMetrics{}
	for tier := range tierOrder {
		metrics[tier] = &TierMetrics{Tier: tier}
	}
	for _, r := range revenue {
		if m, ok := metrics[r.Tier]; ok {
			m.Tickets = r.Tickets
			m.Revenue = r.Revenue
		}
	}
	for _, r := range passengers {
		if m, ok := metrics[r.Tier]; ok {
			m.Passengers = r.Passengers
			m.Adults = r.Adults
		}
	}

	out := make([]TierMetrics, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return tierOrder[out[i].Tier] < tierOrder[out[j].Tier] })
	return out, nil
}

func (s *Service) berthMetrics(ctx context.Context) ([]BerthMetrics, error) {
	var rows []BerthMetrics
	err := s.db.NewRaw(`
		SELECT type,
			SUM(CASE WHEN is_allocated THEN 1 ELSE 0 END) AS allocated,
			SUM(CASE WHEN is_allocated THEN 0 ELSE 1 END) AS free
		FROM berths
		GROUP BY type
		ORDER BY type`).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("berth metrics: %w", err)
	}
	return rows, nil
}

func (s *Service) dailyBookings(ctx context.Context, trainID int64) ([]DailyBookingMetrics, error) {
	var rows []DailyBookingMetrics
	err := s.db.NewRaw(`
		SELECT CAST(DATE(booked_at) AS TEXT) AS date,
			COUNT(*) AS tickets,
			COALESCE(SUM(total_fare), 0) AS revenue
		FROM tickets
		WHERE train_id = ?
		GROUP BY DATE(booked_at)
		ORDER BY DATE(booked_at)`, trainID).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("daily bookings: %w", err)
	}
	return rows, nil
}
