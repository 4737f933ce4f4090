package database

import (
	"context"
	"fmt"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema creates the reservation tables when they are missing. Used
// for SQLite test databases; PostgreSQL goes through the migration files.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []interface{}{
		(*models.Train)(nil),
		(*models.Ticket)(nil),
		(*models.Passenger)(nil),
		(*models.Berth)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model   interface{}
		name    string
		columns []string
	}{
		{(*models.Ticket)(nil), "idx_tickets_tier_booked_at", []string{"tier", "booked_at", "id"}},
		{(*models.Passenger)(nil), "idx_passengers_ticket_id", []string{"ticket_id", "seq"}},
		{(*models.Berth)(nil), "idx_berths_free", []string{"is_allocated", "type", "id"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
