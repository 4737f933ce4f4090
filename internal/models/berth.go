package models

import (
	"github.com/uptrace/bun"
)

type BerthType string

const (
	BerthLower     BerthType = "LOWER"
	BerthMiddle    BerthType = "MIDDLE"
	BerthUpper     BerthType = "UPPER"
	BerthSideLower BerthType = "SIDE_LOWER"
)

// Berth is a physical seat. Rows are created once when the inventory is
// seeded; only the allocation flag and the passenger reference ever change.
type Berth struct {
	bun.BaseModel `bun:"table:berths,alias:b"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	CoachNumber string    `bun:"coach_number,notnull" json:"coach_number"`
	SeatNumber  string    `bun:"seat_number,notnull" json:"seat_number"`
	Type        BerthType `bun:"type,notnull" json:"type"`
	IsAllocated bool      `bun:"is_allocated,notnull" json:"is_allocated"`
	PassengerID *string   `bun:"passenger_id,unique" json:"passenger_id,omitempty"`
}

// Availability is the public view of free inventory plus the fixed tier totals.
type Availability struct {
	Available      map[BerthType]int `json:"available"`
	TotalConfirmed int               `json:"total_confirmed"`
	TotalRAC       int               `json:"total_rac"`
	TotalWaiting   int               `json:"total_waiting"`
}

// Label is the coach/seat form printed on tickets, e.g. "A2/205".
func (b *Berth) Label() string {
	return b.CoachNumber + "/" + b.SeatNumber
}
