package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Tier string

const (
	TierConfirmed Tier = "CONFIRMED"
	TierRAC       Tier = "RAC"
	TierWaiting   Tier = "WAITING"
)

// ChildAgeThreshold is the age below which a passenger travels on a guardian's
// berth and is left out of capacity accounting.
const ChildAgeThreshold = 5

// ParseTier accepts any casing of a tier name.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

func (t Tier) Valid() bool {
	switch t {
	case TierConfirmed, TierRAC, TierWaiting:
		return true
	}
	return false
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID         string       `bun:"id,pk" json:"id"`
	PNR        string       `bun:"pnr,notnull,unique" json:"pnr"`
	TrainID    int64        `bun:"train_id,notnull" json:"train_id"`
	Tier       Tier         `bun:"tier,notnull" json:"status"`
	TotalFare  float64      `bun:"total_fare,notnull" json:"total_fare"`
	BookedAt   time.Time    `bun:"booked_at,notnull" json:"booking_date"`
	Passengers []*Passenger `bun:"-" json:"passengers"`
}

// Adults returns the passengers that need a berth of their own.
func (t *Ticket) Adults() []*Passenger {
	var out []*Passenger
	for _, p := range t.Passengers {
		if p.NeedsBerth() {
			out = append(out, p)
		}
	}
	return out
}

type Passenger struct {
	bun.BaseModel `bun:"table:passengers,alias:p"`

	ID              string `bun:"id,pk" json:"id"`
	TicketID        string `bun:"ticket_id,notnull" json:"ticket_id"`
	Seq             int    `bun:"seq,notnull" json:"-"`
	Name            string `bun:"name,notnull" json:"name"`
	Age             int    `bun:"age,notnull" json:"age"`
	Gender          string `bun:"gender,notnull" json:"gender"`
	BerthPreference string `bun:"berth_preference,nullzero" json:"berth_preference,omitempty"`
	IsWithChild     bool   `bun:"is_with_child,notnull" json:"is_with_child"`
	Berth           *Berth `bun:"-" json:"berth,omitempty"`
}

func (p *Passenger) NeedsBerth() bool {
	return p.Age >= ChildAgeThreshold
}
