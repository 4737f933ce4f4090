package models

import "time"

const (
	TicketEventBooked    = "ticket.booked"
	TicketEventCancelled = "ticket.cancelled"
	TicketEventPromoted  = "ticket.promoted"
)

// TicketEvent is the payload published to Kafka whenever a ticket changes.
type TicketEvent struct {
	Type       string    `json:"type"`
	TicketID   string    `json:"ticket_id"`
	PNR        string    `json:"pnr"`
	TrainID    int64     `json:"train_id"`
	Tier       Tier      `json:"tier"`
	FromTier   Tier      `json:"from_tier,omitempty"`
	BerthIDs   []int64   `json:"berth_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTicketEvent snapshots a ticket and the berths its passengers hold.
func NewTicketEvent(eventType string, t *Ticket, at time.Time) TicketEvent {
	ev := TicketEvent{
		Type:       eventType,
		TicketID:   t.ID,
		PNR:        t.PNR,
		TrainID:    t.TrainID,
		Tier:       t.Tier,
		OccurredAt: at,
	}
	for _, p := range t.Passengers {
		if p.Berth != nil {
			ev.BerthIDs = append(ev.BerthIDs, p.Berth.ID)
		}
	}
	return ev
}
