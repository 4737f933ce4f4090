package booking

import (
	"context"
	"strings"

	"ms-reservation/internal/models"
)

const seniorAge = 60

// PreferredType returns the berth type a passenger should get first, or ""
// when any berth will do.
func PreferredType(p *models.Passenger) models.BerthType {
	if p.Age >= seniorAge || (p.Gender == "female" && p.IsWithChild) {
		return models.BerthLower
	}
	pref := strings.ToUpper(strings.TrimSpace(p.BerthPreference))
	if pref != "" && pref != "NONE" {
		return models.BerthType(pref)
	}
	return ""
}

// SelectBerth picks the berth for p from free, which must already be in
// allocation order (type, then id). It returns nil when nothing is free.
func SelectBerth(p *models.Passenger, free []*models.Berth) *models.Berth {
	if len(free) == 0 {
		return nil
	}
	if want := PreferredType(p); want != "" {
		for _, b := range free {
			if b.Type == want {
				return b
			}
		}
	}
	return free[0]
}

// allocate assigns berths to every adult on the ticket without one, claiming
// each inside uow. Passengers left without a berth stay unassigned.
func allocate(ctx context.Context, uow UnitOfWork, ticket *models.Ticket) ([]*models.Berth, error) {
	var pending []*models.Passenger
	for _, p := range ticket.Adults() {
		if p.Berth == nil {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	free, err := uow.FreeBerths(ctx)
	if err != nil {
		return nil, err
	}

	var claimed []*models.Berth
	for _, p := range pending {
		b := SelectBerth(p, free)
		if b == nil {
			break
		}
		if err := uow.ClaimBerth(ctx, b.ID, p.ID); err != nil {
			return nil, err
		}
		b.IsAllocated = true
		pid := p.ID
		b.PassengerID = &pid
		p.Berth = b
		claimed = append(claimed, b)
		free = removeBerth(free, b.ID)
	}
	return claimed, nil
}

func removeBerth(free []*models.Berth, id int64) []*models.Berth {
	out := free[:0:0]
	for _, b := range free {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
