package booking

import (
	"context"

	"ms-reservation/internal/models"
)

// Promotion records one tier upgrade done by the cascade.
type Promotion struct {
	Ticket *models.Ticket
	From   models.Tier
	To     models.Tier
	Berths []*models.Berth
}

type CascadeResult struct {
	Released   int
	Promotions []Promotion
}

// cascadeStep moves the head of from into to. Only a promotion into
// CONFIRMED claims berths; RAC occupancy is counted in slots.
type cascadeStep struct {
	from, to models.Tier
	claim    bool
}

// PromotionCascade refills vacated tiers after a cancellation. Each vacated
// tier receives at most one promotion.
type PromotionCascade struct{}

// OnCancel releases the cancelled ticket's berths and promotes the FIFO heads
// of the tiers below it. It must run inside the cancellation transaction.
func (PromotionCascade) OnCancel(ctx context.Context, uow UnitOfWork, cancelled *models.Ticket) (*CascadeResult, error) {
	result := &CascadeResult{}

	ids := make([]string, 0, len(cancelled.Passengers))
	for _, p := range cancelled.Passengers {
		ids = append(ids, p.ID)
	}
	released, err := uow.ReleaseBerths(ctx, ids)
	if err != nil {
		return nil, err
	}
	result.Released = released
	for _, p := range cancelled.Passengers {
		p.Berth = nil
	}

	var steps []cascadeStep
	switch cancelled.Tier {
	case models.TierConfirmed:
		steps = []cascadeStep{
			{from: models.TierRAC, to: models.TierConfirmed, claim: true},
			{from: models.TierWaiting, to: models.TierRAC},
		}
	case models.TierRAC:
		steps = []cascadeStep{
			{from: models.TierWaiting, to: models.TierRAC},
		}
	}

	for _, step := range steps {
		promo, err := promote(ctx, uow, cancelled.TrainID, step.from, step.to, step.claim)
		if err != nil {
			return nil, err
		}
		if promo != nil {
			result.Promotions = append(result.Promotions, *promo)
		}
	}
	return result, nil
}

func promote(ctx context.Context, uow UnitOfWork, trainID int64, from, to models.Tier, claim bool) (*Promotion, error) {
	head, err := uow.OldestTicket(ctx, trainID, from)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, nil
	}

	if err := uow.UpdateTier(ctx, head.ID, from, to); err != nil {
		return nil, err
	}
	head.Tier = to

	promo := &Promotion{Ticket: head, From: from, To: to}
	if claim {
		berths, err := allocate(ctx, uow, head)
		if err != nil {
			return nil, err
		}
		promo.Berths = berths
	}
	return promo, nil
}
