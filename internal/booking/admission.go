package booking

import "ms-reservation/internal/models"

// Occupancy is the lock-protected capacity snapshot admission decides on.
type Occupancy struct {
	FreeConfirmed    int
	RACRemaining     int
	WaitingRemaining int
}

// DecideTier admits the whole party into the best tier that can cover it.
// A party is never split across tiers.
func DecideTier(adults int, occ Occupancy) (models.Tier, error) {
	switch {
	case adults == 0:
		return models.TierConfirmed, nil
	case occ.FreeConfirmed >= adults:
		return models.TierConfirmed, nil
	case occ.FreeConfirmed+occ.RACRemaining >= adults:
		return models.TierRAC, nil
	case occ.FreeConfirmed+occ.RACRemaining+occ.WaitingRemaining >= adults:
		return models.TierWaiting, nil
	}
	return "", ErrRejected
}

// RemainingSlots turns a tier ceiling and its current usage into free slots.
func RemainingSlots(capacity, used int) int {
	if used >= capacity {
		return 0
	}
	return capacity - used
}

// CountAdults returns how many passengers need a berth of their own.
func CountAdults(passengers []models.PassengerRequest) int {
	n := 0
	for _, p := range passengers {
		if p.Age >= models.ChildAgeThreshold {
			n++
		}
	}
	return n
}

// Fare is the flat per-adult price. Children travel free.
func Fare(adults int, baseFare float64) float64 {
	return float64(adults) * baseFare
}
