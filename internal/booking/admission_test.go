package booking

import (
	"errors"
	"testing"

	"ms-reservation/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDecideTier(t *testing.T) {
	tests := []struct {
		name   string
		adults int
		occ    Occupancy
		want   models.Tier
		reject bool
	}{
		{"children only on a full train", 0, Occupancy{}, models.TierConfirmed, false},
		{"enough confirmed berths", 2, Occupancy{FreeConfirmed: 2, RACRemaining: 9, WaitingRemaining: 10}, models.TierConfirmed, false},
		{"spills into rac", 3, Occupancy{FreeConfirmed: 2, RACRemaining: 1, WaitingRemaining: 10}, models.TierRAC, false},
		{"rac only", 1, Occupancy{RACRemaining: 1, WaitingRemaining: 10}, models.TierRAC, false},
		{"waiting", 4, Occupancy{FreeConfirmed: 1, RACRemaining: 1, WaitingRemaining: 2}, models.TierWaiting, false},
		{"party larger than every tier", 6, Occupancy{FreeConfirmed: 1, RACRemaining: 2, WaitingRemaining: 2}, "", true},
		{"everything full", 1, Occupancy{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecideTier(tt.adults, tt.occ)
			if tt.reject {
				assert.True(t, errors.Is(err, ErrRejected))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemainingSlots(t *testing.T) {
	assert.Equal(t, 9, RemainingSlots(9, 0))
	assert.Equal(t, 2, RemainingSlots(9, 7))
	assert.Equal(t, 0, RemainingSlots(9, 11), "overfilled tiers clamp to zero")
}

func TestCountAdultsAndFare(t *testing.T) {
	party := []models.PassengerRequest{
		{Name: "Adult", Age: 40},
		{Name: "Five", Age: 5},
		{Name: "Four", Age: 4},
		{Name: "Baby", Age: 1},
	}
	adults := CountAdults(party)
	assert.Equal(t, 2, adults)
	assert.Equal(t, 1000.0, Fare(adults, 500))
	assert.Equal(t, 0.0, Fare(0, 500))
}
