package booking

import (
	"context"

	"ms-reservation/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockUnitOfWork is a mock implementation of the UnitOfWork interface
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) LockInventory(ctx context.Context, trainID int64) error {
	args := m.Called(ctx, trainID)
	return args.Error(0)
}

func (m *MockUnitOfWork) FreeBerths(ctx context.Context) ([]*models.Berth, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Berth), args.Error(1)
}

func (m *MockUnitOfWork) AdultsInTier(ctx context.Context, trainID int64, tier models.Tier, unberthedOnly bool) (int, error) {
	args := m.Called(ctx, trainID, tier, unberthedOnly)
	return args.Int(0), args.Error(1)
}

func (m *MockUnitOfWork) PNRExists(ctx context.Context, pnr string) (bool, error) {
	args := m.Called(ctx, pnr)
	return args.Bool(0), args.Error(1)
}

func (m *MockUnitOfWork) CreateTicket(ctx context.Context, t *models.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockUnitOfWork) ClaimBerth(ctx context.Context, berthID int64, passengerID string) error {
	args := m.Called(ctx, berthID, passengerID)
	return args.Error(0)
}

func (m *MockUnitOfWork) GetTicket(ctx context.Context, id string, lock bool) (*models.Ticket, error) {
	args := m.Called(ctx, id, lock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockUnitOfWork) OldestTicket(ctx context.Context, trainID int64, tier models.Tier) (*models.Ticket, error) {
	args := m.Called(ctx, trainID, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockUnitOfWork) UpdateTier(ctx context.Context, ticketID string, from, to models.Tier) error {
	args := m.Called(ctx, ticketID, from, to)
	return args.Error(0)
}

func (m *MockUnitOfWork) ReleaseBerths(ctx context.Context, passengerIDs []string) (int, error) {
	args := m.Called(ctx, passengerIDs)
	return args.Int(0), args.Error(1)
}

func (m *MockUnitOfWork) DeleteTicket(ctx context.Context, ticketID string) error {
	args := m.Called(ctx, ticketID)
	return args.Error(0)
}
