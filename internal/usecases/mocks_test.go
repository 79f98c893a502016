package usecases_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"payos.backend/internal/domain/entities"
	"payos.backend/internal/domain/providers"
	"payos.backend/pkg/utils"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

func (m *MockUnitOfWork) WithLock(ctx context.Context) context.Context {
	args := m.Called(ctx)
	return args.Get(0).(context.Context)
}

// Mock SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, s *entities.BridgeSettlement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.BridgeSettlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BridgeSettlement), args.Error(1)
}

func (m *MockSettlementRepository) GetByTransferID(ctx context.Context, transferID string) (*entities.BridgeSettlement, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BridgeSettlement), args.Error(1)
}

func (m *MockSettlementRepository) GetByPayoutID(ctx context.Context, payoutID string) (*entities.BridgeSettlement, error) {
	args := m.Called(ctx, payoutID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BridgeSettlement), args.Error(1)
}

func (m *MockSettlementRepository) Transition(ctx context.Context, id uuid.UUID, from entities.SettlementStatus, update entities.SettlementUpdate) error {
	args := m.Called(ctx, id, from, update)
	return args.Error(0)
}

func (m *MockSettlementRepository) List(ctx context.Context, filter entities.SettlementFilter, pagination utils.PaginationParams) ([]*entities.BridgeSettlement, int64, error) {
	args := m.Called(ctx, filter, pagination)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.BridgeSettlement), args.Get(1).(int64), args.Error(2)
}

// Mock PayoutProvider
type MockPayoutProvider struct {
	mock.Mock
}

func (m *MockPayoutProvider) CreatePayout(ctx context.Context, req providers.PayoutRequest) (*providers.Payout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Payout), args.Error(1)
}

// Mock BalanceReader
type MockBalanceReader struct {
	mock.Mock
}

func (m *MockBalanceReader) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
