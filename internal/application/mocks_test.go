package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/payment"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// newCommittableTx は Commit/Rollback をどちらも許容するトランザクションモックを返す
func newCommittableTx() (*MockTxManager, *MockTx) {
	tx := new(MockTx)
	tx.On("Commit").Return(nil).Maybe()
	tx.On("Rollback").Return(nil).Maybe()
	tm := new(MockTxManager)
	tm.On("Begin", mock.Anything).Return(tx, nil).Maybe()
	return tm, tx
}

// MockInventoryRepository implements inventory.Repository
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, eventID, seatID string) (*inventory.Record, error) {
	args := m.Called(ctx, tx, eventID, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Record), args.Error(1)
}

func (m *MockInventoryRepository) Create(ctx context.Context, tx transaction.Tx, rec *inventory.Record) error {
	args := m.Called(ctx, tx, rec)
	return args.Error(0)
}

func (m *MockInventoryRepository) Update(ctx context.Context, tx transaction.Tx, rec *inventory.Record) error {
	args := m.Called(ctx, tx, rec)
	return args.Error(0)
}

func (m *MockInventoryRepository) GetByEventAndSeatIDs(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) ([]*inventory.Record, error) {
	args := m.Called(ctx, tx, eventID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inventory.Record), args.Error(1)
}

func (m *MockInventoryRepository) ReserveHeld(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string, holderID string) (int, error) {
	args := m.Called(ctx, tx, eventID, seatIDs, holderID)
	return args.Int(0), args.Error(1)
}

func (m *MockInventoryRepository) FinalizeReserved(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) (int, error) {
	args := m.Called(ctx, tx, eventID, seatIDs)
	return args.Int(0), args.Error(1)
}

func (m *MockInventoryRepository) ReleaseAll(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) error {
	args := m.Called(ctx, tx, eventID, seatIDs)
	return args.Error(0)
}

func (m *MockInventoryRepository) ReclaimExpired(ctx context.Context, ttl time.Duration, eventID string) ([]inventory.ReclaimedSeat, error) {
	args := m.Called(ctx, ttl, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.ReclaimedSeat), args.Error(1)
}

func (m *MockInventoryRepository) MaterializeForEvent(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockInventoryRepository) ListByEvent(ctx context.Context, eventID, sectionID string) ([]*inventory.SeatSnapshot, error) {
	args := m.Called(ctx, eventID, sectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inventory.SeatSnapshot), args.Error(1)
}

func (m *MockInventoryRepository) CountByStatus(ctx context.Context, eventID string) (inventory.StatusCounts, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(inventory.StatusCounts), args.Error(1)
}

// MockOrderRepository implements order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	args := m.Called(ctx, tx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateTickets(ctx context.Context, tx transaction.Tx, tickets []*order.Ticket) error {
	args := m.Called(ctx, tx, tickets)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateIfStatus(ctx context.Context, tx transaction.Tx, o *order.Order, expected ...order.Status) (bool, error) {
	args := m.Called(ctx, tx, o, expected)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) GetTickets(ctx context.Context, orderID string) ([]*order.Ticket, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Ticket), args.Error(1)
}

func (m *MockOrderRepository) GetAbandonedPending(ctx context.Context, olderThan time.Duration) ([]*order.Order, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

// MockEventRepository implements event.Repository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

// MockVenueRepository implements venue.Repository
type MockVenueRepository struct {
	mock.Mock
}

func (m *MockVenueRepository) GetSeatDetail(ctx context.Context, seatID string) (*venue.SeatDetail, error) {
	args := m.Called(ctx, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*venue.SeatDetail), args.Error(1)
}

func (m *MockVenueRepository) GetEventSeatDetails(ctx context.Context, eventID string, seatIDs []string) ([]*venue.SeatDetail, error) {
	args := m.Called(ctx, eventID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*venue.SeatDetail), args.Error(1)
}

// MockSeatHoldCache implements SeatHoldCache
type MockSeatHoldCache struct {
	mock.Mock
}

func (m *MockSeatHoldCache) GetHolder(ctx context.Context, eventID, seatID string) (string, error) {
	args := m.Called(ctx, eventID, seatID)
	return args.String(0), args.Error(1)
}

func (m *MockSeatHoldCache) SetHolder(ctx context.Context, eventID, seatID, holderID string, ttl time.Duration) error {
	args := m.Called(ctx, eventID, seatID, holderID, ttl)
	return args.Error(0)
}

func (m *MockSeatHoldCache) Delete(ctx context.Context, eventID, seatID string) error {
	args := m.Called(ctx, eventID, seatID)
	return args.Error(0)
}

// MockDemandRecorder implements DemandRecorder
type MockDemandRecorder struct {
	mock.Mock
}

func (m *MockDemandRecorder) RecordBooking(ctx context.Context, eventID string, seats int) error {
	args := m.Called(ctx, eventID, seats)
	return args.Error(0)
}

func (m *MockDemandRecorder) DemandRate(ctx context.Context, eventID string) (float64, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(float64), args.Error(1)
}

// MockPaymentProvider implements payment.Provider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) CreateOrder(ctx context.Context, amount int, currency, reference string) (*payment.Intent, error) {
	args := m.Called(ctx, amount, currency, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}
