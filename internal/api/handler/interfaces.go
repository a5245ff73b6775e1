package handler

import (
	"context"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/payment"
)

// LockServiceInterface は座席ロックサービスのインターフェース
type LockServiceInterface interface {
	AcquireLock(ctx context.Context, eventID, seatID, holderID string) (*inventory.SeatSnapshot, error)
	ReleaseLock(ctx context.Context, eventID, seatID, holderID string) error
	ListSeats(ctx context.Context, eventID, sectionID string) ([]*inventory.SeatSnapshot, error)
	MaterializeEventInventory(ctx context.Context, eventID string) (int, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	BookTickets(ctx context.Context, input application.BookTicketsInput) (*application.BookingResult, error)
	GetOrder(ctx context.Context, orderID, userID string) (*application.BookingResult, error)
}

// PaymentServiceInterface は支払いサービスのインターフェース
type PaymentServiceInterface interface {
	CreatePaymentIntent(ctx context.Context, orderID, userID string) (*payment.Intent, error)
	ConfirmPayment(ctx context.Context, input application.ConfirmPaymentInput) (*order.Order, error)
}

// CancellationServiceInterface はキャンセルサービスのインターフェース
type CancellationServiceInterface interface {
	CancelBooking(ctx context.Context, userID, orderID string) (*order.Order, error)
}
