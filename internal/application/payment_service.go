package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/payment"
	"github.com/sanosuguru/go-ticket-booking/internal/notifier"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
)

// PaymentService は非同期の支払い確認を処理し座席を最終確定する
type PaymentService struct {
	txManager     transaction.Manager
	orderRepo     order.Repository
	inventoryRepo inventory.Repository
	provider      payment.Provider
	secret        string
	currency      string
	notifier      notifier.Notifier
	metrics       *metrics.Metrics
}

// NewPaymentService は新しいPaymentServiceを作成する
// secret は署名検証用の帯域外共有シークレット
func NewPaymentService(
	tm transaction.Manager,
	or order.Repository,
	ir inventory.Repository,
	provider payment.Provider,
	secret, currency string,
	n notifier.Notifier,
	m *metrics.Metrics,
) *PaymentService {
	return &PaymentService{
		txManager:     tm,
		orderRepo:     or,
		inventoryRepo: ir,
		provider:      provider,
		secret:        secret,
		currency:      currency,
		notifier:      n,
		metrics:       m,
	}
}

// CreatePaymentIntent は注文の支払いインテントを外部プロバイダーに登録する
// 所有者のみが作成でき、完了済みの注文には作成できない
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, orderID, userID string) (*payment.Intent, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.BelongsTo(userID) {
		return nil, order.ErrForbidden
	}
	if o.Status == order.StatusCompleted {
		return nil, order.ErrOrderAlreadyCompleted
	}
	if !o.IsPending() {
		return nil, order.ErrOrderNotPending
	}

	intent, err := s.provider.CreateOrder(ctx, o.TotalAmount, s.currency, o.ID)
	if err != nil {
		return nil, fmt.Errorf("支払いインテントの登録に失敗: %w", err)
	}
	return intent, nil
}

// ConfirmPaymentInput は支払い確認の入力
type ConfirmPaymentInput struct {
	OrderID            string
	UserID             string
	ProviderOrderRef   string
	ProviderPaymentRef string
	Signature          string
}

// ConfirmPayment は支払いコールバックの署名を検証し、注文を完了させる
//
// 注文の pending→completed 遷移と座席の reserved→booked 遷移はどちらも
// 現在状態をガード条件とする条件付きUPDATEで行い、遷移行数の不一致
// （二重確認やキャンセルスイープとの競合を含む）は競合として中断する
func (s *PaymentService) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*order.Order, error) {
	if !payment.VerifySignature(s.secret, input.ProviderOrderRef, input.ProviderPaymentRef, input.Signature) {
		s.countConfirmation("signature_invalid")
		return nil, payment.ErrSignatureInvalid
	}

	o, err := s.orderRepo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !o.BelongsTo(input.UserID) {
		return nil, order.ErrForbidden
	}
	if err := o.Complete(input.ProviderPaymentRef); err != nil {
		s.countConfirmation("rejected")
		return nil, err
	}

	tickets, err := s.orderRepo.GetTickets(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	seatIDs := make([]string, len(tickets))
	for i, t := range tickets {
		seatIDs[i] = t.SeatID
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	ok, err := s.orderRepo.UpdateIfStatus(ctx, tx, o, order.StatusPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 読み取り後に別の遷移（スイープによるキャンセルなど）が割り込んだ
		s.countConfirmation("conflict")
		return nil, inventory.ErrConcurrencyConflict
	}
	n, err := s.inventoryRepo.FinalizeReserved(ctx, tx, o.EventID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("座席の確定遷移に失敗: %w", err)
	}
	if n != len(seatIDs) {
		s.countConfirmation("conflict")
		return nil, inventory.ErrConcurrencyConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.countConfirmation("success")

	publishAsync(s.notifier, notifier.TopicOrders, notifier.EventPaymentSuccess, OrderEventPayload{
		OrderID: o.ID, UserID: o.UserID, EventID: o.EventID,
		TotalAmount: o.TotalAmount, Status: string(o.Status),
	})
	publishAsync(s.notifier, notifier.TopicSeats, notifier.EventSeatsFinalized, SeatsEventPayload{
		EventID: o.EventID, SeatIDs: seatIDs, OrderID: o.ID,
	})
	return o, nil
}

func (s *PaymentService) countConfirmation(status string) {
	if s.metrics != nil {
		s.metrics.PaymentConfirmationsTotal.WithLabelValues(status).Inc()
	}
}
