package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-ticket-booking/internal/notifier"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
)

// CancellationService は明示キャンセルとカート放置タイムアウトによる座席解放を行う
type CancellationService struct {
	txManager     transaction.Manager
	orderRepo     order.Repository
	inventoryRepo inventory.Repository
	cache         SeatHoldCache
	notifier      notifier.Notifier
	metrics       *metrics.Metrics
}

// NewCancellationService は新しいCancellationServiceを作成する
func NewCancellationService(
	tm transaction.Manager,
	or order.Repository,
	ir inventory.Repository,
	cache SeatHoldCache,
	n notifier.Notifier,
	m *metrics.Metrics,
) *CancellationService {
	return &CancellationService{
		txManager:     tm,
		orderRepo:     or,
		inventoryRepo: ir,
		cache:         cache,
		notifier:      n,
		metrics:       m,
	}
}

// CancelBooking は注文を明示的にキャンセルし、座席をすべて解放する
// 保留中・完了済みのどちらの注文もキャンセルできる。二重キャンセルは拒否される
func (s *CancellationService) CancelBooking(ctx context.Context, userID, orderID string) (*order.Order, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.BelongsTo(userID) {
		return nil, order.ErrForbidden
	}
	if err := o.Cancel(); err != nil {
		return nil, err
	}
	if err := s.releaseOrderSeats(ctx, o, order.StatusPending, order.StatusCompleted); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelAbandonedOrders はカート放置タイムアウトを超えた保留中注文を一括キャンセルする
// 注文ごとに独立したトランザクションで処理し、個別の失敗は記録して続行する
func (s *CancellationService) CancelAbandonedOrders(ctx context.Context, olderThan time.Duration) (int, error) {
	orders, err := s.orderRepo.GetAbandonedPending(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("放置注文の取得に失敗: %w", err)
	}

	cancelled := 0
	for _, o := range orders {
		if err := o.Cancel(); err != nil {
			continue
		}
		// pending をガード条件にした遷移のみ許可する。読み取り後に支払いが
		// 確定した注文はガードが空振りし、座席には触れない
		if err := s.releaseOrderSeats(ctx, o, order.StatusPending); err != nil {
			if errors.Is(err, inventory.ErrConcurrencyConflict) {
				continue
			}
			logger.Error("放置注文のキャンセルに失敗",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
			continue
		}
		cancelled++
	}
	if s.metrics != nil && cancelled > 0 {
		s.metrics.AbandonedOrdersSweptTotal.Add(float64(cancelled))
	}
	return cancelled, nil
}

// releaseOrderSeats は単一トランザクションで注文をキャンセル状態にし、
// チケットに紐づく座席を利用可能へ戻す
//
// 注文の遷移は expected をガード条件とする条件付きUPDATEで行う。0行更新は
// 読み取り後に別の遷移が割り込んだことを意味し、座席を解放せずに
// ErrConcurrencyConflict で中断する
func (s *CancellationService) releaseOrderSeats(ctx context.Context, o *order.Order, expected ...order.Status) error {
	tickets, err := s.orderRepo.GetTickets(ctx, o.ID)
	if err != nil {
		return err
	}
	seatIDs := make([]string, len(tickets))
	for i, t := range tickets {
		seatIDs[i] = t.SeatID
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	ok, err := s.orderRepo.UpdateIfStatus(ctx, tx, o, expected...)
	if err != nil {
		return err
	}
	if !ok {
		return inventory.ErrConcurrencyConflict
	}
	if err := s.inventoryRepo.ReleaseAll(ctx, tx, o.EventID, seatIDs); err != nil {
		return fmt.Errorf("座席の解放に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	// 古いホルダーのキャッシュエントリが残ると別ユーザーの高速パスを誤って弾くため削除する
	if s.cache != nil {
		for _, seatID := range seatIDs {
			if err := s.cache.Delete(ctx, o.EventID, seatID); err != nil {
				logger.Warn("キャッシュ削除に失敗", zap.Error(err))
			}
		}
	}
	publishAsync(s.notifier, notifier.TopicSeats, notifier.EventSeatsReleased, SeatsEventPayload{
		EventID: o.EventID, SeatIDs: seatIDs, OrderID: o.ID,
	})
	return nil
}
