package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

// OrderSweeper は放置された注文をキャンセルするインターフェース
type OrderSweeper interface {
	CancelAbandonedOrders(ctx context.Context, olderThan time.Duration) (int, error)
}

// AbandonedOrderSweeper は支払いに進まないまま放置された注文を定期キャンセルするワーカー
type AbandonedOrderSweeper struct {
	cancelService OrderSweeper
	interval      time.Duration
	olderThan     time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewAbandonedOrderSweeper は新しいスイーパーを作成
func NewAbandonedOrderSweeper(cs OrderSweeper, interval, olderThan time.Duration) *AbandonedOrderSweeper {
	return &AbandonedOrderSweeper{
		cancelService: cs,
		interval:      interval,
		olderThan:     olderThan,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (s *AbandonedOrderSweeper) Start(ctx context.Context) {
	logger.Info("放置注文スイーパー開始",
		zap.Duration("interval", s.interval),
		zap.Duration("older_than", s.olderThan),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("放置注文スイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("放置注文スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (s *AbandonedOrderSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は放置注文をキャンセル
func (s *AbandonedOrderSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("放置注文のスイープ開始")

	count, err := s.cancelService.CancelAbandonedOrders(ctx, s.olderThan)
	if err != nil {
		log.Error("放置注文のスイープ失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("放置注文をキャンセル", zap.Int("count", count))
	} else {
		log.Debug("放置注文なし")
	}
}
