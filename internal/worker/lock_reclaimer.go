package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

// LockReclaimer は期限切れロックを回収するインターフェース
type LockReclaimer interface {
	ReclaimExpiredLocks(ctx context.Context, eventID string) (int, error)
}

// ExpiredLockReclaimer は期限切れの座席ロックを定期回収するワーカー
type ExpiredLockReclaimer struct {
	lockService LockReclaimer
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewExpiredLockReclaimer は新しいリクレイマーを作成
func NewExpiredLockReclaimer(ls LockReclaimer, interval time.Duration) *ExpiredLockReclaimer {
	return &ExpiredLockReclaimer{
		lockService: ls,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はリクレイマーを開始
func (r *ExpiredLockReclaimer) Start(ctx context.Context) {
	logger.Info("期限切れロックリクレイマー開始",
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れロックリクレイマー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("期限切れロックリクレイマー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reclaim(ctx)
		}
	}
}

// Stop はリクレイマーを停止
func (r *ExpiredLockReclaimer) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reclaim は全イベントの期限切れロックを回収
func (r *ExpiredLockReclaimer) reclaim(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れロックの回収開始")

	count, err := r.lockService.ReclaimExpiredLocks(ctx, "")
	if err != nil {
		log.Error("期限切れロックの回収失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れロックを回収", zap.Int("count", count))
	} else {
		log.Debug("期限切れロックなし")
	}
}
