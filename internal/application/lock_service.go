package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-ticket-booking/internal/notifier"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
)

// DefaultLockTTL は座席ロックのデフォルト有効期間
const DefaultLockTTL = 5 * time.Minute

// SeatLockService は座席の時間制限付き排他ホールドを管理する
// 高速リジェクト用の助言的キャッシュと、権威である行ロック付きトランザクションの二層構成
type SeatLockService struct {
	txManager     transaction.Manager
	inventoryRepo inventory.Repository
	eventRepo     event.Repository
	venueRepo     venue.Repository
	cache         SeatHoldCache
	notifier      notifier.Notifier
	metrics       *metrics.Metrics
	lockTTL       time.Duration
	now           func() time.Time
}

// NewSeatLockService は新しいSeatLockServiceを作成する
// cache・notifier・metricsはnil可（キャッシュなしでも正しさは保たれる）
func NewSeatLockService(
	tm transaction.Manager,
	ir inventory.Repository,
	er event.Repository,
	vr venue.Repository,
	cache SeatHoldCache,
	n notifier.Notifier,
	m *metrics.Metrics,
	lockTTL time.Duration,
) *SeatLockService {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &SeatLockService{
		txManager:     tm,
		inventoryRepo: ir,
		eventRepo:     er,
		venueRepo:     vr,
		cache:         cache,
		notifier:      n,
		metrics:       m,
		lockTTL:       lockTTL,
		now:           time.Now,
	}
}

// LockTTL はロックの有効期間を返す
func (s *SeatLockService) LockTTL() time.Duration {
	return s.lockTTL
}

// AcquireLock は座席の排他ホールドを取得する
// 高速パス: キャッシュ上で他ホルダーが保持していれば即座に失敗する（ストア往復なし）
// 権威パス: 行ロック付きトランザクション内で状態を検証し、ロック状態へ遷移する
// 同一ホルダーによる再取得はTTLをリフレッシュする
func (s *SeatLockService) AcquireLock(ctx context.Context, eventID, seatID, holderID string) (*inventory.SeatSnapshot, error) {
	if eventID == "" || seatID == "" || holderID == "" {
		return nil, inventory.ErrInvalidSeats
	}

	// 高速パス（助言的キャッシュ）
	if s.cache != nil {
		cached, err := s.cache.GetHolder(ctx, eventID, seatID)
		if err != nil {
			logger.Warn("キャッシュ参照に失敗", zap.Error(err))
		} else if cached != "" && cached != holderID {
			s.countLock("fast_rejected")
			return nil, inventory.ErrSeatUnavailable
		}
	}

	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.Published {
		return nil, event.ErrEventNotPublished
	}

	// 物理座席の検証: 座席のセクションがイベントの会場に属すること
	detail, err := s.venueRepo.GetSeatDetail(ctx, seatID)
	if err != nil {
		if errors.Is(err, venue.ErrSeatNotFound) {
			return nil, inventory.ErrInvalidSeats
		}
		return nil, err
	}
	if detail.VenueID != ev.VenueID {
		return nil, inventory.ErrInvalidSeats
	}

	now := s.now()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// 取得または遅延生成。生成と行ロックは同一トランザクション内で行う
	// （別トランザクションに分けると生成競合の窓が生じる）
	rec, err := s.inventoryRepo.GetForUpdate(ctx, tx, eventID, seatID)
	created := false
	switch {
	case errors.Is(err, inventory.ErrSeatNotFound):
		rec = inventory.NewRecord(eventID, seatID)
		created = true
	case err != nil:
		return nil, err
	default:
		switch {
		case rec.IsFinal():
			s.countLock("final")
			return nil, inventory.ErrSeatAlreadyFinal
		case rec.Status == inventory.StatusLocked && !rec.HoldExpired(s.lockTTL, now) && !rec.IsHeldBy(holderID):
			s.countLock("unavailable")
			return nil, inventory.ErrSeatUnavailable
		}
		// 利用可能、期限切れロックの回収、または自ホルダーの再取得
	}

	rec.Lock(holderID, now)
	if created {
		err = s.inventoryRepo.Create(ctx, tx, rec)
	} else {
		err = s.inventoryRepo.Update(ctx, tx, rec)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetHolder(ctx, eventID, seatID, holderID, s.lockTTL); err != nil {
			logger.Warn("キャッシュ更新に失敗", zap.Error(err))
		}
	}
	publishAsync(s.notifier, notifier.TopicSeats, notifier.EventSeatLocked, SeatEventPayload{
		EventID: eventID, SeatID: seatID, HolderID: holderID,
	})
	s.countLock("success")

	return s.toSnapshot(detail, rec), nil
}

// ReleaseLock はホルダー自身によるロック解放を行う
// 既に利用可能な座席への解放は冪等に成功する。非ホルダーによる解放は
// 期限切れか否かにかかわらず ErrNotLockHolder で失敗し、何も変更しない
func (s *SeatLockService) ReleaseLock(ctx context.Context, eventID, seatID, holderID string) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.inventoryRepo.GetForUpdate(ctx, tx, eventID, seatID)
	if err != nil {
		if errors.Is(err, inventory.ErrSeatNotFound) {
			return nil // 行がない = 利用可能。冪等な成功
		}
		return err
	}

	switch {
	case rec.Status == inventory.StatusAvailable:
		return nil
	case rec.IsFinal():
		return inventory.ErrSeatAlreadyFinal
	case !rec.IsHeldBy(holderID):
		return inventory.ErrNotLockHolder
	}

	rec.Release(s.now())
	if err := s.inventoryRepo.Update(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	s.dropCacheEntry(ctx, eventID, seatID)
	publishAsync(s.notifier, notifier.TopicSeats, notifier.EventSeatUnlocked, SeatEventPayload{
		EventID: eventID, SeatID: seatID, HolderID: holderID,
	})
	return nil
}

// ListSeats はイベントの座席スナップショット一覧を返す
// sectionID が空文字の場合は全セクションを対象とする
// TTL切れのロックはストレージを変更せず利用可能として提示する（ソフト期限切れ）
func (s *SeatLockService) ListSeats(ctx context.Context, eventID, sectionID string) ([]*inventory.SeatSnapshot, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	snapshots, err := s.inventoryRepo.ListByEvent(ctx, eventID, sectionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, snap := range snapshots {
		if snap.Status == inventory.StatusLocked && inventory.IsExpired(snap.UpdatedAt, s.lockTTL, now) {
			snap.Status = inventory.StatusAvailable
			snap.HolderID = nil
		}
	}
	return snapshots, nil
}

// ReclaimExpiredLocks は期限切れロックを単一のガード付き一括UPDATEで解放する
// eventID が空文字の場合は全イベントを対象とする。解放した各座席について
// UNLOCKEDイベントを配信し、解放件数を返す。対象がなければ静かに何もしない
func (s *SeatLockService) ReclaimExpiredLocks(ctx context.Context, eventID string) (int, error) {
	reclaimed, err := s.inventoryRepo.ReclaimExpired(ctx, s.lockTTL, eventID)
	if err != nil {
		return 0, fmt.Errorf("期限切れロックの回収に失敗: %w", err)
	}
	for _, r := range reclaimed {
		s.dropCacheEntry(ctx, r.EventID, r.SeatID)
		publishAsync(s.notifier, notifier.TopicSeats, notifier.EventSeatUnlocked, SeatEventPayload{
			EventID: r.EventID, SeatID: r.SeatID,
		})
	}
	if s.metrics != nil && len(reclaimed) > 0 {
		s.metrics.LocksReclaimedTotal.Add(float64(len(reclaimed)))
	}
	return len(reclaimed), nil
}

// MaterializeEventInventory はイベント会場の全座席の在庫レコードを一括生成する
// イベント公開時の先行生成に使用する。既存の行は変更しない
func (s *SeatLockService) MaterializeEventInventory(ctx context.Context, eventID string) (int, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return 0, err
	}
	count, err := s.inventoryRepo.MaterializeForEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("在庫レコードの生成に失敗: %w", err)
	}
	if count > 0 {
		logger.Info("座席在庫を生成", zap.String("event_id", eventID), zap.Int("count", count))
	}
	return count, nil
}

func (s *SeatLockService) toSnapshot(detail *venue.SeatDetail, rec *inventory.Record) *inventory.SeatSnapshot {
	return &inventory.SeatSnapshot{
		SeatID:      detail.SeatID,
		EventID:     rec.EventID,
		SectionID:   detail.SectionID,
		SectionName: detail.SectionName,
		SeatType:    detail.SeatType,
		Row:         detail.Row,
		Number:      detail.Number,
		BasePrice:   detail.BasePrice,
		Status:      rec.Status,
		HolderID:    rec.HolderID,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (s *SeatLockService) dropCacheEntry(ctx context.Context, eventID, seatID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, eventID, seatID); err != nil {
		logger.Warn("キャッシュ削除に失敗", zap.Error(err))
	}
}

func (s *SeatLockService) countLock(result string) {
	if s.metrics != nil {
		s.metrics.SeatLocksTotal.WithLabelValues(result).Inc()
	}
}
