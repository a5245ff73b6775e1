package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/pricing"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-ticket-booking/internal/notifier"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
)

// BookingService はホールド済み座席を注文とチケットへ変換する
// 冪等性キーごとに正確に1つの注文を作成し、座席遷移はガード付き一括UPDATEで保護する
type BookingService struct {
	txManager     transaction.Manager
	orderRepo     order.Repository
	inventoryRepo inventory.Repository
	eventRepo     event.Repository
	venueRepo     venue.Repository
	engine        pricing.Engine
	demandModel   pricing.DemandModel
	demand        DemandRecorder
	notifier      notifier.Notifier
	metrics       *metrics.Metrics
	lockTTL       time.Duration
	now           func() time.Time
}

// NewBookingService は新しいBookingServiceを作成する
func NewBookingService(
	tm transaction.Manager,
	or order.Repository,
	ir inventory.Repository,
	er event.Repository,
	vr venue.Repository,
	engine pricing.Engine,
	demandModel pricing.DemandModel,
	demand DemandRecorder,
	n notifier.Notifier,
	m *metrics.Metrics,
	lockTTL time.Duration,
) *BookingService {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &BookingService{
		txManager:     tm,
		orderRepo:     or,
		inventoryRepo: ir,
		eventRepo:     er,
		venueRepo:     vr,
		engine:        engine,
		demandModel:   demandModel,
		demand:        demand,
		notifier:      n,
		metrics:       m,
		lockTTL:       lockTTL,
		now:           time.Now,
	}
}

// BookTicketsInput はチケット予約の入力
type BookTicketsInput struct {
	UserID         string
	EventID        string
	SeatIDs        []string
	IdempotencyKey string
}

// BookingResult は予約結果（注文と作成されたチケット）
type BookingResult struct {
	Order   *order.Order
	Tickets []*order.Ticket
}

// BookTickets は呼び出し元がホールド中の座席を注文＋チケットへ変換する
//
// 同一の冪等性キーによるリトライは既存の注文をそのまま返す。座席の
// locked→reserved 遷移は (event_id, seat_id, status, holder) をガード条件と
// する単一の一括UPDATEで行い、遷移行数の不一致は競合として全体を中断する。
// 競合時、同一リクエスト内の他の有効な座席はロックされたまま残る
// （呼び出し元はTTL内であれば再試行できる）
func (s *BookingService) BookTickets(ctx context.Context, input BookTicketsInput) (*BookingResult, error) {
	if len(input.SeatIDs) == 0 {
		return nil, order.ErrInvalidRequest
	}

	// 冪等性チェック: 同じキーでのリトライは既存の注文を返す
	if input.IdempotencyKey != "" {
		existing, err := s.orderRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return s.idempotentHit(ctx, existing, input.UserID)
		}
		if !errors.Is(err, order.ErrOrderNotFound) {
			return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
		}
	}

	ev, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if !ev.Published {
		return nil, event.ErrEventNotPublished
	}

	// 価格計算の入力（埋まり率・需要率）はトランザクション外で取得してよい
	// 確定価格はトランザクション内で一度だけ計算され、以後再計算されない
	counts, err := s.inventoryRepo.CountByStatus(ctx, input.EventID)
	if err != nil {
		return nil, fmt.Errorf("座席数の取得に失敗: %w", err)
	}
	multiplier := s.demandMultiplier(ctx, input.EventID)
	hoursUntil := ev.HoursUntilStart(s.now())

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// (a) 座席＋セクション＋基本価格をイベントスコープで取得。件数不一致は不正な座席
	details, err := s.venueRepo.GetEventSeatDetails(ctx, input.EventID, input.SeatIDs)
	if err != nil {
		return nil, err
	}
	if len(details) != len(input.SeatIDs) {
		return nil, inventory.ErrInvalidSeats
	}
	detailBySeat := make(map[string]*venue.SeatDetail, len(details))
	for _, d := range details {
		detailBySeat[d.SeatID] = d
	}

	// (b) 各座席のホールドを検証（選択から確定までの間にホールドは失効しうる）
	records, err := s.inventoryRepo.GetByEventAndSeatIDs(ctx, tx, input.EventID, input.SeatIDs)
	if err != nil {
		return nil, err
	}
	recordBySeat := make(map[string]*inventory.Record, len(records))
	for _, rec := range records {
		recordBySeat[rec.SeatID] = rec
	}
	now := s.now()
	for _, seatID := range input.SeatIDs {
		rec, ok := recordBySeat[seatID]
		if !ok {
			return nil, inventory.ErrInvalidSeats
		}
		if rec.Status != inventory.StatusLocked || !rec.IsHeldBy(input.UserID) || rec.HoldExpired(s.lockTTL, now) {
			s.countBooking("lock_lost")
			return nil, fmt.Errorf("%w: 座席 %s", inventory.ErrLockLost, seatID)
		}
	}

	// (c) 価格計算: 基本価格×クランプ済み需要乗数を座席ごとに確定し合計する
	seatPrices := make(map[string]int, len(input.SeatIDs))
	totalAmount := 0
	for _, seatID := range input.SeatIDs {
		d := detailBySeat[seatID]
		base := s.engine.ComputeBasePrice(d.SeatType, counts.FillRatio(), hoursUntil)
		price := pricing.ApplyMultiplier(base, multiplier)
		seatPrices[seatID] = price
		totalAmount += price
	}

	// (d) 注文を作成（status=pending、冪等性キーは一意制約で保護）
	o := order.NewOrder(input.UserID, input.EventID, totalAmount, input.IdempotencyKey)
	if err := s.orderRepo.Create(ctx, tx, o); err != nil {
		if errors.Is(err, order.ErrIdempotencyKeyAlreadyUsed) {
			// 同一キーの並行リクエストに負けた。ロールバック後に勝者の注文を返す
			tx.Rollback()
			existing, ferr := s.orderRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
			if ferr != nil {
				return nil, fmt.Errorf("冪等性キー競合後の再取得に失敗: %w", ferr)
			}
			return s.idempotentHit(ctx, existing, input.UserID)
		}
		return nil, err
	}

	// (e) locked→reserved のガード付き一括遷移。遷移行数の不一致は
	// 検証(b)以降に競合が起きた証拠であり、二重予約を防ぐ唯一の決定的ガード
	n, err := s.inventoryRepo.ReserveHeld(ctx, tx, input.EventID, input.SeatIDs, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("座席の予約遷移に失敗: %w", err)
	}
	if n != len(input.SeatIDs) {
		s.countBooking("conflict")
		return nil, inventory.ErrConcurrencyConflict
	}

	// (f) 座席ごとに確定価格と不透明コードを持つチケットを作成
	tickets := make([]*order.Ticket, 0, len(input.SeatIDs))
	for _, seatID := range input.SeatIDs {
		tickets = append(tickets, order.NewTicket(o.ID, seatID, seatPrices[seatID]))
	}
	if err := s.orderRepo.CreateTickets(ctx, tx, tickets); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.countBooking("success")

	// コミット後の副作用はすべてfire-and-forget。失敗しても予約は成立済み
	s.recordDemandAsync(input.EventID, len(input.SeatIDs))
	publishAsync(s.notifier, notifier.TopicSeats, notifier.EventSeatsReserved, SeatsEventPayload{
		EventID: input.EventID, SeatIDs: input.SeatIDs, OrderID: o.ID,
	})
	publishAsync(s.notifier, notifier.TopicOrders, notifier.EventOrderCreated, OrderEventPayload{
		OrderID: o.ID, UserID: o.UserID, EventID: o.EventID,
		TotalAmount: o.TotalAmount, Status: string(o.Status),
	})

	return &BookingResult{Order: o, Tickets: tickets}, nil
}

// GetOrder は注文を所有者チェック付きで取得する
func (s *BookingService) GetOrder(ctx context.Context, orderID, userID string) (*BookingResult, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.BelongsTo(userID) {
		return nil, order.ErrForbidden
	}
	tickets, err := s.orderRepo.GetTickets(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &BookingResult{Order: o, Tickets: tickets}, nil
}

// idempotentHit はリトライされたリクエストへ既存の注文を返す
// 別ユーザーのキーを使ったリクエストは拒否する
func (s *BookingService) idempotentHit(ctx context.Context, existing *order.Order, userID string) (*BookingResult, error) {
	if !existing.BelongsTo(userID) {
		return nil, order.ErrForbidden
	}
	tickets, err := s.orderRepo.GetTickets(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	s.countBooking("idempotent_hit")
	return &BookingResult{Order: existing, Tickets: tickets}, nil
}

// demandMultiplier は需要率から価格乗数を求め、安全範囲にクランプする
// 需要シグナルの取得失敗は乗数1.0として扱う（助言的な入力のため）
func (s *BookingService) demandMultiplier(ctx context.Context, eventID string) float64 {
	if s.demand == nil || s.demandModel == nil {
		return pricing.MinMultiplier
	}
	rate, err := s.demand.DemandRate(ctx, eventID)
	if err != nil {
		logger.Debug("需要率の取得に失敗", zap.Error(err))
		return pricing.MinMultiplier
	}
	return pricing.ClampMultiplier(s.demandModel.PredictMultiplier(rate))
}

func (s *BookingService) recordDemandAsync(eventID string, seats int) {
	if s.demand == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.demand.RecordBooking(ctx, eventID, seats); err != nil {
			logger.Debug("需要シグナルの記録に失敗", zap.Error(err))
		}
	}()
}

func (s *BookingService) countBooking(status string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(status).Inc()
	}
}
