package inventory

import (
	"context"
	"time"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

// ReclaimedSeat は回収スイープで解放された座席を表す
type ReclaimedSeat struct {
	EventID string
	SeatID  string
}

// StatusCounts はイベントの状態別座席数
type StatusCounts struct {
	Available int
	Locked    int
	Reserved  int
	Booked    int
}

// Total は全座席数を返す
func (c StatusCounts) Total() int {
	return c.Available + c.Locked + c.Reserved + c.Booked
}

// FillRatio は確保済み座席の比率を返す（予約済み+購入済み÷全体）
func (c StatusCounts) FillRatio() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Reserved+c.Booked) / float64(total)
}

// Repository は座席在庫リポジトリのインターフェース
type Repository interface {
	// GetForUpdate は在庫レコードを排他行ロック付きで取得する（トランザクション必須）
	GetForUpdate(ctx context.Context, tx transaction.Tx, eventID, seatID string) (*Record, error)

	// Create は在庫レコードを作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, rec *Record) error

	// Update は在庫レコードの状態を書き戻す（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, rec *Record) error

	// GetByEventAndSeatIDs はイベント内の指定座席の在庫レコードを取得する
	GetByEventAndSeatIDs(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) ([]*Record, error)

	// ReserveHeld はロック中の座席を予約済みに一括遷移する
	// (event_id, seat_id, status=locked, holder_id) をガード条件とし、遷移できた行数を返す
	ReserveHeld(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string, holderID string) (int, error)

	// FinalizeReserved は予約済みの座席を購入済みに一括遷移する
	// status=reserved をガード条件とし、遷移できた行数を返す
	FinalizeReserved(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) (int, error)

	// ReleaseAll は座席を現在の状態にかかわらず利用可能に戻す（キャンセル用）
	ReleaseAll(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) error

	// ReclaimExpired は期限切れロックを単一のガード付きUPDATEで解放する
	// eventID が空文字の場合は全イベントを対象とする
	ReclaimExpired(ctx context.Context, ttl time.Duration, eventID string) ([]ReclaimedSeat, error)

	// MaterializeForEvent はイベント会場の全座席の在庫レコードを一括生成する
	// 既存の行は変更せず、生成した行数を返す
	MaterializeForEvent(ctx context.Context, eventID string) (int, error)

	// ListByEvent はイベントの座席スナップショット一覧を返す
	// sectionID が空文字の場合は全セクションを対象とする
	ListByEvent(ctx context.Context, eventID, sectionID string) ([]*SeatSnapshot, error)

	// CountByStatus はイベントの状態別座席数を返す
	CountByStatus(ctx context.Context, eventID string) (StatusCounts, error)
}
