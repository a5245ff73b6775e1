package order

import (
	"context"
	"time"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

// Repository は注文リポジトリのインターフェース
type Repository interface {
	// Create は新しい注文を作成する（トランザクション必須）
	// 冪等性キーの一意制約違反は ErrIdempotencyKeyAlreadyUsed を返す
	Create(ctx context.Context, tx transaction.Tx, o *Order) error

	// CreateTickets はチケットを一括作成する（トランザクション必須）
	CreateTickets(ctx context.Context, tx transaction.Tx, tickets []*Ticket) error

	// GetByID はIDから注文を取得する
	GetByID(ctx context.Context, id string) (*Order, error)

	// GetByIdempotencyKey は冪等性キーから注文を取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)

	// UpdateIfStatus は現在の状態が expected のいずれかである場合に限り、
	// 注文の状態と支払い参照を書き戻す（トランザクション必須）
	// 遷移が行われたかを返す。0行更新は読み取り後に別の遷移が割り込んだことを意味する
	UpdateIfStatus(ctx context.Context, tx transaction.Tx, o *Order, expected ...Status) (bool, error)

	// GetTickets は注文に紐づくチケット一覧を取得する
	GetTickets(ctx context.Context, orderID string) ([]*Ticket, error)

	// GetAbandonedPending は指定時間を超えて保留のままの注文を取得する
	GetAbandonedPending(ctx context.Context, olderThan time.Duration) ([]*Order, error)
}
