package notifier

import "context"

// トピック定義
const (
	TopicSeats  = "seats"
	TopicOrders = "orders"
)

// イベント種別定義
const (
	EventSeatLocked     = "LOCKED"
	EventSeatUnlocked   = "UNLOCKED"
	EventSeatsReserved  = "SEATS_RESERVED"
	EventOrderCreated   = "ORDER_CREATED"
	EventPaymentSuccess = "PAYMENT_SUCCESS"
	EventSeatsFinalized = "SEATS_FINALIZED"
	EventSeatsReleased  = "SEATS_RELEASED"
)

// Notifier はドメインイベントを購読者へ配信するインターフェース
// 配信は fire-and-forget / at-least-once であり、失敗しても呼び出し元の
// コミット済み処理に影響を与えてはならない
type Notifier interface {
	Publish(ctx context.Context, topic, eventType string, payload any) error
}

// Nop は何もしないNotifier実装
// 通知基盤なしでコアを動かすテストやローカル実行で使用する
type Nop struct{}

// Publish は常に成功する
func (Nop) Publish(ctx context.Context, topic, eventType string, payload any) error {
	return nil
}

var _ Notifier = Nop{}
