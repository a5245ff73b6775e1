package order

import (
	"time"

	"github.com/google/uuid"
)

// Status は注文の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Order は注文エンティティを表す
// TotalAmount は予約トランザクション内で一度だけ計算され、以後再計算されない
type Order struct {
	ID             string
	UserID         string
	EventID        string
	TotalAmount    int
	Status         Status
	IdempotencyKey *string
	PaymentRef     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder は保留状態の新しい注文を作成する
// idempotencyKey が空文字の場合はキーなしの注文となる
func NewOrder(userID, eventID string, totalAmount int, idempotencyKey string) *Order {
	now := time.Now()
	o := &Order{
		UserID:      userID,
		EventID:     eventID,
		TotalAmount: totalAmount,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if idempotencyKey != "" {
		o.IdempotencyKey = &idempotencyKey
	}
	return o
}

// BelongsTo は注文が指定ユーザーのものかを返す
func (o *Order) BelongsTo(userID string) bool {
	return o.UserID == userID
}

// IsPending は注文が保留中かを返す
func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}

// Complete は支払い確認により注文を完了させる
func (o *Order) Complete(paymentRef string) error {
	if o.Status == StatusCompleted {
		return ErrOrderAlreadyCompleted
	}
	if o.Status != StatusPending {
		return ErrOrderNotPending
	}
	o.Status = StatusCompleted
	o.PaymentRef = &paymentRef
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel は注文をキャンセルする
// 保留中および完了済みの注文をキャンセルできる（明示キャンセルは通常フローの外でも許可）
func (o *Order) Cancel() error {
	if o.Status == StatusCancelled {
		return ErrOrderAlreadyCancelled
	}
	if o.Status == StatusRefunded {
		return ErrOrderNotPending
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// Ticket はチケットエンティティを表す
// 予約された座席ごとに1枚作成され、作成後は変更されない
type Ticket struct {
	ID        string
	OrderID   string
	SeatID    string
	Price     int
	Code      string
	CreatedAt time.Time
}

// NewTicket は確定価格と不透明コードを持つ新しいチケットを作成する
func NewTicket(orderID, seatID string, price int) *Ticket {
	return &Ticket{
		OrderID:   orderID,
		SeatID:    seatID,
		Price:     price,
		Code:      uuid.New().String(),
		CreatedAt: time.Now(),
	}
}
