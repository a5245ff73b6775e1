package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/notifier"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

const publishTimeout = 5 * time.Second

// SeatEventPayload は座席系イベントのペイロード
type SeatEventPayload struct {
	EventID  string `json:"event_id"`
	SeatID   string `json:"seat_id"`
	HolderID string `json:"holder_id,omitempty"`
}

// SeatsEventPayload は複数座席イベントのペイロード
type SeatsEventPayload struct {
	EventID string   `json:"event_id"`
	SeatIDs []string `json:"seat_ids"`
	OrderID string   `json:"order_id,omitempty"`
}

// OrderEventPayload は注文系イベントのペイロード
type OrderEventPayload struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	EventID     string `json:"event_id"`
	TotalAmount int    `json:"total_amount"`
	Status      string `json:"status"`
}

// publishAsync はイベントを非同期で配信する
// 配信失敗はログに残して握りつぶす（コミット済みの処理を失敗扱いにしない）
func publishAsync(n notifier.Notifier, topic, eventType string, payload any) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := n.Publish(ctx, topic, eventType, payload); err != nil {
			logger.Warn("イベント通知に失敗",
				zap.String("topic", topic),
				zap.String("type", eventType),
				zap.Error(err),
			)
		}
	}()
}
