package application

import (
	"context"
	"time"
)

// SeatHoldCache は座席ホルダーの助言的キャッシュのインターフェース
// 高速リジェクトのための純粋な最適化であり、正しさには寄与しない
// （権威はリレーショナルストアの行ロックのみ）。実装はnilでも動作する
type SeatHoldCache interface {
	// GetHolder はキャッシュ上のホルダーIDを返す。エントリがなければ空文字を返す
	GetHolder(ctx context.Context, eventID, seatID string) (string, error)

	// SetHolder はホルダーIDをTTL付きで記録する
	SetHolder(ctx context.Context, eventID, seatID, holderID string, ttl time.Duration) error

	// Delete はエントリを削除する
	Delete(ctx context.Context, eventID, seatID string) error
}

// DemandRecorder は需要シグナルを記録・参照するインターフェース
// 記録の失敗は予約処理に影響しない
type DemandRecorder interface {
	// RecordBooking は予約された座席数を需要シグナルとして記録する
	RecordBooking(ctx context.Context, eventID string, seats int) error

	// DemandRate はイベントの直近の需要率（0〜1）を返す
	DemandRate(ctx context.Context, eventID string) (float64, error)
}
