package venue

import "context"

// Repository は会場リポジトリのインターフェース
type Repository interface {
	// GetSeatDetail は座席の詳細ビューを取得する
	GetSeatDetail(ctx context.Context, seatID string) (*SeatDetail, error)

	// GetEventSeatDetails はイベントの会場に属する指定座席の詳細ビューを取得する
	// 会場外の座席は結果に含まれないため、件数の不一致で不正な座席を検出できる
	GetEventSeatDetails(ctx context.Context, eventID string, seatIDs []string) ([]*SeatDetail, error)
}
