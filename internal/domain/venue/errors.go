package venue

import "errors"

// Venue ドメインのエラー定義
var (
	ErrSeatNotFound    = errors.New("座席が見つかりません")
	ErrSectionNotFound = errors.New("セクションが見つかりません")
	ErrVenueNotFound   = errors.New("会場が見つかりません")
)
