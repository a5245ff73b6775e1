package inventory

import "errors"

// Inventory ドメインのエラー定義
var (
	ErrSeatNotFound        = errors.New("座席在庫が見つかりません")
	ErrInvalidSeats        = errors.New("指定された座席が不正です")
	ErrSeatUnavailable     = errors.New("座席は他のユーザーが保持しています")
	ErrSeatAlreadyFinal    = errors.New("座席は既に確保されています")
	ErrNotLockHolder       = errors.New("ロックの保持者ではありません")
	ErrLockLost            = errors.New("座席のロックが失効しています")
	ErrConcurrencyConflict = errors.New("座席の状態が競合により変化しました")
)
