package order

import "errors"

// Order ドメインのエラー定義
var (
	ErrOrderNotFound             = errors.New("注文が見つかりません")
	ErrInvalidRequest            = errors.New("リクエストが不正です")
	ErrForbidden                 = errors.New("この注文に対する権限がありません")
	ErrOrderNotPending           = errors.New("注文は保留中ではありません")
	ErrOrderAlreadyCompleted     = errors.New("注文は既に完了しています")
	ErrOrderAlreadyCancelled     = errors.New("注文は既にキャンセルされています")
	ErrIdempotencyKeyAlreadyUsed = errors.New("同じ冪等性キーの注文が既に存在します")
)
