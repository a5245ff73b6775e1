package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound     = errors.New("イベントが見つかりません")
	ErrEventNotPublished = errors.New("イベントは公開されていません")
)
