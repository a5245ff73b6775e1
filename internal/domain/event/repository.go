package event

import "context"

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)
}
