package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
)

// HoldCache は座席ホルダーの助言キャッシュを管理する
// あくまで高速な事前判定用であり、権威はデータベースの行ロックにある
type HoldCache struct {
	client *redis.Client
}

// NewHoldCache は新しいHoldCacheインスタンスを作成する
func NewHoldCache(client *redis.Client) *HoldCache {
	return &HoldCache{client: client}
}

// GetHolder は座席の現在のホルダーをキャッシュから取得する
// エントリが存在しない場合は空文字列を返す
func (c *HoldCache) GetHolder(ctx context.Context, eventID, seatID string) (string, error) {
	val, err := c.client.Get(ctx, c.holdKey(eventID, seatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("ホルダーキャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetHolder は座席のホルダーをTTL付きでキャッシュに保存する
func (c *HoldCache) SetHolder(ctx context.Context, eventID, seatID, holderID string, ttl time.Duration) error {
	err := c.client.Set(ctx, c.holdKey(eventID, seatID), holderID, ttl).Err()
	if err != nil {
		return fmt.Errorf("ホルダーキャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Delete は座席のホルダーエントリを削除する
func (c *HoldCache) Delete(ctx context.Context, eventID, seatID string) error {
	err := c.client.Del(ctx, c.holdKey(eventID, seatID)).Err()
	if err != nil {
		return fmt.Errorf("ホルダーキャッシュ削除に失敗: %w", err)
	}
	return nil
}

func (c *HoldCache) holdKey(eventID, seatID string) string {
	return fmt.Sprintf("hold:%s:%s", eventID, seatID)
}

var _ application.SeatHoldCache = (*HoldCache)(nil)
