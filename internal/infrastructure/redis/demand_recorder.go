package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
)

// DefaultDemandWindow は需要カウンターの観測ウィンドウ
const DefaultDemandWindow = 1 * time.Hour

// DemandRecorder はイベントごとの需要シグナルをRedisカウンターで記録する
// ウィンドウ内の予約座席数を capacity で割った値を需要率として返す
type DemandRecorder struct {
	client   *redis.Client
	window   time.Duration
	capacity int
}

// NewDemandRecorder は新しいDemandRecorderインスタンスを作成する
// capacity はウィンドウ内の予約座席数を需要率に正規化する分母
func NewDemandRecorder(client *redis.Client, window time.Duration, capacity int) *DemandRecorder {
	if window <= 0 {
		window = DefaultDemandWindow
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &DemandRecorder{client: client, window: window, capacity: capacity}
}

// RecordBooking は予約された座席数を需要カウンターに加算する
// 初回加算時にウィンドウ分のTTLを設定する
func (r *DemandRecorder) RecordBooking(ctx context.Context, eventID string, seats int) error {
	key := r.demandKey(eventID)
	pipe := r.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(seats))
	pipe.ExpireNX(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("需要カウンター更新に失敗: %w", err)
	}
	return nil
}

// DemandRate はウィンドウ内の需要率（0〜1）を返す
// カウンターが存在しない場合は0を返す
func (r *DemandRecorder) DemandRate(ctx context.Context, eventID string) (float64, error) {
	val, err := r.client.Get(ctx, r.demandKey(eventID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("需要カウンター取得に失敗: %w", err)
	}
	rate := float64(val) / float64(r.capacity)
	if rate > 1 {
		rate = 1
	}
	return rate, nil
}

func (r *DemandRecorder) demandKey(eventID string) string {
	return fmt.Sprintf("demand:%s", eventID)
}

var _ application.DemandRecorder = (*DemandRecorder)(nil)
