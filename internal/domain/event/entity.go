package event

import "time"

// Event はイベントエンティティを表す
type Event struct {
	ID          string
	VenueID     string
	Name        string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HoursUntilStart は開演までの残り時間を返す
// 開演後は0を返す（価格計算の入力として使用）
func (e *Event) HoursUntilStart(now time.Time) float64 {
	h := e.StartsAt.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}
