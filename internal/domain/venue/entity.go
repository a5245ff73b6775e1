package venue

import "time"

// Venue は会場エンティティを表す
type Venue struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Section は会場内のセクションを表す
type Section struct {
	ID       string
	VenueID  string
	Name     string
	SeatType string
}

// Seat は物理座席を表す
// 座席はセクションを介して会場に属する
type Seat struct {
	ID        string
	SectionID string
	Row       string
	Number    int
	BasePrice int
}

// SeatDetail は座席・セクション・会場を結合した読み取りビュー
// ロック取得時の物理座席検証と予約時の価格計算で使用する
type SeatDetail struct {
	SeatID      string
	SectionID   string
	SectionName string
	SeatType    string
	VenueID     string
	Row         string
	Number      int
	BasePrice   int
}
