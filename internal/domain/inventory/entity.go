package inventory

import "time"

// Status は座席在庫の状態を表す
type Status string

const (
	StatusAvailable Status = "available"
	StatusLocked    Status = "locked"
	StatusReserved  Status = "reserved"
	StatusBooked    Status = "booked"
)

// Record は座席在庫レコードを表す
// (EventID, SeatID) ごとに1行存在し、排他制御の単位となる
type Record struct {
	ID        string
	EventID   string
	SeatID    string
	Status    Status
	HolderID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord は利用可能状態の新しい在庫レコードを作成する
// 初回ロック試行時の遅延生成、またはイベント公開時の一括生成で使用する
func NewRecord(eventID, seatID string) *Record {
	now := time.Now()
	return &Record{
		EventID:   eventID,
		SeatID:    seatID,
		Status:    StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsExpired はロックの有効期限切れを判定する共有述語
// 読み取り時のソフト期限切れ判定と回収スイープの両方がこの関数を使う
func IsExpired(updatedAt time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(updatedAt) > ttl
}

// IsHeldBy は指定ホルダーがロックを保持しているかを返す
func (r *Record) IsHeldBy(holderID string) bool {
	return r.HolderID != nil && *r.HolderID == holderID
}

// IsFinal は座席が予約済みまたは購入済みかを返す
func (r *Record) IsFinal() bool {
	return r.Status == StatusReserved || r.Status == StatusBooked
}

// HoldExpired はロック状態の座席のTTLが切れているかを返す
// ロック状態以外では常にfalse
func (r *Record) HoldExpired(ttl time.Duration, now time.Time) bool {
	return r.Status == StatusLocked && IsExpired(r.UpdatedAt, ttl, now)
}

// Lock は座席をロック状態にする
// 同一ホルダーによる再取得もここを通り、UpdatedAtの更新でTTLがリフレッシュされる
func (r *Record) Lock(holderID string, now time.Time) {
	r.Status = StatusLocked
	r.HolderID = &holderID
	r.UpdatedAt = now
}

// Release は座席を利用可能状態に戻す
func (r *Record) Release(now time.Time) {
	r.Status = StatusAvailable
	r.HolderID = nil
	r.UpdatedAt = now
}

// EffectiveStatus は読み取り用の実効状態を返す
// 期限切れのロックはストレージを変更せず利用可能として提示する
func (r *Record) EffectiveStatus(ttl time.Duration, now time.Time) Status {
	if r.HoldExpired(ttl, now) {
		return StatusAvailable
	}
	return r.Status
}

// SeatSnapshot は座席の物理情報と在庫状態を結合したビュー
type SeatSnapshot struct {
	SeatID      string
	EventID     string
	SectionID   string
	SectionName string
	SeatType    string
	Row         string
	Number      int
	BasePrice   int
	Status      Status
	HolderID    *string
	UpdatedAt   time.Time
}
