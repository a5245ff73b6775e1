package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

type inventoryRow struct {
	ID        string    `db:"id"`
	EventID   string    `db:"event_id"`
	SeatID    string    `db:"seat_id"`
	Status    string    `db:"status"`
	HolderID  *string   `db:"holder_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *inventoryRow) toEntity() *inventory.Record {
	return &inventory.Record{
		ID:        r.ID,
		EventID:   r.EventID,
		SeatID:    r.SeatID,
		Status:    inventory.Status(r.Status),
		HolderID:  r.HolderID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type snapshotRow struct {
	SeatID      string    `db:"seat_id"`
	EventID     string    `db:"event_id"`
	SectionID   string    `db:"section_id"`
	SectionName string    `db:"section_name"`
	SeatType    string    `db:"seat_type"`
	Row         string    `db:"seat_row"`
	Number      int       `db:"seat_number"`
	BasePrice   int       `db:"base_price"`
	Status      string    `db:"status"`
	HolderID    *string   `db:"holder_id"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// InventoryRepository は座席在庫リポジトリのPostgreSQL実装
// すべての複数行遷移は検証と変更の間に競合窓を作らない単一のガード付きUPDATEで行う
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository はInventoryRepositoryを作成する
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// GetForUpdate は在庫レコードを FOR UPDATE の排他行ロック付きで取得する
// この行ロックが (event_id, seat_id) に対する順序付けの唯一の権威となる
func (r *InventoryRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, eventID, seatID string) (*inventory.Record, error) {
	query := `SELECT id, event_id, seat_id, status, holder_id, created_at, updated_at
		FROM seat_inventory WHERE event_id = $1 AND seat_id = $2 FOR UPDATE`
	var row inventoryRow
	if err := UnwrapTx(tx).GetContext(ctx, &row, query, eventID, seatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrSeatNotFound
		}
		return nil, fmt.Errorf("在庫レコード取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *InventoryRepository) Create(ctx context.Context, tx transaction.Tx, rec *inventory.Record) error {
	query := `INSERT INTO seat_inventory (event_id, seat_id, status, holder_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := UnwrapTx(tx).QueryRowContext(ctx, query,
		rec.EventID, rec.SeatID, string(rec.Status), rec.HolderID, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("在庫レコード作成に失敗: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Update(ctx context.Context, tx transaction.Tx, rec *inventory.Record) error {
	query := `UPDATE seat_inventory SET status = $1, holder_id = $2, updated_at = $3 WHERE id = $4`
	result, err := UnwrapTx(tx).ExecContext(ctx, query, string(rec.Status), rec.HolderID, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("在庫レコード更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return inventory.ErrSeatNotFound
	}
	return nil
}

func (r *InventoryRepository) GetByEventAndSeatIDs(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) ([]*inventory.Record, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, event_id, seat_id, status, holder_id, created_at, updated_at
		FROM seat_inventory WHERE event_id = $1 AND seat_id = ANY($2)`
	var rows []inventoryRow
	if err := UnwrapTx(tx).SelectContext(ctx, &rows, query, eventID, pq.Array(seatIDs)); err != nil {
		return nil, fmt.Errorf("在庫レコード一覧取得に失敗: %w", err)
	}
	records := make([]*inventory.Record, len(rows))
	for i, row := range rows {
		records[i] = row.toEntity()
	}
	return records, nil
}

// ReserveHeld は locked→reserved の一括遷移を行う
// (event_id, seat_id, status=locked, holder_id) のガード条件を満たした行だけが
// 遷移し、行数の不一致は呼び出し側で競合として扱われる
func (r *InventoryRepository) ReserveHeld(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string, holderID string) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	query := `UPDATE seat_inventory SET status = 'reserved', updated_at = NOW()
		WHERE event_id = $1 AND seat_id = ANY($2) AND status = 'locked' AND holder_id = $3`
	result, err := UnwrapTx(tx).ExecContext(ctx, query, eventID, pq.Array(seatIDs), holderID)
	if err != nil {
		return 0, fmt.Errorf("座席の予約遷移に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// FinalizeReserved は reserved→booked の一括遷移を行う
// status=reserved のガードが二重確認を防ぐ
func (r *InventoryRepository) FinalizeReserved(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	query := `UPDATE seat_inventory SET status = 'booked', updated_at = NOW()
		WHERE event_id = $1 AND seat_id = ANY($2) AND status = 'reserved'`
	result, err := UnwrapTx(tx).ExecContext(ctx, query, eventID, pq.Array(seatIDs))
	if err != nil {
		return 0, fmt.Errorf("座席の確定遷移に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ReleaseAll はキャンセルされた注文の座席を現在の状態にかかわらず解放する
func (r *InventoryRepository) ReleaseAll(ctx context.Context, tx transaction.Tx, eventID string, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `UPDATE seat_inventory SET status = 'available', holder_id = NULL, updated_at = NOW()
		WHERE event_id = $1 AND seat_id = ANY($2)`
	if _, err := UnwrapTx(tx).ExecContext(ctx, query, eventID, pq.Array(seatIDs)); err != nil {
		return fmt.Errorf("座席の解放に失敗: %w", err)
	}
	return nil
}

// ReclaimExpired は期限切れロックを単一文で解放する（読み取り→書き込みの間隙なし）
func (r *InventoryRepository) ReclaimExpired(ctx context.Context, ttl time.Duration, eventID string) ([]inventory.ReclaimedSeat, error) {
	query := `UPDATE seat_inventory SET status = 'available', holder_id = NULL, updated_at = NOW()
		WHERE status = 'locked' AND updated_at < NOW() - $1::interval`
	args := []interface{}{fmt.Sprintf("%d milliseconds", ttl.Milliseconds())}
	if eventID != "" {
		query += ` AND event_id = $2`
		args = append(args, eventID)
	}
	query += ` RETURNING event_id, seat_id`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("期限切れロックの回収に失敗: %w", err)
	}
	defer rows.Close()

	var reclaimed []inventory.ReclaimedSeat
	for rows.Next() {
		var seat inventory.ReclaimedSeat
		if err := rows.Scan(&seat.EventID, &seat.SeatID); err != nil {
			return nil, fmt.Errorf("回収結果の読み取りに失敗: %w", err)
		}
		reclaimed = append(reclaimed, seat)
	}
	return reclaimed, rows.Err()
}

// MaterializeForEvent はイベント会場の全座席の在庫レコードを一括生成する
// ON CONFLICT DO NOTHING により既存の行は変更されない
func (r *InventoryRepository) MaterializeForEvent(ctx context.Context, eventID string) (int, error) {
	query := `INSERT INTO seat_inventory (event_id, seat_id, status, created_at, updated_at)
		SELECT e.id, s.id, 'available', NOW(), NOW()
		FROM events e
		JOIN sections sec ON sec.venue_id = e.venue_id
		JOIN seats s ON s.section_id = sec.id
		WHERE e.id = $1
		ON CONFLICT (event_id, seat_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return 0, fmt.Errorf("在庫レコードの一括生成に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (r *InventoryRepository) ListByEvent(ctx context.Context, eventID, sectionID string) ([]*inventory.SeatSnapshot, error) {
	query := `SELECT s.id AS seat_id, e.id AS event_id, sec.id AS section_id, sec.name AS section_name,
			sec.seat_type, s.seat_row, s.seat_number, s.base_price,
			COALESCE(si.status, 'available') AS status, si.holder_id,
			COALESCE(si.updated_at, e.created_at) AS updated_at
		FROM events e
		JOIN sections sec ON sec.venue_id = e.venue_id
		JOIN seats s ON s.section_id = sec.id
		LEFT JOIN seat_inventory si ON si.event_id = e.id AND si.seat_id = s.id
		WHERE e.id = $1`
	args := []interface{}{eventID}
	if sectionID != "" {
		query += ` AND sec.id = $2`
		args = append(args, sectionID)
	}
	query += ` ORDER BY sec.name, s.seat_row, s.seat_number`

	var rows []snapshotRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("座席一覧取得に失敗: %w", err)
	}
	snapshots := make([]*inventory.SeatSnapshot, len(rows))
	for i, row := range rows {
		snapshots[i] = &inventory.SeatSnapshot{
			SeatID:      row.SeatID,
			EventID:     row.EventID,
			SectionID:   row.SectionID,
			SectionName: row.SectionName,
			SeatType:    row.SeatType,
			Row:         row.Row,
			Number:      row.Number,
			BasePrice:   row.BasePrice,
			Status:      inventory.Status(row.Status),
			HolderID:    row.HolderID,
			UpdatedAt:   row.UpdatedAt,
		}
	}
	return snapshots, nil
}

func (r *InventoryRepository) CountByStatus(ctx context.Context, eventID string) (inventory.StatusCounts, error) {
	query := `SELECT
			COUNT(*) FILTER (WHERE COALESCE(si.status, 'available') = 'available') AS available,
			COUNT(*) FILTER (WHERE si.status = 'locked') AS locked,
			COUNT(*) FILTER (WHERE si.status = 'reserved') AS reserved,
			COUNT(*) FILTER (WHERE si.status = 'booked') AS booked
		FROM events e
		JOIN sections sec ON sec.venue_id = e.venue_id
		JOIN seats s ON s.section_id = sec.id
		LEFT JOIN seat_inventory si ON si.event_id = e.id AND si.seat_id = s.id
		WHERE e.id = $1`
	var counts struct {
		Available int `db:"available"`
		Locked    int `db:"locked"`
		Reserved  int `db:"reserved"`
		Booked    int `db:"booked"`
	}
	if err := r.db.GetContext(ctx, &counts, query, eventID); err != nil {
		return inventory.StatusCounts{}, fmt.Errorf("状態別座席数の取得に失敗: %w", err)
	}
	return inventory.StatusCounts{
		Available: counts.Available,
		Locked:    counts.Locked,
		Reserved:  counts.Reserved,
		Booked:    counts.Booked,
	}, nil
}

var _ inventory.Repository = (*InventoryRepository)(nil)
