package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/venue"
)

type seatDetailRow struct {
	SeatID      string `db:"seat_id"`
	SectionID   string `db:"section_id"`
	SectionName string `db:"section_name"`
	SeatType    string `db:"seat_type"`
	VenueID     string `db:"venue_id"`
	Row         string `db:"seat_row"`
	Number      int    `db:"seat_number"`
	BasePrice   int    `db:"base_price"`
}

func (r *seatDetailRow) toEntity() *venue.SeatDetail {
	return &venue.SeatDetail{
		SeatID:      r.SeatID,
		SectionID:   r.SectionID,
		SectionName: r.SectionName,
		SeatType:    r.SeatType,
		VenueID:     r.VenueID,
		Row:         r.Row,
		Number:      r.Number,
		BasePrice:   r.BasePrice,
	}
}

// VenueRepository は会場リポジトリのPostgreSQL実装
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository はVenueRepositoryを作成する
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

func (r *VenueRepository) GetSeatDetail(ctx context.Context, seatID string) (*venue.SeatDetail, error) {
	query := `SELECT s.id AS seat_id, sec.id AS section_id, sec.name AS section_name,
			sec.seat_type, sec.venue_id, s.seat_row, s.seat_number, s.base_price
		FROM seats s
		JOIN sections sec ON sec.id = s.section_id
		WHERE s.id = $1`
	var row seatDetailRow
	if err := r.db.GetContext(ctx, &row, query, seatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, venue.ErrSeatNotFound
		}
		return nil, fmt.Errorf("座席詳細取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetEventSeatDetails はイベントの会場に属する指定座席の詳細ビューを取得する
// 会場外の座席は結果に含まれない
func (r *VenueRepository) GetEventSeatDetails(ctx context.Context, eventID string, seatIDs []string) ([]*venue.SeatDetail, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT s.id AS seat_id, sec.id AS section_id, sec.name AS section_name,
			sec.seat_type, sec.venue_id, s.seat_row, s.seat_number, s.base_price
		FROM seats s
		JOIN sections sec ON sec.id = s.section_id
		JOIN events e ON e.venue_id = sec.venue_id
		WHERE e.id = $1 AND s.id = ANY($2)`
	var rows []seatDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, eventID, pq.Array(seatIDs)); err != nil {
		return nil, fmt.Errorf("座席詳細一覧取得に失敗: %w", err)
	}
	details := make([]*venue.SeatDetail, len(rows))
	for i, row := range rows {
		details[i] = row.toEntity()
	}
	return details, nil
}

var _ venue.Repository = (*VenueRepository)(nil)
