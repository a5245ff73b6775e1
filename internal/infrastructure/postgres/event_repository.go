package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
)

type eventRow struct {
	ID          string    `db:"id"`
	VenueID     string    `db:"venue_id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	StartsAt    time.Time `db:"starts_at"`
	EndsAt      time.Time `db:"ends_at"`
	Published   bool      `db:"published"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *eventRow) toEntity() *event.Event {
	var desc string
	if r.Description != nil {
		desc = *r.Description
	}
	return &event.Event{
		ID:          r.ID,
		VenueID:     r.VenueID,
		Name:        r.Name,
		Description: desc,
		StartsAt:    r.StartsAt,
		EndsAt:      r.EndsAt,
		Published:   r.Published,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT id, venue_id, name, description, starts_at, ends_at, published, created_at, updated_at
		FROM events WHERE id = $1`
	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

var _ event.Repository = (*EventRepository)(nil)
