package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

type orderRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	EventID        string    `db:"event_id"`
	TotalAmount    int       `db:"total_amount"`
	Status         string    `db:"status"`
	IdempotencyKey *string   `db:"idempotency_key"`
	PaymentRef     *string   `db:"payment_ref"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *orderRow) toEntity() *order.Order {
	return &order.Order{
		ID:             r.ID,
		UserID:         r.UserID,
		EventID:        r.EventID,
		TotalAmount:    r.TotalAmount,
		Status:         order.Status(r.Status),
		IdempotencyKey: r.IdempotencyKey,
		PaymentRef:     r.PaymentRef,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type ticketRow struct {
	ID        string    `db:"id"`
	OrderID   string    `db:"order_id"`
	SeatID    string    `db:"seat_id"`
	Price     int       `db:"price"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

// OrderRepository は注文リポジトリのPostgreSQL実装
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository はOrderRepositoryを作成する
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create は注文を作成する
// 冪等性キーの部分一意インデックス違反は ErrIdempotencyKeyAlreadyUsed に変換される
func (r *OrderRepository) Create(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	query := `INSERT INTO orders (user_id, event_id, total_amount, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := UnwrapTx(tx).QueryRowContext(ctx, query,
		o.UserID, o.EventID, o.TotalAmount, string(o.Status), o.IdempotencyKey, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return order.ErrIdempotencyKeyAlreadyUsed
		}
		return fmt.Errorf("注文作成に失敗: %w", err)
	}
	return nil
}

func (r *OrderRepository) CreateTickets(ctx context.Context, tx transaction.Tx, tickets []*order.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (order_id, seat_id, price, code, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	for _, t := range tickets {
		if err := UnwrapTx(tx).QueryRowContext(ctx, query,
			t.OrderID, t.SeatID, t.Price, t.Code, t.CreatedAt,
		).Scan(&t.ID); err != nil {
			return fmt.Errorf("チケット作成に失敗: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	query := `SELECT id, user_id, event_id, total_amount, status, idempotency_key, payment_ref, created_at, updated_at
		FROM orders WHERE id = $1`
	var row orderRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("注文取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	query := `SELECT id, user_id, event_id, total_amount, status, idempotency_key, payment_ref, created_at, updated_at
		FROM orders WHERE idempotency_key = $1`
	var row orderRow
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("注文取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// UpdateIfStatus は期待状態をガード条件に含めた条件付きUPDATEで注文を書き戻す
// 読み取りと書き込みの間に別トランザクションが状態を変えていた場合は0行更新となり false を返す
func (r *OrderRepository) UpdateIfStatus(ctx context.Context, tx transaction.Tx, o *order.Order, expected ...order.Status) (bool, error) {
	from := make([]string, len(expected))
	for i, s := range expected {
		from[i] = string(s)
	}
	query := `UPDATE orders SET status = $1, payment_ref = $2, updated_at = $3 WHERE id = $4 AND status = ANY($5)`
	result, err := UnwrapTx(tx).ExecContext(ctx, query, string(o.Status), o.PaymentRef, o.UpdatedAt, o.ID, pq.Array(from))
	if err != nil {
		return false, fmt.Errorf("注文更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (r *OrderRepository) GetTickets(ctx context.Context, orderID string) ([]*order.Ticket, error) {
	query := `SELECT id, order_id, seat_id, price, code, created_at FROM tickets WHERE order_id = $1 ORDER BY created_at`
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	tickets := make([]*order.Ticket, len(rows))
	for i, row := range rows {
		tickets[i] = &order.Ticket{
			ID:        row.ID,
			OrderID:   row.OrderID,
			SeatID:    row.SeatID,
			Price:     row.Price,
			Code:      row.Code,
			CreatedAt: row.CreatedAt,
		}
	}
	return tickets, nil
}

func (r *OrderRepository) GetAbandonedPending(ctx context.Context, olderThan time.Duration) ([]*order.Order, error) {
	query := `SELECT id, user_id, event_id, total_amount, status, idempotency_key, payment_ref, created_at, updated_at
		FROM orders WHERE status = 'pending' AND created_at < NOW() - $1::interval`
	var rows []orderRow
	interval := fmt.Sprintf("%d milliseconds", olderThan.Milliseconds())
	if err := r.db.SelectContext(ctx, &rows, query, interval); err != nil {
		return nil, fmt.Errorf("放置注文の取得に失敗: %w", err)
	}
	orders := make([]*order.Order, len(rows))
	for i, row := range rows {
		orders[i] = row.toEntity()
	}
	return orders, nil
}

var _ order.Repository = (*OrderRepository)(nil)
