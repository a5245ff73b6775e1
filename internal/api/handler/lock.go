package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-ticket-booking/internal/api"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
)

// LockHandler は座席ロックのHTTPハンドラー
type LockHandler struct {
	service LockServiceInterface
}

func NewLockHandler(s LockServiceInterface) *LockHandler {
	return &LockHandler{service: s}
}

// SeatSnapshotResponse は座席スナップショットのレスポンス
type SeatSnapshotResponse struct {
	SeatID      string    `json:"seat_id"`
	EventID     string    `json:"event_id"`
	SectionID   string    `json:"section_id"`
	SectionName string    `json:"section_name"`
	SeatType    string    `json:"seat_type"`
	Row         string    `json:"row"`
	Number      int       `json:"number"`
	BasePrice   int       `json:"base_price"`
	Status      string    `json:"status"`
	HolderID    *string   `json:"holder_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toSeatSnapshotResponse(s *inventory.SeatSnapshot) SeatSnapshotResponse {
	return SeatSnapshotResponse{
		SeatID: s.SeatID, EventID: s.EventID, SectionID: s.SectionID,
		SectionName: s.SectionName, SeatType: s.SeatType,
		Row: s.Row, Number: s.Number, BasePrice: s.BasePrice,
		Status: string(s.Status), HolderID: s.HolderID, UpdatedAt: s.UpdatedAt,
	}
}

// Acquire は座席ロックを取得する
// @Summary 座席をロック
// @Description 座席に期限付きロックを掛けます
// @Tags seats
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param event_id path string true "イベントID"
// @Param seat_id path string true "座席ID"
// @Success 200 {object} SeatSnapshotResponse
// @Failure 409 {object} api.ErrorResponse "座席が他ユーザーに保持されている"
// @Router /events/{event_id}/seats/{seat_id}/lock [post]
func (h *LockHandler) Acquire(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	snapshot, err := h.service.AcquireLock(
		c.Request().Context(), c.Param("event_id"), c.Param("seat_id"), userID,
	)
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toSeatSnapshotResponse(snapshot))
}

// Release は座席ロックを解放する
// @Summary 座席ロックを解放
// @Tags seats
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param event_id path string true "イベントID"
// @Param seat_id path string true "座席ID"
// @Success 204
// @Failure 409 {object} api.ErrorResponse "ロック保持者でない"
// @Router /events/{event_id}/seats/{seat_id}/lock [delete]
func (h *LockHandler) Release(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	err := h.service.ReleaseLock(
		c.Request().Context(), c.Param("event_id"), c.Param("seat_id"), userID,
	)
	if err != nil {
		return api.DomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSeats はイベントの座席一覧を取得する
// @Summary 座席一覧を取得
// @Description イベントの座席を実効ステータス付きで一覧します
// @Tags seats
// @Produce json
// @Param event_id path string true "イベントID"
// @Param section_id query string false "セクションID"
// @Success 200 {array} SeatSnapshotResponse
// @Router /events/{event_id}/seats [get]
func (h *LockHandler) ListSeats(c echo.Context) error {
	snapshots, err := h.service.ListSeats(
		c.Request().Context(), c.Param("event_id"), c.QueryParam("section_id"),
	)
	if err != nil {
		return api.DomainError(err)
	}
	resp := make([]SeatSnapshotResponse, len(snapshots))
	for i, s := range snapshots {
		resp[i] = toSeatSnapshotResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// Materialize はイベントの座席在庫レコードを事前作成する
// @Summary 在庫レコードを事前作成
// @Tags seats
// @Produce json
// @Param event_id path string true "イベントID"
// @Success 200 {object} map[string]int
// @Router /events/{event_id}/inventory/materialize [post]
func (h *LockHandler) Materialize(c echo.Context) error {
	count, err := h.service.MaterializeEventInventory(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"created": count})
}
