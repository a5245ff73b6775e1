package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-ticket-booking/internal/api"
	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
)

// BookingHandler は予約のHTTPハンドラー
type BookingHandler struct {
	bookingService BookingServiceInterface
	cancelService  CancellationServiceInterface
}

func NewBookingHandler(bs BookingServiceInterface, cs CancellationServiceInterface) *BookingHandler {
	return &BookingHandler{bookingService: bs, cancelService: cs}
}

type BookTicketsRequest struct {
	EventID        string   `json:"event_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	SeatIDs        []string `json:"seat_ids" validate:"required,min=1" example:"seat-A1,seat-A2"`
	IdempotencyKey string   `json:"idempotency_key" example:"booking-2026-001"`
}

type TicketResponse struct {
	ID     string `json:"id"`
	SeatID string `json:"seat_id"`
	Price  int    `json:"price"`
	Code   string `json:"code"`
}

type OrderResponse struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	EventID     string           `json:"event_id"`
	TotalAmount int              `json:"total_amount"`
	Status      string           `json:"status"`
	PaymentRef  *string          `json:"payment_ref,omitempty"`
	Tickets     []TicketResponse `json:"tickets,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func toOrderResponse(o *order.Order, tickets []*order.Ticket) OrderResponse {
	resp := OrderResponse{
		ID: o.ID, UserID: o.UserID, EventID: o.EventID,
		TotalAmount: o.TotalAmount, Status: string(o.Status),
		PaymentRef: o.PaymentRef, CreatedAt: o.CreatedAt,
	}
	for _, t := range tickets {
		resp.Tickets = append(resp.Tickets, TicketResponse{
			ID: t.ID, SeatID: t.SeatID, Price: t.Price, Code: t.Code,
		})
	}
	return resp
}

// Book はロック済み座席を注文に変換する
// @Summary チケットを予約
// @Description ロック中の座席を注文＋チケットに変換します
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body BookTicketsRequest true "予約情報"
// @Success 201 {object} OrderResponse
// @Failure 409 {object} api.ErrorResponse "ロック喪失または競合"
// @Router /bookings [post]
func (h *BookingHandler) Book(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req BookTicketsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	result, err := h.bookingService.BookTickets(c.Request().Context(), application.BookTicketsInput{
		UserID: userID, EventID: req.EventID,
		SeatIDs: req.SeatIDs, IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(result.Order, result.Tickets))
}

// GetByID は注文を取得する
// @Summary 注文を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "注文ID"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	result, err := h.bookingService.GetOrder(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(result.Order, result.Tickets))
}

// Cancel は注文をキャンセルし、座席を解放する
// @Summary 注文をキャンセル
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "注文ID"
// @Success 200 {object} OrderResponse
// @Failure 409 {object} api.ErrorResponse "既にキャンセル済み"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	o, err := h.cancelService.CancelBooking(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o, nil))
}
