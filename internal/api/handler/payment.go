package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-ticket-booking/internal/api"
	"github.com/sanosuguru/go-ticket-booking/internal/application"
)

// PaymentHandler は支払いのHTTPハンドラー
type PaymentHandler struct {
	service PaymentServiceInterface
}

func NewPaymentHandler(s PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type PaymentIntentResponse struct {
	ProviderOrderRef string `json:"provider_order_ref"`
	Amount           int    `json:"amount"`
	Currency         string `json:"currency"`
}

type ConfirmPaymentRequest struct {
	ProviderOrderRef   string `json:"provider_order_ref" validate:"required"`
	ProviderPaymentRef string `json:"provider_payment_ref" validate:"required"`
	Signature          string `json:"signature" validate:"required"`
}

// CreateIntent は支払いインテントを作成する
// @Summary 支払いインテントを作成
// @Tags payments
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "注文ID"
// @Success 201 {object} PaymentIntentResponse
// @Failure 409 {object} api.ErrorResponse "注文が支払い可能な状態でない"
// @Router /bookings/{id}/payment-intent [post]
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	intent, err := h.service.CreatePaymentIntent(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, PaymentIntentResponse{
		ProviderOrderRef: intent.ProviderOrderRef,
		Amount:           intent.Amount,
		Currency:         intent.Currency,
	})
}

// Confirm は支払いを確認し、注文を完了させる
// @Summary 支払いを確認
// @Description プロバイダー署名を検証して注文を完了させます
// @Tags payments
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "注文ID"
// @Param request body ConfirmPaymentRequest true "支払い確認情報"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} api.ErrorResponse "署名が不正"
// @Failure 409 {object} api.ErrorResponse "注文が既に完了済み"
// @Router /bookings/{id}/payment/confirm [post]
func (h *PaymentHandler) Confirm(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	o, err := h.service.ConfirmPayment(c.Request().Context(), application.ConfirmPaymentInput{
		OrderID:            c.Param("id"),
		UserID:             userID,
		ProviderOrderRef:   req.ProviderOrderRef,
		ProviderPaymentRef: req.ProviderPaymentRef,
		Signature:          req.Signature,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o, nil))
}
