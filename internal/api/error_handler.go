package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/venue"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/payment"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// statusOf はドメインエラーをHTTPステータスコードに対応付ける
func statusOf(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidRequest),
		errors.Is(err, inventory.ErrInvalidSeats),
		errors.Is(err, payment.ErrSignatureInvalid):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, inventory.ErrSeatNotFound),
		errors.Is(err, venue.ErrSeatNotFound),
		errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrSeatUnavailable),
		errors.Is(err, inventory.ErrSeatAlreadyFinal),
		errors.Is(err, inventory.ErrNotLockHolder),
		errors.Is(err, inventory.ErrLockLost),
		errors.Is(err, inventory.ErrConcurrencyConflict),
		errors.Is(err, order.ErrOrderNotPending),
		errors.Is(err, order.ErrOrderAlreadyCompleted),
		errors.Is(err, order.ErrOrderAlreadyCancelled),
		errors.Is(err, order.ErrIdempotencyKeyAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, event.ErrEventNotPublished):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// DomainError はドメインエラーを対応するHTTPエラーに変換する
func DomainError(err error) *echo.HTTPError {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "内部サーバーエラー").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
