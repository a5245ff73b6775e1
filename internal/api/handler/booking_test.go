package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/order"
)

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) BookTickets(ctx context.Context, input application.BookTicketsInput) (*application.BookingResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.BookingResult), args.Error(1)
}

func (m *MockBookingService) GetOrder(ctx context.Context, orderID, userID string) (*application.BookingResult, error) {
	args := m.Called(ctx, orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.BookingResult), args.Error(1)
}

// MockCancellationService はCancellationServiceInterfaceのモック
type MockCancellationService struct {
	mock.Mock
}

func (m *MockCancellationService) CancelBooking(ctx context.Context, userID, orderID string) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func testBookingResult() *application.BookingResult {
	o := order.NewOrder("user-1", "event-1", 24000, "key-001")
	o.ID = "order-1"
	return &application.BookingResult{
		Order: o,
		Tickets: []*order.Ticket{
			{ID: "t-1", OrderID: "order-1", SeatID: "seat-A1", Price: 12000, Code: "code-1"},
			{ID: "t-2", OrderID: "order-1", SeatID: "seat-A2", Price: 12000, Code: "code-2"},
		},
	}
}

func TestBookingHandler_Book(t *testing.T) {
	e := NewTestEcho()

	t.Run("チケットを予約できる", func(t *testing.T) {
		mockBooking := new(MockBookingService)
		mockBooking.On("BookTickets", mock.Anything, application.BookTicketsInput{
			UserID: "user-1", EventID: "event-1",
			SeatIDs: []string{"seat-A1", "seat-A2"}, IdempotencyKey: "key-001",
		}).Return(testBookingResult(), nil)

		h := NewBookingHandler(mockBooking, new(MockCancellationService))

		reqBody := `{"event_id": "event-1", "seat_ids": ["seat-A1", "seat-A2"], "idempotency_key": "key-001"}`
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Book(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "order-1", resp.ID)
		assert.Equal(t, 24000, resp.TotalAmount)
		assert.Len(t, resp.Tickets, 2)
		mockBooking.AssertExpectations(t)
	})

	t.Run("ロック喪失の場合409", func(t *testing.T) {
		mockBooking := new(MockBookingService)
		mockBooking.On("BookTickets", mock.Anything, mock.Anything).
			Return(nil, inventory.ErrLockLost)

		h := NewBookingHandler(mockBooking, new(MockCancellationService))

		reqBody := `{"event_id": "event-1", "seat_ids": ["seat-A1"]}`
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Book(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("座席リストが空の場合400", func(t *testing.T) {
		h := NewBookingHandler(new(MockBookingService), new(MockCancellationService))

		reqBody := `{"event_id": "event-1", "seat_ids": []}`
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Book(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("ユーザーIDがない場合401", func(t *testing.T) {
		h := NewBookingHandler(new(MockBookingService), new(MockCancellationService))

		reqBody := `{"event_id": "event-1", "seat_ids": ["seat-A1"]}`
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Book(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})
}

func TestBookingHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("注文を取得できる", func(t *testing.T) {
		mockBooking := new(MockBookingService)
		mockBooking.On("GetOrder", mock.Anything, "order-1", "user-1").Return(testBookingResult(), nil)

		h := NewBookingHandler(mockBooking, new(MockCancellationService))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("order-1")

		err := h.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("他ユーザーの注文は403", func(t *testing.T) {
		mockBooking := new(MockBookingService)
		mockBooking.On("GetOrder", mock.Anything, "order-1", "user-2").Return(nil, order.ErrForbidden)

		h := NewBookingHandler(mockBooking, new(MockCancellationService))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", "user-2")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("order-1")

		err := h.GetByID(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, he.Code)
	})

	t.Run("存在しない注文は404", func(t *testing.T) {
		mockBooking := new(MockBookingService)
		mockBooking.On("GetOrder", mock.Anything, "order-x", "user-1").Return(nil, order.ErrOrderNotFound)

		h := NewBookingHandler(mockBooking, new(MockCancellationService))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("order-x")

		err := h.GetByID(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestBookingHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	t.Run("注文をキャンセルできる", func(t *testing.T) {
		mockCancel := new(MockCancellationService)
		o := order.NewOrder("user-1", "event-1", 24000, "")
		o.ID = "order-1"
		require.NoError(t, o.Cancel())
		mockCancel.On("CancelBooking", mock.Anything, "user-1", "order-1").Return(o, nil)

		h := NewBookingHandler(new(MockBookingService), mockCancel)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("order-1")

		err := h.Cancel(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.Status)
	})

	t.Run("二重キャンセルは409", func(t *testing.T) {
		mockCancel := new(MockCancellationService)
		mockCancel.On("CancelBooking", mock.Anything, "user-1", "order-1").
			Return(nil, order.ErrOrderAlreadyCancelled)

		h := NewBookingHandler(new(MockBookingService), mockCancel)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("order-1")

		err := h.Cancel(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})
}
