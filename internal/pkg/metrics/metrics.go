package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 座席ロック試行の総数（result: success, fast_rejected, unavailable, final）
	SeatLocksTotal *prometheus.CounterVec

	// 回収スイープで解放されたロックの総数
	LocksReclaimedTotal prometheus.Counter

	// 予約試行の総数（status: success, idempotent_hit, conflict, lock_lost）
	BookingsTotal *prometheus.CounterVec

	// 支払い確認の総数（status: success, signature_invalid, rejected, conflict）
	PaymentConfirmationsTotal *prometheus.CounterVec

	// 放置スイープでキャンセルされた注文の総数
	AbandonedOrdersSweptTotal prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		SeatLocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_locks_total",
				Help: "Total number of seat lock attempts",
			},
			[]string{"result"},
		),
		LocksReclaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "locks_reclaimed_total",
				Help: "Total number of expired locks reclaimed by the sweep",
			},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking attempts",
			},
			[]string{"status"},
		),
		PaymentConfirmationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_confirmations_total",
				Help: "Total number of payment confirmation attempts",
			},
			[]string{"status"},
		),
		AbandonedOrdersSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "abandoned_orders_swept_total",
				Help: "Total number of abandoned pending orders cancelled by the sweep",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SeatLocksTotal,
		m.LocksReclaimedTotal,
		m.BookingsTotal,
		m.PaymentConfirmationsTotal,
		m.AbandonedOrdersSweptTotal,
	)

	return m
}
