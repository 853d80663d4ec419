package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

// ============ Потоковые фиды ============

// FeedStatus - текущее состояние соединения (gauge по имени фида).
// Значение - порядковый номер состояния из пакета feed.
var FeedStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fundingbot",
		Subsystem: "feed",
		Name:      "status",
		Help:      "Current feed connection status (0=disconnected .. 5=failed)",
	},
	[]string{"feed"},
)

// FeedReconnects - количество переподключений
var FeedReconnects = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fundingbot",
		Subsystem: "feed",
		Name:      "reconnects_total",
		Help:      "Total number of feed reconnections",
	},
	[]string{"feed"},
)

// FeedDroppedFrames - нераспознанные кадры, отброшенные фидом
var FeedDroppedFrames = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fundingbot",
		Subsystem: "feed",
		Name:      "dropped_frames_total",
		Help:      "Total number of unrecognized frames dropped",
	},
	[]string{"feed"},
)

// ============ Поиск возможностей ============

// OpportunitiesFound - найденные возможности по символам
var OpportunitiesFound = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fundingbot",
		Subsystem: "scanner",
		Name:      "opportunities_total",
		Help:      "Total number of opportunities detected",
	},
	[]string{"symbol"},
)

// ScanSkipped - сколько раз тик сканера был пропущен из-за
// ещё идущей предыдущей итерации
var ScanSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fundingbot",
		Subsystem: "scanner",
		Name:      "ticks_skipped_total",
		Help:      "Scanner/monitor ticks skipped because previous run was still in progress",
	},
	[]string{"loop"},
)

// ============ Аккаунт ============

// AccountBalance - последний баланс из пользовательского потока
var AccountBalance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "fundingbot",
		Subsystem: "account",
		Name:      "balance",
		Help:      "Last known account balance from the user stream",
	},
)

// ============ Торговля ============

// TradesTotal - завершённые сделки по исходам
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fundingbot",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of completed trades by outcome",
	},
	[]string{"outcome"},
)

// ActivePositions - текущее количество открытых позиций
var ActivePositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "fundingbot",
		Subsystem: "trading",
		Name:      "active_positions",
		Help:      "Number of currently active positions",
	},
)

// RiskRejections - входы, отклонённые риск-проверками
var RiskRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fundingbot",
		Subsystem: "trading",
		Name:      "risk_rejections_total",
		Help:      "Entries rejected by risk checks",
	},
	[]string{"reason"},
)

// OrderLatency - время исполнения ордера на бирже
var OrderLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fundingbot",
		Subsystem: "trading",
		Name:      "order_latency_ms",
		Help:      "Time to place an order on the exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"market", "side"},
)

// Compensations - компенсирующие действия по исходам
var Compensations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fundingbot",
		Subsystem: "trading",
		Name:      "compensations_total",
		Help:      "Compensating actions after partial fills by outcome",
	},
	[]string{"outcome"},
)

// ============ Хелперы ============

// RecordFeedState обновляет gauge состояния фида
func RecordFeedState(feedName string, status int) {
	FeedStatus.WithLabelValues(feedName).Set(float64(status))
}

// RecordTrade фиксирует завершённую сделку
func RecordTrade(outcome string) {
	TradesTotal.WithLabelValues(outcome).Inc()
}

// RecordRiskRejection фиксирует отклонённый вход
func RecordRiskRejection(reason string) {
	RiskRejections.WithLabelValues(reason).Inc()
}

// RecordOrderLatency фиксирует латентность размещения ордера
func RecordOrderLatency(market, side string, ms float64) {
	OrderLatency.WithLabelValues(market, side).Observe(ms)
}

// RecordCompensation фиксирует исход компенсирующего действия
func RecordCompensation(outcome string) {
	Compensations.WithLabelValues(outcome).Inc()
}
