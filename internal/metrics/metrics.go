package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vwap_ticks_total", Help: "Ticks processed by the decision engine"},
		[]string{"symbol"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vwap_decisions_total", Help: "Decisions emitted by action"},
		[]string{"symbol", "action", "reason"},
	)
	ZScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "vwap_zscore", Help: "Latest VWAP deviation z-score"},
		[]string{"symbol"},
	)
	Position = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "vwap_position_qty", Help: "Venue reported position"},
		[]string{"symbol"},
	)
	SessionResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vwap_session_resets_total", Help: "Per-symbol statistics resets on trading-day rollover"},
		[]string{"symbol"},
	)
	Anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vwap_anomalies_total", Help: "Malformed input or state/venue disagreements corrected locally"},
		[]string{"kind"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vwap_orders_total", Help: "Orders handed to an executor"},
		[]string{"executor", "side", "result"},
	)
	OrdersSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vwap_orders_suppressed_total", Help: "Orders blocked by the execution guard"},
		[]string{"reason"},
	)
	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "vwap_breaker_state", Help: "0=closed, 1=half_open, 2=open"},
	)
	OrdersInLastMinute = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "vwap_orders_in_last_minute", Help: "Orders counted in the sliding minute window"},
	)
	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "vwap_stream_clients", Help: "Connected decision stream websocket clients"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, DecisionsTotal, ZScore, Position, SessionResets, Anomalies,
		OrdersTotal, OrdersSuppressed, BreakerState, OrdersInLastMinute, StreamClients,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
