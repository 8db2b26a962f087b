// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ワーカー・ミドルウェアから利用する。
type MetricsCollector interface {
	RecordPlacesCall(endpoint, outcome string)
	RecordPlacesLatency(endpoint string, duration time.Duration)
	RecordLunchWrite(op, outcome string)
	RecordReminder(outcome string)
	RecordHTTPStatus(statusCode int)
	SetRealtimeClients(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	placesCalls     *prometheus.CounterVec
	placesLatency   *prometheus.HistogramVec
	lunchWrites     *prometheus.CounterVec
	reminders       *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	realtimeClients prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		placesCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchmate_places_calls_total",
			Help: "Places API呼び出しの合計数（エンドポイント・結果別）",
		}, []string{"endpoint", "outcome"}),
		placesLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lunchmate_places_latency_seconds",
			Help:    "Places API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		lunchWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchmate_lunch_writes_total",
			Help: "ランチ登録・取消の合計数（操作・結果別）",
		}, []string{"op", "outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchmate_reminders_total",
			Help: "ランチリマインダーのパイプライン結果別の合計数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchmate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		realtimeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lunchmate_realtime_clients",
			Help: "接続中のWebSocketクライアント数",
		}),
	}

	reg.MustRegister(
		c.placesCalls,
		c.placesLatency,
		c.lunchWrites,
		c.reminders,
		c.httpStatus,
		c.realtimeClients,
	)

	return c
}

// RecordPlacesCall はPlaces API呼び出しの結果を記録する。
func (c *Collector) RecordPlacesCall(endpoint, outcome string) {
	c.placesCalls.WithLabelValues(endpoint, outcome).Inc()
}

// RecordPlacesLatency はPlaces API呼び出しのレイテンシを記録する。
func (c *Collector) RecordPlacesLatency(endpoint string, duration time.Duration) {
	c.placesLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordLunchWrite はランチ書き込みの結果を記録する。
func (c *Collector) RecordLunchWrite(op, outcome string) {
	c.lunchWrites.WithLabelValues(op, outcome).Inc()
}

// RecordReminder はリマインダーパイプラインの結果を記録する。
func (c *Collector) RecordReminder(outcome string) {
	c.reminders.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetRealtimeClients は接続中のWebSocketクライアント数を設定する。
func (c *Collector) SetRealtimeClients(n int) {
	c.realtimeClients.Set(float64(n))
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordPlacesCall(string, string)           {}
func (NopCollector) RecordPlacesLatency(string, time.Duration) {}
func (NopCollector) RecordLunchWrite(string, string)           {}
func (NopCollector) RecordReminder(string)                     {}
func (NopCollector) RecordHTTPStatus(int)                      {}
func (NopCollector) SetRealtimeClients(int)                    {}

// OrNop はnilの場合にNopCollectorを返す。
func OrNop(c MetricsCollector) MetricsCollector {
	if c == nil {
		return NopCollector{}
	}
	return c
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
