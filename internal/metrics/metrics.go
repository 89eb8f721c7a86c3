// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// query.Recorderとbackend.MetricsRecorderの両方を満たす。
type Collector struct {
	dispatches        *prometheus.CounterVec
	staleDiscards     prometheus.Counter
	fetchFailures     prometheus.Counter
	articlesDisplayed prometheus.Gauge
	backendStatus     *prometheus.CounterVec
	backendLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_query_dispatch_total",
			Help: "契機別のクエリディスパッチの合計数",
		}, []string{"reason"}),
		staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdeck_stale_response_discarded_total",
			Help: "世代番号不一致で破棄されたレスポンスの合計数",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdeck_fetch_fail_total",
			Help: "バックエンドフェッチ失敗の合計数",
		}),
		articlesDisplayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdeck_articles_displayed",
			Help: "現在表示中の記事数",
		}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_backend_status_total",
			Help: "バックエンドのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsdeck_backend_latency_seconds",
			Help:    "バックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.dispatches,
		c.staleDiscards,
		c.fetchFailures,
		c.articlesDisplayed,
		c.backendStatus,
		c.backendLatency,
	)

	return c
}

// RecordDispatch はクエリディスパッチを契機別に記録する。
func (c *Collector) RecordDispatch(reason string) {
	c.dispatches.WithLabelValues(reason).Inc()
}

// RecordStaleDiscard は失効レスポンスの破棄を記録する。
func (c *Collector) RecordStaleDiscard() {
	c.staleDiscards.Inc()
}

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure() {
	c.fetchFailures.Inc()
}

// RecordArticlesDisplayed は現在表示中の記事数を記録する。
func (c *Collector) RecordArticlesDisplayed(count int) {
	c.articlesDisplayed.Set(float64(count))
}

// RecordBackendStatus はバックエンドのHTTPステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.backendStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency はバックエンド呼び出しのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(duration time.Duration) {
	c.backendLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
