// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// ハンドラー層から利用する。
type Recorder interface {
	RecordLinkSuccess()
	RecordLinkFailure(stage string)
	RecordExchangeLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	linkSuccess     prometheus.Counter
	linkFail        *prometheus.CounterVec
	exchangeLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		linkSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkbridge_flow_success_total",
			Help: "リンクフロー成功の合計数",
		}),
		linkFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbridge_flow_fail_total",
			Help: "リンクフロー失敗のステージ別合計数",
		}, []string{"stage"}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkbridge_exchange_latency_seconds",
			Help:    "コールバック処理（コード交換〜発行）のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.linkSuccess,
		c.linkFail,
		c.exchangeLatency,
	)

	return c
}

// RecordLinkSuccess はリンクフローの成功を記録する。
func (c *Collector) RecordLinkSuccess() {
	c.linkSuccess.Inc()
}

// RecordLinkFailure はリンクフローの失敗をステージ付きで記録する。
func (c *Collector) RecordLinkFailure(stage string) {
	c.linkFail.WithLabelValues(stage).Inc()
}

// RecordExchangeLatency はコールバック処理のレイテンシを記録する。
func (c *Collector) RecordExchangeLatency(duration time.Duration) {
	c.exchangeLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)
