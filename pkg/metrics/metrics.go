// Package metrics 提供 Prometheus helper，覆盖 HTTP 与通知管线指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数（按方法、路径、状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 管线决策计数（按终态：delivered/rejected/throttled/suppressed/disabled，
	// 阶段内部故障计入 error）
	PipelineDecisionsTotal *prometheus.CounterVec
	// 渠道投递计数（按渠道、结果）
	ChannelDeliveriesTotal *prometheus.CounterVec
	// 管线处理耗时
	PipelineDuration prometheus.Histogram
	// 当前 WebSocket 连接数
	RealtimeConnections prometheus.Gauge
	// 过期清理删除的通知数
	ExpiredSweptTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PipelineDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "pipeline_decisions_total",
			Help:      "Notification pipeline terminal decisions",
		}, []string{"outcome"}),
		ChannelDeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "channel_deliveries_total",
			Help:      "Per-channel delivery attempts",
		}, []string{"channel", "result"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "pipeline_duration_seconds",
			Help:      "Notification pipeline processing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RealtimeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "realtime_connections",
			Help:      "Active realtime websocket connections",
		}),
		ExpiredSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "expired_swept_total",
			Help:      "Expired notifications removed by the background sweep",
		}),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PipelineDecisionsTotal,
		m.ChannelDeliveriesTotal,
		m.PipelineDuration,
		m.RealtimeConnections,
		m.ExpiredSweptTotal,
	)

	return m
}

// Handler 返回 /metrics 端点的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
