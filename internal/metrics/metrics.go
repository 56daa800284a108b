package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标。所有方法允许 nil 接收者
type AppMetrics struct {
	Talk2MRequestsTotal  *prometheus.CounterVec   // labels: route, result=ok|error
	Talk2MRequestSeconds *prometheus.HistogramVec // labels: route
	EBDParseTotal        *prometheus.CounterVec   // labels: layout=live|historical, result=ok|error
	SessionStateful      prometheus.Gauge         // 1=有状态 0=无状态
	PollerRunsTotal      *prometheus.CounterVec   // labels: task, result
	SamplesArchived      prometheus.Counter
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		Talk2MRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talk2m_requests_total",
			Help: "Talk2M API calls by route and result.",
		}, []string{"route", "result"}),
		Talk2MRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "talk2m_request_duration_seconds",
			Help:    "Duration of Talk2M API calls in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
		EBDParseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ebd_parse_total",
			Help: "EBD body parse attempts.",
		}, []string{"layout", "result"}),
		SessionStateful: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "talk2m_session_stateful",
			Help: "1 when the client presents a session token, 0 when it sends account credentials.",
		}),
		PollerRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_runs_total",
			Help: "Poller task executions by task and result.",
		}, []string{"task", "result"}),
		SamplesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_samples_archived_total",
			Help: "Historical samples written to the archive.",
		}),
	}
	reg.MustRegister(m.Talk2MRequestsTotal, m.Talk2MRequestSeconds, m.EBDParseTotal,
		m.SessionStateful, m.PollerRunsTotal, m.SamplesArchived)
	return m
}

// ObserveRequest 记录一次 Talk2M 调用
func (m *AppMetrics) ObserveRequest(route string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Talk2MRequestsTotal.WithLabelValues(route, result(err)).Inc()
	m.Talk2MRequestSeconds.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveParse 记录一次 EBD 解析
func (m *AppMetrics) ObserveParse(layout string, err error) {
	if m == nil {
		return
	}
	m.EBDParseTotal.WithLabelValues(layout, result(err)).Inc()
}

// SetStateful 更新会话模式
func (m *AppMetrics) SetStateful(stateful bool) {
	if m == nil {
		return
	}
	if stateful {
		m.SessionStateful.Set(1)
		return
	}
	m.SessionStateful.Set(0)
}

// ObservePoll 记录一次轮询任务
func (m *AppMetrics) ObservePoll(task string, err error) {
	if m == nil {
		return
	}
	m.PollerRunsTotal.WithLabelValues(task, result(err)).Inc()
}

// AddArchived 累加归档采样数
func (m *AppMetrics) AddArchived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SamplesArchived.Add(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
