package metrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "landing"

var (
	histogramBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Metrics 部署流程指标
type Metrics struct {
	transitions     *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	pollResults     *prometheus.CounterVec
	notifyFailures  *prometheus.CounterVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New 创建指标并注册到 reg, 重复注册时复用已存在的 collector
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deployment",
			Name:      "transitions_total",
			Help:      "Count of deployment status transitions",
		}, []string{"from", "to"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deployment",
			Name:      "step_duration_seconds",
			Help:      "Latency distribution of orchestrator steps",
			Buckets:   histogramBuckets,
		}, []string{"step", "result"}),
		pollResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deployment",
			Name:      "poll_observations_total",
			Help:      "Count of hosting build status observations",
		}, []string{"result"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "failures_total",
			Help:      "Number of notifications that could not be delivered",
		}, []string{"kind"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.transitions = register(reg, m.transitions)
	m.stepDuration = register(reg, m.stepDuration)
	m.pollResults = register(reg, m.pollResults)
	m.notifyFailures = register(reg, m.notifyFailures)
	m.requestTotal = register(reg, m.requestTotal)
	m.requestDuration = register(reg, m.requestDuration)
	return m
}

// Default 注册到全局 registry 的单例
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// Transition 记录状态变更
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveStep 记录步骤耗时
func (m *Metrics) ObserveStep(step string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.stepDuration.WithLabelValues(step, result).Observe(d.Seconds())
}

// PollObserved 记录一次构建状态观测, result: success/failure/in_progress/error
func (m *Metrics) PollObserved(result string) {
	if m == nil {
		return
	}
	m.pollResults.WithLabelValues(result).Inc()
}

// NotifyFailed 记录通知失败
func (m *Metrics) NotifyFailed(kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(kind).Inc()
}

// ObserveRequest 记录 HTTP 请求
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(d.Seconds())
}
