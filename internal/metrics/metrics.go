// Package metrics 提供Prometheus监控指标
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/paiban/staffgap/pkg/analysis"
	apperrors "github.com/paiban/staffgap/pkg/errors"
)

const namespace = "staffgap"

// Registry 应用自有注册表
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// HTTP
var (
	httpRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP请求总数",
	}, []string{"method", "path", "status"})

	httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP请求延迟",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})
)

// 分析运行
var (
	analysisRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_runs_total",
		Help:      "分析运行次数",
	}, []string{"status"})

	analysisDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "分析运行耗时",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	})

	lackHours = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lack_hours",
		Help:      "最近一次分析的全组织缺员工时",
	})

	excessHours = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "excess_hours",
		Help:      "最近一次分析的全组织过剩工时",
	})

	requiredHire = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "required_hire",
		Help:      "最近一次分析的需招聘人数",
	})

	missingCategoriesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "missing_categories_total",
		Help:      "配置了策略但数据中不存在的分类次数",
	})

	allocatedLackHours = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "allocated_lack_hours",
		Help:      "最近一次分析按分类分配的缺员工时",
	}, []string{"category", "strategy"})
)

// 数据库
var (
	dbConnections = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections",
		Help:      "数据库连接数",
	}, []string{"state"})

	dbQueryDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "运行记录库SQL耗时",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"op"})
)

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RunOutcome 单次分析的指标数据
type RunOutcome struct {
	Success      bool
	Duration     time.Duration
	LackHours    float64
	ExcessHours  float64
	RequiredHire int
	Missing      int
	Allocated    map[string]CategoryHours // key 为分类字符串
}

// CategoryHours 分类分配工时
type CategoryHours struct {
	Strategy  string
	LackHours float64
}

// RecordAnalysisRun 记录一次分析运行；失败的运行只计数
func RecordAnalysisRun(o RunOutcome) {
	status := "success"
	if !o.Success {
		status = "error"
	}
	analysisRunsTotal.WithLabelValues(status).Inc()
	analysisDuration.Observe(o.Duration.Seconds())
	if !o.Success {
		return
	}

	lackHours.Set(o.LackHours)
	excessHours.Set(o.ExcessHours)
	requiredHire.Set(float64(o.RequiredHire))
	missingCategoriesTotal.Add(float64(o.Missing))

	allocatedLackHours.Reset()
	for category, h := range o.Allocated {
		allocatedLackHours.WithLabelValues(category, h.Strategy).Set(h.LackHours)
	}
}

// ReportOutcome 由分析结果提取指标数据
func ReportOutcome(r *analysis.Report) RunOutcome {
	o := RunOutcome{
		Success:     true,
		Duration:    r.Duration,
		LackHours:   r.Aggregate.Summary.LackHours,
		ExcessHours: r.Aggregate.Summary.ExcessHours,
		Allocated:   make(map[string]CategoryHours, len(r.Tables.Allocation)),
	}
	if r.HirePlan != nil {
		o.RequiredHire = r.HirePlan.RequiredHire
	}
	for _, d := range r.Diagnostics {
		if d.Code == apperrors.CodeMissingCategory {
			o.Missing++
		}
	}
	for _, row := range r.Tables.Allocation {
		o.Allocated[row.Category] = CategoryHours{Strategy: row.StrategyTag, LackHours: row.AllocatedShortfallHours}
	}
	return o
}

// ObserveQuery 记录SQL耗时，op 为 exec/query/query_row/migrate
func ObserveQuery(op string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetDBStats 记录连接池状态
func SetDBStats(s sql.DBStats) {
	dbConnections.WithLabelValues("open").Set(float64(s.OpenConnections))
	dbConnections.WithLabelValues("in_use").Set(float64(s.InUse))
	dbConnections.WithLabelValues("idle").Set(float64(s.Idle))
}

// Push 推送到 Pushgateway，批处理任务结束时调用
func Push(url, job string) error {
	return push.New(url, job).Gatherer(Registry).Push()
}
