package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/staffgap/internal/metrics"
	"github.com/paiban/staffgap/internal/repository"
	"github.com/paiban/staffgap/pkg/analysis"
	"github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/logger"
	"github.com/paiban/staffgap/pkg/report"
)

// AnalysisHandler 缺员/过剩分析处理器
type AnalysisHandler struct {
	analyzer *analysis.Analyzer
	runs     repository.RunRepositoryInterface // 为 nil 时不保存运行记录
	timeout  time.Duration                     // 保存运行记录的超时
}

// NewAnalysisHandler 创建分析处理器
func NewAnalysisHandler(a *analysis.Analyzer, runs repository.RunRepositoryInterface) *AnalysisHandler {
	return &AnalysisHandler{analyzer: a, runs: runs, timeout: 30 * time.Second}
}

// WithTimeout 设置保存运行记录的超时
func (h *AnalysisHandler) WithTimeout(d time.Duration) *AnalysisHandler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// Register 注册路由；未配置运行记录存储时不注册查询接口
func (h *AnalysisHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/analysis", h.Run)
	if h.runs == nil {
		return
	}
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("DELETE /api/v1/runs/{id}", h.DeleteRun)
}

// RunResponse 运行记录详情
type RunResponse struct {
	Run         *repository.AnalysisRun     `json:"run"`
	Allocations []*repository.RunAllocation `json:"allocations"`
}

// ListRunsResponse 运行记录列表
type ListRunsResponse struct {
	Runs   []*repository.AnalysisRun `json:"runs"`
	Total  int                       `json:"total"`
	Offset int                       `json:"offset"`
	Limit  int                       `json:"limit"`
}

// Run 执行分析
//
// 默认返回完整结果；?format=csv|xlsx 时返回表格文件，CSV 通过 ?table= 选择表。
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, errors.InvalidInput("format", err.Error()))
		return
	}
	table := r.URL.Query().Get("table")
	switch table {
	case "":
		table = report.TableShortage
	case report.TableShortage, report.TableExcess, report.TableAllocation:
	default:
		respondError(w, errors.InvalidInput("table", "必须为 shortage、excess 或 allocation"))
		return
	}

	var req analysis.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	log := logger.WithContext(r.Context())
	log.Info().
		Int("records", len(req.Records)).
		Int("need_points", len(req.Need)).
		Int("upper_points", len(req.Upper)).
		Msg("接收分析请求")

	start := time.Now()
	result, err := h.analyzer.Run(r.Context(), req)
	if err != nil {
		metrics.RecordAnalysisRun(metrics.RunOutcome{Success: false, Duration: time.Since(start)})
		respondError(w, err)
		return
	}
	metrics.RecordAnalysisRun(metrics.ReportOutcome(result))

	if h.runs != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if _, err := repository.SaveReport(ctx, h.runs, result); err != nil {
			// 保存失败不影响本次结果
			log.Warn().Err(err).Str("run_id", result.RunID).Msg("保存运行记录失败")
		}
	}

	switch format {
	case report.FormatJSON:
		respondJSON(w, http.StatusOK, result)
	case report.FormatCSV:
		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, result.Tables, table); err != nil {
			respondError(w, err)
			return
		}
		writeFile(w, "text/csv; charset=utf-8", table+".csv", buf.Bytes())
	case report.FormatXLSX:
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, result.Tables); err != nil {
			respondError(w, err)
			return
		}
		writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "tables.xlsx", buf.Bytes())
	}
}

// GetRun 获取运行记录
func (h *AnalysisHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, errors.InvalidInput("id", "不是有效的UUID"))
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if run == nil {
		respondError(w, errors.NotFound("运行记录", id.String()))
		return
	}

	allocations, err := h.runs.GetAllocations(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RunResponse{Run: run, Allocations: allocations})
}

// ListRuns 列出运行记录
func (h *AnalysisHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithDateRange(q.Get("start_date"), q.Get("end_date"))
	filter.Policy = q.Get("policy")
	if v := q.Get("order_by"); v != "" {
		filter.OrderBy = v
	}
	if v := q.Get("order_dir"); v != "" {
		filter.OrderDir = v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, errors.InvalidInput("limit", "必须为整数"))
			return
		}
		filter = filter.WithLimit(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, errors.InvalidInput("offset", "必须为整数"))
			return
		}
		filter = filter.WithOffset(n)
	}

	runs, total, err := h.runs.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if runs == nil {
		runs = []*repository.AnalysisRun{}
	}
	respondJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Total: total, Offset: filter.Offset, Limit: filter.Limit})
}

// DeleteRun 删除运行记录
func (h *AnalysisHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, errors.InvalidInput("id", "不是有效的UUID"))
		return
	}
	if err := h.runs.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
