package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/staffgap/internal/repository"
	"github.com/paiban/staffgap/pkg/analysis"
	"github.com/paiban/staffgap/pkg/model"
	"github.com/paiban/staffgap/pkg/planning"
)

// memoryRuns 内存版运行记录仓储
type memoryRuns struct {
	mu          sync.Mutex
	runs        map[uuid.UUID]*repository.AnalysisRun
	allocations map[uuid.UUID][]*repository.RunAllocation
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{
		runs:        make(map[uuid.UUID]*repository.AnalysisRun),
		allocations: make(map[uuid.UUID][]*repository.RunAllocation),
	}
}

func (m *memoryRuns) Create(_ context.Context, run *repository.AnalysisRun, allocs []*repository.RunAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.allocations[run.ID] = allocs
	return nil
}

func (m *memoryRuns) GetByID(_ context.Context, id uuid.UUID) (*repository.AnalysisRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id], nil
}

func (m *memoryRuns) GetAllocations(_ context.Context, id uuid.UUID) ([]*repository.RunAllocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocations[id], nil
}

func (m *memoryRuns) List(_ context.Context, _ repository.ListFilter) ([]*repository.AnalysisRun, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.AnalysisRun
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *memoryRuns) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, id)
	delete(m.allocations, id)
	return nil
}

func (m *memoryRuns) only(t *testing.T) *repository.AnalysisRun {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.runs, 1)
	for _, r := range m.runs {
		return r
	}
	return nil
}

func sampleRequest() analysis.Request {
	rec := func(date, tod, role string) model.AttendanceRecord {
		return model.AttendanceRecord{Date: date, Time: tod, Role: role, Employment: "full_time", Worked: true}
	}
	req := analysis.Request{
		Records: []model.AttendanceRecord{
			rec("2024-06-03", "08:00", "nurse"),
			rec("2024-06-03", "08:00", "care"),
			rec("2024-06-03", "08:30", "nurse"),
		},
		Dimensions: []model.Dimension{model.DimensionRole},
	}
	for _, tod := range []string{"08:00", "08:30"} {
		req.Need = append(req.Need,
			model.SeriesPoint{Date: "2024-06-03", Time: tod, Value: 3},
			model.SeriesPoint{Date: "2024-06-03", Time: tod, Dimension: model.DimensionRole, Category: "nurse", Value: 2},
			model.SeriesPoint{Date: "2024-06-03", Time: tod, Dimension: model.DimensionRole, Category: "care", Value: 1},
		)
		req.Upper = append(req.Upper, model.SeriesPoint{Date: "2024-06-03", Time: tod, Value: 4})
	}
	return req
}

func newServer(t *testing.T, runs repository.RunRepositoryInterface) *http.ServeMux {
	t.Helper()
	a, err := analysis.New(analysis.DefaultConfig())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewAnalysisHandler(a, runs).Register(mux)
	NewPlanningHandler(planning.DefaultHireParams(), planning.DefaultCostRates()).Register(mux)
	return mux
}

func post(t *testing.T, mux http.Handler, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, &buf))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAnalysisHandler_Run(t *testing.T) {
	runs := newMemoryRuns()
	mux := newServer(t, runs)

	rec := post(t, mux, "/api/v1/analysis", sampleRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Slots)
	// 需求 3，实际 2 与 1
	assert.Equal(t, 1.5, report.Aggregate.Summary.LackHours)
	assert.Len(t, report.Tables.Shortage, 2*3)

	saved := runs.only(t)
	assert.Equal(t, report.RunID, saved.ID.String())
	assert.Equal(t, 1.5, saved.LackHours)
	assert.Equal(t, "2024-06-03", saved.StartDate)
}

func TestAnalysisHandler_RunExports(t *testing.T) {
	mux := newServer(t, nil)

	rec := post(t, mux, "/api/v1/analysis?format=csv&table=excess", sampleRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "date,time_of_day,scope,excess_count,excess_ratio\n"))

	rec = post(t, mux, "/api/v1/analysis?format=xlsx", sampleRequest())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tables.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = post(t, mux, "/api/v1/analysis?format=pdf", sampleRequest())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, mux, "/api/v1/analysis?format=csv&table=summary", sampleRequest())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisHandler_RunErrors(t *testing.T) {
	mux := newServer(t, nil)

	rec := post(t, mux, "/api/v1/analysis", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeBody(t, rec)["code"])

	req := sampleRequest()
	req.Need[0].Value = -1
	rec = post(t, mux, "/api/v1/analysis", req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "NEGATIVE_VALUE", decodeBody(t, rec)["code"])
}

func TestAnalysisHandler_Runs(t *testing.T) {
	runs := newMemoryRuns()
	mux := newServer(t, runs)

	require.Equal(t, http.StatusOK, post(t, mux, "/api/v1/analysis", sampleRequest()).Code)
	id := runs.only(t).ID

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, id, detail.Run.ID)
	assert.NotEmpty(t, detail.Allocations)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 10, list.Limit)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+id.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := runs.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, runs.runs)
}

func TestAnalysisHandler_RunsDisabled(t *testing.T) {
	mux := newServer(t, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanningHandler_Hire(t *testing.T) {
	mux := newServer(t, nil)

	rec := post(t, mux, "/api/v1/planning/hire", map[string]float64{"shortfall_hours": 670})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var plan planning.HirePlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, 5, plan.RequiredHire)
	assert.Equal(t, 160.0, plan.StdWorkHours)

	rec = post(t, mux, "/api/v1/planning/hire", map[string]float64{"shortfall_hours": 10, "safety_factor": 0.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	assert.Contains(t, body["fields"], "safety_factor")
}

func TestPlanningHandler_Cost(t *testing.T) {
	mux := newServer(t, nil)

	rec := post(t, mux, "/api/v1/planning/cost", map[string]float64{"shortfall_hours": 670})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CostResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.HirePlan)
	assert.Equal(t, 5, resp.HirePlan.RequiredHire)
	assert.Equal(t, planning.ScenarioFullTemp, resp.Evaluation.Cheapest)

	rec = post(t, mux, "/api/v1/planning/cost", `{"shortfall_hours": 670, "required_hire": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = CostResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.HirePlan)
	assert.Equal(t, 2, resp.Evaluation.RequiredHire)

	rec = post(t, mux, "/api/v1/planning/cost", `{"shortfall_hours": -1, "required_hire": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
