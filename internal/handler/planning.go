package handler

import (
	"net/http"

	"github.com/paiban/staffgap/pkg/planning"
)

// PlanningHandler 招聘与成本测算处理器
type PlanningHandler struct {
	projector *planning.HirePlanProjector
	evaluator *planning.CostBenefitEvaluator
}

// NewPlanningHandler 创建测算处理器
func NewPlanningHandler(hire planning.HireParams, rates planning.CostRates) *PlanningHandler {
	return &PlanningHandler{
		projector: planning.NewHirePlanProjector(hire),
		evaluator: planning.NewCostBenefitEvaluator(rates),
	}
}

// Register 注册路由
func (h *PlanningHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/planning/hire", h.Hire)
	mux.HandleFunc("POST /api/v1/planning/cost", h.Cost)
}

// CostRequest 成本测算请求；未给出 required_hire 时按缺员工时测算
type CostRequest struct {
	ShortfallHours float64              `json:"shortfall_hours"`
	RequiredHire   *int                 `json:"required_hire,omitempty"`
	Hire           *planning.HireParams `json:"hire,omitempty"`
	Rates          *planning.CostRates  `json:"rates,omitempty"`
}

// CostResponse 成本测算响应
type CostResponse struct {
	HirePlan   *planning.HirePlan   `json:"hire_plan,omitempty"`
	Evaluation *planning.Evaluation `json:"evaluation"`
}

// Hire 招聘人数测算
func (h *PlanningHandler) Hire(w http.ResponseWriter, r *http.Request) {
	var params planning.HireParams
	if err := decodeJSON(r, &params); err != nil {
		respondError(w, err)
		return
	}

	plan, err := h.projector.Project(params)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// Cost 成本效益测算
func (h *PlanningHandler) Cost(w http.ResponseWriter, r *http.Request) {
	var req CostRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	resp := CostResponse{}
	in := planning.CostInput{ShortfallHours: req.ShortfallHours, Rates: req.Rates}
	if req.RequiredHire != nil {
		in.RequiredHire = *req.RequiredHire
	} else {
		params := planning.HireParams{}
		if req.Hire != nil {
			params = *req.Hire
		}
		params.ShortfallHours = req.ShortfallHours

		plan, err := h.projector.Project(params)
		if err != nil {
			respondError(w, err)
			return
		}
		resp.HirePlan = plan
		in.RequiredHire = plan.RequiredHire
	}

	eval, err := h.evaluator.Evaluate(in)
	if err != nil {
		respondError(w, err)
		return
	}
	resp.Evaluation = eval
	respondJSON(w, http.StatusOK, resp)
}
