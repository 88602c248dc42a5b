package planning

import (
	"math"

	apperrors "github.com/paiban/staffgap/pkg/errors"
)

// 方案名称
const (
	ScenarioStatusQuo = "status_quo" // 维持现状，缺员工时按罚金计
	ScenarioFullTemp  = "full_temp"  // 全部由派遣补足
	ScenarioHire      = "hire"       // 全部由直接雇佣补足
	ScenarioHybrid    = "hybrid"     // 派遣与直接雇佣混合
)

// 成本项名称
const (
	ComponentPenalty    = "penalty"
	ComponentTempWage   = "temp_wage"
	ComponentHiring     = "hiring"
	ComponentDirectWage = "direct_wage"
)

// CostRates 单价参数
type CostRates struct {
	WageDirect     float64 `json:"wage_direct"`      // 直接雇佣时薪
	WageTemp       float64 `json:"wage_temp"`        // 派遣时薪
	PenaltyPerHour float64 `json:"penalty_per_hour"` // 未覆盖工时罚金
	HiringCost     float64 `json:"hiring_cost"`      // 一次性招聘成本（每人）
	StdWorkHours   float64 `json:"std_work_hours"`   // 人均标准工时
	HybridSplit    float64 `json:"hybrid_split"`     // 混合方案中派遣承担的工时比例
}

// DefaultCostRates 默认单价
func DefaultCostRates() CostRates {
	return CostRates{
		WageDirect:     1800,
		WageTemp:       2200,
		PenaltyPerHour: 3000,
		HiringCost:     300000,
		StdWorkHours:   160,
		HybridSplit:    0.5,
	}
}

// Validate 校验单价
func (r CostRates) Validate() error {
	var ve apperrors.ValidationErrors
	nonNegative := map[string]float64{
		"wage_direct":      r.WageDirect,
		"wage_temp":        r.WageTemp,
		"penalty_per_hour": r.PenaltyPerHour,
		"hiring_cost":      r.HiringCost,
	}
	for _, field := range []string{"wage_direct", "wage_temp", "penalty_per_hour", "hiring_cost"} {
		if v := nonNegative[field]; !finite(v) || v < 0 {
			ve.Add(field, "必须为非负数")
		}
	}
	if !finite(r.StdWorkHours) || r.StdWorkHours <= 0 {
		ve.Add("std_work_hours", "必须大于0")
	}
	if !finite(r.HybridSplit) || r.HybridSplit < 0 || r.HybridSplit > 1 {
		ve.Add("hybrid_split", "必须在 [0,1] 区间")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// CostInput 成本测算输入
type CostInput struct {
	ShortfallHours float64    `json:"shortfall_hours"`
	RequiredHire   int        `json:"required_hire"`
	Rates          *CostRates `json:"rates,omitempty"` // 为空时使用默认单价
}

// Component 成本构成
type Component struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Scenario 单个方案
type Scenario struct {
	Name           string      `json:"name"`
	Total          float64     `json:"total"`
	Hires          int         `json:"hires"`
	TempHours      float64     `json:"temp_hours"`
	CoveredHours   float64     `json:"covered_hours"`
	UncoveredHours float64     `json:"uncovered_hours"`
	Components     []Component `json:"components"`
}

// Component 按名称查找成本项
func (s Scenario) Component(name string) (float64, bool) {
	for _, c := range s.Components {
		if c.Name == name {
			return c.Amount, true
		}
	}
	return 0, false
}

// Evaluation 成本测算结果
type Evaluation struct {
	ShortfallHours float64    `json:"shortfall_hours"`
	RequiredHire   int        `json:"required_hire"`
	Rates          CostRates  `json:"rates"`
	Scenarios      []Scenario `json:"scenarios"`
	Cheapest       string     `json:"cheapest"`
}

// Scenario 按名称查找方案
func (e *Evaluation) Scenario(name string) (Scenario, bool) {
	for _, s := range e.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// CostBenefitEvaluator 成本效益测算
type CostBenefitEvaluator struct {
	rates CostRates
}

// NewCostBenefitEvaluator 创建测算器
func NewCostBenefitEvaluator(rates CostRates) *CostBenefitEvaluator {
	return &CostBenefitEvaluator{rates: rates}
}

// Rates 默认单价
func (e *CostBenefitEvaluator) Rates() CostRates {
	return e.rates
}

// Evaluate 计算四个方案的总成本与构成
func (e *CostBenefitEvaluator) Evaluate(in CostInput) (*Evaluation, error) {
	rates := e.rates
	if in.Rates != nil {
		rates = *in.Rates
	}

	var ve apperrors.ValidationErrors
	if !finite(in.ShortfallHours) || in.ShortfallHours < 0 {
		ve.Add("shortfall_hours", "必须为非负数")
	}
	if in.RequiredHire < 0 {
		ve.Add("required_hire", "不能为负数")
	}
	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}

	lackH := in.ShortfallHours
	eval := &Evaluation{
		ShortfallHours: lackH,
		RequiredHire:   in.RequiredHire,
		Rates:          rates,
		Scenarios: []Scenario{
			statusQuo(lackH, rates),
			fullTemp(lackH, rates),
			hireScenario(ScenarioHire, lackH, 0, in.RequiredHire, rates),
			hireScenario(ScenarioHybrid, lackH, lackH*rates.HybridSplit,
				ceilCount(float64(in.RequiredHire)*(1-rates.HybridSplit)), rates),
		},
	}

	best := eval.Scenarios[0]
	for _, s := range eval.Scenarios[1:] {
		if s.Total < best.Total {
			best = s
		}
	}
	eval.Cheapest = best.Name
	return eval, nil
}

func statusQuo(lackH float64, r CostRates) Scenario {
	penalty := lackH * r.PenaltyPerHour
	return Scenario{
		Name:           ScenarioStatusQuo,
		Total:          penalty,
		UncoveredHours: lackH,
		Components:     []Component{{Name: ComponentPenalty, Amount: penalty}},
	}
}

func fullTemp(lackH float64, r CostRates) Scenario {
	wage := lackH * r.WageTemp
	return Scenario{
		Name:         ScenarioFullTemp,
		Total:        wage,
		TempHours:    lackH,
		CoveredHours: lackH,
		Components:   []Component{{Name: ComponentTempWage, Amount: wage}},
	}
}

// hireScenario tempHours 由派遣覆盖，其余由 hires 名直接雇佣覆盖，仍未覆盖的部分计罚金
func hireScenario(name string, lackH, tempHours float64, hires int, r CostRates) Scenario {
	hireHours := float64(hires) * r.StdWorkHours
	remaining := lackH - tempHours
	covered := math.Min(hireHours, remaining)
	uncovered := math.Max(remaining-hireHours, 0)

	s := Scenario{
		Name:           name,
		Hires:          hires,
		TempHours:      tempHours,
		CoveredHours:   tempHours + covered,
		UncoveredHours: uncovered,
	}
	if tempHours > 0 {
		s.Components = append(s.Components, Component{Name: ComponentTempWage, Amount: tempHours * r.WageTemp})
	}
	s.Components = append(s.Components,
		Component{Name: ComponentHiring, Amount: float64(hires) * r.HiringCost},
		Component{Name: ComponentDirectWage, Amount: hireHours * r.WageDirect},
		Component{Name: ComponentPenalty, Amount: uncovered * r.PenaltyPerHour},
	)
	for _, c := range s.Components {
		s.Total += c.Amount
	}
	return s
}
