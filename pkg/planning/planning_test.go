package planning

import (
	"math"
	"testing"

	apperrors "github.com/paiban/staffgap/pkg/errors"
)

func TestHirePlanProjector_Project(t *testing.T) {
	tests := []struct {
		name     string
		params   HireParams
		expected int
	}{
		{"示例", HireParams{ShortfallHours: 670, StdWorkHours: 160, SafetyFactor: 1.10, TargetCoverage: 0.95}, 5},
		{"恰好整除不进位", HireParams{ShortfallHours: 608, StdWorkHours: 160, SafetyFactor: 1, TargetCoverage: 0.95}, 4},
		{"无缺员", HireParams{ShortfallHours: 0, StdWorkHours: 160, SafetyFactor: 1, TargetCoverage: 1}, 0},
		{"不足一人进位", HireParams{ShortfallHours: 1, StdWorkHours: 160, SafetyFactor: 1, TargetCoverage: 1}, 1},
		{"未填参数使用默认值", HireParams{ShortfallHours: 670}, 5},
	}

	p := NewHirePlanProjector(DefaultHireParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Project(tt.params)
			if err != nil {
				t.Fatalf("Project() error = %v", err)
			}
			if plan.RequiredHire != tt.expected {
				t.Errorf("RequiredHire = %d, expected %d (raw %.6f)", plan.RequiredHire, tt.expected, plan.RawHire)
			}
		})
	}
}

func TestHirePlanProjector_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params HireParams
		field  string
	}{
		{"标准工时为负", HireParams{ShortfallHours: 10, StdWorkHours: -1, SafetyFactor: 1, TargetCoverage: 1}, "std_work_hours"},
		{"安全系数小于1", HireParams{ShortfallHours: 10, StdWorkHours: 160, SafetyFactor: 0.9, TargetCoverage: 1}, "safety_factor"},
		{"覆盖率超过1", HireParams{ShortfallHours: 10, StdWorkHours: 160, SafetyFactor: 1, TargetCoverage: 1.2}, "target_coverage"},
		{"负缺员工时", HireParams{ShortfallHours: -5, StdWorkHours: 160, SafetyFactor: 1, TargetCoverage: 1}, "shortfall_hours"},
		{"NaN", HireParams{ShortfallHours: math.NaN(), StdWorkHours: 160, SafetyFactor: 1, TargetCoverage: 1}, "shortfall_hours"},
	}

	p := NewHirePlanProjector(DefaultHireParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Project(tt.params)
			if !apperrors.Is(err, apperrors.CodeValidationFail) {
				t.Fatalf("Expected VALIDATION_FAILED, got %v", err)
			}
			var appErr *apperrors.AppError
			if e, ok := err.(*apperrors.AppError); ok {
				appErr = e
			}
			if appErr == nil || appErr.Fields[tt.field] == nil {
				t.Errorf("Expected field %s in error fields, got %v", tt.field, err)
			}
		})
	}
}

func TestRequiredHire(t *testing.T) {
	if got := RequiredHire(670, 160, 1.10, 0.95); got != 5 {
		t.Errorf("RequiredHire() = %d, expected 5", got)
	}
	if got := RequiredHire(670, 160, 0.5, 0.95); got != 0 {
		t.Errorf("非法参数应返回 0, got %d", got)
	}
}

func TestCostBenefitEvaluator_Scenarios(t *testing.T) {
	e := NewCostBenefitEvaluator(DefaultCostRates())
	eval, err := e.Evaluate(CostInput{ShortfallHours: 670, RequiredHire: 5})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if len(eval.Scenarios) != 4 {
		t.Fatalf("Expected 4 scenarios, got %d", len(eval.Scenarios))
	}

	fullTemp, ok := eval.Scenario(ScenarioFullTemp)
	if !ok {
		t.Fatal("缺少 full_temp 方案")
	}
	if wage, _ := fullTemp.Component(ComponentTempWage); wage != 1474000 {
		t.Errorf("full_temp 派遣工资 = %.0f, expected 1474000", wage)
	}

	expectedTotals := map[string]float64{
		ScenarioStatusQuo: 2010000,
		ScenarioFullTemp:  1474000,
		ScenarioHire:      2940000, // 5×300000 + 5×160×1800，无未覆盖工时
		ScenarioHybrid:    2501000, // 335h×2200 + 3×300000 + 3×160×1800
	}
	for name, expected := range expectedTotals {
		s, ok := eval.Scenario(name)
		if !ok {
			t.Errorf("缺少方案 %s", name)
			continue
		}
		if math.Abs(s.Total-expected) > 1e-6 {
			t.Errorf("%s total = %.2f, expected %.2f", name, s.Total, expected)
		}
	}

	hybrid, _ := eval.Scenario(ScenarioHybrid)
	if hybrid.Hires != 3 {
		t.Errorf("hybrid hires = %d, expected ceil(5×0.5)=3", hybrid.Hires)
	}
	if eval.Cheapest != ScenarioFullTemp {
		t.Errorf("Cheapest = %s, expected %s", eval.Cheapest, ScenarioFullTemp)
	}
}

func TestCostBenefitEvaluator_ResidualPenalty(t *testing.T) {
	rates := DefaultCostRates()
	e := NewCostBenefitEvaluator(rates)
	eval, err := e.Evaluate(CostInput{ShortfallHours: 400, RequiredHire: 2})
	if err != nil {
		t.Fatal(err)
	}

	hire, _ := eval.Scenario(ScenarioHire)
	// 2×160=320h 覆盖，剩余 80h 计罚金
	if hire.UncoveredHours != 80 {
		t.Errorf("UncoveredHours = %v, expected 80", hire.UncoveredHours)
	}
	if penalty, _ := hire.Component(ComponentPenalty); penalty != 80*rates.PenaltyPerHour {
		t.Errorf("penalty = %v, expected %v", penalty, 80*rates.PenaltyPerHour)
	}
}

func TestCostBenefitEvaluator_InvalidInput(t *testing.T) {
	e := NewCostBenefitEvaluator(DefaultCostRates())

	if _, err := e.Evaluate(CostInput{ShortfallHours: -1}); err == nil {
		t.Error("负缺员工时应返回错误")
	}

	bad := DefaultCostRates()
	bad.HybridSplit = 1.5
	if _, err := e.Evaluate(CostInput{ShortfallHours: 10, Rates: &bad}); !apperrors.Is(err, apperrors.CodeValidationFail) {
		t.Errorf("Expected VALIDATION_FAILED, got %v", err)
	}
}
