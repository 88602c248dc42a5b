package stats

import (
	"math"
	"testing"

	apperrors "github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/matrix"
	"github.com/paiban/staffgap/pkg/model"
)

func scenarioSet(t *testing.T) matrix.Set {
	t.Helper()
	ix := matrix.NewSlotIndex([]model.TimeSlot{
		{Date: "2024-06-03", Time: "08:00"},
		{Date: "2024-06-03", Time: "08:30"},
		{Date: "2024-06-03", Time: "09:00"},
	}, 30)
	set, err := matrix.NewSet(model.Overall(), ix,
		[]float64{5, 5, 5}, // need
		[]float64{3, 7, 6}, // upper
		[]float64{4, 6, 7}, // actual
	)
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}
	return set
}

func TestCalculator_ReferenceScenario(t *testing.T) {
	gap, err := NewCalculator(ExcessReport).Calculate(scenarioSet(t))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	expectedLack := []int{1, 0, 0}
	expectedLackRatio := []float64{0.20, 0, 0}
	expectedExcess := []int{1, 0, 1}
	expectedExcessRatio := []float64{0.33, 0, 0.17}

	for i, slot := range gap.Slots {
		if slot.Lack != expectedLack[i] {
			t.Errorf("%s lack = %d, expected %d", slot.Slot, slot.Lack, expectedLack[i])
		}
		if math.Abs(slot.LackRatio-expectedLackRatio[i]) > 0.005 {
			t.Errorf("%s lack_ratio = %.4f, expected %.2f", slot.Slot, slot.LackRatio, expectedLackRatio[i])
		}
		if slot.Excess != expectedExcess[i] {
			t.Errorf("%s excess = %d, expected %d", slot.Slot, slot.Excess, expectedExcess[i])
		}
		if math.Abs(slot.ExcessRatio-expectedExcessRatio[i]) > 0.005 {
			t.Errorf("%s excess_ratio = %.4f, expected %.2f", slot.Slot, slot.ExcessRatio, expectedExcessRatio[i])
		}
	}

	// 08:00 同时缺员与过剩
	first := gap.Slots[0]
	if first.Lack != 1 || first.Excess != 1 {
		t.Errorf("08:00 应同时报告 lack=1 和 excess=1, got lack=%d excess=%d", first.Lack, first.Excess)
	}
}

func TestCalculator_SuppressBelowNeed(t *testing.T) {
	gap, err := NewCalculator(ExcessSuppressBelowNeed).Calculate(scenarioSet(t))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	// 08:00 上限(3) < 需求(5)：过剩被抑制，缺员不受影响
	if gap.Slots[0].Excess != 0 || gap.Slots[0].ExcessRatio != 0 {
		t.Errorf("08:00 excess 应被抑制, got %d", gap.Slots[0].Excess)
	}
	if gap.Slots[0].Lack != 1 {
		t.Errorf("08:00 lack 不应受影响, got %d", gap.Slots[0].Lack)
	}
	if gap.Slots[2].Excess != 1 {
		t.Errorf("09:00 上限高于需求，过剩应保留, got %d", gap.Slots[2].Excess)
	}
}

func TestCounts(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		expected int
	}{
		{"整数差", 5, 3, 2},
		{"负差取0", 3, 5, 0},
		{"小数向下取整", 4.9, 3, 1},
		{"不足一人", 3.6, 3, 0},
		{"浮点误差", 0.3, 0.1 + 0.1 - 0.9, 1},
		{"相等", 2, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := LackCount(tt.a, tt.b); result != tt.expected {
				t.Errorf("LackCount(%v, %v) = %d, expected %d", tt.a, tt.b, result, tt.expected)
			}
			if result := ExcessCount(tt.a, tt.b); result != tt.expected {
				t.Errorf("ExcessCount(%v, %v) = %d, expected %d", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestRatio_NeverNaNOrInfinite(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		denom    float64
		expected float64
	}{
		{"分母为0", 3, 0, 0},
		{"分子为0", 0, 4, 0},
		{"正常", 1, 4, 0.25},
		{"超过1时截断", 5, 2, 1},
		{"分母为NaN", 1, math.NaN(), 0},
		{"分母为Inf", 1, math.Inf(1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Ratio(tt.count, tt.denom)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				t.Fatalf("Ratio() 不应返回 NaN/Inf")
			}
			if r != tt.expected {
				t.Errorf("Ratio(%d, %v) = %v, expected %v", tt.count, tt.denom, r, tt.expected)
			}
		})
	}
}

func TestCalculator_ZeroDenominators(t *testing.T) {
	ix := matrix.NewSlotIndex([]model.TimeSlot{{Date: "2024-06-03", Time: "10:00"}}, 30)
	set, err := matrix.NewSet(model.Overall(), ix, []float64{0}, []float64{0}, []float64{3})
	if err != nil {
		t.Fatal(err)
	}

	gap, err := NewCalculator(ExcessReport).Calculate(set)
	if err != nil {
		t.Fatal(err)
	}

	slot := gap.Slots[0]
	if slot.Lack != 0 || slot.LackRatio != 0 {
		t.Errorf("need=0 时 lack 应为 0, got %d / %v", slot.Lack, slot.LackRatio)
	}
	if slot.Excess != 3 || slot.ExcessRatio != 0 {
		t.Errorf("upper=0 时 excess=3 且 ratio=0, got %d / %v", slot.Excess, slot.ExcessRatio)
	}
}

func TestCalculator_MisalignedSet(t *testing.T) {
	a := matrix.NewSlotIndex([]model.TimeSlot{{Date: "2024-06-03", Time: "08:00"}}, 30)
	b := matrix.NewSlotIndex([]model.TimeSlot{{Date: "2024-06-04", Time: "08:00"}}, 30)

	set := matrix.Set{
		Need:   matrix.Zero(matrix.NameNeed, model.Overall(), a),
		Upper:  matrix.Zero(matrix.NameUpper, model.Overall(), b),
		Actual: matrix.Zero(matrix.NameActual, model.Overall(), a),
	}

	_, err := NewCalculator(ExcessReport).Calculate(set)
	if !apperrors.Is(err, apperrors.CodeInputAlignment) {
		t.Errorf("Expected INPUT_ALIGNMENT, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	gap, err := NewCalculator(ExcessReport).Calculate(scenarioSet(t))
	if err != nil {
		t.Fatal(err)
	}

	s := Summarize(gap, model.SlotHours(30))
	if s.LackSlots != 1 || s.ExcessSlots != 2 || s.BothSlots != 1 {
		t.Errorf("Summary slots = %+v", s)
	}
	if s.LackHours != 0.5 || s.ExcessHours != 1 {
		t.Errorf("LackHours = %v, ExcessHours = %v", s.LackHours, s.ExcessHours)
	}

	days := DailyTotals(gap, model.SlotHours(30))
	if len(days) != 1 || days[0].Lack != 1 || days[0].Excess != 2 {
		t.Errorf("DailyTotals() = %+v", days)
	}
}

func TestParseExcessPolicy(t *testing.T) {
	if p, err := ParseExcessPolicy(""); err != nil || p != ExcessReport {
		t.Errorf("空字符串应返回默认策略, got %v %v", p, err)
	}
	if p, err := ParseExcessPolicy("SUPPRESS_BELOW_NEED"); err != nil || p != ExcessSuppressBelowNeed {
		t.Errorf("应不区分大小写, got %v %v", p, err)
	}
	if _, err := ParseExcessPolicy("ignore"); !apperrors.Is(err, apperrors.CodeInvalidInput) {
		t.Errorf("未知策略应返回 INVALID_INPUT, got %v", err)
	}
}
