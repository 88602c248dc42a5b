// Package stats 提供缺员/过剩统计分析功能
package stats

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/matrix"
	"github.com/paiban/staffgap/pkg/model"
)

// countTolerance 浮点误差容忍度（0.9999999999 视为 1）
const countTolerance = 1e-9

// ExcessPolicy 上限低于需求时的过剩处理策略
type ExcessPolicy string

const (
	// ExcessReport 缺员与过剩同时报告
	ExcessReport ExcessPolicy = "report"
	// ExcessSuppressBelowNeed 上限低于需求视为上限配置错误，该时间槽不报告过剩
	ExcessSuppressBelowNeed ExcessPolicy = "suppress_below_need"
)

// ParseExcessPolicy 解析过剩策略，空字符串返回默认值
func ParseExcessPolicy(s string) (ExcessPolicy, error) {
	switch ExcessPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExcessReport:
		return ExcessReport, nil
	case ExcessSuppressBelowNeed:
		return ExcessSuppressBelowNeed, nil
	}
	return "", apperrors.InvalidInput("excess_policy", fmt.Sprintf("未知策略 %q", s))
}

// SlotGap 单个时间槽的缺员/过剩
type SlotGap struct {
	Slot        model.TimeSlot `json:"slot"`
	Need        float64        `json:"need"`
	Upper       float64        `json:"upper"`
	Actual      float64        `json:"actual"`
	Lack        int            `json:"lack"`
	LackRatio   float64        `json:"lack_ratio"`
	Excess      int            `json:"excess"`
	ExcessRatio float64        `json:"excess_ratio"`
}

// Gap 某一范围在全部工作时间槽上的缺员/过剩
type Gap struct {
	Scope model.Category
	Index *matrix.SlotIndex
	Slots []SlotGap
}

// LackCounts 各时间槽缺员数
func (g *Gap) LackCounts() []int {
	out := make([]int, len(g.Slots))
	for i, s := range g.Slots {
		out[i] = s.Lack
	}
	return out
}

// ExcessCounts 各时间槽过剩数
func (g *Gap) ExcessCounts() []int {
	out := make([]int, len(g.Slots))
	for i, s := range g.Slots {
		out[i] = s.Excess
	}
	return out
}

// Calculator 缺员/过剩计算器
type Calculator struct {
	policy ExcessPolicy
}

// NewCalculator 创建计算器
func NewCalculator(policy ExcessPolicy) *Calculator {
	if policy == "" {
		policy = ExcessReport
	}
	return &Calculator{policy: policy}
}

// Policy 当前过剩策略
func (c *Calculator) Policy() ExcessPolicy {
	return c.policy
}

// Calculate 逐时间槽计算缺员与过剩
//
// 缺员与过剩彼此独立：同一时间槽可以同时为正（upper < need 时）。
func (c *Calculator) Calculate(set matrix.Set) (*Gap, error) {
	if err := set.Aligned(); err != nil {
		return nil, err
	}

	ix := set.Index()
	gap := &Gap{Scope: set.Scope, Index: ix, Slots: make([]SlotGap, ix.Len())}
	for i := 0; i < ix.Len(); i++ {
		need, upper, actual := set.Need.Value(i), set.Upper.Value(i), set.Actual.Value(i)

		lack := LackCount(need, actual)
		excess := ExcessCount(actual, upper)
		if c.policy == ExcessSuppressBelowNeed && upper < need {
			excess = 0
		}

		gap.Slots[i] = SlotGap{
			Slot:        ix.At(i),
			Need:        need,
			Upper:       upper,
			Actual:      actual,
			Lack:        lack,
			LackRatio:   Ratio(lack, need),
			Excess:      excess,
			ExcessRatio: Ratio(excess, upper),
		}
	}
	return gap, nil
}

// LackCount max(need-actual, 0)，向下取整
func LackCount(need, actual float64) int {
	return floorCount(need - actual)
}

// ExcessCount max(actual-upper, 0)，向下取整
func ExcessCount(actual, upper float64) int {
	return floorCount(actual - upper)
}

// floorCount 差值取整：不足一人的部分不进位
func floorCount(diff float64) int {
	if math.IsNaN(diff) || diff <= 0 {
		return 0
	}
	return int(math.Floor(diff + countTolerance))
}

// Ratio count/denom，分母为 0 时返回 0，结果限制在 [0,1]
func Ratio(count int, denom float64) float64 {
	if denom <= 0 || count <= 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return 0
	}
	r := float64(count) / denom
	if r > 1 {
		return 1
	}
	return r
}
