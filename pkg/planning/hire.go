// Package planning 提供基于缺员工时的招聘与成本测算
package planning

import (
	"math"

	apperrors "github.com/paiban/staffgap/pkg/errors"
)

// ceilTolerance 向上取整前扣除的浮点误差（4.0000000001 视为 4）
const ceilTolerance = 1e-9

// HireParams 招聘测算参数
type HireParams struct {
	ShortfallHours float64 `json:"shortfall_hours"` // 缺员工时
	StdWorkHours   float64 `json:"std_work_hours"`  // 人均月标准工时 (>0)
	SafetyFactor   float64 `json:"safety_factor"`   // 安全系数 (>=1)
	TargetCoverage float64 `json:"target_coverage"` // 目标覆盖率 (0,1]
}

// DefaultHireParams 默认参数
func DefaultHireParams() HireParams {
	return HireParams{
		StdWorkHours:   160,
		SafetyFactor:   1.10,
		TargetCoverage: 0.95,
	}
}

// Validate 校验参数
func (p HireParams) Validate() error {
	var ve apperrors.ValidationErrors
	if !finite(p.ShortfallHours) || p.ShortfallHours < 0 {
		ve.Add("shortfall_hours", "必须为非负数")
	}
	if !finite(p.StdWorkHours) || p.StdWorkHours <= 0 {
		ve.Add("std_work_hours", "必须大于0")
	}
	if !finite(p.SafetyFactor) || p.SafetyFactor < 1 {
		ve.Add("safety_factor", "不能小于1")
	}
	if !finite(p.TargetCoverage) || p.TargetCoverage <= 0 || p.TargetCoverage > 1 {
		ve.Add("target_coverage", "必须在 (0,1] 区间")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// HirePlan 招聘测算结果
type HirePlan struct {
	HireParams
	RawHire      float64 `json:"raw_hire"`      // 未取整的人数
	RequiredHire int     `json:"required_hire"` // 需招聘人数
}

// HirePlanProjector 把缺员工时换算为招聘人数
type HirePlanProjector struct {
	defaults HireParams
}

// NewHirePlanProjector 创建测算器，defaults 用于补全请求中未填的参数
func NewHirePlanProjector(defaults HireParams) *HirePlanProjector {
	return &HirePlanProjector{defaults: defaults}
}

// Defaults 默认参数
func (h *HirePlanProjector) Defaults() HireParams {
	return h.defaults
}

// WithDefaults 用默认值补全未填（为0）的参数
func (h *HirePlanProjector) WithDefaults(p HireParams) HireParams {
	if p.StdWorkHours == 0 {
		p.StdWorkHours = h.defaults.StdWorkHours
	}
	if p.SafetyFactor == 0 {
		p.SafetyFactor = h.defaults.SafetyFactor
	}
	if p.TargetCoverage == 0 {
		p.TargetCoverage = h.defaults.TargetCoverage
	}
	return p
}

// Project 测算需招聘人数
//
//	required_hire = ceil(shortfall_hours × safety_factor / (std_work_hours × target_coverage))
func (h *HirePlanProjector) Project(p HireParams) (*HirePlan, error) {
	p = h.WithDefaults(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw := p.ShortfallHours * p.SafetyFactor / (p.StdWorkHours * p.TargetCoverage)
	return &HirePlan{
		HireParams:   p,
		RawHire:      raw,
		RequiredHire: ceilCount(raw),
	}, nil
}

// RequiredHire 计算需招聘人数；为0的参数取默认值，参数非法时返回 0
func RequiredHire(shortfallHours, stdWorkHours, safetyFactor, targetCoverage float64) int {
	plan, err := NewHirePlanProjector(DefaultHireParams()).Project(HireParams{
		ShortfallHours: shortfallHours,
		StdWorkHours:   stdWorkHours,
		SafetyFactor:   safetyFactor,
		TargetCoverage: targetCoverage,
	})
	if err != nil {
		return 0
	}
	return plan.RequiredHire
}

// ceilCount 带误差容忍的向上取整
func ceilCount(x float64) int {
	if x <= 0 {
		return 0
	}
	return int(math.Ceil(x - ceilTolerance))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
