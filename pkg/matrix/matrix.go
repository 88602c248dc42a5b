package matrix

import (
	"fmt"

	apperrors "github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/model"
)

// 矩阵名称
const (
	NameNeed   = "need"
	NameUpper  = "upper"
	NameActual = "actual"
)

// Matrix 单一范围下、按索引对齐的数值序列（只读快照）
type Matrix struct {
	name   string
	scope  model.Category
	index  *SlotIndex
	values []float64
}

// FromValues 由数值创建矩阵，长度必须与索引一致
func FromValues(name string, scope model.Category, ix *SlotIndex, values []float64) (*Matrix, error) {
	if len(values) != ix.Len() {
		return nil, apperrors.InputAlignment(name,
			fmt.Sprintf("%s: 数值长度 %d 与索引长度 %d 不一致", scope, len(values), ix.Len()))
	}
	v := make([]float64, len(values))
	copy(v, values)
	return &Matrix{name: name, scope: scope, index: ix, values: v}, nil
}

// Zero 创建全零矩阵
func Zero(name string, scope model.Category, ix *SlotIndex) *Matrix {
	return &Matrix{name: name, scope: scope, index: ix, values: make([]float64, ix.Len())}
}

// Name 矩阵名称
func (m *Matrix) Name() string { return m.name }

// Scope 矩阵所属范围
func (m *Matrix) Scope() model.Category { return m.scope }

// Index 矩阵索引
func (m *Matrix) Index() *SlotIndex { return m.index }

// Len 长度
func (m *Matrix) Len() int { return len(m.values) }

// Value 第 i 个值
func (m *Matrix) Value(i int) float64 { return m.values[i] }

// Values 返回数值副本
func (m *Matrix) Values() []float64 {
	out := make([]float64, len(m.values))
	copy(out, m.values)
	return out
}

// Sum 合计
func (m *Matrix) Sum() float64 {
	total := 0.0
	for _, v := range m.values {
		total += v
	}
	return total
}

// Reindex 按给定索引重排
//
// 目标索引必须是当前索引的子集：禁止对完整日历区间 reindex，
// 否则非工作时间槽会以 0 值混入。
func (m *Matrix) Reindex(ix *SlotIndex) (*Matrix, error) {
	if m.index.Equal(ix) {
		return m, nil
	}
	if !m.index.Covers(ix) {
		return nil, apperrors.InputAlignment(m.name,
			fmt.Sprintf("%s: 目标索引包含工作时间槽索引之外的时间槽", m.scope))
	}
	values := make([]float64, ix.Len())
	for i, s := range ix.slots {
		p, _ := m.index.Position(s)
		values[i] = m.values[p]
	}
	return &Matrix{name: m.name, scope: m.scope, index: ix, values: values}, nil
}

// Set 同一范围下的 need/upper/actual 三个矩阵
type Set struct {
	Scope    model.Category
	Need     *Matrix
	Upper    *Matrix
	Actual   *Matrix
	Observed bool // 该范围是否有实际出勤观测
}

// Index 返回集合索引（以 need 为准）
func (s Set) Index() *SlotIndex {
	if s.Need == nil {
		return nil
	}
	return s.Need.Index()
}

// Aligned 检查三个矩阵共享同一个索引
func (s Set) Aligned() error {
	for _, m := range []struct {
		name string
		m    *Matrix
	}{{NameNeed, s.Need}, {NameUpper, s.Upper}, {NameActual, s.Actual}} {
		if m.m == nil {
			return apperrors.InputAlignment(m.name, fmt.Sprintf("%s: 矩阵缺失", s.Scope))
		}
	}
	ix := s.Need.Index()
	if !s.Upper.Index().Equal(ix) {
		return apperrors.InputAlignment(NameUpper, fmt.Sprintf("%s: 与 need 索引不一致", s.Scope))
	}
	if !s.Actual.Index().Equal(ix) {
		return apperrors.InputAlignment(NameActual, fmt.Sprintf("%s: 与 need 索引不一致", s.Scope))
	}
	return nil
}

// NewSet 由三组数值创建集合（测试与外部调用方使用）
func NewSet(scope model.Category, ix *SlotIndex, need, upper, actual []float64) (Set, error) {
	n, err := FromValues(NameNeed, scope, ix, need)
	if err != nil {
		return Set{}, err
	}
	u, err := FromValues(NameUpper, scope, ix, upper)
	if err != nil {
		return Set{}, err
	}
	a, err := FromValues(NameActual, scope, ix, actual)
	if err != nil {
		return Set{}, err
	}
	observed := false
	for _, v := range actual {
		if v > 0 {
			observed = true
			break
		}
	}
	return Set{Scope: scope, Need: n, Upper: u, Actual: a, Observed: observed}, nil
}
