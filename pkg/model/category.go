package model

import (
	"fmt"
	"sort"
	"strings"
)

// Dimension 分类维度
type Dimension string

const (
	DimensionOverall    Dimension = ""           // 全组织
	DimensionRole       Dimension = "role"       // 职种
	DimensionEmployment Dimension = "employment" // 雇佣形态
)

// UnassignedValue 分类字段为空时的取值
const UnassignedValue = "unassigned"

// UnattributedValue 按比例无法归属的缺员/过剩在分配表中的取值
const UnattributedValue = "unattributed"

// overallLabel 全组织范围的显示名
const overallLabel = "overall"

// Dimensions 返回所有可分类维度
func Dimensions() []Dimension {
	return []Dimension{DimensionRole, DimensionEmployment}
}

// ParseDimension 解析分类维度
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "role":
		return DimensionRole, nil
	case "employment":
		return DimensionEmployment, nil
	case "", overallLabel:
		return DimensionOverall, nil
	}
	return DimensionOverall, fmt.Errorf("未知分类维度 %q", s)
}

// Category 分类：维度 + 取值。维度为空表示全组织
type Category struct {
	Dimension Dimension `json:"dimension,omitempty"`
	Value     string    `json:"value,omitempty"`
}

// Overall 返回全组织范围
func Overall() Category {
	return Category{}
}

// NewCategory 创建分类，空取值归入 unassigned
func NewCategory(d Dimension, value string) Category {
	if d == DimensionOverall {
		return Overall()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		value = UnassignedValue
	}
	return Category{Dimension: d, Value: value}
}

// Unattributed 返回维度 d 的无法归属桶
func Unattributed(d Dimension) Category {
	return Category{Dimension: d, Value: UnattributedValue}
}

// IsOverall 是否为全组织范围
func (c Category) IsOverall() bool {
	return c.Dimension == DimensionOverall
}

// String 返回 "role:nurse" 形式；全组织返回 "overall"
func (c Category) String() string {
	if c.IsOverall() {
		return overallLabel
	}
	return string(c.Dimension) + ":" + c.Value
}

// ParseCategory 解析 "role:nurse" / "overall"
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == overallLabel || s == "" {
		return Overall(), nil
	}
	dim, value, ok := strings.Cut(s, ":")
	if !ok {
		return Category{}, fmt.Errorf("分类格式无效 %q", s)
	}
	d, err := ParseDimension(dim)
	if err != nil {
		return Category{}, err
	}
	if d == DimensionOverall {
		return Category{}, fmt.Errorf("分类格式无效 %q", s)
	}
	return NewCategory(d, value), nil
}

// Less 按 (维度, 取值) 排序，全组织排最前
func (c Category) Less(other Category) bool {
	if c.Dimension != other.Dimension {
		return c.Dimension < other.Dimension
	}
	return c.Value < other.Value
}

// SortCategories 原地排序
func SortCategories(cats []Category) {
	sort.Slice(cats, func(i, j int) bool { return cats[i].Less(cats[j]) })
}
