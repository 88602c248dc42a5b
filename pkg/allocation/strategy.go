// Package allocation 提供缺员/过剩的分类分配引擎
package allocation

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/model"
)

// Strategy 分配策略
type Strategy string

const (
	// Proportional 按分类需求占比拆分全组织缺员，合计与全组织一致
	Proportional Strategy = "PROPORTIONAL"
	// Direct 由分类自身矩阵独立计算，不保证与全组织一致
	Direct Strategy = "DIRECT"
)

// ParseStrategy 解析策略名（不区分大小写）
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(s))) {
	case Proportional:
		return Proportional, nil
	case Direct:
		return Direct, nil
	}
	return "", apperrors.InvalidInput("strategy", fmt.Sprintf("未知分配策略 %q", s))
}

// UnmarshalText 支持 yaml/json 中的小写写法
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StrategyConfig 分类策略配置
//
//	default: PROPORTIONAL
//	categories:
//	  role:
//	    nurse: DIRECT
type StrategyConfig struct {
	Default   Strategy                                `yaml:"default" json:"default"`
	Overrides map[model.Dimension]map[string]Strategy `yaml:"categories" json:"categories"`
}

// DefaultStrategyConfig 全部分类按比例分配
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{Default: Proportional}
}

// Resolve 返回分类使用的策略
func (c StrategyConfig) Resolve(cat model.Category) Strategy {
	if byValue, ok := c.Overrides[cat.Dimension]; ok {
		if s, ok := byValue[cat.Value]; ok {
			return s
		}
	}
	if c.Default == "" {
		return Proportional
	}
	return c.Default
}

// Configured 显式配置过的分类（已排序）
func (c StrategyConfig) Configured(d model.Dimension) []model.Category {
	var out []model.Category
	for value := range c.Overrides[d] {
		out = append(out, model.NewCategory(d, value))
	}
	model.SortCategories(out)
	return out
}

// Clone 深拷贝，运行期间使用副本
func (c StrategyConfig) Clone() StrategyConfig {
	out := StrategyConfig{Default: c.Default}
	if c.Overrides == nil {
		return out
	}
	out.Overrides = make(map[model.Dimension]map[string]Strategy, len(c.Overrides))
	for d, byValue := range c.Overrides {
		m := make(map[string]Strategy, len(byValue))
		for v, s := range byValue {
			m[v] = s
		}
		out.Overrides[d] = m
	}
	return out
}

// Validate 校验配置
func (c StrategyConfig) Validate() error {
	var ve apperrors.ValidationErrors
	if c.Default != "" {
		if _, err := ParseStrategy(string(c.Default)); err != nil {
			ve.Add("default", fmt.Sprintf("未知分配策略 %q", c.Default))
		}
	}

	dims := make([]string, 0, len(c.Overrides))
	for d := range c.Overrides {
		dims = append(dims, string(d))
	}
	sort.Strings(dims)

	for _, ds := range dims {
		d, err := model.ParseDimension(ds)
		if err != nil || d == model.DimensionOverall || string(d) != ds {
			ve.Add("categories."+ds, "未知分类维度")
			continue
		}
		for v, s := range c.Overrides[model.Dimension(ds)] {
			if strings.TrimSpace(v) == "" {
				ve.Add("categories."+ds, "分类取值不能为空")
			}
			if _, err := ParseStrategy(string(s)); err != nil {
				ve.Add(fmt.Sprintf("categories.%s.%s", ds, v), fmt.Sprintf("未知分配策略 %q", s))
			}
		}
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}
