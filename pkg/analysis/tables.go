package analysis

import (
	"math"
	"sort"

	"github.com/paiban/staffgap/pkg/allocation"
	"github.com/paiban/staffgap/pkg/model"
	"github.com/paiban/staffgap/pkg/stats"
)

// ratioDecimals 表格中比率保留的小数位数
const ratioDecimals = 4

// ShortageRow 缺员表行
type ShortageRow struct {
	Date      string  `json:"date"`
	TimeOfDay string  `json:"time_of_day"`
	Scope     string  `json:"scope"`
	LackCount int     `json:"lack_count"`
	LackRatio float64 `json:"lack_ratio"`
}

// ExcessRow 过剩表行
type ExcessRow struct {
	Date        string  `json:"date"`
	TimeOfDay   string  `json:"time_of_day"`
	Scope       string  `json:"scope"`
	ExcessCount int     `json:"excess_count"`
	ExcessRatio float64 `json:"excess_ratio"`
}

// AllocationRow 分类分配表行
type AllocationRow struct {
	Category                string  `json:"category"`
	AllocatedShortfallHours float64 `json:"allocated_shortfall_hours"`
	AllocatedExcessHours    float64 `json:"allocated_excess_hours"`
	StrategyTag             string  `json:"strategy_tag"`
	Missing                 bool    `json:"missing"`
}

// Tables 对外输出的三张表
type Tables struct {
	Shortage   []ShortageRow   `json:"shortage"`
	Excess     []ExcessRow     `json:"excess"`
	Allocation []AllocationRow `json:"allocation"`
}

// scopedGap 带范围的计算结果，用于排序
type scopedGap struct {
	scope model.Category
	gap   *stats.Gap
}

// BuildTables 由分析结果生成表格
//
// 行按 (日期, 时段, 范围) 与 (维度, 取值) 排序，不包含运行ID与时间戳，
// 相同输入与配置的输出逐字节一致。
func BuildTables(r *Report) Tables {
	gaps := []scopedGap{{scope: model.Overall(), gap: r.Aggregate.Gap}}
	for _, cr := range r.Categories {
		for _, g := range cr.Gaps {
			gaps = append(gaps, scopedGap{scope: g.Scope, gap: g})
		}
	}

	type slotRow struct {
		slot  model.TimeSlot
		scope model.Category
		gap   stats.SlotGap
	}
	var rows []slotRow
	for _, sg := range gaps {
		if sg.gap == nil {
			continue
		}
		for _, s := range sg.gap.Slots {
			rows = append(rows, slotRow{slot: s.Slot, scope: sg.scope, gap: s})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].slot != rows[j].slot {
			return rows[i].slot.Before(rows[j].slot)
		}
		return rows[i].scope.Less(rows[j].scope)
	})

	t := Tables{
		Shortage:   make([]ShortageRow, 0, len(rows)),
		Excess:     make([]ExcessRow, 0, len(rows)),
		Allocation: []AllocationRow{},
	}
	for _, row := range rows {
		t.Shortage = append(t.Shortage, ShortageRow{
			Date:      row.slot.Date,
			TimeOfDay: row.slot.Time,
			Scope:     row.scope.String(),
			LackCount: row.gap.Lack,
			LackRatio: roundRatio(row.gap.LackRatio),
		})
		t.Excess = append(t.Excess, ExcessRow{
			Date:        row.slot.Date,
			TimeOfDay:   row.slot.Time,
			Scope:       row.scope.String(),
			ExcessCount: row.gap.Excess,
			ExcessRatio: roundRatio(row.gap.ExcessRatio),
		})
	}

	type allocEntry struct {
		category model.Category
		row      AllocationRow
	}
	var entries []allocEntry
	for _, cr := range r.Categories {
		if cr.Allocation == nil {
			continue
		}
		for _, a := range cr.Allocation.Allocations {
			entries = append(entries, allocEntry{category: a.Category, row: AllocationRow{
				Category:                a.Category.String(),
				AllocatedShortfallHours: a.LackHours,
				AllocatedExcessHours:    a.ExcessHours,
				StrategyTag:             string(a.Strategy),
				Missing:                 a.Missing,
			}})
		}
		// 无法归属的部分单独成行，按比例分配行合计与全组织一致
		res := cr.Allocation
		if res.UnattributedHours > 0 || res.UnattributedExcessHours > 0 {
			c := model.Unattributed(res.Dimension)
			entries = append(entries, allocEntry{category: c, row: AllocationRow{
				Category:                c.String(),
				AllocatedShortfallHours: res.UnattributedHours,
				AllocatedExcessHours:    res.UnattributedExcessHours,
				StrategyTag:             string(allocation.Proportional),
			}})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].category.Less(entries[j].category) })
	for _, e := range entries {
		t.Allocation = append(t.Allocation, e.row)
	}
	return t
}

func roundRatio(v float64) float64 {
	p := math.Pow(10, ratioDecimals)
	return math.Round(v*p) / p
}
