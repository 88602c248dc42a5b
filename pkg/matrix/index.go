// Package matrix 构建按工作时间槽对齐的需求/上限/实际矩阵
package matrix

import (
	"sort"

	"github.com/paiban/staffgap/pkg/model"
)

// SlotIndex 工作时间槽索引
//
// 每次运行只构建一次，之后所有 reindex 都复用同一个索引。
// 非工作时间槽在构建前已剔除，不会出现在索引中。
type SlotIndex struct {
	slots       []model.TimeSlot
	pos         map[model.TimeSlot]int
	slotMinutes int
}

// NewSlotIndex 创建索引（排序并去重）
func NewSlotIndex(slots []model.TimeSlot, slotMinutes int) *SlotIndex {
	seen := make(map[model.TimeSlot]struct{}, len(slots))
	uniq := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		uniq = append(uniq, s)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Before(uniq[j]) })

	pos := make(map[model.TimeSlot]int, len(uniq))
	for i, s := range uniq {
		pos[s] = i
	}
	return &SlotIndex{slots: uniq, pos: pos, slotMinutes: slotMinutes}
}

// Len 时间槽数量
func (ix *SlotIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.slots)
}

// At 返回第 i 个时间槽
func (ix *SlotIndex) At(i int) model.TimeSlot {
	return ix.slots[i]
}

// Slots 返回时间槽副本
func (ix *SlotIndex) Slots() []model.TimeSlot {
	out := make([]model.TimeSlot, len(ix.slots))
	copy(out, ix.slots)
	return out
}

// Position 返回时间槽位置
func (ix *SlotIndex) Position(s model.TimeSlot) (int, bool) {
	i, ok := ix.pos[s]
	return i, ok
}

// Contains 是否包含时间槽
func (ix *SlotIndex) Contains(s model.TimeSlot) bool {
	_, ok := ix.pos[s]
	return ok
}

// SlotMinutes 时间槽宽度（分钟）
func (ix *SlotIndex) SlotMinutes() int {
	return ix.slotMinutes
}

// SlotHours 时间槽宽度（小时）
func (ix *SlotIndex) SlotHours() float64 {
	return model.SlotHours(ix.slotMinutes)
}

// Dates 返回索引覆盖的日期（去重、有序）
func (ix *SlotIndex) Dates() []string {
	var dates []string
	for _, s := range ix.slots {
		if len(dates) == 0 || dates[len(dates)-1] != s.Date {
			dates = append(dates, s.Date)
		}
	}
	return dates
}

// Equal 两个索引是否完全一致
func (ix *SlotIndex) Equal(other *SlotIndex) bool {
	if ix == other {
		return true
	}
	if ix == nil || other == nil {
		return false
	}
	if ix.slotMinutes != other.slotMinutes || len(ix.slots) != len(other.slots) {
		return false
	}
	for i := range ix.slots {
		if ix.slots[i] != other.slots[i] {
			return false
		}
	}
	return true
}

// Covers 是否包含 other 的全部时间槽
func (ix *SlotIndex) Covers(other *SlotIndex) bool {
	if other == nil {
		return true
	}
	if ix == nil || ix.slotMinutes != other.slotMinutes {
		return false
	}
	for _, s := range other.slots {
		if !ix.Contains(s) {
			return false
		}
	}
	return true
}

// Subset 按条件截取子索引
func (ix *SlotIndex) Subset(keep func(model.TimeSlot) bool) *SlotIndex {
	var slots []model.TimeSlot
	for _, s := range ix.slots {
		if keep(s) {
			slots = append(slots, s)
		}
	}
	return NewSlotIndex(slots, ix.slotMinutes)
}
