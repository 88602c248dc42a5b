package stats

// Summary 缺员/过剩汇总
type Summary struct {
	Scope       string  `json:"scope"`
	Slots       int     `json:"slots"`        // 工作时间槽数
	LackSlots   int     `json:"lack_slots"`   // 缺员时间槽数
	ExcessSlots int     `json:"excess_slots"` // 过剩时间槽数
	BothSlots   int     `json:"both_slots"`   // 同时缺员与过剩的时间槽数
	LackTotal   int     `json:"lack_total"`   // 缺员人·槽
	ExcessTotal int     `json:"excess_total"` // 过剩人·槽
	LackHours   float64 `json:"lack_hours"`
	ExcessHours float64 `json:"excess_hours"`
	MaxLack     int     `json:"max_lack"`
	MaxExcess   int     `json:"max_excess"`
}

// DayGap 每日缺员/过剩
type DayGap struct {
	Date        string  `json:"date"`
	Slots       int     `json:"slots"`
	Lack        int     `json:"lack"`
	Excess      int     `json:"excess"`
	LackHours   float64 `json:"lack_hours"`
	ExcessHours float64 `json:"excess_hours"`
}

// Summarize 汇总，slotHours 为单个时间槽折算的小时数
func Summarize(g *Gap, slotHours float64) Summary {
	s := Summary{Scope: g.Scope.String(), Slots: len(g.Slots)}
	for _, slot := range g.Slots {
		if slot.Lack > 0 {
			s.LackSlots++
		}
		if slot.Excess > 0 {
			s.ExcessSlots++
		}
		if slot.Lack > 0 && slot.Excess > 0 {
			s.BothSlots++
		}
		s.LackTotal += slot.Lack
		s.ExcessTotal += slot.Excess
		if slot.Lack > s.MaxLack {
			s.MaxLack = slot.Lack
		}
		if slot.Excess > s.MaxExcess {
			s.MaxExcess = slot.Excess
		}
	}
	s.LackHours = float64(s.LackTotal) * slotHours
	s.ExcessHours = float64(s.ExcessTotal) * slotHours
	return s
}

// DailyTotals 按日期汇总（只包含工作日）
func DailyTotals(g *Gap, slotHours float64) []DayGap {
	var days []DayGap
	for _, slot := range g.Slots {
		if len(days) == 0 || days[len(days)-1].Date != slot.Slot.Date {
			days = append(days, DayGap{Date: slot.Slot.Date})
		}
		day := &days[len(days)-1]
		day.Slots++
		day.Lack += slot.Lack
		day.Excess += slot.Excess
	}
	for i := range days {
		days[i].LackHours = float64(days[i].Lack) * slotHours
		days[i].ExcessHours = float64(days[i].Excess) * slotHours
	}
	return days
}
