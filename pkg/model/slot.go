// Package model 定义缺员/过剩分析的核心数据模型
package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02" // 日期格式
	TimeLayout = "15:04"      // 时段格式

	// DefaultSlotMinutes 默认时间槽宽度（分钟）
	DefaultSlotMinutes = 30
)

// TimeSlot 时间槽：日期 + 时段起点，固定宽度
type TimeSlot struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

// ParseSlot 解析并规范化时间槽（"8:00" -> "08:00"）
func ParseSlot(date, tod string) (TimeSlot, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return TimeSlot{}, fmt.Errorf("日期格式无效 %q: %w", date, err)
	}
	t, err := time.Parse(TimeLayout, normalizeClock(tod))
	if err != nil {
		return TimeSlot{}, fmt.Errorf("时段格式无效 %q: %w", tod, err)
	}
	return TimeSlot{Date: d.Format(DateLayout), Time: t.Format(TimeLayout)}, nil
}

// normalizeClock 补齐小时位，并去掉秒
func normalizeClock(tod string) string {
	tod = strings.TrimSpace(tod)
	parts := strings.Split(tod, ":")
	if len(parts) < 2 {
		return tod
	}
	if len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	return parts[0] + ":" + parts[1]
}

// Key 返回时间槽唯一键
func (s TimeSlot) Key() string {
	return s.Date + " " + s.Time
}

// String 实现 fmt.Stringer
func (s TimeSlot) String() string {
	return s.Key()
}

// Before 按 (日期, 时段) 排序
func (s TimeSlot) Before(other TimeSlot) bool {
	if s.Date != other.Date {
		return s.Date < other.Date
	}
	return s.Time < other.Time
}

// MinuteOfDay 返回时段距零点的分钟数
func (s TimeSlot) MinuteOfDay() int {
	t, err := time.Parse(TimeLayout, s.Time)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

// OnGrid 检查时段是否落在指定宽度的网格上
func (s TimeSlot) OnGrid(slotMinutes int) bool {
	if slotMinutes <= 0 {
		return false
	}
	m := s.MinuteOfDay()
	return m >= 0 && m%slotMinutes == 0
}

// SlotHours 时间槽宽度换算为小时
func SlotHours(slotMinutes int) float64 {
	return float64(slotMinutes) / 60
}
