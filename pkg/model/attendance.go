package model

import "strings"

// 非工作类型
const (
	NonWorkingHoliday = "holiday"
	NonWorkingLeave   = "leave"
)

// AttendanceRecord 长表出勤记录（一行 = 一名员工在一个时间槽的观测）
type AttendanceRecord struct {
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	StaffID        string   `json:"staff_id,omitempty"`
	Role           string   `json:"role"`
	Employment     string   `json:"employment"`
	Worked         bool     `json:"worked"`
	NonWorkingType string   `json:"non_working_type,omitempty"` // holiday/leave
	Count          *float64 `json:"count,omitempty"`            // 本行代表的人数；省略视为 1，显式 0 计为 0
}

// IsWorking 是否为实际出勤观测
func (r AttendanceRecord) IsWorking() bool {
	return r.Worked && strings.TrimSpace(r.NonWorkingType) == ""
}

// Headcount 返回本行人数，未填 count 时为 1
func (r AttendanceRecord) Headcount() float64 {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}

// CategoryFor 返回该记录在指定维度下的分类
func (r AttendanceRecord) CategoryFor(d Dimension) Category {
	switch d {
	case DimensionRole:
		return NewCategory(d, r.Role)
	case DimensionEmployment:
		return NewCategory(d, r.Employment)
	}
	return Overall()
}

// SeriesPoint 外部提供的需求/上限序列点
type SeriesPoint struct {
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Dimension Dimension `json:"dimension,omitempty"`
	Category  string    `json:"category,omitempty"`
	Value     float64   `json:"value"`
}

// Scope 返回序列点所属范围
func (p SeriesPoint) Scope() Category {
	return NewCategory(p.Dimension, p.Category)
}
