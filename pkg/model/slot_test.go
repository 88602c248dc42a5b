package model

import (
	"encoding/json"
	"testing"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		tod      string
		expected TimeSlot
		wantErr  bool
	}{
		{"标准格式", "2024-06-01", "08:30", TimeSlot{Date: "2024-06-01", Time: "08:30"}, false},
		{"单位数小时", "2024-06-01", "8:00", TimeSlot{Date: "2024-06-01", Time: "08:00"}, false},
		{"带秒", "2024-06-01", "09:30:00", TimeSlot{Date: "2024-06-01", Time: "09:30"}, false},
		{"无效日期", "2024/06/01", "08:00", TimeSlot{}, true},
		{"无效时段", "2024-06-01", "25:00", TimeSlot{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := ParseSlot(tt.date, tt.tod)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSlot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if slot != tt.expected {
				t.Errorf("ParseSlot() = %v, expected %v", slot, tt.expected)
			}
		})
	}
}

func TestTimeSlot_Before(t *testing.T) {
	a := TimeSlot{Date: "2024-06-01", Time: "23:30"}
	b := TimeSlot{Date: "2024-06-02", Time: "00:00"}
	c := TimeSlot{Date: "2024-06-02", Time: "08:00"}

	if !a.Before(b) {
		t.Error("前一天的时间槽应排在前面")
	}
	if !b.Before(c) {
		t.Error("同一天较早的时段应排在前面")
	}
	if c.Before(c) {
		t.Error("时间槽不应早于自身")
	}
}

func TestTimeSlot_OnGrid(t *testing.T) {
	tests := []struct {
		tod      string
		width    int
		expected bool
	}{
		{"08:00", 30, true},
		{"08:30", 30, true},
		{"08:15", 30, false},
		{"08:15", 15, true},
		{"08:00", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.tod, func(t *testing.T) {
			s := TimeSlot{Date: "2024-06-01", Time: tt.tod}
			if result := s.OnGrid(tt.width); result != tt.expected {
				t.Errorf("OnGrid(%d) = %v, expected %v", tt.width, result, tt.expected)
			}
		})
	}
}

func TestSlotHours(t *testing.T) {
	if h := SlotHours(30); h != 0.5 {
		t.Errorf("SlotHours(30) = %v, expected 0.5", h)
	}
	if h := SlotHours(60); h != 1 {
		t.Errorf("SlotHours(60) = %v, expected 1", h)
	}
}

func TestCategory_StringRoundTrip(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
	}{
		{"overall", Overall()},
		{"role:nurse", Category{Dimension: DimensionRole, Value: "nurse"}},
		{"employment:part_time", Category{Dimension: DimensionEmployment, Value: "part_time"}},
		{"role:", Category{Dimension: DimensionRole, Value: UnassignedValue}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := ParseCategory(tt.input)
			if err != nil {
				t.Fatalf("ParseCategory() error = %v", err)
			}
			if c != tt.expected {
				t.Errorf("ParseCategory() = %v, expected %v", c, tt.expected)
			}
			back, err := ParseCategory(c.String())
			if err != nil || back != c {
				t.Errorf("String() 无法再次解析: %q", c.String())
			}
		})
	}

	if _, err := ParseCategory("shift:night"); err == nil {
		t.Error("未知维度应返回错误")
	}
}

func TestAttendanceRecord_IsWorking(t *testing.T) {
	tests := []struct {
		name     string
		record   AttendanceRecord
		expected bool
	}{
		{"出勤", AttendanceRecord{Worked: true}, true},
		{"未出勤", AttendanceRecord{Worked: false}, false},
		{"休假标记", AttendanceRecord{Worked: true, NonWorkingType: NonWorkingLeave}, false},
		{"节假日", AttendanceRecord{Worked: false, NonWorkingType: NonWorkingHoliday}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.record.IsWorking(); result != tt.expected {
				t.Errorf("IsWorking() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestAttendanceRecord_CategoryFor(t *testing.T) {
	r := AttendanceRecord{Role: "nurse", Employment: ""}

	if c := r.CategoryFor(DimensionRole); c.String() != "role:nurse" {
		t.Errorf("CategoryFor(role) = %s", c)
	}
	if c := r.CategoryFor(DimensionEmployment); c.Value != UnassignedValue {
		t.Errorf("空雇佣形态应归入 %s, got %s", UnassignedValue, c.Value)
	}
	if h := r.Headcount(); h != 1 {
		t.Errorf("未填 count 时人数应为 1, got %v", h)
	}
}

func TestAttendanceRecord_HeadcountFromJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected float64
	}{
		{"省略", `{"date":"2024-06-03","time":"08:00","worked":true}`, 1},
		{"显式0", `{"date":"2024-06-03","time":"08:00","worked":true,"count":0}`, 0},
		{"多人", `{"date":"2024-06-03","time":"08:00","worked":true,"count":2.5}`, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r AttendanceRecord
			if err := json.Unmarshal([]byte(tt.body), &r); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if h := r.Headcount(); h != tt.expected {
				t.Errorf("Headcount() = %v, expected %v", h, tt.expected)
			}
		})
	}
}
