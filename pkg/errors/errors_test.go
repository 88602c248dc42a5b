package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestCodeClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   Code
		status int
		fatal  bool
	}{
		{"索引不一致", InputAlignment("need", "长度 3 != 4"), CodeInputAlignment, http.StatusUnprocessableEntity, true},
		{"负值", NegativeValue("upper", "role:nurse", "2024-06-01 08:00", -1), CodeNegativeValue, http.StatusUnprocessableEntity, true},
		{"分类缺失", MissingCategory("role:doctor"), CodeMissingCategory, http.StatusOK, false},
		{"无法归属", Unattributed("employment", 7, 0), CodeUnattributed, http.StatusOK, false},
		{"输入无效", InvalidInput("safety_factor", "必须 >= 1"), CodeInvalidInput, http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, expected %s", tt.err.Code, tt.code)
			}
			if GetHTTPStatus(tt.err) != tt.status {
				t.Errorf("HTTPStatus = %d, expected %d", GetHTTPStatus(tt.err), tt.status)
			}
			if tt.err.Fatal() != tt.fatal {
				t.Errorf("Fatal() = %v, expected %v", tt.err.Fatal(), tt.fatal)
			}
		})
	}
}

func TestWrappedErrorsKeepCode(t *testing.T) {
	base := NegativeValue("need", "overall", "2024-06-01 09:00", -2)
	wrapped := fmt.Errorf("构建矩阵失败: %w", base)

	if !Is(wrapped, CodeNegativeValue) {
		t.Error("包装后应仍能识别错误码")
	}
	if GetCode(fmt.Errorf("plain")) != CodeUnknown {
		t.Error("普通错误应返回 UNKNOWN")
	}
	if base.Fields["matrix"] != "need" || base.Fields["category"] != "overall" {
		t.Errorf("错误字段缺失: %v", base.Fields)
	}
}

func TestValidationErrors(t *testing.T) {
	ve := &ValidationErrors{}
	if ve.HasErrors() {
		t.Error("新建集合不应有错误")
	}

	ve.Add("std_work_hours", "必须 > 0")
	ve.Add("target_coverage", "必须在 (0,1] 区间")

	appErr := ve.ToAppError()
	if appErr.Code != CodeValidationFail {
		t.Errorf("Code = %s", appErr.Code)
	}
	if len(appErr.Fields) != 2 {
		t.Errorf("Expected 2 fields, got %d", len(appErr.Fields))
	}
}
