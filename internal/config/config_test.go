package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paiban/staffgap/pkg/allocation"
	"github.com/paiban/staffgap/pkg/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.Name != "staffgap" {
		t.Errorf("App.Name = %s, expected staffgap", cfg.App.Name)
	}
	if cfg.Database.Enabled {
		t.Error("数据库默认应关闭")
	}
	if cfg.Database.ConnectRetries != 3 || cfg.Database.SlowQueryThreshold != 100*time.Millisecond {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Analysis.SlotMinutes != 30 || cfg.Analysis.Workers != 4 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Planning.StdWorkHours != 160 || cfg.Planning.HybridSplit != 0.5 {
		t.Errorf("Planning = %+v", cfg.Planning)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ANALYSIS_SLOT_MINUTES", "15")
	t.Setenv("ANALYSIS_EXCESS_POLICY", "suppress_below_need")
	t.Setenv("PLANNING_WAGE_TEMP", "2500")
	t.Setenv("API_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Analysis.SlotMinutes != 15 {
		t.Errorf("SlotMinutes = %d, expected 15", cfg.Analysis.SlotMinutes)
	}
	if cfg.Planning.WageTemp != 2500 {
		t.Errorf("WageTemp = %v, expected 2500", cfg.Planning.WageTemp)
	}
	if len(cfg.API.CORS.Origins) != 2 || cfg.API.CORS.Origins[1] != "https://b.example" {
		t.Errorf("Origins = %v", cfg.API.CORS.Origins)
	}
	if cfg.CostRates().WageTemp != 2500 {
		t.Error("CostRates() 应使用配置的派遣时薪")
	}
}

func TestLoad_InvalidAnalysisSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"未知过剩策略", "ANALYSIS_EXCESS_POLICY", "ignore"},
		{"时间槽不能整除一天", "ANALYSIS_SLOT_MINUTES", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s 应返回错误", tt.key, tt.value)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	data := []byte(`
default: proportional
categories:
  role:
    nurse: direct
  employment:
    part_time: PROPORTIONAL
`)

	cfg, err := ParseStrategy(data)
	if err != nil {
		t.Fatalf("ParseStrategy() error = %v", err)
	}
	if cfg.Default != allocation.Proportional {
		t.Errorf("Default = %s", cfg.Default)
	}
	if s := cfg.Resolve(model.NewCategory(model.DimensionRole, "nurse")); s != allocation.Direct {
		t.Errorf("role:nurse = %s, expected DIRECT", s)
	}
	if s := cfg.Resolve(model.NewCategory(model.DimensionRole, "care")); s != allocation.Proportional {
		t.Errorf("role:care = %s, expected PROPORTIONAL", s)
	}
}

func TestParseStrategy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"未知策略", "categories:\n  role:\n    nurse: sometimes\n"},
		{"未知维度", "categories:\n  shift:\n    night: direct\n"},
		{"非法YAML", "categories: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStrategy([]byte(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestAnalyzerConfig_StrategyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	if err := os.WriteFile(path, []byte("categories:\n  role:\n    doctor: direct\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANALYSIS_STRATEGY_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	ac, err := cfg.AnalyzerConfig()
	if err != nil {
		t.Fatalf("AnalyzerConfig() error = %v", err)
	}
	if s := ac.Strategy.Resolve(model.NewCategory(model.DimensionRole, "doctor")); s != allocation.Direct {
		t.Errorf("role:doctor = %s, expected DIRECT", s)
	}
	if ac.Hire.SafetyFactor != 1.10 {
		t.Errorf("Hire.SafetyFactor = %v", ac.Hire.SafetyFactor)
	}

	cfg.Analysis.StrategyFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.AnalyzerConfig(); err == nil {
		t.Error("策略文件不存在时应返回错误")
	}
}
