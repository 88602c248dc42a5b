// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paiban/staffgap/pkg/allocation"
	"github.com/paiban/staffgap/pkg/analysis"
	"github.com/paiban/staffgap/pkg/planning"
	"github.com/paiban/staffgap/pkg/stats"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Planning PlanningConfig `yaml:"planning"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	ConnectTimeout     time.Duration `yaml:"connect_timeout"`      // 单次连接测试超时
	ConnectRetries     int           `yaml:"connect_retries"`      // 启动时连接测试的重试次数
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"` // 超过该耗时记录慢查询
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit   int           `yaml:"rate_limit"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxBodySize int64         `yaml:"max_body_size"`
	CORS        CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// AnalysisConfig 分析引擎配置
type AnalysisConfig struct {
	SlotMinutes  int    `yaml:"slot_minutes"`
	ExcessPolicy string `yaml:"excess_policy"` // report/suppress_below_need
	Workers      int    `yaml:"workers"`
	StrategyFile string `yaml:"strategy_file"` // 分类策略 YAML，为空时全部按比例分配
}

// PlanningConfig 招聘与成本测算配置
type PlanningConfig struct {
	StdWorkHours   float64 `yaml:"std_work_hours"`
	SafetyFactor   float64 `yaml:"safety_factor"`
	TargetCoverage float64 `yaml:"target_coverage"`
	WageDirect     float64 `yaml:"wage_direct"`
	WageTemp       float64 `yaml:"wage_temp"`
	PenaltyPerHour float64 `yaml:"penalty_per_hour"`
	HiringCost     float64 `yaml:"hiring_cost"`
	HybridSplit    float64 `yaml:"hybrid_split"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	PushURL string `yaml:"push_url"` // Pushgateway 地址，批处理任务使用
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	hire := planning.DefaultHireParams()
	rates := planning.DefaultCostRates()

	cfg := &Config{
		App: AppConfig{
			Name:      getEnv("APP_NAME", "staffgap"),
			Env:       getEnv("APP_ENV", "development"),
			Port:      getEnvInt("APP_PORT", 7012),
			LogLevel:  getEnv("APP_LOG_LEVEL", "info"),
			LogFormat: getEnv("APP_LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "staffgap"),
			User:            getEnv("DB_USER", "staffgap"),
			Password:        getEnv("DB_PASSWORD", "staffgap"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

			ConnectTimeout:     getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
			ConnectRetries:     getEnvInt("DB_CONNECT_RETRIES", 3),
			SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		},
		API: APIConfig{
			RateLimit:   getEnvInt("API_RATE_LIMIT", 100),
			Timeout:     getEnvDuration("API_TIMEOUT", 30*time.Second),
			MaxBodySize: int64(getEnvInt("API_MAX_BODY_SIZE", 32<<20)),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: getEnvList("API_CORS_ORIGINS", []string{"*"}),
			},
		},
		Analysis: AnalysisConfig{
			SlotMinutes:  getEnvInt("ANALYSIS_SLOT_MINUTES", 30),
			ExcessPolicy: getEnv("ANALYSIS_EXCESS_POLICY", string(stats.ExcessReport)),
			Workers:      getEnvInt("ANALYSIS_WORKERS", 4),
			StrategyFile: getEnv("ANALYSIS_STRATEGY_FILE", ""),
		},
		Planning: PlanningConfig{
			StdWorkHours:   getEnvFloat("PLANNING_STD_WORK_HOURS", hire.StdWorkHours),
			SafetyFactor:   getEnvFloat("PLANNING_SAFETY_FACTOR", hire.SafetyFactor),
			TargetCoverage: getEnvFloat("PLANNING_TARGET_COVERAGE", hire.TargetCoverage),
			WageDirect:     getEnvFloat("PLANNING_WAGE_DIRECT", rates.WageDirect),
			WageTemp:       getEnvFloat("PLANNING_WAGE_TEMP", rates.WageTemp),
			PenaltyPerHour: getEnvFloat("PLANNING_PENALTY_PER_HOUR", rates.PenaltyPerHour),
			HiringCost:     getEnvFloat("PLANNING_HIRING_COST", rates.HiringCost),
			HybridSplit:    getEnvFloat("PLANNING_HYBRID_SPLIT", rates.HybridSplit),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
			PushURL: getEnv("METRICS_PUSH_URL", ""),
		},
	}

	if _, err := stats.ParseExcessPolicy(cfg.Analysis.ExcessPolicy); err != nil {
		return nil, fmt.Errorf("ANALYSIS_EXCESS_POLICY: %w", err)
	}
	if cfg.Analysis.SlotMinutes <= 0 || 24*60%cfg.Analysis.SlotMinutes != 0 {
		return nil, fmt.Errorf("ANALYSIS_SLOT_MINUTES: %d 不能整除一天", cfg.Analysis.SlotMinutes)
	}

	return cfg, nil
}

// LoadStrategyFile 读取分类策略文件
//
//	default: proportional
//	categories:
//	  role:
//	    nurse: direct
func LoadStrategyFile(path string) (allocation.StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return allocation.StrategyConfig{}, fmt.Errorf("读取策略文件失败: %w", err)
	}
	return ParseStrategy(data)
}

// ParseStrategy 解析分类策略 YAML
func ParseStrategy(data []byte) (allocation.StrategyConfig, error) {
	cfg := allocation.DefaultStrategyConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return allocation.StrategyConfig{}, fmt.Errorf("解析策略文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return allocation.StrategyConfig{}, err
	}
	return cfg, nil
}

// HireParams 招聘测算默认参数
func (c *Config) HireParams() planning.HireParams {
	return planning.HireParams{
		StdWorkHours:   c.Planning.StdWorkHours,
		SafetyFactor:   c.Planning.SafetyFactor,
		TargetCoverage: c.Planning.TargetCoverage,
	}
}

// CostRates 成本测算默认单价
func (c *Config) CostRates() planning.CostRates {
	return planning.CostRates{
		WageDirect:     c.Planning.WageDirect,
		WageTemp:       c.Planning.WageTemp,
		PenaltyPerHour: c.Planning.PenaltyPerHour,
		HiringCost:     c.Planning.HiringCost,
		StdWorkHours:   c.Planning.StdWorkHours,
		HybridSplit:    c.Planning.HybridSplit,
	}
}

// AnalyzerConfig 组装分析器配置，配置了策略文件时读取之
func (c *Config) AnalyzerConfig() (analysis.Config, error) {
	strategy := allocation.DefaultStrategyConfig()
	if c.Analysis.StrategyFile != "" {
		s, err := LoadStrategyFile(c.Analysis.StrategyFile)
		if err != nil {
			return analysis.Config{}, err
		}
		strategy = s
	}
	return analysis.Config{
		SlotMinutes:  c.Analysis.SlotMinutes,
		ExcessPolicy: stats.ExcessPolicy(c.Analysis.ExcessPolicy),
		Workers:      c.Analysis.Workers,
		Strategy:     strategy,
		Hire:         c.HireParams(),
		Rates:        c.CostRates(),
	}, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
