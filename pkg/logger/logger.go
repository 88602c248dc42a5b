// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu          sync.Mutex
	initialized bool // 已有可用的日志器（显式或默认）
	explicit    bool // 已通过 Init 显式配置
	logger      zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

type ctxKey string

// RequestIDKey 请求ID在 context 中的键
const RequestIDKey ctxKey = "request_id"

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器；只有第一次显式调用生效，可覆盖 Get 懒加载的默认配置
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if explicit {
		return
	}
	logger = build(cfg)
	initialized, explicit = true, true
}

func build(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.FilePath != "" {
			f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err == nil {
				output = f
			} else {
				output = os.Stdout
			}
		} else {
			output = os.Stdout
		}
	default:
		output = os.Stdout
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器，未初始化时使用默认配置
//
// 零值 zerolog.Logger 没有输出目标，不能用级别判断是否已初始化。
func Get() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		logger = build(DefaultConfig())
		initialized = true
	}
	return &logger
}

// ContextWithRequestID 将请求ID写入上下文
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID 从上下文读取请求ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID := RequestID(ctx); reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// AnalysisLogger 分析引擎专用日志器
type AnalysisLogger struct {
	base *zerolog.Logger
}

// NewAnalysisLogger 创建分析引擎日志器
func NewAnalysisLogger() *AnalysisLogger {
	l := Get().With().Str("component", "analysis").Logger()
	return &AnalysisLogger{base: &l}
}

// NewAnalysisLoggerWith 使用指定日志器（测试时可传入 zerolog.Nop）
func NewAnalysisLoggerWith(l zerolog.Logger) *AnalysisLogger {
	l = l.With().Str("component", "analysis").Logger()
	return &AnalysisLogger{base: &l}
}

// Base 返回底层日志器
func (l *AnalysisLogger) Base() *zerolog.Logger {
	return l.base
}

// StartRun 记录分析开始
func (l *AnalysisLogger) StartRun(runID string, records, dimensions int) {
	l.base.Info().
		Str("run_id", runID).
		Int("records", records).
		Int("dimensions", dimensions).
		Msg("开始缺员/过剩分析")
}

// IndexBuilt 记录工作时间槽索引构建结果
func (l *AnalysisLogger) IndexBuilt(slots, droppedRows int) {
	l.base.Debug().
		Int("slots", slots).
		Int("dropped_non_working_rows", droppedRows).
		Msg("工作时间槽索引已构建")
}

// MissingCategory 记录配置分类缺失
func (l *AnalysisLogger) MissingCategory(category string) {
	l.base.Warn().
		Str("category", category).
		Msg("配置的分类在数据中不存在，分配记为0")
}

// Unattributed 记录无法按比例归属的单位数
func (l *AnalysisLogger) Unattributed(dimension string, lack, excess int) {
	l.base.Warn().
		Str("dimension", dimension).
		Int("lack_units", lack).
		Int("excess_units", excess).
		Msg("分类权重为0，部分缺员/过剩无法按比例归属")
}

// RunComplete 记录分析完成
func (l *AnalysisLogger) RunComplete(runID string, duration time.Duration, lackHours, excessHours float64) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Float64("lack_hours", lackHours).
		Float64("excess_hours", excessHours).
		Msg("分析完成")
}

// RunFailed 记录分析失败
func (l *AnalysisLogger) RunFailed(runID string, err error) {
	l.base.Error().
		Str("run_id", runID).
		Err(err).
		Msg("分析失败")
}
