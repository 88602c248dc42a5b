// StaffGap 缺员/过剩分析服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/staffgap/internal/config"
	"github.com/paiban/staffgap/internal/database"
	"github.com/paiban/staffgap/internal/handler"
	"github.com/paiban/staffgap/internal/metrics"
	"github.com/paiban/staffgap/internal/middleware"
	"github.com/paiban/staffgap/internal/repository"
	"github.com/paiban/staffgap/pkg/analysis"
	"github.com/paiban/staffgap/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	})

	fmt.Printf("StaffGap 缺员分析服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	analyzerCfg, err := cfg.AnalyzerConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("分析器配置无效")
	}
	analyzer, err := analysis.New(analyzerCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建分析器失败")
	}
	analyzer.WithAggregateHook(func(agg analysis.AggregateReport) {
		logger.Debug().
			Str("run_id", agg.RunID).
			Float64("lack_hours", agg.Summary.LackHours).
			Float64("excess_hours", agg.Summary.ExcessHours).
			Int("days", len(agg.Daily)).
			Msg("全组织结果已产出")
	})

	// 运行记录存储（可选）
	var runs repository.RunRepositoryInterface
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("连接数据库失败")
		}
		defer db.Close()

		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}
		runs = repository.NewRunRepository(db).WithTransactor(db)
	}

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
			metrics.SetDBStats(db.Stats())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status, "service": cfg.App.Name})
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// ========================================
	// API v1 端点
	// ========================================

	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		endpoints := map[string]interface{}{
			"analysis": "POST /api/v1/analysis[?format=json|csv|xlsx&table=shortage|excess|allocation]",
			"planning": map[string]string{
				"hire": "POST /api/v1/planning/hire",
				"cost": "POST /api/v1/planning/cost",
			},
		}
		if runs != nil {
			endpoints["runs"] = map[string]string{
				"list":   "GET /api/v1/runs",
				"get":    "GET /api/v1/runs/{id}",
				"delete": "DELETE /api/v1/runs/{id}",
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":   "StaffGap 缺员/过剩分析 API v1",
			"endpoints": endpoints,
		})
	})

	handler.NewAnalysisHandler(analyzer, runs).WithTimeout(cfg.API.Timeout).Register(mux)
	handler.NewPlanningHandler(cfg.HireParams(), cfg.CostRates()).Register(mux)

	// ========================================
	// 监控端点
	// ========================================

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	// 执行顺序：recovery -> requestID -> rateLimit -> cors -> securityHeaders -> bodyLimit -> logging -> handler
	mws := []middleware.Middleware{
		middleware.Recovery,
		middleware.RequestID,
		middleware.RateLimit(middleware.NewRateLimiter(float64(cfg.API.RateLimit))),
	}
	if cfg.API.CORS.Enabled {
		mws = append(mws, middleware.CORS(cfg.API.CORS.Origins))
	}
	mws = append(mws,
		middleware.SecurityHeaders,
		middleware.MaxBodySize(cfg.API.MaxBodySize),
		middleware.Logging,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", runs != nil).
			Str("api_docs", fmt.Sprintf("http://localhost:%d/api/v1/", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}
