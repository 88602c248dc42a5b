// Package database 提供运行记录库的连接、迁移和SQL计时
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/paiban/staffgap/internal/config"
	"github.com/paiban/staffgap/internal/metrics"
	"github.com/paiban/staffgap/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// migrationLockKey 迁移使用的事务级 advisory lock
const migrationLockKey int64 = 0x53544147

// maxLoggedQuery 慢查询日志中SQL的最大长度
const maxLoggedQuery = 200

// DB 运行记录库连接，SQL 耗时计入指标，超过阈值记录慢查询
type DB struct {
	*sql.DB
	slow time.Duration
}

// New 打开连接池并测试连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := ping(context.Background(), sqlDB, cfg.ConnectTimeout, cfg.ConnectRetries, time.Second); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Dur("slow_query_threshold", cfg.SlowQueryThreshold).
		Msg("数据库连接成功")

	return &DB{DB: sqlDB, slow: cfg.SlowQueryThreshold}, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// ping 测试连接，失败时按 backoff 线性退避重试 retries 次
func ping(ctx context.Context, p pinger, timeout time.Duration, retries int, backoff time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("数据库连接测试失败，重试")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err = p.PingContext(pctx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("数据库连接测试失败 (%d 次): %w", retries+1, err)
}

// Migrate 创建运行记录表（幂等），多实例同时启动时串行执行
func (db *DB) Migrate(ctx context.Context) error {
	start := time.Now()
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("执行迁移语句 %d 失败: %w", i, err)
			}
		}
		return nil
	})
	metrics.ObserveQuery("migrate", time.Since(start))
	if err != nil {
		return err
	}

	logger.Info().Int("statements", len(schema)).Dur("duration", time.Since(start)).Msg("数据库迁移完成")
	return nil
}

// Close 关闭连接池
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	logger.Info().Msg("关闭数据库连接")
	return db.DB.Close()
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 在事务中执行 fn，fn 返回错误或 panic 时回滚
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}
	return nil
}

// ExecContext 执行SQL语句
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer db.observe("exec", query, time.Now())
	return db.DB.ExecContext(ctx, query, args...)
}

// QueryContext 执行查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	defer db.observe("query", query, time.Now())
	return db.DB.QueryContext(ctx, query, args...)
}

// QueryRowContext 执行单行查询；错误在 Scan 时返回，这里只计时
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	defer db.observe("query_row", query, time.Now())
	return db.DB.QueryRowContext(ctx, query, args...)
}

func (db *DB) observe(op, query string, start time.Time) {
	d := time.Since(start)
	metrics.ObserveQuery(op, d)
	if !isSlow(d, db.slow) {
		return
	}
	logger.Warn().
		Str("op", op).
		Str("query", compactQuery(query)).
		Dur("duration", d).
		Msg("慢SQL查询")
}

// isSlow 阈值 <= 0 时不记录慢查询
func isSlow(d, threshold time.Duration) bool {
	return threshold > 0 && d > threshold
}

// compactQuery 合并多行SQL的空白并截断
func compactQuery(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if r := []rune(q); len(r) > maxLoggedQuery {
		return string(r[:maxLoggedQuery]) + "..."
	}
	return q
}
