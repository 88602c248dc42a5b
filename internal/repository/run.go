package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/staffgap/pkg/analysis"
	apperrors "github.com/paiban/staffgap/pkg/errors"
)

// uniqueViolation PostgreSQL 唯一约束冲突
const uniqueViolation = "23505"

// AnalysisRun 分析运行记录（只保存结果摘要，不作为后续计算的输入）
type AnalysisRun struct {
	ID           uuid.UUID      `json:"id"`
	StartDate    string         `json:"start_date"`
	EndDate      string         `json:"end_date"`
	SlotMinutes  int            `json:"slot_minutes"`
	ExcessPolicy string         `json:"excess_policy"`
	Dimensions   []string       `json:"dimensions"`
	Slots        int            `json:"slots"`
	DroppedRows  int            `json:"dropped_rows"`
	LackHours    float64        `json:"lack_hours"`
	ExcessHours  float64        `json:"excess_hours"`
	RequiredHire int            `json:"required_hire"`
	Cheapest     string         `json:"cheapest"`
	Diagnostics  []string       `json:"diagnostics"`
	Summary      map[string]any `json:"summary,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// RunAllocation 分类分配记录
type RunAllocation struct {
	ID          uuid.UUID `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	Category    string    `json:"category"`
	Strategy    string    `json:"strategy"`
	LackHours   float64   `json:"lack_hours"`
	ExcessHours float64   `json:"excess_hours"`
	Missing     bool      `json:"missing"`
}

// RunRepositoryInterface 分析运行仓储接口
type RunRepositoryInterface interface {
	Create(ctx context.Context, run *AnalysisRun, allocations []*RunAllocation) error
	GetByID(ctx context.Context, id uuid.UUID) (*AnalysisRun, error)
	GetAllocations(ctx context.Context, runID uuid.UUID) ([]*RunAllocation, error)
	List(ctx context.Context, filter ListFilter) ([]*AnalysisRun, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Transactor 事务执行器
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// RunRepository 分析运行仓储实现
type RunRepository struct {
	db DB
	tx Transactor
}

// NewRunRepository 创建分析运行仓储
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// WithTransactor 指定事务执行器，Create 将在同一事务中写入运行与分配
func (r *RunRepository) WithTransactor(t Transactor) *RunRepository {
	r.tx = t
	return r
}

// FromReport 由分析结果生成运行记录与分配记录
func FromReport(r *analysis.Report) (*AnalysisRun, []*RunAllocation, error) {
	id, err := uuid.Parse(r.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("无效的运行ID %q: %w", r.RunID, err)
	}

	run := &AnalysisRun{
		ID:           id,
		SlotMinutes:  r.SlotMinutes,
		ExcessPolicy: string(r.ExcessPolicy),
		Slots:        r.Slots,
		DroppedRows:  r.DroppedRows,
		LackHours:    r.Aggregate.Summary.LackHours,
		ExcessHours:  r.Aggregate.Summary.ExcessHours,
		DurationMs:   r.Duration.Milliseconds(),
		Dimensions:   []string{},
		Diagnostics:  []string{},
		CreatedAt:    r.StartedAt,
	}
	if days := r.Aggregate.Daily; len(days) > 0 {
		run.StartDate = days[0].Date
		run.EndDate = days[len(days)-1].Date
	}
	if r.HirePlan != nil {
		run.RequiredHire = r.HirePlan.RequiredHire
	}
	if r.Cost != nil {
		run.Cheapest = r.Cost.Cheapest
	}
	for _, cr := range r.Categories {
		run.Dimensions = append(run.Dimensions, string(cr.Dimension))
	}
	for _, d := range r.Diagnostics {
		run.Diagnostics = append(run.Diagnostics, fmt.Sprintf("%s: %s", d.Code, d.Message))
	}

	summary, err := json.Marshal(r.Aggregate.Summary)
	if err != nil {
		return nil, nil, fmt.Errorf("序列化汇总失败: %w", err)
	}
	if err := json.Unmarshal(summary, &run.Summary); err != nil {
		return nil, nil, fmt.Errorf("序列化汇总失败: %w", err)
	}

	allocations := make([]*RunAllocation, 0, len(r.Tables.Allocation))
	for _, row := range r.Tables.Allocation {
		allocations = append(allocations, &RunAllocation{
			ID:          uuid.New(),
			RunID:       id,
			Category:    row.Category,
			Strategy:    row.StrategyTag,
			LackHours:   row.AllocatedShortfallHours,
			ExcessHours: row.AllocatedExcessHours,
			Missing:     row.Missing,
		})
	}
	return run, allocations, nil
}

// Create 保存运行记录及其分配
func (r *RunRepository) Create(ctx context.Context, run *AnalysisRun, allocations []*RunAllocation) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if r.tx == nil {
		return r.create(ctx, run, allocations)
	}
	return r.tx.Transaction(ctx, func(tx *sql.Tx) error {
		return NewRunRepository(tx).create(ctx, run, allocations)
	})
}

func (r *RunRepository) create(ctx context.Context, run *AnalysisRun, allocations []*RunAllocation) error {

	summaryJSON, _ := json.Marshal(run.Summary)

	query := `
		INSERT INTO analysis_runs (
			id, start_date, end_date, slot_minutes, excess_policy, dimensions,
			slots, dropped_rows, lack_hours, excess_hours, required_hire, cheapest,
			diagnostics, summary, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.StartDate, run.EndDate, run.SlotMinutes, run.ExcessPolicy, pq.Array(run.Dimensions),
		run.Slots, run.DroppedRows, run.LackHours, run.ExcessHours, run.RequiredHire, run.Cheapest,
		pq.Array(run.Diagnostics), summaryJSON, run.DurationMs, run.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.Wrap(err, apperrors.CodeValidationFail, fmt.Sprintf("运行记录 %s 已存在", run.ID))
		}
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "创建运行记录失败")
	}

	for _, a := range allocations {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.RunID = run.ID
		if err := r.createAllocation(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *RunRepository) createAllocation(ctx context.Context, a *RunAllocation) error {
	query := `
		INSERT INTO analysis_run_allocations (
			id, run_id, category, strategy, lack_hours, excess_hours, missing
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.RunID, a.Category, a.Strategy, a.LackHours, a.ExcessHours, a.Missing,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "创建分配记录失败")
	}
	return nil
}

const runColumns = `id, start_date, end_date, slot_minutes, excess_policy, dimensions,
			slots, dropped_rows, lack_hours, excess_hours, required_hire, cheapest,
			diagnostics, summary, duration_ms, created_at`

// GetByID 根据ID获取运行记录，不存在时返回 nil
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// GetAllocations 获取运行的分类分配（按分类排序）
func (r *RunRepository) GetAllocations(ctx context.Context, runID uuid.UUID) ([]*RunAllocation, error) {
	query := `
		SELECT id, run_id, category, strategy, lack_hours, excess_hours, missing
		FROM analysis_run_allocations
		WHERE run_id = $1
		ORDER BY category
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询分配记录失败")
	}
	defer rows.Close()

	var allocations []*RunAllocation
	for rows.Next() {
		a := &RunAllocation{}
		if err := rows.Scan(&a.ID, &a.RunID, &a.Category, &a.Strategy, &a.LackHours, &a.ExcessHours, &a.Missing); err != nil {
			return nil, fmt.Errorf("扫描分配记录失败: %w", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// List 列出运行记录
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*AnalysisRun, int, error) {
	where, args := buildRunFilter(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM analysis_runs " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "统计运行记录失败")
	}

	query, args := buildRunListQuery(filter, where, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询运行记录失败")
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// SaveReport 保存一次分析结果
func SaveReport(ctx context.Context, repo RunRepositoryInterface, r *analysis.Report) (*AnalysisRun, error) {
	run, allocations, err := FromReport(r)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, run, allocations); err != nil {
		return nil, err
	}
	return run, nil
}

// Delete 删除运行记录及其分配
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM analysis_run_allocations WHERE run_id = $1", id); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "删除分配记录失败")
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM analysis_runs WHERE id = $1", id); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "删除运行记录失败")
	}
	return nil
}

// buildRunFilter 构建 WHERE 子句
func buildRunFilter(filter ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Policy != "" {
		args = append(args, filter.Policy)
		conditions = append(conditions, fmt.Sprintf("excess_policy = $%d", len(args)))
	}
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("end_date <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// 允许排序的列
var runOrderColumns = map[string]bool{
	"created_at":   true,
	"start_date":   true,
	"lack_hours":   true,
	"excess_hours": true,
}

// buildRunListQuery 构建分页查询；排序列不在白名单时使用 created_at
func buildRunListQuery(filter ListFilter, where string, args []interface{}) (string, []interface{}) {
	orderBy := filter.OrderBy
	if !runOrderColumns[orderBy] {
		orderBy = "created_at"
	}
	orderDir := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		orderDir = "ASC"
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM analysis_runs %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		runColumns, where, orderBy, orderDir, len(args)+1, len(args)+2)
	return query, append(args, limit, offset)
}

// scanRun 扫描单行运行记录
func scanRun(row Scanner) (*AnalysisRun, error) {
	run := &AnalysisRun{}
	var summaryJSON []byte

	err := row.Scan(
		&run.ID, &run.StartDate, &run.EndDate, &run.SlotMinutes, &run.ExcessPolicy, pq.Array(&run.Dimensions),
		&run.Slots, &run.DroppedRows, &run.LackHours, &run.ExcessHours, &run.RequiredHire, &run.Cheapest,
		pq.Array(&run.Diagnostics), &summaryJSON, &run.DurationMs, &run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("扫描运行记录失败: %w", err)
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.Summary); err != nil {
			return nil, fmt.Errorf("解析运行汇总失败: %w", err)
		}
	}
	return run, nil
}
