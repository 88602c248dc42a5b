// Package analysis 串联矩阵构建、缺员/过剩计算、分类分配与招聘/成本测算
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/staffgap/pkg/allocation"
	apperrors "github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/logger"
	"github.com/paiban/staffgap/pkg/matrix"
	"github.com/paiban/staffgap/pkg/model"
	"github.com/paiban/staffgap/pkg/planning"
	"github.com/paiban/staffgap/pkg/stats"
)

// Config 分析器配置
type Config struct {
	SlotMinutes  int                       `json:"slot_minutes"`
	ExcessPolicy stats.ExcessPolicy        `json:"excess_policy"`
	Workers      int                       `json:"workers"`
	Strategy     allocation.StrategyConfig `json:"strategy"`
	Hire         planning.HireParams       `json:"hire"`
	Rates        planning.CostRates        `json:"rates"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		SlotMinutes:  model.DefaultSlotMinutes,
		ExcessPolicy: stats.ExcessReport,
		Workers:      4,
		Strategy:     allocation.DefaultStrategyConfig(),
		Hire:         planning.DefaultHireParams(),
		Rates:        planning.DefaultCostRates(),
	}
}

// Options 单次运行的覆盖项，未填字段沿用分析器配置
type Options struct {
	SlotMinutes  int                        `json:"slot_minutes,omitempty"`
	ExcessPolicy string                     `json:"excess_policy,omitempty"`
	Strategy     *allocation.StrategyConfig `json:"strategy,omitempty"`
}

// Request 分析请求
type Request struct {
	Records    []model.AttendanceRecord `json:"records"`
	Need       []model.SeriesPoint      `json:"need"`
	Upper      []model.SeriesPoint      `json:"upper"`
	Dimensions []model.Dimension        `json:"dimensions,omitempty"`
	Options    *Options                 `json:"options,omitempty"`
}

// AggregateReport 全组织结果，在分类分配开始之前产出
type AggregateReport struct {
	RunID   string         `json:"run_id"`
	Summary stats.Summary  `json:"summary"`
	Daily   []stats.DayGap `json:"daily"`
	Gap     *stats.Gap     `json:"-"`
}

// AggregateHook 全组织结果回调
type AggregateHook func(AggregateReport)

// CategoryReport 某一维度的分类结果
type CategoryReport struct {
	Dimension  model.Dimension    `json:"dimension"`
	Summaries  []stats.Summary    `json:"summaries"` // 分类矩阵独立计算的汇总
	Allocation *allocation.Result `json:"allocation"`
	Gaps       []*stats.Gap       `json:"-"`
}

// Report 分析结果
type Report struct {
	RunID        string                `json:"run_id"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     time.Duration         `json:"duration"`
	SlotMinutes  int                   `json:"slot_minutes"`
	ExcessPolicy stats.ExcessPolicy    `json:"excess_policy"`
	Slots        int                   `json:"slots"`
	DroppedRows  int                   `json:"dropped_rows"`
	Aggregate    AggregateReport       `json:"aggregate"`
	Categories   []CategoryReport      `json:"categories"`
	HirePlan     *planning.HirePlan    `json:"hire_plan"`
	Cost         *planning.Evaluation  `json:"cost"`
	Diagnostics  []*apperrors.AppError `json:"diagnostics,omitempty"`
	Tables       Tables                `json:"tables"`
}

// Analyzer 分析器
type Analyzer struct {
	cfg       Config
	log       *logger.AnalysisLogger
	hook      AggregateHook
	projector *planning.HirePlanProjector
	evaluator *planning.CostBenefitEvaluator
}

// New 创建分析器
func New(cfg Config) (*Analyzer, error) {
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = model.DefaultSlotMinutes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	policy, err := stats.ParseExcessPolicy(string(cfg.ExcessPolicy))
	if err != nil {
		return nil, err
	}
	cfg.ExcessPolicy = policy
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}
	cfg.Strategy = cfg.Strategy.Clone()
	if cfg.Hire == (planning.HireParams{}) {
		cfg.Hire = planning.DefaultHireParams()
	}
	if cfg.Rates == (planning.CostRates{}) {
		cfg.Rates = planning.DefaultCostRates()
	}
	if err := cfg.Rates.Validate(); err != nil {
		return nil, err
	}

	return &Analyzer{
		cfg:       cfg,
		projector: planning.NewHirePlanProjector(cfg.Hire),
		evaluator: planning.NewCostBenefitEvaluator(cfg.Rates),
	}, nil
}

// WithLogger 指定日志器；未指定时每次运行从 context 派生
func (a *Analyzer) WithLogger(l *logger.AnalysisLogger) *Analyzer {
	a.log = l
	return a
}

// WithAggregateHook 注册全组织结果回调，回调在分类分配之前同步执行
func (a *Analyzer) WithAggregateHook(h AggregateHook) *Analyzer {
	a.hook = h
	return a
}

// Config 返回配置
func (a *Analyzer) Config() Config {
	cfg := a.cfg
	cfg.Strategy = a.cfg.Strategy.Clone()
	return cfg
}

// runSettings 运行开始时确定的配置副本
type runSettings struct {
	slotMinutes int
	policy      stats.ExcessPolicy
	strategy    allocation.StrategyConfig
}

func (a *Analyzer) settings(opts *Options) (runSettings, error) {
	s := runSettings{
		slotMinutes: a.cfg.SlotMinutes,
		policy:      a.cfg.ExcessPolicy,
		strategy:    a.cfg.Strategy.Clone(),
	}
	if opts == nil {
		return s, nil
	}
	if opts.SlotMinutes > 0 {
		s.slotMinutes = opts.SlotMinutes
	}
	if opts.ExcessPolicy != "" {
		p, err := stats.ParseExcessPolicy(opts.ExcessPolicy)
		if err != nil {
			return s, err
		}
		s.policy = p
	}
	if opts.Strategy != nil {
		if err := opts.Strategy.Validate(); err != nil {
			return s, err
		}
		s.strategy = opts.Strategy.Clone()
	}
	return s, nil
}

// Run 执行一次分析
//
// 任何致命错误（索引不一致、负值）都不产出部分结果。
func (a *Analyzer) Run(ctx context.Context, req Request) (*Report, error) {
	log := a.log
	if log == nil {
		log = logger.NewAnalysisLoggerWith(*logger.WithContext(ctx))
	}

	runID := uuid.New().String()
	started := time.Now()

	report, err := a.run(runID, log, req)
	if err != nil {
		log.RunFailed(runID, err)
		return nil, err
	}

	report.StartedAt = started
	report.Duration = time.Since(started)
	log.RunComplete(runID, report.Duration, report.Aggregate.Summary.LackHours, report.Aggregate.Summary.ExcessHours)
	return report, nil
}

func (a *Analyzer) run(runID string, log *logger.AnalysisLogger, req Request) (*Report, error) {
	settings, err := a.settings(req.Options)
	if err != nil {
		return nil, err
	}

	builder := matrix.NewBuilder(settings.slotMinutes).WithLogger(log)
	snap, err := builder.Build(matrix.Input{
		Records:    req.Records,
		Need:       req.Need,
		Upper:      req.Upper,
		Dimensions: req.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	log.StartRun(runID, len(req.Records), len(snap.Dimensions()))

	slotHours := snap.Index.SlotHours()
	calc := stats.NewCalculator(settings.policy)

	// 全组织结果由未切分的矩阵独立计算
	overall, err := calc.Calculate(snap.Overall)
	if err != nil {
		return nil, err
	}
	aggregate := AggregateReport{
		RunID:   runID,
		Summary: stats.Summarize(overall, slotHours),
		Daily:   stats.DailyTotals(overall, slotHours),
		Gap:     overall,
	}
	if a.hook != nil {
		a.hook(aggregate)
	}

	report := &Report{
		RunID:        runID,
		SlotMinutes:  settings.slotMinutes,
		ExcessPolicy: settings.policy,
		Slots:        snap.Index.Len(),
		DroppedRows:  snap.DroppedRows,
		Aggregate:    aggregate,
	}

	engine := allocation.NewEngine(settings.strategy, calc, a.cfg.Workers).WithLogger(log)
	for _, d := range snap.Dimensions() {
		sets := snap.Sets(d)
		cr := CategoryReport{Dimension: d}
		for _, set := range sets {
			gap, err := calc.Calculate(set)
			if err != nil {
				return nil, err
			}
			cr.Gaps = append(cr.Gaps, gap)
			cr.Summaries = append(cr.Summaries, stats.Summarize(gap, slotHours))
		}

		res, err := engine.Allocate(d, overall, sets, slotHours)
		if err != nil {
			return nil, err
		}
		cr.Allocation = res
		report.Diagnostics = append(report.Diagnostics, res.Diagnostics...)
		report.Categories = append(report.Categories, cr)
	}

	hire := a.projector.Defaults()
	hire.ShortfallHours = aggregate.Summary.LackHours
	report.HirePlan, err = a.projector.Project(hire)
	if err != nil {
		return nil, err
	}
	report.Cost, err = a.evaluator.Evaluate(planning.CostInput{
		ShortfallHours: aggregate.Summary.LackHours,
		RequiredHire:   report.HirePlan.RequiredHire,
	})
	if err != nil {
		return nil, err
	}

	report.Tables = BuildTables(report)
	return report, nil
}
