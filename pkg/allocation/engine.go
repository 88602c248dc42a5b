package allocation

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/logger"
	"github.com/paiban/staffgap/pkg/matrix"
	"github.com/paiban/staffgap/pkg/model"
	"github.com/paiban/staffgap/pkg/stats"
)

// remainderTolerance 比较余数时的浮点容忍度
const remainderTolerance = 1e-9

// Allocation 单个分类的分配结果
type Allocation struct {
	Category    model.Category `json:"category"`
	Strategy    Strategy       `json:"strategy"`
	Lack        []int          `json:"lack"`   // 逐时间槽缺员
	Excess      []int          `json:"excess"` // 逐时间槽过剩
	LackTotal   int            `json:"lack_total"`
	ExcessTotal int            `json:"excess_total"`
	LackHours   float64        `json:"lack_hours"`
	ExcessHours float64        `json:"excess_hours"`
	Missing     bool           `json:"missing,omitempty"` // 配置了但数据中不存在
}

// Result 某一维度的分配结果
type Result struct {
	Dimension               model.Dimension       `json:"dimension"`
	Index                   *matrix.SlotIndex     `json:"-"`
	Allocations             []Allocation          `json:"allocations"`
	Unattributed            []int                 `json:"unattributed"`        // 分类需求合计为0而无法按比例拆分的缺员
	UnattributedExcess      []int                 `json:"unattributed_excess"` // 同上，过剩
	UnattributedHours       float64               `json:"unattributed_hours"`
	UnattributedExcessHours float64               `json:"unattributed_excess_hours"`
	Diagnostics             []*apperrors.AppError `json:"diagnostics,omitempty"`
}

// Allocation 按分类查找
func (r *Result) Allocation(c model.Category) (Allocation, bool) {
	for _, a := range r.Allocations {
		if a.Category == c {
			return a, true
		}
	}
	return Allocation{}, false
}

// ByStrategy 筛选某一策略的分配
func (r *Result) ByStrategy(s Strategy) []Allocation {
	var out []Allocation
	for _, a := range r.Allocations {
		if a.Strategy == s {
			out = append(out, a)
		}
	}
	return out
}

// Engine 分类分配引擎
type Engine struct {
	cfg  StrategyConfig
	calc *stats.Calculator
	pool *workerPool
	log  *logger.AnalysisLogger
}

// NewEngine 创建分配引擎。cfg 在创建时复制，之后的修改不影响本引擎
func NewEngine(cfg StrategyConfig, calc *stats.Calculator, workers int) *Engine {
	if calc == nil {
		calc = stats.NewCalculator(stats.ExcessReport)
	}
	return &Engine{
		cfg:  cfg.Clone(),
		calc: calc,
		pool: newWorkerPool(workers),
		log:  logger.NewAnalysisLogger(),
	}
}

// WithLogger 替换日志器
func (e *Engine) WithLogger(l *logger.AnalysisLogger) *Engine {
	e.log = l
	return e
}

// Config 返回策略配置副本
func (e *Engine) Config() StrategyConfig {
	return e.cfg.Clone()
}

// categoryTask 分配任务：策略在计算前一次性确定
type categoryTask struct {
	category model.Category
	strategy Strategy
	set      *matrix.Set
	column   int
}

// shareTable 按比例拆分的结果，按 [分类][时间槽] 排列
type shareTable struct {
	lack   [][]int
	excess [][]int
}

// Allocate 把全组织缺员/过剩分配到 dim 维度的各分类
//
// aggregate 由未切分的全组织矩阵独立计算，不受任何分类策略影响；
// 按比例拆分的占比始终基于该维度全部分类计算，因此把某个分类改为 DIRECT
// 只改变该分类自身的结果。
func (e *Engine) Allocate(dim model.Dimension, aggregate *stats.Gap, sets []matrix.Set, slotHours float64) (*Result, error) {
	if aggregate == nil {
		return nil, apperrors.InvalidInput("aggregate", "不能为空")
	}
	if dim == model.DimensionOverall {
		return nil, apperrors.InvalidInput("dimension", "全组织范围不能再分配")
	}
	ix := aggregate.Index
	for _, set := range sets {
		if set.Scope.Dimension != dim {
			return nil, apperrors.InvalidInput("sets", fmt.Sprintf("分类 %s 不属于维度 %s", set.Scope, dim))
		}
		if err := set.Aligned(); err != nil {
			return nil, err
		}
		if !set.Index().Equal(ix) {
			return nil, apperrors.InputAlignment(matrix.NameNeed,
				fmt.Sprintf("分类 %s 与全组织索引不一致", set.Scope))
		}
	}

	result := &Result{Dimension: dim, Index: ix}
	shares, unLack, unExcess := e.proportionalShares(aggregate, sets)
	result.Unattributed = unLack
	result.UnattributedExcess = unExcess
	lackUnits, excessUnits := sumInts(unLack), sumInts(unExcess)
	result.UnattributedHours = float64(lackUnits) * slotHours
	result.UnattributedExcessHours = float64(excessUnits) * slotHours

	tasks := make([]categoryTask, 0, len(sets))
	present := make(map[model.Category]struct{}, len(sets))
	for i := range sets {
		present[sets[i].Scope] = struct{}{}
		tasks = append(tasks, categoryTask{
			category: sets[i].Scope,
			strategy: e.cfg.Resolve(sets[i].Scope),
			set:      &sets[i],
			column:   i,
		})
	}
	for _, c := range e.cfg.Configured(dim) {
		if _, ok := present[c]; ok {
			continue
		}
		e.log.MissingCategory(c.String())
		result.Diagnostics = append(result.Diagnostics, apperrors.MissingCategory(c.String()))
		tasks = append(tasks, categoryTask{category: c, strategy: e.cfg.Resolve(c), column: -1})
	}
	if lackUnits > 0 || excessUnits > 0 {
		e.log.Unattributed(string(dim), lackUnits, excessUnits)
		result.Diagnostics = append(result.Diagnostics, apperrors.Unattributed(string(dim), lackUnits, excessUnits))
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].category.Less(tasks[j].category) })

	allocations, err := e.pool.run(tasks, func(t categoryTask) (Allocation, error) {
		return e.allocateOne(t, ix, shares, slotHours)
	})
	if err != nil {
		return nil, err
	}
	result.Allocations = allocations
	return result, nil
}

// allocateOne 计算单个分类
func (e *Engine) allocateOne(t categoryTask, ix *matrix.SlotIndex, shares shareTable, slotHours float64) (Allocation, error) {
	a := Allocation{Category: t.category, Strategy: t.strategy}

	switch {
	case t.set == nil:
		a.Missing = true
		a.Lack = make([]int, ix.Len())
		a.Excess = make([]int, ix.Len())
	case t.strategy == Direct:
		gap, err := e.calc.Calculate(*t.set)
		if err != nil {
			return Allocation{}, err
		}
		a.Lack = gap.LackCounts()
		a.Excess = gap.ExcessCounts()
	default:
		a.Lack = shares.lack[t.column]
		a.Excess = shares.excess[t.column]
	}

	for i := range a.Lack {
		a.LackTotal += a.Lack[i]
		a.ExcessTotal += a.Excess[i]
	}
	a.LackHours = float64(a.LackTotal) * slotHours
	a.ExcessHours = float64(a.ExcessTotal) * slotHours
	return a, nil
}

// proportionalShares 逐时间槽按最大余数法拆分全组织缺员（按需求占比）与过剩（按实际人数占比）
func (e *Engine) proportionalShares(aggregate *stats.Gap, sets []matrix.Set) (shareTable, []int, []int) {
	n := len(aggregate.Slots)
	table := shareTable{
		lack:   make([][]int, len(sets)),
		excess: make([][]int, len(sets)),
	}
	for j := range sets {
		table.lack[j] = make([]int, n)
		table.excess[j] = make([]int, n)
	}
	unLack := make([]int, n)
	unExcess := make([]int, n)

	needWeights := make([]float64, len(sets))
	actualWeights := make([]float64, len(sets))
	for i, slot := range aggregate.Slots {
		for j := range sets {
			needWeights[j] = sets[j].Need.Value(i)
			actualWeights[j] = sets[j].Actual.Value(i)
		}

		lack, rest := apportion(slot.Lack, needWeights)
		unLack[i] = rest
		excess, restExcess := apportion(slot.Excess, actualWeights)
		unExcess[i] = restExcess

		for j := range sets {
			table.lack[j][i] = lack[j]
			table.excess[j][i] = excess[j]
		}
	}
	return table, unLack, unExcess
}

func sumInts(v []int) int {
	n := 0
	for _, x := range v {
		n += x
	}
	return n
}

// apportion 按权重把 total 个整数单位分给各方（最大余数法）
//
// 每一方得到 floor(精确份额) 或再加 1；余数相同时按下标先后。
// 权重合计为 0 时全部单位无法归属，作为第二个返回值。
func apportion(total int, weights []float64) ([]int, int) {
	out := make([]int, len(weights))
	if total <= 0 {
		return out, 0
	}

	var sum float64
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	if sum <= 0 {
		return out, total
	}

	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, 0, len(weights))
	assigned := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		exact := float64(total) * w / sum
		base := int(math.Floor(exact))
		out[i] = base
		assigned += base
		rems = append(rems, remainder{index: i, frac: exact - float64(base)})
	}

	sort.SliceStable(rems, func(a, b int) bool {
		if math.Abs(rems[a].frac-rems[b].frac) > remainderTolerance {
			return rems[a].frac > rems[b].frac
		}
		return rems[a].index < rems[b].index
	})
	for k := 0; k < total-assigned && k < len(rems); k++ {
		out[rems[k].index]++
	}
	return out, 0
}

// SumReconciling 逐时间槽汇总按比例分配的结果，其合计加上无法归属部分等于全组织缺员/过剩
//
// DIRECT 数值是分类自身的缺口，合计不与全组织一致，包含 DIRECT（单独或混合）的集合会被拒绝。
// 缺失分类的分配恒为 0，不参与策略检查。
func SumReconciling(allocs []Allocation) (lack, excess []int, err error) {
	for _, a := range allocs {
		if a.Missing || a.Strategy == Proportional {
			continue
		}
		return nil, nil, apperrors.New(apperrors.CodeValidationFail, "只有 PROPORTIONAL 分配的合计与全组织一致").
			WithField("category", a.Category.String()).
			WithField("strategy", string(a.Strategy))
	}

	for _, a := range allocs {
		if lack == nil {
			lack = make([]int, len(a.Lack))
			excess = make([]int, len(a.Excess))
		}
		if len(a.Lack) != len(lack) || len(a.Excess) != len(excess) {
			return nil, nil, apperrors.InputAlignment("allocation", fmt.Sprintf("分类 %s 的时间槽数不一致", a.Category))
		}
		for i := range a.Lack {
			lack[i] += a.Lack[i]
			excess[i] += a.Excess[i]
		}
	}
	return lack, excess, nil
}
