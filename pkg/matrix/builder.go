package matrix

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/paiban/staffgap/pkg/errors"
	"github.com/paiban/staffgap/pkg/logger"
	"github.com/paiban/staffgap/pkg/model"
)

// Input 矩阵构建输入
type Input struct {
	Records    []model.AttendanceRecord `json:"records"`
	Need       []model.SeriesPoint      `json:"need"`
	Upper      []model.SeriesPoint      `json:"upper"`
	Dimensions []model.Dimension        `json:"dimensions"`
}

// Snapshot 一次运行的矩阵快照：一个共享索引 + 全组织与各分类的矩阵集合
type Snapshot struct {
	Index       *SlotIndex
	Overall     Set
	DroppedRows int // 构建索引前剔除的非工作行数

	dimensions []model.Dimension
	sets       map[model.Dimension][]Set
}

// Dimensions 快照包含的分类维度
func (s *Snapshot) Dimensions() []model.Dimension {
	out := make([]model.Dimension, len(s.dimensions))
	copy(out, s.dimensions)
	return out
}

// Sets 返回某维度下全部分类集合（按取值排序）
func (s *Snapshot) Sets(d model.Dimension) []Set {
	return s.sets[d]
}

// Lookup 查找分类集合
func (s *Snapshot) Lookup(c model.Category) (Set, bool) {
	if c.IsOverall() {
		return s.Overall, true
	}
	for _, set := range s.sets[c.Dimension] {
		if set.Scope == c {
			return set, true
		}
	}
	return Set{}, false
}

// Builder 时间槽矩阵构建器
type Builder struct {
	slotMinutes int
	log         *logger.AnalysisLogger
}

// NewBuilder 创建构建器，slotMinutes 为时间槽宽度
func NewBuilder(slotMinutes int) *Builder {
	if slotMinutes <= 0 {
		slotMinutes = model.DefaultSlotMinutes
	}
	return &Builder{slotMinutes: slotMinutes, log: logger.NewAnalysisLogger()}
}

// WithLogger 替换日志器
func (b *Builder) WithLogger(l *logger.AnalysisLogger) *Builder {
	b.log = l
	return b
}

// SlotMinutes 时间槽宽度
func (b *Builder) SlotMinutes() int {
	return b.slotMinutes
}

type preparedRecord struct {
	slot   model.TimeSlot
	record model.AttendanceRecord
}

type preparedPoint struct {
	slot  model.TimeSlot
	scope model.Category
	value float64
}

type prepared struct {
	records []preparedRecord
	need    []preparedPoint
	upper   []preparedPoint
	dims    []model.Dimension
}

// Validate 在构建矩阵之前校验输入；负值与索引错误都是致命错误
func (b *Builder) Validate(in Input) error {
	_, err := b.prepare(in)
	return err
}

// BuildIndex 由出勤记录构建工作时间槽索引
func (b *Builder) BuildIndex(records []model.AttendanceRecord) (*SlotIndex, error) {
	prepared, err := b.prepareRecords(records)
	if err != nil {
		return nil, err
	}
	ix, _ := b.indexFrom(prepared)
	return ix, nil
}

// Build 构建矩阵快照
//
// 索引只构建一次，并显式传入每一次 reindex；不在索引中的需求/上限点
// 属于非工作时间槽，直接丢弃。
func (b *Builder) Build(in Input) (*Snapshot, error) {
	p, err := b.prepare(in)
	if err != nil {
		return nil, err
	}

	ix, dropped := b.indexFrom(p.records)
	b.log.IndexBuilt(ix.Len(), dropped)

	known := make(map[model.Dimension]map[string]struct{}, len(p.dims))
	for _, d := range p.dims {
		known[d] = make(map[string]struct{})
	}

	overallActual := make([]float64, ix.Len())
	catActual := make(map[model.Category][]float64)

	for _, pr := range p.records {
		for _, d := range p.dims {
			known[d][pr.record.CategoryFor(d).Value] = struct{}{}
		}
		if !pr.record.IsWorking() {
			continue
		}
		pos, _ := ix.Position(pr.slot)
		hc := pr.record.Headcount()
		overallActual[pos] += hc
		for _, d := range p.dims {
			c := pr.record.CategoryFor(d)
			vals, ok := catActual[c]
			if !ok {
				vals = make([]float64, ix.Len())
				catActual[c] = vals
			}
			vals[pos] += hc
		}
	}

	needVals := reindexSeries(ix, p.need, known)
	upperVals := reindexSeries(ix, p.upper, known)

	overall, err := b.buildSet(ix, model.Overall(), needVals, upperVals, map[model.Category][]float64{model.Overall(): overallActual})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Index:       ix,
		Overall:     overall,
		DroppedRows: dropped,
		dimensions:  p.dims,
		sets:        make(map[model.Dimension][]Set, len(p.dims)),
	}

	for _, d := range p.dims {
		values := make([]string, 0, len(known[d]))
		for v := range known[d] {
			values = append(values, v)
		}
		sort.Strings(values)

		sets := make([]Set, 0, len(values))
		for _, v := range values {
			set, err := b.buildSet(ix, model.NewCategory(d, v), needVals, upperVals, catActual)
			if err != nil {
				return nil, err
			}
			sets = append(sets, set)
		}
		snap.sets[d] = sets
	}

	return snap, nil
}

func (b *Builder) buildSet(ix *SlotIndex, scope model.Category, need, upper, actual map[model.Category][]float64) (Set, error) {
	pick := func(m map[model.Category][]float64) []float64 {
		if v, ok := m[scope]; ok {
			return v
		}
		return make([]float64, ix.Len())
	}
	return NewSet(scope, ix, pick(need), pick(upper), pick(actual))
}

// indexFrom 由出勤行构建索引：非工作行在此之前剔除
func (b *Builder) indexFrom(records []preparedRecord) (*SlotIndex, int) {
	slots := make([]model.TimeSlot, 0, len(records))
	dropped := 0
	for _, pr := range records {
		if !pr.record.IsWorking() {
			dropped++
			continue
		}
		slots = append(slots, pr.slot)
	}
	return NewSlotIndex(slots, b.slotMinutes), dropped
}

// reindexSeries 把序列点放到工作时间槽索引上，索引外的点丢弃
func reindexSeries(ix *SlotIndex, points []preparedPoint, known map[model.Dimension]map[string]struct{}) map[model.Category][]float64 {
	out := make(map[model.Category][]float64)
	for _, p := range points {
		if !p.scope.IsOverall() {
			values, ok := known[p.scope.Dimension]
			if !ok {
				continue
			}
			values[p.scope.Value] = struct{}{}
		}
		pos, ok := ix.Position(p.slot)
		if !ok {
			continue
		}
		vals, ok := out[p.scope]
		if !ok {
			vals = make([]float64, ix.Len())
			out[p.scope] = vals
		}
		vals[pos] = p.value
	}
	return out
}

func (b *Builder) prepare(in Input) (*prepared, error) {
	if 24*60%b.slotMinutes != 0 {
		return nil, apperrors.InvalidInput("slot_minutes", fmt.Sprintf("%d 不能整除一天", b.slotMinutes))
	}

	dims, err := normalizeDimensions(in.Dimensions)
	if err != nil {
		return nil, err
	}

	records, err := b.prepareRecords(in.Records)
	if err != nil {
		return nil, err
	}
	need, err := b.preparePoints(NameNeed, in.Need)
	if err != nil {
		return nil, err
	}
	upper, err := b.preparePoints(NameUpper, in.Upper)
	if err != nil {
		return nil, err
	}
	return &prepared{records: records, need: need, upper: upper, dims: dims}, nil
}

func (b *Builder) prepareRecords(records []model.AttendanceRecord) ([]preparedRecord, error) {
	out := make([]preparedRecord, 0, len(records))
	for i, r := range records {
		slot, err := model.ParseSlot(r.Date, r.Time)
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("records[%d]", i), err.Error())
		}
		if !slot.OnGrid(b.slotMinutes) {
			return nil, apperrors.InputAlignment(NameActual,
				fmt.Sprintf("records[%d]: 时段 %s 不在 %d 分钟网格上", i, slot.Time, b.slotMinutes))
		}
		if hc := r.Headcount(); math.IsNaN(hc) || math.IsInf(hc, 0) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("records[%d].count", i), "必须是有限数值")
		} else if hc < 0 {
			return nil, apperrors.NegativeValue(NameActual, r.CategoryFor(model.DimensionRole).String(), slot.Key(), hc)
		}
		out = append(out, preparedRecord{slot: slot, record: r})
	}
	return out, nil
}

func (b *Builder) preparePoints(name string, points []model.SeriesPoint) ([]preparedPoint, error) {
	out := make([]preparedPoint, 0, len(points))
	seen := make(map[string]struct{}, len(points))
	for i, p := range points {
		if p.Dimension != model.DimensionOverall && p.Dimension != model.DimensionRole && p.Dimension != model.DimensionEmployment {
			return nil, apperrors.InvalidInput(fmt.Sprintf("%s[%d].dimension", name, i), string(p.Dimension))
		}
		slot, err := model.ParseSlot(p.Date, p.Time)
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("%s[%d]", name, i), err.Error())
		}
		scope := p.Scope()
		if !slot.OnGrid(b.slotMinutes) {
			return nil, apperrors.InputAlignment(name,
				fmt.Sprintf("%s: 时段 %s 不在 %d 分钟网格上", scope, slot.Time, b.slotMinutes))
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("%s[%d].value", name, i), "必须是有限数值")
		}
		if p.Value < 0 {
			return nil, apperrors.NegativeValue(name, scope.String(), slot.Key(), p.Value)
		}
		key := scope.String() + "@" + slot.Key()
		if _, dup := seen[key]; dup {
			return nil, apperrors.InputAlignment(name, fmt.Sprintf("%s: 时间槽 %s 重复", scope, slot.Key()))
		}
		seen[key] = struct{}{}
		out = append(out, preparedPoint{slot: slot, scope: scope, value: p.Value})
	}
	return out, nil
}

// normalizeDimensions 去重并固定顺序；未指定时使用全部维度
func normalizeDimensions(dims []model.Dimension) ([]model.Dimension, error) {
	if len(dims) == 0 {
		return model.Dimensions(), nil
	}
	seen := make(map[model.Dimension]struct{}, len(dims))
	out := make([]model.Dimension, 0, len(dims))
	for _, d := range dims {
		parsed, err := model.ParseDimension(string(d))
		if err != nil || parsed == model.DimensionOverall {
			return nil, apperrors.InvalidInput("dimensions", string(d))
		}
		if _, ok := seen[parsed]; ok {
			continue
		}
		seen[parsed] = struct{}{}
		out = append(out, parsed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
