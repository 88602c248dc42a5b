// Package report 把分析表格输出为 CSV / JSON / XLSX
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/paiban/staffgap/pkg/analysis"
	apperrors "github.com/paiban/staffgap/pkg/errors"
)

// Format 输出格式
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// 表名（CSV 文件名 / XLSX 工作表名）
const (
	TableShortage   = "shortage"
	TableExcess     = "excess"
	TableAllocation = "allocation"
)

// ParseFormat 解析输出格式
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", apperrors.InvalidInput("format", fmt.Sprintf("不支持的输出格式 %q", s))
}

// table 通用二维表
type table struct {
	name   string
	header []string
	rows   [][]interface{}
}

func tablesOf(t analysis.Tables) []table {
	shortage := table{
		name:   TableShortage,
		header: []string{"date", "time_of_day", "scope", "lack_count", "lack_ratio"},
	}
	for _, r := range t.Shortage {
		shortage.rows = append(shortage.rows, []interface{}{r.Date, r.TimeOfDay, r.Scope, r.LackCount, r.LackRatio})
	}

	excess := table{
		name:   TableExcess,
		header: []string{"date", "time_of_day", "scope", "excess_count", "excess_ratio"},
	}
	for _, r := range t.Excess {
		excess.rows = append(excess.rows, []interface{}{r.Date, r.TimeOfDay, r.Scope, r.ExcessCount, r.ExcessRatio})
	}

	alloc := table{
		name:   TableAllocation,
		header: []string{"category", "allocated_shortfall_hours", "allocated_excess_hours", "strategy_tag", "missing"},
	}
	for _, r := range t.Allocation {
		alloc.rows = append(alloc.rows, []interface{}{r.Category, r.AllocatedShortfallHours, r.AllocatedExcessHours, r.StrategyTag, r.Missing})
	}

	return []table{shortage, excess, alloc}
}

func lookup(t analysis.Tables, name string) (table, error) {
	for _, tb := range tablesOf(t) {
		if tb.name == name {
			return tb, nil
		}
	}
	return table{}, apperrors.InvalidInput("table", fmt.Sprintf("未知表 %q", name))
}

// WriteCSV 输出单张表为 CSV
func WriteCSV(w io.Writer, t analysis.Tables, name string) error {
	tb, err := lookup(t, name)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(tb.header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(tb.header))
	for _, row := range tb.rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON 输出全部表格为一个 JSON 文档
func WriteJSON(w io.Writer, t analysis.Tables) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// WriteXLSX 输出全部表格为一个工作簿，每张表一个工作表
func WriteXLSX(w io.Writer, t analysis.Tables) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, tb := range tablesOf(t) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", tb.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(tb.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", tb.name, err)
		}
		if err := writeSheet(f, tb, header); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, tb table, headerStyle int) error {
	headerRow := make([]interface{}, len(tb.header))
	for i, h := range tb.header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(tb.name, "A1", &headerRow); err != nil {
		return fmt.Errorf("write %s header: %w", tb.name, err)
	}
	last, _ := excelize.ColumnNumberToName(len(tb.header))
	if err := f.SetCellStyle(tb.name, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", tb.name, err)
	}
	if err := f.SetColWidth(tb.name, "A", last, 16); err != nil {
		return fmt.Errorf("set %s width: %w", tb.name, err)
	}

	for i, row := range tb.rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := row
		if err := f.SetSheetRow(tb.name, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", tb.name, i+1, err)
		}
	}
	return nil
}

// Write 按格式输出。CSV 只能输出单张表，此时写出缺员表
func Write(w io.Writer, format Format, t analysis.Tables) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t, TableShortage)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return WriteJSON(w, t)
	}
}

// WriteDir 把表格写入目录，返回生成的文件路径
//
// CSV 每张表一个文件；JSON 与 XLSX 生成单个 tables.json / tables.xlsx。
func WriteDir(dir string, format Format, t analysis.Tables) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	write := func(name string, fn func(io.Writer) error) (string, error) {
		path := filepath.Join(dir, name)
		out, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if err := fn(out); err != nil {
			out.Close()
			return "", err
		}
		return path, out.Close()
	}

	var paths []string
	switch format {
	case FormatCSV:
		for _, name := range []string{TableShortage, TableExcess, TableAllocation} {
			name := name
			p, err := write(name+".csv", func(w io.Writer) error { return WriteCSV(w, t, name) })
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
	case FormatXLSX:
		p, err := write("tables.xlsx", func(w io.Writer) error { return WriteXLSX(w, t) })
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	default:
		p, err := write("tables.json", func(w io.Writer) error { return WriteJSON(w, t) })
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
