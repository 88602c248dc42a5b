// staffgap 批处理命令：读取分析请求，输出缺员/过剩/分配表
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/staffgap/internal/config"
	"github.com/paiban/staffgap/internal/metrics"
	"github.com/paiban/staffgap/pkg/analysis"
	"github.com/paiban/staffgap/pkg/logger"
	"github.com/paiban/staffgap/pkg/report"
)

const jobName = "staffgap"

// options 命令行参数
type options struct {
	input       string
	format      string
	table       string
	out         string
	strategy    string
	policy      string
	slotMinutes int
	metricsAddr string
	pushURL     string
	wait        bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("staffgap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.input, "input", "", "分析请求 JSON 文件，- 表示标准输入 (必填)")
	fs.StringVar(&o.format, "format", "csv", "输出格式: csv|json|xlsx")
	fs.StringVar(&o.table, "table", report.TableShortage, "输出到标准输出时的 CSV 表: shortage|excess|allocation")
	fs.StringVar(&o.out, "out", "", "输出目录；为空时写到标准输出")
	fs.StringVar(&o.strategy, "strategy", "", "分类策略 YAML 文件，覆盖 ANALYSIS_STRATEGY_FILE")
	fs.StringVar(&o.policy, "policy", "", "过剩策略: report|suppress_below_need")
	fs.IntVar(&o.slotMinutes, "slot", 0, "时间槽分钟数，0 表示使用配置")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "暴露 Prometheus 指标的地址 (如 :9090)")
	fs.StringVar(&o.pushURL, "push-url", "", "Pushgateway 地址 (如 http://localhost:9091)")
	fs.BoolVar(&o.wait, "wait", false, "完成后保持运行以便抓取指标")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.input == "" {
		fs.Usage()
		return nil, errors.New("-input 为必填参数")
	}
	if _, err := report.ParseFormat(o.format); err != nil {
		return nil, err
	}
	return o, nil
}

func main() {
	logger.Init(logger.Config{
		Level:  os.Getenv("APP_LOG_LEVEL"),
		Format: "console",
		Output: "stderr",
	})

	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if o.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info().Str("addr", o.metricsAddr).Msg("指标服务监听")
			if err := http.ListenAndServe(o.metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("指标服务错误")
			}
		}()
	}

	runErr := run(context.Background(), o, os.Stdin, os.Stdout, os.Stderr)

	if o.pushURL != "" {
		if err := metrics.Push(o.pushURL, jobName); err != nil {
			logger.Error().Err(err).Str("url", o.pushURL).Msg("推送指标失败")
		} else {
			logger.Info().Str("url", o.pushURL).Msg("指标已推送")
		}
	}

	if o.wait && o.metricsAddr != "" {
		logger.Info().Msg("保持运行以便抓取指标，Ctrl+C 退出")
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// run 执行一次分析并输出表格
func run(ctx context.Context, o *options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.strategy != "" {
		cfg.Analysis.StrategyFile = o.strategy
	}
	ac, err := cfg.AnalyzerConfig()
	if err != nil {
		return err
	}
	analyzer, err := analysis.New(ac)
	if err != nil {
		return err
	}

	req, err := readRequest(o.input, stdin)
	if err != nil {
		return err
	}
	if o.slotMinutes > 0 || o.policy != "" {
		if req.Options == nil {
			req.Options = &analysis.Options{}
		}
		if o.slotMinutes > 0 {
			req.Options.SlotMinutes = o.slotMinutes
		}
		if o.policy != "" {
			req.Options.ExcessPolicy = o.policy
		}
	}

	start := time.Now()
	result, err := analyzer.Run(ctx, req)
	if err != nil {
		metrics.RecordAnalysisRun(metrics.RunOutcome{Success: false, Duration: time.Since(start)})
		return err
	}
	metrics.RecordAnalysisRun(metrics.ReportOutcome(result))

	format, _ := report.ParseFormat(o.format)
	if o.out != "" {
		paths, err := report.WriteDir(o.out, format, result.Tables)
		if err != nil {
			return err
		}
		for _, p := range paths {
			logger.Info().Str("path", p).Msg("已写出")
		}
	} else {
		switch format {
		case report.FormatCSV:
			err = report.WriteCSV(stdout, result.Tables, o.table)
		default:
			err = report.Write(stdout, format, result.Tables)
		}
		if err != nil {
			return err
		}
	}

	printSummary(stderr, result)
	return nil
}

func readRequest(path string, stdin io.Reader) (analysis.Request, error) {
	var req analysis.Request

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("打开输入文件失败: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("解析输入文件失败: %w", err)
	}
	return req, nil
}

func printSummary(w io.Writer, r *analysis.Report) {
	s := r.Aggregate.Summary
	fmt.Fprintf(w, "run %s: %d 个工作时间槽, 剔除 %d 行\n", r.RunID, r.Slots, r.DroppedRows)
	fmt.Fprintf(w, "  缺员: %d 槽, %.2f 小时\n", s.LackSlots, s.LackHours)
	fmt.Fprintf(w, "  过剩: %d 槽, %.2f 小时\n", s.ExcessSlots, s.ExcessHours)
	if r.HirePlan != nil {
		fmt.Fprintf(w, "  需招聘: %d 人\n", r.HirePlan.RequiredHire)
	}
	if r.Cost != nil {
		fmt.Fprintf(w, "  最低成本方案: %s\n", r.Cost.Cheapest)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "  [%s] %s\n", d.Code, d.Message)
	}
}
