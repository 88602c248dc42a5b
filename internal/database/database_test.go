package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPing_Retries(t *testing.T) {
	p := &flakyPinger{failures: 2}
	if err := ping(context.Background(), p, time.Second, 3, 0); err != nil {
		t.Fatalf("ping() error = %v", err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, expected 3", p.calls)
	}

	p = &flakyPinger{failures: 5}
	err := ping(context.Background(), p, time.Second, 1, 0)
	if err == nil || !strings.Contains(err.Error(), "2 次") {
		t.Errorf("ping() error = %v, expected failure after 2 attempts", err)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, expected 2", p.calls)
	}
}

func TestPing_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &flakyPinger{failures: 5}
	if err := ping(ctx, p, time.Second, 3, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("ping() error = %v, expected context.Canceled", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, expected 1", p.calls)
	}
}

func TestIsSlow(t *testing.T) {
	tests := []struct {
		name      string
		d         time.Duration
		threshold time.Duration
		expected  bool
	}{
		{"超过阈值", 150 * time.Millisecond, 100 * time.Millisecond, true},
		{"等于阈值", 100 * time.Millisecond, 100 * time.Millisecond, false},
		{"阈值关闭", time.Hour, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSlow(tt.d, tt.threshold); got != tt.expected {
				t.Errorf("isSlow() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCompactQuery(t *testing.T) {
	q := `
		SELECT id, slot_minutes
		FROM analysis_runs
		WHERE id = $1`
	if got := compactQuery(q); got != "SELECT id, slot_minutes FROM analysis_runs WHERE id = $1" {
		t.Errorf("compactQuery() = %q", got)
	}

	long := compactQuery(strings.Repeat("缺员 ", 300))
	if !strings.HasSuffix(long, "...") || len([]rune(long)) != maxLoggedQuery+3 {
		t.Errorf("compactQuery() 截断长度 = %d", len([]rune(long)))
	}
}

func TestSchema_RunTables(t *testing.T) {
	joined := strings.Join(schema, "\n")
	for _, want := range []string{"analysis_runs", "analysis_run_allocations", "ON DELETE CASCADE"} {
		if !strings.Contains(joined, want) {
			t.Errorf("schema 缺少 %s", want)
		}
	}
}
