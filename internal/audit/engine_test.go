package audit

import (
	"testing"

	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/config"
	"github.com/auditkit/expense-sentinel/internal/logger"
)

func testEngine(t *testing.T, detectors []string) *Engine {
	t.Helper()
	cfg := config.GetDefaults().Audit
	cfg.Detectors = detectors
	engine, err := New(cfg, &logger.Logger{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestNewEngineDetectorSelection(t *testing.T) {
	t.Run("all enables every detector", func(t *testing.T) {
		engine := testEngine(t, []string{"all"})
		for _, name := range config.KnownDetectors {
			if !engine.Enabled(name) {
				t.Errorf("detector %q should be enabled", name)
			}
		}
	})

	t.Run("explicit list enables only those", func(t *testing.T) {
		engine := testEngine(t, []string{"duplicates", "benford"})
		if !engine.Enabled("duplicates") || !engine.Enabled("benford") {
			t.Error("listed detectors should be enabled")
		}
		if engine.Enabled("weekends") || engine.Enabled("threshold") {
			t.Error("unlisted detectors should be disabled")
		}
	})

	t.Run("unknown name rejected", func(t *testing.T) {
		cfg := config.GetDefaults().Audit
		cfg.Detectors = []string{"sentiment"}
		if _, err := New(cfg, &logger.Logger{Logger: zap.NewNop()}); err == nil {
			t.Fatal("expected error for unknown detector name")
		}
	})
}

func TestEngineRun(t *testing.T) {
	rows := []Record{
		{
			"expense_id":      "E-1",
			"merchant":        "Acme Corp",
			"invoice_no":      "INV-1",
			"amount_usd":      "1200.50",
			"paid_amount_usd": "1200.50",
			"expense_date":    "2024-01-06",
		},
		{
			"expense_id":      "E-2",
			"merchant":        "ACME CORP",
			"invoice_no":      "inv-1",
			"amount_usd":      "$1,200.5",
			"paid_amount_usd": "1100.00",
			"expense_date":    "2024-01-08",
		},
		{
			"expense_id":      "E-3",
			"merchant":        "Casino Royale",
			"invoice_no":      "INV-7",
			"amount_usd":      "5200.00",
			"paid_amount_usd": "5200.00",
			"expense_date":    "2024-01-09",
		},
	}

	summary := testEngine(t, []string{"all"}).Run(rows)

	if got := len(summary.Findings["duplicates"]); got != 2 {
		t.Errorf("duplicates = %d, want 2", got)
	}
	if got := len(summary.Findings["weekends"]); got != 1 {
		t.Errorf("weekends = %d, want 1", got)
	}
	if got := len(summary.Findings["threshold"]); got != 1 {
		t.Errorf("threshold = %d, want 1", got)
	}
	if got := len(summary.Findings["keywords"]); got != 1 {
		t.Errorf("keywords = %d, want 1", got)
	}
	if got := len(summary.Findings["discrepancies"]); got != 1 {
		t.Errorf("discrepancies = %d, want 1", got)
	}
	if summary.Benford == nil {
		t.Fatal("expected a Benford report")
	}
	if summary.Benford.TotalAnalyzed != 3 {
		t.Errorf("benford analyzed = %d, want 3", summary.Benford.TotalAnalyzed)
	}
}

func TestEngineRunDisabledDetectorsSkipped(t *testing.T) {
	rows := []Record{{"amount_usd": "9999.00", "expense_date": "2024-01-06"}}
	summary := testEngine(t, []string{"weekends"}).Run(rows)

	if _, ok := summary.Findings["threshold"]; ok {
		t.Error("disabled detector produced findings")
	}
	if summary.Benford != nil {
		t.Error("disabled benford produced a report")
	}
	if got := len(summary.Findings["weekends"]); got != 1 {
		t.Errorf("weekends = %d, want 1", got)
	}
}
