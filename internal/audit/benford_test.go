package audit

import (
	"errors"
	"fmt"
	"testing"
)

func amountRows(amounts ...string) []Record {
	rows := make([]Record, len(amounts))
	for i, a := range amounts {
		rows[i] = Record{"amount_usd": a}
	}
	return rows
}

func TestLeadingDigit(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1999", 1},
		{"$0.99", 9},
		{"0.042", 4},
		{"$2,450.00", 2},
		{"0.00", 0},
		{"", 0},
		{"n/a", 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			if got := leadingDigit(tt.input); got != tt.expected {
				t.Errorf("leadingDigit(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBenfordStatsEmptySample(t *testing.T) {
	rows := amountRows("", "0.00", "n/a")
	_, err := BenfordStats(rows, "amount_usd")
	if !errors.Is(err, ErrNoValidAmounts) {
		t.Fatalf("expected ErrNoValidAmounts, got %v", err)
	}
}

func TestBenfordStatsCounts(t *testing.T) {
	rows := amountRows("100.00", "150.00", "1999", "$0.99", "250.00", "")
	report, err := BenfordStats(rows, "amount_usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalAnalyzed != 5 {
		t.Errorf("total analyzed = %d, want 5", report.TotalAnalyzed)
	}
	if len(report.Digits) != 9 {
		t.Fatalf("expected 9 digit rows, got %d", len(report.Digits))
	}

	counts := map[int]int{}
	sum := 0
	for _, d := range report.Digits {
		counts[d.Digit] = d.Count
		sum += d.Count
	}
	if sum != report.TotalAnalyzed {
		t.Errorf("digit counts sum to %d, want %d", sum, report.TotalAnalyzed)
	}
	if counts[1] != 3 || counts[2] != 1 || counts[9] != 1 {
		t.Errorf("unexpected histogram: %v", counts)
	}
}

func TestBenfordStatsExpectedPercentages(t *testing.T) {
	report, err := BenfordStats(amountRows("123.00"), "amount_usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// log10(1 + 1/d), rounded to two decimals.
	want := []float64{30.10, 17.61, 12.49, 9.69, 7.92, 6.69, 5.80, 5.12, 4.58}
	for i, d := range report.Digits {
		if d.ExpectedPct != want[i] {
			t.Errorf("digit %d expected pct = %.2f, want %.2f", d.Digit, d.ExpectedPct, want[i])
		}
	}
}

func TestBenfordStatsSuspicion(t *testing.T) {
	t.Run("uniform distribution is suspicious", func(t *testing.T) {
		var amounts []string
		for d := 1; d <= 9; d++ {
			amounts = append(amounts, fmt.Sprintf("%d00.00", d))
		}
		report, err := BenfordStats(amountRows(amounts...), "amount_usd")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Suspicious {
			t.Error("uniform leading digits should be suspicious")
		}
		// Digit 1 at 1/9 vs 30.1% expected dominates the deviation.
		if report.MaxDeviationPct < 15 {
			t.Errorf("max deviation = %.2f%%, expected around 19%%", report.MaxDeviationPct)
		}
	})

	t.Run("conforming distribution is not suspicious", func(t *testing.T) {
		counts := []int{301, 176, 125, 97, 79, 67, 58, 51, 46}
		var amounts []string
		for d, n := range counts {
			for i := 0; i < n; i++ {
				amounts = append(amounts, fmt.Sprintf("%d%02d.00", d+1, i%100))
			}
		}
		report, err := BenfordStats(amountRows(amounts...), "amount_usd")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Suspicious {
			t.Errorf("near-Benford sample flagged suspicious, max deviation %.2f%%", report.MaxDeviationPct)
		}
	})
}
