package audit

import "math"

// benfordSuspicionThreshold is the maximum per-digit absolute deviation
// (as a frequency) tolerated before the report is marked suspicious.
// A heuristic tripwire, not a significance test.
const benfordSuspicionThreshold = 0.05

// BenfordStats builds the leading-digit distribution of the amount column
// and compares it against Benford's Law, P(d) = log10(1 + 1/d).
//
// The leading digit is found textually: scan the raw amount string left
// to right and take the first nonzero digit character, so "$0.99" counts
// as 9 and "1999" as 1. Records with no nonzero digit are excluded from
// the sample. When the whole sample is empty, ErrNoValidAmounts is
// returned instead of a report.
func BenfordStats(rows []Record, amountCol string) (*BenfordReport, error) {
	var counts [10]int
	total := 0
	for _, r := range rows {
		if d := leadingDigit(r[amountCol]); d > 0 {
			counts[d]++
			total++
		}
	}
	if total == 0 {
		return nil, ErrNoValidAmounts
	}

	report := &BenfordReport{
		TotalAnalyzed: total,
		Digits:        make([]BenfordDigit, 0, 9),
	}
	maxDeviation := 0.0
	for d := 1; d <= 9; d++ {
		actual := float64(counts[d]) / float64(total)
		expected := math.Log10(1 + 1/float64(d))
		diff := math.Abs(actual - expected)
		if diff > maxDeviation {
			maxDeviation = diff
		}
		report.Digits = append(report.Digits, BenfordDigit{
			Digit:       d,
			Count:       counts[d],
			ActualPct:   roundPct(actual),
			ExpectedPct: roundPct(expected),
			DiffPct:     roundPct(diff),
		})
	}
	report.Suspicious = maxDeviation > benfordSuspicionThreshold
	report.MaxDeviationPct = roundPct(maxDeviation)
	return report, nil
}

// leadingDigit returns the first nonzero digit character of s, or 0 when
// there is none.
func leadingDigit(s string) int {
	for _, c := range s {
		if c > '0' && c <= '9' {
			return int(c - '0')
		}
	}
	return 0
}

// roundPct converts a frequency to a percentage rounded to two decimals.
func roundPct(freq float64) float64 {
	return math.Round(freq*10000) / 100
}
