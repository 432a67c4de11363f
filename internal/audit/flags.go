package audit

import (
	"fmt"
	"math"
	"time"
)

// FlagWeekends returns a finding for every record whose date column parses
// to a Saturday or Sunday. Records with a missing or unparseable date are
// skipped, not flagged. Input order is preserved.
func FlagWeekends(rows []Record, dateCol string, formats []string) []Finding {
	var flagged []Finding
	for _, r := range rows {
		dt, ok := ParseDate(r[dateCol], formats)
		if !ok {
			continue
		}
		if wd := dt.Weekday(); wd == time.Saturday || wd == time.Sunday {
			flagged = append(flagged, Finding{Record: r.Clone(), Reason: ReasonWeekend})
		}
	}
	return flagged
}

// FlagThreshold classifies each parseable amount against a policy limit.
// Strictly above the limit is over_limit; inside the band
// (limit-buffer, limit] is near_limit. The two are checked in that order
// and are mutually exclusive. A buffer larger than the limit is legal and
// just extends the band below zero. Unparseable amounts are skipped.
func FlagThreshold(rows []Record, amountCol string, limit, buffer float64) []Finding {
	var flagged []Finding
	for _, r := range rows {
		amt, ok := ParseAmount(r[amountCol])
		if !ok {
			continue
		}
		var reason string
		switch {
		case amt > limit:
			reason = ReasonOverLimit
		case amt > limit-buffer && amt <= limit:
			reason = ReasonNearLimit
		default:
			continue
		}
		flagged = append(flagged, Finding{Record: r.Clone(), Reason: reason})
	}
	return flagged
}

// discrepancyEpsilon absorbs floating-point rounding when comparing
// incurred against paid amounts. It is a design constant, not a tunable.
const discrepancyEpsilon = 0.01

// FlagDiscrepancies flags records whose incurred and paid amounts differ
// by more than one cent. Records where either amount fails to parse are
// skipped.
func FlagDiscrepancies(rows []Record, incurredCol, paidCol string) []Finding {
	var flagged []Finding
	for _, r := range rows {
		incurred, ok := ParseAmount(r[incurredCol])
		if !ok {
			continue
		}
		paid, ok := ParseAmount(r[paidCol])
		if !ok {
			continue
		}
		diff := math.Abs(incurred - paid)
		if diff > discrepancyEpsilon {
			flagged = append(flagged, Finding{
				Record:  r.Clone(),
				Reason:  ReasonDiscrepancy,
				Details: fmt.Sprintf("Diff: $%.2f", diff),
			})
		}
	}
	return flagged
}
