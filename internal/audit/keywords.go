package audit

import (
	"fmt"
	"strings"
)

// SuspiciousTerms is the fixed policy vocabulary. Matching is by
// substring over normalized text, so "cash" also hits "cashier"; that
// false-positive rate is accepted.
var SuspiciousTerms = []string{
	"cash", "gift", "party", "casino", "spa", "personal",
	"misc", "various", "round", "facilitation", "consulting",
}

// DefaultKeywordColumns are the columns scanned when none are configured.
var DefaultKeywordColumns = []string{"merchant", "category", "employee"}

// FlagSuspiciousKeywords scans the configured columns of every record for
// the suspicious vocabulary and emits one finding per record with at
// least one hit. Details list every (term, column) hit in scan order.
func FlagSuspiciousKeywords(rows []Record, cols []string) []Finding {
	if len(cols) == 0 {
		cols = DefaultKeywordColumns
	}
	var flagged []Finding
	for _, r := range rows {
		var hits []string
		for _, col := range cols {
			val := NormalizeText(r[col])
			if val == "" {
				continue
			}
			for _, term := range SuspiciousTerms {
				if strings.Contains(val, term) {
					hits = append(hits, fmt.Sprintf("%s (in %s)", term, col))
				}
			}
		}
		if len(hits) > 0 {
			flagged = append(flagged, Finding{
				Record:  r.Clone(),
				Reason:  ReasonSuspiciousKeyword,
				Details: strings.Join(hits, ", "),
			})
		}
	}
	return flagged
}
