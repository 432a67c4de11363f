package audit

import (
	"errors"
	"strconv"
)

// Reason tags attached to findings.
const (
	ReasonDuplicate         = "duplicate"
	ReasonWeekend           = "weekend"
	ReasonOverLimit         = "over_limit"
	ReasonNearLimit         = "near_limit"
	ReasonSuspiciousKeyword = "suspicious_keyword"
	ReasonDiscrepancy       = "discrepancy"
)

// Reserved metadata columns used when findings are flattened to rows.
// They overlay caller columns of the same name in the exported row only,
// never in the stored record.
const (
	ColumnReason   = "_reason"
	ColumnDupCount = "_dup_count"
	ColumnDetails  = "_details"
)

// ErrNoValidAmounts is returned by BenfordStats when no record yields a
// leading digit. Callers must check for it before using the report.
var ErrNoValidAmounts = errors.New("no valid amounts found")

// Record is one expense line: column name to raw value. An absent key and
// an empty string are equivalent for parsing purposes. Detectors never
// modify a record in place.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Finding is a record annotated with a detection reason. Metadata lives in
// typed fields rather than extra map keys so it can never clobber caller
// data in the underlying record.
type Finding struct {
	Record   Record `json:"record"`
	Reason   string `json:"reason"`
	DupCount int    `json:"dup_count,omitempty"`
	Details  string `json:"details,omitempty"`
}

// Row flattens the finding into a single exportable row: a copy of the
// original columns plus the reserved metadata columns.
func (f Finding) Row() Record {
	row := f.Record.Clone()
	row[ColumnReason] = f.Reason
	if f.DupCount > 0 {
		row[ColumnDupCount] = strconv.Itoa(f.DupCount)
	}
	if f.Details != "" {
		row[ColumnDetails] = f.Details
	}
	return row
}

// DuplicateKey configures which columns form the duplicate identity key.
type DuplicateKey struct {
	MerchantColumn  string
	InvoiceColumn   string
	AmountColumn    string
	IncludeMerchant bool
}

// DefaultDuplicateKey returns the key over the conventional column names.
func DefaultDuplicateKey() DuplicateKey {
	return DuplicateKey{
		MerchantColumn:  "merchant",
		InvoiceColumn:   "invoice_no",
		AmountColumn:    "amount_usd",
		IncludeMerchant: true,
	}
}

// BenfordDigit is the per-digit breakdown of a Benford report.
type BenfordDigit struct {
	Digit       int     `json:"digit"`
	Count       int     `json:"actual_count"`
	ActualPct   float64 `json:"actual_pct"`
	ExpectedPct float64 `json:"expected_pct"`
	DiffPct     float64 `json:"diff_pct"`
}

// BenfordReport is the aggregate result of a leading-digit analysis.
// It is built once per run and not mutated afterwards.
type BenfordReport struct {
	TotalAnalyzed   int            `json:"total_analyzed"`
	Digits          []BenfordDigit `json:"stats"`
	Suspicious      bool           `json:"is_suspicious"`
	MaxDeviationPct float64        `json:"max_deviation_pct"`
}
