package audit

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Dash-like code points folded to the ASCII hyphen before comparison.
var dashRunes = map[rune]bool{
	'‐': true, // hyphen
	'-':      true,
	'‒': true, // figure dash
	'–': true, // en dash
	'—': true, // em dash
	'―': true, // horizontal bar
	'﹘': true, // small em dash
	'﹣': true, // small hyphen-minus
	'－': true, // fullwidth hyphen-minus
}

// NormalizeText canonicalizes free text for comparison: Unicode NFKC,
// dash variants folded to '-', trimmed, lowercased. The result is a
// comparison key, not display text. Total over all inputs; empty in,
// empty out.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if dashRunes[r] {
			return '-'
		}
		return r
	}, s)
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseAmount interprets a money string like "$1,200.50" as a number.
// The second return is false when the value is empty or not numeric after
// stripping the currency symbol and thousands separators.
func ParseAmount(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	raw := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(s))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeAmount returns the canonical fixed-point form of an amount
// ("$1,200.5" -> "1200.50") for use as a grouping key. Empty or
// unparseable input yields "", which callers must treat as unknown,
// not as zero.
func NormalizeAmount(s string) string {
	v, ok := ParseAmount(s)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// DefaultDateFormats are the accepted date layouts, tried in order:
// ISO, US, and ISO with slashes.
var DefaultDateFormats = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

// ParseDate parses a date string against the given layouts, first match
// wins. Layout order is significant: "03/04/2024" is valid under both
// slash layouts and ties break by position in the list. A nil or empty
// list means DefaultDateFormats. Returns false for empty or unparseable
// input.
func ParseDate(s string, formats []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
