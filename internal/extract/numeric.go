package extract

import (
	"strconv"
	"strings"
)

// Limits bound what counts as a plausible nightly rate for one competitor.
type Limits struct {
	Min float64
	Max float64
}

func (l Limits) plausible(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// parseAmount turns a scraped numeric string into a decimal. Thousand
// separators are stripped and the value parsed; when that yields an
// implausible magnitude a second attempt treats the string as a European
// comma-decimal ("1.234,56"). On !ok a non-zero value means the string
// parsed numerically but fell outside limits, so callers can count drops.
func parseAmount(raw string, limits Limits) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	// First attempt: comma as thousands separator
	if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		if limits.plausible(v) {
			return v, true
		}
		// Second attempt: dot as thousands, comma as decimal
		alt := strings.ReplaceAll(s, ".", "")
		alt = strings.ReplaceAll(alt, ",", ".")
		if v2, err := strconv.ParseFloat(alt, 64); err == nil && limits.plausible(v2) {
			return v2, true
		}
		return v, limits.plausible(v)
	}

	alt := strings.ReplaceAll(s, ".", "")
	alt = strings.ReplaceAll(alt, ",", ".")
	v, err := strconv.ParseFloat(alt, 64)
	if err != nil {
		return 0, false
	}
	return v, limits.plausible(v)
}
