package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// parseDecimal reads a decimal flag value. Quantities are never parsed as floats.
func parseDecimal(flag, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewExitError(ExitCommandError, fmt.Sprintf("invalid --%s %q: not a decimal number", flag, s))
	}
	return d, nil
}

// parseDecimalMap reads a repeated material=value flag.
func parseDecimalMap(flag string, m map[string]string) (map[string]decimal.Decimal, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for _, k := range sortedStringKeys(m) {
		d, err := parseDecimal(flag, m[k])
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

// timeLayouts are the accepted forms of --at, --from and --to.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// parseTime reads a timestamp or a date (midnight UTC).
func parseTime(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --%s %q: use RFC 3339 or YYYY-MM-DD", flag, s))
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
