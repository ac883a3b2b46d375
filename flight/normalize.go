// Package flight holds the flight identifier rules: normalizing loosely
// typed carrier codes, flight numbers and dates, and turning them into a
// document filter.
package flight

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// ISODate is the canonical layout for dateOfOrigin values.
const ISODate = "2006-01-02"

// ErrInvalidDate is returned when a non-empty date matches no accepted layout.
var ErrInvalidDate = errors.New("invalid date_of_origin format")

// dateLayouts are tried in order; the first match wins. Numeric day and
// month fields accept one or two digits, month names match case-insensitively.
var dateLayouts = []string{
	"2006-1-2",        // 2024-06-23
	"2-1-2006",        // 23-06-2024
	"2006/1/2",        // 2024/06/23
	"2/1/2006",        // 23/06/2024
	"January 2, 2006", // June 23, 2024
	"2 January 2006",  // 23 June 2024
	"Jan 2, 2006",     // Jun 23, 2024
	"2 Jan 2006",      // 23 Jun 2024
}

// NormalizeFlightNumber converts a flight number supplied as an integer,
// an integral JSON number or a numeric string into an int. It reports
// false for nil, empty and unparseable input.
func NormalizeFlightNumber(raw any) (int, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if int64(int(v)) == v {
			return int(v), true
		}
	case float64:
		if n, ok := wholeInt(v); ok {
			return n, true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && int64(int(n)) == n {
			return int(n), true
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	default:
		if n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(v))); err == nil {
			return n, true
		}
	}

	slog.Warn("could not normalize flight_number", "flight_number", raw)
	return 0, false
}

// wholeInt converts v when it is integral and inside the int range.
func wholeInt(v float64) (int, bool) {
	if v != math.Trunc(v) || v < float64(math.MinInt) || v >= -float64(math.MinInt) {
		return 0, false
	}
	return int(v), true
}

// NormalizeDate returns raw as YYYY-MM-DD. Empty input yields ("", nil),
// meaning no date was supplied; input matching no layout yields
// ErrInvalidDate.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), nil
		}
	}

	slog.Warn("could not parse date", "date", raw)
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// NormalizeCarrier trims and upper-cases an airline code.
func NormalizeCarrier(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
