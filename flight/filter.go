package flight

import "log/slog"

// Document paths of the identifying fields of a flight leg.
const (
	FieldCarrier      = "flightLegState.carrier"
	FieldFlightNumber = "flightLegState.flightNumber"
	FieldDateOfOrigin = "flightLegState.dateOfOrigin"
)

// Filter identifies zero or more flight legs. Zero-valued fields do not
// constrain the match.
type Filter struct {
	Carrier      string
	FlightNumber *int
	DateOfOrigin string
}

// BuildFilter assembles a Filter from already-normalized identifiers.
func BuildFilter(carrier string, flightNumber *int, dateOfOrigin string) Filter {
	return Filter{
		Carrier:      carrier,
		FlightNumber: flightNumber,
		DateOfOrigin: dateOfOrigin,
	}
}

// IsEmpty reports whether the filter matches every document.
func (f Filter) IsEmpty() bool {
	return f.Carrier == "" && f.FlightNumber == nil && f.DateOfOrigin == ""
}

// Query returns the equality predicate for the present fields. Values are
// typed leaves keyed by fixed paths.
func (f Filter) Query() map[string]any {
	q := make(map[string]any, 3)
	if f.Carrier != "" {
		q[FieldCarrier] = f.Carrier
	}
	if f.FlightNumber != nil {
		q[FieldFlightNumber] = *f.FlightNumber
	}
	if f.DateOfOrigin != "" {
		q[FieldDateOfOrigin] = f.DateOfOrigin
	}
	slog.Debug("built query", "query", q)
	return q
}
