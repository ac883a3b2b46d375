// Tool catalog.
//
// Information Hiding:
// - Tool order, argument lists and projection profiles fixed at startup
// - Prompt rendering and input schemas derived from the same entries

package tools

import (
	"fmt"
	"strings"

	"github.com/richinex/flightops/flight"
)

// Kind enumerates the known tools. Names from model output that match no
// entry parse to KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindFlightBasicInfo
	KindOperationTimes
	KindEquipmentInfo
	KindDelaySummary
	KindFuelSummary
	KindPassengerInfo
	KindCrewInfo
	KindHealthCheck
	KindRawQuery
)

// Tool names as exposed to the planner and over MCP.
const (
	NameFlightBasicInfo = "get_flight_basic_info"
	NameOperationTimes  = "get_operation_times"
	NameEquipmentInfo   = "get_equipment_info"
	NameDelaySummary    = "get_delay_summary"
	NameFuelSummary     = "get_fuel_summary"
	NamePassengerInfo   = "get_passenger_info"
	NameCrewInfo        = "get_crew_info"
	NameHealthCheck     = "health_check"
	NameRawQuery        = "raw_mongodb_query"
)

var kindNames = map[Kind]string{
	KindFlightBasicInfo: NameFlightBasicInfo,
	KindOperationTimes:  NameOperationTimes,
	KindEquipmentInfo:   NameEquipmentInfo,
	KindDelaySummary:    NameDelaySummary,
	KindFuelSummary:     NameFuelSummary,
	KindPassengerInfo:   NamePassengerInfo,
	KindCrewInfo:        NameCrewInfo,
	KindHealthCheck:     NameHealthCheck,
	KindRawQuery:        NameRawQuery,
}

// String returns the tool name, or "unknown".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a tool name to its Kind. Matching is exact after
// trimming surrounding whitespace.
func ParseKind(name string) Kind {
	name = strings.TrimSpace(name)
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Argument names.
const (
	ArgCarrier      = "carrier"
	ArgFlightNumber = "flight_number"
	ArgDateOfOrigin = "date_of_origin"
	ArgQueryJSON    = "query_json"
	ArgLimit        = "limit"
)

var flightParameters = []ToolParameter{
	{Name: ArgCarrier, ParamType: "string", Description: `Airline carrier code (e.g., "6E", "AI")`},
	{Name: ArgFlightNumber, ParamType: "string", Description: `Flight number (e.g., "215")`},
	{Name: ArgDateOfOrigin, ParamType: "string", Description: `Date of origin, YYYY-MM-DD preferred (e.g., "2024-06-23")`},
}

// ToolSpec describes one catalog entry.
type ToolSpec struct {
	Kind        Kind
	Name        string
	Description string
	Parameters  []ToolParameter
	// Projection lists the document paths the tool returns.
	Projection []string
}

// Args returns the argument names in declaration order.
func (s ToolSpec) Args() []string {
	names := make([]string, len(s.Parameters))
	for i, p := range s.Parameters {
		names[i] = p.Name
	}
	return names
}

// InputSchema returns the JSON Schema of the tool arguments.
func (s ToolSpec) InputSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	required := []string{}
	for _, p := range s.Parameters {
		props[p.Name] = map[string]any{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Catalog is the fixed, ordered set of tools. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	specs  []ToolSpec
	byKind map[Kind]int
}

// NewCatalog builds a catalog from specs, rejecting duplicates and
// unknown kinds.
func NewCatalog(specs ...ToolSpec) (*Catalog, error) {
	c := &Catalog{byKind: make(map[Kind]int, len(specs))}
	for _, s := range specs {
		if s.Kind == KindUnknown || s.Kind.String() != s.Name {
			return nil, fmt.Errorf("tool '%s' has no matching kind", s.Name)
		}
		if _, exists := c.byKind[s.Kind]; exists {
			return nil, fmt.Errorf("tool '%s' already registered", s.Name)
		}
		c.byKind[s.Kind] = len(c.specs)
		c.specs = append(c.specs, s)
	}
	return c, nil
}

// DefaultCatalog returns the flight operations tool set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultSpecs()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns a tool by name.
func (c *Catalog) Get(name string) (ToolSpec, bool) {
	return c.Lookup(ParseKind(name))
}

// Lookup returns a tool by kind.
func (c *Catalog) Lookup(kind Kind) (ToolSpec, bool) {
	i, ok := c.byKind[kind]
	if !ok {
		return ToolSpec{}, false
	}
	return c.specs[i], true
}

// Specs returns the tools in catalog order.
func (c *Catalog) Specs() []ToolSpec {
	out := make([]ToolSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Names returns the tool names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.specs))
	for i, s := range c.specs {
		names[i] = s.Name
	}
	return names
}

// Render lists the tools as "- name(arg, ...): description" lines for the
// planner prompt. Output depends only on catalog order.
func (c *Catalog) Render() string {
	lines := make([]string, len(c.specs))
	for i, s := range c.specs {
		lines[i] = fmt.Sprintf("- %s(%s): %s", s.Name, strings.Join(s.Args(), ", "), s.Description)
	}
	return strings.Join(lines, "\n")
}

func legPaths(fields ...string) []string {
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = "flightLegState." + f
	}
	return paths
}

func defaultSpecs() []ToolSpec {
	identity := []string{"carrier", "flightNumber", "dateOfOrigin"}
	with := func(extra ...string) []string {
		return legPaths(append(append([]string{}, identity...), extra...)...)
	}

	return []ToolSpec{
		{
			Kind:        KindFlightBasicInfo,
			Name:        NameFlightBasicInfo,
			Description: "Fetch basic flight information including carrier, flight number, stations, scheduled times, and flight status.",
			Parameters:  flightParameters,
			Projection: legPaths("carrier", "flightNumber", "suffix", "dateOfOrigin", "seqNumber",
				"startStation", "endStation", "startStationICAO", "endStationICAO",
				"scheduledStartTime", "scheduledEndTime", "flightStatus", "operationalStatus",
				"flightType", "blockTimeSch", "blockTimeActual", "flightHoursActual"),
		},
		{
			Kind:        KindOperationTimes,
			Name:        NameOperationTimes,
			Description: "Return estimated and actual operation times: takeoff, landing, departure, arrival, and block times.",
			Parameters:  flightParameters,
			Projection: with("startStation", "endStation", "scheduledStartTime", "scheduledEndTime",
				"operation.estimatedTimes", "operation.actualTimes", "taxiOutTime", "taxiInTime",
				"blockTimeSch", "blockTimeActual", "flightHoursActual"),
		},
		{
			Kind:        KindEquipmentInfo,
			Name:        NameEquipmentInfo,
			Description: "Get aircraft equipment details: aircraft type, tail number (registration), and configuration.",
			Parameters:  flightParameters,
			Projection: with("equipment.plannedAircraftType", "equipment.aircraft",
				"equipment.aircraftConfiguration", "equipment.aircraftRegistration",
				"equipment.assignedAircraftTypeIATA", "equipment.assignedAircraftTypeICAO",
				"equipment.assignedAircraftTypeIndigo", "equipment.assignedAircraftConfiguration",
				"equipment.tailLock", "equipment.onwardFlight", "equipment.actualOnwardFlight"),
		},
		{
			Kind:        KindDelaySummary,
			Name:        NameDelaySummary,
			Description: "Get delay information including delay reasons, durations, and total delay time.",
			Parameters:  flightParameters,
			Projection: with("startStation", "endStation", "scheduledStartTime",
				"operation.actualTimes.offBlock", "delays"),
		},
		{
			Kind:        KindFuelSummary,
			Name:        NameFuelSummary,
			Description: "Retrieve fuel summary including planned vs actual fuel consumption for the flight.",
			Parameters:  flightParameters,
			Projection: with("startStation", "endStation", "operation.fuel",
				"operation.flightPlan.offBlockFuel", "operation.flightPlan.takeoffFuel",
				"operation.flightPlan.landingFuel", "operation.flightPlan.holdFuel"),
		},
		{
			Kind:        KindPassengerInfo,
			Name:        NamePassengerInfo,
			Description: "Get passenger count and connection information for the flight.",
			Parameters:  flightParameters,
			Projection:  with("pax"),
		},
		{
			Kind:        KindCrewInfo,
			Name:        NameCrewInfo,
			Description: "Get crew connections and details for the flight.",
			Parameters:  flightParameters,
			Projection:  with("crewConnections"),
		},
		{
			Kind:        KindHealthCheck,
			Name:        NameHealthCheck,
			Description: "Check the health status of the MCP server and database connection.",
		},
		{
			Kind:        KindRawQuery,
			Name:        NameRawQuery,
			Description: "Run a raw MongoDB query (JSON format) for debugging purposes.",
			Parameters: []ToolParameter{
				{Name: ArgQueryJSON, ParamType: "string", Description: `MongoDB filter as a JSON string (e.g., '{"` + flight.FieldCarrier + `": "6E"}')`, Required: true},
				{Name: ArgLimit, ParamType: "integer", Description: "Maximum number of documents to return (default 10, max 50)"},
			},
		},
	}
}
